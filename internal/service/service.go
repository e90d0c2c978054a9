package service

import (
	"context"
	"time"

	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/utils"
)

// Service defines all the business logic operations
type Service interface {
	// Authentication
	Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error)
	Authenticate(ctx context.Context, token string) (*models.Identity, error)
	Me(ctx context.Context, caller models.Identity) (*models.User, error)

	// User administration
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, userID string, role models.Role) (*models.User, error)

	// Inventory
	AddToLibrary(ctx context.Context, req models.AddBookRequest) (*models.Book, error)
	UpdateCopies(ctx context.Context, bookID string, totalCopies int) (*models.Book, error)
	DeleteBook(ctx context.Context, bookID string) error
	ListLibrary(ctx context.Context, page, limit int) (*models.BookListResponse, error)

	// Lending lifecycle
	SubmitBorrow(ctx context.Context, userID, bookRef string) (string, error)
	SubmitReturn(ctx context.Context, userID, bookRef string) (string, error)
	Decide(ctx context.Context, requestID, action, adminID string) (*Decision, error)

	// Ledger reads
	GetRequest(ctx context.Context, requestID string) (*models.BookRecord, error)
	ListRequests(ctx context.Context, filter models.RecordFilter) ([]models.RecordView, error)
	ListUserRequests(ctx context.Context, caller models.Identity, userID string) ([]models.RecordView, error)
	ListBorrowed(ctx context.Context, caller models.Identity, page, limit int) (*models.RecordListResponse, error)
}

// Settings carries the policy knobs of the service
type Settings struct {
	JWTSecret        string
	TokenDuration    time.Duration
	MaxActiveBorrows int
	LoanPeriod       time.Duration
}

// DefaultSettings returns the lending policy used when nothing is configured
func DefaultSettings(jwtSecret string) Settings {
	return Settings{
		JWTSecret:        jwtSecret,
		TokenDuration:    24 * time.Hour,
		MaxActiveBorrows: 3,
		LoanPeriod:       14 * 24 * time.Hour,
	}
}

// Option configures a DefaultService
type Option func(*DefaultService)

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *DefaultService) {
		s.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *utils.Logger) Option {
	return func(s *DefaultService) {
		s.logger = logger
	}
}

// DefaultService implements the Service interface
type DefaultService struct {
	repo             repository.Repository
	jwtSecret        []byte
	tokenDuration    time.Duration
	maxActiveBorrows int
	loanPeriod       time.Duration
	now              func() time.Time
	logger           *utils.Logger
	tel              *telemetry
}

// NewDefaultService creates a new DefaultService
func NewDefaultService(repo repository.Repository, settings Settings, opts ...Option) *DefaultService {
	s := &DefaultService{
		repo:             repo,
		jwtSecret:        []byte(settings.JWTSecret),
		tokenDuration:    settings.TokenDuration,
		maxActiveBorrows: settings.MaxActiveBorrows,
		loanPeriod:       settings.LoanPeriod,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           utils.NopLogger(),
		tel:              newTelemetry(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func pageBounds(page, limit, defaultLimit int) (int, int) {
	if page < 0 {
		page = 0
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

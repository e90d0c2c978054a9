package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/models"
)

// Repository interface defines the methods that any repository implementation must satisfy.
// Lookups return nil, nil when the row does not exist.
type Repository interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUserRole(ctx context.Context, id string, role models.Role) (bool, error)

	// Inventory operations
	CreateBook(ctx context.Context, book *models.Book) error
	GetBook(ctx context.Context, id string) (*models.Book, error)
	GetBookByExternalID(ctx context.Context, externalID string) (*models.Book, error)
	GetBooksByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Book, error)
	ListBooks(ctx context.Context, limit, offset int) ([]models.Book, int, error)
	SearchBooks(ctx context.Context, query string, limit int) ([]models.Book, error)

	// Request ledger operations
	CreateRecord(ctx context.Context, record *models.BookRecord) error
	GetRecord(ctx context.Context, id string) (*models.BookRecord, error)
	CountActiveBorrows(ctx context.Context, userID string) (int, error)
	HasActiveBorrow(ctx context.Context, userID, bookID string) (bool, error)
	FindActiveBorrow(ctx context.Context, userID, bookID string) (*models.BookRecord, error)
	HasPendingReturn(ctx context.Context, originalRecordID string) (bool, error)
	ListRecords(ctx context.Context, filter models.RecordFilter) ([]models.RecordView, error)
	ListBorrowed(ctx context.Context, userID string, limit, offset int) ([]models.RecordView, int, error)

	// RunInTx runs fn inside one transaction; any error returned by fn rolls back every write.
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the transaction-bound view of the store. Reads lock the rows they return.
type Tx interface {
	GetRecordForUpdate(ctx context.Context, id string) (*models.BookRecord, error)
	GetBookForUpdate(ctx context.Context, id string) (*models.Book, error)
	UpdateRecord(ctx context.Context, record *models.BookRecord) error
	RejectPendingReturns(ctx context.Context, originalRecordID, exceptID, decidedBy string) (int64, error)
	UpdateBookCopies(ctx context.Context, bookID string, total, available int) error
	CountBookRecords(ctx context.Context, bookID string) (int, error)
	DeleteBook(ctx context.Context, id string) error
}

// SQLRepository implements the Repository interface on PostgreSQL or SQLite
type SQLRepository struct {
	db      *sqlx.DB
	dialect string
}

// NewSQLRepository creates a new repository over db. The SQL dialect follows the driver.
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	dialect := "postgres"
	if db.DriverName() == "sqlite3" {
		dialect = "sqlite3"
	}
	return &SQLRepository{
		db:      db,
		dialect: dialect,
	}
}

// GetDB returns the underlying database connection
func (r *SQLRepository) GetDB() *sqlx.DB {
	return r.db
}

// forUpdate returns the row lock clause. SQLite has none; its transactions
// take the database write lock up front (_txlock=immediate).
func (r *SQLRepository) forUpdate() string {
	if r.dialect == "sqlite3" {
		return ""
	}
	return " FOR UPDATE"
}

// User repository methods
func (r *SQLRepository) CreateUser(ctx context.Context, user *models.User) error {
	query := r.db.Rebind(`
		INSERT INTO users (id, email, name, password, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	// Generate a new UUID if not provided
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.Password, user.Role, user.CreatedAt, user.UpdatedAt)

	return translateError(err)
}

func (r *SQLRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := r.db.Rebind(`SELECT * FROM users WHERE email = ?`)

	var user models.User
	err := r.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *SQLRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := r.db.Rebind(`SELECT * FROM users WHERE id = ?`)

	var user models.User
	err := r.db.GetContext(ctx, &user, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // User not found
		}
		return nil, err
	}

	return &user, nil
}

func (r *SQLRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	query := `
		SELECT * FROM users
		ORDER BY CASE WHEN role = 'admin' THEN 0 ELSE 1 END, name ASC
	`

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *SQLRepository) UpdateUserRole(ctx context.Context, id string, role models.Role) (bool, error) {
	query := r.db.Rebind(`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`)

	res, err := r.db.ExecContext(ctx, query, role, time.Now().UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Inventory repository methods
func (r *SQLRepository) CreateBook(ctx context.Context, book *models.Book) error {
	query := r.db.Rebind(`
		INSERT INTO books (id, external_id, title, authors, publisher, published_date, description,
			thumbnail, total_copies, available_copies, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if book.Authors == nil {
		book.Authors = models.Authors{}
	}
	book.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, query,
		book.ID, book.ExternalID, book.Title, book.Authors, book.Publisher, book.PublishedDate,
		book.Description, book.Thumbnail, book.TotalCopies, book.AvailableCopies, book.CreatedAt)

	return translateError(err)
}

func (r *SQLRepository) GetBook(ctx context.Context, id string) (*models.Book, error) {
	query := r.db.Rebind(`SELECT * FROM books WHERE id = ?`)

	var book models.Book
	err := r.db.GetContext(ctx, &book, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Book not found
		}
		return nil, err
	}

	return &book, nil
}

func (r *SQLRepository) GetBookByExternalID(ctx context.Context, externalID string) (*models.Book, error) {
	query := r.db.Rebind(`SELECT * FROM books WHERE external_id = ? LIMIT 1`)

	var book models.Book
	err := r.db.GetContext(ctx, &book, query, externalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &book, nil
}

func (r *SQLRepository) GetBooksByExternalIDs(ctx context.Context, externalIDs []string) ([]models.Book, error) {
	books := []models.Book{}
	if len(externalIDs) == 0 {
		return books, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM books WHERE external_id IN (?)`, externalIDs)
	if err != nil {
		return nil, err
	}

	if err := r.db.SelectContext(ctx, &books, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *SQLRepository) ListBooks(ctx context.Context, limit, offset int) ([]models.Book, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM books`); err != nil {
		return nil, 0, err
	}

	query := r.db.Rebind(`SELECT * FROM books ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`)

	books := []models.Book{}
	if err := r.db.SelectContext(ctx, &books, query, limit, offset); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (r *SQLRepository) SearchBooks(ctx context.Context, q string, limit int) ([]models.Book, error) {
	query := r.db.Rebind(`
		SELECT * FROM books
		WHERE LOWER(title) LIKE LOWER(?) OR LOWER(authors) LIKE LOWER(?)
		ORDER BY created_at DESC
		LIMIT ?
	`)

	like := "%" + q + "%"
	books := []models.Book{}
	if err := r.db.SelectContext(ctx, &books, query, like, like, limit); err != nil {
		return nil, err
	}
	return books, nil
}

// Request ledger repository methods
func (r *SQLRepository) CreateRecord(ctx context.Context, record *models.BookRecord) error {
	query := r.db.Rebind(`
		INSERT INTO book_records (id, user_id, book_id, request_type, status, request_date, original_record_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.RequestDate.IsZero() {
		record.RequestDate = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, query,
		record.ID, record.UserID, record.BookID, record.RequestType, record.Status,
		record.RequestDate, record.OriginalRecordID)

	return translateError(err)
}

func (r *SQLRepository) GetRecord(ctx context.Context, id string) (*models.BookRecord, error) {
	query := r.db.Rebind(`SELECT * FROM book_records WHERE id = ?`)

	var record models.BookRecord
	err := r.db.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

func (r *SQLRepository) CountActiveBorrows(ctx context.Context, userID string) (int, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM book_records
		WHERE user_id = ? AND request_type = 'borrow' AND status IN ('pending', 'approved')
	`)

	var n int
	err := r.db.GetContext(ctx, &n, query, userID)
	return n, err
}

func (r *SQLRepository) HasActiveBorrow(ctx context.Context, userID, bookID string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM book_records
		WHERE user_id = ? AND book_id = ? AND request_type = 'borrow' AND status IN ('pending', 'approved')
	`)

	var n int
	if err := r.db.GetContext(ctx, &n, query, userID, bookID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindActiveBorrow returns the approved borrow a return should close: issued
// records first, then latest issue date, then latest request date.
func (r *SQLRepository) FindActiveBorrow(ctx context.Context, userID, bookID string) (*models.BookRecord, error) {
	query := r.db.Rebind(`
		SELECT * FROM book_records
		WHERE user_id = ? AND book_id = ? AND request_type = 'borrow' AND status = 'approved'
		ORDER BY (CASE WHEN issue_date IS NULL THEN 1 ELSE 0 END) ASC, issue_date DESC, request_date DESC
		LIMIT 1
	`)

	var record models.BookRecord
	err := r.db.GetContext(ctx, &record, query, userID, bookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

func (r *SQLRepository) HasPendingReturn(ctx context.Context, originalRecordID string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*) FROM book_records
		WHERE original_record_id = ? AND request_type = 'return' AND status = 'pending'
	`)

	var n int
	if err := r.db.GetContext(ctx, &n, query, originalRecordID); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RunInTx runs fn in a transaction and commits when fn returns nil
func (r *SQLRepository) RunInTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err = fn(&sqlTx{tx: tx, forUpdate: r.forUpdate()}); err != nil {
		return err
	}

	return tx.Commit()
}

type sqlTx struct {
	tx        *sqlx.Tx
	forUpdate string
}

func (t *sqlTx) GetRecordForUpdate(ctx context.Context, id string) (*models.BookRecord, error) {
	query := t.tx.Rebind(`SELECT * FROM book_records WHERE id = ?` + t.forUpdate)

	var record models.BookRecord
	err := t.tx.GetContext(ctx, &record, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &record, nil
}

func (t *sqlTx) GetBookForUpdate(ctx context.Context, id string) (*models.Book, error) {
	query := t.tx.Rebind(`SELECT * FROM books WHERE id = ?` + t.forUpdate)

	var book models.Book
	err := t.tx.GetContext(ctx, &book, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &book, nil
}

func (t *sqlTx) UpdateRecord(ctx context.Context, record *models.BookRecord) error {
	query := t.tx.Rebind(`
		UPDATE book_records
		SET status = ?, issue_date = ?, return_due_date = ?, return_date = ?, approved_at = ?, decided_by = ?
		WHERE id = ?
	`)

	_, err := t.tx.ExecContext(ctx, query,
		record.Status, record.IssueDate, record.ReturnDueDate, record.ReturnDate,
		record.ApprovedAt, record.DecidedBy, record.ID)
	return err
}

func (t *sqlTx) RejectPendingReturns(ctx context.Context, originalRecordID, exceptID, decidedBy string) (int64, error) {
	query := t.tx.Rebind(`
		UPDATE book_records SET status = 'rejected', decided_by = ?
		WHERE original_record_id = ? AND request_type = 'return' AND status = 'pending' AND id <> ?
	`)

	res, err := t.tx.ExecContext(ctx, query, decidedBy, originalRecordID, exceptID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) UpdateBookCopies(ctx context.Context, bookID string, total, available int) error {
	query := t.tx.Rebind(`UPDATE books SET total_copies = ?, available_copies = ? WHERE id = ?`)

	_, err := t.tx.ExecContext(ctx, query, total, available, bookID)
	return err
}

func (t *sqlTx) CountBookRecords(ctx context.Context, bookID string) (int, error) {
	query := t.tx.Rebind(`SELECT COUNT(*) FROM book_records WHERE book_id = ?`)

	var n int
	err := t.tx.GetContext(ctx, &n, query, bookID)
	return n, err
}

func (t *sqlTx) DeleteBook(ctx context.Context, id string) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM books WHERE id = ?`), id)
	return translateError(err)
}

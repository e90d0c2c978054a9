package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/catalog"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
)

// Searcher is the catalog search collaborator
type Searcher interface {
	Search(ctx context.Context, q catalog.Query) (*catalog.Result, error)
}

// Handler handles HTTP requests
type Handler struct {
	service service.Service
	search  Searcher
	logger  *utils.Logger
}

// NewHandler creates a new Handler
func NewHandler(svc service.Service, search Searcher, logger *utils.Logger) *Handler {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Handler{
		service: svc,
		search:  search,
		logger:  logger,
	}
}

// SetupRoutes sets up the API routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/books/search", h.SearchCatalog)
	api.GET("/books/library", h.ListLibrary)

	// Authenticated routes
	authorized := api.Group("")
	authorized.Use(h.AuthMiddleware())
	{
		authorized.GET("/auth/me", h.Me)
		authorized.GET("/books/borrowed", h.ListBorrowed)
		authorized.POST("/books/borrow/:bookRef", h.SubmitBorrow)
		authorized.POST("/books/return/:bookRef", h.SubmitReturn)
		authorized.GET("/books/user/:userId/records", h.ListUserRequests)
	}

	// Admin routes
	admin := authorized.Group("")
	admin.Use(RequireAdmin())
	{
		admin.POST("/books", h.AddToLibrary)
		admin.PUT("/books/update-copies/:bookId", h.UpdateCopies)
		admin.DELETE("/books/:bookId", h.DeleteBook)
		admin.GET("/books/all-borrow-records", h.ListRequests)
		admin.GET("/book-requests/:requestId", h.GetRequest)
		admin.POST("/book-requests/request/:requestId", h.Decide)
		admin.GET("/users/all", h.ListUsers)
		admin.PUT("/users/:userId/role", h.UpdateUserRole)
	}
}

// Authentication handlers
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), callerOf(c))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{Status: "success", User: user})
}

// Catalog and inventory handlers
func (h *Handler) SearchCatalog(c *gin.Context) {
	result, err := h.search.Search(c.Request.Context(), catalog.Query{
		Text:   c.Query("q"),
		Page:   queryInt(c, "page", 0),
		Limit:  queryInt(c, "limit", 0),
		Source: c.Query("source"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ListLibrary(c *gin.Context) {
	resp, err := h.service.ListLibrary(c.Request.Context(), queryInt(c, "page", 0), queryInt(c, "limit", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AddToLibrary(c *gin.Context) {
	var req models.AddBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	book, err := h.service.AddToLibrary(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.BookResponse{Status: "success", Book: book})
}

func (h *Handler) UpdateCopies(c *gin.Context) {
	var req models.UpdateCopiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	book, err := h.service.UpdateCopies(c.Request.Context(), c.Param("bookId"), *req.TotalCopies)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BookResponse{Status: "success", Book: book})
}

func (h *Handler) DeleteBook(c *gin.Context) {
	if err := h.service.DeleteBook(c.Request.Context(), c.Param("bookId")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Book deleted",
	})
}

// Lending handlers
func (h *Handler) SubmitBorrow(c *gin.Context) {
	caller := callerOf(c)

	requestID, err := h.service.SubmitBorrow(c.Request.Context(), caller.UserID, c.Param("bookRef"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SubmitResponse{
		Status:    "success",
		RequestID: requestID,
		Message:   "Borrow request submitted",
	})
}

func (h *Handler) SubmitReturn(c *gin.Context) {
	caller := callerOf(c)

	requestID, err := h.service.SubmitReturn(c.Request.Context(), caller.UserID, c.Param("bookRef"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.SubmitResponse{
		Status:    "success",
		RequestID: requestID,
		Message:   "Return request submitted",
	})
}

func (h *Handler) Decide(c *gin.Context) {
	var req models.DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	caller := callerOf(c)
	decision, err := h.service.Decide(c.Request.Context(), c.Param("requestId"), req.Action, caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.DecisionResponse{
		Status:        "success",
		RequestID:     decision.RequestID,
		RequestType:   decision.RequestType,
		RequestStatus: decision.Status,
		Message:       fmt.Sprintf("%s request %s", decision.RequestType, decision.Status),
	})
}

// Ledger handlers
func (h *Handler) GetRequest(c *gin.Context) {
	record, err := h.service.GetRequest(c.Request.Context(), c.Param("requestId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RecordResponse{Status: "success", Record: record})
}

func (h *Handler) ListRequests(c *gin.Context) {
	filter := models.RecordFilter{
		Status:      models.RequestStatus(c.Query("status")),
		RequestType: models.RequestType(c.Query("type")),
		UserID:      c.Query("userId"),
		BookID:      c.Query("bookId"),
		Limit:       queryInt(c, "limit", 0),
		Offset:      queryInt(c, "offset", 0),
	}

	switch filter.Status {
	case "", models.StatusPending, models.StatusApproved, models.StatusRejected, models.StatusReturned:
	default:
		h.respondError(c, fmt.Errorf("%w: unknown status %q", service.ErrInvalidInput, filter.Status))
		return
	}
	switch filter.RequestType {
	case "", models.RequestBorrow, models.RequestReturn:
	default:
		h.respondError(c, fmt.Errorf("%w: unknown request type %q", service.ErrInvalidInput, filter.RequestType))
		return
	}

	records, err := h.service.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RecordListResponse{
		Status:     "success",
		Records:    records,
		TotalItems: len(records),
	})
}

func (h *Handler) ListUserRequests(c *gin.Context) {
	records, err := h.service.ListUserRequests(c.Request.Context(), callerOf(c), c.Param("userId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.RecordListResponse{
		Status:     "success",
		Records:    records,
		TotalItems: len(records),
	})
}

func (h *Handler) ListBorrowed(c *gin.Context) {
	resp, err := h.service.ListBorrowed(c.Request.Context(), callerOf(c), queryInt(c, "page", 0), queryInt(c, "limit", 0))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// User administration handlers
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserListResponse{Status: "success", Users: users})
}

func (h *Handler) UpdateUserRole(c *gin.Context) {
	var req models.UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.service.UpdateUserRole(c.Request.Context(), c.Param("userId"), models.Role(req.Role))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.UserResponse{Status: "success", User: user})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}

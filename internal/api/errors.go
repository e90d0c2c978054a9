package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/catalog"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/service"
)

var statusByCode = map[string]int{
	service.ErrNotFound.Code:           http.StatusNotFound,
	service.ErrAlreadyProcessed.Code:   http.StatusConflict,
	service.ErrNoCopiesAvailable.Code:  http.StatusConflict,
	service.ErrBorrowLimitReached.Code: http.StatusConflict,
	service.ErrDuplicateRequest.Code:   http.StatusConflict,
	service.ErrNoActiveBorrow.Code:     http.StatusConflict,
	service.ErrEmailTaken.Code:         http.StatusConflict,
	service.ErrBookExists.Code:         http.StatusConflict,
	service.ErrBookInUse.Code:          http.StatusConflict,
	service.ErrInvalidAction.Code:      http.StatusBadRequest,
	service.ErrInvalidInput.Code:       http.StatusBadRequest,
	service.ErrUnauthorized.Code:       http.StatusUnauthorized,
	service.ErrInvalidCredentials.Code: http.StatusUnauthorized,
	service.ErrForbidden.Code:          http.StatusForbidden,
}

// respondError writes err as an ErrorResponse. Anything outside the domain
// taxonomy is logged and reported as an internal error.
func (h *Handler) respondError(c *gin.Context, err error) {
	var domainErr *service.Error
	if errors.As(err, &domainErr) {
		status, ok := statusByCode[domainErr.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		c.JSON(status, models.ErrorResponse{
			Status:  "error",
			Code:    domainErr.Code,
			Message: err.Error(),
		})
		return
	}

	if errors.Is(err, catalog.ErrInvalidQuery) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Status:  "error",
			Code:    service.ErrInvalidInput.Code,
			Message: err.Error(),
		})
		return
	}

	h.logger.ErrorContext(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Status:  "error",
		Code:    "INTERNAL_ERROR",
		Message: "Internal server error",
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Status:  "error",
		Code:    "INVALID_REQUEST",
		Message: err.Error(),
	})
}

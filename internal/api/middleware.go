package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rongwang/library-server/internal/models"
	"github.com/rongwang/library-server/internal/service"
)

const identityKey = "identity"

// AuthMiddleware returns a Gin middleware for authentication. The verified
// caller is stored on the context for handlers and RequireAdmin. Store
// failures are reported as internal errors, not as a bad token.
func (h *Handler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the JWT token from the Authorization header
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    service.ErrUnauthorized.Code,
				Message: "Authentication required",
			})
			return
		}

		// Check if the Authorization header starts with "Bearer "
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    service.ErrUnauthorized.Code,
				Message: "Invalid token format",
			})
			return
		}

		identity, err := h.service.Authenticate(c.Request.Context(), parts[1])
		if err != nil && !errors.Is(err, service.ErrUnauthorized) {
			h.respondError(c, err)
			c.Abort()
			return
		}
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Status:  "error",
				Code:    service.ErrUnauthorized.Code,
				Message: "Invalid token",
			})
			return
		}

		c.Set(identityKey, *identity)
		c.Next()
	}
}

// RequireAdmin rejects callers without the admin role. It must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerOf(c).IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, models.ErrorResponse{
				Status:  "error",
				Code:    service.ErrForbidden.Code,
				Message: "Admin access required",
			})
			return
		}
		c.Next()
	}
}

// CORSMiddleware allows the configured browser origins
func CORSMiddleware(origins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

func callerOf(c *gin.Context) models.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}
	}
	identity, _ := v.(models.Identity)
	return identity
}

package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/challenges/scheduler/internal/store"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// cronSecretHeader is the alternative to a bearer Authorization header for
// cron services that cannot set custom authorization schemes.
const cronSecretHeader = "x-cron-secret"

// TriggerGate admits only callers that present the shared secret, either as
// "Authorization: Bearer <secret>" or in the x-cron-secret header. It is
// stateless and runs before any store access.
func TriggerGate(secret string, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		presented := c.GetHeader(cronSecretHeader)
		if presented == "" {
			auth := c.GetHeader("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
			logger.Warn("rejected unauthenticated trigger request",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Code:    "UNAUTHORIZED",
				Message: "Invalid or missing shared secret",
			})
			return
		}

		c.Next()
	}
}

// ErrorHandlingMiddleware turns errors pushed onto the gin context into the
// uniform envelope and maps the store's typed errors to status codes.
func ErrorHandlingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method))

				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "An internal error occurred",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err
			logger.Error("request error",
				zap.Error(err),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))

			switch {
			case errors.Is(err, store.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
				c.JSON(http.StatusNotFound, ErrorResponse{
					Code:    "NOT_FOUND",
					Message: "Schedule not found",
				})
			case errors.Is(err, store.ErrNotPending):
				c.JSON(http.StatusConflict, ErrorResponse{
					Code:    "NOT_PENDING",
					Message: "Schedule already reached a terminal state",
				})
			case errors.Is(err, store.ErrScheduledTimeNotFuture):
				c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
					Code:    "INVALID_SCHEDULED_TIME",
					Message: "Scheduled time must be strictly in the future",
				})
			default:
				c.JSON(http.StatusInternalServerError, ErrorResponse{
					Code:    "INTERNAL_ERROR",
					Message: "An error occurred while processing your request",
					Details: err.Error(),
				})
			}
		}
	}
}

func Cors() gin.HandlerFunc {
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", cronSecretHeader}
	return cors.New(config)
}

package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	profileUC "github.com/khoahotran/linkgraph/internal/application/usecase/profile"
	"github.com/khoahotran/linkgraph/pkg/apperror"
	"github.com/khoahotran/linkgraph/pkg/auth"
	"github.com/khoahotran/linkgraph/pkg/logger"
)

const (
	GinContextKeyProfileID = "profileID"
	GinContextKeyEmail     = "email"
)

// AuthMiddleware verifies the bearer token and resolves the caller's own
// profile, creating it on first use.
func AuthMiddleware(jwtSvc *auth.JWTService, accounts *profileUC.ProfileUseCase, log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, apperror.NewUnauthorized("Authorization header is required", nil))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			abort(c, apperror.NewUnauthorized("Invalid token format", nil))
			return
		}

		id, err := jwtSvc.ValidateToken(tokenString)
		if err != nil {
			abort(c, apperror.NewUnauthorized("Invalid or expired token", err))
			return
		}

		p, err := accounts.ExecuteEnsureAccount(c.Request.Context(), profileUC.EnsureAccountInput{
			AccountID: id.AccountID,
			Email:     id.Email,
		})
		if err != nil {
			abort(c, err)
			return
		}

		c.Set(GinContextKeyProfileID, p.ID)
		c.Set(GinContextKeyEmail, id.Email)
		c.Next()
	}
}

func abort(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

func GetProfileIDFromGinContext(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(GinContextKeyProfileID)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok
}

func GetEmailFromGinContext(c *gin.Context) string {
	return c.GetString(GinContextKeyEmail)
}

// ErrorMiddleware renders the last error a handler attached with c.Error.
func ErrorMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := apperror.ToHTTPStatus(err)

		fields := []zap.Field{zap.String("method", c.Request.Method), zap.String("path", c.FullPath()), zap.Int("status", status)}
		if status >= http.StatusInternalServerError {
			log.Error("Request failed", err, fields...)
		} else {
			log.Warn("Request rejected", append(fields, zap.Error(err))...)
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, errorBody(err))
	}
}

func errorBody(err error) gin.H {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		appErr = apperror.NewInternal("unhandled error", err)
	}
	return appErr.ToJSON()
}

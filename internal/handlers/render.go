package handlers

import (
	"errors"
	"net/http"

	"field-service/internal/apperrors"
	"field-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalError = "Internal server error"

// statusFor сопоставляет класс ошибки HTTP-статусу и сообщению для клиента.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrRender):
		if errors.Is(err, apperrors.ErrNotFound) {
			return http.StatusNotFound, apperrors.PublicMessage(err, "Report not found!")
		}
		return http.StatusInternalServerError, apperrors.PublicMessage(err, "Failed to generate report")
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrDecode):
		return http.StatusBadRequest, apperrors.PublicMessage(err, "Invalid request")
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, apperrors.PublicMessage(err, "Not found")
	// чужой отчёт выглядит как несуществующий
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusNotFound, apperrors.PublicMessage(err, "Report not found or unauthorized")
	case errors.Is(err, apperrors.ErrConflict):
		return http.StatusConflict, apperrors.PublicMessage(err, "Conflict")
	case errors.Is(err, apperrors.ErrDependency):
		return http.StatusInternalServerError, apperrors.PublicMessage(err, internalError)
	default:
		return http.StatusInternalServerError, internalError
	}
}

// respondError логирует полную ошибку и отдаёт клиенту только публичное сообщение.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status, msg := statusFor(err)
	_ = c.Error(err)

	l := middleware.RequestLogger(c, log)
	if status >= http.StatusInternalServerError {
		l.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		l.Debug("request rejected", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.AbortWithStatusJSON(status, gin.H{"message": msg})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

package middleware

import (
	"context"
	"errors"
	"net/http"

	"field-service/internal/apperrors"
	"field-service/internal/models"

	"github.com/gin-gonic/gin"
)

type UserFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// InjectUser подгружает пользователя из токена. Удалённый пользователь
// с ещё живым токеном получает 401.
func InjectUser(users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := UserID(c)
		if uid == "" {
			c.Next()
			return
		}

		user, err := users.FindByID(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
			return
		}

		c.Set(ctxCurrentUser, user)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(ctxCurrentUser)
	if !ok {
		return nil, false
	}
	u, ok := v.(*models.User)
	return u, ok
}

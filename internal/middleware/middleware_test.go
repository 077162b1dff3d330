package middleware

import (
	"context"
	"net/http"
	"testing"
	"time"

	"field-service/internal/apperrors"
	"field-service/internal/models"
	"field-service/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const secret = "test-secret"

type stubUsers map[string]*models.User

func (s stubUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperrors.New(apperrors.ErrNotFound, "User not found.")
}

func engineer() *models.User {
	return &models.User{Base: models.Base{ID: "u-1"}, Email: "e@example.com", Role: models.RoleEngineer}
}

func router(users UserFinder, roles ...models.UserRole) *gin.Engine {
	r := testutil.SetupRouter()
	r.Use(RequestID(), Logger(zap.NewNop()))
	g := r.Group("/", RequireAuth(secret), InjectUser(users))
	g.GET("/any", func(c *gin.Context) { c.String(http.StatusOK, UserID(c)) })
	g.GET("/restricted", RequireRole(roles...), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func TestRequireAuth(t *testing.T) {
	u := engineer()
	r := router(stubUsers{u.ID: u})

	w := testutil.DoRequest(r, http.MethodGet, "/any", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = testutil.DoRequest(r, http.MethodGet, "/any", nil, "garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := IssueToken(secret, u, time.Hour)
	require.NoError(t, err)
	w = testutil.DoRequest(r, http.MethodGet, "/any", nil, token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u-1", w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequireAuthRejectsExpiredAndForeignTokens(t *testing.T) {
	u := engineer()
	r := router(stubUsers{u.ID: u})

	expired, err := IssueToken(secret, u, -time.Minute)
	require.NoError(t, err)
	w := testutil.DoRequest(r, http.MethodGet, "/any", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	foreign, err := IssueToken("other-secret", u, time.Hour)
	require.NoError(t, err)
	w = testutil.DoRequest(r, http.MethodGet, "/any", nil, foreign)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: u.ID, RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	w = testutil.DoRequest(r, http.MethodGet, "/any", nil, raw)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInjectUserRejectsDeletedUser(t *testing.T) {
	token, err := IssueToken(secret, engineer(), time.Hour)
	require.NoError(t, err)

	w := testutil.DoRequest(router(stubUsers{}), http.MethodGet, "/any", nil, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleUsesStoredRole(t *testing.T) {
	u := engineer()
	token, err := IssueToken(secret, u, time.Hour)
	require.NoError(t, err)

	w := testutil.DoRequest(router(stubUsers{u.ID: u}, models.RoleAdmin, models.RoleSuperAdmin), http.MethodGet, "/restricted", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = testutil.DoRequest(router(stubUsers{u.ID: u}, models.RoleEngineer), http.MethodGet, "/restricted", nil, token)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// роль в базе поменялась после выдачи токена
	promoted := *u
	promoted.Role = models.RoleAdmin
	w = testutil.DoRequest(router(stubUsers{u.ID: &promoted}, models.RoleEngineer), http.MethodGet, "/restricted", nil, token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/raceops/models"
)

var key = []byte("test-secret")

type seen struct {
	userID string
	role   models.Role
	agent  models.Agent
}

func serve(t *testing.T, token string, mws ...echo.MiddlewareFunc) (int, seen) {
	t.Helper()
	e := echo.New()
	var got seen
	e.GET("/", func(c echo.Context) error {
		got = seen{userID: UserID(c), role: Role(c), agent: Agent(c)}
		return c.NoContent(http.StatusOK)
	}, mws...)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code, got
}

func TestJWT(t *testing.T) {
	u := &models.User{ID: "u1", Email: "staff@example.com", Name: "Bia", Role: models.RoleStaff}
	token, err := IssueToken(u, key, time.Hour, time.Now())
	require.NoError(t, err)

	t.Run("bearer prefix", func(t *testing.T) {
		code, got := serve(t, "Bearer "+token, JWT(key))
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "u1", got.userID)
		assert.Equal(t, models.RoleStaff, got.role)
		assert.Equal(t, models.Agent{ID: "u1", Name: "Bia"}, got.agent)
	})
	t.Run("raw token", func(t *testing.T) {
		code, _ := serve(t, token, JWT(key))
		assert.Equal(t, http.StatusOK, code)
	})
	t.Run("missing", func(t *testing.T) {
		code, _ := serve(t, "", JWT(key))
		assert.Equal(t, http.StatusUnauthorized, code)
	})
	t.Run("agent falls back to email", func(t *testing.T) {
		noName, err := IssueToken(&models.User{ID: "u2", Email: "x@example.com", Role: models.RoleStaff}, key, time.Hour, time.Now())
		require.NoError(t, err)
		_, got := serve(t, noName, JWT(key))
		assert.Equal(t, "x@example.com", got.agent.Name)
	})
	t.Run("wrong key", func(t *testing.T) {
		code, _ := serve(t, token, JWT([]byte("other")))
		assert.Equal(t, http.StatusUnauthorized, code)
	})
	t.Run("expired", func(t *testing.T) {
		old, err := IssueToken(u, key, time.Hour, time.Now().Add(-2*time.Hour))
		require.NoError(t, err)
		code, _ := serve(t, old, JWT(key))
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestRequireRole(t *testing.T) {
	athlete, err := IssueToken(&models.User{ID: "a1", Role: models.RoleAthlete}, key, time.Hour, time.Now())
	require.NoError(t, err)
	admin, err := IssueToken(&models.User{ID: "ad", Role: models.RoleAdmin}, key, time.Hour, time.Now())
	require.NoError(t, err)

	staffOnly := []echo.MiddlewareFunc{JWT(key), RequireRole(models.RoleStaff, models.RoleAdmin)}

	code, _ := serve(t, athlete, staffOnly...)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = serve(t, admin, staffOnly...)
	assert.Equal(t, http.StatusOK, code)
}

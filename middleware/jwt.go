package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceops/models"
)

// Context keys set by JWT.
const (
	UserIDKey = "user_id"
	EmailKey  = "email"
	NameKey   = "name"
	RoleKey   = "role"
)

// Claims extends jwt.RegisteredClaims with application-specific fields.
type Claims struct {
	UserID string      `json:"uid"`
	Email  string      `json:"email"`
	Name   string      `json:"name,omitempty"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for the user valid for ttl.
func IssueToken(u *models.User, key []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := &Claims{
		UserID: u.ID,
		Email:  u.Email,
		Name:   u.Name,
		Role:   u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// JWT returns an Echo middleware that validates the Authorization header token
// using the provided signing key. A "Bearer " prefix is accepted.
func JWT(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimSpace(c.Request().Header.Get("Authorization"))
			token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			claims := &Claims{}
			tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if !tkn.Valid || claims.UserID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(UserIDKey, claims.UserID)
			c.Set(EmailKey, claims.Email)
			c.Set(NameKey, claims.Name)
			c.Set(RoleKey, claims.Role)
			return next(c)
		}
	}
}

// RequireRole rejects requests whose token role is not one of roles. It must
// run after JWT.
func RequireRole(roles ...models.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(RoleKey).(models.Role)
			for _, r := range roles {
				if role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "access denied")
		}
	}
}

// UserID returns the authenticated user id, or "" outside JWT routes.
func UserID(c echo.Context) string {
	id, _ := c.Get(UserIDKey).(string)
	return id
}

// Agent is the authenticated staff member as recorded on pickups and delivery
// attempts. The name falls back to the e-mail.
func Agent(c echo.Context) models.Agent {
	name, _ := c.Get(NameKey).(string)
	if name == "" {
		name, _ = c.Get(EmailKey).(string)
	}
	return models.Agent{ID: UserID(c), Name: name}
}

// Role returns the authenticated user role.
func Role(c echo.Context) models.Role {
	r, _ := c.Get(RoleKey).(models.Role)
	return r
}

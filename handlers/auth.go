package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	mw "github.com/padraicbc/raceops/middleware"
	"github.com/padraicbc/raceops/models"
)

// HashPassword validates the password and returns a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	if len(strings.TrimSpace(password)) < 8 {
		return "", errors.New("password must have at least 8 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

var errBadCredentials = echo.NewHTTPError(http.StatusUnauthorized,
	models.NewDomainError("UNAUTHORIZED", "e-mail ou senha incorretos"))

// Signin validates credentials and returns a JWT token valid for TokenTTL.
func (h *Handler) Signin(c echo.Context) error {
	var req signinRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.repo.GetUserByEmail(c.Request().Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return errBadCredentials
		}
		return httpError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		h.log.Info("signin rejected", zap.String("user_id", user.ID))
		return errBadCredentials
	}

	token, err := mw.IssueToken(user, h.JWTKey, h.TokenTTL, h.now())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

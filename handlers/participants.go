package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceops/lifecycle"
	mw "github.com/padraicbc/raceops/middleware"
	"github.com/padraicbc/raceops/models"
)

func actor(c echo.Context) lifecycle.Actor {
	return lifecycle.Actor{UserID: mw.UserID(c), Admin: mw.Role(c) == models.RoleAdmin}
}

// Identify binds an athlete profile to one participant slot.
func (h *Handler) Identify(c echo.Context) error {
	var req identifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.lifecycle.Identify(c.Request().Context(), actor(c), c.Param("id"), req.Profile.profile(), req.ShirtSize)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

// BulkIdentify assigns team members to pending slots in one transaction.
func (h *Handler) BulkIdentify(c echo.Context) error {
	var req bulkIdentifyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	n, err := h.lifecycle.BulkIdentify(c.Request().Context(), actor(c), req.Assignments)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]int{"identified": n})
}

func (h *Handler) ValidateParticipant(c echo.Context) error {
	p, err := h.lifecycle.ValidateParticipant(c.Request().Context(), c.Param("id"), mw.Agent(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Block(c echo.Context) error {
	var req blockRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.lifecycle.Block(c.Request().Context(), c.Param("id"), req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

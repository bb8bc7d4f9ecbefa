package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/raceops/kit"
	mw "github.com/padraicbc/raceops/middleware"
)

type kitResponse struct {
	*kit.Result
	Message string `json:"message,omitempty"`
}

func kitJSON(c echo.Context, res *kit.Result) error {
	return c.JSON(http.StatusOK, kitResponse{Result: res, Message: res.Message()})
}

// ValidateKit classifies a pickup code without writing.
func (h *Handler) ValidateKit(c echo.Context) error {
	var req kitCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.kits.Validate(c.Request().Context(), req.Code, req.RaceID)
	if err != nil {
		return httpError(err)
	}
	return kitJSON(c, res)
}

// RedeemKit is the kiosk flow: a VALIDO code is withdrawn in the same call.
func (h *Handler) RedeemKit(c echo.Context) error {
	var req kitCodeRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.kits.Redeem(c.Request().Context(), req.Code, req.RaceID)
	if err != nil {
		return httpError(err)
	}
	return kitJSON(c, res)
}

// ConfirmKit records a counter pickup by the authenticated staff member.
func (h *Handler) ConfirmKit(c echo.Context) error {
	var req kitConfirmRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	p, err := h.kits.ConfirmWithdrawal(c.Request().Context(), req.ParticipantID, kit.Confirmation{
		RaceID:          req.RaceID,
		Agent:           mw.Agent(c),
		ResponsibleName: req.ResponsibleName,
		Observation:     req.Observation,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, p)
}

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/raceops/middleware"
)

func (h *Handler) UpdateDeliveryStatus(c echo.Context) error {
	var req deliveryStatusRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	o, err := h.lifecycle.UpdateDeliveryStatus(c.Request().Context(), c.Param("id"), req.Status, req.Observation, mw.Agent(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, o)
}

// PrintLabel marks a home-delivery order as printed and returns its label link.
func (h *Handler) PrintLabel(c echo.Context) error {
	res, err := h.lifecycle.MarkPrinted(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ScanDelivery(c echo.Context) error {
	var req scanRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := h.lifecycle.ScanDelivery(c.Request().Context(), req.Code, mw.Agent(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

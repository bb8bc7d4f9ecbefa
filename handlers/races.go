package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Races lists the published catalog.
func (h *Handler) Races(c echo.Context) error {
	races, err := h.catalog.Races(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, races)
}

func (h *Handler) Race(c echo.Context) error {
	race, err := h.catalog.Race(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, race)
}

func (h *Handler) Combos(c echo.Context) error {
	combos, err := h.catalog.Combos(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, combos)
}

// ApplyCoupon quotes a coupon against an amount without redeeming it.
func (h *Handler) ApplyCoupon(c echo.Context) error {
	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	quote, err := h.catalog.ApplyCoupon(c.Request().Context(), req.Code, req.RaceID, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, quote)
}

// Stats returns the per-status counts of a race.
func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.lifecycle.Stats(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, stats)
}

// GenerateBibs numbers every identified participant of the race. It can run
// once per race.
func (h *Handler) GenerateBibs(c echo.Context) error {
	res, err := h.bibs.Generate(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) SetBibPrefixes(c echo.Context) error {
	var req prefixesRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	race, err := h.bibs.SetPrefixes(c.Request().Context(), c.Param("id"), req.Prefixes)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, race)
}

// ExportRoster writes the race roster to the configured spreadsheet.
func (h *Handler) ExportRoster(c echo.Context) error {
	if h.roster == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "exportação para planilha não configurada")
	}
	res, err := h.roster.Export(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

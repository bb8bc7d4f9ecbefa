package handlers

import (
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/bib"
	"github.com/padraicbc/raceops/catalog"
	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/kit"
	"github.com/padraicbc/raceops/lifecycle"
	mw "github.com/padraicbc/raceops/middleware"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/reports"
	"github.com/padraicbc/raceops/store"
)

// Deps are the services the handlers call into. Roster may be nil when the
// Google Sheets export is not configured.
type Deps struct {
	Repo      store.Repository
	Lifecycle *lifecycle.Service
	Bibs      *bib.Generator
	Kits      *kit.Validator
	Catalog   *catalog.Service
	Roster    *reports.Roster
	Hub       *events.Hub
	JWTKey    []byte
	TokenTTL  time.Duration
	Log       *zap.Logger
}

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	repo      store.Repository
	lifecycle *lifecycle.Service
	bibs      *bib.Generator
	kits      *kit.Validator
	catalog   *catalog.Service
	roster    *reports.Roster
	hub       *events.Hub
	log       *zap.Logger
	JWTKey    []byte
	TokenTTL  time.Duration
	now       func() time.Time
	heartbeat time.Duration
}

// New creates a Handler from its dependencies.
func New(d Deps) *Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.TokenTTL <= 0 {
		d.TokenTTL = 12 * time.Hour
	}
	return &Handler{
		repo:      d.Repo,
		lifecycle: d.Lifecycle,
		bibs:      d.Bibs,
		kits:      d.Kits,
		catalog:   d.Catalog,
		roster:    d.Roster,
		hub:       d.Hub,
		log:       d.Log,
		JWTKey:    d.JWTKey,
		TokenTTL:  d.TokenTTL,
		now:       time.Now,
		heartbeat: 25 * time.Second,
	}
}

// Register mounts every route under /api.
func (h *Handler) Register(e *echo.Echo) {
	api := e.Group("/api")

	// Public
	api.POST("/signin", h.Signin)
	api.GET("/races", h.Races)
	api.GET("/races/:id", h.Race)
	api.GET("/races/:id/combos", h.Combos)
	api.POST("/coupons/apply", h.ApplyCoupon)

	// Authenticated athletes and back office
	auth := api.Group("", mw.JWT(h.JWTKey))
	auth.PUT("/participants/:id/identify", h.Identify)
	auth.POST("/participants/bulk-identify", h.BulkIdentify)

	staff := auth.Group("", mw.RequireRole(models.RoleStaff, models.RoleAdmin))
	staff.POST("/kit/validate", h.ValidateKit)
	staff.POST("/kit/redeem", h.RedeemKit)
	staff.POST("/kit/confirm", h.ConfirmKit)
	staff.POST("/participants/:id/validate", h.ValidateParticipant)
	staff.POST("/deliveries/scan", h.ScanDelivery)
	staff.POST("/orders/:id/print", h.PrintLabel)
	staff.PUT("/orders/:id/delivery-status", h.UpdateDeliveryStatus)
	staff.GET("/races/:id/events", h.Events)

	admin := auth.Group("", mw.RequireRole(models.RoleAdmin))
	admin.POST("/races/:id/bibs", h.GenerateBibs)
	admin.PUT("/races/:id/bib-prefixes", h.SetBibPrefixes)
	admin.POST("/participants/:id/block", h.Block)
	admin.GET("/races/:id/stats", h.Stats)
	admin.POST("/races/:id/roster-export", h.ExportRoster)
}

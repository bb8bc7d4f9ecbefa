package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/padraicbc/raceops/bib"
	"github.com/padraicbc/raceops/catalog"
	"github.com/padraicbc/raceops/config"
	"github.com/padraicbc/raceops/db"
	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/handlers"
	"github.com/padraicbc/raceops/kit"
	"github.com/padraicbc/raceops/labels"
	"github.com/padraicbc/raceops/lifecycle"
	applog "github.com/padraicbc/raceops/logger"
	"github.com/padraicbc/raceops/notify"
	"github.com/padraicbc/raceops/reports"
	"github.com/padraicbc/raceops/store"
)

func main() {
	cfg := config.Load()
	logger, err := applog.New(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx := context.Background()
	bdb, err := db.Setup(ctx, cfg)
	if err != nil {
		logger.Fatal("database setup failed", zap.Error(err))
	}
	defer bdb.Close()

	if err := db.CreateTables(ctx, bdb, logger); err != nil {
		logger.Fatal("create tables failed", zap.Error(err))
	}

	repo := store.NewBunStore(bdb)
	hub := events.NewHub(logger)

	var mail notify.Notifier = notify.Discard{}
	if cfg.EmailEndpoint != "" {
		mail = notify.NewClient(cfg.EmailEndpoint, repo, logger)
	} else {
		logger.Warn("EMAIL_ENDPOINT not set, e-mails disabled")
	}

	var roster *reports.Roster
	if cfg.SheetsEnabled() {
		w, err := reports.NewSheetsWriter(ctx, cfg.SheetsCredentials, cfg.SheetsSpreadsheetID)
		if err != nil {
			logger.Fatal("google sheets setup failed", zap.Error(err))
		}
		roster = reports.NewRoster(repo, w, logger)
	}

	h := handlers.New(handlers.Deps{
		Repo: repo,
		Lifecycle: lifecycle.New(repo, hub, mail, labels.New(cfg.LabelBaseURL), logger, lifecycle.Options{
			AllowEditAfterClose: cfg.AllowEditAfterClose,
		}),
		Bibs:     bib.NewGenerator(repo, logger, bib.WithEvents(hub), bib.WithRetries(cfg.TxRetries, 100*time.Millisecond)),
		Kits:     kit.NewValidator(repo, hub, logger),
		Catalog:  catalog.New(repo, logger),
		Roster:   roster,
		Hub:      hub,
		JWTKey:   cfg.JWTKey(),
		TokenTTL: cfg.TokenTTL,
		Log:      logger,
	})

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID())
	e.Use(applog.Requests(logger))
	e.Use(echomw.Recover())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"*", "Authorization"},
		AllowCredentials: true,
	}))
	e.GET("/healthz", func(c echo.Context) error {
		if err := bdb.PingContext(c.Request().Context()); err != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
		}
		return c.NoContent(http.StatusNoContent)
	})
	h.Register(e)

	if cfg.Debug {
		logger.Info("starting server", zap.String("mode", "debug"), zap.String("addr", cfg.Port))
		if err := e.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server exited", zap.Error(err))
		}
		return
	}

	autoTLS := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		Cache:      autocert.DirCache(".cache"),
		HostPolicy: autocert.HostWhitelist(cfg.TLSDomains...),
	}

	// WriteTimeout stays zero so the event streams are not cut off.
	s := &http.Server{
		Addr:        ":443",
		Handler:     e,
		TLSConfig:   autoTLS.TLSConfig(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 15 * time.Second,
	}

	logger.Info("starting server", zap.Strings("domains", cfg.TLSDomains))
	if err := s.ListenAndServeTLS("", ""); err != http.ErrServerClosed {
		logger.Error("tls server exited", zap.Error(err))
		os.Exit(1)
	}
}

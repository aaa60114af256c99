package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/golang-migrate/migrate/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appconfig "github.com/rcabanilla/gridseer/config"
	agentcore "github.com/rcabanilla/gridseer/internal/agent/core"
	agenttele "github.com/rcabanilla/gridseer/internal/agent/telemetry"
	"github.com/rcabanilla/gridseer/internal/store"
	"github.com/rcabanilla/gridseer/internal/vectorstore"
	"github.com/rcabanilla/gridseer/provider"
	"github.com/rcabanilla/gridseer/tools/web_search"
)

// Run builds the full service from configuration and serves HTTP until the
// listener fails.
func Run(cfg *appconfig.Config) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type"},
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	ctx := context.Background()

	dsn, err := cfg.Storage.Postgres.DSN()
	if err != nil {
		return err
	}
	if err := Migrate("file://migrations", dsn, "up", 0); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations failed: %w", err)
	}

	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	embedder, err := provider.NewEmbedder(cfg.LLM.Embedding)
	if err != nil {
		return err
	}
	vectors, err := vectorstore.NewClient(cfg.Vector, embedder)
	if err != nil {
		return err
	}
	if err := vectors.EnsureCollection(ctx); err != nil {
		return err
	}

	searchLogger := log.New(log.Writer(), "[SEARCH] ", log.LstdFlags)
	searcher, err := web_search.NewEnergySearcher(cfg.Search, searchLogger)
	if err != nil {
		return err
	}

	llm, err := agentcore.NewLLMProvider(cfg.LLM)
	if err != nil {
		return err
	}

	tele := agenttele.NewTelemetry(cfg.Telemetry)
	registry := agentcore.DefaultRegistry()
	dispatchLogger := log.New(log.Writer(), "[DISPATCH] ", log.LstdFlags)
	dispatcher := agentcore.NewDispatcher(registry, searcher, vectors, st, dispatchLogger, tele, cfg.Agent.ToolTimeout)

	orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	orch, err := agentcore.NewOrchestrator(cfg, orchLogger, tele, registry, dispatcher, llm)
	if err != nil {
		return err
	}

	cache := NewResponseCache(ctx, cfg.Storage.Redis, baseLogger)

	handler := &AnalyzeHandler{Orchestrator: orch, Cache: cache, Logger: baseLogger}
	handler.Register(e)

	return e.Start(cfg.Server.Address)
}

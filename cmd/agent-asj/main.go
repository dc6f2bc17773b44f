package main

import (
	"fmt"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/spencerpeyrot/agent-asj/internal/agent"
	"github.com/spencerpeyrot/agent-asj/internal/api"
	"github.com/spencerpeyrot/agent-asj/internal/config"
	"github.com/spencerpeyrot/agent-asj/internal/domain"
	"github.com/spencerpeyrot/agent-asj/internal/generation"
	"github.com/spencerpeyrot/agent-asj/internal/llm"
	"github.com/spencerpeyrot/agent-asj/internal/logger"
	"github.com/spencerpeyrot/agent-asj/internal/newsletter"
	memstore "github.com/spencerpeyrot/agent-asj/internal/store/memory"
	sqlitestore "github.com/spencerpeyrot/agent-asj/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetLevel(cfg.Log.Level)

	var store domain.SessionStore
	switch cfg.Storage.Backend {
	case "sqlite":
		s, err := sqlitestore.Open(cfg.Storage.Path)
		if err != nil {
			logger.L.Error("failed to open sqlite store", "path", cfg.Storage.Path, "error", err)
			os.Exit(1)
		}
		defer s.Close()
		store = s
		logger.L.Info("using sqlite session store", "path", cfg.Storage.Path)
	default:
		store = memstore.New()
		logger.L.Info("using in-memory session store")
	}

	// The generation client is constructed once here and handed to the
	// orchestrator; tests substitute a stub through the same seam.
	backend := llm.NewClient(cfg.LLM)
	generator := generation.New(backend, cfg.LLM)

	orchestrator := agent.New(store, generator, newsletter.NewEngine())

	e := echo.New()
	e.HideBanner = true
	api.NewHandler(orchestrator).Register(e)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", addr,
		"model", cfg.LLM.Model, "fallback_model", cfg.LLM.FallbackModel)
	if err := e.Start(addr); err != nil {
		logger.L.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/catalog"
	"github.com/coloc-game/backend/internal/config"
	"github.com/coloc-game/backend/internal/engine"
	"github.com/coloc-game/backend/internal/httpapi"
	"github.com/coloc-game/backend/internal/relay"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(cfg.Dev)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync() //nolint:errcheck

	cat, err := catalog.Load()
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}
	logger.Info("catalog loaded",
		zap.Int("cards", len(cat.Cards)),
		zap.Int("experiments", len(cat.Experiments)))

	ctx := context.Background()
	r := relay.New(ctx, engine.NewState(), logger)

	// Build the router *with* the relay injected
	handler := httpapi.SetupRoutes(r, cat, cfg.PublicURL, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, handler); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/coloc-game/backend/internal/catalog"
	"github.com/coloc-game/backend/internal/relay"
	"github.com/coloc-game/backend/internal/ws"
)

func SetupRoutes(r *relay.Relay, cat *catalog.Catalog, publicURL string, log *zap.Logger) http.Handler {
	router := chi.NewRouter()

	// Public routes
	router.Get("/healthz", Healthz)
	router.Get("/ws", ws.Handler(r, log))
	router.Get("/catalog/cards", serveJSON(cat.Cards))
	router.Get("/catalog/experiments", serveJSON(cat.Experiments))
	router.Get("/catalog/review-issues", serveJSON(cat.ReviewIssues))
	router.Get("/catalog/review-details", serveJSON(cat.ReviewDetails))
	router.Get("/sessions/{code}/qr.png", JoinQR(r, publicURL, log))
	return router
}

package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tokendrop/internal/adapter/usecase"
)

// Handler contains dependencies and routes. It is an inbound adapter for
// HTTP. It holds the campaign engine to execute business logic and a
// logger for structured logging. Routes are registered on a chi.Router
// for convenient method handling.
type Handler struct {
	engine *usecase.Engine
	logger *slog.Logger
	router chi.Router
}

// NewHandler creates a handler with all routes configured. The returned
// Handler registers handlers for each endpoint on a new chi.Router.
func NewHandler(engine *usecase.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{engine: engine, logger: logger}
	r := chi.NewRouter()

	r.Route("/api/v1/campaigns", func(r chi.Router) {
		r.Post("/", h.handleCreateCampaign)
		r.Get("/", h.handleListCampaigns)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.handleCampaignDetails)
			r.Get("/recipients", h.handleRecipients)
			r.Get("/transactions", h.handleTransactions)
			r.Get("/balance", h.handleBalance)

			r.Post("/fund", h.handleFund)
			r.Post("/deploy-contract", h.handleDeployContract)
			r.Post("/ready", h.handleReady)
			r.Post("/start", h.handleStart)
			r.Post("/pause", h.handlePause)
			r.Post("/resume", h.handleResume)
			r.Post("/retry-failed", h.handleRetryFailed)
			r.Post("/withdraw/tokens", h.handleWithdrawTokens)
			r.Post("/withdraw/native", h.handleWithdrawNative)
			r.Post("/export-key", h.handleExportKey)
		})
	})
	h.router = r
	return h
}

// Router returns the underlying http.Handler.
func (h *Handler) Router() http.Handler {
	return h.router
}

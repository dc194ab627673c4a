package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tokendrop/internal/core/domain"
)

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", slog.Any("error", err))
	}
}

// respondError maps domain errors onto HTTP statuses: unknown resources
// return 404, illegal lifecycle moves and precondition failures 409, and
// everything else 500. The error text is passed through for 4xx only.
func (h *Handler) respondError(w http.ResponseWriter, err error) {
	var invalid *domain.InvalidTransitionError
	switch {
	case errors.Is(err, domain.ErrCampaignNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrWalletNotFound):
		h.writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &invalid),
		errors.Is(err, domain.ErrNotFunded),
		errors.Is(err, domain.ErrContractMissing):
		h.writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnsupportedChain),
		errors.Is(err, domain.ErrNoRecipients),
		domain.CodeOf(err) == domain.CodeMalformedAddress:
		h.writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		h.logger.Error("internal error", slog.Any("error", err))
		h.writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

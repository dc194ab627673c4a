package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleFund checks the campaign wallet balance and moves the campaign to
// funded. A balance below the remaining total produces HTTP 409.
func (h *Handler) handleFund(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.engine.MarkFunded(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "funded"})
}

// handleDeployContract deploys the batch-transfer helper for an EVM
// campaign. Idempotent.
func (h *Handler) handleDeployContract(w http.ResponseWriter, r *http.Request) {
	contract, err := h.engine.DeployContract(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"contract": contract})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.MarkReady(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Start(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sending"})
}

// handlePause requests a stop after the in-flight batch. The campaign
// keeps sending until that batch's outcome is recorded, so the response
// acknowledges the request rather than the new state.
func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Pause(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "pause requested"})
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Resume(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": "sending"})
}

func (h *Handler) handleRetryFailed(w http.ResponseWriter, r *http.Request) {
	n, err := h.engine.RetryFailedTransactions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"reset": n})
}

type withdrawRequest struct {
	To string `json:"to"`
}

func (h *Handler) handleWithdrawTokens(w http.ResponseWriter, r *http.Request) {
	h.handleWithdraw(w, r, h.engine.WithdrawTokens)
}

func (h *Handler) handleWithdrawNative(w http.ResponseWriter, r *http.Request) {
	h.handleWithdraw(w, r, h.engine.WithdrawNative)
}

func (h *Handler) handleWithdraw(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, campaignID, to string) (string, error)) {
	var req withdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.To == "" {
		http.Error(w, "destination address is required", http.StatusBadRequest)
		return
	}
	txRef, err := fn(r.Context(), chi.URLParam(r, "id"), req.To)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"tx_ref": txRef})
}

// handleExportKey returns the campaign wallet's private key. The endpoint
// exports one campaign at a time; there is no export-all.
func (h *Handler) handleExportKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.engine.ExportPrivateKey(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"private_key": key})
}

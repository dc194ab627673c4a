package httpadapter

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tokendrop/internal/adapter/usecase"
	"tokendrop/internal/core/domain"
	"tokendrop/internal/core/port"
)

type recipientInput struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type createCampaignRequest struct {
	Name          string           `json:"name"`
	ChainFamily   string           `json:"chain_family"`
	ChainID       string           `json:"chain_id"`
	TokenAddress  string           `json:"token_address"`
	TokenSymbol   string           `json:"token_symbol"`
	TokenDecimals int32            `json:"token_decimals"`
	Recipients    []recipientInput `json:"recipients"`
}

type campaignResponse struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ChainFamily     string    `json:"chain_family"`
	ChainID         string    `json:"chain_id"`
	TokenAddress    string    `json:"token_address,omitempty"`
	TokenSymbol     string    `json:"token_symbol,omitempty"`
	Status          string    `json:"status"`
	TotalRecipients int       `json:"total_recipients"`
	Completed       int       `json:"completed"`
	Failed          int       `json:"failed"`
	Pending         int       `json:"pending"`
	Progress        int       `json:"progress"`
	WalletAddress   string    `json:"wallet_address"`
	BatchContract   string    `json:"batch_contract,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toCampaignResponse(c *domain.Campaign) campaignResponse {
	return campaignResponse{
		ID:              c.ID,
		Name:            c.Name,
		ChainFamily:     string(c.Chain.Family),
		ChainID:         c.Chain.ChainID,
		TokenAddress:    c.Token.Address,
		TokenSymbol:     c.Token.Symbol,
		Status:          string(c.Status),
		TotalRecipients: c.TotalRecipients,
		Completed:       c.Completed,
		Failed:          c.Failed,
		Pending:         c.Pending,
		Progress:        c.Progress(),
		WalletAddress:   c.WalletAddress,
		BatchContract:   c.BatchContract,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// handleCreateCampaign creates a campaign with its recipient list and an
// isolated funding wallet. Parsing errors produce HTTP 400; the created
// campaign is returned with HTTP 201.
func (h *Handler) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	in := usecase.CreateCampaignInput{
		Name: req.Name,
		Chain: domain.ChainRef{
			Family:  domain.ChainFamily(req.ChainFamily),
			ChainID: req.ChainID,
		},
		Token: domain.TokenRef{
			Address:  req.TokenAddress,
			Symbol:   req.TokenSymbol,
			Decimals: req.TokenDecimals,
		},
		Recipients: make([]usecase.RecipientInput, 0, len(req.Recipients)),
	}
	for _, rec := range req.Recipients {
		in.Recipients = append(in.Recipients, usecase.RecipientInput{
			Address: rec.Address,
			Amount:  rec.Amount,
		})
	}
	c, err := h.engine.CreateCampaign(r.Context(), in)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toCampaignResponse(c))
}

func (h *Handler) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.engine.ListCampaigns(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]campaignResponse, 0, len(campaigns))
	for i := range campaigns {
		out = append(out, toCampaignResponse(&campaigns[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

// handleCampaignDetails returns the campaign with counters reconciled
// against the recipient ledger.
func (h *Handler) handleCampaignDetails(w http.ResponseWriter, r *http.Request) {
	c, err := h.engine.GetDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toCampaignResponse(c))
}

type recipientResponse struct {
	ID        string `json:"id"`
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	TxRef     string `json:"tx_ref,omitempty"`
	FeeShare  string `json:"fee_share,omitempty"`
	ErrorCode string `json:"error_code,omitempty"`
	ErrorText string `json:"error_text,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (h *Handler) handleRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.engine.GetRecipients(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]recipientResponse, 0, len(recipients))
	for _, rec := range recipients {
		resp := recipientResponse{
			ID:        rec.ID,
			Address:   rec.Address,
			Amount:    rec.Amount.String(),
			Status:    string(rec.Status),
			TxRef:     rec.TxRef,
			ErrorCode: rec.ErrorCode,
			ErrorText: rec.ErrorText,
			Retryable: rec.Retryable,
		}
		if rec.FeeShare.IsPositive() {
			resp.FeeShare = rec.FeeShare.String()
		}
		out = append(out, resp)
	}
	h.writeJSON(w, http.StatusOK, out)
}

type transactionResponse struct {
	ID             string    `json:"id"`
	TxRef          string    `json:"tx_ref"`
	Status         string    `json:"status"`
	Fee            string    `json:"fee"`
	RecipientCount int       `json:"recipient_count"`
	ErrorText      string    `json:"error_text,omitempty"`
	SubmittedAt    time.Time `json:"submitted_at"`
}

// handleTransactions lists submission attempts. It accepts optional
// `status` and `since` (RFC3339) query parameters. Invalid parameters
// result in HTTP 400.
func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	var (
		q      = r.URL.Query()
		filter port.TxFilter
	)
	if s := q.Get("status"); s != "" {
		filter.Status = domain.TxStatus(s)
	}
	if s := q.Get("since"); s != "" {
		since, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid 'since' timestamp", http.StatusBadRequest)
			return
		}
		filter.Since = since
	}
	records, err := h.engine.GetTransactions(r.Context(), chi.URLParam(r, "id"), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	out := make([]transactionResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, transactionResponse{
			ID:             rec.ID,
			TxRef:          rec.TxRef,
			Status:         string(rec.Status),
			Fee:            rec.Fee.String(),
			RecipientCount: rec.RecipientCount,
			ErrorText:      rec.ErrorText,
			SubmittedAt:    rec.SubmittedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	balances, err := h.engine.GetBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{
		"native": balances.Native.String(),
		"token":  balances.Token.String(),
	})
}

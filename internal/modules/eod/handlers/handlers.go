// Package handlers provides HTTP handlers for end-of-day batch runs.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/eod"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// Handler handles batch HTTP requests
type Handler struct {
	service  *eod.Service
	accounts *accounts.Repository
	log      zerolog.Logger
}

// NewHandler creates a new batch handler
func NewHandler(
	service *eod.Service,
	accountsRepo *accounts.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		service:  service,
		accounts: accountsRepo,
		log:      log.With().Str("handler", "eod").Logger(),
	}
}

// BatchRequest is the body of POST /api/eod/batches
type BatchRequest struct {
	Account string `json:"account"`
	Date    string `json:"date"`
	BaseDir string `json:"base_dir"` // must lie under the configured extract dir
}

// HandleProcessBatch handles POST /api/eod/batches
func (h *Handler) HandleProcessBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" || req.Date == "" {
		http.Error(w, "account and date are required", http.StatusBadRequest)
		return
	}

	summary, err := h.service.ProcessAccount(r.Context(), req.Account, req.Date, req.BaseDir)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("account", req.Account).Str("date", req.Date).Msg("Batch failed")
		}
		http.Error(w, err.Error(), status)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": summary,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleListRuns handles GET /api/eod/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	externalID := r.URL.Query().Get("account")
	if externalID == "" {
		http.Error(w, "account is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	acct, err := h.accounts.GetByExternalID(r.Context(), externalID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up account")
		http.Error(w, "Failed to look up account", http.StatusInternalServerError)
		return
	}
	if acct == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	runs, err := h.service.Runs().List(r.Context(), acct.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":  runs,
			"count": len(runs),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, accounts.ErrInvalidAccount), errors.Is(err, utils.ErrInvalidDate),
		errors.Is(err, eod.ErrBaseDirOutsideRoot):
		return http.StatusBadRequest
	case errors.Is(err, eod.ErrBatchLocked):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

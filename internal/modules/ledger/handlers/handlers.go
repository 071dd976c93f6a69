// Package handlers provides read-only HTTP views over the ledger stores.
package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/eodledger/internal/modules/accounts"
	"github.com/aristath/eodledger/internal/modules/aggregates"
	"github.com/aristath/eodledger/internal/modules/ledger"
	"github.com/aristath/eodledger/internal/modules/trades"
	"github.com/aristath/eodledger/internal/utils"
	"github.com/rs/zerolog"
)

// Handler handles ledger HTTP requests
type Handler struct {
	accounts   *accounts.Repository
	executions *ledger.ExecutionRepository
	trades     *trades.RealizedTradeRepository
	equity     *aggregates.EquityRepository
	summaries  *aggregates.SummaryRepository
	flags      *aggregates.RiskFlagRepository
	loc        *time.Location
	log        zerolog.Logger
}

// NewHandler creates a new ledger handler
func NewHandler(
	ledgerDB *sql.DB,
	loc *time.Location,
	log zerolog.Logger,
) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		accounts:   accounts.NewRepository(ledgerDB, log),
		executions: ledger.NewExecutionRepository(ledgerDB, log),
		trades:     trades.NewRealizedTradeRepository(ledgerDB, log),
		equity:     aggregates.NewEquityRepository(ledgerDB, log),
		summaries:  aggregates.NewSummaryRepository(ledgerDB, log),
		flags:      aggregates.NewRiskFlagRepository(ledgerDB, log),
		loc:        loc,
		log:        log.With().Str("handler", "ledger").Logger(),
	}
}

// executionView is the JSON shape of a stored execution.
type executionView struct {
	ExternalID      string `json:"external_execution_id"`
	ExternalOrderID string `json:"external_order_id,omitempty"`
	InstrumentID    string `json:"instrument_id"`
	Side            string `json:"side"`
	Quantity        string `json:"quantity"`
	Price           string `json:"price"`
	Commission      string `json:"commission"`
	Fees            string `json:"fees"`
	Currency        string `json:"currency,omitempty"`
	FilledAt        string `json:"filled_at"`
	ArrivalSeq      int64  `json:"arrival_seq"`
	SourceFile      string `json:"source_file"`
	RawHash         string `json:"raw_hash"`
}

// HandleGetRealizedTrades handles GET /api/ledger/realized-trades
func (h *Handler) HandleGetRealizedTrades(w http.ResponseWriter, r *http.Request) {
	acct, date, ok := h.accountAndDate(w, r)
	if !ok {
		return
	}

	dayTrades, err := h.trades.ListByExitWindow(r.Context(), acct.ID, date.Window(h.loc))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query realized trades")
		http.Error(w, "Failed to query realized trades", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"trades": dayTrades,
		"count":  len(dayTrades),
		"date":   date.String(),
	})
}

// HandleGetDailyEquity handles GET /api/ledger/daily-equity
func (h *Handler) HandleGetDailyEquity(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.account(w, r)
	if !ok {
		return
	}

	points, err := h.equity.List(r.Context(), acct.ID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query daily equity")
		http.Error(w, "Failed to query daily equity", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"points": points,
		"count":  len(points),
	})
}

// HandleGetDailySummary handles GET /api/ledger/daily-summary
func (h *Handler) HandleGetDailySummary(w http.ResponseWriter, r *http.Request) {
	acct, date, ok := h.accountAndDate(w, r)
	if !ok {
		return
	}

	summary, err := h.summaries.Get(r.Context(), acct.ID, date)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query daily summary")
		http.Error(w, "Failed to query daily summary", http.StatusInternalServerError)
		return
	}
	if summary == nil {
		http.Error(w, "No summary for date", http.StatusNotFound)
		return
	}

	flags, err := h.flags.Get(r.Context(), acct.ID, date)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query risk flags")
		http.Error(w, "Failed to query risk flags", http.StatusInternalServerError)
		return
	}

	h.writeData(w, map[string]interface{}{
		"summary":    summary,
		"risk_flags": flags,
	})
}

// HandleGetExecutions handles GET /api/ledger/executions
func (h *Handler) HandleGetExecutions(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.account(w, r)
	if !ok {
		return
	}

	limit := 100 // default
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}

	records, err := h.executions.ListRecent(r.Context(), acct.ID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query executions")
		http.Error(w, "Failed to query executions", http.StatusInternalServerError)
		return
	}

	views := make([]executionView, 0, len(records))
	for _, rec := range records {
		views = append(views, executionView{
			ExternalID:      rec.ExternalID,
			ExternalOrderID: rec.ExternalOrderID,
			InstrumentID:    rec.InstrumentID,
			Side:            string(rec.Side),
			Quantity:        rec.Quantity.String(),
			Price:           rec.Price.String(),
			Commission:      rec.Commission.String(),
			Fees:            rec.Fees.String(),
			Currency:        rec.Currency,
			FilledAt:        rec.FilledAt.UTC().Format(time.RFC3339),
			ArrivalSeq:      rec.ArrivalSeq,
			SourceFile:      rec.SourceFile,
			RawHash:         rec.Hash,
		})
	}

	h.writeData(w, map[string]interface{}{
		"executions": views,
		"count":      len(views),
	})
}

// account resolves the ?account= parameter, writing the error response on failure.
func (h *Handler) account(w http.ResponseWriter, r *http.Request) (*accounts.Account, bool) {
	externalID := r.URL.Query().Get("account")
	if externalID == "" {
		http.Error(w, "account is required", http.StatusBadRequest)
		return nil, false
	}

	acct, err := h.accounts.GetByExternalID(r.Context(), externalID)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to look up account")
		http.Error(w, "Failed to look up account", http.StatusInternalServerError)
		return nil, false
	}
	if acct == nil {
		http.Error(w, "Account not found", http.StatusNotFound)
		return nil, false
	}
	return acct, true
}

func (h *Handler) accountAndDate(w http.ResponseWriter, r *http.Request) (*accounts.Account, utils.Date, bool) {
	date, err := utils.NormalizeDate(r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, utils.Date{}, false
	}
	acct, ok := h.account(w, r)
	return acct, date, ok
}

func (h *Handler) writeData(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

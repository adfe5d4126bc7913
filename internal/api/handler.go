package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"stock-analyzer/config"
	"stock-analyzer/models"
	"stock-analyzer/pipeline"
	"stock-analyzer/repository"
	"stock-analyzer/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// MaxSymbolsPerRequest bounds a synchronous analyze request
const MaxSymbolsPerRequest = 20

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.-]+$`)

// Store defines the repository operations the API reads from
type Store interface {
	Health(ctx context.Context) error
	ListStocks(ctx context.Context) ([]models.Stock, error)
	GetStockByTicker(ctx context.Context, ticker string) (*models.Stock, error)
	GetLatestAnalysis(ctx context.Context, ticker string) (*models.StockAnalysis, error)
	GetAnalysisHistory(ctx context.Context, ticker string, limit int) ([]models.StockAnalysis, error)
	InvalidateAllCacheForSymbol(ctx context.Context, symbol string) error
}

// Handler handles HTTP API requests
type Handler struct {
	store    Store
	runner   pipeline.BatchRunner
	cfg      *config.Config
	validate *validator.Validate
}

// NewHandler creates a new Handler. store may be nil when no database is configured.
func NewHandler(store Store, runner pipeline.BatchRunner, cfg *config.Config) *Handler {
	return &Handler{store: store, runner: runner, cfg: cfg, validate: validator.New()}
}

// HandleHealth returns the health status of the service
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	svc := map[string]string{"database": "not_configured"}
	status := map[string]interface{}{
		"status":   "ok",
		"services": svc,
	}

	if h.store != nil {
		if err := h.store.Health(r.Context()); err == nil {
			svc["database"] = "connected"
		} else {
			svc["database"] = "disconnected"
			status["status"] = "degraded"
		}
	}

	registry := services.GetGlobalRegistry()
	status["circuit_breakers"] = registry.Status()
	if open := registry.OpenBreakers(); len(open) > 0 {
		status["status"] = "degraded"
		status["open_breakers"] = open
	}

	h.jsonResponse(w, status)
}

// HandleListStocks returns every stock that has been analyzed
func (h *Handler) HandleListStocks(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	stocks, err := h.store.ListStocks(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"stocks": stocks,
		"count":  len(stocks),
	})
}

// HandleGetStock returns a single stock
func (h *Handler) HandleGetStock(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok || !h.requireStore(w) {
		return
	}
	stock, err := h.store.GetStockByTicker(r.Context(), symbol)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.jsonResponse(w, stock)
}

// HandleGetLatestAnalysis returns the most recent analysis for a stock
func (h *Handler) HandleGetLatestAnalysis(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok || !h.requireStore(w) {
		return
	}
	analysis, err := h.store.GetLatestAnalysis(r.Context(), symbol)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.jsonResponse(w, analysis)
}

// HandleGetAnalysisHistory returns past analyses for a stock, newest first
func (h *Handler) HandleGetAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok || !h.requireStore(w) {
		return
	}
	limit := h.ParseLimitParam(r, 20)

	analyses, err := h.store.GetAnalysisHistory(r.Context(), symbol, limit)
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"symbol":   symbol,
		"analyses": analyses,
		"count":    len(analyses),
	})
}

// HandleInvalidateCache drops every cached provider response for a stock
func (h *Handler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	symbol, ok := h.symbolParam(w, r)
	if !ok || !h.requireStore(w) {
		return
	}
	if err := h.store.InvalidateAllCacheForSymbol(r.Context(), symbol); err != nil {
		h.storeError(w, err)
		return
	}
	h.jsonResponse(w, map[string]string{"status": "invalidated", "symbol": symbol})
}

// AnalyzeRequest is the body of POST /api/analyze
type AnalyzeRequest struct {
	Symbol  string   `json:"symbol"`
	Symbols []string `json:"symbols" validate:"max=20,dive,required"`
}

// HandleAnalyze runs the analysis pipeline synchronously for the requested symbols
func (h *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest

	contentType := r.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "Invalid JSON body", http.StatusBadRequest)
			return
		}
	} else {
		_ = r.ParseForm()
		req.Symbol = r.FormValue("symbol")
		req.Symbols = r.Form["symbols"]
	}

	if req.Symbol != "" {
		req.Symbols = append(req.Symbols, req.Symbol)
	}
	req.Symbols = pipeline.NormalizeSymbols(req.Symbols)

	if len(req.Symbols) == 0 {
		h.jsonError(w, "Symbol is required", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.jsonError(w, fmt.Sprintf("too many symbols (max %d)", MaxSymbolsPerRequest), http.StatusBadRequest)
		return
	}
	for _, s := range req.Symbols {
		if err := h.ValidateSymbol(s); err != nil {
			h.jsonError(w, fmt.Sprintf("%s: %v", s, err), http.StatusBadRequest)
			return
		}
	}

	if h.runner == nil {
		h.jsonError(w, "analysis pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	summary := h.runner.Run(r.Context(), req.Symbols)

	status := http.StatusOK
	if len(summary.Results) > 0 && summary.Succeeded() == 0 {
		status = http.StatusBadGateway
	}
	h.jsonResponseWithStatus(w, summary, status)
}

// ValidateSymbol validates a stock symbol
func (h *Handler) ValidateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if len(symbol) > 10 {
		return fmt.Errorf("symbol too long (max 10 characters)")
	}

	if !symbolPattern.MatchString(symbol) {
		return fmt.Errorf("invalid symbol format (alphanumeric, dots, and dashes only)")
	}

	return nil
}

// ParseLimitParam parses the limit query parameter with a default value
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) symbolParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "symbol")))
	if err := h.ValidateSymbol(symbol); err != nil {
		h.jsonError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return symbol, true
}

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		h.jsonError(w, "database not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.jsonError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, repository.ErrDatabaseNotConfigured):
		h.jsonError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
	}
}

// jsonResponse writes a JSON response
func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	h.jsonResponseWithStatus(w, data, http.StatusOK)
}

func (h *Handler) jsonResponseWithStatus(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// jsonError writes a JSON error response
func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/kgrenier/indicator-pipeline/internal/cache"
	"github.com/kgrenier/indicator-pipeline/internal/database"
	"github.com/kgrenier/indicator-pipeline/internal/models"
	"github.com/kgrenier/indicator-pipeline/internal/pipeline"
)

const defaultRowLimit = 100

// Handler holds dependencies for HTTP handlers
type Handler struct {
	db       *database.DB
	cache    *cache.Client
	pipeline *pipeline.Pipeline
}

// NewHandler creates a new Handler. The cache may be nil, in which case
// latest-row reads always go to the database.
func NewHandler(db *database.DB, c *cache.Client, p *pipeline.Pipeline) *Handler {
	return &Handler{
		db:       db,
		cache:    c,
		pipeline: p,
	}
}

// GetAllInstruments handles GET /instruments
func (h *Handler) GetAllInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := h.db.GetAllInstruments()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, instruments)
}

// AddInstrument handles POST /instruments
func (h *Handler) AddInstrument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol    string `json:"symbol"`
		Timeframe string `json:"timeframe"`
		Notes     string `json:"notes"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = models.TimeframeDaily
	}

	instrument := &models.Instrument{
		Symbol:    strings.ToUpper(req.Symbol),
		Timeframe: req.Timeframe,
		Enabled:   true,
		Notes:     req.Notes,
	}
	if err := h.db.CreateInstrument(instrument); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusCreated, instrument)
}

// RemoveInstrument handles DELETE /instruments/{symbol}
func (h *Handler) RemoveInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := timeframeParam(r)

	if err := h.db.DeleteInstrument(symbol, timeframe); err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), symbol, timeframe); err != nil {
			log.Printf("Failed to invalidate cache for %s %s: %v", symbol, timeframe, err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetIndicators handles GET /instruments/{symbol}/indicators
func (h *Handler) GetIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := timeframeParam(r)
	limit := limitParam(r)

	rows, err := h.db.GetIndicatorRows(symbol, timeframe, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, models.IndicatorSet{
		Symbol:    symbol,
		Timeframe: timeframe,
		Rows:      rows,
	})
}

// GetLatestIndicators handles GET /instruments/{symbol}/indicators/latest.
// Reads through the cache; on a miss the row is loaded from the database
// and written back.
func (h *Handler) GetLatestIndicators(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := timeframeParam(r)

	if h.cache != nil {
		row, err := h.cache.GetLatest(r.Context(), symbol, timeframe)
		if err == nil {
			respondJSON(w, http.StatusOK, row)
			return
		}
		if err != cache.ErrMiss {
			log.Printf("Cache read failed for %s %s: %v", symbol, timeframe, err)
		}
	}

	row, err := h.db.GetLatestIndicatorRow(symbol, timeframe)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetLatest(r.Context(), symbol, timeframe, row); err != nil {
			log.Printf("Cache write failed for %s %s: %v", symbol, timeframe, err)
		}
	}

	respondJSON(w, http.StatusOK, row)
}

// GetBars handles GET /instruments/{symbol}/bars
func (h *Handler) GetBars(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := timeframeParam(r)
	limit := limitParam(r)

	bars, err := h.db.GetRecentPriceBars(symbol, timeframe, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, bars)
}

// RefreshInstrument handles POST /instruments/{symbol}/refresh
func (h *Handler) RefreshInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	timeframe := timeframeParam(r)

	if h.pipeline == nil {
		http.Error(w, "refresh pipeline not configured", http.StatusServiceUnavailable)
		return
	}

	if err := h.pipeline.RefreshPair(r.Context(), symbol, timeframe); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	count, err := h.db.CountIndicatorRows(symbol, timeframe)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"symbol":    symbol,
		"timeframe": timeframe,
		"rows":      count,
	})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(); err != nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func timeframeParam(r *http.Request) string {
	if tf := r.URL.Query().Get("timeframe"); tf != "" {
		return tf
	}
	return models.TimeframeDaily
}

func limitParam(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultRowLimit
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

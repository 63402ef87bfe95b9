package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Instrument routes
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/instruments", handler.GetAllInstruments).Methods("GET")
	api.HandleFunc("/instruments", handler.AddInstrument).Methods("POST")
	api.HandleFunc("/instruments/{symbol}", handler.RemoveInstrument).Methods("DELETE")
	api.HandleFunc("/instruments/{symbol}/bars", handler.GetBars).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/indicators", handler.GetIndicators).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/indicators/latest", handler.GetLatestIndicators).Methods("GET")
	api.HandleFunc("/instruments/{symbol}/refresh", handler.RefreshInstrument).Methods("POST")

	return r
}

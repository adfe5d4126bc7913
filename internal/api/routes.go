package api

import (
	"net/http"
	"time"

	"stock-analyzer/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Pipeline.TimeoutSec) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(ObserveMiddleware)
	r.Use(LimitBody(maxRequestBody))

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HandleHealth)

		// Analysis
		r.Post("/analyze", h.HandleAnalyze)

		// Stocks
		r.Route("/stocks", func(r chi.Router) {
			r.Get("/", h.HandleListStocks)
			r.Route("/{symbol}", func(r chi.Router) {
				r.Get("/", h.HandleGetStock)
				r.Get("/analyses", h.HandleGetAnalysisHistory)
				r.Get("/analyses/latest", h.HandleGetLatestAnalysis)
				r.Delete("/cache", h.HandleInvalidateCache)
			})
		})
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bokzor/revenue-boost/internal/service"
	"github.com/bokzor/revenue-boost/pkg/health"
	"github.com/bokzor/revenue-boost/pkg/middleware"
)

// RouterConfig bundles the dependencies for route registration.
type RouterConfig struct {
	IssuanceService  *service.IssuanceService
	HealthHandler    *health.Handler
	SessionValidator middleware.SessionValidator
	Logger           *slog.Logger
	TracingEnabled   bool
}

// NewRouter creates a chi router with all issuance service routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware. CORS comes first so preflights never hit auth.
	r.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(cfg.Logger))
	r.Use(middleware.PrometheusMetrics("issuance"))
	if cfg.TracingEnabled {
		r.Use(middleware.Tracing("issuance"))
	}

	// Health check endpoints
	r.Get("/health/live", cfg.HealthHandler.LivenessHandler())
	r.Get("/health/ready", cfg.HealthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	handler := NewIssuanceHandler(cfg.IssuanceService, cfg.Logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.StorefrontSession(cfg.SessionValidator))

		r.Post("/discounts/issue", handler.IssueDiscount)
		r.Get("/campaigns/{id}/discount", handler.GetCampaignDiscount)
	})

	return r
}

// ContentTypeJSON sets the response content type to application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

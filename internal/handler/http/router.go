package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cartify/cartify/internal/service"
	"github.com/cartify/cartify/pkg/health"
	"github.com/cartify/cartify/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the HTTP layer.
const ServiceName = "address-service"

// NewRouter creates a chi router with all address service routes registered.
func NewRouter(
	addressService *service.AddressService,
	tokenValidator middleware.TokenValidator,
	healthHandler *health.Handler,
	logger *slog.Logger,
	corsConfig middleware.CORSConfig,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	addressHandler := NewAddressHandler(addressService, logger)

	r.Route("/api/v1/addresses", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.Auth(tokenValidator))
		r.Use(middleware.RequestLogger(logger))

		r.Get("/", addressHandler.List)
		r.Post("/", addressHandler.Create)
		r.Get("/{id}", addressHandler.Get)
		r.Put("/{id}", addressHandler.Update)
		r.Delete("/{id}", addressHandler.Delete)
		r.Put("/{id}/default", addressHandler.SetDefault)
		r.Put("/{id}/current", addressHandler.SetCurrent)
	})

	return r
}

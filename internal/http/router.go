package httpserver

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/iago/reports-back/internal/http/handlers"
	"github.com/iago/reports-back/internal/http/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type RouterDependencies struct {
	API            *handlers.API
	Logger         *zap.Logger
	Gatherer       prometheus.Gatherer
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the middleware chain and routes. ctx bounds background
// work owned by the middleware.
func NewRouter(ctx context.Context, deps RouterDependencies) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Trace(deps.Logger))
	router.Use(chimw.Recoverer)

	router.Get("/healthz", deps.API.Health)
	if deps.Gatherer != nil {
		router.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(ctx, deps.RateLimitRPS, deps.RateLimitBurst))

		r.Get("/reports/{type}", deps.API.Report)
		r.Post("/reports/comparison", deps.API.Compare)

		r.Route("/exports", func(r chi.Router) {
			r.Post("/", deps.API.CreateExport)
			r.Get("/", deps.API.ListExports)
			r.Get("/{id}", deps.API.GetExport)
			r.Get("/{id}/download", deps.API.DownloadExport)
			r.Post("/{id}/cancel", deps.API.CancelExport)
			r.Delete("/{id}", deps.API.DeleteExport)
		})
	})

	return router
}

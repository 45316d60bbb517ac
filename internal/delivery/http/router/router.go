package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tchan1002/apache/internal/delivery/http/handler"
	"github.com/tchan1002/apache/internal/delivery/http/middleware"
	"github.com/tchan1002/apache/pkg/metrics"
)

// requestTimeout bounds every route except scouting, which follows a whole crawl.
const requestTimeout = 60 * time.Second

func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/scout", h.HandleScout)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(requestTimeout))
			r.Get("/state", h.HandleGetState)
			r.Post("/check", h.HandleCheck)
			r.Post("/navigate", h.HandleNavigate)
			r.Post("/ask", h.HandleAsk)
			r.Post("/source", h.HandleSource)
			r.Post("/feedback", h.HandleFeedback)
		})
	})

	return r
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/finvista/finvista-gateway-go/internal/infra/observability"
	"github.com/finvista/finvista-gateway-go/internal/service"
)

var tracer = otel.Tracer("handler")

// Deps bundles everything the router needs.
type Deps struct {
	Recon   *service.Recon
	Clients *service.Clients
	Reports *service.Reports
	Metrics *observability.Metrics
	Logger  *zap.Logger

	// AllowedOrigins configures CORS for the SPA frontend.
	AllowedOrigins []string
	// JWTSecret enables bearer-token auth on the /v1 API when non-empty.
	JWTSecret string
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(deps.Logger))
	r.Use(observability.RequestMetricsMiddleware(deps.Metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if deps.JWTSecret != "" {
			r.Use(JWTAuthMiddleware(deps.JWTSecret, deps.Logger))
		}

		// Reconciliation sessions
		r.Route("/reconciliation/sessions", func(r chi.Router) {
			r.Post("/", createSessionHandler(deps.Recon, deps.Logger))

			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", getSessionHandler(deps.Recon, deps.Logger))
				r.Get("/candidates", listCandidatesHandler(deps.Recon, deps.Logger))
				r.Post("/candidates/{candidateId}/accept", acceptCandidateHandler(deps.Recon, deps.Logger))
				r.Post("/candidates/{candidateId}/reject", rejectCandidateHandler(deps.Recon, deps.Logger))
				r.Post("/bulk-accept", bulkAcceptHandler(deps.Recon, deps.Logger))
				r.Post("/manual-match", manualMatchHandler(deps.Recon, deps.Logger))
				r.Post("/unmatch", unmatchHandler(deps.Recon, deps.Logger))
				r.Get("/progress", progressHandler(deps.Recon, deps.Logger))
				r.Get("/summary", summaryHandler(deps.Recon, deps.Logger))
				r.Get("/decisions", listDecisionsHandler(deps.Recon, deps.Logger))
				r.Post("/close", closeSessionHandler(deps.Recon, deps.Logger))
				r.Post("/reopen", reopenSessionHandler(deps.Recon, deps.Logger))
			})
		})

		// Client management
		r.Route("/clients", func(r chi.Router) {
			r.Get("/", listClientsHandler(deps.Clients, deps.Logger))
			r.Post("/", createClientHandler(deps.Clients, deps.Logger))
			r.Get("/{clientId}", getClientHandler(deps.Clients, deps.Logger))
			r.Patch("/{clientId}", updateClientHandler(deps.Clients, deps.Logger))
		})

		// Reports
		r.Get("/reports/reconciliation/{sessionId}", reconciliationReportHandler(deps.Reports, deps.Logger))

		// Metrics snapshot
		r.Get("/metrics/reconciliation", reconMetricsHandler(deps.Metrics, deps.Logger))
	})

	return r
}

package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/moleary1107/etownz-grants-sub007/internal/analysis"
	"github.com/moleary1107/etownz-grants-sub007/internal/forms"
	httpmiddleware "github.com/moleary1107/etownz-grants-sub007/internal/http/middleware"
	"github.com/moleary1107/etownz-grants-sub007/internal/recommendations"
	"github.com/moleary1107/etownz-grants-sub007/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger                 *logging.Logger
	SessionsHandler        *forms.Handler
	AnalysisHandler        *analysis.Handler
	RecommendationsHandler *recommendations.Handler

	// AuthSecret signs user bearer tokens. When empty and AllowDevUserHeader
	// is set, X-User-Id identifies the caller instead.
	AuthSecret         string
	AllowDevUserHeader bool

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	MetricsHandler  http.Handler
	MetricsGatherer prometheus.Gatherer
	HealthChecks    map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	r.Route("/api/v1", func(api chi.Router) {
		switch {
		case cfg.AuthSecret != "":
			api.Use(httpmiddleware.UserJWT(cfg.AuthSecret))
		case cfg.AllowDevUserHeader:
			api.Use(requireDevUser)
		default:
			api.Use(httpmiddleware.UserJWT(""))
		}
		if cfg.RateLimitRPS > 0 {
			api.Use(httpmiddleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
		}

		api.Get("/stats", statsHandler(cfg.MetricsGatherer))

		if cfg.SessionsHandler != nil {
			api.Post("/sessions", cfg.SessionsHandler.CreateSession)
			api.Route("/sessions/{sessionID}", func(s chi.Router) {
				s.Get("/", cfg.SessionsHandler.GetSession)
				s.Patch("/", cfg.SessionsHandler.PatchSession)
				s.Get("/interactions", cfg.SessionsHandler.ListInteractions)
				s.Post("/interactions", cfg.SessionsHandler.TrackInteraction)
				if cfg.AnalysisHandler != nil {
					s.Post("/analyze", cfg.AnalysisHandler.Analyze)
					s.Get("/visibility", cfg.AnalysisHandler.GetVisibility)
				}
				if cfg.RecommendationsHandler != nil {
					s.Get("/recommendations", cfg.RecommendationsHandler.ListPending)
				}
			})
		}
		if cfg.RecommendationsHandler != nil {
			api.Post("/recommendations/{recommendationID}/action", cfg.RecommendationsHandler.RecordAction)
		}
	})

	return r
}

package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kumanday/OmniLearn/internal/auth"
	"github.com/kumanday/OmniLearn/internal/service"
	"github.com/kumanday/OmniLearn/pkg/health"
	"github.com/kumanday/OmniLearn/pkg/middleware"
)

// ServiceName labels metrics and spans emitted by the API.
const ServiceName = "omnilearn-api"

// Services groups the application services the router exposes.
type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Trees     *service.KnowledgeTreeService
	Lessons   *service.LessonService
	Questions *service.QuestionService
}

// RouterConfig holds the HTTP edge settings.
type RouterConfig struct {
	Cookie            auth.CookieConfig
	CORSOrigins       []string
	PprofAllowedCIDRs []string
	// Limiter guards the sign-in and generation endpoints. Nil disables
	// rate limiting.
	Limiter *middleware.RateLimiter
}

// NewRouter creates a chi router with all API routes registered.
func NewRouter(svcs Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(ServiceName))

	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.Limiter == nil {
			return h
		}
		return cfg.Limiter.Middleware(h)
	}
	requireAuth := middleware.Auth(sessionAuthenticator(svcs.Auth, logger))

	authHandler := NewAuthHandler(svcs.Auth, cfg.Cookie, logger)
	userHandler := NewUserHandler(svcs.Auth, svcs.Users, logger)
	treeHandler := NewKnowledgeTreeHandler(svcs.Trees, logger)
	lessonHandler := NewLessonHandler(svcs.Lessons, logger)
	questionHandler := NewQuestionHandler(svcs.Questions, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.NoStore)

			r.Method(http.MethodPost, "/register", limited(authHandler.Register))
			r.Method(http.MethodPost, "/login", limited(authHandler.Login))
			r.Method(http.MethodPost, "/google", limited(authHandler.Google))
			r.Post("/logout", authHandler.Logout)
			// Me resolves the session itself.
			r.Get("/me", authHandler.Me)
		})

		r.Method(http.MethodPost, "/users", limited(userHandler.Create))

		// Everything below requires a session.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/users/{id}", func(r chi.Router) {
				r.Use(middleware.NoStore)
				r.Get("/", userHandler.Get)
				r.Get("/progress", userHandler.GetProgress)
				r.Post("/progress", userHandler.UpdateProgress)
			})

			r.Route("/knowledge-tree", func(r chi.Router) {
				r.Method(http.MethodPost, "/", limited(treeHandler.Create))
				r.Get("/", treeHandler.List)
				r.Get("/{id}", treeHandler.Get)
			})

			r.Route("/lessons", func(r chi.Router) {
				r.Method(http.MethodPost, "/", limited(lessonHandler.Create))
				r.Get("/subsection/{subsectionId}", lessonHandler.GetBySubsection)
				r.Get("/{id}", lessonHandler.Get)
			})

			r.Route("/questions", func(r chi.Router) {
				r.Method(http.MethodPost, "/", limited(questionHandler.Create))
				r.Method(http.MethodPost, "/evaluate", limited(questionHandler.Evaluate))
				r.Get("/section/{sectionId}", questionHandler.ListBySection)
			})
		})
	})

	return r
}

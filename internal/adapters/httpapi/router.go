package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterOptions struct {
	// AuthMiddleware guards every route except health and the public auth endpoints.
	AuthMiddleware func(http.Handler) http.Handler
	AllowedOrigins []string
	// LoginLimiter throttles login and signup per client IP. Nil disables it.
	LoginLimiter *IPRateLimiter
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Enable only behind a proxy that overwrites those headers.
	TrustProxyHeaders bool
}

// NewRouter constructs the API HTTP router.
func NewRouter(api *Server, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(requestLogger(api.Log))
	r.Use(middleware.Recoverer)
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", idempotencyKeyHeader, "X-Debug-Subject", "X-Debug-Email"},
			ExposedHeaders:   []string{"Content-Disposition", "Retry-After", idempotentReplayHeader},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed", nil)
	})

	authMW := opts.AuthMiddleware
	if authMW == nil {
		authMW = denyAll
	}

	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if opts.LoginLimiter != nil {
				r.Use(opts.LoginLimiter.Middleware)
			}
			r.Post("/login", api.login)
			r.Post("/signup", api.signup)
		})
		r.Post("/verify", api.verifyEmail)
		r.Post("/resend-verification", api.resendVerification)

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Post("/set-password", api.setPassword)
			r.Post("/logout", api.logout)
			r.Get("/me", api.getMe)
			r.Patch("/me", api.updateMe)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Route("/projects", func(r chi.Router) {
			r.Post("/", api.createProject)
			r.Get("/", api.listProjects)
			r.Get("/{projectID}", api.getProject)
			r.Patch("/{projectID}", api.updateProject)
			r.Delete("/{projectID}", api.deleteProject)
		})

		r.Route("/logs", func(r chi.Router) {
			r.Post("/", api.createLog)
			r.Get("/", api.listLogs)
			r.Get("/export", api.exportLogs)
			r.Get("/{logID}", api.getLog)
			r.Patch("/{logID}", api.updateLog)
			r.Delete("/{logID}", api.deleteLog)
		})

		r.Get("/stats/dashboard", api.dashboard)
	})

	return r
}

func denyAll(http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication is not configured", nil)
	})
}

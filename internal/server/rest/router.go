package rest

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/woodraft/draftauth/internal/logging"
)

// Deps are the collaborators the router dispatches to.
type Deps struct {
	Auth          Authenticator
	Invites       Inviter
	Registrations Registrar
	Gatherer      prometheus.Gatherer
	Logger        logging.Logger
}

// Options tune the middleware stack.
type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
}

// NewRouter builds the HTTP handler for the identity service.
func NewRouter(d Deps, opts Options) http.Handler {
	h := &handler{
		auth:          d.Auth,
		invites:       d.Invites,
		registrations: d.Registrations,
		logger:        d.Logger.With("module", "rest"),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   trimOrigins(opts.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/", h.root)
	r.Get("/healthz", h.healthz)
	if d.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Post("/verify", h.verify)
			r.Get("/me", h.me)

			r.Group(func(r chi.Router) {
				r.Use(h.RequireAdmin)
				r.Post("/invite", h.invite)
				r.Get("/coaches", h.coaches)
			})
		})
	})

	return r
}

// trimOrigins drops blanks and trailing slashes so "http://x/" matches the
// Origin header "http://x".
func trimOrigins(in []string) []string {
	var out []string
	for _, p := range in {
		if o := strings.TrimRight(strings.TrimSpace(p), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}

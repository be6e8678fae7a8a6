// Package api serves the store over HTTP as JSON.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/julianstephens/habitflow/internal/metrics"
)

// RouterDeps wires the router. Sessions is nil for a local-only build, and
// /metrics is only served when Gatherer is set.
type RouterDeps struct {
	Store       StateStore
	Sessions    Sessions
	Gatherer    prometheus.Gatherer
	Recorder    RequestRecorder
	RateLimiter *RateLimiter
}

// NewRouter builds the API routes. Middleware order: real IP, recovery,
// request logging, then the per-client rate limit on /api. With Sessions
// set, every /api route except signup and login needs the signed-in
// user's bearer token.
func NewRouter(deps RouterDeps) http.Handler {
	h := &handler{store: deps.Store, sessions: deps.Sessions}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(recoverPanics)
	r.Use(logRequests(deps.Recorder))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware)
		}

		r.Group(func(r chi.Router) {
			if deps.Sessions != nil {
				r.Use(requireSession(deps.Sessions))
			}
			r.Get("/state", h.getState)
			r.Get("/stats", h.getStats)
			r.Post("/dispatch", h.dispatch)
			r.Get("/sync", h.getSync)
		})

		r.Route("/session", func(r chi.Router) {
			if deps.Sessions == nil {
				r.HandleFunc("/*", localOnly)
				r.HandleFunc("/", localOnly)
				return
			}
			r.Post("/signup", h.signUp)
			r.Post("/login", h.signIn)
			r.Group(func(r chi.Router) {
				r.Use(requireSession(deps.Sessions))
				r.Get("/", h.getSession)
				r.Post("/logout", h.signOut)
				r.Post("/password", h.changePassword)
			})
		})
	})

	return r
}

// Package httpapi exposes the auth service over HTTP: the /auth
// endpoints, auth cookies, and the health/metrics surface.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"

	"github.com/literati-app/auth-service/internal/auth"
	"github.com/literati-app/auth-service/internal/config"
)

// Pinger reports backend reachability for the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the HTTP server.
type Options struct {
	CookiePolicy config.CookiePolicy
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// AllowedOrigins may call the API with credentials.
	AllowedOrigins []string
	// Readiness checks run on /healthz. Nil entries are skipped.
	Readiness []Pinger
	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP traffic to the auth service.
type Server struct {
	svc    *auth.Service
	log    *logrus.Logger
	opts   Options
	router *mux.Router
	cors   *cors.Cors
}

// New assembles the router.
func New(svc *auth.Service, log *logrus.Logger, opts Options) *Server {
	s := &Server{
		svc:  svc,
		log:  log,
		opts: opts,
		cors: cors.New(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
		}),
	}

	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/livez", s.handleLivez).Methods(http.MethodGet)
	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	authRouter := router.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRouter.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	authRouter.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	protected := authRouter.NewRoute().Subrouter()
	protected.Use(s.requireAuth)
	protected.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	protected.HandleFunc("/sessions/revoke-all", s.handleRevokeAll).Methods(http.MethodPost)

	s.router = router
	return s
}

// Handler returns the full middleware chain.
func (s *Server) Handler() http.Handler {
	return s.cors.Handler(s.router)
}

func (s *Server) handleLivez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for _, p := range s.opts.Readiness {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			s.log.WithError(err).Warn("readiness check failed")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("unavailable"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"jobtracker/internal/app"
	"jobtracker/internal/metrics"
	"jobtracker/internal/ratelimit"
	"jobtracker/internal/util"
	"jobtracker/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	TrustedProxies             []string
	CORSOrigins                []string
}

// Server exposes the JSON API.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	trustedProxies  *util.TrustedProxies
	corsOrigins     []string
	registerLimiter ratelimit.Limiter
	loginLimiter    ratelimit.Limiter
}

// New constructs the server with routes configured. Rate limits are shared
// through Redis when RedisAddr is set and kept per process otherwise.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (ratelimit.Limiter, error) {
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return ratelimit.NewLocalLimiter(limit, rateWindow)
		}
		limiter, err := ratelimit.NewRedisLimiter(ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Prefix:   "jobtracker:ratelimit:" + name,
			Limit:    limit,
			Window:   rateWindow,
		})
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		closeLimiter(registerLimiter)
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		closeLimiter(registerLimiter)
		closeLimiter(loginLimiter)
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		trustedProxies:  trusted,
		corsOrigins:     cfg.CORSOrigins,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
	}
	s.routes()
	return s, nil
}

// Close releases limiter resources such as Redis clients.
func (s *Server) Close() error {
	var errs []error
	for _, limiter := range []ratelimit.Limiter{s.registerLimiter, s.loginLimiter} {
		if c, ok := limiter.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func closeLimiter(l ratelimit.Limiter) {
	if c, ok := l.(io.Closer); ok {
		_ = c.Close()
	}
}

// Router returns the configured handler with middleware applied.
func (s *Server) Router() http.Handler {
	var h http.Handler = metrics.InstrumentHandler(s.mux)
	h = util.WithRequestLog("jobtracker", h)
	h = util.WithRequestID(h)
	h = util.WithCORS(s.corsOrigins, h)
	return util.WithSecurityHeaders(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /meta", s.handleMeta)
	s.mux.Handle("GET /metrics", metrics.Handler())

	// auth
	s.mux.HandleFunc("POST /auth/register", s.handleRegister)
	s.mux.HandleFunc("POST /auth/login", s.handleLogin)
	s.mux.Handle("POST /auth/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("GET /auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("DELETE /auth/me", s.authenticated(s.handleDeleteMe))

	// applications
	s.mux.Handle("GET /applications", s.authenticated(s.handleListApplications))
	s.mux.Handle("POST /applications", s.authenticated(s.handleCreateApplication))
	s.mux.Handle("GET /applications/{id}", s.authenticated(s.handleGetApplication))
	s.mux.Handle("PUT /applications/{id}", s.authenticated(s.handleUpdateApplication))
	s.mux.Handle("DELETE /applications/{id}", s.authenticated(s.handleDeleteApplication))
	s.mux.Handle("POST /applications/{id}/chat", s.authenticated(s.handleChat))

	// deliverables
	s.mux.Handle("GET /applications/{id}/deliverables", s.authenticated(s.handleListDeliverables))
	s.mux.Handle("POST /applications/{id}/deliverables", s.authenticated(s.handleCreateDeliverable))
	s.mux.Handle("PUT /deliverables/{id}", s.authenticated(s.handleUpdateDeliverable))
	s.mux.Handle("DELETE /deliverables/{id}", s.authenticated(s.handleDeleteDeliverable))

	// writing bank
	s.mux.Handle("GET /writing", s.authenticated(s.handleListWriting))
	s.mux.Handle("POST /writing", s.authenticated(s.handleCreateWriting))
	s.mux.Handle("PUT /writing/{id}", s.authenticated(s.handleUpdateWriting))
	s.mux.Handle("DELETE /writing/{id}", s.authenticated(s.handleDeleteWriting))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleMeta(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Meta())
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "auth.token.verify", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}
		user, err := s.app.Resolve(r.Context(), token)
		if err != nil {
			if app.KindOf(err) == app.KindAuth {
				s.audit(r, "auth.token.verify", "fail", "reason", "invalid_or_revoked")
			}
			writeAppError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

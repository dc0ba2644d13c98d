package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"jobtracker/pkg/ai"
	"jobtracker/pkg/store"
)

const (
	DefaultMaxUsersTotal  = 10
	DefaultMaxAppsPerUser = 5
	DefaultSessionTTL     = 7 * 24 * time.Hour
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	MaxUsersTotal  int
	MaxAppsPerUser int

	JWTSecret     string
	JWTIssuer     string
	JWTAudience   string
	JWTLeeway     time.Duration
	SessionTTL    time.Duration
	RedisAddr     string
	RedisPassword string

	Store     store.Store
	Sessions  store.SessionStore
	Generator ai.ChatGenerator
}

// App is the core application service wiring together storage, sessions
// and the language model.
type App struct {
	store          store.Store
	sessions       store.SessionStore
	generator      ai.ChatGenerator
	maxUsersTotal  int
	maxAppsPerUser int
	closers        []io.Closer
}

// New constructs the application. Store and Sessions are built from the
// configuration when not supplied. A nil Generator leaves chat unconfigured.
func New(cfg Config) (*App, error) {
	if cfg.MaxUsersTotal == 0 {
		cfg.MaxUsersTotal = DefaultMaxUsersTotal
	}
	if cfg.MaxAppsPerUser == 0 {
		cfg.MaxAppsPerUser = DefaultMaxAppsPerUser
	}
	if cfg.MaxUsersTotal < 0 || cfg.MaxAppsPerUser < 0 {
		return nil, errors.New("user and application caps must be positive")
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = DefaultSessionTTL
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL,
			store.WithMaxUsers(cfg.MaxUsersTotal),
			store.WithMaxApplicationsPerUser(cfg.MaxAppsPerUser),
		)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}

	closers := []io.Closer{dataStore}
	sessionStore := cfg.Sessions
	if sessionStore == nil {
		var revoker store.TokenRevoker
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			redisRevoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword, "")
			closers = append(closers, redisRevoker)
			revoker = redisRevoker
		} else {
			slog.Warn("redisAddr not set, token revocation is kept in memory")
			revoker = store.NewMemoryTokenRevoker()
		}
		jwtStore, err := store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker, store.JWTOptions{
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   cfg.JWTLeeway,
		})
		if err != nil {
			_ = closeAll(closers)
			return nil, fmt.Errorf("init jwt session store: %w", err)
		}
		sessionStore = jwtStore
	}

	return &App{
		store:          dataStore,
		sessions:       sessionStore,
		generator:      cfg.Generator,
		maxUsersTotal:  cfg.MaxUsersTotal,
		maxAppsPerUser: cfg.MaxAppsPerUser,
		closers:        closers,
	}, nil
}

// Close releases the store and the Redis revocation client, if any.
func (a *App) Close() error {
	return closeAll(a.closers)
}

func closeAll(closers []io.Closer) error {
	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Meta describes the instance limits and vocabularies.
type Meta struct {
	MaxUsersTotal   int      `json:"max_users_total"`
	MaxAppsPerUser  int      `json:"max_apps_per_user"`
	AllowedStatuses []string `json:"allowed_statuses"`
	ChatConfigured  bool     `json:"chat_configured"`
}

// Meta returns the public limits of this instance.
func (a *App) Meta() Meta {
	return Meta{
		MaxUsersTotal:   a.maxUsersTotal,
		MaxAppsPerUser:  a.maxAppsPerUser,
		AllowedStatuses: allowedStatusNames(),
		ChatConfigured:  a.generator != nil,
	}
}

// translate converts store sentinels into application errors.
func translate(err error, notFoundMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return NotFoundError(notFoundMsg)
	default:
		return err
	}
}

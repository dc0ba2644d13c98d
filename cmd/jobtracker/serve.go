package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"jobtracker/internal/app"
	"jobtracker/internal/config"
	"jobtracker/internal/server"
	"jobtracker/internal/util"
	"jobtracker/pkg/ai"
	"jobtracker/pkg/store"
)

const shutdownTimeout = 10 * time.Second

func runServe(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := util.InitLogger(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == config.DefaultJWTSecret {
		logger.Warn("using the default JWT secret, set JWT_SECRET outside development")
	}

	appCore, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := appCore.Close(); err != nil {
			logger.Warn("close app", "err", err)
		}
	}()

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		TrustedProxies:             cfg.TrustedProxyCIDRs,
		CORSOrigins:                cfg.CORSOrigins,
	})
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}
	defer func() {
		if err := httpServer.Close(); err != nil {
			logger.Warn("close rate limiters", "err", err)
		}
	}()

	chatTimeout, _ := config.ParseChatTimeout(cfg.ChatTimeout)
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      chatTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", addr, "chat_configured", appCore.Meta().ChatConfigured)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func runMigrate(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	util.InitLogger(cfg.LogLevel, cfg.LogFormat)
	s, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	slog.Info("schema up to date")
	return s.Close()
}

func newApp(cfg config.FileConfig) (*app.App, error) {
	leeway, err := config.ParseJWTLeeway(cfg.JWTLeeway)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return nil, err
	}
	chatTimeout, err := config.ParseChatTimeout(cfg.ChatTimeout)
	if err != nil {
		return nil, err
	}
	generator, err := ai.NewChatGenerator(ai.GeneratorConfig{
		Provider: cfg.GenerationProvider,
		Model:    cfg.GenerationModel,
		BaseURL:  cfg.GenerationBaseURL,
		APIKey:   cfg.GenerationAPIKey,
		Timeout:  chatTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init chat generator: %w", err)
	}
	if generator == nil {
		slog.Warn("no generation API key configured, chat requests will fail")
	}
	appCore, err := app.New(app.Config{
		DatabaseURL:    cfg.DatabaseURL,
		MaxUsersTotal:  cfg.MaxUsersTotal,
		MaxAppsPerUser: cfg.MaxAppsPerUser,
		JWTSecret:      cfg.JWTSecret,
		JWTIssuer:      cfg.JWTIssuer,
		JWTAudience:    cfg.JWTAudience,
		JWTLeeway:      leeway,
		SessionTTL:     sessionTTL,
		RedisAddr:      cfg.RedisAddr,
		RedisPassword:  cfg.RedisPassword,
		Generator:      generator,
	})
	if err != nil {
		return nil, fmt.Errorf("init app: %w", err)
	}
	return appCore, nil
}

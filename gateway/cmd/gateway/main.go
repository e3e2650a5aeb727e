package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/gateway/internal/config"
	"github.com/Skotchmaster/authtrust/gateway/internal/httpserver"
	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	authmw "github.com/Skotchmaster/authtrust/pkg/middleware/auth"
	"github.com/Skotchmaster/authtrust/pkg/middleware/csrf"
	"github.com/Skotchmaster/authtrust/pkg/revcache"
	"github.com/Skotchmaster/authtrust/pkg/sweeper"
	"github.com/Skotchmaster/authtrust/pkg/verifier"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", "gateway")
	slog.SetDefault(logger)

	policy := verifier.FailOpen
	if !cfg.FailOpen {
		policy = verifier.FailClosed
	}

	m := metrics.New("gateway")
	client := authclient.NewClient(cfg.AuthURL, cfg.ClientID, cfg.RemoteTimeout)
	cache := revcache.New(cfg.CacheTTL)
	v := verifier.New(verifier.Config{
		Secret:        cfg.JWTSecret,
		Issuer:        cfg.Issuer,
		Audience:      cfg.Audience,
		Policy:        policy,
		RemoteTimeout: cfg.RemoteTimeout,
	}, client, cache, m)

	sw := sweeper.New(logger, m)
	if err := sw.Every(cfg.CacheSweepInterval, "revocation_cache", func(context.Context) (int64, error) {
		return int64(cache.Sweep()), nil
	}); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	sw.Start()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	deps := &httpserver.Deps{
		AuthURL:     cfg.AuthURL,
		UpstreamURL: cfg.UpstreamURL,
		Auth:        authmw.New(v),
		AdminRoles:  cfg.AdminRoles,
		Logger:      logger,
		Metrics:     m,
	}
	if cfg.AutoRefresh {
		deps.Client = client
	}
	if cfg.CSRFEnabled {
		csrfCfg := csrf.DefaultConfig()
		csrfCfg.Secure = cfg.SecureCookies
		csrfCfg.SkipPaths = []string{"/health/live", "/health/ready", "/api/v1/auth/login", "/api/v1/auth/register", "/api/v1/auth/refresh"}
		deps.CSRF = &csrfCfg
	}
	if err := httpserver.Register(e, deps); err != nil {
		log.Fatal(err)
	}

	go func() {
		logger.Info("listening", "addr", cfg.ListenAddr, "local_verification", len(cfg.JWTSecret) > 0, "fail_open", cfg.FailOpen)
		if err := e.Start(cfg.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sw.Stop(ctx)
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

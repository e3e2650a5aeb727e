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

	"github.com/Skotchmaster/authtrust/internal/mykafka"
	"github.com/Skotchmaster/authtrust/pkg/db"
	"github.com/Skotchmaster/authtrust/pkg/logging"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	"github.com/Skotchmaster/authtrust/pkg/sweeper"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
	"github.com/Skotchmaster/authtrust/services/auth/internal/config"
	"github.com/Skotchmaster/authtrust/services/auth/internal/httpserver"
	"github.com/Skotchmaster/authtrust/services/auth/internal/repo"
	"github.com/Skotchmaster/authtrust/services/auth/internal/repo/redisstore"
	"github.com/Skotchmaster/authtrust/services/auth/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel).With("service", "auth")
	slog.SetDefault(logger)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	gdb, err := db.Open(initCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	users := repo.NewGormRepo(gdb)
	if err := users.Migrate(initCtx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var store service.RevocationStore = users
	ready := users.Ping
	if cfg.RevocationBackend == config.BackendRedis {
		client, err := redisstore.Dial(initCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis init error: %v", err)
		}
		defer client.Close()
		rs := redisstore.New(client, cfg.RedisPrefix)
		store = rs
		ready = func(ctx context.Context) error {
			if err := users.Ping(ctx); err != nil {
				return err
			}
			return rs.Ping(ctx)
		}
	}

	var events mykafka.Publisher = mykafka.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		events = mykafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	}
	defer events.Close()

	m := metrics.New("auth")
	svc := &service.AuthService{
		Users: users,
		Store: store,
		Signer: tokens.NewSigner(tokens.SignerConfig{
			AccessSecret:  cfg.JWTSecret,
			RefreshSecret: cfg.RefreshSecret,
			Issuer:        cfg.Issuer,
			Audience:      cfg.Audience,
			AccessTTL:     cfg.AccessTTL,
			RefreshTTL:    cfg.RefreshTTL,
		}),
		Events:          events,
		Metrics:         m,
		AllowedClients:  cfg.AllowedClients,
		ValidateTimeout: cfg.ValidateTimeout,
	}

	sw := sweeper.New(logger, m)
	if err := sw.Every(cfg.SweepInterval, "revocation_store", svc.Sweep); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	sw.Start()

	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 15 * time.Second
	e.Server.ReadHeaderTimeout = 3 * time.Second

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler: &httpserver.AuthHTTP{Svc: svc},
		Logger:      logger,
		Metrics:     m,
		Ready:       ready,
	})

	go func() {
		logger.Info("listening", "addr", cfg.Addr, "revocation_backend", cfg.RevocationBackend)
		if err := e.Start(cfg.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("echo start: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	sw.Stop(shutdownCtx)
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("echo shutdown", "error", err)
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Skotchmaster/authtrust/pkg/config"
	"github.com/Skotchmaster/authtrust/pkg/tokens"
)

const (
	BackendGorm  = "gorm"
	BackendRedis = "redis"
)

type Config struct {
	Addr        string
	DatabaseURL string

	RevocationBackend string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RedisPrefix       string

	JWTSecret     []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	AllowedClients  []string
	ValidateTimeout time.Duration
	KafkaBrokers    []string
	KafkaTopic      string

	LogLevel      string
	SweepInterval time.Duration
}

func Load() (*Config, error) {
	config.LoadDotenv()

	cfg := &Config{
		Addr:        config.EnvDefault("AUTH_ADDR", ":8081"),
		DatabaseURL: config.EnvDefault("DATABASE_URL", "sqlite://auth.db"),

		RevocationBackend: config.EnvDefault("REVOCATION_BACKEND", BackendGorm),
		RedisAddr:         config.EnvDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           config.EnvIntDefault("REDIS_DB", 0),
		RedisPrefix:       config.EnvDefault("REDIS_PREFIX", "authtrust"),

		JWTSecret:     []byte(os.Getenv("JWT_SECRET")),
		RefreshSecret: []byte(os.Getenv("JWT_REFRESH_SECRET")),
		Issuer:        config.EnvDefault("JWT_ISSUER", tokens.DefaultIssuer),
		Audience:      config.EnvDefault("JWT_AUDIENCE", tokens.DefaultAudience),
		AccessTTL:     config.EnvDurationDefault("ACCESS_TTL", tokens.DefaultAccessTTL),
		RefreshTTL:    config.EnvDurationDefault("REFRESH_TTL", tokens.DefaultRefreshTTL),

		AllowedClients:  config.CSV(os.Getenv("ALLOWED_CLIENT_IDS")),
		ValidateTimeout: config.EnvDurationDefault("VALIDATE_TIMEOUT", 3*time.Second),
		KafkaBrokers:    config.CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      config.EnvDefault("KAFKA_TOPIC", "auth_events"),

		LogLevel:      config.EnvDefault("LOG_LEVEL", "info"),
		SweepInterval: config.EnvDurationDefault("SWEEP_INTERVAL", 10*time.Minute),
	}

	if err := config.RequireSecret(cfg.JWTSecret, "JWT_SECRET"); err != nil {
		return nil, err
	}
	if err := config.RequireSecret(cfg.RefreshSecret, "JWT_REFRESH_SECRET"); err != nil {
		return nil, err
	}
	if string(cfg.JWTSecret) == string(cfg.RefreshSecret) {
		return nil, fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	switch cfg.RevocationBackend {
	case BackendGorm, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown REVOCATION_BACKEND %q", cfg.RevocationBackend)
	}
	return cfg, nil
}

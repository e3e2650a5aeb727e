package config

import (
	"fmt"
	"os"
	"time"

	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/config"
	"github.com/Skotchmaster/authtrust/pkg/revcache"
)

type Config struct {
	ListenAddr  string
	AuthURL     string
	UpstreamURL string
	ClientID    string

	// JWTSecret enables local verification. Without it every token is
	// checked by the issuer.
	JWTSecret []byte
	Issuer    string
	Audience  string

	FailOpen           bool
	RemoteTimeout      time.Duration
	CacheTTL           time.Duration
	CacheSweepInterval time.Duration
	AutoRefresh        bool
	AdminRoles         []string
	CSRFEnabled        bool
	SecureCookies      bool

	LogLevel string
}

func Load() (*Config, error) {
	config.LoadDotenv()

	cfg := &Config{
		ListenAddr:  config.EnvDefault("GATEWAY_ADDR", ":8080"),
		AuthURL:     config.MustNonEmpty(os.Getenv("AUTH_URL"), "AUTH_URL"),
		UpstreamURL: config.MustNonEmpty(os.Getenv("UPSTREAM_URL"), "UPSTREAM_URL"),
		ClientID:    config.EnvDefault("CLIENT_ID", "gateway"),

		JWTSecret: []byte(os.Getenv("JWT_SECRET")),
		Issuer:    os.Getenv("JWT_ISSUER"),
		Audience:  os.Getenv("JWT_AUDIENCE"),

		FailOpen:           config.EnvBoolDefault("REVOCATION_FAIL_OPEN", true),
		RemoteTimeout:      config.EnvDurationDefault("AUTH_TIMEOUT", authclient.DefaultTimeout),
		CacheTTL:           config.EnvDurationDefault("CACHE_TTL", revcache.DefaultTTL),
		CacheSweepInterval: config.EnvDurationDefault("CACHE_SWEEP_INTERVAL", revcache.DefaultSweepInterval),
		AutoRefresh:        config.EnvBoolDefault("AUTO_REFRESH", true),
		AdminRoles:         config.CSV(config.EnvDefault("ADMIN_ROLES", "ADMIN")),
		CSRFEnabled:        config.EnvBoolDefault("CSRF_ENABLED", true),
		SecureCookies:      config.EnvBoolDefault("COOKIE_SECURE", false),

		LogLevel: config.EnvDefault("LOG_LEVEL", "info"),
	}

	if len(cfg.JWTSecret) > 0 {
		if err := config.RequireSecret(cfg.JWTSecret, "JWT_SECRET"); err != nil {
			return nil, err
		}
	}
	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("CACHE_TTL must be positive")
	}
	return cfg, nil
}

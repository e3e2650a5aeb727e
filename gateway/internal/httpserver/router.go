package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/authtrust/gateway/internal/middleware"
	"github.com/Skotchmaster/authtrust/pkg/authclient"
	"github.com/Skotchmaster/authtrust/pkg/metrics"
	authmw "github.com/Skotchmaster/authtrust/pkg/middleware/auth"
	"github.com/Skotchmaster/authtrust/pkg/middleware/csrf"
)

type Deps struct {
	AuthURL     string
	UpstreamURL string

	Auth *authmw.Auth
	// Client enables transparent refresh of expired browser sessions.
	Client     *authclient.Client
	AdminRoles []string
	// CSRF protects cookie sessions when set.
	CSRF *csrf.Config

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func Register(e *echo.Echo, d *Deps) error {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	for _, m := range middleware.Common(d.Logger) {
		e.Use(m)
	}
	if d.CSRF != nil {
		e.Use(csrf.Middleware(*d.CSRF))
	}
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	authProxy, err := newProxy(d.AuthURL, "/api/v1")
	if err != nil {
		return err
	}
	upstream, err := newProxy(d.UpstreamURL, "/api/v1")
	if err != nil {
		return err
	}

	guard := d.Auth.RequireAuth
	if d.Client != nil {
		guard = d.Auth.AutoRefresh(d.Client)
	}
	forward := middleware.ForwardIdentity()

	e.Any("/api/v1/auth/*", authProxy)

	api := e.Group("/api/v1")
	api.Any("/public/*", upstream, d.Auth.OptionalAuth, forward)
	if len(d.AdminRoles) > 0 {
		api.Any("/admin/*", upstream, guard, authmw.RequireRole(d.AdminRoles...), forward)
	}
	api.Any("/*", upstream, guard, forward)

	return nil
}

package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/authtrust/pkg/metrics"
	loggingmw "github.com/Skotchmaster/authtrust/pkg/middleware/logging"
	"github.com/Skotchmaster/authtrust/services/auth/internal/transport"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Ready       func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.Validator = transport.NewValidator()

	e.Use(ecM.Recover())
	e.Use(ecM.RequestID())
	e.Use(loggingmw.RequestLogger(d.Logger))

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Ready(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error()})
		}
		return c.NoContent(http.StatusOK)
	})
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}

	auth := e.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.LogOut)
	auth.GET("/verify", d.AuthHandler.Verify, d.AuthHandler.RequireAccess)

	e.POST("/oauth/validate", d.AuthHandler.Validate)
}

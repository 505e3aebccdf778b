// Package httpserver is the HTTP transport plugin: it owns an Echo
// engine, mounts every controller the registered modules contributed
// through ControllerCapability, and manages the listener's lifecycle
// alongside the application's.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tascaenzo/trinacria/app"
)

// Config mirrors the server section of the application configuration.
type Config struct {
	// Host is the bind address (default: 0.0.0.0).
	Host string

	// Port is the listen port (default: 8080).
	Port int

	// ReadTimeout is the maximum duration for reading requests.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing responses.
	WriteTimeout time.Duration

	// Debug enables debug error details in responses.
	Debug bool

	// AllowedOrigins are the CORS allowed origins. Empty disables CORS
	// handling entirely.
	AllowedOrigins []string

	// RateLimit is the maximum requests per second per client; zero
	// disables rate limiting.
	RateLimit int
}

func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	return c
}

// Plugin serves the application's HTTP surface.
type Plugin struct {
	cfg    Config
	echo   *echo.Echo
	logger *zap.Logger
}

// New returns an HTTP server plugin with the given configuration.
func New(cfg Config) *Plugin {
	return &Plugin{cfg: cfg.withDefaults(), logger: zap.NewNop()}
}

// Name implements app.Plugin.
func (p *Plugin) Name() string { return "httpserver" }

// Handler exposes the engine as an http.Handler. Tests drive requests
// through it without a listener.
func (p *Plugin) Handler() http.Handler { return p.echo }

// OnInit builds the engine, discovers and mounts every contributed
// controller, and starts the listener.
func (p *Plugin) OnInit(ctx context.Context, appCtx *app.Context) error {
	p.logger = appCtx.Logger().Named("httpserver")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = p.cfg.Debug
	e.HTTPErrorHandler = errorHandler
	e.Server.ReadTimeout = p.cfg.ReadTimeout
	e.Server.WriteTimeout = p.cfg.WriteTimeout

	p.setupMiddleware(e)
	e.GET("/healthz", p.health(appCtx))

	if err := p.mountControllers(ctx, appCtx, e); err != nil {
		return err
	}
	p.echo = e

	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	p.logger.Info("http server listening", zap.String("addr", addr))
	return nil
}

func (p *Plugin) setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(SecurityHeaders)
	if len(p.cfg.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: p.cfg.AllowedOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}
	if p.cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(p.cfg.RateLimit),
		)))
	}
	e.Use(ValidateContentType)
	e.Use(ValidateAcceptHeader)
}

// mountControllers resolves every provider tagged with
// ControllerCapability and registers its route table.
func (p *Plugin) mountControllers(ctx context.Context, appCtx *app.Context, e *echo.Echo) error {
	instances, err := appCtx.ResolveByCapability(ctx, ControllerCapability.Key())
	if err != nil {
		return fmt.Errorf("httpserver: resolve controllers: %w", err)
	}
	for _, inst := range instances {
		ctrl, ok := inst.(Controller)
		if !ok {
			return fmt.Errorf("httpserver: %T is tagged as a controller but does not implement Controller", inst)
		}
		for _, route := range ctrl.Routes() {
			e.Add(route.Method, route.Path, route.Handler, route.Middleware...)
			p.logger.Debug("route mounted",
				zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
	p.logger.Info("controllers mounted", zap.Int("count", len(instances)))
	return nil
}

// OnDestroy drains and stops the listener.
func (p *Plugin) OnDestroy(ctx context.Context, appCtx *app.Context) error {
	if p.echo == nil {
		return nil
	}
	if err := p.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("httpserver shutdown: %w", err)
	}
	p.logger.Info("http server stopped")
	return nil
}

// health reports the application's module count and state.
func (p *Plugin) health(appCtx *app.Context) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":  "healthy",
			"modules": len(appCtx.Modules()),
		})
	}
}

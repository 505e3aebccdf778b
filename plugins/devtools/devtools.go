// Package devtools exposes a read-only inspection surface for a running
// application: the module graph as JSON, the module list, and a
// WebSocket feed of module lifecycle events. It contributes its
// endpoints through the HTTP server's controller capability and is
// intended for development setups.
package devtools

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tascaenzo/trinacria/app"
	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/module"
	"github.com/tascaenzo/trinacria/plugins/httpserver"
)

// Plugin serves the inspection endpoints and the event feed.
type Plugin struct {
	hub    *hub
	logger *zap.Logger
}

// New returns a devtools plugin.
func New() *Plugin {
	return &Plugin{logger: zap.NewNop()}
}

// Name implements app.Plugin.
func (p *Plugin) Name() string { return "devtools" }

// OnRegister contributes the inspection controller as a module.
func (p *Plugin) OnRegister(ctx context.Context, appCtx *app.Context) error {
	ctrlTok := di.NewToken[*controller]("devtools.controller")
	def := module.MustNew(module.Config{
		Name: "devtools",
		Providers: []*di.Provider{
			di.Value(ctrlTok, &controller{plugin: p, appCtx: appCtx},
				di.WithCapability(httpserver.ControllerCapability)),
		},
	})
	return appCtx.RegisterModule(ctx, def)
}

// OnInit starts the event hub.
func (p *Plugin) OnInit(ctx context.Context, appCtx *app.Context) error {
	p.logger = appCtx.Logger().Named("devtools")
	p.hub = newHub(p.logger)
	go p.hub.run()
	return nil
}

// OnModuleRegistered broadcasts the registration on the event feed.
func (p *Plugin) OnModuleRegistered(ctx context.Context, appCtx *app.Context, def *module.Definition) error {
	if p.hub != nil {
		p.hub.broadcastEvent(Event{Type: EventModuleRegistered, Data: def.Name()})
	}
	return nil
}

// OnModuleUnregistered broadcasts the removal on the event feed.
func (p *Plugin) OnModuleUnregistered(ctx context.Context, appCtx *app.Context, def *module.Definition) error {
	if p.hub != nil {
		p.hub.broadcastEvent(Event{Type: EventModuleUnregistered, Data: def.Name()})
	}
	return nil
}

// OnDestroy stops the event hub, disconnecting remaining subscribers.
func (p *Plugin) OnDestroy(ctx context.Context, appCtx *app.Context) error {
	if p.hub != nil {
		p.hub.stop()
	}
	return nil
}

// controller mounts the inspection routes.
type controller struct {
	plugin *Plugin
	appCtx *app.Context
}

func (c *controller) Routes() []httpserver.Route {
	return []httpserver.Route{
		httpserver.GET("/_trinacria/graph", c.graph),
		httpserver.GET("/_trinacria/modules", c.modules),
		httpserver.GET("/_trinacria/events", c.events),
	}
}

// graph returns the module graph snapshot.
func (c *controller) graph(ec echo.Context) error {
	return ec.JSON(http.StatusOK, c.appCtx.Graph())
}

// modules returns the registered module names.
func (c *controller) modules(ec echo.Context) error {
	names := c.appCtx.Modules()
	if names == nil {
		names = []string{}
	}
	return ec.JSON(http.StatusOK, map[string]interface{}{
		"modules": names,
		"count":   len(names),
	})
}

// events upgrades to a WebSocket subscription on the lifecycle feed.
func (c *controller) events(ec echo.Context) error {
	if c.plugin.hub == nil {
		return httpserver.InternalError("event feed not running", "")
	}
	return c.plugin.hub.serve(ec.Response(), ec.Request())
}

// Package metrics exposes Prometheus metrics for the application's
// module lifecycle. The plugin keeps a private registry, tracks module
// registrations and unregistrations through its lifecycle hooks, and
// contributes a /metrics controller through the HTTP server's
// capability, so the two plugins compose through the container rather
// than referencing each other.
package metrics

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tascaenzo/trinacria/app"
	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/module"
	"github.com/tascaenzo/trinacria/plugins/httpserver"
)

// Plugin collects and serves application metrics.
type Plugin struct {
	registry *prometheus.Registry

	modules         prometheus.Gauge
	providers       prometheus.Gauge
	registrations   prometheus.Counter
	unregistrations prometheus.Counter
}

// New returns a metrics plugin with a fresh private registry.
func New() *Plugin {
	p := &Plugin{
		registry: prometheus.NewRegistry(),
		modules: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trinacria_modules",
			Help: "Number of currently registered modules.",
		}),
		providers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trinacria_providers",
			Help: "Number of provider registrations across all modules and globals.",
		}),
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trinacria_module_registrations_total",
			Help: "Total number of successful module registrations observed at runtime.",
		}),
		unregistrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trinacria_module_unregistrations_total",
			Help: "Total number of module unregistrations observed at runtime.",
		}),
	}
	p.registry.MustRegister(p.modules, p.providers, p.registrations, p.unregistrations)
	return p
}

// Name implements app.Plugin.
func (p *Plugin) Name() string { return "metrics" }

// Handler serves the plugin's registry in Prometheus exposition format.
func (p *Plugin) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// OnRegister contributes the /metrics controller as a module.
func (p *Plugin) OnRegister(ctx context.Context, appCtx *app.Context) error {
	ctrlTok := di.NewToken[*controller]("metrics.controller")
	def := module.MustNew(module.Config{
		Name: "metrics",
		Providers: []*di.Provider{
			di.Value(ctrlTok, &controller{plugin: p},
				di.WithCapability(httpserver.ControllerCapability)),
		},
	})
	return appCtx.RegisterModule(ctx, def)
}

// OnInit seeds the gauges from the built graph.
func (p *Plugin) OnInit(ctx context.Context, appCtx *app.Context) error {
	p.refresh(appCtx)
	return nil
}

// OnModuleRegistered counts the registration and refreshes the gauges.
func (p *Plugin) OnModuleRegistered(ctx context.Context, appCtx *app.Context, def *module.Definition) error {
	p.registrations.Inc()
	p.refresh(appCtx)
	return nil
}

// OnModuleUnregistered counts the unregistration and refreshes the
// gauges. It also runs during registration rollback, keeping the gauges
// aligned with the application's durable state.
func (p *Plugin) OnModuleUnregistered(ctx context.Context, appCtx *app.Context, def *module.Definition) error {
	p.unregistrations.Inc()
	p.refresh(appCtx)
	return nil
}

func (p *Plugin) refresh(appCtx *app.Context) {
	g := appCtx.Graph()
	p.modules.Set(float64(len(g.Modules)))
	count := len(g.Globals)
	for _, m := range g.Modules {
		count += len(m.Providers)
	}
	p.providers.Set(float64(count))
}

// controller mounts the exposition endpoint on the HTTP server.
type controller struct {
	plugin *Plugin
}

func (c *controller) Routes() []httpserver.Route {
	return []httpserver.Route{
		httpserver.GET("/metrics", echo.WrapHandler(c.plugin.Handler())),
	}
}

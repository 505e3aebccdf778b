// Package trinacria is a modular application runtime for Go.
//
// # Overview
//
// Trinacria composes applications from modules: units that declare the
// providers they own, the tokens they export, and the modules they
// import. A typed dependency injection container backs each module, so
// a module sees exactly its own providers, the exports of its direct
// imports, and application-wide globals. Nothing else.
//
// The runtime consists of three layers:
//   - di: typed tokens, providers, and scoped containers
//   - module: definitions, the registry, and graph introspection
//   - app: the orchestrator with plugins and runtime registration
//
// # Architecture
//
//	┌─────────────────┐
//	│  Application    │
//	│  (lifecycle,    │
//	│   plugins)      │
//	└────────┬────────┘
//	         │
//	┌────────▼────────┐       ┌─────────────────┐
//	│  Module         │◄──────┤  Plugins        │
//	│  Registry       │       │  (http, cron,   │
//	└────────┬────────┘       │   metrics, dev) │
//	         │                └─────────────────┘
//	┌────────▼────────┐
//	│  DI Containers  │
//	│  (scoped)       │
//	└─────────────────┘
//
// # Core Features
//
// Typed dependency injection:
//   - Identity-based tokens with phantom types
//   - Value, factory, and class providers with lifecycle hooks
//   - Eager or lazy instantiation, cycle detection, scoped resolution
//
// Modules:
//   - Explicit imports and exports with visibility enforcement
//   - Capability tags for cross-module discovery
//   - Graph snapshots and structural linting
//
// Application runtime:
//   - Plugins with optional lifecycle hooks
//   - Transactional module registration and unregistration at runtime
//   - Graceful startup and shutdown ordering
//
// # Usage
//
// Define a module:
//
//	var GreeterToken = di.NewToken[*Greeter]("greeter")
//
//	def := module.MustNew(module.Config{
//	    Name: "greeter",
//	    Providers: []*di.Provider{
//	        di.Value(GreeterToken, NewGreeter()),
//	    },
//	    Exports: []di.AnyToken{GreeterToken},
//	})
//
// Run an application:
//
//	a := app.New(app.WithLogger(logger))
//	a.Use(httpserver.New(httpserver.Config{Port: 8080}))
//	a.RegisterModule(ctx, def)
//	if err := a.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Serve the bundled user API example:
//
//	trinacria serve --config configs/config.yaml
//
// Inspect the module graph:
//
//	trinacria graph --output yaml
//	trinacria graph --lint
//
// # Configuration
//
// Configuration can be provided via:
//   - YAML file (configs/config.yaml)
//   - Environment variables (TRI_ prefix)
//   - .env file
//
// Example configuration:
//
//	server:
//	  host: 0.0.0.0
//	  port: 8080
//	logging:
//	  level: info
//	  format: json
//	security:
//	  jwt_secret: change-me
//	  rate_limit: 100
//	redis:
//	  addr: localhost:6379
//
// # Development
//
// Run tests:
//
//	go test ./...
//
// Run integration tests:
//
//	go test -v -tags=integration ./tests/integration/...
//
// Build the binary:
//
//	go build -o trinacria ./cmd/trinacria
//
// # Technology Stack
//
//   - Go 1.25+
//   - Echo v4 (HTTP server plugin)
//   - robfig/cron (scheduler plugin)
//   - Prometheus client (metrics plugin)
//   - Gorilla WebSocket (devtools event feed)
//   - Zap (structured logging)
//   - Cobra and Viper (CLI and configuration)
//
// # License
//
// Trinacria is open source software.
package trinacria

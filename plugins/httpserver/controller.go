package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/tascaenzo/trinacria/di"
)

// ControllerCapability tags providers whose instances serve HTTP routes.
// Any module can contribute a controller by tagging a provider with it;
// the plugin discovers and mounts them during application init.
var ControllerCapability = di.NewCapability[Controller]("http.controller")

// Controller is implemented by instances that expose HTTP routes. Routes
// are declared explicitly as values; the plugin never inspects the
// controller beyond this method.
type Controller interface {
	Routes() []Route
}

// Route binds one handler to a method and path. Middleware applies to
// this route only.
type Route struct {
	Method     string
	Path       string
	Handler    echo.HandlerFunc
	Middleware []echo.MiddlewareFunc
}

// GET is shorthand for a GET route.
func GET(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) Route {
	return Route{Method: "GET", Path: path, Handler: h, Middleware: m}
}

// POST is shorthand for a POST route.
func POST(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) Route {
	return Route{Method: "POST", Path: path, Handler: h, Middleware: m}
}

// PUT is shorthand for a PUT route.
func PUT(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) Route {
	return Route{Method: "PUT", Path: path, Handler: h, Middleware: m}
}

// DELETE is shorthand for a DELETE route.
func DELETE(path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) Route {
	return Route{Method: "DELETE", Path: path, Handler: h, Middleware: m}
}

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tascaenzo/trinacria/app"
	"github.com/tascaenzo/trinacria/di"
	"github.com/tascaenzo/trinacria/module"
	"github.com/tascaenzo/trinacria/schema"
)

type echoController struct{}

func (ec *echoController) Routes() []Route {
	return []Route{
		GET("/api/v1/ping", func(c echo.Context) error {
			return c.JSON(http.StatusOK, map[string]string{"message": "pong"})
		}),
		POST("/api/v1/echo", func(c echo.Context) error {
			var dto struct {
				Text string `json:"text" validate:"required,min=2"`
			}
			if err := schema.Bind(c, &dto); err != nil {
				return err
			}
			return c.JSON(http.StatusOK, map[string]string{"text": dto.Text})
		}),
	}
}

func startTestServer(t *testing.T) (*Plugin, *app.App) {
	t.Helper()

	ctrlTok := di.NewToken[*echoController]("test.controller")
	def := module.MustNew(module.Config{
		Name: "testmod",
		Providers: []*di.Provider{
			di.Class(ctrlTok, func(deps di.Deps) *echoController {
				return &echoController{}
			}, di.WithCapability(ControllerCapability)),
		},
	})

	plugin := New(Config{Host: "127.0.0.1", Port: 0})
	a := app.New()
	require.NoError(t, a.Use(plugin))
	require.NoError(t, a.RegisterModule(context.Background(), def))
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return plugin, a
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPlugin_MountsDiscoveredControllers(t *testing.T) {
	plugin, _ := startTestServer(t)

	rec := doRequest(t, plugin.Handler(), http.MethodGet, "/api/v1/ping", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pong", body["message"])
}

func TestPlugin_HealthEndpoint(t *testing.T) {
	plugin, _ := startTestServer(t)

	rec := doRequest(t, plugin.Handler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["modules"])
}

func TestPlugin_ValidationErrorsAreStructured(t *testing.T) {
	plugin, _ := startTestServer(t)

	rec := doRequest(t, plugin.Handler(), http.MethodPost, "/api/v1/echo", `{"text":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var httpErr HTTPError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	require.Len(t, httpErr.FieldErrors, 1)
	assert.Equal(t, "text", httpErr.FieldErrors[0].Field)
}

func TestPlugin_RejectsWrongContentType(t *testing.T) {
	plugin, _ := startTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/echo", strings.NewReader("text=yes"))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	plugin.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid Content-Type")
}

func TestPlugin_SecurityHeaders(t *testing.T) {
	plugin, _ := startTestServer(t)

	rec := doRequest(t, plugin.Handler(), http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"

	"allergystats/internal/platform/metrics"
	"allergystats/internal/platform/middleware"
	"allergystats/pkg/testutil"
)

type pingModule struct{}

func (pingModule) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
	r.Get("/panic", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	reg := prometheus.NewRegistry()
	return NewRouter(Dependencies{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:        metrics.NewWithRegisterer(reg),
		Gatherer:       reg,
		AllowedOrigins: []string{"https://dashboard.example"},
		API:            []Registrar{pingModule{}},
	})
}

func TestRouter(t *testing.T) {
	router := newTestRouter(t)

	testutil.Given(t, "a router with one API module", func(t *testing.T) {
		testutil.When(t, "the module route is called", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/ping"))

			testutil.Then(t, "it is served under the API prefix with a request ID", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusOK)
				assert.Equal(t, "pong", rr.Body.String())
				assert.NotEmpty(t, rr.Header().Get(middleware.RequestIDHeader))
			})
		})

		testutil.When(t, "an unknown route is called", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/nope"))

			testutil.Then(t, "a JSON not_found envelope is returned", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
			})
		})

		testutil.When(t, "a handler panics", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/panic"))

			testutil.Then(t, "the panic becomes an internal error", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
			})
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/health"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())

	_ = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/v1/ping"))
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.True(t, strings.Contains(rr.Body.String(), "allergystats_http_request_duration_seconds"))
}

func TestReadiness(t *testing.T) {
	reg := prometheus.NewRegistry()
	healthy := true
	router := NewRouter(Dependencies{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Gatherer: reg,
		Checks: map[string]func(context.Context) error{
			"redis": func(context.Context) error {
				if healthy {
					return nil
				}
				return errors.New("connection refused")
			},
		},
	})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())

	healthy = false
	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/ready"))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"redis":"unavailable"}}`, rr.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewRequest(t, http.MethodOptions, "/api/v1/ping")
	req.Header.Set("Origin", "https://dashboard.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := testutil.DoRequest(router, req)

	assert.Equal(t, "https://dashboard.example", rr.Header().Get("Access-Control-Allow-Origin"))
}

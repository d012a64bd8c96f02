package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/config"
)

func TestSetup_DisabledWithoutEndpoint(t *testing.T) {
	shutdown := Setup(context.Background(), config.TelemetryConfig{}, "ekaya-sales", "test", zap.NewNop())
	assert.NoError(t, shutdown(context.Background()))
}

func TestWrapHandler_PassesThrough(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/ping", "/api/companies"} {
		rec := httptest.NewRecorder()
		WrapHandler(inner, "ekaya-sales").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code, path)
	}
}

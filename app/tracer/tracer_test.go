package tracer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingAndMetrics(t *testing.T) {
	p, err := InitTracingAndMetrics("credential-auth-test")
	require.NoError(t, err)
	defer func() { assert.NoError(t, p.Shutdown(context.Background())) }()

	counter, err := otel.GetMeterProvider().Meter("test").Int64Counter("gate_checks")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	_, span := otel.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	rr := httptest.NewRecorder()
	p.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "gate_checks")
	assert.Contains(t, rr.Body.String(), `service_name="credential-auth-test"`)
}

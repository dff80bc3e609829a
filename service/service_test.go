package service

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-matrix/metrics"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func get(t *testing.T, url string) string {
	t.Helper()
	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		body = string(data)
		return true
	}, 5*time.Second, 20*time.Millisecond)
	return body
}

func TestHealthzHandle(t *testing.T) {
	rec := httptest.NewRecorder()
	(&HealthzServer{}).Handle(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestServiceStartAndShutdown(t *testing.T) {
	cfg := Config{HealthzAddr: freeAddr(t), MetricsAddr: freeAddr(t)}
	svc := NewWithConfig(cfg)
	svc.Start(context.Background())

	assert.Equal(t, "OK", get(t, "http://"+cfg.HealthzAddr+"/healthz"))

	metrics.RecordError("service_test")
	body := get(t, "http://"+cfg.MetricsAddr+"/metrics")
	assert.True(t, strings.Contains(body, "opmatrix_errors_total"), "metrics endpoint should expose opmatrix metrics")

	require.NoError(t, svc.Shutdown())
}

func TestShutdownBeforeStart(t *testing.T) {
	assert.NoError(t, New().Shutdown())
}

func TestHealthzRejectsWrongMethod(t *testing.T) {
	cfg := Config{HealthzAddr: freeAddr(t), MetricsAddr: freeAddr(t)}
	svc := NewWithConfig(cfg)
	svc.Start(context.Background())
	defer func() { _ = svc.Shutdown() }()

	get(t, "http://"+cfg.HealthzAddr+"/healthz")
	resp, err := http.Post("http://"+cfg.HealthzAddr+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

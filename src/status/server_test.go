package status

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orchestra-mcp/metax/src/metrics"
	"github.com/orchestra-mcp/metax/src/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp/fasthttputil"
)

type staticReporter struct {
	status types.Status
}

func (r *staticReporter) Status() types.Status { return r.status }

func connectedStatus() types.Status {
	return types.Status{
		State:            types.StateConnected.String(),
		Host:             "localhost",
		Port:             8001,
		Resources:        2,
		SystemListeners:  1,
		GenericListeners: 3,
		ConnectedAt:      time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestStatusRoute(t *testing.T) {
	srv := New(&staticReporter{status: connectedStatus()}, nil, zerolog.Nop())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var got types.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, connectedStatus(), got)
}

func TestHealthRoute(t *testing.T) {
	rep := &staticReporter{status: connectedStatus()}
	srv := New(rep, nil, zerolog.Nop())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	rep.status.State = types.StateReconnectPending.String()
	resp, err = srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, false, body["healthy"])
	assert.Equal(t, "reconnect_pending", body["state"])
}

func TestMetricsServedThroughAdaptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.ReconnectAttempt()

	srv := New(&staticReporter{status: connectedStatus()}, reg, zerolog.Nop())

	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = srv.srv.Serve(ln) }()
	t.Cleanup(func() { _ = srv.Shutdown() })

	client := &http.Client{Transport: &http.Transport{
		DialContext: func(_ context.Context, _, _ string) (net.Conn, error) { return ln.Dial() },
	}}

	resp, err := client.Get("http://status/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "metax_connection_reconnect_attempts_total 1")

	resp2, err := client.Get("http://status/status")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

func TestMetricsDisabledWithoutGatherer(t *testing.T) {
	srv := New(&staticReporter{status: connectedStatus()}, nil, zerolog.Nop())
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

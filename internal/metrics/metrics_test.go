package metrics

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.DatagramsReceived.Add(3)
	a.FailsafeTicks.Inc()
	a.Staleness.Set(0.25)

	assert.Equal(t, 3.0, testutil.ToFloat64(a.DatagramsReceived))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.FailsafeTicks))
	assert.Equal(t, 0.25, testutil.ToFloat64(a.Staleness))
	assert.Zero(t, testutil.ToFloat64(b.DatagramsReceived))
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := New()
	m.DatagramsMalformed.Inc()
	m.TickDuration.Observe(0.001)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "padlink_datagrams_malformed_total 1")
	assert.Contains(t, body, "padlink_tick_duration_seconds_count 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := New()
	m.DatagramsSent.Add(7)
	require.NoError(t, m.Serve(ctx, addr, slog.New(slog.NewTextHandler(io.Discard, nil))))

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		body = string(b)
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, strings.Contains(body, "padlink_datagrams_sent_total 7"))
}

func TestServeBindError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	err = New().Serve(context.Background(), ln.Addr().String(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

// Package metrics exposes padlink counters in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "padlink"

// Metrics holds every collector. The zero value is not usable; use New.
// All collectors are registered on a private registry so several instances
// can coexist (tests, send and receive in one process).
type Metrics struct {
	reg *prometheus.Registry

	DatagramsReceived  prometheus.Counter
	DatagramsMalformed prometheus.Counter
	SessionChanges     prometheus.Counter
	SeqGaps            prometheus.Counter
	DriverTicks        prometheus.Counter
	FailsafeTicks      prometheus.Counter
	ApplyErrors        prometheus.Counter
	SkippedTicks       prometheus.Counter
	DatagramsSent      prometheus.Counter
	SendErrors         prometheus.Counter
	SampleErrors       prometheus.Counter

	Staleness    prometheus.Gauge
	SinkState    prometheus.Gauge
	TickDuration prometheus.Histogram
}

func New() *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help})
	}
	m := &Metrics{
		reg:                prometheus.NewRegistry(),
		DatagramsReceived:  counter("datagrams_received_total", "Valid command datagrams received."),
		DatagramsMalformed: counter("datagrams_malformed_total", "Datagrams discarded because they did not decode."),
		SessionChanges:     counter("session_changes_total", "Times the sender session id changed (sender restarts)."),
		SeqGaps:            counter("seq_gap_datagrams_total", "Datagrams presumed lost, from gaps in sender sequence numbers."),
		DriverTicks:        counter("driver_ticks_total", "Driver loop iterations."),
		FailsafeTicks:      counter("failsafe_ticks_total", "Ticks that applied the neutral state because input was stale."),
		ApplyErrors:        counter("sink_apply_errors_total", "Failed device sink applies."),
		SkippedTicks:       counter("skipped_ticks_total", "Tick deadlines dropped because an iteration overran."),
		DatagramsSent:      counter("datagrams_sent_total", "Command datagrams sent."),
		SendErrors:         counter("send_errors_total", "Datagram sends that failed."),
		SampleErrors:       counter("sample_errors_total", "Input provider refresh failures."),
		Staleness: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "input_age_seconds",
			Help:      "Time since the last valid datagram, as of the latest tick.",
		}),
		SinkState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sink_state",
			Help:      "Device sink state: 0 connecting, 1 connected, 2 reconnecting, 3 crashed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent inside one loop iteration.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 12),
		}),
	}
	m.reg.MustRegister(
		m.DatagramsReceived, m.DatagramsMalformed, m.SessionChanges, m.SeqGaps,
		m.DriverTicks, m.FailsafeTicks, m.ApplyErrors, m.SkippedTicks,
		m.DatagramsSent, m.SendErrors, m.SampleErrors,
		m.Staleness, m.SinkState, m.TickDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry holding all collectors.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Serve exposes /metrics on addr until ctx is done. It returns once the
// listener is bound; serving errors are logged.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

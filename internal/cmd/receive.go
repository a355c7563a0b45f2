package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Alia5/padlink/bridge"
	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/internal/log"
	"github.com/Alia5/padlink/internal/metrics"
	"github.com/Alia5/padlink/internal/ticker"
	"github.com/Alia5/padlink/sink"
	"github.com/Alia5/padlink/sink/logsink"
	"github.com/Alia5/padlink/sink/viiper"
	"github.com/Alia5/padlink/transport"
)

// minFailsafePeriods keeps ordinary jitter from tripping the failsafe.
const minFailsafePeriods = 3

// Receive drives a virtual controller from incoming snapshots.
type Receive struct {
	Listen      string        `help:"UDP address to bind" default:":5005" env:"PADLINK_LISTEN"`
	Rate        float64       `help:"Driver ticks per second" default:"120" env:"PADLINK_RATE"`
	Deadzone    float64       `help:"Deadzone re-applied to received sticks, in [0,1)" default:"0.08" env:"PADLINK_DEADZONE"`
	Failsafe    time.Duration `help:"Input older than this is replaced by neutral" default:"500ms" env:"PADLINK_FAILSAFE"`
	MaxDrain    int           `help:"Maximum datagrams consumed per tick" default:"256" env:"PADLINK_MAX_DRAIN"`
	Sink        string        `help:"Device sink" enum:"viiper,log" default:"viiper" env:"PADLINK_SINK"`
	Key         string        `help:"Pre-shared key for sealed datagrams; must match the sender" env:"PADLINK_KEY"`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address (e.g. :9105)" env:"PADLINK_METRICS_ADDR"`
	Viiper      viiper.Config `embed:"" prefix:"viiper."`
}

func (r *Receive) Validate() error {
	if r.Rate <= 0 {
		return fmt.Errorf("--rate must be positive, got %v", r.Rate)
	}
	if r.Deadzone < 0 || r.Deadzone >= 1 {
		return fmt.Errorf("--deadzone must be in [0,1), got %v", r.Deadzone)
	}
	if floor := minFailsafePeriods * ticker.PeriodForRate(r.Rate); r.Failsafe < floor {
		return fmt.Errorf("--failsafe must be at least %d tick periods (%s), got %s", minFailsafePeriods, floor, r.Failsafe)
	}
	if r.MaxDrain <= 0 {
		return fmt.Errorf("--max-drain must be positive, got %d", r.MaxDrain)
	}
	return nil
}

// Run is called by Kong when the receive command is executed.
func (r *Receive) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var s sink.Sink
	switch r.Sink {
	case "log":
		s = logsink.New(logger)
	default:
		vs, err := viiper.New(r.Viiper, logger)
		if err != nil {
			return err
		}
		s = vs
	}
	defer s.Close()
	return r.Drive(ctx, s, logger, rawLogger, nil)
}

// Drive binds the listener, waits for s to connect and runs the driver loop
// until ctx is done or s crashes. A nil clock uses the real clock.
func (r *Receive) Drive(ctx context.Context, s sink.Sink, logger *slog.Logger, rawLogger log.RawLogger, clock ticker.Clock) error {
	if err := r.Validate(); err != nil {
		return err
	}
	codec, err := command.NewCodec(r.Key)
	if err != nil {
		return err
	}
	l, err := transport.Listen(r.Listen, rawLogger)
	if err != nil {
		return err
	}
	defer l.Close()

	m := metrics.New()
	if r.MetricsAddr != "" {
		if err := m.Serve(ctx, r.MetricsAddr, logger); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	logger.Info("waiting for device sink", "sink", r.Sink)
	if err := s.WaitConnected(ctx); err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("device sink: %w", err)
	}

	if n := discardBacklog(l); n > 0 {
		logger.Debug("dropped datagrams queued while connecting", "count", n)
	}

	if clock == nil {
		clock = ticker.RealClock{}
	}
	rx := bridge.NewReceiver(l, codec, r.MaxDrain, clock.Now(), logger, m)
	driver := bridge.NewDriver(rx, bridge.Watchdog{Threshold: r.Failsafe}, s, r.Deadzone, logger, m)

	logger.Info("receiving", "listen", l.LocalAddr().String(), "rate_hz", r.Rate, "failsafe", r.Failsafe, "sealed", codec.Sealed())
	err = driver.Run(ctx, ticker.New(ticker.PeriodForRate(r.Rate), clock))
	if err != nil {
		logger.Error("driver stopped", "error", err)
		return err
	}
	logger.Info("receiver stopped")
	return nil
}

// discardBacklog drops datagrams that piled up while the sink was
// connecting, so the first tick never acts on input from before it.
func discardBacklog(l *transport.Listener) int {
	buf := make([]byte, transport.MaxDatagram)
	n := 0
	for range 4096 {
		_, ok, err := l.TryRead(buf)
		if err != nil || !ok {
			break
		}
		n++
	}
	return n
}

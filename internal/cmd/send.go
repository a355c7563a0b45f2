package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Alia5/padlink/bridge"
	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/input"
	"github.com/Alia5/padlink/internal/log"
	"github.com/Alia5/padlink/internal/metrics"
	"github.com/Alia5/padlink/internal/ticker"
	"github.com/Alia5/padlink/sampler"
	"github.com/Alia5/padlink/transport"
)

// Send streams the local controller to a receiver.
type Send struct {
	Dest        string        `help:"Receiver address (host:port)" default:"192.168.64.2:5005" env:"PADLINK_DEST"`
	Rate        float64       `help:"Samples (datagrams) per second" default:"120" env:"PADLINK_RATE"`
	Deadzone    float64       `help:"Stick deadzone in [0,1)" default:"0.08" env:"PADLINK_DEADZONE"`
	Joystick    int           `help:"Joystick index to read" default:"0" env:"PADLINK_JOYSTICK"`
	Key         string        `help:"Pre-shared key for sealing datagrams; must match the receiver" env:"PADLINK_KEY"`
	MetricsAddr string        `help:"Serve Prometheus metrics on this address (e.g. :9105)" env:"PADLINK_METRICS_ADDR"`
	Mapping     input.Mapping `embed:"" prefix:"map."`
}

var openProvider = func(index int) (input.Provider, error) {
	return input.OpenJoystick(index)
}

func (s *Send) Validate() error {
	if s.Rate <= 0 {
		return fmt.Errorf("--rate must be positive, got %v", s.Rate)
	}
	if s.Deadzone < 0 || s.Deadzone >= 1 {
		return fmt.Errorf("--deadzone must be in [0,1), got %v", s.Deadzone)
	}
	return nil
}

// Run is called by Kong when the send command is executed.
func (s *Send) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := openProvider(s.Joystick)
	if err != nil {
		return err
	}
	defer p.Close()
	return s.Stream(ctx, p, logger, rawLogger, nil)
}

// Stream runs the send loop on p until ctx is done. A nil clock uses the
// real clock.
func (s *Send) Stream(ctx context.Context, p input.Provider, logger *slog.Logger, rawLogger log.RawLogger, clock ticker.Clock) error {
	if err := s.Validate(); err != nil {
		return err
	}
	attrs := []any{"name", p.Name()}
	if c, ok := p.(interface {
		AxisCount() int
		ButtonCount() int
	}); ok {
		attrs = append(attrs, "axes", c.AxisCount(), "buttons", c.ButtonCount())
	}
	logger.Info("using controller", attrs...)

	codec, err := command.NewCodec(s.Key)
	if err != nil {
		return err
	}
	tx, err := transport.Dial(s.Dest, rawLogger)
	if err != nil {
		return err
	}
	defer tx.Close()

	m := metrics.New()
	if s.MetricsAddr != "" {
		if err := m.Serve(ctx, s.MetricsAddr, logger); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}

	session := uuid.NewString()
	loop := bridge.NewSendLoop(sampler.New(p, s.Mapping, s.Deadzone, session), codec, tx, logger, m)
	logger.Info("streaming", "dest", tx.Dest(), "rate_hz", s.Rate, "sealed", codec.Sealed(), "sid", session)
	err = loop.Run(ctx, ticker.New(ticker.PeriodForRate(s.Rate), clock))
	logger.Info("sender stopped")
	return err
}

package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/internal/metrics"
	"github.com/Alia5/padlink/internal/ticker"
)

// Sampler produces one snapshot per call.
type Sampler interface {
	Sample(now time.Time) (command.Snapshot, error)
}

// Encoder serializes (and optionally seals) a snapshot.
type Encoder interface {
	Encode(s command.Snapshot) ([]byte, error)
}

// Transmitter sends one datagram.
type Transmitter interface {
	Send(payload []byte) error
}

// SendLoop is the sender-side loop body: one sample, one datagram.
type SendLoop struct {
	sampler Sampler
	enc     Encoder
	tx      Transmitter
	logger  *slog.Logger
	m       *metrics.Metrics

	sampleFail bool
	sendFail   bool
}

// NewSendLoop pairs a sampler with a transmitter, one datagram per tick.
func NewSendLoop(s Sampler, enc Encoder, tx Transmitter, logger *slog.Logger, m *metrics.Metrics) *SendLoop {
	return &SendLoop{sampler: s, enc: enc, tx: tx, logger: logger, m: m}
}

// Tick samples and sends. Input and network failures are logged on change
// and never stop the loop; the snapshot from a failed sample is neutral and
// is still sent so the receiver stays live.
func (l *SendLoop) Tick(now time.Time) error {
	snap, err := l.sampler.Sample(now)
	if err != nil {
		l.m.SampleErrors.Inc()
		if !l.sampleFail {
			l.logger.Warn("reading controller failed, sending neutral", "error", err)
		}
	} else if l.sampleFail {
		l.logger.Info("controller readable again")
	}
	l.sampleFail = err != nil

	payload, err := l.enc.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := l.tx.Send(payload); err != nil {
		l.m.SendErrors.Inc()
		if !l.sendFail {
			l.logger.Warn("send failed", "error", err)
		}
		l.sendFail = true
		return nil
	}
	if l.sendFail {
		l.logger.Info("send recovered")
	}
	l.sendFail = false
	l.m.DatagramsSent.Inc()
	return nil
}

// Run ticks on t until ctx is done or encoding fails.
func (l *SendLoop) Run(ctx context.Context, t *ticker.Ticker) error {
	return runLoop(ctx, t, l.m, l.Tick)
}

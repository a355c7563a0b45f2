// Package logsink is a dry-run sink that only logs what it is given.
package logsink

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/internal/log"
	"github.com/Alia5/padlink/sink"
)

type Sink struct {
	logger *slog.Logger

	mu     sync.Mutex
	last   device.State
	frames uint64
	closed bool
}

func New(logger *slog.Logger) *Sink {
	return &Sink{logger: logger, last: device.Neutral()}
}

func (s *Sink) WaitConnected(ctx context.Context) error {
	s.logger.Info("log sink ready; no device will be driven")
	return nil
}

func (s *Sink) State() (sink.ConnState, error) { return sink.Connected, nil }

func (s *Sink) Apply(st device.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	if st != s.last {
		s.logger.Info("device state", "state", st.String())
		s.last = st
	}
	s.logger.Log(context.Background(), log.LevelTrace, "frame", "n", s.frames, "state", st.String())
	return nil
}

// Frames returns how many states were applied.
func (s *Sink) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.logger.Info("log sink closed", "frames", s.frames)
	}
	return nil
}

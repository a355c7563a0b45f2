// Package viiper drives a virtual Xbox 360 pad on a VIIPER server.
//
// The sink finds or creates a bus, attaches an xbox360 device (reusing a
// known bus-dev address when one is configured or was attached before) and
// writes one input frame per Apply on the device stream. A lost stream puts
// the sink in Reconnecting while a background worker redials with backoff.
package viiper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/sink"
)

// ErrNotConnected is returned by Apply while no stream is attached.
var ErrNotConnected = errors.New("VIIPER device not connected")

type Config struct {
	Addr          string        `help:"VIIPER API server address" default:"localhost:3242" env:"PADLINK_VIIPER_ADDR"`
	Password      string        `help:"VIIPER API password; empty when the server has auth disabled" env:"PADLINK_VIIPER_PASSWORD"`
	Bus           uint32        `help:"Bus to attach to; 0 uses the first bus or creates one" default:"0" env:"PADLINK_VIIPER_BUS"`
	Device        string        `help:"Known device address (bus-dev, e.g. 1-1) to reattach before creating a new pad" env:"PADLINK_VIIPER_DEVICE"`
	MaxReconnects int           `help:"Consecutive failed reattach attempts after a lost stream before the sink is considered crashed; 0 retries forever. The first attach at startup is tried once" default:"20" env:"PADLINK_VIIPER_MAX_RECONNECTS"`
	DialTimeout   time.Duration `help:"Dial timeout for API and stream connections" default:"3s" env:"PADLINK_VIIPER_DIAL_TIMEOUT"`
	WriteTimeout  time.Duration `help:"Deadline for writing one input frame" default:"100ms" env:"PADLINK_VIIPER_WRITE_TIMEOUT"`
	Backoff       time.Duration `help:"Initial reconnect delay, doubled after each failure" default:"250ms" env:"PADLINK_VIIPER_BACKOFF"`
	MaxBackoff    time.Duration `help:"Upper bound for the reconnect delay" default:"5s" env:"PADLINK_VIIPER_MAX_BACKOFF"`
}

type Sink struct {
	cfg    Config
	logger *slog.Logger
	api    *client
	known  Address

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	wg        sync.WaitGroup

	mu       sync.Mutex
	state    sink.ConnState
	crashErr error
	stream   net.Conn
	attached Address
	failures int
	changed  chan struct{}
	closed   bool
}

// New validates cfg and prepares the sink. Nothing is dialed until
// WaitConnected.
func New(cfg Config, logger *slog.Logger) (*Sink, error) {
	known, err := ParseAddress(cfg.Device)
	if err != nil {
		return nil, err
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 250 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.Backoff {
		cfg.MaxBackoff = cfg.Backoff
	}
	api, err := newClient(cfg.Addr, cfg.Password, cfg.DialTimeout, cfg.DialTimeout, logger)
	if err != nil {
		return nil, fmt.Errorf("VIIPER password: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sink{
		cfg:     cfg,
		logger:  logger.With("sink", "viiper", "addr", cfg.Addr),
		api:     api,
		known:   known,
		ctx:     ctx,
		cancel:  cancel,
		state:   sink.Connecting,
		changed: make(chan struct{}),
	}, nil
}

// WaitConnected starts the attach worker on first use and blocks until the
// pad is attached or the sink crashes.
func (s *Sink) WaitConnected(ctx context.Context) error {
	s.startOnce.Do(func() {
		s.wg.Add(1)
		go s.connectLoop(true)
	})
	for {
		s.mu.Lock()
		st, crashErr, ch := s.state, s.crashErr, s.changed
		s.mu.Unlock()
		switch st {
		case sink.Connected:
			return nil
		case sink.Crashed:
			return crashErr
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Sink) State() (sink.ConnState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.crashErr
}

// Attached returns the address of the currently or last attached pad.
func (s *Sink) Attached() Address {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attached
}

func (s *Sink) Apply(st device.State) error {
	s.mu.Lock()
	conn, state, crashErr := s.stream, s.state, s.crashErr
	s.mu.Unlock()

	if state == sink.Crashed {
		return crashErr
	}
	if state != sink.Connected || conn == nil {
		return ErrNotConnected
	}
	if s.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	if _, err := conn.Write(encodeFrame(st)); err != nil {
		s.lost(conn, err)
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.stream
	s.stream = nil
	s.mu.Unlock()

	s.cancel()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	s.wg.Wait()
	return err
}

// setState must be called with mu held.
func (s *Sink) setState(st sink.ConnState, err error) {
	s.state = st
	s.crashErr = err
	close(s.changed)
	s.changed = make(chan struct{})
}

// connectLoop attaches the pad. The first attach at startup gets a single
// attempt; only a pad that was attached before is redialed with backoff.
func (s *Sink) connectLoop(initial bool) {
	defer s.wg.Done()
	delay := s.cfg.Backoff
	for {
		conn, addr, err := s.attach(s.ctx)
		if err == nil {
			s.mu.Lock()
			if s.closed {
				s.mu.Unlock()
				conn.Close()
				return
			}
			s.stream = conn
			s.attached = addr
			s.failures = 0
			s.setState(sink.Connected, nil)
			s.wg.Add(1)
			s.mu.Unlock()

			s.logger.Info("VIIPER pad attached", "device", addr.String())
			go s.watch(conn)
			return
		}
		if s.ctx.Err() != nil {
			return
		}

		s.mu.Lock()
		s.failures++
		n := s.failures
		s.mu.Unlock()

		if initial || isFatal(err) || (s.cfg.MaxReconnects > 0 && n > s.cfg.MaxReconnects) {
			crashErr := fmt.Errorf("%w: %w", sink.ErrCrashed, err)
			if initial {
				crashErr = fmt.Errorf("%w: cannot attach pad on %s: %w", sink.ErrCrashed, s.cfg.Addr, err)
			}
			s.mu.Lock()
			s.setState(sink.Crashed, crashErr)
			s.mu.Unlock()
			s.logger.Error("VIIPER sink gave up", "attempts", n, "error", err)
			return
		}

		s.logger.Warn("VIIPER attach failed, retrying", "attempt", n, "retry_in", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
		delay = min(delay*2, s.cfg.MaxBackoff)
	}
}

// attach reuses the last attached (or configured) pad when the server still
// has it, otherwise creates a new one.
func (s *Sink) attach(ctx context.Context) (net.Conn, Address, error) {
	s.mu.Lock()
	want := s.attached
	s.mu.Unlock()
	if want.IsZero() {
		want = s.known
	}

	if !want.IsZero() {
		devs, err := s.api.devicesList(ctx, want.Bus)
		if err != nil && isFatal(err) {
			return nil, Address{}, err
		}
		found := slices.ContainsFunc(devs, func(d apiDevice) bool {
			return d.DevId == want.Dev && d.Type == DeviceType
		})
		if found {
			conn, err := s.api.openStream(ctx, want)
			return conn, want, err
		}
		s.logger.Info("known VIIPER pad is gone, creating a new one", "device", want.String())
	}

	bus, err := s.pickBus(ctx)
	if err != nil {
		return nil, Address{}, err
	}
	dev, err := s.api.deviceAdd(ctx, bus, DeviceType)
	if err != nil {
		return nil, Address{}, fmt.Errorf("add %s on bus %d: %w", DeviceType, bus, err)
	}
	addr := Address{Bus: dev.BusID, Dev: dev.DevId}
	conn, err := s.api.openStream(ctx, addr)
	return conn, addr, err
}

func (s *Sink) pickBus(ctx context.Context) (uint32, error) {
	buses, err := s.api.busList(ctx)
	if err != nil {
		return 0, fmt.Errorf("list buses: %w", err)
	}
	if s.cfg.Bus != 0 {
		if slices.Contains(buses, s.cfg.Bus) {
			return s.cfg.Bus, nil
		}
		return s.api.busCreate(ctx, s.cfg.Bus)
	}
	if len(buses) > 0 {
		return buses[0], nil
	}
	return s.api.busCreate(ctx, 0)
}

// watch drains device feedback (rumble) so the server never blocks on us,
// and notices when the server drops the stream.
func (s *Sink) watch(conn net.Conn) {
	defer s.wg.Done()
	_, err := io.Copy(io.Discard, conn)
	if err == nil {
		err = io.EOF
	}
	s.lost(conn, err)
}

// lost moves the sink to Reconnecting once per stream and starts the redial
// worker.
func (s *Sink) lost(conn net.Conn, cause error) {
	s.mu.Lock()
	if s.closed || s.stream != conn {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	_ = conn.Close()
	s.setState(sink.Reconnecting, nil)
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Warn("VIIPER stream lost, reconnecting", "error", cause)
	go s.connectLoop(false)
}

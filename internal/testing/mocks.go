package testing

import (
	"context"
	"sync"

	"github.com/Alia5/padlink/device"
	"github.com/Alia5/padlink/sink"
)

// MockProvider is an input.Provider with fixed readings.
type MockProvider struct {
	Axes       map[int]float64
	Buttons    map[int]bool
	RefreshErr error
	Refreshes  int
	Closed     bool
}

func NewMockProvider(axes map[int]float64, buttons map[int]bool) *MockProvider {
	return &MockProvider{Axes: axes, Buttons: buttons}
}

func (m *MockProvider) Name() string { return "mock joystick" }

func (m *MockProvider) Refresh() error {
	m.Refreshes++
	return m.RefreshErr
}

func (m *MockProvider) Axis(i int) float64 { return m.Axes[i] }
func (m *MockProvider) Button(i int) bool  { return m.Buttons[i] }

func (m *MockProvider) Close() error {
	m.Closed = true
	return nil
}

// MockSource is a datagram source that hands out queued payloads, then
// reports "nothing pending".
type MockSource struct {
	Queue   [][]byte
	ReadErr error
	Reads   int
}

// Push queues datagrams for the next drains.
func (m *MockSource) Push(payloads ...[]byte) {
	m.Queue = append(m.Queue, payloads...)
}

func (m *MockSource) TryRead(buf []byte) (int, bool, error) {
	m.Reads++
	if m.ReadErr != nil {
		err := m.ReadErr
		m.ReadErr = nil
		return 0, false, err
	}
	if len(m.Queue) == 0 {
		return 0, false, nil
	}
	p := m.Queue[0]
	m.Queue = m.Queue[1:]
	return copy(buf, p), true, nil
}

// MockSink records every applied state.
type MockSink struct {
	mu       sync.Mutex
	Applied  []device.State
	ApplyErr error
	ConnErr  error
	Conn     sink.ConnState
	Closed   bool
	// OnApply runs after each Apply, e.g. to script state transitions.
	OnApply func(n int, m *MockSink)
}

func NewMockSink() *MockSink {
	return &MockSink{Conn: sink.Connected}
}

func (m *MockSink) WaitConnected(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Conn == sink.Crashed {
		return m.ConnErr
	}
	return ctx.Err()
}

func (m *MockSink) State() (sink.ConnState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Conn == sink.Crashed {
		return m.Conn, m.ConnErr
	}
	return m.Conn, nil
}

func (m *MockSink) Apply(st device.State) error {
	m.mu.Lock()
	m.Applied = append(m.Applied, st)
	n := len(m.Applied)
	err := m.ApplyErr
	hook := m.OnApply
	m.mu.Unlock()
	if hook != nil {
		hook(n, m)
	}
	return err
}

// SetConn changes the reported connection state.
func (m *MockSink) SetConn(s sink.ConnState, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Conn = s
	m.ConnErr = err
}

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// Last returns the most recently applied state.
func (m *MockSink) Last() device.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Applied) == 0 {
		return device.State{}
	}
	return m.Applied[len(m.Applied)-1]
}

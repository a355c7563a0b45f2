package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/padlink/command"
	"github.com/Alia5/padlink/internal/log"
	"github.com/Alia5/padlink/transport"
)

// Listen prints every datagram that reaches the port. It is the first thing
// to run when the receiver sees nothing.
type Listen struct {
	Addr    string        `name:"listen" help:"UDP address to bind" default:":5005" env:"PADLINK_LISTEN"`
	Timeout time.Duration `help:"Report silence after this long without a datagram" default:"1s" env:"PADLINK_LISTEN_TIMEOUT"`
	Key     string        `help:"Pre-shared key for sealed datagrams" env:"PADLINK_KEY"`
	JSON    bool          `help:"Emit JSON lines even when stdout is a terminal"`
}

// Run is called by Kong when the listen command is executed.
func (l *Listen) Run(logger *slog.Logger, rawLogger log.RawLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	pretty := !l.JSON && term.IsTerminal(int(os.Stdout.Fd()))
	return l.Print(ctx, os.Stdout, pretty, logger, rawLogger)
}

type listenLine struct {
	Count    int             `json:"count"`
	From     string          `json:"from"`
	DT       float64         `json:"dt"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
	Raw      string          `json:"raw,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// Print reads datagrams until ctx is done. pretty selects the human format
// "[n] from addr dt=0.008s -> ...", otherwise one JSON object per line.
func (l *Listen) Print(ctx context.Context, w io.Writer, pretty bool, logger *slog.Logger, rawLogger log.RawLogger) error {
	if l.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", l.Timeout)
	}
	codec, err := command.NewCodec(l.Key)
	if err != nil {
		return err
	}
	ln, err := transport.Listen(l.Addr, rawLogger)
	if err != nil {
		return err
	}
	defer ln.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = ln.Close()
	}()

	logger.Info("listening", "addr", ln.LocalAddr().String(), "sealed", codec.Sealed())
	fmt.Fprintf(w, "Listening on UDP %s ... Ctrl+C to stop\n", ln.LocalAddr())

	buf := make([]byte, transport.MaxDatagram)
	count := 0
	var last time.Time
	for {
		n, from, err := ln.Read(buf, l.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				fmt.Fprintf(w, "(timeout) no packet in last %s\n", l.Timeout)
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		now := time.Now()
		count++
		var dt float64
		if !last.IsZero() {
			dt = now.Sub(last).Seconds()
		}
		last = now

		snap, decErr := codec.Decode(buf[:n])
		if pretty {
			msg := describe(snap)
			if decErr != nil {
				msg = fmt.Sprintf("%q (%v)", buf[:n], decErr)
			}
			fmt.Fprintf(w, "[%d] from %s dt=%.3fs -> %s\n", count, from, dt, msg)
			continue
		}

		line := listenLine{Count: count, From: from.String(), DT: dt}
		if decErr != nil {
			line.Raw = string(buf[:n])
			line.Error = decErr.Error()
		} else if line.Snapshot, err = command.Marshal(snap); err != nil {
			return err
		}
		out, err := json.Marshal(line)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\n", out)
	}
}

func describe(s command.Snapshot) string {
	b := func(v bool) int {
		if v {
			return 1
		}
		return 0
	}
	out := fmt.Sprintf("lx=%+.3f ly=%+.3f a=%d b=%d x=%d y=%d drift=%d pause=%d",
		s.LX, s.LY, b(s.A), b(s.B), b(s.X), b(s.Y), b(s.Drift), b(s.Pause))
	if s.Seq != 0 {
		out += fmt.Sprintf(" seq=%d", s.Seq)
	}
	if !s.TS.IsZero() {
		out += fmt.Sprintf(" ts=%.3f", float64(s.TS.UnixNano())/1e9)
	}
	return out
}

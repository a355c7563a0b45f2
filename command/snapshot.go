// Package command defines the normalized command snapshot exchanged between
// the sender and the receiver, and its datagram encoding.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/Alia5/padlink/internal/seal"
)

// ErrMalformed is returned by Unmarshal and Codec.Decode for payloads that
// cannot be interpreted as a snapshot.
var ErrMalformed = errors.New("malformed snapshot")

// Snapshot is one normalized sample of the input source.
// Axes are post-deadzone, post-clamp values in [-1, 1]; LY keeps the input
// convention (up is negative).
//
// Wire format (UTF-8 JSON object, additive-only):
//
//	lx, ly        float
//	a, b, x, y    0/1 (true/false accepted)
//	drift, pause  0/1 (true/false accepted)
//	ts            float seconds since epoch
//	seq           uint, per-sender counter (optional)
//	sid           string, sender session id (optional)
//
// Unknown fields are ignored and missing fields decode as neutral.
type Snapshot struct {
	LX, LY float64

	A, B, X, Y bool
	Drift      bool
	Pause      bool

	TS      time.Time
	Seq     uint64
	Session string
}

type wireSnapshot struct {
	LX    float64 `json:"lx"`
	LY    float64 `json:"ly"`
	A     int     `json:"a"`
	B     int     `json:"b"`
	X     int     `json:"x"`
	Y     int     `json:"y"`
	Drift int     `json:"drift"`
	Pause int     `json:"pause"`
	TS    float64 `json:"ts"`
	Seq   uint64  `json:"seq,omitempty"`
	SID   string  `json:"sid,omitempty"`
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Marshal encodes s into its JSON wire form.
func Marshal(s Snapshot) ([]byte, error) {
	w := wireSnapshot{
		LX:    finite(s.LX),
		LY:    finite(s.LY),
		A:     flag(s.A),
		B:     flag(s.B),
		X:     flag(s.X),
		Y:     flag(s.Y),
		Drift: flag(s.Drift),
		Pause: flag(s.Pause),
		Seq:   s.Seq,
		SID:   s.Session,
	}
	if !s.TS.IsZero() {
		w.TS = float64(s.TS.UnixNano()) / float64(time.Second)
	}
	return json.Marshal(w)
}

// Unmarshal decodes a JSON wire payload. Field presence drives decoding; a
// payload that is not a JSON object or has a wrongly typed known field
// returns an error wrapping ErrMalformed.
func Unmarshal(data []byte) (Snapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if fields == nil {
		return Snapshot{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var (
		s   Snapshot
		err error
	)
	floats := []struct {
		key string
		dst *float64
	}{
		{"lx", &s.LX},
		{"ly", &s.LY},
	}
	for _, f := range floats {
		if raw, ok := fields[f.key]; ok {
			if *f.dst, err = decodeNumber(raw); err != nil {
				return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformed, f.key, err)
			}
		}
	}

	flags := []struct {
		key string
		dst *bool
	}{
		{"a", &s.A},
		{"b", &s.B},
		{"x", &s.X},
		{"y", &s.Y},
		{"drift", &s.Drift},
		{"pause", &s.Pause},
	}
	for _, f := range flags {
		if raw, ok := fields[f.key]; ok {
			if *f.dst, err = decodeFlag(raw); err != nil {
				return Snapshot{}, fmt.Errorf("%w: %s: %v", ErrMalformed, f.key, err)
			}
		}
	}

	if raw, ok := fields["ts"]; ok {
		ts, err := decodeNumber(raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: ts: %v", ErrMalformed, err)
		}
		if ts > 0 {
			sec, frac := math.Modf(ts)
			s.TS = time.Unix(int64(sec), int64(math.Round(frac*1e9)))
		}
	}
	if raw, ok := fields["seq"]; ok {
		seq, err := decodeNumber(raw)
		if err != nil || seq < 0 {
			return Snapshot{}, fmt.Errorf("%w: seq", ErrMalformed)
		}
		s.Seq = uint64(seq)
	}
	if raw, ok := fields["sid"]; ok {
		if err := json.Unmarshal(raw, &s.Session); err != nil {
			return Snapshot{}, fmt.Errorf("%w: sid: %v", ErrMalformed, err)
		}
	}
	return s, nil
}

// decodeNumber accepts a JSON number; null is treated as absent (0).
func decodeNumber(raw json.RawMessage) (float64, error) {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	return *v, nil
}

// decodeFlag accepts booleans, numbers (non-zero is pressed) and null.
func decodeFlag(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case nil:
		return false, nil
	case bool:
		return t, nil
	case float64:
		return t != 0, nil
	default:
		return false, fmt.Errorf("expected number or bool, got %T", v)
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Codec turns snapshots into datagram payloads and back, optionally sealing
// them with a pre-shared key.
type Codec struct {
	sealer *seal.Sealer
}

// NewCodec returns a Codec. An empty key disables sealing.
func NewCodec(key string) (*Codec, error) {
	if key == "" {
		return &Codec{}, nil
	}
	s, err := seal.New(key)
	if err != nil {
		return nil, err
	}
	return &Codec{sealer: s}, nil
}

// Sealed reports whether payloads are sealed.
func (c *Codec) Sealed() bool { return c.sealer != nil }

// Encode marshals s and seals it when a key is configured.
func (c *Codec) Encode(s Snapshot) ([]byte, error) {
	b, err := Marshal(s)
	if err != nil {
		return nil, err
	}
	if c.sealer == nil {
		return b, nil
	}
	return c.sealer.Seal(b)
}

// Decode opens (when sealed) and unmarshals a datagram payload. Every failure
// wraps ErrMalformed so callers can treat them uniformly as untrusted input.
func (c *Codec) Decode(data []byte) (Snapshot, error) {
	if c.sealer != nil {
		pt, err := c.sealer.Open(data)
		if err != nil {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		data = pt
	}
	return Unmarshal(data)
}

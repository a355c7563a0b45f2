package viiper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"
)

// client speaks the VIIPER management protocol.
// Request framing: `<path>[ SP <payload>]\x00`. The server answers with one
// JSON document (or an RFC 7807 problem) and closes the connection.
type client struct {
	addr        string
	key         []byte
	dialTimeout time.Duration
	ioTimeout   time.Duration
	logger      *slog.Logger
}

func newClient(addr, password string, dialTimeout, ioTimeout time.Duration, logger *slog.Logger) (*client, error) {
	c := &client{addr: addr, dialTimeout: dialTimeout, ioTimeout: ioTimeout, logger: logger}
	if password != "" {
		key, err := deriveKey(password)
		if err != nil {
			return nil, err
		}
		c.key = key
	}
	return c, nil
}

// connect dials the API and, when a password is configured, authenticates
// and wraps the connection.
func (c *client) connect(ctx context.Context) (net.Conn, error) {
	d := &net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			c.logger.Warn("failed to set TCP_NODELAY", "error", err)
		}
	}
	if c.key == nil {
		return conn, nil
	}

	if c.ioTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.ioTimeout))
	}
	r := bufio.NewReader(conn)
	clientNonce, serverNonce, err := clientHandshake(r, conn, c.key)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetDeadline(time.Time{})

	sc, err := newSecureConn(conn, r, deriveSessionKey(c.key, serverNonce, clientNonce))
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sc, nil
}

// do sends one request and returns the response without its trailing newline.
func (c *client) do(ctx context.Context, path, payload string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	conn, err := c.connect(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	line := path
	if payload != "" {
		line += " " + payload
	}
	if c.ioTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.ioTimeout))
	}
	if _, err := conn.Write([]byte(line + "\x00")); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	resp, err := io.ReadAll(conn)
	if err != nil && len(resp) == 0 {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.TrimSuffix(string(resp), "\n"), nil
}

func (c *client) busList(ctx context.Context) ([]uint32, error) {
	raw, err := c.do(ctx, "bus/list", "")
	if err != nil {
		return nil, err
	}
	out, err := parse[busListResponse](raw)
	if err != nil {
		return nil, err
	}
	return out.Buses, nil
}

// busCreate creates bus id, or lets the server pick one when id is 0.
func (c *client) busCreate(ctx context.Context, id uint32) (uint32, error) {
	payload := ""
	if id != 0 {
		payload = strconv.FormatUint(uint64(id), 10)
	}
	raw, err := c.do(ctx, "bus/create", payload)
	if err != nil {
		return 0, err
	}
	out, err := parse[busCreateResponse](raw)
	if err != nil {
		return 0, err
	}
	return out.BusID, nil
}

func (c *client) deviceAdd(ctx context.Context, bus uint32, devType string) (*apiDevice, error) {
	payload, err := json.Marshal(deviceCreateRequest{Type: devType})
	if err != nil {
		return nil, fmt.Errorf("marshal device create request: %w", err)
	}
	raw, err := c.do(ctx, fmt.Sprintf("bus/%d/add", bus), string(payload))
	if err != nil {
		return nil, err
	}
	return parse[apiDevice](raw)
}

func (c *client) devicesList(ctx context.Context, bus uint32) ([]apiDevice, error) {
	raw, err := c.do(ctx, fmt.Sprintf("bus/%d/list", bus), "")
	if err != nil {
		return nil, err
	}
	out, err := parse[devicesListResponse](raw)
	if err != nil {
		return nil, err
	}
	return out.Devices, nil
}

// openStream connects to a device's input stream. The returned connection
// stays open; every write is one input frame.
func (c *client) openStream(ctx context.Context, addr Address) (net.Conn, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	if c.ioTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(c.ioTimeout))
	}
	if _, err := conn.Write([]byte(fmt.Sprintf("bus/%d/%s\x00", addr.Bus, addr.Dev))); err != nil {
		conn.Close()
		return nil, fmt.Errorf("write stream path: %w", err)
	}
	_ = conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	var problem ApiError
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return nil, &problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}

package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/runtime"
)

const callTimeout = 15 * time.Second

// ErrClientBroken is returned when the connection failed mid-call and the
// socket could not be redialed.
var ErrClientBroken = errors.New("socketrpc: connection broken")

// Client talks to a Server over a Unix domain socket using JSON-RPC 2.0.
// Calls are serialized; one request is in flight at a time.
type Client struct {
	path    string
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	timeout time.Duration
	broken  error
	closed  bool
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCallTimeout bounds each call, request and response together.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string, opts ...ClientOption) (*Client, error) {
	c := &Client{path: socketPath, timeout: callTimeout}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	conn, err := net.DialTimeout("unix", c.path, 5*time.Second)
	if err != nil {
		return fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	c.conn = conn
	c.scanner = scanner
	c.encoder = json.NewEncoder(conn)
	c.broken = nil
	return nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.broken != nil {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) call(method string, params any, dest any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("socketrpc: client closed")
	}
	if c.broken != nil {
		if err := c.connect(); err != nil {
			return fmt.Errorf("%w: %v", ErrClientBroken, err)
		}
	}

	c.nextID++
	id := c.nextID

	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("socketrpc: marshal params: %w", err)
		}
		raw = data
	}

	_ = c.conn.SetDeadline(time.Now().Add(c.timeout))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(Request{JSONRPC: "2.0", ID: id, Method: method, Params: raw}); err != nil {
		return c.fail(fmt.Errorf("socketrpc: send: %w", err))
	}

	// A reply that misses the deadline would be read by the next call, so
	// any read failure retires the connection.
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return c.fail(fmt.Errorf("socketrpc: read: %w", err))
		}
		return c.fail(errors.New("socketrpc: connection closed"))
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return c.fail(fmt.Errorf("socketrpc: unmarshal response: %w", err))
	}
	if resp.ID != id {
		return c.fail(fmt.Errorf("socketrpc: response id %d does not match request %d", resp.ID, id))
	}
	if resp.Error != nil {
		return resp.Error
	}

	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// fail closes the connection so the next call starts on a fresh one.
// c.mu is held.
func (c *Client) fail(err error) error {
	c.broken = err
	_ = c.conn.Close()
	return err
}

// Dispatch sends one host event to the application loop.
func (c *Client) Dispatch(e event.Envelope) error {
	var result DispatchResult
	if err := c.call(MethodDispatch, e, &result); err != nil {
		return err
	}
	if !result.Accepted {
		return fmt.Errorf("socketrpc: event %q was not accepted", e.Name)
	}
	return nil
}

// Snapshot fetches the latest published frame.
func (c *Client) Snapshot() (runtime.Frame, error) {
	var frame runtime.Frame
	err := c.call(MethodSnapshot, nil, &frame)
	return frame, err
}

// Stats fetches analytics totals and the most recent key presses.
func (c *Client) Stats(limit int) (StatsResult, error) {
	var result StatsResult
	err := c.call(MethodStats, map[string]any{"Limit": limit}, &result)
	return result, err
}

package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rustacademy/academy/internal/model"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server lets local clients drive the application loop and
// read its published frames over a Unix domain socket.
//
//   Method      Params                               Result
//   ─────────   ──────────────────────────────────   ────────────────────────────────
//   Dispatch    {Name: string, Payload: *string}     {accepted: bool, name: string}
//   Snapshot    (none)                               runtime.Frame
//   Stats       {Limit: int}                         StatsResult
//
// Snapshot accepts empty or null params. Stats returns an application error
// when the analytics store is disabled.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params (including unknown event names and bad payloads)
//   -32603  Internal error (marshal failure)
//   -32000  Application error (loop stopped, query failure)

const (
	MethodDispatch = "Dispatch"
	MethodSnapshot = "Snapshot"
	MethodStats    = "Stats"
)

const (
	CodeParseError     = -32700
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeAppError       = -32000
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DispatchResult acknowledges an accepted event.
type DispatchResult struct {
	Accepted bool   `json:"accepted"`
	Name     string `json:"name"`
}

// StatsResult summarizes the analytics store.
type StatsResult struct {
	TotalTransitions int64                `json:"total_transitions"`
	Messages         []model.MessageCount `json:"messages"`
	RecentKeys       []model.KeyEvent     `json:"recent_keys"`
}

// DefaultSocketPath returns the default Unix socket path.
// It prefers $XDG_RUNTIME_DIR/academy/academy.sock, falling back to
// ~/.local/state/academy/academy.sock.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "academy", "academy.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/academy.sock"
	}
	return filepath.Join(home, ".local", "state", "academy", "academy.sock")
}

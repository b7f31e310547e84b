package socketrpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/runtime"
)

const (
	// Requests are single JSON lines; envelopes are small but search text is
	// user supplied, so allow generous lines.
	scannerInitBufSize  = 64 * 1024
	scannerMaxTokenSize = 4 * 1024 * 1024

	defaultStatsLimit = 10
	dispatchTimeout   = 10 * time.Second
)

// FrameSource exposes the latest published frame.
type FrameSource interface {
	Snapshot() runtime.Frame
}

// EventDispatcher accepts host events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, e event.Envelope) error
}

// Server exposes the application loop over a Unix domain socket using JSON-RPC 2.0.
type Server struct {
	socketPath string
	frames     FrameSource
	dispatcher EventDispatcher
	stats      model.StatsQuerier
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
	stopOnce   sync.Once
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer creates a new socket RPC server. stats may be nil when the
// analytics store is disabled.
func NewServer(socketPath string, frames FrameSource, dispatcher EventDispatcher, stats model.StatsQuerier) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		socketPath: socketPath,
		frames:     frames,
		dispatcher: dispatcher,
		stats:      stats,
		quit:       make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			// Nobody is listening; the file was left behind by a crash.
			_ = os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Path returns the socket path.
func (s *Server) Path() string {
	return s.socketPath
}

// Stop closes the listener, cancels in-flight dispatches, waits for
// connections to drain, and removes the socket file. Safe to call twice.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		_ = os.Remove(s.socketPath)
	})
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	// Unblock the scanner when the server stops.
	go func() {
		select {
		case <-s.quit:
			conn.Close()
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			resp := Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: CodeParseError, Message: "parse error"}}
			if err := encoder.Encode(resp); err != nil {
				return
			}
			continue
		}

		resp := s.dispatch(req)
		if err := encoder.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v any) Response {
		data, err := json.Marshal(v)
		if err != nil {
			resp.Error = &RPCError{Code: CodeInternalError, Message: err.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	fail := func(code int, err error) Response {
		resp.Error = &RPCError{Code: code, Message: err.Error()}
		return resp
	}

	switch req.Method {
	case MethodDispatch:
		var env event.Envelope
		if err := json.Unmarshal(req.Params, &env); err != nil {
			return fail(CodeInvalidParams, fmt.Errorf("invalid params: %w", err))
		}
		ctx, cancel := context.WithTimeout(s.ctx, dispatchTimeout)
		defer cancel()
		if err := s.dispatcher.Dispatch(ctx, env); err != nil {
			if errors.Is(err, event.ErrUnknownEvent) || errors.Is(err, event.ErrInvalidPayload) {
				return fail(CodeInvalidParams, err)
			}
			return fail(CodeAppError, err)
		}
		return marshalResult(DispatchResult{Accepted: true, Name: env.Name})

	case MethodSnapshot:
		return marshalResult(s.frames.Snapshot())

	case MethodStats:
		var p struct{ Limit int }
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			return fail(CodeInvalidParams, fmt.Errorf("invalid params: %w", err))
		}
		if s.stats == nil {
			return fail(CodeAppError, errors.New("analytics store is disabled"))
		}
		if p.Limit <= 0 {
			p.Limit = defaultStatsLimit
		}
		result, err := s.collectStats(p.Limit)
		if err != nil {
			return fail(CodeAppError, err)
		}
		return marshalResult(result)

	default:
		resp.Error = &RPCError{Code: CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}

func (s *Server) collectStats(limit int) (StatsResult, error) {
	total, err := s.stats.TotalTransitions()
	if err != nil {
		return StatsResult{}, fmt.Errorf("total transitions: %w", err)
	}
	counts, err := s.stats.MessageCounts()
	if err != nil {
		return StatsResult{}, fmt.Errorf("message counts: %w", err)
	}
	keys, err := s.stats.RecentKeys(limit)
	if err != nil {
		return StatsResult{}, fmt.Errorf("recent keys: %w", err)
	}
	return StatsResult{TotalTransitions: total, Messages: counts, RecentKeys: keys}, nil
}

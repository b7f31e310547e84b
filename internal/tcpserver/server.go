// Package tcpserver accepts host event bridges: processes that write one
// event per line (JSON envelope, tagged JSON or "<Name> [payload]" text)
// to a TCP connection.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rustacademy/academy/internal/model"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = "127.0.0.1:4100"

	// DefaultLineChannelSize is the default buffer for received event lines.
	DefaultLineChannelSize = 4096

	// DefaultMaxLineSize caps a single event line in bytes.
	DefaultMaxLineSize = 64 * 1024

	// DefaultMaxBridges caps concurrently connected bridges.
	DefaultMaxBridges = 64

	acceptRetryDelay = 50 * time.Millisecond
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	LineChannelSize int
	MaxLineSize     int
	MaxBridges      int
	// IdleTimeout disconnects a bridge that sends nothing for this long.
	// Zero keeps idle bridges connected.
	IdleTimeout time.Duration
}

// Server fans event lines from every connected bridge into one channel.
// Each line is tagged "tcp#<n>" with the bridge's connection number so
// multi-line JSON from different bridges is never interleaved downstream.
type Server struct {
	conf     ServerConfig
	addr     string
	lines    chan model.IngestEnvelope
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu      sync.Mutex
	bridges map[uint64]net.Conn
	nextID  uint64

	rejected atomic.Uint64
}

// NewServer creates a TCP server listening on addr, or DefaultAddr when empty.
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	c := ServerConfig{
		LineChannelSize: DefaultLineChannelSize,
		MaxLineSize:     DefaultMaxLineSize,
		MaxBridges:      DefaultMaxBridges,
	}
	if len(conf) > 0 {
		if conf[0].LineChannelSize > 0 {
			c.LineChannelSize = conf[0].LineChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			c.MaxLineSize = conf[0].MaxLineSize
		}
		if conf[0].MaxBridges > 0 {
			c.MaxBridges = conf[0].MaxBridges
		}
		c.IdleTimeout = conf[0].IdleTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		conf:    c,
		addr:    addr,
		lines:   make(chan model.IngestEnvelope, c.LineChannelSize),
		ctx:     ctx,
		cancel:  cancel,
		bridges: make(map[uint64]net.Conn),
	}
}

// Start binds the listener and begins accepting bridges.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("tcpserver: listen %s: %w", s.addr, err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("tcpserver: accept: %v", err)
			select {
			case <-time.After(acceptRetryDelay):
			case <-s.ctx.Done():
				return
			}
			continue
		}

		id, ok := s.track(conn)
		if !ok {
			s.rejected.Add(1)
			log.Printf("tcpserver: rejected bridge %s: %d bridges already connected", conn.RemoteAddr(), s.conf.MaxBridges)
			_ = conn.Close()
			continue
		}
		s.wg.Add(1)
		go s.serveBridge(id, conn)
	}
}

func (s *Server) track(conn net.Conn) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil || len(s.bridges) >= s.conf.MaxBridges {
		return 0, false
	}
	s.nextID++
	s.bridges[s.nextID] = conn
	return s.nextID, true
}

func (s *Server) untrack(id uint64) {
	s.mu.Lock()
	delete(s.bridges, id)
	s.mu.Unlock()
}

func (s *Server) serveBridge(id uint64, conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(id)
	defer conn.Close()

	source := fmt.Sprintf("tcp#%d", id)
	r := bufio.NewScanner(conn)
	r.Buffer(make([]byte, 0, min(4096, s.conf.MaxLineSize)), s.conf.MaxLineSize)

	for {
		if s.conf.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.conf.IdleTimeout))
		}
		if !r.Scan() {
			break
		}
		line := r.Text()
		if line == "" {
			continue
		}
		select {
		case s.lines <- model.IngestEnvelope{Source: source, Line: line}:
		case <-s.ctx.Done():
			return
		}
	}

	select {
	case s.lines <- model.IngestEnvelope{Source: source, Closed: true}:
	case <-s.ctx.Done():
	}

	err := r.Err()
	var netErr net.Error
	switch {
	case err == nil, s.ctx.Err() != nil:
	case errors.Is(err, bufio.ErrTooLong):
		log.Printf("tcpserver: dropped %s (%s): event line exceeds %d bytes", source, conn.RemoteAddr(), s.conf.MaxLineSize)
	case errors.As(err, &netErr) && netErr.Timeout():
		log.Printf("tcpserver: disconnected idle %s (%s)", source, conn.RemoteAddr())
	default:
		log.Printf("tcpserver: read %s (%s): %v", source, conn.RemoteAddr(), err)
	}
}

// Stop closes the listener and every bridge, then closes Lines.
// It is safe to call more than once.
func (s *Server) Stop() error {
	s.once.Do(func() {
		s.cancel()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.mu.Lock()
		for _, c := range s.bridges {
			_ = c.Close()
		}
		s.mu.Unlock()
		s.wg.Wait()
		close(s.lines)
	})
	return nil
}

// Lines returns the channel of received event lines.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lines
}

// ActiveConnections reports connected bridges.
func (s *Server) ActiveConnections() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.bridges))
}

// Rejected reports bridges turned away because MaxBridges was reached.
func (s *Server) Rejected() uint64 {
	return s.rejected.Load()
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

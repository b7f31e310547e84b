package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rustacademy/academy/internal/app"
	"github.com/rustacademy/academy/internal/event"
	"github.com/rustacademy/academy/internal/model"
	"github.com/rustacademy/academy/internal/runtime"
	"github.com/rustacademy/academy/internal/tree"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "127.0.0.1:3000"

// PageTitle is the HTML document title.
const PageTitle = app.Brand

// FrameSource exposes the latest rendered frame.
type FrameSource interface {
	Snapshot() runtime.Frame
}

// EventDispatcher accepts host events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, e event.Envelope) error
}

// Server is the browser host: it serves the rendered page and accepts the
// events fired by its bindings.
type Server struct {
	addr       string
	frames     FrameSource
	dispatcher EventDispatcher
	stats      model.StatsQuerier
	server     *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	startTime  time.Time
}

// NewServer creates the HTTP host. stats may be nil when the analytics
// store is disabled.
func NewServer(addr string, frames FrameSource, dispatcher EventDispatcher, stats model.StatsQuerier) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:       addr,
		frames:     frames,
		dispatcher: dispatcher,
		stats:      stats,
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Routes builds the gin engine.
func (s *Server) Routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/", s.handlePage)
	r.GET("/api/tree", s.handleTree)
	r.GET("/api/state", s.handleState)
	r.POST("/api/events", s.handleEvent)
	r.GET("/api/health", s.handleHealth)
	r.GET("/api/stats", s.handleStats)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handlePage(c *gin.Context) {
	frame := s.frames.Snapshot()
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Header("X-Academy-Rev", strconv.FormatUint(frame.Rev, 10))
	c.Status(http.StatusOK)
	if err := tree.Page(PageTitle, frame.Tree).Render(c.Request.Context(), c.Writer); err != nil {
		_ = c.Error(err)
	}
}

func (s *Server) handleTree(c *gin.Context) {
	frame := s.frames.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"rev":  frame.Rev,
		"tree": frame.Tree,
	})
}

func (s *Server) handleState(c *gin.Context) {
	frame := s.frames.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"rev":   frame.Rev,
		"seq":   frame.Seq,
		"state": frame.State,
	})
}

func (s *Server) handleEvent(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var env event.Envelope
	switch c.ContentType() {
	case "application/msgpack", "application/x-msgpack":
		env, err = event.DecodeMsgpack(body)
	default:
		env, err = event.DecodeJSON(body)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := s.dispatcher.Dispatch(c.Request.Context(), env); err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownEvent), errors.Is(err, event.ErrInvalidPayload):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, runtime.ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "application is shutting down"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"accepted": true, "name": env.Name})
}

func (s *Server) handleHealth(c *gin.Context) {
	frame := s.frames.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).Round(time.Second).String(),
		"rev":    frame.Rev,
		"seq":    frame.Seq,
	})
}

func (s *Server) handleStats(c *gin.Context) {
	if s.stats == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "analytics store is disabled"})
		return
	}

	total, err := s.stats.TotalTransitions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count transitions"})
		return
	}
	counts, err := s.stats.MessageCounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read message counts"})
		return
	}
	keys, err := s.stats.RecentKeys(10)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read recent keys"})
		return
	}

	if counts == nil {
		counts = []model.MessageCount{}
	}
	if keys == nil {
		keys = []model.KeyEvent{}
	}
	c.JSON(http.StatusOK, gin.H{
		"total_transitions": total,
		"messages":          counts,
		"recent_keys":       keys,
	})
}

// Package status serves a read-only HTTP view of a running lock.
package status

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/backkem/rfidlock/pkg/lock"
	"github.com/gin-gonic/gin"
	"github.com/pion/logging"
)

// DefaultAddr is the default listen address.
const DefaultAddr = "127.0.0.1:8080"

const shutdownTimeout = 5 * time.Second

// Source is the device view the server reports on. *lock.Device implements it.
type Source interface {
	State() lock.State
	Enrolled() bool
	Stats() lock.Stats
	TrustedFingerprint() string
}

// Config configures a Server.
type Config struct {
	// Source is the device to report on. Required.
	Source Source

	// Addr to listen on (default: 127.0.0.1:8080).
	Addr string

	// DeviceName is included in /status.
	DeviceName string

	// LoggerFactory for creating loggers. If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Response is the body of GET /status.
type Response struct {
	Device       string     `json:"device"`
	State        string     `json:"state"`
	Enrolled     bool       `json:"enrolled"`
	Credential   string     `json:"credential,omitempty"`
	Grants       uint64     `json:"grants"`
	Denies       uint64     `json:"denies"`
	LastDecision *time.Time `json:"last_decision,omitempty"`
	LastOutcome  string     `json:"last_outcome,omitempty"`
}

// Server is the status HTTP server.
type Server struct {
	config Config
	engine *gin.Engine
	log    logging.LeveledLogger
}

// New creates a status server.
func New(config Config) (*Server, error) {
	if config.Source == nil {
		return nil, errors.New("status: source is required")
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}

	s := &Server{config: config}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("status")
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests)

	router.GET("/health/live", s.healthLive)
	router.GET("/health/ready", s.healthReady)
	router.GET("/status", s.status)

	s.engine = router
	return s, nil
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on config.Addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	if s.log != nil {
		s.log.Infof("status server listening on %s", ln.Addr())
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) logRequests(c *gin.Context) {
	start := time.Now()
	c.Next()
	if s.log != nil {
		s.log.Debugf("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

func (s *Server) healthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) healthReady(c *gin.Context) {
	state := s.config.Source.State()
	if state == lock.StateStopped {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "stopped", "state": state.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "state": state.String()})
}

func (s *Server) status(c *gin.Context) {
	src := s.config.Source
	stats := src.Stats()

	resp := Response{
		Device:     s.config.DeviceName,
		State:      src.State().String(),
		Enrolled:   src.Enrolled(),
		Credential: src.TrustedFingerprint(),
		Grants:     stats.Grants,
		Denies:     stats.Denies,
	}
	if !stats.LastDecision.IsZero() {
		t := stats.LastDecision.UTC()
		resp.LastDecision = &t
		resp.LastOutcome = stats.LastOutcome.String()
	}
	c.JSON(http.StatusOK, resp)
}

// Package server serves the daemon's IPC protocol: one JSON request per line
// over a unix socket, one JSON response line back, strictly in order per
// connection.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/petekp/claude-hud-sub008/errors"
	"github.com/petekp/claude-hud-sub008/internal/daemon/engine"
	"github.com/petekp/claude-hud-sub008/pkg/models"
	"github.com/petekp/claude-hud-sub008/pkg/routing"
	"github.com/sirupsen/logrus"
)

// MaxLineBytes bounds one request line.
const MaxLineBytes = 1 << 20

// DefaultRequestTimeout bounds each ingest and query round trip.
const DefaultRequestTimeout = 750 * time.Millisecond

// Options configures a Server.
type Options struct {
	RequestTimeout time.Duration
	Routing        routing.Options
	Version        string
}

// Server manages the daemon's listener and connections.
type Server struct {
	logger  *logrus.Entry
	engine  *engine.Engine
	live    routing.Liveness
	timeout time.Duration
	version string

	mu       sync.RWMutex
	routing  routing.Options
	listener net.Listener
	conns    map[net.Conn]struct{}
	closing  bool

	wg        sync.WaitGroup
	startedAt time.Time
	now       func() time.Time
}

// New creates a new Server instance.
func New(eng *engine.Engine, live routing.Liveness, opts Options, logger *logrus.Entry) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{
		logger:    logger,
		engine:    eng,
		live:      live,
		timeout:   opts.RequestTimeout,
		version:   opts.Version,
		routing:   opts.Routing,
		conns:     make(map[net.Conn]struct{}),
		startedAt: time.Now().UTC(),
		now:       time.Now,
	}
}

// SetRouting swaps the routing policy; used by config hot reload.
func (s *Server) SetRouting(opts routing.Options) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routing = opts
}

// Routing returns the active routing policy.
func (s *Server) Routing() routing.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routing
}

// Listen binds socketPath, clearing a stale socket file first. It refuses
// to start when another daemon answers on the path.
func (s *Server) Listen(socketPath string) error {
	if err := os.MkdirAll(filepath.Dir(socketPath), 0700); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	if _, err := os.Stat(socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", socketPath, 200*time.Millisecond)
		if dialErr == nil {
			_ = conn.Close()
			return fmt.Errorf("another daemon is listening on %s", socketPath)
		}
		s.logger.WithField("socket", socketPath).Info("Removing stale socket")
		if err := os.Remove(socketPath); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("failed to listen on socket: %w", err)
	}

	// Set restrictive permissions on socket
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.WithField("socket", socketPath).Info("Daemon listening")
	return nil
}

// Serve accepts connections until Shutdown. Listen must be called first.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.RLock()
	listener := s.listener
	s.mu.RUnlock()
	if listener == nil {
		return fmt.Errorf("server is not listening")
	}

	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if closing {
				return nil
			}
			return fmt.Errorf("accept failed: %w", err)
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// ListenAndServe binds socketPath and serves until Shutdown.
func (s *Server) ListenAndServe(ctx context.Context, socketPath string) error {
	if err := s.Listen(socketPath); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Shutdown stops accepting, closes open connections and waits for their
// in-flight requests to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	s.mu.Lock()
	s.closing = true
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineBytes)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		resp := s.handleLine(ctx, line)
		if err := enc.Encode(resp); err != nil {
			s.logger.WithError(err).Debug("Failed to write response")
			return
		}
	}
	if err := scanner.Err(); err != nil && !isClosedErr(err) {
		s.logger.WithError(err).Debug("Connection read failed")
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) models.Response {
	var req models.Request
	if err := json.Unmarshal(line, &req); err != nil {
		return errorResponse("", errors.InvalidInput("request is not valid JSON: "+err.Error()))
	}
	if req.ProtocolVersion != models.ProtocolVersion {
		return errorResponse(req.ID, errors.ProtocolMismatch(req.ProtocolVersion, models.ProtocolVersion))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := s.dispatch(ctx, req)
	if err != nil {
		return errorResponse(req.ID, err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return errorResponse(req.ID, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode response"))
	}
	return models.Response{OK: true, ID: req.ID, Data: raw}
}

func errorResponse(id string, err error) models.Response {
	body := &models.ErrorBody{Code: string(errors.ErrCodeInternal), Message: err.Error()}
	if hudErr, ok := errors.As(err); ok {
		body.Code = string(hudErr.Code)
		body.Message = hudErr.Message
		body.Details = hudErr.Details
	}
	return models.Response{OK: false, ID: id, Error: body}
}

func isClosedErr(err error) bool {
	var ne net.Error
	if stderrors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return stderrors.Is(err, net.ErrClosed)
}

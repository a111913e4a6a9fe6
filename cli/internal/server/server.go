// Package server exposes the detector over HTTP: health, single and batch
// detection, rule-only analysis and history stats. Every response uses the
// success or failure envelope.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bugscope/cli/internal/detector"
	"bugscope/cli/internal/history"
	"bugscope/cli/internal/logging"
)

const (
	_defaultAddr            = "0.0.0.0:8000"
	_defaultReadTimeout     = 15 * time.Second
	_defaultWriteTimeout    = 60 * time.Second
	_defaultShutdownTimeout = 10 * time.Second
)

// Options configures a Server. Detector is required.
type Options struct {
	Detector *detector.Detector
	// History, when set, receives one record per detection.
	History *history.Store
	Logger  *zap.Logger
	CORS    CORSConfig

	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Now overrides the clock used for envelope timestamps (tests).
	Now func() time.Time
}

// Server serves the detection API.
type Server struct {
	det             *detector.Detector
	history         *history.Store
	log             *zap.Logger
	cors            CORSConfig
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	now             func() time.Time
}

// New builds a Server from opts, filling zero timeouts and address with defaults.
func New(opts Options) (*Server, error) {
	if opts.Detector == nil {
		return nil, errors.New("server: detector is required")
	}
	s := &Server{
		det:             opts.Detector,
		history:         opts.History,
		log:             logging.OrNop(opts.Logger).With(zap.String("system", "http")),
		cors:            opts.CORS,
		addr:            opts.Addr,
		readTimeout:     opts.ReadTimeout,
		writeTimeout:    opts.WriteTimeout,
		shutdownTimeout: opts.ShutdownTimeout,
		now:             opts.Now,
	}
	if s.addr == "" {
		s.addr = _defaultAddr
	}
	if s.readTimeout <= 0 {
		s.readTimeout = _defaultReadTimeout
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = _defaultWriteTimeout
	}
	if s.shutdownTimeout <= 0 {
		s.shutdownTimeout = _defaultShutdownTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Handler returns the routed handler with CORS, request logging and panic
// recovery applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	for _, rt := range s.routes() {
		mux.HandleFunc(rt.method+" "+rt.pattern, rt.handler)
	}
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "Not found.")
	})
	return chain(mux, requestLogger(s.log), cors(s.cors), s.recoverer)
}

// ListenAndServe listens on the configured address and serves until ctx is
// done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done. In-flight requests get
// ShutdownTimeout to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
		ErrorLog:     zap.NewStdLog(s.log),
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("server listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	<-errCh
	s.log.Info("server shutdown complete")
	return nil
}

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/rafaeljc/superposition/internal/config"
)

// Server runs one REST API with the timeouts and TLS settings of its config.
type Server struct {
	logger *slog.Logger
	cfg    *config.HTTPServerConfig
	server *http.Server
}

// NewServer binds handler to host:port.
func NewServer(logger *slog.Logger, cfg *config.HTTPServerConfig, port string, handler http.Handler) *Server {
	if logger == nil {
		panic("httpapi: logger cannot be nil")
	}
	if cfg == nil {
		panic("httpapi: config cannot be nil")
	}
	if handler == nil {
		panic("httpapi: handler cannot be nil")
	}

	return &Server{
		logger: logger,
		cfg:    cfg,
		server: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
			MaxHeaderBytes:    cfg.MaxHeaderBytes,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Start serves in a background goroutine. A listen failure is sent on the
// returned channel; a graceful shutdown closes it without a value.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	go func() {
		defer close(errCh)
		s.logger.Info("starting HTTP server",
			slog.String("addr", s.server.Addr),
			slog.Bool("tls", s.cfg.TLSEnabled),
		)

		var err error
		if s.cfg.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.cfg.TLSCert, s.cfg.TLSKey)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	return errCh
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("stopping HTTP server", slog.String("addr", s.server.Addr))
	return s.server.Shutdown(ctx)
}

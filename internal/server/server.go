package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mir00r/giftcert-router/internal/config"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"google.golang.org/grpc"
)

// Server serves the REST API and, when configured, gRPC on a single
// cleartext port. gRPC calls arrive as HTTP/2 with prior knowledge.
type Server struct {
	config     config.ServerConfig
	logger     *logger.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
}

// New creates a server. grpcServer may be nil.
func New(cfg config.ServerConfig, handler http.Handler, grpcServer *grpc.Server, log *logger.Logger) *Server {
	s := &Server{
		config:     cfg,
		logger:     log.WithField("component", "server"),
		grpcServer: grpcServer,
	}

	h2s := &http2.Server{
		MaxConcurrentStreams: 1000,
		MaxReadFrameSize:     1048576,
		IdleTimeout:          cfg.IdleTimeout,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h2c.NewHandler(Dispatch(handler, grpcServer), h2s),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// Dispatch routes gRPC requests to grpcServer and everything else to
// handler
func Dispatch(handler http.Handler, grpcServer *grpc.Server) http.Handler {
	if grpcServer == nil {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsGRPCRequest(r) {
			grpcServer.ServeHTTP(w, r)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// IsGRPCRequest checks if the request is a gRPC request
func IsGRPCRequest(r *http.Request) bool {
	return r.ProtoMajor == 2 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/grpc")
}

// Serve accepts connections on l until Shutdown is called
func (s *Server) Serve(l net.Listener) error {
	s.logger.WithFields(logrus.Fields{
		"addr":         l.Addr().String(),
		"grpc_enabled": s.grpcServer != nil,
	}).Info("Starting HTTP server")

	if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured port
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.Serve(l)
}

// Shutdown stops accepting requests and waits for in-flight ones until ctx
// is done
func (s *Server) Shutdown(ctx context.Context) error {
	// grpc.Server.GracefulStop cannot drain ServeHTTP streams; the HTTP
	// shutdown below waits for them instead.
	err := s.httpServer.Shutdown(ctx)
	if s.grpcServer != nil {
		s.grpcServer.Stop()
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to shutdown HTTP server")
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// ShutdownTimeout returns the configured grace period
func (s *Server) ShutdownTimeout() time.Duration {
	if s.config.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return s.config.ShutdownTimeout
}

package handler

import (
	"context"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// ServiceName is the gRPC health service name reported for the lookup API
const ServiceName = "giftcert.CertInfo"

// GRPCHealthServer implements grpc.health.v1.Health. A check is SERVING
// when a database connection can be selected.
type GRPCHealthServer struct {
	grpc_health_v1.UnimplementedHealthServer

	selector domain.ConnectionSelector
	timeout  time.Duration
	logger   *logger.Logger
}

// NewGRPCHealthServer creates a new gRPC health server
func NewGRPCHealthServer(selector domain.ConnectionSelector, log *logger.Logger) *GRPCHealthServer {
	return &GRPCHealthServer{
		selector: selector,
		timeout:  readinessTimeout,
		logger:   log.WithField("component", "grpc_health"),
	}
}

// Check reports the serving status of "" or ServiceName
func (s *GRPCHealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	conn, err := s.selector.Select(ctx)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"service":    req.GetService(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}).WithError(err).Warn("gRPC health check failed")
		return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_NOT_SERVING}, nil
	}
	conn.Close()

	s.logger.WithFields(logrus.Fields{
		"service":    req.GetService(),
		"elapsed_ms": time.Since(start).Milliseconds(),
	}).Debug("gRPC health check passed")

	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

package service

import (
	"context"
	"math/rand"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
	"github.com/mir00r/giftcert-router/internal/errors"
	"github.com/mir00r/giftcert-router/pkg/logger"
	"github.com/sirupsen/logrus"
)

// FailoverSelector picks one live replica per call. The first lap samples a
// replica by cumulative priority; if nothing succeeds it falls back to an
// exhaustive lap over every replica not yet tried.
type FailoverSelector struct {
	registry domain.ReplicaRegistry
	prober   domain.Prober
	draw     domain.DrawFunc
	metrics  *Metrics
	logger   *logger.Logger
}

// SelectorOption configures a FailoverSelector
type SelectorOption func(*FailoverSelector)

// WithDraw replaces the random draw. f must return a value in [0,100).
func WithDraw(f domain.DrawFunc) SelectorOption {
	return func(s *FailoverSelector) {
		s.draw = f
	}
}

// WithMetrics records probe and selection metrics
func WithMetrics(m *Metrics) SelectorOption {
	return func(s *FailoverSelector) {
		s.metrics = m
	}
}

// NewFailoverSelector creates a selector over registry using prober
func NewFailoverSelector(registry domain.ReplicaRegistry, prober domain.Prober, log *logger.Logger, opts ...SelectorOption) *FailoverSelector {
	s := &FailoverSelector{
		registry: registry,
		prober:   prober,
		draw:     func() int { return rand.Intn(100) },
		logger:   log.SelectorLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// selection is the state of a single Select call
type selection struct {
	failed   map[string]struct{}
	mode     domain.SelectionMode
	attempts int
	lastErr  error
}

// Select returns a live connection or one of the ConfigurationError,
// NoConnectionAvailable or Cancelled errors. The caller must Close the
// returned connection.
func (s *FailoverSelector) Select(ctx context.Context) (*domain.Connection, error) {
	start := time.Now()

	configs, err := s.registry.Load()
	if err != nil {
		err = errors.NewConfigurationError(err)
		s.finish(start, nil, &selection{}, OutcomeConfiguration, err)
		return nil, err
	}
	s.metrics.SetReplicas(len(configs))

	replicas := make([]domain.ReplicaState, len(configs))
	for i, cfg := range configs {
		replicas[i] = domain.NewReplicaState(cfg, ScrubCredentials)
	}

	draw := s.draw()
	sel := &selection{
		failed: make(map[string]struct{}, len(replicas)),
		mode:   domain.WeightedMode,
	}

	for {
		conn, err := s.lap(ctx, replicas, draw, sel)
		if err != nil {
			s.finish(start, nil, sel, OutcomeCancelled, err)
			return nil, err
		}
		if conn != nil {
			s.finish(start, conn, sel, OutcomeSelected, nil)
			return conn, nil
		}

		if sel.mode == domain.ExhaustiveMode {
			err := errors.NewNoConnectionError(sel.attempts)
			if sel.lastErr != nil {
				err.Details = sel.lastErr.Error()
			}
			s.finish(start, nil, sel, OutcomeNoConnection, err)
			return nil, err
		}
		sel.mode = domain.ExhaustiveMode
	}
}

// lap walks the replicas once in registry order. It returns a connection,
// a Cancelled error, or neither when no candidate succeeded.
func (s *FailoverSelector) lap(ctx context.Context, replicas []domain.ReplicaState, draw int, sel *selection) (*domain.Connection, error) {
	cumulative := 0

	for _, replica := range replicas {
		_, failed := sel.failed[replica.Target]
		if failed && sel.mode == domain.ExhaustiveMode {
			continue
		}
		cumulative += replica.ActualPriority

		// Failed targets are only skipped in exhaustive mode, so a target
		// listed twice can be retried during the weighted lap
		if !domain.Matches(sel.mode, replica.Priority, cumulative, draw) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.NewCancelledError(err)
		}

		handle, err := s.attempt(ctx, replica, sel)
		if err == nil {
			return &domain.Connection{
				Handle:                   handle,
				Role:                     replica.Role,
				TargetWithoutCredentials: replica.TargetWithoutCredentials,
			}, nil
		}

		sel.failed[replica.Target] = struct{}{}
		sel.lastErr = err

		if cerr := ctx.Err(); cerr != nil {
			return nil, errors.NewCancelledError(cerr)
		}
	}

	return nil, nil
}

// attempt probes one replica and logs the result. A failed probe never
// leaves a handle open.
func (s *FailoverSelector) attempt(ctx context.Context, replica domain.ReplicaState, sel *selection) (domain.Handle, error) {
	sel.attempts++
	start := time.Now()

	handle, err := s.prober.Probe(ctx, replica)
	elapsed := time.Since(start)
	if err != nil && handle != nil {
		handle.Close()
		handle = nil
	}
	s.metrics.RecordProbe(replica.Role, err == nil, elapsed)

	log := s.logger.ProbeLogger(replica.TargetWithoutCredentials).WithFields(logrus.Fields{
		"role":       replica.Role.String(),
		"elapsed_ms": elapsed.Milliseconds(),
		"mode":       sel.mode.String(),
	})
	if err != nil {
		log.WithField("status", "error").WithError(err).Warn("Replica probe failed")
		return nil, err
	}
	log.WithField("status", "ok").Debug("Replica probe succeeded")
	return handle, nil
}

// finish writes the per-call outcome record
func (s *FailoverSelector) finish(start time.Time, conn *domain.Connection, sel *selection, outcome string, err error) {
	elapsed := time.Since(start)
	s.metrics.RecordSelection(outcome, sel.attempts, elapsed)

	fields := logrus.Fields{
		"elapsed_ms": elapsed.Milliseconds(),
		"attempts":   sel.attempts,
		"mode":       sel.mode.String(),
		"outcome":    outcome,
	}
	if conn != nil {
		fields["target"] = conn.TargetWithoutCredentials
		fields["role"] = conn.Role.String()
	}

	log := s.logger.WithFields(fields)
	if err != nil {
		log.WithField("status", "error").WithError(err).Error("Database connection selection failed")
		return
	}
	log.WithField("status", "ok").Info("Database connection selected")
}

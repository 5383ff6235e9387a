package service

import (
	"context"
	"time"

	"github.com/mir00r/giftcert-router/internal/domain"
)

// ReplicaReport describes one configured replica with credentials removed
type ReplicaReport struct {
	Target    string `json:"target"`
	Priority  int    `json:"priority"`
	Role      string `json:"type"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms,omitempty"`
}

// DescribeReplicas lists the configured replicas in order
func DescribeReplicas(registry domain.ReplicaRegistry) ([]ReplicaReport, error) {
	replicas, err := registry.Load()
	if err != nil {
		return nil, err
	}

	reports := make([]ReplicaReport, 0, len(replicas))
	for _, replica := range replicas {
		reports = append(reports, ReplicaReport{
			Target:   ScrubCredentials(replica.Target),
			Priority: replica.Priority,
			Role:     replica.Role.String(),
		})
	}
	return reports, nil
}

// ProbeReplicas probes every configured replica once, in order, and closes
// each handle. It stops early only when ctx is done.
func ProbeReplicas(ctx context.Context, registry domain.ReplicaRegistry, prober domain.Prober) ([]ReplicaReport, error) {
	replicas, err := registry.Load()
	if err != nil {
		return nil, err
	}

	reports := make([]ReplicaReport, 0, len(replicas))
	for _, replica := range replicas {
		if err := ctx.Err(); err != nil {
			return reports, err
		}

		state := domain.NewReplicaState(replica, ScrubCredentials)
		report := ReplicaReport{
			Target:   state.TargetWithoutCredentials,
			Priority: replica.Priority,
			Role:     replica.Role.String(),
			Status:   "ok",
		}

		start := time.Now()
		handle, err := prober.Probe(ctx, state)
		report.ElapsedMS = time.Since(start).Milliseconds()
		if handle != nil {
			handle.Close()
		}
		if err != nil {
			report.Status = "error"
			report.Error = err.Error()
		}
		reports = append(reports, report)
	}
	return reports, nil
}

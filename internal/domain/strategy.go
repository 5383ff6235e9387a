package domain

import (
	"context"
)

// ReplicaRegistry provides the ordered list of configured replicas.
// Implementations must return a fresh slice on every call so callers can
// treat it as read-only without coordination.
type ReplicaRegistry interface {
	// Load returns the replicas in configuration order
	Load() ([]ReplicaConfig, error)
}

// Prober opens a connection to a replica and verifies it with a
// role-specific liveness query. On failure no handle is left open.
type Prober interface {
	Probe(ctx context.Context, replica ReplicaState) (Handle, error)
}

// ConnectionSelector hands out one verified connection per call
type ConnectionSelector interface {
	Select(ctx context.Context) (*Connection, error)
}

// DrawFunc returns a value in [0, 100) used for weighted sampling
type DrawFunc func() int

// Matches reports whether a candidate is attempted in the given mode.
// cumulative already includes the candidate's own priority.
func Matches(mode SelectionMode, priority, cumulative, draw int) bool {
	if mode == ExhaustiveMode {
		return true
	}
	return priority != 0 && draw < cumulative
}

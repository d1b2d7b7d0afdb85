// internal/store/store.go

// Package store persists run state and serves the control-plane reads the
// workflow driver polls between steps.
package store

import (
	"context"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

// RunStore is the persistence surface the workflow driver depends on.
// Implementations must be safe for concurrent use.
type RunStore interface {
	// CreateRun registers a new run in the pending state.
	CreateRun(ctx context.Context, runID, userID string) error
	// SetStatus transitions the run's lifecycle status.
	SetStatus(ctx context.Context, runID string, status schemas.RunStatus) error
	// AppendLog records one structured run event.
	AppendLog(ctx context.Context, entry schemas.RunLogEntry) error
	// PollSignals returns pending control signals for the run. A redirect
	// instruction is consumed by the read.
	PollSignals(ctx context.Context, runID string) (schemas.RunSignals, error)
	// AccessToken returns the stored OAuth token for a connected service,
	// or empty when the user has not linked the service.
	AccessToken(ctx context.Context, userID, service string) (string, error)
	// FineTunedModel returns the user's tuned model override for a tier, or
	// empty to use the configured default.
	FineTunedModel(ctx context.Context, userID, tier string) (string, error)
	// Close releases the underlying connection resources.
	Close()
}

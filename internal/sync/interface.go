// Package sync decides when the local ledger store reconciles with the
// remote store.
//
// The orchestrator is a two-state machine (Idle, Syncing) fed by four
// asynchronous triggers: a periodic timer, connectivity-restored events,
// login events, and manual requests. It enforces a single in-flight sync,
// debounces non-manual triggers, and guards every attempt behind a
// pre-flight check (network reachable AND user authenticated). The actual
// bidirectional exchange is delegated to an external Gateway; on success
// the orchestrator clears the unsynced markers on the rows the attempt
// transmitted.
package sync

import (
	"context"
	"time"

	"github.com/bahikhata/bahikhata/internal/ledger"
)

// Result is the uniform outcome of every sync-facing operation.
type Result struct {
	Success bool
	Message string
}

// Status describes the orchestrator's current state.
type Status struct {
	// InFlight is true while a sync attempt is running.
	InFlight bool
	// LastAttempt is when the last attempt that passed the pre-flight
	// guard started (zero if none yet).
	LastAttempt time.Time
	// LastResult is the outcome of the most recently completed attempt.
	LastResult Result
}

// Gateway performs the actual exchange with the remote store. It is
// consumed, never implemented, by this package.
type Gateway interface {
	// CanSync reports whether the gateway is able to sync at all
	// (credentials configured, endpoint known). Checked pre-flight,
	// after the connectivity and authentication guards.
	CanSync(ctx context.Context) bool

	// SyncAllData performs a bidirectional reconciliation of local and
	// remote state.
	SyncAllData(ctx context.Context) Result

	// ForceUploadAllData pushes all local data to the remote store
	// one-directionally, ignoring remote changes.
	ForceUploadAllData(ctx context.Context) Result

	// RestoreIfEmpty pulls remote state into an empty local store. Used
	// once, at first run.
	RestoreIfEmpty(ctx context.Context) Result

	// ResetSyncStatus clears any sticky error state in the gateway.
	ResetSyncStatus()
}

// NetworkObserver reports network reachability. Changes emits the new
// reachability value whenever it flips; the channel is owned by the
// observer and closed on its disposal.
type NetworkObserver interface {
	Online() bool
	Changes() <-chan bool
}

// AuthProvider reports authentication state. Logins emits an event each
// time a user newly authenticates.
type AuthProvider interface {
	Authenticated() bool
	Logins() <-chan struct{}
}

// Store is the slice of the local store the orchestrator needs: unsynced
// bookkeeping and scheduled stale cleanup.
type Store interface {
	ListUnsynced(ctx context.Context, kind ledger.Kind) ([]int64, error)
	MarkSynced(ctx context.Context, kind ledger.Kind, id int64) error
	MarkAllSynced(ctx context.Context) error
	IsEmpty(ctx context.Context) (bool, error)
	PurgeStale(ctx context.Context, maxAge time.Duration) (int64, error)
}

package sync

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bahikhata/bahikhata/internal/ledger"
	"github.com/bahikhata/bahikhata/internal/logging"
)

// Trigger identifies what caused a sync attempt.
type Trigger int

const (
	// TriggerPeriodic is the recurring timer.
	TriggerPeriodic Trigger = iota
	// TriggerConnectivity fires when the network comes back online.
	TriggerConnectivity
	// TriggerLogin fires when a user newly authenticates.
	TriggerLogin
	// TriggerManual is a caller-invoked sync; it bypasses the debounce
	// window but still respects the single-in-flight guard.
	TriggerManual
	// TriggerForceUpload is a caller-invoked one-directional push of all
	// local data.
	TriggerForceUpload
	// TriggerRestore is the one-time first-run pull into an empty store.
	TriggerRestore
)

// String returns a human-readable trigger name.
func (t Trigger) String() string {
	switch t {
	case TriggerPeriodic:
		return "periodic"
	case TriggerConnectivity:
		return "connectivity"
	case TriggerLogin:
		return "login"
	case TriggerManual:
		return "manual"
	case TriggerForceUpload:
		return "force-upload"
	case TriggerRestore:
		return "restore"
	default:
		return "unknown"
	}
}

// Outcome describes what happened to a trigger. Only OutcomeStarted means
// the gateway was (or will be) invoked; the skip outcomes are expected
// short-circuits, not failures.
type Outcome int

const (
	// OutcomeStarted means the attempt passed all guards and a sync ran
	// or is running.
	OutcomeStarted Outcome = iota
	// OutcomeInFlight means another sync attempt was already running.
	OutcomeInFlight
	// OutcomeDebounced means the last attempt was too recent.
	OutcomeDebounced
	// OutcomeOffline means the network was not reachable.
	OutcomeOffline
	// OutcomeUnauthenticated means no user was authenticated.
	OutcomeUnauthenticated
	// OutcomeNotReady means the gateway reported it cannot sync.
	OutcomeNotReady
	// OutcomeDisposed means the orchestrator has been disposed.
	OutcomeDisposed
)

// String returns a human-readable outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeStarted:
		return "started"
	case OutcomeInFlight:
		return "sync already in flight"
	case OutcomeDebounced:
		return "debounced"
	case OutcomeOffline:
		return "offline"
	case OutcomeUnauthenticated:
		return "unauthenticated"
	case OutcomeNotReady:
		return "gateway not ready"
	case OutcomeDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Config holds the orchestrator's timing knobs.
type Config struct {
	// SyncInterval is how often the periodic trigger fires.
	SyncInterval time.Duration

	// DebounceWindow is the minimum time since the last attempt
	// (successful or not) before a non-manual trigger is honored.
	DebounceWindow time.Duration

	// ConnectivitySettle is how long to wait after the network comes
	// back before attempting, letting the connection stabilize.
	ConnectivitySettle time.Duration

	// LoginSettle is how long to wait after a login before attempting.
	LoginSettle time.Duration

	// CleanupAge is how old a closed, synced demand batch must be before
	// the scheduled cleanup purges it.
	CleanupAge time.Duration

	// CleanupInterval is how often the scheduled cleanup runs.
	CleanupInterval time.Duration

	// Logger for orchestrator activity.
	Logger *log.Logger
}

// DefaultConfig returns the production defaults.
func DefaultConfig() *Config {
	return &Config{
		SyncInterval:       6 * time.Hour,
		DebounceWindow:     5 * time.Minute,
		ConnectivitySettle: 3 * time.Second,
		LoginSettle:        2 * time.Second,
		CleanupAge:         90 * 24 * time.Hour,
		CleanupInterval:    7 * 24 * time.Hour,
		Logger:             logging.New("[sync] "),
	}
}

// Orchestrator owns the sync triggers and the Idle/Syncing state machine.
// At most one sync is in flight at any time; a trigger that arrives while
// Syncing is a no-op.
type Orchestrator struct {
	cfg     *Config
	gateway Gateway
	network NetworkObserver
	auth    AuthProvider
	store   Store

	mu          sync.Mutex
	syncing     bool
	lastAttempt time.Time
	lastResult  Result
	started     bool
	disposed    bool

	cron     *cron.Cron
	cancel   context.CancelFunc
	wg       sync.WaitGroup // trigger loops
	inflight sync.WaitGroup // running attempt
}

// New creates an orchestrator. A nil cfg uses DefaultConfig. Use Start to
// begin scheduling triggers; triggers can also be fired directly with
// TriggerSync and SyncNow.
func New(cfg *Config, gateway Gateway, network NetworkObserver, auth AuthProvider, store Store) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New("[sync] ")
	}
	return &Orchestrator{
		cfg:     cfg,
		gateway: gateway,
		network: network,
		auth:    auth,
		store:   store,
	}
}

// Start begins the periodic schedule, the scheduled stale cleanup, and
// the subscriptions to connectivity and login events. It returns
// immediately; all trigger sources run on background goroutines until
// Dispose is called.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator is disposed")
	}
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	o.cron = cron.New()
	if _, err := o.cron.AddFunc("@every "+o.cfg.SyncInterval.String(), func() {
		o.TriggerSync(TriggerPeriodic)
	}); err != nil {
		return fmt.Errorf("failed to schedule periodic sync: %w", err)
	}
	if _, err := o.cron.AddFunc("@every "+o.cfg.CleanupInterval.String(), o.runCleanup); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}
	o.cron.Start()

	o.wg.Add(2)
	go o.watchNetwork(ctx)
	go o.watchLogins(ctx)

	o.cfg.Logger.Printf("Started: interval=%s debounce=%s", o.cfg.SyncInterval, o.cfg.DebounceWindow)
	return nil
}

// Dispose cancels the periodic schedule and unsubscribes both event
// streams, then waits for any in-flight attempt to complete (an attempt
// is never cancelled mid-flight). Dispose is idempotent: calling it again,
// or on a never-started orchestrator, is safe.
func (o *Orchestrator) Dispose() {
	o.mu.Lock()
	if o.disposed {
		o.mu.Unlock()
		return
	}
	o.disposed = true
	started := o.started
	o.mu.Unlock()

	if started {
		o.cancel()
		o.cron.Stop()
		o.wg.Wait()
	}
	o.inflight.Wait()
	o.cfg.Logger.Println("Disposed")
}

// Status returns the orchestrator's current state.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{
		InFlight:    o.syncing,
		LastAttempt: o.lastAttempt,
		LastResult:  o.lastResult,
	}
}

// ResetSyncStatus forgets the last attempt (which also lifts the debounce
// window) and clears any sticky error state in the gateway.
func (o *Orchestrator) ResetSyncStatus() {
	o.mu.Lock()
	o.lastAttempt = time.Time{}
	o.lastResult = Result{}
	o.mu.Unlock()
	o.gateway.ResetSyncStatus()
}

// TriggerSync attempts an Idle→Syncing transition for the given trigger
// and, if it passes the guards, runs the sync on a background goroutine.
// The returned outcome tells the caller whether the attempt started or
// why it was skipped.
func (o *Orchestrator) TriggerSync(trigger Trigger) Outcome {
	outcome, run := o.begin(trigger)
	if run == nil {
		o.cfg.Logger.Printf("Skipping %s sync: %s", trigger, outcome)
		return outcome
	}
	go run()
	return outcome
}

// SyncNow runs a manual sync and waits for its result. Manual syncs
// bypass the debounce window but still respect the single-in-flight
// guard and the pre-flight connectivity/auth check.
func (o *Orchestrator) SyncNow(ctx context.Context) (Result, Outcome) {
	outcome, run := o.begin(TriggerManual)
	if run == nil {
		return Result{Success: false, Message: outcome.String()}, outcome
	}
	return run(), outcome
}

// ForceUploadAll pushes all local data to the remote store and waits for
// the result. It bypasses the debounce window; the single-in-flight guard
// still applies.
func (o *Orchestrator) ForceUploadAll(ctx context.Context) (Result, Outcome) {
	outcome, run := o.begin(TriggerForceUpload)
	if run == nil {
		return Result{Success: false, Message: outcome.String()}, outcome
	}
	return run(), outcome
}

// RestoreIfEmpty pulls remote state into the local store if it holds no
// business data yet. Intended to be called once at first run, before
// Start.
func (o *Orchestrator) RestoreIfEmpty(ctx context.Context) Result {
	empty, err := o.store.IsEmpty(ctx)
	if err != nil {
		return Result{Success: false, Message: fmt.Sprintf("failed to inspect local store: %v", err)}
	}
	if !empty {
		return Result{Success: true, Message: "local store not empty, nothing to restore"}
	}

	outcome, run := o.begin(TriggerRestore)
	if run == nil {
		return Result{Success: false, Message: outcome.String()}
	}
	return run()
}

// begin evaluates the guards for one trigger. On success it transitions
// to Syncing, records the attempt time, and returns a run function the
// caller must execute exactly once (directly or on a goroutine). On a
// skip it returns a nil run function and the reason.
func (o *Orchestrator) begin(trigger Trigger) (Outcome, func() Result) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.disposed {
		return OutcomeDisposed, nil
	}
	if o.syncing {
		return OutcomeInFlight, nil
	}

	debounced := trigger == TriggerPeriodic || trigger == TriggerConnectivity || trigger == TriggerLogin
	if debounced && !o.lastAttempt.IsZero() && time.Since(o.lastAttempt) < o.cfg.DebounceWindow {
		return OutcomeDebounced, nil
	}

	// Pre-flight guard: skipping here is not a failure and schedules no
	// retry; the next natural trigger re-evaluates the condition.
	if !o.network.Online() {
		return OutcomeOffline, nil
	}
	if !o.auth.Authenticated() {
		return OutcomeUnauthenticated, nil
	}
	if !o.gateway.CanSync(context.Background()) {
		return OutcomeNotReady, nil
	}

	o.syncing = true
	o.lastAttempt = time.Now()
	o.inflight.Add(1)
	return OutcomeStarted, func() Result { return o.run(trigger) }
}

// run invokes the gateway and, on success, clears the unsynced markers on
// the rows the attempt transmitted. Failed attempts are recorded but not
// retried; the next natural trigger takes care of it.
func (o *Orchestrator) run(trigger Trigger) Result {
	defer o.inflight.Done()

	// In-flight attempts are never cancelled, so the gateway call runs
	// under a background context regardless of the trigger's origin.
	ctx := context.Background()

	o.cfg.Logger.Printf("Sync attempt (%s)", trigger)

	var res Result
	switch trigger {
	case TriggerForceUpload:
		res = o.gateway.ForceUploadAllData(ctx)
		if res.Success {
			if err := o.store.MarkAllSynced(ctx); err != nil {
				o.cfg.Logger.Printf("Warning: failed to mark rows synced: %v", err)
			}
		}
	case TriggerRestore:
		res = o.gateway.RestoreIfEmpty(ctx)
	default:
		snapshot := o.snapshotUnsynced(ctx)
		res = o.gateway.SyncAllData(ctx)
		if res.Success {
			o.markSnapshotSynced(ctx, snapshot)
		}
	}

	o.mu.Lock()
	o.syncing = false
	o.lastResult = res
	o.mu.Unlock()

	if res.Success {
		o.cfg.Logger.Printf("Sync complete (%s)", trigger)
	} else {
		o.cfg.Logger.Printf("Sync failed (%s): %s", trigger, res.Message)
	}
	return res
}

// snapshotUnsynced records which rows are unsynced before the gateway
// call, so only rows that were actually part of the attempt get marked
// afterwards. Rows mutated while the sync is in flight stay unsynced.
func (o *Orchestrator) snapshotUnsynced(ctx context.Context) map[ledger.Kind][]int64 {
	snapshot := make(map[ledger.Kind][]int64, len(ledger.Kinds))
	for _, kind := range ledger.Kinds {
		ids, err := o.store.ListUnsynced(ctx, kind)
		if err != nil {
			o.cfg.Logger.Printf("Warning: failed to list unsynced %s: %v", kind, err)
			continue
		}
		if len(ids) > 0 {
			snapshot[kind] = ids
		}
	}
	return snapshot
}

func (o *Orchestrator) markSnapshotSynced(ctx context.Context, snapshot map[ledger.Kind][]int64) {
	for kind, ids := range snapshot {
		for _, id := range ids {
			if err := o.store.MarkSynced(ctx, kind, id); err != nil {
				o.cfg.Logger.Printf("Warning: failed to mark %s %d synced: %v", kind, id, err)
			}
		}
	}
}

// watchNetwork fires a connectivity trigger on each offline→online
// transition, after the settle delay.
func (o *Orchestrator) watchNetwork(ctx context.Context) {
	defer o.wg.Done()

	prev := o.network.Online()
	for {
		select {
		case <-ctx.Done():
			return
		case online, ok := <-o.network.Changes():
			if !ok {
				return
			}
			restored := online && !prev
			prev = online
			if !restored {
				continue
			}
			if !o.settle(ctx, o.cfg.ConnectivitySettle) {
				return
			}
			o.TriggerSync(TriggerConnectivity)
		}
	}
}

// watchLogins fires a login trigger after each login event, after the
// settle delay.
func (o *Orchestrator) watchLogins(ctx context.Context) {
	defer o.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-o.auth.Logins():
			if !ok {
				return
			}
			if !o.settle(ctx, o.cfg.LoginSettle) {
				return
			}
			o.TriggerSync(TriggerLogin)
		}
	}
}

// settle waits for d, returning false if the orchestrator is disposed
// first.
func (o *Orchestrator) settle(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// runCleanup purges stale, fully-synced demand batches on the cleanup
// cadence.
func (o *Orchestrator) runCleanup() {
	purged, err := o.store.PurgeStale(context.Background(), o.cfg.CleanupAge)
	if err != nil {
		o.cfg.Logger.Printf("Cleanup failed: %v", err)
		return
	}
	if purged > 0 {
		o.cfg.Logger.Printf("Cleanup purged %d stale demand batches", purged)
	}
}

// Package roster keeps the applicant roster in sync with the remote directory.
//
// Status changes are applied locally at once, queued, and written to the
// directory after a quiet period. Refreshes from the directory never undo a
// queued change: queued statuses are laid over fetched data until the
// directory confirms them.
package roster

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/pkg/storage"
)

// Storage keys shared with earlier deployments of the staff tool.
const (
	PendingStorageKey = "pending_status_updates_v1"
	CacheStorageKey   = "people_v2"
)

const (
	DefaultFlushDelay = 900 * time.Millisecond
	DefaultUpdatedBy  = "jay t"

	storeTimeout = 5 * time.Second
)

var (
	ErrInvalidStatus = errors.New("roster: invalid applicant status")
	ErrNotRunning    = errors.New("roster: engine not running")
)

// Directory is the remote source of truth for applicants.
type Directory interface {
	FetchApplicants(ctx context.Context) ([]models.Applicant, error)
	SetStatus(ctx context.Context, email string, status models.ApplicantStatus, updatedBy string) error
}

// StatusChange describes an accepted local status mutation.
type StatusChange struct {
	Key       string
	Previous  models.ApplicantStatus
	Status    models.ApplicantStatus
	Applicant *models.Applicant
	At        time.Time
}

// StatusHook is told about every accepted SetStatus. Implementations must not block.
type StatusHook interface {
	StatusChanged(change StatusChange)
}

// Observer receives sync telemetry. Result labels are "success", "failure" and "superseded".
type Observer interface {
	RefreshCompleted(result string, took time.Duration)
	StatusWritten(result string)
	FlushCompleted(attempted, failed int)
	PendingChanged(depth int)
}

// State is an immutable view of the engine. Callers must not modify Roster.
type State struct {
	Roster         []models.Applicant
	Loading        bool
	LastError      string
	Pending        int
	PendingUpdates []PendingUpdate
	Flushing       bool
	LastSyncedAt   time.Time
	LastFlushedAt  time.Time
}

// Find returns every roster row whose canonical key matches identifier.
func (s State) Find(identifier string) []models.Applicant {
	key := models.NormalizeKey(identifier)
	if key == "" {
		return nil
	}
	var out []models.Applicant
	for _, a := range s.Roster {
		if a.Key() == key {
			out = append(out, a)
		}
	}
	return out
}

// Options configures an Engine. Zero values fall back to defaults.
type Options struct {
	Store      storage.KeyValue
	Clock      clock.WithDelayedExecution
	Logger     *zap.Logger
	Observer   Observer
	Hooks      []StatusHook
	FlushDelay time.Duration
	UpdatedBy  string
}

// Engine owns roster state on a single event-loop goroutine.
type Engine struct {
	dir       Directory
	store     storage.KeyValue
	clock     clock.WithDelayedExecution
	logger    *zap.Logger
	observer  Observer
	hooks     []StatusHook
	updatedBy string
	debouncer *Debouncer

	cmds     chan func()
	quit     chan struct{}
	loopDone chan struct{}
	started  atomic.Bool
	stopped  atomic.Bool
	state    atomic.Pointer[State]

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// Owned by the loop goroutine.
	roster        []models.Applicant
	pending       *PendingQueue
	loading       bool
	lastErr       string
	lastSynced    time.Time
	lastFlushed   time.Time
	refreshSeq    uint64
	refreshCancel context.CancelFunc
	flushing      bool
	flushAgain    bool
	flushIdle     chan struct{}
	stopping      bool
}

func New(dir Directory, opts Options) *Engine {
	if opts.Store == nil {
		opts.Store = storage.NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}
	if opts.FlushDelay <= 0 {
		opts.FlushDelay = DefaultFlushDelay
	}
	if opts.UpdatedBy == "" {
		opts.UpdatedBy = DefaultUpdatedBy
	}

	idle := make(chan struct{})
	close(idle)

	e := &Engine{
		dir:       dir,
		store:     opts.Store,
		clock:     opts.Clock,
		logger:    opts.Logger.Named("roster"),
		observer:  opts.Observer,
		hooks:     opts.Hooks,
		updatedBy: opts.UpdatedBy,
		cmds:      make(chan func()),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		pending:   NewPendingQueue(),
		flushIdle: idle,
	}
	e.debouncer = NewDebouncer(opts.Clock, opts.FlushDelay, e.requestFlush)
	e.state.Store(&State{})
	return e
}

// Snapshot returns the latest published state. It never blocks.
func (e *Engine) Snapshot() State {
	return *e.state.Load()
}

// Running reports whether Start has completed and Stop has not been called.
func (e *Engine) Running() bool {
	return e.started.Load() && !e.stopped.Load()
}

// Start restores persisted state, starts the loop and kicks off the first refresh.
// An engine can be started once.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("roster: engine already started")
	}

	if _, err := storage.GetJSON(ctx, e.store, PendingStorageKey, e.pending); err != nil {
		e.logger.Warn("discarding unreadable pending updates", zap.Error(err))
		e.pending = NewPendingQueue()
	}

	var cached []models.Applicant
	if _, err := storage.GetJSON(ctx, e.store, CacheStorageKey, &cached); err != nil {
		e.logger.Warn("discarding unreadable roster cache", zap.Error(err))
		cached = nil
	}

	e.roster = e.pending.Apply(cached)
	e.loading = true
	e.publish()

	e.baseCtx, e.baseCancel = context.WithCancel(context.Background())
	go e.run()

	e.logger.Info("sync engine started",
		zap.Int("cached_applicants", len(cached)),
		zap.Int("pending_updates", e.pending.Len()),
	)

	if e.pending.Len() > 0 {
		e.debouncer.Trigger()
	}

	go func() {
		if err := e.Refresh(e.baseCtx); err != nil && !errors.Is(err, ErrNotRunning) {
			e.logger.Warn("initial refresh", zap.Error(err))
		}
	}()
	return nil
}

// Stop cancels any refresh, disarms the flush timer and waits for an in-flight
// flush until ctx expires. Pending updates stay persisted for the next start.
func (e *Engine) Stop(ctx context.Context) error {
	if !e.started.Load() || !e.stopped.CompareAndSwap(false, true) {
		return nil
	}

	var idle chan struct{}
	_ = e.do(func() {
		e.stopping = true
		if e.refreshCancel != nil {
			e.refreshCancel()
			e.refreshCancel = nil
		}
		idle = e.flushIdle
	})
	e.debouncer.Stop()

	var waitErr error
	select {
	case <-idle:
	case <-ctx.Done():
		waitErr = ctx.Err()
		e.logger.Warn("stopping with flush still running", zap.Error(waitErr))
	}

	e.baseCancel()
	close(e.quit)
	<-e.loopDone

	e.persistPending()
	e.logger.Info("sync engine stopped", zap.Int("pending_updates", e.pending.Len()))
	return waitErr
}

// Refresh fetches the roster from the directory. Only the most recent call may
// commit. Directory failures are recorded in State.LastError, never returned.
func (e *Engine) Refresh(ctx context.Context) error {
	var (
		seq      uint64
		fetchCtx context.Context
	)
	err := e.do(func() {
		if e.refreshCancel != nil {
			e.refreshCancel()
		}
		e.refreshSeq++
		seq = e.refreshSeq
		fetchCtx, e.refreshCancel = context.WithCancel(ctx)
		e.loading = true
		e.lastErr = ""
		e.publish()
	})
	if err != nil {
		return err
	}

	start := e.clock.Now()
	people, fetchErr := e.dir.FetchApplicants(fetchCtx)
	took := e.clock.Since(start)

	return e.do(func() {
		e.commitRefresh(seq, people, fetchErr, took)
	})
}

// SetStatus records the desired status for identifier and schedules a flush.
// A blank identifier is ignored.
func (e *Engine) SetStatus(identifier string, status models.ApplicantStatus) error {
	key := models.NormalizeKey(identifier)
	if key == "" {
		return nil
	}
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	change := StatusChange{Key: key, Status: status, At: e.clock.Now()}
	err := e.do(func() {
		roster := make([]models.Applicant, len(e.roster))
		copy(roster, e.roster)
		for i := range roster {
			if roster[i].Key() != key {
				continue
			}
			if change.Applicant == nil {
				change.Previous = roster[i].Status
				before := roster[i]
				change.Applicant = &before
			}
			roster[i].Status = status
		}
		e.roster = roster

		e.pending.Set(key, status)
		e.persistPending()
		if !e.stopping {
			e.debouncer.Trigger()
		}
		e.publish()
	})
	if err != nil {
		return err
	}

	for _, hook := range e.hooks {
		hook.StatusChanged(change)
	}
	return nil
}

// Flush writes queued updates now and waits until no flush is running.
func (e *Engine) Flush(ctx context.Context) error {
	var idle chan struct{}
	err := e.do(func() {
		e.debouncer.Cancel()
		e.startFlush()
		idle = e.flushIdle
	})
	if err != nil {
		return err
	}

	for {
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}

		busy := false
		if err := e.do(func() {
			busy = e.flushing
			idle = e.flushIdle
		}); err != nil {
			return err
		}
		if !busy {
			return nil
		}
	}
}

func (e *Engine) run() {
	defer close(e.loopDone)
	for {
		select {
		case fn := <-e.cmds:
			fn()
		case <-e.quit:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (e *Engine) do(fn func()) error {
	if !e.started.Load() {
		return ErrNotRunning
	}
	done := make(chan struct{})
	select {
	case e.cmds <- func() {
		defer close(done)
		fn()
	}:
	case <-e.quit:
		return ErrNotRunning
	}
	<-done
	return nil
}

func (e *Engine) commitRefresh(seq uint64, people []models.Applicant, fetchErr error, took time.Duration) {
	if seq != e.refreshSeq {
		e.observer.RefreshCompleted("superseded", took)
		e.logger.Debug("discarding superseded refresh", zap.Uint64("generation", seq))
		return
	}
	if e.refreshCancel != nil {
		e.refreshCancel()
		e.refreshCancel = nil
	}
	e.loading = false

	if fetchErr != nil {
		if errors.Is(fetchErr, context.Canceled) {
			e.publish()
			return
		}
		e.lastErr = fetchErr.Error()
		e.observer.RefreshCompleted("failure", took)
		e.logger.Warn("refresh failed; keeping current roster",
			zap.Error(fetchErr),
			zap.Int("roster_size", len(e.roster)),
		)
		e.publish()
		return
	}

	e.roster = e.pending.Apply(people)
	e.lastErr = ""
	e.lastSynced = e.clock.Now()
	e.observer.RefreshCompleted("success", took)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := storage.SetJSON(ctx, e.store, CacheStorageKey, people); err != nil {
		e.logger.Warn("persist roster cache", zap.Error(err))
	}

	e.logger.Debug("refresh committed",
		zap.Int("applicants", len(people)),
		zap.Int("pending_updates", e.pending.Len()),
		zap.Duration("took", took),
	)
	e.publish()
}

// requestFlush is the debouncer callback.
func (e *Engine) requestFlush() {
	_ = e.do(e.startFlush)
}

func (e *Engine) startFlush() {
	if e.stopping {
		return
	}
	if e.flushing {
		e.flushAgain = true
		return
	}
	batch := e.pending.Snapshot()
	if len(batch) == 0 {
		return
	}

	e.flushing = true
	e.flushIdle = make(chan struct{})
	e.publish()
	go e.flush(e.baseCtx, batch, e.flushIdle)
}

// flush writes batch sequentially outside the loop, confirming each success back on it.
func (e *Engine) flush(ctx context.Context, batch []PendingUpdate, idle chan struct{}) {
	failed := 0
	for _, u := range batch {
		if ctx.Err() != nil {
			break
		}
		if err := e.dir.SetStatus(ctx, u.Key, u.Status, e.updatedBy); err != nil {
			failed++
			e.observer.StatusWritten("failure")
			e.logger.Warn("status write failed; will retry on next flush",
				zap.String("key", u.Key),
				zap.String("status", string(u.Status)),
				zap.Error(err),
			)
			continue
		}
		e.observer.StatusWritten("success")

		u := u
		_ = e.do(func() {
			if !e.pending.RemoveIf(u.Key, u.Status) {
				e.logger.Debug("newer status queued during write", zap.String("key", u.Key))
			}
		})
	}

	err := e.do(func() {
		e.persistPending()
		e.flushing = false
		e.lastFlushed = e.clock.Now()
		e.observer.FlushCompleted(len(batch), failed)
		close(idle)
		e.logger.Info("flush finished",
			zap.Int("attempted", len(batch)),
			zap.Int("failed", failed),
			zap.Int("pending_updates", e.pending.Len()),
		)
		if e.flushAgain {
			e.flushAgain = false
			e.startFlush()
		}
		e.publish()
	})
	if err != nil {
		close(idle)
	}
}

func (e *Engine) persistPending() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := storage.SetJSON(ctx, e.store, PendingStorageKey, e.pending); err != nil {
		e.logger.Warn("persist pending updates", zap.Error(err))
	}
}

func (e *Engine) publish() {
	e.state.Store(&State{
		Roster:         e.roster,
		Loading:        e.loading,
		LastError:      e.lastErr,
		Pending:        e.pending.Len(),
		PendingUpdates: e.pending.Snapshot(),
		Flushing:       e.flushing,
		LastSyncedAt:   e.lastSynced,
		LastFlushedAt:  e.lastFlushed,
	})
	e.observer.PendingChanged(e.pending.Len())
}

type noopObserver struct{}

func (noopObserver) RefreshCompleted(string, time.Duration) {}
func (noopObserver) StatusWritten(string)                   {}
func (noopObserver) FlushCompleted(int, int)                {}
func (noopObserver) PendingChanged(int)                     {}

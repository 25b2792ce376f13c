package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/overrides"
	"github.com/leozw/zone-health/internal/registry"
)

var (
	ErrUnknownCheck    = errors.New("unknown check")
	ErrCheckInactive   = errors.New("check is inactive")
	ErrInvalidInterval = errors.New("interval must be between 1 second and one year")
	ErrSuperseded      = errors.New("run superseded by a newer run")
	ErrStopped         = errors.New("scheduler is stopped")
	// ErrNotPersisted wraps a storage failure after a change was applied in
	// memory.
	ErrNotPersisted    = errors.New("override not persisted")
)

const DefaultCheckTimeout = 60 * time.Second

// OverrideStore persists the user's overrides.
type OverrideStore interface {
	SaveDisabled(ctx context.Context, ids []string) error
	SaveIntervals(ctx context.Context, intervals map[string]int) error
}

// Recorder receives execution and aggregate updates. Calls happen on the
// update path and must not block.
type Recorder interface {
	ObserveRun(def core.Definition, out core.Outcome, took time.Duration)
	ObserveBatch(took time.Duration)
	SetCounters(counters core.StatusCounters)
	SetChecking(checking bool)
}

type Config struct {
	Clock        clock.WithDelayedExecution
	Logger       *zap.Logger
	Overrides    OverrideStore
	Recorder     Recorder
	CheckTimeout time.Duration
	RESTBaseURL  string
	RESTTimeout  time.Duration
}

type entry struct {
	def      core.Definition
	outcome  core.Outcome
	interval int
	active   bool

	// gen is bumped whenever pending work for the entry is superseded.
	gen    uint64
	timer  clock.Timer
	cancel context.CancelFunc

	exec sync.Mutex
}

// Scheduler runs every registered check on its own timer and keeps the
// aggregate result table.
type Scheduler struct {
	clock        clock.WithDelayedExecution
	logger       *zap.Logger
	overrides    OverrideStore
	recorder     Recorder
	checkTimeout time.Duration

	// runMu serializes batch handover in RunAll.
	runMu sync.Mutex
	// persistMu orders override writes with the state they capture.
	persistMu sync.Mutex

	mu          sync.Mutex
	entries     map[string]*entry
	order       []*entry
	counters    core.StatusCounters
	disabled    map[string]struct{}
	intervals   map[string]int
	exec        core.ExecutionContext
	checking    bool
	batch       *batch
	lastBatchID string
	updatedAt   time.Time
	rootCtx     context.Context
	rootCancel  context.CancelFunc
	subscribers map[chan time.Time]struct{}
}

// New builds the schedule from the registry with the loaded overrides applied.
// Nothing runs until RunAll, RunOne or SetDeployment is called.
func New(reg *registry.Registry, state overrides.State, cfg Config) *Scheduler {
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = DefaultCheckTimeout
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	s := &Scheduler{
		clock:        cfg.Clock,
		logger:       cfg.Logger,
		overrides:    cfg.Overrides,
		recorder:     cfg.Recorder,
		checkTimeout: cfg.CheckTimeout,
		entries:      make(map[string]*entry),
		counters:     core.NewStatusCounters(),
		disabled:     make(map[string]struct{}),
		intervals:    make(map[string]int),
		exec: core.ExecutionContext{
			RESTBaseURL: cfg.RESTBaseURL,
			RESTTimeout: cfg.RESTTimeout,
		},
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
		subscribers: make(map[chan time.Time]struct{}),
	}

	for _, def := range reg.List() {
		active := def.Active
		if state.DisabledStored {
			active = !state.IsDisabled(def.ID)
		}

		interval := def.Interval()
		if custom, ok := state.Intervals[def.ID]; ok {
			interval = custom
			s.intervals[def.ID] = custom
		}

		e := &entry{def: def, interval: interval, active: active}
		if active {
			e.outcome = core.PendingOutcome()
		} else {
			e.outcome = core.InactiveOutcome()
			s.disabled[def.ID] = struct{}{}
		}

		s.entries[def.ID] = e
		s.order = append(s.order, e)
		s.counters[e.outcome.Status]++
	}

	s.updatedAt = s.clock.Now()
	s.recorder.SetCounters(s.counters.Clone())
	return s
}

// Start binds the context timer callbacks and executions run under.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rootCancel()
	s.rootCtx, s.rootCancel = context.WithCancel(ctx)
	s.logger.Info("Starting scheduler", zap.Int("check_count", len(s.order)))
}

// Stop cancels every pending timer, in-flight execution and batch.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.rootCancel()
	for _, e := range s.order {
		s.supersedeLocked(e)
	}
	b := s.batch
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
	s.mu.Unlock()

	if b != nil {
		<-b.done
	}
	s.logger.Info("Stopping scheduler")
}

func (s *Scheduler) stoppedLocked() bool {
	return s.rootCtx.Err() != nil
}

// supersedeLocked invalidates the entry's pending timer and in-flight
// execution. Results carrying an older generation are discarded.
func (s *Scheduler) supersedeLocked(e *entry) uint64 {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	return e.gen
}

// armLocked replaces the entry's timer with a single-shot re-run.
func (s *Scheduler) armLocked(e *entry, gen uint64) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if s.stoppedLocked() || !e.active {
		return
	}

	id := e.def.ID
	delay := time.Duration(e.interval) * time.Second
	e.timer = s.clock.AfterFunc(delay, func() {
		go s.fire(id, gen)
	})
}

// fire is the timer callback. A fire whose generation no longer matches was
// superseded after the timer was armed and is dropped.
func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	e := s.entries[id]
	if e == nil || e.gen != gen || !e.active || s.stoppedLocked() {
		s.mu.Unlock()
		s.logger.Debug("Discarding stale timer", zap.String("check_id", id))
		return
	}
	e.timer = nil
	run := s.startLocked(e)
	s.mu.Unlock()

	_, _ = s.runEntry(e, run)
}

type pendingRun struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	ec     core.ExecutionContext
}

func (s *Scheduler) startLocked(e *entry) pendingRun {
	gen := s.supersedeLocked(e)
	ctx, cancel := context.WithCancel(s.rootCtx)
	e.cancel = cancel
	return pendingRun{gen: gen, ctx: ctx, cancel: cancel, ec: s.exec}
}

// runEntry executes one check and applies the outcome as a paired counter
// transition. It reports false when the run was superseded and nothing was
// applied.
func (s *Scheduler) runEntry(e *entry, run pendingRun) (core.Outcome, bool) {
	defer run.cancel()

	e.exec.Lock()
	var out core.Outcome
	ran := run.ctx.Err() == nil
	if ran {
		out = s.execute(run.ctx, e.def, run.ec)
	}
	e.exec.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !ran || e.gen != run.gen || !e.active {
		return core.Outcome{}, false
	}

	e.cancel = nil
	s.counters.Transition(e.outcome.Status, out.Status)
	e.outcome = out
	s.armLocked(e, run.gen)
	s.touchLocked()
	return out, true
}

// RunOne executes a single check now and re-arms its timer. A run superseded
// by a newer run or a state change returns ErrSuperseded.
func (s *Scheduler) RunOne(ctx context.Context, id string) (core.Outcome, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		return core.Outcome{}, fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	if !e.active {
		s.mu.Unlock()
		return core.Outcome{}, fmt.Errorf("%w: %s", ErrCheckInactive, id)
	}
	if s.stoppedLocked() {
		s.mu.Unlock()
		return core.Outcome{}, ErrStopped
	}
	run := s.startLocked(e)
	s.mu.Unlock()

	type result struct {
		out     core.Outcome
		applied bool
	}
	done := make(chan result, 1)
	go func() {
		out, applied := s.runEntry(e, run)
		done <- result{out, applied}
	}()

	select {
	case r := <-done:
		if !r.applied {
			return core.Outcome{}, fmt.Errorf("%w: %s", ErrSuperseded, id)
		}
		return r.out, nil
	case <-ctx.Done():
		return core.Outcome{}, ctx.Err()
	}
}

// SetActive enables or disables a check and persists the disabled set.
// Enabling runs the check once. A persistence error wraps ErrNotPersisted and
// is returned after the change has been applied in memory.
func (s *Scheduler) SetActive(ctx context.Context, id string, active bool) error {
	s.persistMu.Lock()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	if e.active == active {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return nil
	}

	if active {
		e.active = true
		delete(s.disabled, id)
	} else {
		s.supersedeLocked(e)
		e.active = false
		s.counters.Transition(e.outcome.Status, core.StatusInactive)
		e.outcome = core.InactiveOutcome()
		s.disabled[id] = struct{}{}
	}
	s.touchLocked()
	ids := s.disabledLocked()
	s.mu.Unlock()

	s.logger.Info("Check toggled", zap.String("check_id", id), zap.Bool("active", active))

	perr := s.saveDisabled(ctx, ids)
	s.persistMu.Unlock()

	if active {
		if err := s.rerun(ctx, id); err != nil {
			return err
		}
	}
	return perr
}

// SetInterval changes a check's interval, persists it and re-runs the check
// so the new cadence starts now. Inactive checks pick it up on reactivation.
func (s *Scheduler) SetInterval(ctx context.Context, id string, seconds int) error {
	if !core.ValidInterval(seconds) {
		return fmt.Errorf("%w: got %d, limit is %d", ErrInvalidInterval, seconds, core.MaxIntervalSeconds)
	}

	s.persistMu.Lock()

	s.mu.Lock()
	e, ok := s.entries[id]
	if !ok {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	e.interval = seconds
	s.intervals[id] = seconds
	active := e.active
	intervals := make(map[string]int, len(s.intervals))
	for k, v := range s.intervals {
		intervals[k] = v
	}
	s.touchLocked()
	s.mu.Unlock()

	s.logger.Info("Check interval changed", zap.String("check_id", id), zap.Int("seconds", seconds))

	var perr error
	if s.overrides != nil {
		if err := s.overrides.SaveIntervals(ctx, intervals); err != nil {
			s.logger.Error("Failed to persist check intervals", zap.Error(err))
			perr = fmt.Errorf("%w: check intervals: %w", ErrNotPersisted, err)
		}
	}
	s.persistMu.Unlock()

	if active {
		if err := s.rerun(ctx, id); err != nil {
			return err
		}
	}
	return perr
}

// rerun executes a check after a user change. The change already took effect,
// so a departed caller or a newer change superseding the run is not a failure;
// the run itself completes regardless of ctx.
func (s *Scheduler) rerun(ctx context.Context, id string) error {
	_, err := s.RunOne(ctx, id)
	switch {
	case err == nil,
		errors.Is(err, ErrCheckInactive),
		errors.Is(err, ErrSuperseded),
		errors.Is(err, ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return nil
	}
	return err
}

func (s *Scheduler) saveDisabled(ctx context.Context, ids []string) error {
	if s.overrides == nil {
		return nil
	}
	if err := s.overrides.SaveDisabled(ctx, ids); err != nil {
		s.logger.Error("Failed to persist disabled checks", zap.Error(err))
		return fmt.Errorf("%w: disabled checks: %w", ErrNotPersisted, err)
	}
	return nil
}

func (s *Scheduler) disabledLocked() []string {
	ids := make([]string, 0, len(s.disabled))
	for id := range s.disabled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetDeployment publishes a new inventory snapshot. The transition from an
// empty to a populated inventory starts a full run unless one is already in
// progress; the return value reports whether it did.
func (s *Scheduler) SetDeployment(d core.Deployment) bool {
	s.mu.Lock()
	wasEmpty := s.exec.Deployment.Empty()
	s.exec.Deployment = d
	trigger := wasEmpty && !d.Empty() && !s.checking && !s.stoppedLocked()
	if trigger {
		// Claim the batch slot now so a second snapshot cannot trigger again.
		s.checking = true
	}
	ctx := s.rootCtx
	s.touchLocked()
	s.mu.Unlock()

	if trigger {
		s.logger.Info("Deployment inventory available, running all checks",
			zap.Int("zones", len(d.Zones)),
			zap.Int("resources", len(d.Resources)),
		)
		go func() {
			if _, err := s.RunAll(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				s.logger.Warn("Initial run failed", zap.Error(err))
			}
		}()
	}
	return trigger
}

// Deployment returns the current inventory snapshot.
func (s *Scheduler) Deployment() core.Deployment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exec.Deployment
}

// touchLocked advances the change timestamp and notifies subscribers.
func (s *Scheduler) touchLocked() {
	now := s.clock.Now()
	if !now.After(s.updatedAt) {
		now = s.updatedAt.Add(time.Nanosecond)
	}
	s.updatedAt = now

	s.recorder.SetCounters(s.counters.Clone())
	for ch := range s.subscribers {
		select {
		case ch <- now:
		default:
			// Subscriber has an unread notification; it will read the
			// latest state anyway.
		}
	}
}

// Subscribe returns a channel receiving the change timestamp after every
// state change, and a func to unsubscribe.
func (s *Scheduler) Subscribe() (<-chan time.Time, func()) {
	ch := make(chan time.Time, 1)

	s.mu.Lock()
	if s.stoppedLocked() {
		close(ch)
	} else {
		s.subscribers[ch] = struct{}{}
	}
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

type nopRecorder struct{}

func (nopRecorder) ObserveRun(core.Definition, core.Outcome, time.Duration) {}
func (nopRecorder) ObserveBatch(time.Duration)                             {}
func (nopRecorder) SetCounters(core.StatusCounters)                        {}
func (nopRecorder) SetChecking(bool)                                       {}

package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/overrides"
	"github.com/leozw/zone-health/internal/registry"
	"github.com/leozw/zone-health/internal/scheduler"
	"github.com/leozw/zone-health/internal/storage"
	"github.com/leozw/zone-health/internal/storage/memory"
)

// countingClock tracks how many timers are armed and not yet fired or
// stopped.
type countingClock struct {
	*testingclock.FakeClock

	mu   sync.Mutex
	live int
}

func newCountingClock() *countingClock {
	return &countingClock{FakeClock: testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (c *countingClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live
}

func (c *countingClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	c.live++
	c.mu.Unlock()

	t := &countingTimer{c: c}
	t.inner = c.FakeClock.AfterFunc(d, func() {
		if t.release() {
			f()
		}
	})
	return t
}

type countingTimer struct {
	c     *countingClock
	inner clock.Timer
	done  atomic.Bool
}

func (t *countingTimer) release() bool {
	if !t.done.CompareAndSwap(false, true) {
		return false
	}
	t.c.mu.Lock()
	t.c.live--
	t.c.mu.Unlock()
	return true
}

func (t *countingTimer) C() <-chan time.Time { return t.inner.C() }

func (t *countingTimer) Stop() bool {
	if t.inner.Stop() {
		return t.release()
	}
	return false
}

func (t *countingTimer) Reset(d time.Duration) bool { return t.inner.Reset(d) }

// fakeChecker is a checker that counts invocations and concurrent executions.
type fakeChecker struct {
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
	fn          func(ctx context.Context) (core.Outcome, error)
}

func (p *fakeChecker) Run(ctx context.Context, _ core.ExecutionContext) (core.Outcome, error) {
	p.calls.Add(1)
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		m := p.maxInflight.Load()
		if n <= m || p.maxInflight.CompareAndSwap(m, n) {
			break
		}
	}

	if p.fn != nil {
		return p.fn(ctx)
	}
	return core.Healthy("ok"), nil
}

func (p *fakeChecker) Calls() int { return int(p.calls.Load()) }

type fakeRecorder struct {
	mu      sync.Mutex
	runs    int
	batches int
}

func (r *fakeRecorder) ObserveRun(core.Definition, core.Outcome, time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
}

func (r *fakeRecorder) ObserveBatch(time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches++
}

func (r *fakeRecorder) SetCounters(core.StatusCounters) {}
func (r *fakeRecorder) SetChecking(bool)                {}

func (r *fakeRecorder) Batches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches
}

type harness struct {
	s        *scheduler.Scheduler
	clock    *countingClock
	kv       storage.Store
	recorder *fakeRecorder
}

func newHarness(t *testing.T, kv storage.Store, defs ...core.Definition) *harness {
	t.Helper()

	if kv == nil {
		kv = memory.New()
	}
	reg, err := registry.Load(defs, nil)
	if err != nil {
		t.Fatalf("loading registry: %v", err)
	}

	store := overrides.New(kv, zap.NewNop())
	h := &harness{
		clock:    newCountingClock(),
		kv:       kv,
		recorder: &fakeRecorder{},
	}
	h.s = scheduler.New(reg, store.Load(context.Background()), scheduler.Config{
		Clock:        h.clock,
		Logger:       zap.NewNop(),
		Overrides:    store,
		Recorder:     h.recorder,
		CheckTimeout: 5 * time.Second,
	})
	h.s.Start(context.Background())
	t.Cleanup(h.s.Stop)
	return h
}

func check(name string, c core.Checker) core.Definition {
	return core.Definition{Name: name, Active: true, IntervalSeconds: 60, Checker: c}
}

func sum(c core.StatusCounters) int {
	return c.Total()
}

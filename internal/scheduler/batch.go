package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/core"
)

type batch struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type batchTask struct {
	e      *entry
	gen    uint64
	active bool
	ctx    context.Context
	cancel context.CancelFunc
	out    core.Outcome
	ok     bool
}

// RunAll runs every check concurrently and publishes all results at once when
// the last one reports. A batch still in flight is cancelled first and
// publishes nothing. RunAll blocks until publication.
func (s *Scheduler) RunAll(ctx context.Context) (Snapshot, error) {
	b, tasks, err := s.beginBatch()
	if err != nil {
		return Snapshot{}, err
	}

	go s.runBatch(b, tasks)

	select {
	case <-b.done:
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}

	s.mu.Lock()
	published := s.lastBatchID == b.id
	s.mu.Unlock()
	if !published {
		return s.Snapshot(), ErrSuperseded
	}
	return s.Snapshot(), nil
}

func (s *Scheduler) beginBatch() (*batch, []*batchTask, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	s.mu.Lock()
	prev := s.batch
	if prev != nil {
		prev.cancel()
	}
	s.mu.Unlock()

	if prev != nil {
		<-prev.done
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stoppedLocked() {
		s.checking = false
		s.recorder.SetChecking(false)
		return nil, nil, ErrStopped
	}

	ctx, cancel := context.WithCancel(s.rootCtx)
	b := &batch{
		id:     uuid.New().String(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	tasks := make([]*batchTask, 0, len(s.order))
	for _, e := range s.order {
		t := &batchTask{e: e, gen: s.supersedeLocked(e), active: e.active}
		if t.active {
			t.ctx, t.cancel = context.WithCancel(ctx)
			e.cancel = t.cancel
		}
		tasks = append(tasks, t)
	}

	s.batch = b
	s.checking = true
	s.recorder.SetChecking(true)
	s.touchLocked()

	s.logger.Info("Running all checks",
		zap.String("batch_id", b.id),
		zap.Int("check_count", len(tasks)),
	)
	return b, tasks, nil
}

func (s *Scheduler) runBatch(b *batch, tasks []*batchTask) {
	defer close(b.done)
	defer b.cancel()

	start := s.clock.Now()
	s.mu.Lock()
	ec := s.exec
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, t := range tasks {
		if !t.active {
			t.out, t.ok = core.InactiveOutcome(), true
			continue
		}

		wg.Add(1)
		go func(t *batchTask) {
			defer wg.Done()
			defer t.cancel()
			s.runBatchTask(t, ec)
		}(t)
	}
	wg.Wait()

	s.publish(b, tasks, s.clock.Since(start))
}

// runBatchTask executes one check of a batch. The outcome is held back, and
// the timer left unarmed, until the whole batch publishes.
func (s *Scheduler) runBatchTask(t *batchTask, ec core.ExecutionContext) {
	e := t.e

	e.exec.Lock()
	if t.ctx.Err() != nil {
		e.exec.Unlock()
		return
	}
	out := s.execute(t.ctx, e.def, ec)
	e.exec.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.ctx.Err() != nil || e.gen != t.gen || !e.active {
		return
	}
	t.out, t.ok = out, true
	e.cancel = nil
}

func (s *Scheduler) publish(b *batch, tasks []*batchTask, took time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.batch != b {
		return
	}
	s.batch = nil
	s.checking = false
	s.recorder.SetChecking(false)

	if b.ctx.Err() != nil {
		s.logger.Info("Discarding superseded batch", zap.String("batch_id", b.id))
		s.touchLocked()
		return
	}

	applied := 0
	for _, t := range tasks {
		// Entries touched after the batch started keep their newer state.
		if !t.ok || t.e.gen != t.gen || t.e.active != t.active {
			continue
		}
		t.e.outcome = t.out
		if t.active {
			s.armLocked(t.e, t.gen)
		}
		applied++
	}

	counters := core.NewStatusCounters()
	for _, e := range s.order {
		counters[e.outcome.Status]++
	}
	s.counters = counters
	s.lastBatchID = b.id
	s.touchLocked()
	s.recorder.ObserveBatch(took)

	s.logger.Info("All checks completed",
		zap.String("batch_id", b.id),
		zap.Int("applied", applied),
		zap.Int("healthy", counters[core.StatusHealthy]),
		zap.Int("warning", counters[core.StatusWarning]),
		zap.Int("error", counters[core.StatusError]),
		zap.Int("unavailable", counters[core.StatusUnavailable]),
		zap.Int("inactive", counters[core.StatusInactive]),
		zap.Duration("duration", took),
	)
}

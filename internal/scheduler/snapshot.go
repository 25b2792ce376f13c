package scheduler

import (
	"time"

	"github.com/leozw/zone-health/internal/core"
)

// Result pairs a check with its latest outcome.
type Result struct {
	Check   core.Info    `json:"check"`
	Outcome core.Outcome `json:"outcome"`
}

// Snapshot is a consistent read of the scheduler's live state.
type Snapshot struct {
	Checking  bool                `json:"is_checking"`
	Checks    []core.Info         `json:"checks"`
	Results   map[string]Result   `json:"results"`
	Intervals map[string]int      `json:"intervals"`
	Counters  core.StatusCounters `json:"status_counters"`
	Disabled  []string            `json:"disabled"`
	BatchID   string              `json:"batch_id,omitempty"`
	UpdatedAt time.Time           `json:"updated_at"`
}

func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Checking:  s.checking,
		Checks:    make([]core.Info, 0, len(s.order)),
		Results:   make(map[string]Result, len(s.order)),
		Intervals: make(map[string]int, len(s.order)),
		Counters:  s.counters.Clone(),
		Disabled:  s.disabledLocked(),
		BatchID:   s.lastBatchID,
		UpdatedAt: s.updatedAt,
	}
	for _, e := range s.order {
		info := s.infoLocked(e)
		snap.Checks = append(snap.Checks, info)
		snap.Results[e.def.ID] = Result{Check: info, Outcome: e.outcome}
		snap.Intervals[e.def.ID] = e.interval
	}
	return snap
}

// Result returns the live state of one check.
func (s *Scheduler) Result(id string) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return Result{}, false
	}
	return Result{Check: s.infoLocked(e), Outcome: e.outcome}, true
}

// Counters returns a copy of the status tally.
func (s *Scheduler) Counters() core.StatusCounters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters.Clone()
}

// infoLocked reports the definition with its live active flag and effective
// interval.
func (s *Scheduler) infoLocked(e *entry) core.Info {
	info := e.def.Info()
	info.Active = e.active
	info.IntervalSeconds = e.interval
	return info
}

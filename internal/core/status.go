package core

import "fmt"

type Status string

const (
	StatusHealthy     Status = "healthy"
	StatusWarning     Status = "warning"
	StatusError       Status = "error"
	StatusUnavailable Status = "unavailable"
	StatusInactive    Status = "inactive"
	StatusPending     Status = "pending"
)

// Statuses lists every status a counter bucket exists for, in display order.
var Statuses = []Status{
	StatusHealthy,
	StatusWarning,
	StatusError,
	StatusUnavailable,
	StatusInactive,
	StatusPending,
}

// Reportable reports whether a checker may return the status itself.
// inactive and pending are owned by the scheduler.
func (s Status) Reportable() bool {
	switch s {
	case StatusHealthy, StatusWarning, StatusError, StatusUnavailable:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// StatusCounters tallies checks per status. The sum always equals the number
// of registered checks.
type StatusCounters map[Status]int

func NewStatusCounters() StatusCounters {
	c := make(StatusCounters, len(Statuses))
	for _, s := range Statuses {
		c[s] = 0
	}
	return c
}

// Transition moves one check from one bucket to another.
func (c StatusCounters) Transition(from, to Status) {
	if from == to {
		return
	}
	c[from]--
	c[to]++
}

func (c StatusCounters) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

func (c StatusCounters) Clone() StatusCounters {
	out := make(StatusCounters, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

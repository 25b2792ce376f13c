package core

import (
	"context"

	"github.com/leozw/zone-health/internal/version"
)

const (
	DefaultIntervalSeconds = 300
	// MaxIntervalSeconds is one year. Longer intervals are rejected.
	MaxIntervalSeconds = 365 * 24 * 60 * 60
)

// ValidInterval reports whether seconds can be used as a check interval.
func ValidInterval(seconds int) bool {
	return seconds > 0 && seconds <= MaxIntervalSeconds
}

// Checker is the pass/fail logic of a single check.
type Checker interface {
	Run(ctx context.Context, ec ExecutionContext) (Outcome, error)
}

type CheckerFunc func(ctx context.Context, ec ExecutionContext) (Outcome, error)

func (f CheckerFunc) Run(ctx context.Context, ec ExecutionContext) (Outcome, error) {
	return f(ctx, ec)
}

// Definition describes a registered check.
type Definition struct {
	ID               string
	Name             string
	Description      string
	MinServerVersion string
	MaxServerVersion string
	IntervalSeconds  int
	Active           bool
	Checker          Checker
}

// Eligibility evaluates the definition's supported version range against the
// versions the deployment reports.
func (d Definition) Eligibility(reported []string) (version.Eligibility, error) {
	return version.Evaluate(d.MinServerVersion, d.MaxServerVersion, reported)
}

func (d Definition) Interval() int {
	if d.IntervalSeconds <= 0 {
		return DefaultIntervalSeconds
	}
	return d.IntervalSeconds
}

// Info is the serializable view of a definition.
type Info struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	MinServerVersion string `json:"min_server_version,omitempty"`
	MaxServerVersion string `json:"max_server_version,omitempty"`
	IntervalSeconds  int    `json:"interval_in_seconds"`
	Active           bool   `json:"active"`
}

func (d Definition) Info() Info {
	return Info{
		ID:               d.ID,
		Name:             d.Name,
		Description:      d.Description,
		MinServerVersion: d.MinServerVersion,
		MaxServerVersion: d.MaxServerVersion,
		IntervalSeconds:  d.Interval(),
		Active:           d.Active,
	}
}

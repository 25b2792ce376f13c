// Package version decides whether a check may run against the server
// versions a deployment reports.
package version

import (
	"fmt"
	"strings"

	"github.com/blang/semver/v4"
)

// Eligibility is the result of comparing a check's supported range with the
// reported server versions.
type Eligibility struct {
	Eligible bool
	// Reported is the offending server version when not eligible.
	Reported string
	Min      string
	Max      string
}

// Message renders the user-facing reason a check was not run.
func (e Eligibility) Message() string {
	if e.Eligible {
		return ""
	}
	return fmt.Sprintf(
		"This check is unavailable because the server version (%s) is out of range (%s - %s).",
		e.Reported, bound(e.Min), bound(e.Max),
	)
}

func bound(v string) string {
	if v == "" {
		return "*"
	}
	return v
}

// Parse accepts the loose forms servers report ("v4.3", "4.2.11").
func Parse(raw string) (semver.Version, error) {
	v, err := semver.ParseTolerant(strings.TrimSpace(raw))
	if err != nil {
		return semver.Version{}, fmt.Errorf("parsing version %q: %w", raw, err)
	}
	return v, nil
}

// ValidateRange checks that both bounds parse and min does not exceed max.
func ValidateRange(min, max string) error {
	var lo, hi *semver.Version
	if min != "" {
		v, err := Parse(min)
		if err != nil {
			return fmt.Errorf("min_server_version: %w", err)
		}
		lo = &v
	}
	if max != "" {
		v, err := Parse(max)
		if err != nil {
			return fmt.Errorf("max_server_version: %w", err)
		}
		hi = &v
	}
	if lo != nil && hi != nil && lo.GT(*hi) {
		return fmt.Errorf("min_server_version %s is greater than max_server_version %s", min, max)
	}
	return nil
}

// Evaluate compares the lowest reported version against min and the highest
// against max. Both sides use the same ordering: falling outside the range on
// either side makes the check ineligible. Unparseable reported versions are
// ignored; when none parse the check stays eligible.
func Evaluate(min, max string, reported []string) (Eligibility, error) {
	result := Eligibility{Eligible: true, Min: min, Max: max}
	if min == "" && max == "" {
		return result, nil
	}

	var lowest, highest *semver.Version
	var lowestRaw, highestRaw string
	for _, raw := range reported {
		v, err := Parse(raw)
		if err != nil {
			continue
		}
		if lowest == nil || v.LT(*lowest) {
			lv := v
			lowest, lowestRaw = &lv, raw
		}
		if highest == nil || v.GT(*highest) {
			hv := v
			highest, highestRaw = &hv, raw
		}
	}
	if lowest == nil {
		return result, nil
	}

	if min != "" {
		lo, err := Parse(min)
		if err != nil {
			return result, fmt.Errorf("min_server_version: %w", err)
		}
		if lowest.LT(lo) {
			result.Eligible = false
			result.Reported = lowestRaw
			return result, nil
		}
	}
	if max != "" {
		hi, err := Parse(max)
		if err != nil {
			return result, fmt.Errorf("max_server_version: %w", err)
		}
		if highest.GT(hi) {
			result.Eligible = false
			result.Reported = highestRaw
			return result, nil
		}
	}
	return result, nil
}

// Package overrides persists the user's deviations from check defaults: the
// set of disabled checks and custom intervals.
package overrides

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/storage"
)

const (
	DisabledKey  = "zone-health:disabled-checks"
	IntervalsKey = "zone-health:check-intervals"

	formatVersion = 1
)

// State is what was loaded at startup.
type State struct {
	Disabled map[string]struct{}
	// DisabledStored is false when no disabled set was ever written, in which
	// case each definition's own Active flag decides.
	DisabledStored bool
	Intervals      map[string]int
}

func (s State) IsDisabled(id string) bool {
	_, ok := s.Disabled[id]
	return ok
}

type disabledEnvelope struct {
	Version  int      `json:"version"`
	Disabled []string `json:"disabled"`
}

type intervalsEnvelope struct {
	Version   int            `json:"version"`
	Intervals map[string]int `json:"intervals"`
}

type Store struct {
	kv     storage.Store
	logger *zap.Logger
}

func New(kv storage.Store, logger *zap.Logger) *Store {
	return &Store{kv: kv, logger: logger}
}

// Load reads both overrides. Read or decode failures fall back to empty
// defaults and are logged.
func (s *Store) Load(ctx context.Context) State {
	state := State{
		Disabled:  make(map[string]struct{}),
		Intervals: make(map[string]int),
	}

	if raw, ok := s.read(ctx, DisabledKey); ok {
		ids, err := decodeDisabled(raw)
		if err != nil {
			s.logger.Warn("Ignoring stored disabled checks",
				zap.String("key", DisabledKey), zap.Error(err))
		} else {
			state.DisabledStored = true
			for _, id := range ids {
				state.Disabled[id] = struct{}{}
			}
		}
	}

	if raw, ok := s.read(ctx, IntervalsKey); ok {
		intervals, err := decodeIntervals(raw)
		if err != nil {
			s.logger.Warn("Ignoring stored check intervals",
				zap.String("key", IntervalsKey), zap.Error(err))
		} else {
			for id, seconds := range intervals {
				if !core.ValidInterval(seconds) {
					s.logger.Warn("Ignoring out of range stored interval",
						zap.String("check_id", id), zap.Int("seconds", seconds))
					continue
				}
				state.Intervals[id] = seconds
			}
		}
	}

	return state
}

func (s *Store) read(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.kv.Get(ctx, key)
	if err != nil {
		s.logger.Warn("Failed to read overrides, using defaults",
			zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, ok
}

func (s *Store) SaveDisabled(ctx context.Context, ids []string) error {
	sorted := append([]string{}, ids...)
	sort.Strings(sorted)

	data, err := json.Marshal(disabledEnvelope{Version: formatVersion, Disabled: sorted})
	if err != nil {
		return fmt.Errorf("encode disabled checks: %w", err)
	}
	if err := s.kv.Set(ctx, DisabledKey, string(data)); err != nil {
		return fmt.Errorf("save disabled checks: %w", err)
	}
	return nil
}

func (s *Store) SaveIntervals(ctx context.Context, intervals map[string]int) error {
	if intervals == nil {
		intervals = map[string]int{}
	}
	data, err := json.Marshal(intervalsEnvelope{Version: formatVersion, Intervals: intervals})
	if err != nil {
		return fmt.Errorf("encode check intervals: %w", err)
	}
	if err := s.kv.Set(ctx, IntervalsKey, string(data)); err != nil {
		return fmt.Errorf("save check intervals: %w", err)
	}
	return nil
}

// decodeDisabled accepts the versioned envelope and the legacy bare list.
func decodeDisabled(raw string) ([]string, error) {
	var legacy []string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		return legacy, nil
	}

	var env disabledEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", env.Version)
	}
	return env.Disabled, nil
}

// decodeIntervals accepts the versioned envelope and the legacy bare map.
func decodeIntervals(raw string) (map[string]int, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return nil, err
	}

	if _, versioned := probe["version"]; !versioned {
		var legacy map[string]int
		if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
			return nil, err
		}
		return legacy, nil
	}

	var env intervalsEnvelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, err
	}
	if env.Version != formatVersion {
		return nil, fmt.Errorf("unsupported format version %d", env.Version)
	}
	return env.Intervals, nil
}

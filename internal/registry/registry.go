package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/leozw/zone-health/internal/core"
	"github.com/leozw/zone-health/internal/version"
)

// IDPrefix prefixes ids assigned from a definition's position.
const IDPrefix = "zmt-"

var ErrDuplicateID = errors.New("duplicate check id")

// Registry holds the check catalog in declaration order.
type Registry struct {
	mu    sync.RWMutex
	defs  []core.Definition
	index map[string]int
	// seen counts every Register call so auto ids follow declaration order
	// even when an earlier definition was rejected.
	seen int
}

func New() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// Load concatenates the built-in and custom definitions, keeping their order.
// Every invalid definition is reported, and loading stops on the first id
// collision.
func Load(builtin, custom []core.Definition) (*Registry, error) {
	r := New()
	var result *multierror.Error

	all := make([]core.Definition, 0, len(builtin)+len(custom))
	all = append(all, builtin...)
	all = append(all, custom...)

	for _, def := range all {
		if err := r.Register(def); err != nil {
			if errors.Is(err, ErrDuplicateID) {
				return nil, err
			}
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("loading check registry: %w", err)
	}
	return r, nil
}

// Register validates def and appends it. A definition without an id gets one
// derived from its position.
func (r *Registry) Register(def core.Definition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	position := r.seen
	r.seen++
	if def.ID == "" {
		def.ID = fmt.Sprintf("%s%d", IDPrefix, position)
	}
	if def.IntervalSeconds == 0 {
		def.IntervalSeconds = core.DefaultIntervalSeconds
	}

	if err := validate(def); err != nil {
		return fmt.Errorf("check %s (%q): %w", def.ID, def.Name, err)
	}

	if _, exists := r.index[def.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, def.ID)
	}

	r.index[def.ID] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// MustRegister registers a definition and panics if registration fails.
func (r *Registry) MustRegister(def core.Definition) {
	if err := r.Register(def); err != nil {
		panic(fmt.Sprintf("failed to register check %q: %v", def.Name, err))
	}
}

func (r *Registry) Get(id string) (core.Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return core.Definition{}, false
	}
	return r.defs[i], true
}

// List returns the registered definitions in declaration order.
func (r *Registry) List() []core.Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]core.Definition, len(r.defs))
	copy(result, r.defs)
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.index)
}

func validate(def core.Definition) error {
	var result *multierror.Error
	if def.Name == "" {
		result = multierror.Append(result, errors.New("name is required"))
	}
	if def.Checker == nil {
		result = multierror.Append(result, errors.New("checker is required"))
	}
	if def.IntervalSeconds != 0 && !core.ValidInterval(def.IntervalSeconds) {
		result = multierror.Append(result, fmt.Errorf("interval must be between 1 and %d seconds, got %d",
			core.MaxIntervalSeconds, def.IntervalSeconds))
	}
	if err := version.ValidateRange(def.MinServerVersion, def.MaxServerVersion); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

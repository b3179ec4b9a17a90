package routes

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/vyrodovalexey/gochp/internal/observability"
)

// Route table errors.
var (
	// ErrEmptySpec is returned when a route spec is empty.
	ErrEmptySpec = errors.New("route spec must not be empty")

	// ErrEmptyTarget is returned when a route target is empty.
	ErrEmptyTarget = errors.New("route target must not be empty")
)

// Table is the shared routing table mapping path-prefix specs to
// backend targets. A single instance is shared between the admin API,
// which mutates it, and the proxy dispatcher, which reads it on every
// request. All methods are safe for concurrent use.
type Table struct {
	mu      sync.RWMutex
	targets map[string]string

	// ordered holds the registered specs sorted by length ascending,
	// ties broken lexicographically. It is maintained incrementally on
	// Set and Delete so lookups never sort.
	ordered []string

	defaultTarget string
	logger        observability.Logger
	metrics       *Metrics
}

// Option configures a Table.
type Option func(*Table)

// WithDefaultTarget sets the fallback target used when no spec
// matches a request path.
func WithDefaultTarget(target string) Option {
	return func(t *Table) {
		t.defaultTarget = target
	}
}

// WithLogger sets the logger used for route mutations.
func WithLogger(logger observability.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics recorder for table operations.
func WithMetrics(m *Metrics) Option {
	return func(t *Table) {
		t.metrics = m
	}
}

// NewTable creates an empty routing table.
func NewTable(opts ...Option) *Table {
	t := &Table{
		targets: make(map[string]string),
		logger:  observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// specLess orders specs by length ascending, then lexicographically.
// FindTarget scans in this order and returns on the first match, so
// the shortest matching prefix wins.
func specLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// searchSpec returns the index at which spec is stored in the ordered
// index, or the index at which it would be inserted.
func (t *Table) searchSpec(spec string) int {
	return sort.Search(len(t.ordered), func(i int) bool {
		return !specLess(t.ordered[i], spec)
	})
}

// Set registers or overwrites the target for the given spec. The
// mutation is atomic: concurrent readers observe either the previous
// state or the new one, never a partial update.
func (t *Table) Set(spec, target string) error {
	if spec == "" {
		return ErrEmptySpec
	}
	if target == "" {
		return ErrEmptyTarget
	}

	t.mu.Lock()
	_, exists := t.targets[spec]
	t.targets[spec] = target
	if !exists {
		i := t.searchSpec(spec)
		t.ordered = append(t.ordered, "")
		copy(t.ordered[i+1:], t.ordered[i:])
		t.ordered[i] = spec
	}
	size := len(t.targets)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordSet()
		t.metrics.SetRouteCount(size)
	}
	t.logger.Debug("route set",
		observability.String("spec", spec),
		observability.String("target", target),
		observability.Bool("overwrite", exists),
	)

	return nil
}

// Delete removes the entry for the given spec. It reports whether an
// entry was present; deleting an absent spec is a no-op.
func (t *Table) Delete(spec string) bool {
	t.mu.Lock()
	_, exists := t.targets[spec]
	if exists {
		delete(t.targets, spec)
		i := t.searchSpec(spec)
		t.ordered = append(t.ordered[:i], t.ordered[i+1:]...)
	}
	size := len(t.targets)
	t.mu.Unlock()

	if exists {
		if t.metrics != nil {
			t.metrics.RecordDelete()
			t.metrics.SetRouteCount(size)
		}
		t.logger.Debug("route deleted",
			observability.String("spec", spec),
		)
	}

	return exists
}

// Get returns the target registered for the exact spec.
func (t *Table) Get(spec string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	target, ok := t.targets[spec]
	return target, ok
}

// Keys returns a snapshot of the registered specs, ordered by length
// ascending with lexicographic tie-break. Mutations after the call do
// not affect the returned slice.
func (t *Table) Keys() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]string, len(t.ordered))
	copy(keys, t.ordered)
	return keys
}

// Routes returns a snapshot of all registered spec/target pairs.
func (t *Table) Routes() map[string]string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	routes := make(map[string]string, len(t.targets))
	for spec, target := range t.targets {
		routes[spec] = target
	}
	return routes
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.targets)
}

// FindTarget resolves a request path to a backend target. Specs are
// scanned in ascending length order and the first spec that is a
// byte-wise prefix of the path wins, so the shortest matching prefix
// takes precedence. If no spec matches, the default target is
// returned when configured. The returned spec is empty for default
// target matches.
func (t *Table) FindTarget(path string) (target, spec string, ok bool) {
	t.mu.RLock()
	for _, s := range t.ordered {
		if strings.HasPrefix(path, s) {
			target = t.targets[s]
			spec = s
			ok = true
			break
		}
	}
	defaultTarget := t.defaultTarget
	t.mu.RUnlock()

	if ok {
		if t.metrics != nil {
			t.metrics.RecordLookup(lookupHit)
		}
		return target, spec, true
	}

	if defaultTarget != "" {
		if t.metrics != nil {
			t.metrics.RecordLookup(lookupDefault)
		}
		return defaultTarget, "", true
	}

	if t.metrics != nil {
		t.metrics.RecordLookup(lookupMiss)
	}
	return "", "", false
}

// DefaultTarget returns the configured fallback target, if any.
func (t *Table) DefaultTarget() string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.defaultTarget
}

// SetDefaultTarget replaces the fallback target at runtime. An empty
// target disables the fallback.
func (t *Table) SetDefaultTarget(target string) {
	t.mu.Lock()
	t.defaultTarget = target
	t.mu.Unlock()

	t.logger.Debug("default target set",
		observability.String("target", target),
	)
}

/*
ids.go - Monotonic identifier allocation and recovery

PURPOSE:
  Every entity kind owns a counter. Fresh ids are minted as prefix+counter;
  ids restored from storage ratchet the counter forward so that a fresh id
  never collides with a restored one.

INVARIANT:
  For each kind, the counter is >= the numeric suffix of every id ever issued
  or recovered. The counter never decreases.

SEEDING:
  Accounts start numbering from the current year ("A2026", "A2027", ...).
  The seed is only used when the counter is still zero on the first fresh
  allocation; a recovered id takes precedence.

RECOVERY:
  On startup the loader calls Synchronize(kind, maxPersistedID) for every
  kind. Synchronize is an idempotent ratchet and may be called any number of
  times; only the largest observed value takes effect.

CONCURRENCY:
  Each Allocator has its own mutex. Two concurrent allocations for the same
  kind never observe the same pre-increment counter.

SEE ALSO:
  - loader.go: Calls Synchronize during bulk load
  - errors.go: InvalidIdentifierError
*/
package generic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// =============================================================================
// KIND SPEC
// =============================================================================

// KindSpec describes how ids of one kind are formatted.
type KindSpec struct {
	Kind   Kind
	Prefix string
	// Seed, if set, supplies the counter value for the first fresh id when
	// nothing has been issued or recovered yet.
	Seed func() int64
}

// DefaultKindSpecs returns the id formats used by the ledger.
func DefaultKindSpecs(now func() time.Time) []KindSpec {
	if now == nil {
		now = time.Now
	}
	return []KindSpec{
		{Kind: KindAccount, Prefix: "A", Seed: func() int64 { return int64(now().Year()) }},
		{Kind: KindExpense, Prefix: "E"},
		{Kind: KindIncome, Prefix: "I"},
		{Kind: KindSavingsTransaction, Prefix: "ST"},
		{Kind: KindAccumulativeSavings, Prefix: "AS"},
		{Kind: KindEconomicalSavings, Prefix: "ES"},
		{Kind: KindBorrowLend, Prefix: ""},
		{Kind: KindCategory, Prefix: ""},
		{Kind: KindSubject, Prefix: ""},
	}
}

// =============================================================================
// ALLOCATOR - One counter per kind
// =============================================================================

type Allocator struct {
	spec    KindSpec
	mu      sync.Mutex
	counter int64
}

func newAllocator(spec KindSpec) *Allocator {
	return &Allocator{spec: spec}
}

// Next mints a fresh id.
func (a *Allocator) Next() ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.counter == 0 && a.spec.Seed != nil {
		a.counter = a.spec.Seed()
	} else {
		a.counter++
	}
	return a.format(a.counter)
}

// Adopt validates a supplied id, ratchets the counter, and returns the id
// unchanged.
func (a *Allocator) Adopt(raw string) (ID, error) {
	n, err := a.parse(raw)
	if err != nil {
		return "", err
	}
	a.ratchet(n)
	return ID(raw), nil
}

// Synchronize ratchets the counter to the suffix of observedMax.
func (a *Allocator) Synchronize(observedMax string) error {
	n, err := a.parse(observedMax)
	if err != nil {
		return err
	}
	a.ratchet(n)
	return nil
}

// Counter returns the current counter value.
func (a *Allocator) Counter() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counter
}

func (a *Allocator) ratchet(n int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.counter {
		a.counter = n
	}
}

func (a *Allocator) format(n int64) ID {
	return ID(a.spec.Prefix + strconv.FormatInt(n, 10))
}

// parse extracts the numeric suffix. Only ASCII digits are accepted after
// the prefix, so signs, spaces and empty suffixes are rejected.
func (a *Allocator) parse(raw string) (int64, error) {
	n, ok := Suffix(raw, a.spec.Prefix)
	if !ok {
		return 0, &InvalidIdentifierError{Kind: a.spec.Kind, Raw: raw}
	}
	return n, nil
}

// Suffix returns the numeric part of raw after prefix. ok is false when the
// prefix is missing or the rest is not a non-empty run of digits.
func Suffix(raw, prefix string) (int64, bool) {
	suffix, ok := strings.CutPrefix(raw, prefix)
	if !ok || suffix == "" {
		return 0, false
	}
	for i := 0; i < len(suffix); i++ {
		if suffix[i] < '0' || suffix[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// =============================================================================
// REGISTRY - Explicit context object holding every allocator
// =============================================================================

// Registry holds one Allocator per kind. It replaces process-wide static
// counters: tests and loaders each get their own.
type Registry struct {
	allocators map[Kind]*Allocator
}

// RegistryOption configures a Registry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	now   func() time.Time
	edits []func(map[Kind]KindSpec)
}

// WithClock sets the clock used for year-based seeds.
func WithClock(now func() time.Time) RegistryOption {
	return func(c *registryConfig) { c.now = now }
}

// WithKind adds or replaces a kind spec.
func WithKind(spec KindSpec) RegistryOption {
	return func(c *registryConfig) {
		c.edits = append(c.edits, func(specs map[Kind]KindSpec) { specs[spec.Kind] = spec })
	}
}

// WithSeed overrides the seed of an existing kind. A seed of 0 disables
// seeding, so the first fresh id is prefix+1.
func WithSeed(kind Kind, seed int64) RegistryOption {
	return func(c *registryConfig) {
		c.edits = append(c.edits, func(specs map[Kind]KindSpec) {
			spec, ok := specs[kind]
			if !ok {
				return
			}
			spec.Seed = nil
			if seed != 0 {
				spec.Seed = func() int64 { return seed }
			}
			specs[kind] = spec
		})
	}
}

// NewRegistry creates a registry with the default kinds.
func NewRegistry(opts ...RegistryOption) *Registry {
	cfg := &registryConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	specs := make(map[Kind]KindSpec)
	for _, spec := range DefaultKindSpecs(cfg.now) {
		specs[spec.Kind] = spec
	}
	for _, edit := range cfg.edits {
		edit(specs)
	}

	r := &Registry{allocators: make(map[Kind]*Allocator, len(specs))}
	for kind, spec := range specs {
		r.allocators[kind] = newAllocator(spec)
	}
	return r
}

func (r *Registry) allocator(kind Kind) (*Allocator, error) {
	a, ok := r.allocators[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	return a, nil
}

// Allocate returns a fresh id when supplied is empty. Otherwise it parses
// supplied, ratchets the counter and returns supplied unchanged.
func (r *Registry) Allocate(kind Kind, supplied string) (ID, error) {
	a, err := r.allocator(kind)
	if err != nil {
		return "", err
	}
	if supplied == "" {
		return a.Next(), nil
	}
	return a.Adopt(supplied)
}

// Synchronize ratchets kind's counter to observedMax's suffix.
func (r *Registry) Synchronize(kind Kind, observedMax string) error {
	a, err := r.allocator(kind)
	if err != nil {
		return err
	}
	return a.Synchronize(observedMax)
}

// Counter returns kind's current counter, or 0 for unknown kinds.
func (r *Registry) Counter(kind Kind) int64 {
	a, err := r.allocator(kind)
	if err != nil {
		return 0
	}
	return a.Counter()
}

// ParseID returns the numeric suffix of raw without touching the counter.
func (r *Registry) ParseID(kind Kind, raw string) (int64, error) {
	a, err := r.allocator(kind)
	if err != nil {
		return 0, err
	}
	return a.parse(raw)
}

// FormatID renders n as an id of kind. The counter is not touched.
func (r *Registry) FormatID(kind Kind, n int64) (ID, error) {
	a, err := r.allocator(kind)
	if err != nil {
		return "", err
	}
	return a.format(n), nil
}

// Prefix returns kind's id prefix.
func (r *Registry) Prefix(kind Kind) string {
	if a, ok := r.allocators[kind]; ok {
		return a.spec.Prefix
	}
	return ""
}

// Kinds returns the registered kinds, sorted.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.allocators))
	for k := range r.allocators {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

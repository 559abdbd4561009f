/*
derived.go - Derived attributes with a one-step history

PURPOSE:
  A derived attribute (a savings product's final balance or remaining amount,
  a borrow/lend record's final money) is never set directly. It is recomputed
  whenever one of its inputs changes, and it keeps the value it replaced so
  that audit queries can ask "what was it before the last change?".

STATE MACHINE:
  Stale    -> never computed. Get() reads as zero, Cached() fails.
  Computed -> holds a value. Every Recompute pushes the current value into
              the history slot first.

  After the first Recompute the history slot holds "no value" (there was
  nothing before it), so Cached() keeps failing with ErrStaleHistory until a
  second computation has happened.

RESTORE:
  A value loaded from storage enters Computed directly without touching the
  history slot.

SEE ALSO:
  - savings/: finalBalance, remainedAmount
  - borrowlend/: finalMoney
*/
package generic

import (
	"sync"

	"github.com/shopspring/decimal"
)

type DerivedState int

const (
	DerivedStale DerivedState = iota
	DerivedComputed
)

func (s DerivedState) String() string {
	if s == DerivedComputed {
		return "computed"
	}
	return "stale"
}

// Derived holds a computed value and the value it replaced.
type Derived struct {
	mu sync.Mutex

	name     string
	state    DerivedState
	value    decimal.Decimal
	previous *decimal.Decimal
	history  bool // slot written at least once
}

func NewDerived(name string) *Derived {
	return &Derived{name: name}
}

func (d *Derived) Name() string { return d.name }

// Recompute stores fn's result, pushing the current value into history.
func (d *Derived) Recompute(fn func() decimal.Decimal) decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == DerivedComputed {
		prev := d.value
		d.previous = &prev
	} else {
		d.previous = nil
	}
	d.history = true
	d.value = fn()
	d.state = DerivedComputed
	return d.value
}

// Get returns the latest value, or zero if it was never computed.
func (d *Derived) Get() decimal.Decimal {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == DerivedStale {
		return decimal.Zero
	}
	return d.value
}

// Cached returns the value replaced by the latest computation.
func (d *Derived) Cached() (decimal.Decimal, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.history || d.previous == nil {
		return decimal.Zero, ErrStaleHistory
	}
	return *d.previous, nil
}

// Restore loads a persisted value. History is left as is.
func (d *Derived) Restore(v decimal.Decimal) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.value = v
	d.state = DerivedComputed
}

func (d *Derived) State() DerivedState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

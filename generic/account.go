/*
account.go - Account balance reconciliation

PURPOSE:
  An Account owns four collections of ledger entries (expenses, incomes,
  borrow/lend actions, savings transactions) and a balance. The reconciler
  applies each entry's signed effect to the balance exactly once, no matter
  how many code paths try to apply it.

THE PROCESSED MAP:
  processed[entryID] = the signed effect that was applied for that entry.
  An entry is applied only if its id is absent from the map. Detaching an
  entry reverses exactly the recorded effect and clears the id, so a later
  re-attach applies once more.

ATTACH PATHS:
  Attach         Link an existing entry whose effect is already part of the
                 stored balance (bulk load). Marks it processed, balance
                 unchanged.
  AttachNew      Link a new entry and apply it (if not yet processed).
  AttachNewBatch Link new entries without applying them yet. The next
                 AttachNew or ReconcileAll applies them, once each.

BALANCE BOUNDS:
  SetBalance rejects negative values. Automatic adjustments are not bounds
  checked: an expense larger than the balance leaves it negative, and
  Overdrawn() reports that state to callers.

CONCURRENCY:
  One mutex guards balance, collections and processed together. Concurrent
  AttachNew calls for the same entry serialize and only one applies it.

SEE ALSO:
  - entry.go: Sign rules
  - loader.go: Attach + ReconcileAll during bulk load
*/
package generic

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY SET - Insertion-ordered set keyed by entry id
// =============================================================================

type entrySet struct {
	order []ID
	byID  map[ID]*Entry
}

func newEntrySet() *entrySet {
	return &entrySet{byID: make(map[ID]*Entry)}
}

func (s *entrySet) add(e *Entry) bool {
	if _, ok := s.byID[e.ID]; ok {
		return false
	}
	s.byID[e.ID] = e
	s.order = append(s.order, e.ID)
	return true
}

func (s *entrySet) remove(id ID) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *entrySet) list() []*Entry {
	out := make([]*Entry, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id])
	}
	return out
}

// =============================================================================
// ACCOUNT
// =============================================================================

type Account struct {
	mu sync.Mutex

	id      ID
	name    string
	typ     AccountType
	balance decimal.Decimal

	entries   map[EntryKind]*entrySet
	processed map[ID]decimal.Decimal
}

// NewAccount creates an account with an initial balance and empty
// collections.
func NewAccount(id ID, name string, typ AccountType, balance decimal.Decimal) (*Account, error) {
	if balance.IsNegative() {
		return nil, &InvalidBalanceError{AccountID: id, Value: balance}
	}
	a := &Account{
		id:        id,
		name:      name,
		typ:       typ,
		balance:   balance,
		entries:   make(map[EntryKind]*entrySet, len(EntryKinds)),
		processed: make(map[ID]decimal.Decimal),
	}
	for _, k := range EntryKinds {
		a.entries[k] = newEntrySet()
	}
	return a, nil
}

// restoreAccount rebuilds a persisted account. A stored balance may be
// negative after automatic adjustments, so it is not bounds checked.
func restoreAccount(id ID, name string, typ AccountType, balance decimal.Decimal) *Account {
	a, _ := NewAccount(id, name, typ, decimal.Zero)
	a.balance = balance
	return a
}

func (a *Account) ID() ID            { return a.id }
func (a *Account) Type() AccountType { return a.typ }

func (a *Account) Name() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.name
}

func (a *Account) SetName(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.name = name
}

func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

// Overdrawn reports whether automatic adjustments drove the balance below
// zero.
func (a *Account) Overdrawn() bool {
	return a.Balance().IsNegative()
}

// SetBalance overrides the balance. Negative values are rejected and leave
// the balance unchanged.
func (a *Account) SetBalance(value decimal.Decimal) error {
	if value.IsNegative() {
		return &InvalidBalanceError{AccountID: a.id, Value: value}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.balance = value
	return nil
}

// =============================================================================
// ATTACH / DETACH
// =============================================================================

func (a *Account) checkEntry(e *Entry) error {
	if e == nil {
		return fmt.Errorf("%w: nil entry", ErrInvalidInput)
	}
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: entry kind %q", ErrInvalidInput, e.Kind)
	}
	if e.AccountID != a.id {
		return fmt.Errorf("%w: entry %s references %s, not %s", ErrAccountMismatch, e.ID, e.AccountID, a.id)
	}
	return nil
}

// Attach links an entry whose effect is already reflected in the balance.
// It reports whether the entry was newly added.
func (a *Account) Attach(e *Entry) (bool, error) {
	if err := a.checkEntry(e); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	added := a.entries[e.Kind].add(e)
	if _, ok := a.processed[e.ID]; !ok {
		a.processed[e.ID] = e.Effect()
	}
	return added, nil
}

// AttachNew links an entry and applies its effect unless it was already
// applied. It reports whether the balance changed.
func (a *Account) AttachNew(e *Entry) (bool, error) {
	if err := a.checkEntry(e); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries[e.Kind].add(e)
	return a.reconcileLocked() > 0, nil
}

// AttachNewBatch links entries without applying them.
func (a *Account) AttachNewBatch(es ...*Entry) error {
	for _, e := range es {
		if err := a.checkEntry(e); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, e := range es {
		a.entries[e.Kind].add(e)
	}
	return nil
}

// Detach unlinks an entry. If its effect had been applied, the recorded
// effect is reversed. It reports whether the entry was linked.
func (a *Account) Detach(e *Entry) (bool, error) {
	if err := a.checkEntry(e); err != nil {
		return false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.entries[e.Kind].remove(e.ID) {
		return false, nil
	}
	if applied, ok := a.processed[e.ID]; ok {
		a.balance = a.balance.Sub(applied)
		delete(a.processed, e.ID)
	}
	return true, nil
}

// ReconcileAll applies every linked entry that has not been applied yet and
// returns how many were applied. Calling it again applies nothing.
func (a *Account) ReconcileAll() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reconcileLocked()
}

func (a *Account) reconcileLocked() int {
	applied := 0
	for _, k := range EntryKinds {
		for _, e := range a.entries[k].list() {
			if _, ok := a.processed[e.ID]; ok {
				continue
			}
			effect := e.Effect()
			a.balance = a.balance.Add(effect)
			a.processed[e.ID] = effect
			applied++
		}
	}
	return applied
}

// =============================================================================
// READ SIDE
// =============================================================================

// Entries returns the linked entries of one kind in attach order. The
// pointers are shared: whoever edits entries must also guard reads of them.
func (a *Account) Entries(kind EntryKind) []*Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.entries[kind]; ok {
		return s.list()
	}
	return nil
}

// Entry looks up a linked entry of any kind.
func (a *Account) Entry(id ID) (*Entry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range EntryKinds {
		if e, ok := a.entries[k].byID[id]; ok {
			return e, true
		}
	}
	return nil, false
}

func (a *Account) Count(kind EntryKind) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.entries[kind]; ok {
		return len(s.order)
	}
	return 0
}

// IsProcessed reports whether id's effect is currently applied.
func (a *Account) IsProcessed(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.processed[id]
	return ok
}

// Pending returns how many linked entries are waiting to be applied.
func (a *Account) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, k := range EntryKinds {
		for _, id := range a.entries[k].order {
			if _, ok := a.processed[id]; !ok {
				n++
			}
		}
	}
	return n
}

// ReconciledRecord returns the persisted form as it would be after
// ReconcileAll, and how many entries that would apply. The account is not
// changed.
func (a *Account) ReconciledRecord() (AccountRecord, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	balance, n := a.balance, 0
	for _, k := range EntryKinds {
		for _, e := range a.entries[k].list() {
			if _, ok := a.processed[e.ID]; ok {
				continue
			}
			balance = balance.Add(e.Effect())
			n++
		}
	}
	return AccountRecord{ID: a.id, Name: a.name, Type: a.typ, Balance: balance}, n
}

// Record returns the persisted form.
func (a *Account) Record() AccountRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AccountRecord{ID: a.id, Name: a.name, Type: a.typ, Balance: a.balance}
}

func (a *Account) String() string {
	return fmt.Sprintf("Account(%s,%s,%s,%s)", a.id, a.Name(), a.typ, a.Balance())
}

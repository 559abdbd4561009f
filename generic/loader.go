/*
loader.go - Bulk load and identifier counter recovery

PURPOSE:
  On startup every persisted record is read back. Two things must happen
  before any new record is created:

  1. Counter recovery. Each restored id is adopted (ratcheting its kind's
     counter), and then the store's max id per kind is passed to
     Synchronize. Either step alone is enough; doing both catches ids the
     loader never saw (e.g. rows of a kind the caller does not rebuild).

  2. Account rebuild. Accounts come back with their stored balance. Entries
     are linked with Attach, never AttachNew, so their effects are not
     applied twice. ReconcileAll then runs per account; it is a no-op for a
     consistent store.

FAILURE:
  A persisted id that does not parse fails the load with an
  InvalidIdentifierError naming it. Counters advanced before the failure stay
  advanced (they only ever move forward).

SEE ALSO:
  - ids.go: Registry.Allocate, Registry.Synchronize
  - ledger/book.go: Builds savings products and borrow/lend records on top
*/
package generic

import (
	"context"
	"fmt"
)

// Loaded is the raw result of a bulk load.
type Loaded struct {
	Accounts map[ID]*Account
	Entries  []EntryRecord
	Savings  []SavingsRecord
	Named    map[Kind][]NamedRecord
}

// Loader reads a Store back into memory.
type Loader struct {
	Store    Store
	Registry *Registry
}

func NewLoader(store Store, registry *Registry) *Loader {
	return &Loader{Store: store, Registry: registry}
}

// Load reads all records, recovers id counters and rebuilds accounts.
func (l *Loader) Load(ctx context.Context) (*Loaded, error) {
	out := &Loaded{
		Accounts: make(map[ID]*Account),
		Named:    make(map[Kind][]NamedRecord),
	}

	for _, kind := range []Kind{KindCategory, KindSubject} {
		recs, err := l.Store.LoadNamed(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", kind, err)
		}
		for _, r := range recs {
			if _, err := l.Registry.Allocate(kind, string(r.ID)); err != nil {
				return nil, err
			}
		}
		out.Named[kind] = recs
	}

	accounts, err := l.Store.LoadAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}
	for _, r := range accounts {
		if _, err := l.Registry.Allocate(KindAccount, string(r.ID)); err != nil {
			return nil, err
		}
		out.Accounts[r.ID] = restoreAccount(r.ID, r.Name, r.Type, r.Balance)
	}

	out.Savings, err = l.Store.LoadSavings(ctx)
	if err != nil {
		return nil, fmt.Errorf("load savings: %w", err)
	}
	for _, r := range out.Savings {
		if _, err := l.Registry.Allocate(r.Kind, string(r.ID)); err != nil {
			return nil, err
		}
	}

	out.Entries, err = l.Store.LoadEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	for _, r := range out.Entries {
		if _, err := l.Registry.Allocate(r.Kind.IDKind(), string(r.ID)); err != nil {
			return nil, err
		}
	}

	if err := l.SynchronizeCounters(ctx); err != nil {
		return nil, err
	}

	return out, nil
}

// SynchronizeCounters ratchets every registered kind to the store's max id.
func (l *Loader) SynchronizeCounters(ctx context.Context) error {
	for _, kind := range l.Registry.Kinds() {
		maxID, ok, err := l.Store.MaxID(ctx, kind, l.Registry.Prefix(kind))
		if err != nil {
			return fmt.Errorf("max id for %s: %w", kind, err)
		}
		if !ok {
			continue
		}
		if err := l.Registry.Synchronize(kind, maxID); err != nil {
			return err
		}
	}
	return nil
}

// LinkEntries attaches loaded entries to their accounts and runs a
// reconciliation sweep per account. Entries whose account is missing are
// returned as orphans.
func LinkEntries(accounts map[ID]*Account, entries []*Entry) (orphans []*Entry, err error) {
	for _, e := range entries {
		acct, ok := accounts[e.AccountID]
		if !ok {
			orphans = append(orphans, e)
			continue
		}
		if _, err := acct.Attach(e); err != nil {
			return nil, err
		}
	}
	for _, acct := range accounts {
		acct.ReconcileAll()
	}
	return orphans, nil
}

/*
Package ledger provides the Book: the mutation entry points of the ledger.

PURPOSE:
  The generic package holds the invariants (id allocation, exactly-once
  balance effects, derived attributes). The Book wires them together for a
  whole ledger: it owns every account, entry, savings product, borrow/lend
  record, category and subject, persists each mutation atomically, and
  writes an audit trail.

KEY OPERATIONS:
  Load:             Rebuild everything from the store, recover id counters
  CreateAccount:    Allocate an "A" id, persist the opening balance
  CreateEntry:      Allocate, validate, link to its product or record,
                    apply the balance effect once, persist
  DeleteEntry:      Unlink, reverse the applied effect, persist
  CreateSavings /
  UpdateSavings:    Savings products and their derived attribute
  UpdateBorrowLend: Terms edits; money or action edits re-apply the effect
  SetBalance:       Explicit balance override (rejects negatives)
  Reconcile:        Sweep an account for entries not yet applied

FAILURE:
  Input is validated before an id is allocated, so a rejected call never
  consumes a number. If persistence fails after the in-memory change, the
  in-memory change is undone.

CONCURRENCY:
  One RWMutex guards the Book's maps and the entries they hold. Mutations
  take the write lock for the whole operation including persistence; reads
  take the read lock and hand out copies of entries.

SEE ALSO:
  - generic/loader.go: Counter recovery and entry linking
  - api/handlers.go: HTTP surface over the Book
*/
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/savings"
)

// Book is an in-memory ledger backed by a transactional store.
type Book struct {
	mu sync.RWMutex

	store    generic.TxStore
	audit    generic.AuditLog
	registry *generic.Registry
	logger   *slog.Logger
	now      func() time.Time

	accounts   map[generic.ID]*generic.Account
	entries    map[generic.ID]*generic.Entry
	products   map[generic.ID]savings.Product
	records    map[generic.ID]*borrowlend.Record
	categories map[generic.ID]generic.Category
	subjects   map[generic.ID]borrowlend.Subject
}

// Option configures a Book.
type Option func(*Book)

// WithClock sets the clock used for audit timestamps and default dates.
func WithClock(now func() time.Time) Option {
	return func(b *Book) { b.now = now }
}

// WithAuditLog overrides the audit sink. By default the store is used if it
// implements generic.AuditLog.
func WithAuditLog(log generic.AuditLog) Option {
	return func(b *Book) { b.audit = log }
}

// New creates an empty Book. Call Load to read persisted state.
func New(store generic.TxStore, registry *generic.Registry, logger *slog.Logger, opts ...Option) *Book {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Book{
		store:    store,
		registry: registry,
		logger:   logger,
		now:      time.Now,
	}
	if log, ok := store.(generic.AuditLog); ok {
		b.audit = log
	}
	for _, opt := range opts {
		opt(b)
	}
	b.reset()
	return b
}

func (b *Book) reset() {
	b.accounts = make(map[generic.ID]*generic.Account)
	b.entries = make(map[generic.ID]*generic.Entry)
	b.products = make(map[generic.ID]savings.Product)
	b.records = make(map[generic.ID]*borrowlend.Record)
	b.categories = make(map[generic.ID]generic.Category)
	b.subjects = make(map[generic.ID]borrowlend.Subject)
}

// =============================================================================
// LOAD
// =============================================================================

// Load replaces the Book's state with what the store holds. Entries are
// linked without re-applying their effects; stored balances are kept.
func (b *Book) Load(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	loaded, err := generic.NewLoader(b.store, b.registry).Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	b.reset()
	b.accounts = loaded.Accounts

	for _, r := range loaded.Named[generic.KindCategory] {
		b.categories[r.ID] = generic.Category{ID: r.ID, Name: r.Name}
	}
	for _, r := range loaded.Named[generic.KindSubject] {
		b.subjects[r.ID] = borrowlend.Subject{ID: r.ID, Name: r.Name}
	}

	for _, rec := range loaded.Savings {
		p, err := savings.FromRecord(rec)
		if err != nil {
			return fmt.Errorf("load savings %s: %w", rec.ID, err)
		}
		b.products[rec.ID] = p
	}

	entries := make([]*generic.Entry, 0, len(loaded.Entries))
	for _, rec := range loaded.Entries {
		e := rec.Entry()
		switch rec.Kind {
		case generic.EntryBorrowLend:
			r, err := borrowlend.FromRecord(rec)
			if err != nil {
				return fmt.Errorf("load borrow/lend %s: %w", rec.ID, err)
			}
			e = r.Entry()
			b.records[rec.ID] = r
		case generic.EntrySavingsTransaction:
			p, ok := b.products[rec.SavingsID]
			if !ok {
				b.logger.Warn("savings transaction references missing product",
					"entry", rec.ID, "savings", rec.SavingsID)
				break
			}
			if err := p.AttachTransaction(e); err != nil {
				return fmt.Errorf("link savings transaction %s: %w", rec.ID, err)
			}
		}
		entries = append(entries, e)
		b.entries[e.ID] = e
	}

	orphans, err := generic.LinkEntries(b.accounts, entries)
	if err != nil {
		return fmt.Errorf("link entries: %w", err)
	}
	for _, e := range orphans {
		b.logger.Warn("entry references missing account", "entry", e.ID, "account", e.AccountID)
	}
	for _, a := range b.accounts {
		if a.Overdrawn() {
			b.logger.Warn("account is overdrawn", "account", a.ID(), "balance", a.Balance().String())
		}
	}

	b.logger.Info("ledger loaded",
		"accounts", len(b.accounts),
		"entries", len(b.entries),
		"savings", len(b.products),
		"categories", len(b.categories),
		"subjects", len(b.subjects),
	)
	return nil
}

// =============================================================================
// READ SIDE
// =============================================================================

func (b *Book) Account(id generic.ID) (*generic.Account, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.accountLocked(id)
}

func (b *Book) accountLocked(id generic.ID) (*generic.Account, error) {
	a, ok := b.accounts[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: generic.KindAccount, ID: id}
	}
	return a, nil
}

// Accounts returns every account ordered by id.
func (b *Book) Accounts() []*generic.Account {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*generic.Account, 0, len(b.accounts))
	for _, a := range b.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Entry returns a copy of the entry. Borrow/lend edits rewrite the live
// entry under the write lock, so it never leaves the Book.
func (b *Book) Entry(id generic.ID) (*generic.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, err := b.entryLocked(id)
	if err != nil {
		return nil, err
	}
	return copyEntry(e), nil
}

func copyEntry(e *generic.Entry) *generic.Entry {
	c := *e
	return &c
}

func (b *Book) entryLocked(id generic.ID) (*generic.Entry, error) {
	e, ok := b.entries[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "entry", ID: id}
	}
	return e, nil
}

// Entries returns copies of an account's entries of one kind, or of every
// kind when kind is empty.
func (b *Book) Entries(accountID generic.ID, kind generic.EntryKind) ([]*generic.Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	a, err := b.accountLocked(accountID)
	if err != nil {
		return nil, err
	}
	kinds := generic.EntryKinds
	if kind != "" {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: entry kind %q", generic.ErrInvalidInput, kind)
		}
		kinds = []generic.EntryKind{kind}
	}
	var out []*generic.Entry
	for _, k := range kinds {
		for _, e := range a.Entries(k) {
			out = append(out, copyEntry(e))
		}
	}
	return out, nil
}

func (b *Book) Savings(id generic.ID) (savings.Product, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.productLocked(id)
}

func (b *Book) productLocked(id generic.ID) (savings.Product, error) {
	p, ok := b.products[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: "savings", ID: id}
	}
	return p, nil
}

// SavingsProducts returns every product ordered by id.
func (b *Book) SavingsProducts() []savings.Product {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]savings.Product, 0, len(b.products))
	for _, p := range b.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (b *Book) BorrowLend(id generic.ID) (*borrowlend.Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.recordLocked(id)
}

func (b *Book) recordLocked(id generic.ID) (*borrowlend.Record, error) {
	r, ok := b.records[id]
	if !ok {
		return nil, &generic.NotFoundError{Kind: generic.KindBorrowLend, ID: id}
	}
	return r, nil
}

func (b *Book) Categories() []generic.Category {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]generic.Category, 0, len(b.categories))
	for _, c := range b.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lessNumeric(out[i].ID, out[j].ID) })
	return out
}

func (b *Book) Subjects() []borrowlend.Subject {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]borrowlend.Subject, 0, len(b.subjects))
	for _, s := range b.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return lessNumeric(out[i].ID, out[j].ID) })
	return out
}

// lessNumeric orders purely numeric ids by value ("2" before "10").
func lessNumeric(a, b generic.ID) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

// AuditTrail queries the audit log. It returns nothing when no log is
// configured.
func (b *Book) AuditTrail(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	if b.audit == nil {
		return nil, nil
	}
	return b.audit.QueryAudit(ctx, filter)
}

// =============================================================================
// HELPERS
// =============================================================================

// persist runs fn in a store transaction.
func (b *Book) persist(ctx context.Context, fn func(generic.Store) error) error {
	if err := b.store.WithTx(ctx, fn); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

// record appends an audit entry. A failed append is logged, not returned:
// the mutation it describes is already committed.
func (b *Book) record(ctx context.Context, entry generic.AuditEntry) {
	if b.audit == nil {
		return
	}
	entry.ID = uuid.NewString()
	entry.Timestamp = b.now().UTC()
	if err := b.audit.AppendAudit(ctx, entry); err != nil {
		b.logger.Warn("audit append failed", "action", entry.Action, "target", entry.TargetID, "error", err)
	}
}

// allocate returns the id for a new record of kind. A supplied id must parse
// and must not be taken; it is checked before the counter moves.
func (b *Book) allocate(kind generic.Kind, supplied string, taken func(generic.ID) bool) (generic.ID, error) {
	if err := b.checkSupplied(kind, supplied, taken); err != nil {
		return "", err
	}
	return b.registry.Allocate(kind, supplied)
}

// checkSupplied validates a caller-supplied id without touching any counter.
// An empty id always passes.
func (b *Book) checkSupplied(kind generic.Kind, supplied string, taken func(generic.ID) bool) error {
	if supplied == "" {
		return nil
	}
	if _, err := b.registry.ParseID(kind, supplied); err != nil {
		return err
	}
	if taken(generic.ID(supplied)) {
		return fmt.Errorf("%w: %s %s already exists", generic.ErrInvalidInput, kind, supplied)
	}
	return nil
}

func (b *Book) warnIfOverdrawn(a *generic.Account) {
	if a.Overdrawn() {
		b.logger.Warn("account is overdrawn", "account", a.ID(), "balance", a.Balance().String())
	}
}

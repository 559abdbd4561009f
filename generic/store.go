/*
store.go - Persistence interface for accounts, entries and products

PURPOSE:
  Defines the interface between the engine and the database. The engine
  keeps all live state in memory; the Store persists just enough to rebuild
  it on startup (stored balances, entries, savings products, named records)
  plus an append-only audit log.

KEY INTERFACES:
  Store:    Record persistence and max-id lookup for counter recovery
  TxStore:  Transactional operations (atomic multi-record writes)
  AuditLog: Who changed what, when

BALANCES ARE STORED AS-IS:
  An account's balance is persisted after every mutation. On reload, entries
  are linked with Account.Attach so their effects are not applied a second
  time.

DERIVED VALUES:
  remainedAmount is persisted (it is guarded against corrupted prior state on
  the next recompute). finalBalance and finalMoney are recomputed on load.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: SQLite
  - generic/store/memory.go: In-memory for testing

SEE ALSO:
  - loader.go: Reads everything back and recovers id counters
*/
package generic

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECORDS - Flat persisted shapes
// =============================================================================

type AccountRecord struct {
	ID      ID
	Name    string
	Type    AccountType
	Balance decimal.Decimal
}

// EntryRecord persists any entry kind. Borrow/lend specific fields are zero
// for the other kinds.
type EntryRecord struct {
	ID          ID
	Kind        EntryKind
	AccountID   ID
	Amount      decimal.Decimal
	Action      ActionType
	SavingsID   ID
	CategoryID  ID
	Date        time.Time
	Description string

	// Borrow/lend only
	Name         string
	SubjectID    ID
	Period       int
	InterestRate decimal.Decimal
}

// Entry returns the ledger entry part of the record.
func (r EntryRecord) Entry() *Entry {
	return &Entry{
		ID:          r.ID,
		Kind:        r.Kind,
		AccountID:   r.AccountID,
		Amount:      r.Amount,
		Action:      r.Action,
		SavingsID:   r.SavingsID,
		CategoryID:  r.CategoryID,
		Date:        r.Date,
		Description: r.Description,
	}
}

// EntryRecordOf copies an entry into a record.
func EntryRecordOf(e *Entry) EntryRecord {
	return EntryRecord{
		ID:          e.ID,
		Kind:        e.Kind,
		AccountID:   e.AccountID,
		Amount:      e.Amount,
		Action:      e.Action,
		SavingsID:   e.SavingsID,
		CategoryID:  e.CategoryID,
		Date:        e.Date,
		Description: e.Description,
	}
}

// SavingsRecord persists both savings product kinds.
type SavingsRecord struct {
	ID        ID
	Kind      Kind // KindAccumulativeSavings or KindEconomicalSavings
	Name      string
	Purpose   string
	Amount    decimal.Decimal
	StartDate time.Time

	// Economical only
	MonthlyDuration int
	InterestRate    decimal.Decimal

	// Accumulative only
	RemainedAmount decimal.NullDecimal
}

// NamedRecord persists categories and borrow/lend subjects.
type NamedRecord struct {
	Kind Kind
	ID   ID
	Name string
}

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	SaveAccount(ctx context.Context, rec AccountRecord) error
	LoadAccounts(ctx context.Context) ([]AccountRecord, error)

	// SaveEntry inserts or replaces an entry.
	SaveEntry(ctx context.Context, rec EntryRecord) error
	DeleteEntry(ctx context.Context, id ID) error
	LoadEntries(ctx context.Context) ([]EntryRecord, error)

	SaveSavings(ctx context.Context, rec SavingsRecord) error
	LoadSavings(ctx context.Context) ([]SavingsRecord, error)

	SaveNamed(ctx context.Context, rec NamedRecord) error
	LoadNamed(ctx context.Context, kind Kind) ([]NamedRecord, error)

	// MaxID returns the persisted id of kind with the largest numeric suffix
	// after prefix. ok is false when nothing of that kind is stored.
	MaxID(ctx context.Context, kind Kind, prefix string) (id string, ok bool, err error)
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic operations across multiple writes
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Append-only record of mutations
// =============================================================================

type AuditEntry struct {
	ID        string
	Timestamp time.Time
	Action    AuditAction
	Kind      Kind
	TargetID  ID
	AccountID ID
	Payload   map[string]string
}

type AuditAction string

const (
	AuditAccountCreated AuditAction = "account_created"
	AuditBalanceSet     AuditAction = "balance_set"
	AuditEntryCreated   AuditAction = "entry_created"
	AuditEntryDeleted   AuditAction = "entry_deleted"
	AuditSavingsCreated AuditAction = "savings_created"
	AuditDerivedUpdated AuditAction = "derived_updated"
	AuditReconciliation AuditAction = "reconciliation"
	AuditRecordCreated  AuditAction = "record_created"
)

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	QueryAudit(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter selects audit entries. Borrow/lend records, categories and
// subjects share bare numeric ids, so TargetID is only unambiguous together
// with Kind.
type AuditFilter struct {
	AccountID *ID
	TargetID  *ID
	Kind      *Kind
	Actions   []AuditAction
	Limit     int
}

// Matches reports whether e passes the filter (Limit is applied by the
// caller).
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.AccountID != nil && e.AccountID != *f.AccountID {
		return false
	}
	if f.TargetID != nil && e.TargetID != *f.TargetID {
		return false
	}
	if f.Kind != nil && e.Kind != *f.Kind {
		return false
	}
	if len(f.Actions) > 0 {
		for _, a := range f.Actions {
			if a == e.Action {
				return true
			}
		}
		return false
	}
	return true
}

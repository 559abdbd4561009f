/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements generic.Store, generic.TxStore and generic.AuditLog using
  SQLite. The engine keeps its live state in memory; this store holds what
  is needed to rebuild it on startup.

INTERFACES IMPLEMENTED:
  generic.Store:    Accounts, entries, savings products, named records, max-id
  generic.TxStore:  Atomic multi-record writes
  generic.AuditLog: Append-only mutation log

KEY TABLES:
  accounts:      One row per account, balance stored as of the last mutation
  entries:       Every ledger entry kind; borrow/lend terms in extra columns
  savings:       Both savings product kinds; remained_amount nullable
  named_records: Categories and borrow/lend subjects
  audit_log:     Who changed what, when (uuid ids)

MONEY:
  Amounts are stored as TEXT and read back through decimal.Decimal's
  sql.Scanner, so no value ever passes through a float.

MAX ID:
  Counter recovery asks for the largest numeric suffix per kind. Ids are
  filtered with GLOB (case sensitive, digits only after the prefix) and
  ordered by CAST(SUBSTR(id, len(prefix)+1) AS INTEGER), so "E12" beats "E7".

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the tx view never takes the lock again.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.
  ":memory:" databases are pinned to a single connection, since every new
  connection would otherwise see its own empty database.

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  book := ledger.New(store, generic.NewRegistry(), logger)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - generic/store.go: Interface definitions
  - generic/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var (
	_ generic.TxStore  = (*Store)(nil)
	_ generic.AuditLog = (*Store)(nil)
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		balance TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- All entry kinds. rowid keeps insertion order across upserts.
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		account_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		action_type INTEGER NOT NULL DEFAULT 0,
		savings_id TEXT,
		category_id TEXT,
		date TEXT,
		description TEXT,
		-- borrow/lend terms
		name TEXT,
		subject_id TEXT,
		period INTEGER NOT NULL DEFAULT 0,
		interest_rate TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_account
		ON entries(account_id);
	CREATE INDEX IF NOT EXISTS idx_entries_kind
		ON entries(kind);
	CREATE INDEX IF NOT EXISTS idx_entries_savings
		ON entries(savings_id) WHERE savings_id IS NOT NULL;

	CREATE TABLE IF NOT EXISTS savings (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		name TEXT NOT NULL,
		purpose TEXT,
		amount TEXT NOT NULL,
		start_date TEXT,
		monthly_duration INTEGER NOT NULL DEFAULT 0,
		interest_rate TEXT,
		remained_amount TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS named_records (
		kind TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (kind, id)
	);

	-- Append-only
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		action TEXT NOT NULL,
		kind TEXT,
		target_id TEXT,
		account_id TEXT,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_account
		ON audit_log(account_id);
	CREATE INDEX IF NOT EXISTS idx_audit_target
		ON audit_log(target_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (s *Store) SaveAccount(ctx context.Context, rec generic.AccountRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveAccount(ctx, s.db, rec)
}

func saveAccount(ctx context.Context, q querier, rec generic.AccountRecord) error {
	query := `
		INSERT INTO accounts (id, name, type, balance, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			type = excluded.type,
			balance = excluded.balance,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		string(rec.ID), rec.Name, string(rec.Type), rec.Balance.String(), now())
	if err != nil {
		return fmt.Errorf("failed to save account %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) LoadAccounts(ctx context.Context) ([]generic.AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadAccounts(ctx, s.db)
}

func loadAccounts(ctx context.Context, q querier) ([]generic.AccountRecord, error) {
	rows, err := q.QueryContext(ctx, "SELECT id, name, type, balance FROM accounts ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var out []generic.AccountRecord
	for rows.Next() {
		var (
			rec     generic.AccountRecord
			id, typ string
		)
		if err := rows.Scan(&id, &rec.Name, &typ, &rec.Balance); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		rec.ID = generic.ID(id)
		rec.Type = generic.AccountType(typ)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// ENTRIES
// =============================================================================

func (s *Store) SaveEntry(ctx context.Context, rec generic.EntryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveEntry(ctx, s.db, rec)
}

func saveEntry(ctx context.Context, q querier, rec generic.EntryRecord) error {
	query := `
		INSERT INTO entries
		(id, kind, account_id, amount, action_type, savings_id, category_id, date, description,
		 name, subject_id, period, interest_rate, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			account_id = excluded.account_id,
			amount = excluded.amount,
			action_type = excluded.action_type,
			savings_id = excluded.savings_id,
			category_id = excluded.category_id,
			date = excluded.date,
			description = excluded.description,
			name = excluded.name,
			subject_id = excluded.subject_id,
			period = excluded.period,
			interest_rate = excluded.interest_rate,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		string(rec.ID),
		string(rec.Kind),
		string(rec.AccountID),
		rec.Amount.String(),
		int(rec.Action),
		nullString(string(rec.SavingsID)),
		nullString(string(rec.CategoryID)),
		formatTime(rec.Date),
		rec.Description,
		rec.Name,
		nullString(string(rec.SubjectID)),
		rec.Period,
		rec.InterestRate.String(),
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save entry %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) DeleteEntry(ctx context.Context, id generic.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deleteEntry(ctx, s.db, id)
}

func deleteEntry(ctx context.Context, q querier, id generic.ID) error {
	if _, err := q.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", string(id)); err != nil {
		return fmt.Errorf("failed to delete entry %s: %w", id, err)
	}
	return nil
}

func (s *Store) LoadEntries(ctx context.Context) ([]generic.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadEntries(ctx, s.db)
}

func loadEntries(ctx context.Context, q querier) ([]generic.EntryRecord, error) {
	query := `
		SELECT id, kind, account_id, amount, action_type, savings_id, category_id, date,
		       description, name, subject_id, period, interest_rate
		FROM entries
		ORDER BY rowid ASC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var out []generic.EntryRecord
	for rows.Next() {
		rec, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanEntry(rows *sql.Rows) (generic.EntryRecord, error) {
	var (
		rec                     generic.EntryRecord
		id, kind, accountID     string
		action                  int
		savingsID, categoryID   sql.NullString
		date, description, name sql.NullString
		subjectID, rate         sql.NullString
	)
	err := rows.Scan(
		&id, &kind, &accountID, &rec.Amount, &action, &savingsID, &categoryID, &date,
		&description, &name, &subjectID, &rec.Period, &rate,
	)
	if err != nil {
		return rec, fmt.Errorf("failed to scan entry: %w", err)
	}

	rec.ID = generic.ID(id)
	rec.Kind = generic.EntryKind(kind)
	rec.AccountID = generic.ID(accountID)
	rec.Action = generic.ActionType(action)
	rec.SavingsID = generic.ID(savingsID.String)
	rec.CategoryID = generic.ID(categoryID.String)
	rec.Date = parseTime(date.String)
	rec.Description = description.String
	rec.Name = name.String
	rec.SubjectID = generic.ID(subjectID.String)
	rec.InterestRate = parseDecimal(rate.String)
	return rec, nil
}

// =============================================================================
// SAVINGS
// =============================================================================

func (s *Store) SaveSavings(ctx context.Context, rec generic.SavingsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveSavings(ctx, s.db, rec)
}

func saveSavings(ctx context.Context, q querier, rec generic.SavingsRecord) error {
	query := `
		INSERT INTO savings
		(id, kind, name, purpose, amount, start_date, monthly_duration, interest_rate,
		 remained_amount, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			name = excluded.name,
			purpose = excluded.purpose,
			amount = excluded.amount,
			start_date = excluded.start_date,
			monthly_duration = excluded.monthly_duration,
			interest_rate = excluded.interest_rate,
			remained_amount = excluded.remained_amount,
			updated_at = excluded.updated_at
	`
	_, err := q.ExecContext(ctx, query,
		string(rec.ID),
		string(rec.Kind),
		rec.Name,
		rec.Purpose,
		rec.Amount.String(),
		formatTime(rec.StartDate),
		rec.MonthlyDuration,
		rec.InterestRate.String(),
		rec.RemainedAmount,
		now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save savings %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) LoadSavings(ctx context.Context) ([]generic.SavingsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadSavings(ctx, s.db)
}

func loadSavings(ctx context.Context, q querier) ([]generic.SavingsRecord, error) {
	query := `
		SELECT id, kind, name, purpose, amount, start_date, monthly_duration, interest_rate,
		       remained_amount
		FROM savings
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings: %w", err)
	}
	defer rows.Close()

	var out []generic.SavingsRecord
	for rows.Next() {
		var (
			rec                  generic.SavingsRecord
			id, kind             string
			purpose, start, rate sql.NullString
		)
		if err := rows.Scan(&id, &kind, &rec.Name, &purpose, &rec.Amount, &start,
			&rec.MonthlyDuration, &rate, &rec.RemainedAmount); err != nil {
			return nil, fmt.Errorf("failed to scan savings: %w", err)
		}
		rec.ID = generic.ID(id)
		rec.Kind = generic.Kind(kind)
		rec.Purpose = purpose.String
		rec.StartDate = parseTime(start.String)
		rec.InterestRate = parseDecimal(rate.String)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// NAMED RECORDS - Categories and subjects
// =============================================================================

func (s *Store) SaveNamed(ctx context.Context, rec generic.NamedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return saveNamed(ctx, s.db, rec)
}

func saveNamed(ctx context.Context, q querier, rec generic.NamedRecord) error {
	query := `
		INSERT INTO named_records (kind, id, name) VALUES (?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET name = excluded.name
	`
	if _, err := q.ExecContext(ctx, query, string(rec.Kind), string(rec.ID), rec.Name); err != nil {
		return fmt.Errorf("failed to save %s %s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (s *Store) LoadNamed(ctx context.Context, kind generic.Kind) ([]generic.NamedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadNamed(ctx, s.db, kind)
}

func loadNamed(ctx context.Context, q querier, kind generic.Kind) ([]generic.NamedRecord, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT id, name FROM named_records WHERE kind = ? ORDER BY id", string(kind))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []generic.NamedRecord
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", kind, err)
		}
		out = append(out, generic.NamedRecord{Kind: kind, ID: generic.ID(id), Name: name})
	}
	return out, rows.Err()
}

// =============================================================================
// MAX ID - Counter recovery
// =============================================================================

func (s *Store) MaxID(ctx context.Context, kind generic.Kind, prefix string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maxID(ctx, s.db, kind, prefix)
}

// maxIDSource maps a kind to the table holding its ids and an optional
// discriminator column.
func maxIDSource(kind generic.Kind) (table, discriminator string, err error) {
	switch kind {
	case generic.KindAccount:
		return "accounts", "", nil
	case generic.KindAccumulativeSavings, generic.KindEconomicalSavings:
		return "savings", "kind", nil
	case generic.KindCategory, generic.KindSubject:
		return "named_records", "kind", nil
	case generic.KindExpense, generic.KindIncome, generic.KindSavingsTransaction, generic.KindBorrowLend:
		return "entries", "kind", nil
	}
	return "", "", fmt.Errorf("%w: %s", generic.ErrUnknownKind, kind)
}

func maxID(ctx context.Context, q querier, kind generic.Kind, prefix string) (string, bool, error) {
	table, discriminator, err := maxIDSource(kind)
	if err != nil {
		return "", false, err
	}

	start := len(prefix) + 1
	conds := []string{
		"id GLOB ?",
		"SUBSTR(id, ?) NOT GLOB '*[^0-9]*'",
	}
	args := []any{globEscape(prefix) + "[0-9]*", start}
	if discriminator != "" {
		conds = append(conds, discriminator+" = ?")
		args = append(args, entryKindColumn(kind))
	}
	args = append(args, start)

	query := fmt.Sprintf(
		"SELECT id FROM %s WHERE %s ORDER BY CAST(SUBSTR(id, ?) AS INTEGER) DESC LIMIT 1",
		table, strings.Join(conds, " AND "))

	var id string
	err = q.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query max id for %s: %w", kind, err)
	}
	return id, true, nil
}

// entryKindColumn returns the value stored in the discriminator column. The
// entry kinds share their names with the allocator kinds.
func entryKindColumn(kind generic.Kind) string {
	return string(kind)
}

// globEscape wraps GLOB metacharacters in a prefix in brackets.
func globEscape(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		switch r {
		case '*', '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

func (s *Store) AppendAudit(ctx context.Context, entry generic.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode audit payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, timestamp, action, kind, target_id, account_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		string(entry.Action),
		string(entry.Kind),
		nullString(string(entry.TargetID)),
		nullString(string(entry.AccountID)),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// QueryAudit returns matching entries, newest first.
func (s *Store) QueryAudit(ctx context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		conds []string
		args  []any
	)
	if filter.AccountID != nil {
		conds = append(conds, "account_id = ?")
		args = append(args, string(*filter.AccountID))
	}
	if filter.TargetID != nil {
		conds = append(conds, "target_id = ?")
		args = append(args, string(*filter.TargetID))
	}
	if filter.Kind != nil {
		conds = append(conds, "kind = ?")
		args = append(args, string(*filter.Kind))
	}
	if len(filter.Actions) > 0 {
		marks := make([]string, len(filter.Actions))
		for i, a := range filter.Actions {
			marks[i] = "?"
			args = append(args, string(a))
		}
		conds = append(conds, "action IN ("+strings.Join(marks, ", ")+")")
	}

	query := "SELECT id, timestamp, action, kind, target_id, account_id, payload_json FROM audit_log"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e                           generic.AuditEntry
			ts, action                  string
			kind, target, account, body sql.NullString
		)
		if err := rows.Scan(&e.ID, &ts, &action, &kind, &target, &account, &body); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		e.Action = generic.AuditAction(action)
		e.Kind = generic.Kind(kind.String)
		e.TargetID = generic.ID(target.String)
		e.AccountID = generic.ID(account.String)
		if body.Valid && body.String != "" && body.String != "null" {
			if err := json.Unmarshal([]byte(body.String), &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode audit payload: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveAccount(ctx context.Context, rec generic.AccountRecord) error {
	return saveAccount(ctx, ts.tx, rec)
}

func (ts *txStore) LoadAccounts(ctx context.Context) ([]generic.AccountRecord, error) {
	return loadAccounts(ctx, ts.tx)
}

func (ts *txStore) SaveEntry(ctx context.Context, rec generic.EntryRecord) error {
	return saveEntry(ctx, ts.tx, rec)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id generic.ID) error {
	return deleteEntry(ctx, ts.tx, id)
}

func (ts *txStore) LoadEntries(ctx context.Context) ([]generic.EntryRecord, error) {
	return loadEntries(ctx, ts.tx)
}

func (ts *txStore) SaveSavings(ctx context.Context, rec generic.SavingsRecord) error {
	return saveSavings(ctx, ts.tx, rec)
}

func (ts *txStore) LoadSavings(ctx context.Context) ([]generic.SavingsRecord, error) {
	return loadSavings(ctx, ts.tx)
}

func (ts *txStore) SaveNamed(ctx context.Context, rec generic.NamedRecord) error {
	return saveNamed(ctx, ts.tx, rec)
}

func (ts *txStore) LoadNamed(ctx context.Context, kind generic.Kind) ([]generic.NamedRecord, error) {
	return loadNamed(ctx, ts.tx, kind)
}

func (ts *txStore) MaxID(ctx context.Context, kind generic.Kind, prefix string) (string, bool, error) {
	return maxID(ctx, ts.tx, kind, prefix)
}

// Helper functions

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	return generic.MustParseDecimal(s)
}

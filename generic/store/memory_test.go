package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/generic/store"
)

func entry(id generic.ID, kind generic.EntryKind) generic.EntryRecord {
	return generic.EntryRecord{ID: id, Kind: kind, AccountID: "A1", Amount: decimal.NewFromInt(1)}
}

func TestMemory_EntriesKeepInsertionOrder(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	for _, id := range []generic.ID{"E10", "E2", "E7"} {
		require.NoError(t, m.SaveEntry(ctx, entry(id, generic.EntryExpense)))
	}
	require.NoError(t, m.SaveEntry(ctx, entry("E10", generic.EntryExpense)))

	got, err := m.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []generic.ID{"E10", "E2", "E7"}, []generic.ID{got[0].ID, got[1].ID, got[2].ID})
}

func TestMemory_MaxID(t *testing.T) {
	// GIVEN: Expenses E9 and E10, an income I99, a malformed E12x
	// THEN: The expense max is E10 by numeric suffix
	m := store.NewMemory()
	ctx := context.Background()

	require.NoError(t, m.SaveEntry(ctx, entry("E9", generic.EntryExpense)))
	require.NoError(t, m.SaveEntry(ctx, entry("E10", generic.EntryExpense)))
	require.NoError(t, m.SaveEntry(ctx, entry("E12x", generic.EntryExpense)))
	require.NoError(t, m.SaveEntry(ctx, entry("I99", generic.EntryIncome)))
	require.NoError(t, m.SaveNamed(ctx, generic.NamedRecord{Kind: generic.KindSubject, ID: "3", Name: "Sam"}))

	id, ok, err := m.MaxID(ctx, generic.KindExpense, "E")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "E10", id)

	id, ok, err = m.MaxID(ctx, generic.KindSubject, "")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "3", id)

	_, ok, err = m.MaxID(ctx, generic.KindCategory, "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_WithTxRollsBack(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.SaveEntry(ctx, entry("E1", generic.EntryExpense)))

	boom := errors.New("boom")
	err := m.WithTx(ctx, func(tx generic.Store) error {
		require.NoError(t, tx.DeleteEntry(ctx, "E1"))
		require.NoError(t, tx.SaveAccount(ctx, generic.AccountRecord{ID: "A1", Type: generic.AccountCash}))

		// The view sees its own writes.
		id, ok, err := tx.MaxID(ctx, generic.KindExpense, "E")
		require.NoError(t, err)
		assert.False(t, ok, "E1 deleted inside the transaction, got %q", id)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	entries, err := m.LoadEntries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	accounts, err := m.LoadAccounts(ctx)
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestMemory_AuditNewestFirst(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, m.AppendAudit(ctx, generic.AuditEntry{ID: id, Action: generic.AuditEntryCreated}))
	}

	got, err := m.QueryAudit(ctx, generic.AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemory_AuditFilterByKind(t *testing.T) {
	// GIVEN: A category and a borrow/lend record that share the id "1"
	// THEN: Target "1" alone matches both, target plus kind matches one
	m := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, m.AppendAudit(ctx, generic.AuditEntry{ID: "a", Action: generic.AuditRecordCreated, Kind: generic.KindCategory, TargetID: "1"}))
	require.NoError(t, m.AppendAudit(ctx, generic.AuditEntry{ID: "b", Action: generic.AuditEntryCreated, Kind: generic.KindBorrowLend, TargetID: "1"}))

	target := generic.ID("1")
	both, err := m.QueryAudit(ctx, generic.AuditFilter{TargetID: &target})
	require.NoError(t, err)
	assert.Len(t, both, 2)

	kind := generic.KindBorrowLend
	got, err := m.QueryAudit(ctx, generic.AuditFilter{TargetID: &target, Kind: &kind})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
}

package generic_test

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newAccount(t *testing.T, balance string) *generic.Account {
	t.Helper()
	a, err := generic.NewAccount("A2025", "Wallet", generic.AccountCash, money(balance))
	require.NoError(t, err)
	return a
}

func expense(id generic.ID, amount string) *generic.Entry {
	return &generic.Entry{ID: id, Kind: generic.EntryExpense, AccountID: "A2025", Amount: money(amount)}
}

func income(id generic.ID, amount string) *generic.Entry {
	return &generic.Entry{ID: id, Kind: generic.EntryIncome, AccountID: "A2025", Amount: money(amount)}
}

func borrowLend(id generic.ID, action generic.ActionType, amount string) *generic.Entry {
	return &generic.Entry{ID: id, Kind: generic.EntryBorrowLend, AccountID: "A2025", Action: action, Amount: money(amount)}
}

func assertBalance(t *testing.T, a *generic.Account, want string) {
	t.Helper()
	assert.True(t, a.Balance().Equal(money(want)), "balance: want %s, got %s", want, a.Balance())
}

// =============================================================================
// EXACTLY-ONCE APPLICATION
// =============================================================================

func TestAccount_AttachNewAppliesOnce(t *testing.T) {
	// GIVEN: Balance 100
	// WHEN: Expense E1 of 30 is attached twice
	// THEN: Balance 70, the second attach changes nothing
	a := newAccount(t, "100")
	e := expense("E1", "30")

	changed, err := a.AttachNew(e)
	require.NoError(t, err)
	assert.True(t, changed)
	assertBalance(t, a, "70")

	changed, err = a.AttachNew(e)
	require.NoError(t, err)
	assert.False(t, changed)
	assertBalance(t, a, "70")
	assert.Equal(t, 1, a.Count(generic.EntryExpense))
}

func TestAccount_SignRules(t *testing.T) {
	a := newAccount(t, "100")

	steps := []struct {
		entry *generic.Entry
		want  string
	}{
		{income("I1", "50"), "150"},
		{expense("E1", "20"), "130"},
		{borrowLend("1", generic.ActionCollectDebt, "10"), "140"},
		{borrowLend("2", generic.ActionBorrow, "100"), "240"},
		{borrowLend("3", generic.ActionRepay, "40"), "200"},
		{borrowLend("4", generic.ActionLend, "25"), "175"},
		{&generic.Entry{ID: "ST1", Kind: generic.EntrySavingsTransaction, AccountID: "A2025", SavingsID: "AS1", Amount: money("75")}, "100"},
	}
	for _, s := range steps {
		_, err := a.AttachNew(s.entry)
		require.NoError(t, err)
		assertBalance(t, a, s.want)
	}
}

func TestAccount_DetachReversesAppliedEffect(t *testing.T) {
	// GIVEN: Balance 100, lend of 40 applied (balance 60)
	// WHEN: The lend is detached
	// THEN: Balance back to 100; re-attaching applies once more
	a := newAccount(t, "100")
	e := borrowLend("9", generic.ActionLend, "40")

	_, err := a.AttachNew(e)
	require.NoError(t, err)
	assertBalance(t, a, "60")

	removed, err := a.Detach(e)
	require.NoError(t, err)
	assert.True(t, removed)
	assertBalance(t, a, "100")
	assert.False(t, a.IsProcessed("9"))

	removed, err = a.Detach(e)
	require.NoError(t, err)
	assert.False(t, removed)
	assertBalance(t, a, "100")

	_, err = a.AttachNew(e)
	require.NoError(t, err)
	assertBalance(t, a, "60")
}

func TestAccount_DetachUsesRecordedEffect(t *testing.T) {
	// GIVEN: Expense of 30 applied, then its amount edited to 50
	// WHEN: It is detached
	// THEN: Exactly the 30 that was applied is reversed
	a := newAccount(t, "100")
	e := expense("E1", "30")
	_, err := a.AttachNew(e)
	require.NoError(t, err)

	e.Amount = money("50")
	_, err = a.Detach(e)
	require.NoError(t, err)
	assertBalance(t, a, "100")
}

func TestAccount_AttachDoesNotApply(t *testing.T) {
	// GIVEN: Stored balance 70 that already reflects expense E1 of 30
	// WHEN: E1 is linked during load and the account is reconciled
	// THEN: Balance stays 70
	a := newAccount(t, "70")
	e := expense("E1", "30")

	added, err := a.Attach(e)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 0, a.ReconcileAll())
	assertBalance(t, a, "70")

	// Detaching still reverses it.
	_, err = a.Detach(e)
	require.NoError(t, err)
	assertBalance(t, a, "100")
}

func TestAccount_BatchThenSweep(t *testing.T) {
	// GIVEN: Two new entries linked as a batch (nothing applied yet)
	// WHEN: A third is attached with AttachNew
	// THEN: All three are applied, each once
	a := newAccount(t, "100")
	require.NoError(t, a.AttachNewBatch(expense("E1", "10"), income("I1", "5")))
	assertBalance(t, a, "100")
	assert.Equal(t, 2, a.Pending())

	_, err := a.AttachNew(expense("E2", "20"))
	require.NoError(t, err)
	assertBalance(t, a, "75")
	assert.Equal(t, 0, a.Pending())
	assert.Equal(t, 0, a.ReconcileAll())
	assertBalance(t, a, "75")
}

func TestAccount_ReconcileAllIsIdempotent(t *testing.T) {
	a := newAccount(t, "100")
	require.NoError(t, a.AttachNewBatch(expense("E1", "10"), expense("E2", "15")))

	assert.Equal(t, 2, a.ReconcileAll())
	assertBalance(t, a, "75")
	assert.Equal(t, 0, a.ReconcileAll())
	assertBalance(t, a, "75")
}

func TestAccount_ReconciledRecordChangesNothing(t *testing.T) {
	a := newAccount(t, "100")
	require.NoError(t, a.AttachNewBatch(expense("E1", "10"), income("I1", "5")))

	rec, n := a.ReconciledRecord()
	assert.Equal(t, 2, n)
	assert.True(t, rec.Balance.Equal(money("95")), "got %s", rec.Balance)
	assertBalance(t, a, "100")
	assert.Equal(t, 2, a.Pending())

	a.ReconcileAll()
	rec, n = a.ReconciledRecord()
	assert.Zero(t, n)
	assert.True(t, rec.Balance.Equal(a.Balance()))
}

func TestAccount_NeverProcessedDetachKeepsBalance(t *testing.T) {
	a := newAccount(t, "100")
	e := expense("E1", "10")
	require.NoError(t, a.AttachNewBatch(e))

	removed, err := a.Detach(e)
	require.NoError(t, err)
	assert.True(t, removed)
	assertBalance(t, a, "100")
}

func TestAccount_ConcurrentAttachNewAppliesOnce(t *testing.T) {
	a := newAccount(t, "1000")
	e := expense("E1", "1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = a.AttachNew(e)
		}()
	}
	wg.Wait()
	assertBalance(t, a, "999")
}

// =============================================================================
// BALANCE BOUNDS
// =============================================================================

func TestAccount_SetBalanceRejectsNegative(t *testing.T) {
	a := newAccount(t, "100")

	err := a.SetBalance(money("-1"))
	assert.ErrorIs(t, err, generic.ErrInvalidBalance)
	var balErr *generic.InvalidBalanceError
	require.ErrorAs(t, err, &balErr)
	assert.Equal(t, generic.ID("A2025"), balErr.AccountID)
	assertBalance(t, a, "100")

	require.NoError(t, a.SetBalance(money("0")))
	assertBalance(t, a, "0")
}

func TestAccount_NewAccountRejectsNegative(t *testing.T) {
	_, err := generic.NewAccount("A1", "x", generic.AccountBank, money("-0.01"))
	assert.ErrorIs(t, err, generic.ErrInvalidBalance)
}

func TestAccount_AutomaticAdjustmentMayOverdraw(t *testing.T) {
	// GIVEN: Balance 10
	// WHEN: An expense of 25 is applied
	// THEN: Balance -15 (not bounds checked), Overdrawn reports it
	a := newAccount(t, "10")
	_, err := a.AttachNew(expense("E1", "25"))
	require.NoError(t, err)
	assertBalance(t, a, "-15")
	assert.True(t, a.Overdrawn())
}

func TestAccount_RejectsForeignEntry(t *testing.T) {
	a := newAccount(t, "10")
	e := expense("E1", "1")
	e.AccountID = "A9"

	_, err := a.AttachNew(e)
	assert.ErrorIs(t, err, generic.ErrAccountMismatch)
	_, err = a.AttachNew(nil)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
	assertBalance(t, a, "10")
}

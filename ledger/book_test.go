package ledger_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/generic/store"
	"github.com/warp/finance-ledger/ledger"
	"github.com/warp/finance-ledger/savings"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var errBoom = errors.New("disk full")

// flakyStore fails every transaction while fail is set.
type flakyStore struct {
	*store.Memory
	fail bool
}

func (f *flakyStore) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	if f.fail {
		return errBoom
	}
	return f.Memory.WithTx(ctx, fn)
}

type fixture struct {
	book  *ledger.Book
	store *flakyStore
	logs  *bytes.Buffer
}

func clock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.March, 1, 9, 0, 0, 0, time.UTC) }
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return openFixture(t, &flakyStore{Memory: store.NewMemory()}, 2025)
}

func openFixture(t *testing.T, st *flakyStore, year int) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewJSONHandler(logs, nil))
	reg := generic.NewRegistry(generic.WithClock(clock(year)))
	book := ledger.New(st, reg, logger, ledger.WithClock(clock(year)))
	require.NoError(t, book.Load(context.Background()))
	return &fixture{book: book, store: st, logs: logs}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *fixture) account(t *testing.T, balance string) generic.ID {
	t.Helper()
	acct, err := f.book.CreateAccount(context.Background(), ledger.NewAccount{
		Name: "Wallet", Type: generic.AccountCash, Balance: money(balance),
	})
	require.NoError(t, err)
	return acct.ID()
}

func (f *fixture) entry(t *testing.T, in ledger.NewEntry) generic.ID {
	t.Helper()
	id, err := f.book.CreateEntry(context.Background(), in)
	require.NoError(t, err)
	return id
}

func (f *fixture) assertBalance(t *testing.T, id generic.ID, want string) {
	t.Helper()
	acct, err := f.book.Account(id)
	require.NoError(t, err)
	assert.True(t, acct.Balance().Equal(money(want)), "balance: got %s, want %s", acct.Balance(), want)
}

func expense(acct generic.ID, amount string) ledger.NewEntry {
	return ledger.NewEntry{Kind: generic.EntryExpense, AccountID: acct, Amount: money(amount)}
}

func income(acct generic.ID, amount string) ledger.NewEntry {
	return ledger.NewEntry{Kind: generic.EntryIncome, AccountID: acct, Amount: money(amount)}
}

func deposit(acct, product generic.ID, amount string) ledger.NewEntry {
	return ledger.NewEntry{Kind: generic.EntrySavingsTransaction, AccountID: acct, SavingsID: product, Amount: money(amount)}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func TestBook_CreateAccountIDs(t *testing.T) {
	// GIVEN: An empty ledger in 2025
	// WHEN: Accounts are created, one with a bad balance in between
	// THEN: Ids start at the year and the failed call consumes nothing
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, generic.ID("A2025"), f.account(t, "10"))

	_, err := f.book.CreateAccount(ctx, ledger.NewAccount{Name: "Bad", Type: generic.AccountCash, Balance: money("-1")})
	assert.ErrorIs(t, err, generic.ErrInvalidBalance)

	_, err = f.book.CreateAccount(ctx, ledger.NewAccount{Name: "Bad", Type: "piggy-bank"})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	assert.Equal(t, generic.ID("A2026"), f.account(t, "10"))
}

func TestBook_CreateAccountSuppliedID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acct, err := f.book.CreateAccount(ctx, ledger.NewAccount{ID: "A3000", Name: "Bank", Type: generic.AccountBank})
	require.NoError(t, err)
	assert.Equal(t, generic.ID("A3000"), acct.ID())

	_, err = f.book.CreateAccount(ctx, ledger.NewAccount{ID: "A3000", Name: "Again", Type: generic.AccountBank})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.book.CreateAccount(ctx, ledger.NewAccount{ID: "Axyz", Name: "Bad", Type: generic.AccountBank})
	var idErr *generic.InvalidIdentifierError
	require.ErrorAs(t, err, &idErr)
	assert.Equal(t, "Axyz", idErr.Raw)

	assert.Equal(t, generic.ID("A3001"), f.account(t, "0"), "supplied suffix ratchets the counter")
}

func TestBook_SetBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")

	require.NoError(t, f.book.SetBalance(ctx, acct, money("42.50")))
	f.assertBalance(t, acct, "42.50")

	err := f.book.SetBalance(ctx, acct, money("-1"))
	assert.ErrorIs(t, err, generic.ErrInvalidBalance)
	f.assertBalance(t, acct, "42.50")

	assert.True(t, generic.IsNotFound(f.book.SetBalance(ctx, "A1", money("1"))))
}

// =============================================================================
// ENTRIES
// =============================================================================

func TestBook_EntriesMoveBalance(t *testing.T) {
	// GIVEN: An account with 100
	// WHEN: An expense of 30 and an income of 50 are recorded
	// THEN: Balance is 120, each kind numbered from 1
	f := newFixture(t)
	acct := f.account(t, "100")

	assert.Equal(t, generic.ID("E1"), f.entry(t, expense(acct, "30")))
	f.assertBalance(t, acct, "70")
	assert.Equal(t, generic.ID("I1"), f.entry(t, income(acct, "50")))
	f.assertBalance(t, acct, "120")

	all, err := f.book.Entries(acct, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	expenses, err := f.book.Entries(acct, generic.EntryExpense)
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC), expenses[0].Date, "date defaults to now")

	_, err = f.book.Entries(acct, "transfer")
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestBook_DeleteEntryReversesEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	id := f.entry(t, expense(acct, "30"))

	require.NoError(t, f.book.DeleteEntry(ctx, id))
	f.assertBalance(t, acct, "100")

	_, err := f.book.Entry(id)
	assert.True(t, generic.IsNotFound(err))
	assert.True(t, generic.IsNotFound(f.book.DeleteEntry(ctx, id)))
}

func TestBook_CreateEntryRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")

	tests := []struct {
		name string
		in   ledger.NewEntry
		want func(error) bool
	}{
		{"missing account", expense("A1", "1"), generic.IsNotFound},
		{"negative amount", expense(acct, "-1"), generic.IsClientError},
		{"unknown category", ledger.NewEntry{Kind: generic.EntryExpense, AccountID: acct, Amount: money("1"), CategoryID: "9"}, generic.IsNotFound},
		{"unknown savings", deposit(acct, "AS1", "1"), generic.IsNotFound},
		{"bad action", ledger.NewEntry{Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("1"), Action: 9, Period: 1}, generic.IsClientError},
		{"zero period", ledger.NewEntry{Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("1"), Action: generic.ActionLend}, generic.IsClientError},
		{"bad supplied id", ledger.NewEntry{ID: "E1x", Kind: generic.EntryExpense, AccountID: acct, Amount: money("1")}, generic.IsClientError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.book.CreateEntry(ctx, tt.in)
			require.Error(t, err)
			assert.True(t, tt.want(err), err.Error())
		})
	}

	f.assertBalance(t, acct, "100")
	assert.Equal(t, generic.ID("E1"), f.entry(t, expense(acct, "1")), "rejected calls consume no ids")
}

func TestBook_OverdrawIsReported(t *testing.T) {
	// GIVEN: An account with 100
	// WHEN: An expense of 200 is recorded
	// THEN: The balance goes negative and a warning is logged
	f := newFixture(t)
	acct := f.account(t, "100")

	f.entry(t, expense(acct, "200"))

	f.assertBalance(t, acct, "-100")
	a, err := f.book.Account(acct)
	require.NoError(t, err)
	assert.True(t, a.Overdrawn())
	assert.Contains(t, f.logs.String(), "account is overdrawn")
}

func TestBook_ConcurrentEntries(t *testing.T) {
	f := newFixture(t)
	acct := f.account(t, "100")

	const n = 50
	ids := make(chan generic.ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := f.book.CreateEntry(context.Background(), expense(acct, "1"))
			if assert.NoError(t, err) {
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[generic.ID]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	f.assertBalance(t, acct, "50")
}

// =============================================================================
// SAVINGS
// =============================================================================

func TestBook_AccumulativeSavings(t *testing.T) {
	// GIVEN: An accumulative product with amount 500
	// WHEN: 250 and then 300 are deposited, then the 300 is deleted
	// THEN: remainedAmount goes 500 -> 250 -> 0 -> 250
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "1000")

	p, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindAccumulativeSavings, Name: "Bike", Amount: money("500")})
	require.NoError(t, err)
	assert.Equal(t, generic.ID("AS1"), p.ID())
	bike := p.(*savings.AccumulativeSavings)

	assert.Equal(t, generic.ID("ST1"), f.entry(t, deposit(acct, p.ID(), "250")))
	assert.True(t, bike.RemainedAmount().Equal(money("250")))
	f.assertBalance(t, acct, "750")

	cached, err := bike.Derived().Cached()
	require.NoError(t, err)
	assert.True(t, cached.Equal(money("500")))

	second := f.entry(t, deposit(acct, p.ID(), "300"))
	assert.True(t, bike.RemainedAmount().IsZero(), "clamped at zero")
	f.assertBalance(t, acct, "450")

	require.NoError(t, f.book.DeleteEntry(ctx, second))
	assert.True(t, bike.RemainedAmount().Equal(money("250")))
	assert.Len(t, bike.Transactions(), 1)
	f.assertBalance(t, acct, "750")
}

func TestBook_EconomicalSavings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "5000")

	p, err := f.book.CreateSavings(ctx, ledger.NewSavings{
		Kind: generic.KindEconomicalSavings, Name: "Deposit", Amount: money("1000"),
		MonthlyDuration: 6, InterestRate: money("0.12"),
	})
	require.NoError(t, err)
	assert.Equal(t, generic.ID("ES1"), p.ID())
	deposit6 := p.(*savings.EconomicalSavings)
	assert.True(t, deposit6.FinalBalance().Equal(money("1060")))

	f.entry(t, deposit(acct, p.ID(), "1000"))

	_, err = f.book.CreateEntry(ctx, deposit(acct, p.ID(), "1"))
	assert.ErrorIs(t, err, generic.ErrTransactionLimit)
	assert.True(t, generic.IsConflict(err))
	f.assertBalance(t, acct, "4000")

	twelve := 12
	_, err = f.book.UpdateSavings(ctx, p.ID(), savings.Inputs{MonthlyDuration: &twelve})
	require.NoError(t, err)
	assert.True(t, deposit6.FinalBalance().Equal(money("1120")))
	cached, err := deposit6.Derived().Cached()
	require.NoError(t, err)
	assert.True(t, cached.Equal(money("1060")))
}

func TestBook_CreateSavingsRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindEconomicalSavings, Name: "x", Amount: money("1"), MonthlyDuration: -1})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindAccumulativeSavings, Name: "x", Amount: money("-1")})
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)

	_, err = f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindExpense, Name: "x"})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	p, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindEconomicalSavings, Name: "ok", Amount: money("1"), MonthlyDuration: 1})
	require.NoError(t, err)
	assert.Equal(t, generic.ID("ES1"), p.ID())

	_, err = f.book.UpdateSavings(ctx, "ES9", savings.Inputs{})
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// BORROW / LEND
// =============================================================================

func TestBook_BorrowLend(t *testing.T) {
	// GIVEN: A lend of 1000 at 12% over 6 months from an account with 5000
	// WHEN: The money is raised to 2000, then the action flipped to borrow
	// THEN: finalMoney follows the money and the balance follows the effect
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "5000")

	subject, err := f.book.CreateSubject(ctx, "Sam")
	require.NoError(t, err)
	assert.Equal(t, generic.ID("1"), subject.ID)

	id := f.entry(t, ledger.NewEntry{
		Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("1000"), Action: generic.ActionLend,
		Name: "Loan", SubjectID: subject.ID, Period: 6, InterestRate: money("12"),
	})
	assert.Equal(t, generic.ID("1"), id)
	f.assertBalance(t, acct, "4000")

	r, err := f.book.BorrowLend(id)
	require.NoError(t, err)
	assert.True(t, r.FinalMoney().Equal(money("1020")))

	twoK := money("2000")
	_, err = f.book.UpdateBorrowLend(ctx, id, borrowlend.Inputs{Money: &twoK})
	require.NoError(t, err)
	assert.True(t, r.FinalMoney().Equal(money("2040")))
	cached, err := r.Derived().Cached()
	require.NoError(t, err)
	assert.True(t, cached.Equal(money("1020")))
	f.assertBalance(t, acct, "3000")

	borrow := generic.ActionBorrow
	_, err = f.book.UpdateBorrowLend(ctx, id, borrowlend.Inputs{Action: &borrow})
	require.NoError(t, err)
	f.assertBalance(t, acct, "7000")

	zero := 0
	_, err = f.book.UpdateBorrowLend(ctx, id, borrowlend.Inputs{Money: &twoK, Period: &zero})
	assert.ErrorIs(t, err, generic.ErrInvalidPeriod)
	f.assertBalance(t, acct, "7000")

	ghost := generic.ID("99")
	_, err = f.book.UpdateBorrowLend(ctx, id, borrowlend.Inputs{SubjectID: &ghost})
	assert.True(t, generic.IsNotFound(err))

	require.NoError(t, f.book.DeleteEntry(ctx, id))
	f.assertBalance(t, acct, "5000")
	_, err = f.book.BorrowLend(id)
	assert.True(t, generic.IsNotFound(err))
}

func TestBook_EntryReadsDuringBorrowLendUpdates(t *testing.T) {
	// GIVEN: A lend whose money is edited in a loop
	// WHEN: Other goroutines read the entry while the edits run
	// THEN: Every read sees one of the two amounts, never a half-written one,
	//       and editing a returned entry does not reach the ledger
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "5000")
	id := f.entry(t, ledger.NewEntry{
		Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("100"), Action: generic.ActionLend,
		Name: "Loan", Period: 1,
	})

	amounts := []decimal.Decimal{money("100"), money("200")}
	const rounds = 200
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			m := amounts[i%2]
			_, err := f.book.UpdateBorrowLend(ctx, id, borrowlend.Inputs{Money: &m})
			assert.NoError(t, err)
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				e, err := f.book.Entry(id)
				if !assert.NoError(t, err) {
					return
				}
				amount := e.Amount.String()
				assert.Contains(t, []string{"100", "200"}, amount)
				assert.Equal(t, amount, e.Effect().Neg().String())

				listed, err := f.book.Entries(acct, generic.EntryBorrowLend)
				if assert.NoError(t, err) && assert.Len(t, listed, 1) {
					assert.Contains(t, []string{"100", "200"}, listed[0].Amount.String())
				}
			}
		}()
	}
	wg.Wait()

	// rounds is even, so the last edit wrote 200
	e, err := f.book.Entry(id)
	require.NoError(t, err)
	e.Amount = money("1")
	r, err := f.book.BorrowLend(id)
	require.NoError(t, err)
	assert.True(t, r.Money().Equal(money("200")), "got %s", r.Money())
	f.assertBalance(t, acct, "4800")
}

// =============================================================================
// BATCH IMPORT AND RECONCILE
// =============================================================================

func TestBook_ImportEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	other := f.account(t, "0")

	ids, err := f.book.ImportEntries(ctx, []ledger.NewEntry{
		expense(acct, "10"),
		income(acct, "5"),
		expense(acct, "20"),
		income(other, "7"),
	})
	require.NoError(t, err)
	assert.Equal(t, []generic.ID{"E1", "I1", "E2", "I2"}, ids)
	f.assertBalance(t, acct, "75")
	f.assertBalance(t, other, "7")

	applied, err := f.book.Reconcile(ctx, acct)
	require.NoError(t, err)
	assert.Zero(t, applied, "everything was applied by the import")
}

func TestBook_ImportEntriesIsAllOrNothing(t *testing.T) {
	// GIVEN: An economical product, which accepts a single transaction
	// WHEN: A batch deposits into it twice
	// THEN: The batch fails and neither deposit is kept
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	p, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindEconomicalSavings, Name: "D", Amount: money("50"), MonthlyDuration: 1})
	require.NoError(t, err)

	_, err = f.book.ImportEntries(ctx, []ledger.NewEntry{
		expense(acct, "10"),
		deposit(acct, p.ID(), "20"),
		deposit(acct, p.ID(), "30"),
	})
	assert.ErrorIs(t, err, generic.ErrTransactionLimit)

	f.assertBalance(t, acct, "100")
	assert.Empty(t, p.Transactions())
	all, err := f.book.Entries(acct, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = f.book.ImportEntries(ctx, []ledger.NewEntry{expense(acct, "1"), expense(acct, "-1")})
	assert.ErrorIs(t, err, generic.ErrInvalidAmount)
	f.assertBalance(t, acct, "100")
}

func TestBook_RejectedImportKeepsIDs(t *testing.T) {
	// GIVEN: Batches rejected for a malformed id, a repeated id and an
	//        economical product over its limit
	// WHEN: A single expense is created afterwards
	// THEN: It still gets E1; a later batch mixing a supplied E5 with a
	//       generated id gets E6 for the generated one
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	p, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindEconomicalSavings, Name: "D", Amount: money("50"), MonthlyDuration: 1})
	require.NoError(t, err)

	withID := func(in ledger.NewEntry, id string) ledger.NewEntry {
		in.ID = id
		return in
	}

	_, err = f.book.ImportEntries(ctx, []ledger.NewEntry{expense(acct, "1"), withID(expense(acct, "1"), "E5"), withID(expense(acct, "1"), "Ebad")})
	assert.ErrorIs(t, err, generic.ErrInvalidIdentifier)

	_, err = f.book.ImportEntries(ctx, []ledger.NewEntry{income(acct, "1"), withID(expense(acct, "1"), "E5"), withID(expense(acct, "1"), "E5")})
	assert.ErrorIs(t, err, generic.ErrInvalidInput)

	_, err = f.book.ImportEntries(ctx, []ledger.NewEntry{deposit(acct, p.ID(), "20"), deposit(acct, p.ID(), "30")})
	assert.ErrorIs(t, err, generic.ErrTransactionLimit)

	assert.Equal(t, generic.ID("E1"), f.entry(t, expense(acct, "1")))
	assert.Equal(t, generic.ID("I1"), f.entry(t, income(acct, "1")))
	assert.Equal(t, generic.ID("ST1"), f.entry(t, deposit(acct, p.ID(), "20")))

	ids, err := f.book.ImportEntries(ctx, []ledger.NewEntry{expense(acct, "1"), withID(expense(acct, "1"), "E5")})
	require.NoError(t, err)
	assert.Equal(t, []generic.ID{"E6", "E5"}, ids)
	f.assertBalance(t, acct, "78")
}

func TestBook_FailedReconcileAppliesNothing(t *testing.T) {
	// GIVEN: An account with a linked but unapplied expense of 30
	// WHEN: Reconcile runs while the store fails
	// THEN: The error is returned, the balance and the stored balance stay
	//       100, and the expense is still pending for the next attempt
	f := newFixture(t)
	ctx := context.Background()
	id := f.account(t, "100")
	acct, err := f.book.Account(id)
	require.NoError(t, err)
	require.NoError(t, acct.AttachNewBatch(&generic.Entry{ID: "E99", Kind: generic.EntryExpense, AccountID: id, Amount: money("30")}))

	stored := func() decimal.Decimal {
		recs, err := f.store.LoadAccounts(ctx)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		return recs[0].Balance
	}

	f.store.fail = true
	applied, err := f.book.Reconcile(ctx, id)
	assert.ErrorIs(t, err, errBoom)
	assert.Zero(t, applied)
	f.assertBalance(t, id, "100")
	assert.True(t, stored().Equal(money("100")))
	assert.Equal(t, 1, acct.Pending())

	f.store.fail = false
	applied, err = f.book.Reconcile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	f.assertBalance(t, id, "70")
	assert.True(t, stored().Equal(money("70")), "got %s", stored())
	assert.Zero(t, acct.Pending())
}

func TestBook_ReconcileUnknownAccount(t *testing.T) {
	f := newFixture(t)
	_, err := f.book.Reconcile(context.Background(), "A1")
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// PERSISTENCE
// =============================================================================

func TestBook_FailedPersistLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	kept := f.entry(t, expense(acct, "10"))

	f.store.fail = true

	_, err := f.book.CreateEntry(ctx, expense(acct, "30"))
	assert.ErrorIs(t, err, errBoom)
	f.assertBalance(t, acct, "90")

	assert.ErrorIs(t, f.book.DeleteEntry(ctx, kept), errBoom)
	f.assertBalance(t, acct, "90")
	_, err = f.book.Entry(kept)
	assert.NoError(t, err)

	assert.ErrorIs(t, f.book.SetBalance(ctx, acct, money("5")), errBoom)
	f.assertBalance(t, acct, "90")

	f.store.fail = false
	require.NoError(t, f.book.DeleteEntry(ctx, kept))
	f.assertBalance(t, acct, "100")
}

func TestBook_ReloadRecoversState(t *testing.T) {
	// GIVEN: A ledger written in 2025
	// WHEN: It is reloaded by a process whose clock says 2030
	// THEN: Balances and derived values survive and counters continue from
	//       the persisted ids
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "1000")

	f.entry(t, expense(acct, "100"))
	f.entry(t, expense(acct, "50"))
	bike, err := f.book.CreateSavings(ctx, ledger.NewSavings{Kind: generic.KindAccumulativeSavings, Name: "Bike", Amount: money("500")})
	require.NoError(t, err)
	f.entry(t, deposit(acct, bike.ID(), "200"))
	subject, err := f.book.CreateSubject(ctx, "Sam")
	require.NoError(t, err)
	loan := f.entry(t, ledger.NewEntry{
		Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("100"), Action: generic.ActionBorrow,
		SubjectID: subject.ID, Period: 2, InterestRate: money("10"),
	})
	category, err := f.book.CreateCategory(ctx, "Food")
	require.NoError(t, err)
	f.assertBalance(t, acct, "750")

	g := openFixture(t, f.store, 2030)

	g.assertBalance(t, acct, "750")
	all, err := g.book.Entries(acct, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	p, err := g.book.Savings(bike.ID())
	require.NoError(t, err)
	assert.True(t, p.(*savings.AccumulativeSavings).RemainedAmount().Equal(money("300")))
	assert.Len(t, p.Transactions(), 1)

	r, err := g.book.BorrowLend(loan)
	require.NoError(t, err)
	assert.True(t, r.FinalMoney().Equal(money("105")))

	assert.Equal(t, []generic.Category{category}, g.book.Categories())
	assert.Len(t, g.book.Subjects(), 1)

	assert.Equal(t, generic.ID("A2026"), g.account(t, "0"))
	assert.Equal(t, generic.ID("E3"), g.entry(t, expense(acct, "1")))
	assert.Equal(t, generic.ID("ST2"), g.entry(t, deposit(acct, bike.ID(), "1")))

	applied, err := g.book.Reconcile(ctx, acct)
	require.NoError(t, err)
	assert.Zero(t, applied, "loaded entries are not applied twice")
}

// =============================================================================
// AUDIT
// =============================================================================

func TestBook_AuditTrail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	id := f.entry(t, expense(acct, "30"))
	require.NoError(t, f.book.DeleteEntry(ctx, id))

	trail, err := f.book.AuditTrail(ctx, generic.AuditFilter{AccountID: &acct})
	require.NoError(t, err)
	require.Len(t, trail, 3)

	assert.Equal(t, generic.AuditEntryDeleted, trail[0].Action)
	assert.Equal(t, generic.AuditEntryCreated, trail[1].Action)
	assert.Equal(t, "70", trail[1].Payload["balance"])
	assert.Equal(t, generic.AuditAccountCreated, trail[2].Action)
	for _, e := range trail {
		assert.NotEmpty(t, e.ID)
		assert.Equal(t, 2025, e.Timestamp.Year())
	}

	created, err := f.book.AuditTrail(ctx, generic.AuditFilter{TargetID: &id, Actions: []generic.AuditAction{generic.AuditEntryCreated}})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "-30", created[0].Payload["effect"])
}

func TestBook_AuditTrailByKind(t *testing.T) {
	// GIVEN: A category, a subject and a borrow/lend record, all with id "1"
	// WHEN: The trail is filtered by target "1" and a kind
	// THEN: Only that kind's entries come back
	f := newFixture(t)
	ctx := context.Background()
	acct := f.account(t, "100")
	_, err := f.book.CreateCategory(ctx, "Food")
	require.NoError(t, err)
	subject, err := f.book.CreateSubject(ctx, "Sam")
	require.NoError(t, err)
	id := f.entry(t, ledger.NewEntry{
		Kind: generic.EntryBorrowLend, AccountID: acct, Amount: money("10"), Action: generic.ActionLend,
		SubjectID: subject.ID, Period: 1,
	})
	require.Equal(t, generic.ID("1"), id)

	all, err := f.book.AuditTrail(ctx, generic.AuditFilter{TargetID: &id})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	for _, kind := range []generic.Kind{generic.KindCategory, generic.KindSubject, generic.KindBorrowLend} {
		got, err := f.book.AuditTrail(ctx, generic.AuditFilter{TargetID: &id, Kind: &kind})
		require.NoError(t, err)
		require.Len(t, got, 1, "kind %s", kind)
		assert.Equal(t, kind, got[0].Kind)
	}
}

/*
entry.go - Ledger entries and their sign rules

PURPOSE:
  A ledger entry is any transactional record that moves an account balance:
  an expense, an income, a borrow/lend action, or a contribution to a
  savings product. Each entry carries an unsigned amount; the direction of
  its effect comes from a single lookup table keyed by entry kind (and, for
  borrow/lend, by action type).

SIGN RULES:
  Expense             -> subtract
  Income              -> add
  SavingsTransaction  -> subtract (money leaves the account for the product)
  BorrowLend          -> add for CollectDebt, Borrow; subtract for Repay, Lend

IDENTITY:
  An entry's id never changes. Amount, date, category and description may be
  edited; the account remembers the effect it actually applied, so later
  edits never corrupt a reversal.

SEE ALSO:
  - account.go: Applies Effect() exactly once
  - borrowlend/record.go: Borrow/lend record built around an Entry
*/
package generic

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ENTRY KIND - Tagged variant
// =============================================================================

type EntryKind string

const (
	EntryExpense            EntryKind = "expense"
	EntryIncome             EntryKind = "income"
	EntryBorrowLend         EntryKind = "borrow_lend"
	EntrySavingsTransaction EntryKind = "savings_transaction"
)

// EntryKinds lists the four account collections in a stable order.
var EntryKinds = []EntryKind{EntryExpense, EntryIncome, EntryBorrowLend, EntrySavingsTransaction}

// Sign is the direction of an entry's effect on the account balance.
type Sign int

const (
	SignSubtract Sign = -1
	SignAdd      Sign = 1
)

// kindSigns is the sign table for kinds with a fixed direction. Borrow/lend
// is resolved through actionSigns.
var kindSigns = map[EntryKind]Sign{
	EntryExpense:            SignSubtract,
	EntryIncome:             SignAdd,
	EntrySavingsTransaction: SignSubtract,
}

// IDKind maps an entry kind to the allocator kind that numbers it.
func (k EntryKind) IDKind() Kind {
	switch k {
	case EntryExpense:
		return KindExpense
	case EntryIncome:
		return KindIncome
	case EntryBorrowLend:
		return KindBorrowLend
	case EntrySavingsTransaction:
		return KindSavingsTransaction
	}
	return ""
}

func (k EntryKind) Valid() bool {
	return k.IDKind() != ""
}

// =============================================================================
// ACTION TYPE - Borrow/lend direction
// =============================================================================

type ActionType int

const (
	ActionCollectDebt ActionType = 1
	ActionBorrow      ActionType = 2
	ActionRepay       ActionType = 3
	ActionLend        ActionType = 4
)

var actionSigns = map[ActionType]Sign{
	ActionCollectDebt: SignAdd,
	ActionBorrow:      SignAdd,
	ActionRepay:       SignSubtract,
	ActionLend:        SignSubtract,
}

var actionNames = map[ActionType]string{
	ActionCollectDebt: "Collect debts",
	ActionBorrow:      "Borrow money",
	ActionRepay:       "Repay money",
	ActionLend:        "Lend money",
}

func (a ActionType) Valid() bool {
	_, ok := actionSigns[a]
	return ok
}

func (a ActionType) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ActionType(%d)", int(a))
}

// =============================================================================
// ENTRY
// =============================================================================

type Entry struct {
	ID        ID
	Kind      EntryKind
	AccountID ID
	Amount    decimal.Decimal

	// Action is set for borrow/lend entries only.
	Action ActionType

	// SavingsID is set for savings transactions only.
	SavingsID ID

	// CategoryID is optional for expenses and incomes.
	CategoryID ID

	Date        time.Time
	Description string
}

// Sign returns the direction of the entry's effect. Invalid entries have
// sign 0 and no effect.
func (e *Entry) Sign() Sign {
	if e.Kind == EntryBorrowLend {
		return actionSigns[e.Action]
	}
	return kindSigns[e.Kind]
}

// Effect returns the signed amount this entry contributes to its account.
func (e *Entry) Effect() decimal.Decimal {
	return e.Amount.Mul(decimal.NewFromInt(int64(e.Sign())))
}

// Validate checks the entry's shape. It does not check that referenced
// accounts or products exist.
func (e *Entry) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: entry kind %q", ErrInvalidInput, e.Kind)
	}
	if e.AccountID == "" {
		return fmt.Errorf("%w: entry %s has no account", ErrInvalidInput, e.ID)
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, e.Amount)
	}
	switch e.Kind {
	case EntryBorrowLend:
		if !e.Action.Valid() {
			return fmt.Errorf("%w: %d", ErrInvalidActionType, int(e.Action))
		}
	case EntrySavingsTransaction:
		if e.SavingsID == "" {
			return fmt.Errorf("%w: savings transaction %s has no savings product", ErrInvalidInput, e.ID)
		}
	}
	return nil
}

func (e *Entry) String() string {
	return fmt.Sprintf("%s(%s,%s,%s)", e.Kind, e.ID, e.Amount, e.AccountID)
}

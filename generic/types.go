/*
Package generic provides the core bookkeeping engine.

PURPOSE:
  This package contains the pieces of the ledger that carry real invariants:
  identifier allocation, ledger entries and their sign rules, account balance
  reconciliation, and derived-attribute synchronization. Savings products and
  borrow/lend records live in their own packages and build on these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal amounts (never float64)
  - ID: prefixed, monotonically numbered identifiers ("A2024", "ST12", "7")
  - Kind: the entity kinds that own an identifier sequence
  - AccountType: the category tag of an account

DESIGN PRINCIPLES:
  1. Exactly-once: an entry's balance effect is applied a single time
  2. Precision: uses decimal.Decimal to avoid floating-point errors
  3. Explicit state: no package-level counters, allocators live in a Registry
  4. Auditability: derived values keep the value they replaced

USAGE:
  reg := generic.NewRegistry()
  id, _ := reg.Allocate(generic.KindExpense, "")
  acct, _ := generic.NewAccount("A2024", "Wallet", generic.AccountCash, generic.NewMoney(100))
  acct.AttachNew(&generic.Entry{ID: id, Kind: generic.EntryExpense, AccountID: acct.ID(), Amount: generic.NewMoney(25)})

SEE ALSO:
  - ids.go: Identifier allocation and recovery
  - entry.go: Ledger entries and sign rules
  - account.go: Balance reconciliation
  - derived.go: Derived attributes with one-step history
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY
// =============================================================================

// NewMoney converts a float literal to a decimal amount. Intended for
// constants and tests; parse user input with ParseMoney.
func NewMoney(value float64) decimal.Decimal {
	return decimal.NewFromFloat(value)
}

// NewMoneyFromInt converts an integer amount.
func NewMoneyFromInt(value int64) decimal.Decimal {
	return decimal.NewFromInt(value)
}

// ParseMoney parses a decimal string such as "1250.50".
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}

func MustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID is a textual identifier: a kind-specific prefix followed by digits.
type ID string

func (id ID) String() string { return string(id) }

// Kind names an entity kind that owns its own identifier sequence.
type Kind string

const (
	KindAccount             Kind = "account"
	KindExpense             Kind = "expense"
	KindIncome              Kind = "income"
	KindSavingsTransaction  Kind = "savings_transaction"
	KindBorrowLend          Kind = "borrow_lend"
	KindAccumulativeSavings Kind = "accumulative_savings"
	KindEconomicalSavings   Kind = "economical_savings"
	KindCategory            Kind = "category"
	KindSubject             Kind = "subject"
)

// AllKinds lists every kind in load order: referenced kinds first.
var AllKinds = []Kind{
	KindCategory,
	KindSubject,
	KindAccount,
	KindAccumulativeSavings,
	KindEconomicalSavings,
	KindExpense,
	KindIncome,
	KindSavingsTransaction,
	KindBorrowLend,
}

// =============================================================================
// ACCOUNT TYPE - Category tag, not owned by the account
// =============================================================================

type AccountType string

const (
	AccountCash    AccountType = "cash"
	AccountBank    AccountType = "bank"
	AccountEWallet AccountType = "e-wallet"
	AccountCredit  AccountType = "credit"
)

// Valid reports whether t is one of the known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountEWallet, AccountCredit:
		return true
	}
	return false
}

// =============================================================================
// NAMED RECORDS
// =============================================================================

// Category groups expenses and incomes for reporting.
type Category struct {
	ID   ID
	Name string
}

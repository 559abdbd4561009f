/*
Package savings implements savings products.

PURPOSE:
  A savings product is money set aside for a purpose. Money moves into it
  through savings transactions: ledger entries that debit an account and
  name the product. Each product keeps one derived attribute that is
  recomputed whenever an input changes:

  AccumulativeSavings:
    remainedAmount = clamp(amount - sum(transactions), 0, amount)
    "How much is still missing before the goal is reached?"

  EconomicalSavings:
    finalBalance = amount + amount * interestRate / 12 * monthlyDuration
    "What will the deposit be worth at maturity?"

KEY CONCEPTS:
  - Product: the interface the ledger book works against
  - Inputs: partial update of a product's editable fields
  - Derived(): the product's derived attribute with its one-step history

SEE ALSO:
  - generic/derived.go: Recompute / Cached semantics
  - ledger/book.go: Links savings transactions to accounts and products
*/
package savings

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

// =============================================================================
// PRODUCT INTERFACE
// =============================================================================

type Product interface {
	ID() generic.ID
	Kind() generic.Kind
	Name() string
	Amount() decimal.Decimal

	// AttachTransaction links a persisted transaction during bulk load.
	AttachTransaction(e *generic.Entry) error
	// AttachNewTransaction links a transaction created just now.
	AttachNewTransaction(e *generic.Entry) error
	// Accepts returns the error AttachNewTransaction would return for n new
	// transactions in a row, without attaching anything.
	Accepts(n int) error
	// DetachTransaction unlinks a transaction. It reports whether it was
	// linked.
	DetachTransaction(e *generic.Entry) (bool, error)
	Transactions() []*generic.Entry

	// Update applies a partial edit and recomputes the derived attribute.
	Update(in Inputs) error

	Derived() *generic.Derived
	Record() generic.SavingsRecord
}

// Inputs is a partial edit. Nil fields are left unchanged. MonthlyDuration
// and InterestRate apply to economical savings only.
type Inputs struct {
	Name            *string
	Purpose         *string
	Amount          *decimal.Decimal
	MonthlyDuration *int
	InterestRate    *decimal.Decimal
}

// =============================================================================
// BASE - Fields and transaction set shared by both products
// =============================================================================

type base struct {
	mu sync.Mutex

	id      generic.ID
	kind    generic.Kind
	name    string
	purpose string
	amount  decimal.Decimal
	start   time.Time

	txOrder []generic.ID
	txs     map[generic.ID]*generic.Entry
}

func (b *base) init(id generic.ID, kind generic.Kind, name, purpose string, amount decimal.Decimal, start time.Time) error {
	if amount.IsNegative() {
		return fmt.Errorf("%w: savings amount %s", generic.ErrInvalidAmount, amount)
	}
	b.id, b.kind = id, kind
	b.name, b.purpose = name, purpose
	b.amount, b.start = amount, start
	b.txs = make(map[generic.ID]*generic.Entry)
	return nil
}

func (b *base) ID() generic.ID     { return b.id }
func (b *base) Kind() generic.Kind { return b.kind }

func (b *base) Name() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.name
}

func (b *base) Purpose() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.purpose
}

func (b *base) StartDate() time.Time { return b.start }

func (b *base) Amount() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.amount
}

func (b *base) Transactions() []*generic.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*generic.Entry, 0, len(b.txOrder))
	for _, id := range b.txOrder {
		out = append(out, b.txs[id])
	}
	return out
}

func (b *base) checkTransaction(e *generic.Entry) error {
	if e == nil || e.Kind != generic.EntrySavingsTransaction {
		return fmt.Errorf("%w: not a savings transaction", generic.ErrInvalidInput)
	}
	if e.SavingsID != b.id {
		return fmt.Errorf("%w: transaction %s belongs to %s, not %s", generic.ErrInvalidInput, e.ID, e.SavingsID, b.id)
	}
	return nil
}

func (b *base) hasLocked(id generic.ID) bool {
	_, ok := b.txs[id]
	return ok
}

func (b *base) addLocked(e *generic.Entry) bool {
	if b.hasLocked(e.ID) {
		return false
	}
	b.txs[e.ID] = e
	b.txOrder = append(b.txOrder, e.ID)
	return true
}

func (b *base) removeLocked(id generic.ID) bool {
	if !b.hasLocked(id) {
		return false
	}
	delete(b.txs, id)
	for i, oid := range b.txOrder {
		if oid == id {
			b.txOrder = append(b.txOrder[:i], b.txOrder[i+1:]...)
			break
		}
	}
	return true
}

func (b *base) sumLocked() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range b.txs {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// applyCommonLocked validates and applies the fields both products share.
// Nothing is written unless every field is valid.
func (b *base) applyCommonLocked(in Inputs) error {
	if in.Amount != nil && in.Amount.IsNegative() {
		return fmt.Errorf("%w: savings amount %s", generic.ErrInvalidAmount, *in.Amount)
	}
	if in.Name != nil {
		b.name = *in.Name
	}
	if in.Purpose != nil {
		b.purpose = *in.Purpose
	}
	if in.Amount != nil {
		b.amount = *in.Amount
	}
	return nil
}

func (b *base) recordLocked() generic.SavingsRecord {
	return generic.SavingsRecord{
		ID:        b.id,
		Kind:      b.kind,
		Name:      b.name,
		Purpose:   b.purpose,
		Amount:    b.amount,
		StartDate: b.start,
	}
}

// FromRecord rebuilds a product from its persisted record.
func FromRecord(rec generic.SavingsRecord) (Product, error) {
	switch rec.Kind {
	case generic.KindAccumulativeSavings:
		return RestoreAccumulative(rec.ID, rec.Name, rec.Purpose, rec.Amount, rec.StartDate, rec.RemainedAmount)
	case generic.KindEconomicalSavings:
		return NewEconomical(rec.ID, rec.Name, rec.Purpose, rec.Amount, rec.StartDate, rec.MonthlyDuration, rec.InterestRate)
	}
	return nil, fmt.Errorf("%w: savings kind %q", generic.ErrUnknownKind, rec.Kind)
}

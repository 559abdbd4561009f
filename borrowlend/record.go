/*
Package borrowlend implements borrow/lend records.

PURPOSE:
  A borrow/lend record tracks money moving between the user and another
  party (a Subject). The money movement itself is a ledger entry of kind
  borrow_lend whose direction comes from its ActionType:

    Collect debts (1)  +  money comes back from someone who owed it
    Borrow money  (2)  +  money borrowed from someone
    Repay money   (3)  -  money paid back
    Lend money    (4)  -  money lent out

  On top of the entry the record keeps the terms of the loan and derives
  what will be owed at the end of it:

    finalMoney = money + money * (interestedRate / 100 / period)

  interestedRate is a percentage and period a number of months (>= 1).

KEY CONCEPTS:
  - Record: entry + terms + derived finalMoney
  - Inputs: partial edit; money or action edits change the entry's effect
  - Subject: the other party

SEE ALSO:
  - generic/entry.go: ActionType and its sign table
  - ledger/book.go: Re-applies the entry effect when money or action change
*/
package borrowlend

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

var hundred = decimal.NewFromInt(100)

// Subject is the other party of a borrow/lend record.
type Subject struct {
	ID   generic.ID
	Name string
}

// ActionInfo describes one action type.
type ActionInfo struct {
	Type generic.ActionType
	Name string
	Sign generic.Sign
}

// Actions lists the four action types in id order.
func Actions() []ActionInfo {
	types := []generic.ActionType{generic.ActionCollectDebt, generic.ActionBorrow, generic.ActionRepay, generic.ActionLend}
	out := make([]ActionInfo, 0, len(types))
	for _, t := range types {
		e := generic.Entry{Kind: generic.EntryBorrowLend, Action: t}
		out = append(out, ActionInfo{Type: t, Name: t.String(), Sign: e.Sign()})
	}
	return out
}

// FinalMoneyOf computes what is owed at the end of the period.
func FinalMoneyOf(money, ratePercent decimal.Decimal, period int) decimal.Decimal {
	if period < 1 {
		return money
	}
	return money.Add(money.Mul(ratePercent.Div(hundred).Div(decimal.NewFromInt(int64(period)))))
}

// =============================================================================
// RECORD
// =============================================================================

type Record struct {
	mu sync.Mutex

	entry     *generic.Entry
	name      string
	subjectID generic.ID
	period    int
	rate      decimal.Decimal

	finalMoney *generic.Derived
}

// Terms are the loan fields that sit next to the entry. StartDate is the
// entry's date; a zero StartDate keeps the date already on the entry.
type Terms struct {
	Name         string
	SubjectID    generic.ID
	StartDate    time.Time
	Period       int
	InterestRate decimal.Decimal
}

// NewRecord wraps a borrow_lend entry. finalMoney is computed immediately.
func NewRecord(entry *generic.Entry, terms Terms) (*Record, error) {
	if entry == nil || entry.Kind != generic.EntryBorrowLend {
		return nil, fmt.Errorf("%w: not a borrow/lend entry", generic.ErrInvalidInput)
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	if err := validateTerms(terms.Period, terms.InterestRate); err != nil {
		return nil, err
	}
	if !terms.StartDate.IsZero() {
		entry.Date = terms.StartDate
	}
	r := &Record{
		entry:      entry,
		name:       terms.Name,
		subjectID:  terms.SubjectID,
		period:     terms.Period,
		rate:       terms.InterestRate,
		finalMoney: generic.NewDerived("finalMoney"),
	}
	r.recomputeLocked()
	return r, nil
}

// FromRecord rebuilds a persisted record. finalMoney is not persisted and is
// recomputed here.
func FromRecord(rec generic.EntryRecord) (*Record, error) {
	return NewRecord(rec.Entry(), Terms{
		Name:         rec.Name,
		SubjectID:    rec.SubjectID,
		StartDate:    rec.Date,
		Period:       rec.Period,
		InterestRate: rec.InterestRate,
	})
}

func validateTerms(period int, rate decimal.Decimal) error {
	if period < 1 {
		return fmt.Errorf("%w: got %d", generic.ErrInvalidPeriod, period)
	}
	if rate.IsNegative() {
		return fmt.Errorf("%w: interest rate %s", generic.ErrInvalidInput, rate)
	}
	return nil
}

func (r *Record) ID() generic.ID        { return r.entry.ID }
func (r *Record) AccountID() generic.ID { return r.entry.AccountID }

// Entry returns the underlying ledger entry. Callers must not edit it
// directly; use Update.
func (r *Record) Entry() *generic.Entry { return r.entry }

func (r *Record) Derived() *generic.Derived { return r.finalMoney }

func (r *Record) FinalMoney() decimal.Decimal { return r.finalMoney.Get() }

func (r *Record) Money() decimal.Decimal {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry.Amount
}

func (r *Record) Action() generic.ActionType {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entry.Action
}

func (r *Record) Terms() Terms {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Terms{
		Name:         r.name,
		SubjectID:    r.subjectID,
		StartDate:    r.entry.Date,
		Period:       r.period,
		InterestRate: r.rate,
	}
}

// =============================================================================
// UPDATE
// =============================================================================

// Inputs is a partial edit. Nil fields are left unchanged.
type Inputs struct {
	Name         *string
	SubjectID    *generic.ID
	Description  *string
	Action       *generic.ActionType
	Money        *decimal.Decimal
	Period       *int
	InterestRate *decimal.Decimal
}

// ChangesEffect reports whether applying in would change the entry's
// balance effect.
func (in Inputs) ChangesEffect() bool {
	return in.Money != nil || in.Action != nil
}

// Update validates and applies in. finalMoney is recomputed when money, rate
// or period change. On error nothing is modified.
func (r *Record) Update(in Inputs) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	period, rate := r.period, r.rate
	if in.Period != nil {
		period = *in.Period
	}
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	if err := validateTerms(period, rate); err != nil {
		return err
	}
	if in.Money != nil && in.Money.IsNegative() {
		return fmt.Errorf("%w: %s", generic.ErrInvalidAmount, *in.Money)
	}
	if in.Action != nil && !in.Action.Valid() {
		return fmt.Errorf("%w: %d", generic.ErrInvalidActionType, int(*in.Action))
	}

	if in.Name != nil {
		r.name = *in.Name
	}
	if in.SubjectID != nil {
		r.subjectID = *in.SubjectID
	}
	if in.Description != nil {
		r.entry.Description = *in.Description
	}
	if in.Action != nil {
		r.entry.Action = *in.Action
	}
	if in.Money != nil {
		r.entry.Amount = *in.Money
	}
	r.period, r.rate = period, rate

	if in.Money != nil || in.Period != nil || in.InterestRate != nil {
		r.recomputeLocked()
	}
	return nil
}

func (r *Record) recomputeLocked() {
	r.finalMoney.Recompute(func() decimal.Decimal {
		return FinalMoneyOf(r.entry.Amount, r.rate, r.period)
	})
}

// Record returns the persisted form.
func (r *Record) Record() generic.EntryRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := generic.EntryRecordOf(r.entry)
	rec.Name = r.name
	rec.SubjectID = r.subjectID
	rec.Period = r.period
	rec.InterestRate = r.rate
	return rec
}

func (r *Record) String() string {
	return fmt.Sprintf("BorrowLend(%s,%s,%s,final=%s)", r.ID(), r.Action(), r.Money(), r.FinalMoney())
}

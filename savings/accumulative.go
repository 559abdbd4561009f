package savings

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

// AccumulativeSavings is a savings goal filled by any number of
// transactions.
//
// remainedAmount is persisted. Before every recompute the current value is
// checked against [0, amount] using the amount as it was before the change;
// a value outside that range means the stored state is corrupt and the
// change is refused with ErrInconsistentState.
type AccumulativeSavings struct {
	base
	remained *generic.Derived
}

var _ Product = (*AccumulativeSavings)(nil)

func NewAccumulative(id generic.ID, name, purpose string, amount decimal.Decimal, start time.Time) (*AccumulativeSavings, error) {
	s := &AccumulativeSavings{remained: generic.NewDerived("remainedAmount")}
	if err := s.init(id, generic.KindAccumulativeSavings, name, purpose, amount, start); err != nil {
		return nil, err
	}
	s.recomputeLocked()
	return s, nil
}

// RestoreAccumulative rebuilds a persisted product. A missing remained value
// is recomputed from the amount.
func RestoreAccumulative(id generic.ID, name, purpose string, amount decimal.Decimal, start time.Time, remained decimal.NullDecimal) (*AccumulativeSavings, error) {
	s := &AccumulativeSavings{remained: generic.NewDerived("remainedAmount")}
	if err := s.init(id, generic.KindAccumulativeSavings, name, purpose, amount, start); err != nil {
		return nil, err
	}
	if remained.Valid {
		s.remained.Restore(remained.Decimal)
	} else {
		s.recomputeLocked()
	}
	return s, nil
}

func (s *AccumulativeSavings) Derived() *generic.Derived { return s.remained }

// RemainedAmount is how much is still missing to reach the goal.
func (s *AccumulativeSavings) RemainedAmount() decimal.Decimal { return s.remained.Get() }

// AttachTransaction links a persisted transaction. The persisted remained
// value already accounts for it, so nothing is recomputed.
func (s *AccumulativeSavings) AttachTransaction(e *generic.Entry) error {
	if err := s.checkTransaction(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(e)
	return nil
}

func (s *AccumulativeSavings) Accepts(int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.guardLocked()
}

func (s *AccumulativeSavings) AttachNewTransaction(e *generic.Entry) error {
	if err := s.checkTransaction(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLocked(e.ID) {
		return nil
	}
	if err := s.guardLocked(); err != nil {
		return err
	}
	s.addLocked(e)
	s.recomputeLocked()
	return nil
}

func (s *AccumulativeSavings) DetachTransaction(e *generic.Entry) (bool, error) {
	if err := s.checkTransaction(e); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasLocked(e.ID) {
		return false, nil
	}
	if err := s.guardLocked(); err != nil {
		return false, err
	}
	s.removeLocked(e.ID)
	s.recomputeLocked()
	return true, nil
}

func (s *AccumulativeSavings) Update(in Inputs) error {
	if in.MonthlyDuration != nil || in.InterestRate != nil {
		return fmt.Errorf("%w: accumulative savings has no duration or interest rate", generic.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Amount != nil {
		if err := s.guardLocked(); err != nil {
			return err
		}
	}
	if err := s.applyCommonLocked(in); err != nil {
		return err
	}
	if in.Amount != nil {
		s.recomputeLocked()
	}
	return nil
}

// Recompute forces a recomputation, e.g. after an amount edit on a linked
// transaction.
func (s *AccumulativeSavings) Recompute() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.guardLocked(); err != nil {
		return err
	}
	s.recomputeLocked()
	return nil
}

func (s *AccumulativeSavings) guardLocked() error {
	if s.remained.State() != generic.DerivedComputed {
		return nil
	}
	cur := s.remained.Get()
	if cur.IsNegative() || cur.GreaterThan(s.amount) {
		return fmt.Errorf("%w: %s remainedAmount %s outside [0, %s]", generic.ErrInconsistentState, s.id, cur, s.amount)
	}
	return nil
}

func (s *AccumulativeSavings) recomputeLocked() {
	s.remained.Recompute(func() decimal.Decimal {
		return generic.Clamp(s.amount.Sub(s.sumLocked()), decimal.Zero, s.amount)
	})
}

func (s *AccumulativeSavings) Record() generic.SavingsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked()
	rec.RemainedAmount = decimal.NullDecimal{Decimal: s.remained.Get(), Valid: true}
	return rec
}

func (s *AccumulativeSavings) String() string {
	return fmt.Sprintf("AccumulativeSavings(%s,%s,%s,remained=%s)", s.id, s.Name(), s.Amount(), s.RemainedAmount())
}

package savings

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

// MaxEconomicalTransactions is how many transactions a fixed-term deposit
// accepts: the single deposit that opens it.
const MaxEconomicalTransactions = 1

var monthsPerYear = decimal.NewFromInt(12)

// EconomicalSavings is a fixed-term deposit with simple interest.
//
// interestRate is a yearly fraction (0.12 means 12%). finalBalance is not
// persisted; it is computed at construction and on every change to amount,
// interestRate or monthlyDuration.
type EconomicalSavings struct {
	base
	monthlyDuration int
	interestRate    decimal.Decimal
	finalBalance    *generic.Derived
}

var _ Product = (*EconomicalSavings)(nil)

func NewEconomical(id generic.ID, name, purpose string, amount decimal.Decimal, start time.Time, monthlyDuration int, interestRate decimal.Decimal) (*EconomicalSavings, error) {
	if err := validateTerms(monthlyDuration, interestRate); err != nil {
		return nil, err
	}
	s := &EconomicalSavings{
		monthlyDuration: monthlyDuration,
		interestRate:    interestRate,
		finalBalance:    generic.NewDerived("finalBalance"),
	}
	if err := s.init(id, generic.KindEconomicalSavings, name, purpose, amount, start); err != nil {
		return nil, err
	}
	s.recomputeLocked()
	return s, nil
}

func validateTerms(monthlyDuration int, interestRate decimal.Decimal) error {
	if monthlyDuration < 0 {
		return fmt.Errorf("%w: monthly duration %d", generic.ErrInvalidInput, monthlyDuration)
	}
	if interestRate.IsNegative() {
		return fmt.Errorf("%w: interest rate %s", generic.ErrInvalidInput, interestRate)
	}
	return nil
}

// FinalBalanceOf is the maturity value of amount after months at a yearly
// rate.
func FinalBalanceOf(amount, rate decimal.Decimal, months int) decimal.Decimal {
	interest := amount.Mul(rate).Div(monthsPerYear).Mul(decimal.NewFromInt(int64(months)))
	return amount.Add(interest)
}

func (s *EconomicalSavings) Derived() *generic.Derived { return s.finalBalance }

func (s *EconomicalSavings) FinalBalance() decimal.Decimal { return s.finalBalance.Get() }

func (s *EconomicalSavings) MonthlyDuration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.monthlyDuration
}

func (s *EconomicalSavings) InterestRate() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interestRate
}

func (s *EconomicalSavings) AttachTransaction(e *generic.Entry) error {
	if err := s.checkTransaction(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(e)
	return nil
}

func (s *EconomicalSavings) Accepts(n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acceptsLocked(n)
}

func (s *EconomicalSavings) acceptsLocked(n int) error {
	if len(s.txs)+n > MaxEconomicalTransactions {
		return fmt.Errorf("%w: %s already holds %d", generic.ErrTransactionLimit, s.id, len(s.txs))
	}
	return nil
}

func (s *EconomicalSavings) AttachNewTransaction(e *generic.Entry) error {
	if err := s.checkTransaction(e); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasLocked(e.ID) {
		return nil
	}
	if err := s.acceptsLocked(1); err != nil {
		return err
	}
	s.addLocked(e)
	return nil
}

func (s *EconomicalSavings) DetachTransaction(e *generic.Entry) (bool, error) {
	if err := s.checkTransaction(e); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(e.ID), nil
}

func (s *EconomicalSavings) Update(in Inputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration, rate := s.monthlyDuration, s.interestRate
	if in.MonthlyDuration != nil {
		duration = *in.MonthlyDuration
	}
	if in.InterestRate != nil {
		rate = *in.InterestRate
	}
	if err := validateTerms(duration, rate); err != nil {
		return err
	}
	if err := s.applyCommonLocked(in); err != nil {
		return err
	}
	s.monthlyDuration, s.interestRate = duration, rate

	if in.Amount != nil || in.MonthlyDuration != nil || in.InterestRate != nil {
		s.recomputeLocked()
	}
	return nil
}

func (s *EconomicalSavings) recomputeLocked() {
	s.finalBalance.Recompute(func() decimal.Decimal {
		return FinalBalanceOf(s.amount, s.interestRate, s.monthlyDuration)
	})
}

func (s *EconomicalSavings) Record() generic.SavingsRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.recordLocked()
	rec.MonthlyDuration = s.monthlyDuration
	rec.InterestRate = s.interestRate
	return rec
}

func (s *EconomicalSavings) String() string {
	return fmt.Sprintf("EconomicalSavings(%s,%s,%s,final=%s)", s.id, s.Name(), s.Amount(), s.FinalBalance())
}

package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/savings"
)

// =============================================================================
// SAVINGS PRODUCTS
// =============================================================================

// NewSavings describes a savings product. Kind is KindAccumulativeSavings or
// KindEconomicalSavings; MonthlyDuration and InterestRate (a fraction, 0.12
// for 12%) apply to economical savings only.
type NewSavings struct {
	ID        string
	Kind      generic.Kind
	Name      string
	Purpose   string
	Amount    decimal.Decimal
	StartDate time.Time

	MonthlyDuration int
	InterestRate    decimal.Decimal
}

func buildProduct(id generic.ID, in NewSavings) (savings.Product, error) {
	switch in.Kind {
	case generic.KindAccumulativeSavings:
		if in.MonthlyDuration != 0 || !in.InterestRate.IsZero() {
			return nil, fmt.Errorf("%w: accumulative savings has no duration or interest rate", generic.ErrInvalidInput)
		}
		p, err := savings.NewAccumulative(id, in.Name, in.Purpose, in.Amount, in.StartDate)
		if err != nil {
			return nil, err
		}
		return p, nil
	case generic.KindEconomicalSavings:
		p, err := savings.NewEconomical(id, in.Name, in.Purpose, in.Amount, in.StartDate, in.MonthlyDuration, in.InterestRate)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("%w: savings kind %q", generic.ErrInvalidInput, in.Kind)
}

// CreateSavings allocates an id in the product kind's own sequence and
// computes the derived attribute.
func (b *Book) CreateSavings(ctx context.Context, in NewSavings) (savings.Product, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: savings name is required", generic.ErrInvalidInput)
	}
	if in.StartDate.IsZero() {
		in.StartDate = b.now().UTC()
	}
	// Dry run so that invalid terms never consume an id.
	if _, err := buildProduct("", in); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.allocate(in.Kind, in.ID, func(id generic.ID) bool {
		_, ok := b.products[id]
		return ok
	})
	if err != nil {
		return nil, err
	}
	product, err := buildProduct(id, in)
	if err != nil {
		return nil, err
	}

	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveSavings(ctx, product.Record())
	}); err != nil {
		return nil, err
	}
	b.products[id] = product

	derived := product.Derived()
	payload := map[string]string{
		"name":   in.Name,
		"amount": in.Amount.String(),
	}
	payload[derived.Name()] = derived.Get().String()
	b.record(ctx, generic.AuditEntry{
		Action:   generic.AuditSavingsCreated,
		Kind:     in.Kind,
		TargetID: id,
		Payload:  payload,
	})
	b.logger.Info("savings created", "savings", id, "kind", in.Kind, "amount", in.Amount.String(),
		derived.Name(), derived.Get().String())
	return product, nil
}

// UpdateSavings applies a partial edit and recomputes the product's derived
// attribute when an input to it changed.
func (b *Book) UpdateSavings(ctx context.Context, id generic.ID, in savings.Inputs) (savings.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	product, err := b.productLocked(id)
	if err != nil {
		return nil, err
	}
	before := product.Record()
	derived := product.Derived()
	previous := derived.Get()

	if err := product.Update(in); err != nil {
		return nil, err
	}
	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveSavings(ctx, product.Record())
	}); err != nil {
		if undoErr := product.Update(savingsInputsOf(before)); undoErr != nil {
			b.logger.Error("undo savings update failed", "savings", id, "error", undoErr)
		}
		return nil, err
	}

	payload := map[string]string{
		"previous": previous.String(),
		"amount":   product.Amount().String(),
	}
	payload[derived.Name()] = derived.Get().String()
	b.record(ctx, generic.AuditEntry{
		Action:   generic.AuditDerivedUpdated,
		Kind:     product.Kind(),
		TargetID: id,
		Payload:  payload,
	})
	b.logger.Info("savings updated", "savings", id, derived.Name(), derived.Get().String(), "previous", previous.String())
	return product, nil
}

// savingsInputsOf builds the edit that restores rec.
func savingsInputsOf(rec generic.SavingsRecord) savings.Inputs {
	in := savings.Inputs{
		Name:    &rec.Name,
		Purpose: &rec.Purpose,
		Amount:  &rec.Amount,
	}
	if rec.Kind == generic.KindEconomicalSavings {
		in.MonthlyDuration = &rec.MonthlyDuration
		in.InterestRate = &rec.InterestRate
	}
	return in
}

// =============================================================================
// CATEGORIES AND SUBJECTS
// =============================================================================

func (b *Book) createNamed(ctx context.Context, kind generic.Kind, name string, taken func(generic.ID) bool) (generic.ID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", generic.ErrInvalidInput, kind)
	}
	id, err := b.allocate(kind, "", taken)
	if err != nil {
		return "", err
	}
	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveNamed(ctx, generic.NamedRecord{Kind: kind, ID: id, Name: name})
	}); err != nil {
		return "", err
	}
	b.record(ctx, generic.AuditEntry{
		Action:   generic.AuditRecordCreated,
		Kind:     kind,
		TargetID: id,
		Payload:  map[string]string{"name": name},
	})
	b.logger.Info("record created", "kind", kind, "id", id, "name", name)
	return id, nil
}

func (b *Book) CreateCategory(ctx context.Context, name string) (generic.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.createNamed(ctx, generic.KindCategory, name, func(id generic.ID) bool {
		_, ok := b.categories[id]
		return ok
	})
	if err != nil {
		return generic.Category{}, err
	}
	c := generic.Category{ID: id, Name: strings.TrimSpace(name)}
	b.categories[id] = c
	return c, nil
}

func (b *Book) CreateSubject(ctx context.Context, name string) (borrowlend.Subject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.createNamed(ctx, generic.KindSubject, name, func(id generic.ID) bool {
		_, ok := b.subjects[id]
		return ok
	})
	if err != nil {
		return borrowlend.Subject{}, err
	}
	s := borrowlend.Subject{ID: id, Name: strings.TrimSpace(name)}
	b.subjects[id] = s
	return s, nil
}

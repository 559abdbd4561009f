package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/savings"
)

// =============================================================================
// NEW ENTRY
// =============================================================================

// NewEntry describes a ledger entry to create. ID is optional. The
// borrow/lend block applies to EntryBorrowLend only.
type NewEntry struct {
	ID          string
	Kind        generic.EntryKind
	AccountID   generic.ID
	Amount      decimal.Decimal
	Action      generic.ActionType
	SavingsID   generic.ID
	CategoryID  generic.ID
	Date        time.Time
	Description string

	Name         string
	SubjectID    generic.ID
	Period       int
	InterestRate decimal.Decimal
}

// pendingEntry is a validated entry and everything it links to, before it
// has an id.
type pendingEntry struct {
	entry   *generic.Entry
	account *generic.Account
	product savings.Product
	record  *borrowlend.Record
}

func (p *pendingEntry) persisted() generic.EntryRecord {
	if p.record != nil {
		return p.record.Record()
	}
	return generic.EntryRecordOf(p.entry)
}

// prepareLocked validates in against the current book without allocating an
// id or touching any balance. queued counts savings transactions already
// prepared for each product in the same batch.
func (b *Book) prepareLocked(in NewEntry, queued map[generic.ID]int) (*pendingEntry, error) {
	acct, err := b.accountLocked(in.AccountID)
	if err != nil {
		return nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = b.now().UTC()
	}
	e := &generic.Entry{
		Kind:        in.Kind,
		AccountID:   in.AccountID,
		Amount:      in.Amount,
		Action:      in.Action,
		SavingsID:   in.SavingsID,
		CategoryID:  in.CategoryID,
		Date:        date,
		Description: in.Description,
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	p := &pendingEntry{entry: e, account: acct}
	switch in.Kind {
	case generic.EntryExpense, generic.EntryIncome:
		if in.CategoryID != "" {
			if _, ok := b.categories[in.CategoryID]; !ok {
				return nil, &generic.NotFoundError{Kind: generic.KindCategory, ID: in.CategoryID}
			}
		}
	case generic.EntrySavingsTransaction:
		product, err := b.productLocked(in.SavingsID)
		if err != nil {
			return nil, err
		}
		if err := product.Accepts(queued[in.SavingsID] + 1); err != nil {
			return nil, err
		}
		p.product = product
	case generic.EntryBorrowLend:
		if in.SubjectID != "" {
			if _, ok := b.subjects[in.SubjectID]; !ok {
				return nil, &generic.NotFoundError{Kind: generic.KindSubject, ID: in.SubjectID}
			}
		}
		record, err := borrowlend.NewRecord(e, borrowlend.Terms{
			Name:         in.Name,
			SubjectID:    in.SubjectID,
			Period:       in.Period,
			InterestRate: in.InterestRate,
		})
		if err != nil {
			return nil, err
		}
		p.record = record
	}
	return p, nil
}

func (b *Book) entryTaken(id generic.ID) bool {
	_, ok := b.entries[id]
	return ok
}

// =============================================================================
// CREATE
// =============================================================================

// CreateEntry validates in, allocates its id, links it to its savings
// product or borrow/lend record, applies its balance effect once and
// persists the result atomically.
func (b *Book) CreateEntry(ctx context.Context, in NewEntry) (generic.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, err := b.prepareLocked(in, nil)
	if err != nil {
		return "", err
	}
	id, err := b.allocate(in.Kind.IDKind(), in.ID, b.entryTaken)
	if err != nil {
		return "", err
	}
	p.entry.ID = id

	if p.product != nil {
		if err := p.product.AttachNewTransaction(p.entry); err != nil {
			return "", err
		}
	}
	if _, err := p.account.AttachNew(p.entry); err != nil {
		b.unlinkProduct(p)
		return "", err
	}

	if err := b.persistEntries(ctx, []*pendingEntry{p}); err != nil {
		b.undoCreate(p)
		return "", err
	}
	b.commitEntry(ctx, p)
	return id, nil
}

// ImportEntries creates several entries at once. Every entry is validated
// and linked first, then each touched account is reconciled in a single
// sweep. If anything fails, none of the entries is kept.
func (b *Book) ImportEntries(ctx context.Context, ins []NewEntry) ([]generic.ID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pending := make([]*pendingEntry, 0, len(ins))
	queued := make(map[generic.ID]int)
	for i, in := range ins {
		p, err := b.prepareLocked(in, queued)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if p.product != nil {
			queued[p.product.ID()]++
		}
		pending = append(pending, p)
	}

	// Supplied ids are all checked before any counter moves. They are then
	// adopted ahead of the generated ones, so a generated id can never
	// collide with one supplied later in the batch.
	supplied := make(map[generic.ID]bool)
	for i, in := range ins {
		err := b.checkSupplied(in.Kind.IDKind(), in.ID, func(id generic.ID) bool {
			return b.entryTaken(id) || supplied[id]
		})
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if in.ID != "" {
			supplied[generic.ID(in.ID)] = true
		}
	}
	ids := make([]generic.ID, len(ins))
	for _, generated := range []bool{false, true} {
		for i, p := range pending {
			if (ins[i].ID == "") != generated {
				continue
			}
			id, err := b.registry.Allocate(ins[i].Kind.IDKind(), ins[i].ID)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			p.entry.ID = id
			ids[i] = id
		}
	}

	var linked []*pendingEntry
	rollback := func() {
		for _, p := range linked {
			b.undoCreate(p)
		}
	}
	for i, p := range pending {
		if p.product != nil {
			if err := p.product.AttachNewTransaction(p.entry); err != nil {
				rollback()
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
		}
		if err := p.account.AttachNewBatch(p.entry); err != nil {
			b.unlinkProduct(p)
			rollback()
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		linked = append(linked, p)
	}

	for _, acct := range touchedAccounts(pending) {
		acct.ReconcileAll()
	}

	if err := b.persistEntries(ctx, pending); err != nil {
		rollback()
		return nil, err
	}
	for _, p := range pending {
		b.commitEntry(ctx, p)
	}
	return ids, nil
}

func touchedAccounts(ps []*pendingEntry) []*generic.Account {
	seen := make(map[generic.ID]bool)
	var out []*generic.Account
	for _, p := range ps {
		if !seen[p.account.ID()] {
			seen[p.account.ID()] = true
			out = append(out, p.account)
		}
	}
	return out
}

func touchedProducts(ps []*pendingEntry) []savings.Product {
	seen := make(map[generic.ID]bool)
	var out []savings.Product
	for _, p := range ps {
		if p.product != nil && !seen[p.product.ID()] {
			seen[p.product.ID()] = true
			out = append(out, p.product)
		}
	}
	return out
}

func (b *Book) persistEntries(ctx context.Context, ps []*pendingEntry) error {
	return b.persist(ctx, func(s generic.Store) error {
		for _, p := range ps {
			if err := s.SaveEntry(ctx, p.persisted()); err != nil {
				return err
			}
		}
		for _, acct := range touchedAccounts(ps) {
			if err := s.SaveAccount(ctx, acct.Record()); err != nil {
				return err
			}
		}
		for _, product := range touchedProducts(ps) {
			if err := s.SaveSavings(ctx, product.Record()); err != nil {
				return err
			}
		}
		return nil
	})
}

// undoCreate reverses the in-memory linking of an entry that failed to
// persist.
func (b *Book) undoCreate(p *pendingEntry) {
	if _, err := p.account.Detach(p.entry); err != nil {
		b.logger.Error("undo entry link failed", "entry", p.entry.ID, "error", err)
	}
	b.unlinkProduct(p)
}

func (b *Book) unlinkProduct(p *pendingEntry) {
	if p.product == nil {
		return
	}
	if _, err := p.product.DetachTransaction(p.entry); err != nil {
		b.logger.Error("undo savings link failed", "entry", p.entry.ID, "savings", p.product.ID(), "error", err)
	}
}

func (b *Book) commitEntry(ctx context.Context, p *pendingEntry) {
	e := p.entry
	b.entries[e.ID] = e
	if p.record != nil {
		b.records[e.ID] = p.record
	}

	payload := map[string]string{
		"kind":    string(e.Kind),
		"amount":  e.Amount.String(),
		"effect":  e.Effect().String(),
		"balance": p.account.Balance().String(),
	}
	if p.product != nil {
		payload["savings"] = string(p.product.ID())
	}
	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditEntryCreated,
		Kind:      e.Kind.IDKind(),
		TargetID:  e.ID,
		AccountID: e.AccountID,
		Payload:   payload,
	})
	b.logger.Info("entry created",
		"entry", e.ID,
		"kind", e.Kind,
		"account", e.AccountID,
		"amount", e.Amount.String(),
		"balance", p.account.Balance().String(),
	)
	b.warnIfOverdrawn(p.account)
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteEntry unlinks an entry from its product and account. The effect the
// account applied for it is reversed.
func (b *Book) DeleteEntry(ctx context.Context, id generic.ID) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, err := b.entryLocked(id)
	if err != nil {
		return err
	}
	acct, err := b.accountLocked(e.AccountID)
	if err != nil {
		return err
	}
	p := &pendingEntry{entry: e, account: acct, record: b.records[id]}
	if e.Kind == generic.EntrySavingsTransaction {
		if product, ok := b.products[e.SavingsID]; ok {
			p.product = product
		}
	}

	if p.product != nil {
		if _, err := p.product.DetachTransaction(e); err != nil {
			return err
		}
	}
	if _, err := acct.Detach(e); err != nil {
		b.relinkProduct(p)
		return err
	}

	err = b.persist(ctx, func(s generic.Store) error {
		if err := s.DeleteEntry(ctx, id); err != nil {
			return err
		}
		if err := s.SaveAccount(ctx, acct.Record()); err != nil {
			return err
		}
		if p.product != nil {
			return s.SaveSavings(ctx, p.product.Record())
		}
		return nil
	})
	if err != nil {
		if _, attachErr := acct.AttachNew(e); attachErr != nil {
			b.logger.Error("undo entry unlink failed", "entry", id, "error", attachErr)
		}
		b.relinkProduct(p)
		return err
	}

	delete(b.entries, id)
	delete(b.records, id)

	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditEntryDeleted,
		Kind:      e.Kind.IDKind(),
		TargetID:  id,
		AccountID: e.AccountID,
		Payload: map[string]string{
			"kind":    string(e.Kind),
			"amount":  e.Amount.String(),
			"balance": acct.Balance().String(),
		},
	})
	b.logger.Info("entry deleted", "entry", id, "kind", e.Kind, "account", e.AccountID, "balance", acct.Balance().String())
	b.warnIfOverdrawn(acct)
	return nil
}

func (b *Book) relinkProduct(p *pendingEntry) {
	if p.product == nil {
		return
	}
	if err := p.product.AttachNewTransaction(p.entry); err != nil {
		b.logger.Error("undo savings unlink failed", "entry", p.entry.ID, "savings", p.product.ID(), "error", err)
	}
}

// =============================================================================
// BORROW / LEND UPDATE
// =============================================================================

// UpdateBorrowLend applies a partial edit to a borrow/lend record. When the
// money or action changes, the old effect is reversed and the new one
// applied.
func (b *Book) UpdateBorrowLend(ctx context.Context, id generic.ID, in borrowlend.Inputs) (*borrowlend.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r, err := b.recordLocked(id)
	if err != nil {
		return nil, err
	}
	if in.SubjectID != nil && *in.SubjectID != "" {
		if _, ok := b.subjects[*in.SubjectID]; !ok {
			return nil, &generic.NotFoundError{Kind: generic.KindSubject, ID: *in.SubjectID}
		}
	}
	acct, err := b.accountLocked(r.AccountID())
	if err != nil {
		return nil, err
	}

	before := r.Record()
	previous := r.FinalMoney()
	if err := b.applyBorrowLend(acct, r, in); err != nil {
		return nil, err
	}

	if err := b.persist(ctx, func(s generic.Store) error {
		if err := s.SaveEntry(ctx, r.Record()); err != nil {
			return err
		}
		return s.SaveAccount(ctx, acct.Record())
	}); err != nil {
		if undoErr := b.applyBorrowLend(acct, r, inputsOf(before)); undoErr != nil {
			b.logger.Error("undo borrow/lend update failed", "record", id, "error", undoErr)
		}
		return nil, err
	}

	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditDerivedUpdated,
		Kind:      generic.KindBorrowLend,
		TargetID:  id,
		AccountID: acct.ID(),
		Payload: map[string]string{
			"finalMoney": r.FinalMoney().String(),
			"previous":   previous.String(),
			"money":      r.Money().String(),
			"balance":    acct.Balance().String(),
		},
	})
	b.logger.Info("borrow/lend updated", "record", id, "finalMoney", r.FinalMoney().String(), "balance", acct.Balance().String())
	b.warnIfOverdrawn(acct)
	return r, nil
}

// applyBorrowLend updates r, re-applying its entry's effect on acct when in
// changes it. On error r and acct are unchanged.
func (b *Book) applyBorrowLend(acct *generic.Account, r *borrowlend.Record, in borrowlend.Inputs) error {
	if !in.ChangesEffect() {
		return r.Update(in)
	}
	if _, err := acct.Detach(r.Entry()); err != nil {
		return err
	}
	updateErr := r.Update(in)
	if _, err := acct.AttachNew(r.Entry()); err != nil {
		return err
	}
	return updateErr
}

// inputsOf builds the edit that restores rec.
func inputsOf(rec generic.EntryRecord) borrowlend.Inputs {
	return borrowlend.Inputs{
		Name:         &rec.Name,
		SubjectID:    &rec.SubjectID,
		Description:  &rec.Description,
		Action:       &rec.Action,
		Money:        &rec.Amount,
		Period:       &rec.Period,
		InterestRate: &rec.InterestRate,
	}
}

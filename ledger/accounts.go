package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/generic"
)

// NewAccount describes an account to create. ID is optional; when set it
// must parse as an account id and its suffix ratchets the counter.
type NewAccount struct {
	ID      string
	Name    string
	Type    generic.AccountType
	Balance decimal.Decimal
}

func (in NewAccount) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: account name is required", generic.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: account type %q", generic.ErrInvalidInput, in.Type)
	}
	if in.Balance.IsNegative() {
		return &generic.InvalidBalanceError{AccountID: generic.ID(in.ID), Value: in.Balance}
	}
	return nil
}

// CreateAccount allocates an account id and persists the opening balance.
func (b *Book) CreateAccount(ctx context.Context, in NewAccount) (*generic.Account, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id, err := b.allocate(generic.KindAccount, in.ID, func(id generic.ID) bool {
		_, ok := b.accounts[id]
		return ok
	})
	if err != nil {
		return nil, err
	}
	acct, err := generic.NewAccount(id, in.Name, in.Type, in.Balance)
	if err != nil {
		return nil, err
	}

	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveAccount(ctx, acct.Record())
	}); err != nil {
		return nil, err
	}
	b.accounts[id] = acct

	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditAccountCreated,
		Kind:      generic.KindAccount,
		TargetID:  id,
		AccountID: id,
		Payload: map[string]string{
			"name":    in.Name,
			"type":    string(in.Type),
			"balance": in.Balance.String(),
		},
	})
	b.logger.Info("account created", "account", id, "type", in.Type, "balance", in.Balance.String())
	return acct, nil
}

// SetBalance overrides an account balance. Negative values are rejected.
func (b *Book) SetBalance(ctx context.Context, accountID generic.ID, value decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.accountLocked(accountID)
	if err != nil {
		return err
	}
	if value.IsNegative() {
		return &generic.InvalidBalanceError{AccountID: accountID, Value: value}
	}

	rec := acct.Record()
	previous := rec.Balance
	rec.Balance = value
	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveAccount(ctx, rec)
	}); err != nil {
		return err
	}
	if err := acct.SetBalance(value); err != nil {
		return err
	}

	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditBalanceSet,
		Kind:      generic.KindAccount,
		TargetID:  accountID,
		AccountID: accountID,
		Payload: map[string]string{
			"previous": previous.String(),
			"balance":  value.String(),
		},
	})
	b.logger.Info("balance set", "account", accountID, "previous", previous.String(), "balance", value.String())
	return nil
}

// Reconcile applies any linked entries of the account that are not yet
// applied and returns how many were. A second call returns 0. If the new
// balance cannot be stored, nothing is applied.
func (b *Book) Reconcile(ctx context.Context, accountID generic.ID) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	acct, err := b.accountLocked(accountID)
	if err != nil {
		return 0, err
	}
	reconciled, pending := acct.ReconciledRecord()
	if pending == 0 {
		return 0, nil
	}

	// Persist the outcome first; the account only moves once it is stored.
	if err := b.persist(ctx, func(s generic.Store) error {
		return s.SaveAccount(ctx, reconciled)
	}); err != nil {
		return 0, err
	}
	previous := acct.Balance()
	applied := acct.ReconcileAll()

	b.record(ctx, generic.AuditEntry{
		Action:    generic.AuditReconciliation,
		Kind:      generic.KindAccount,
		TargetID:  accountID,
		AccountID: accountID,
		Payload: map[string]string{
			"applied":  fmt.Sprint(applied),
			"previous": previous.String(),
			"balance":  acct.Balance().String(),
		},
	})
	b.logger.Info("account reconciled", "account", accountID, "applied", applied, "balance", acct.Balance().String())
	b.warnIfOverdrawn(acct)
	return applied, nil
}

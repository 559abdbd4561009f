/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY:
  Amounts are decimal.Decimal. They are written as JSON strings ("120.50")
  and accepted as either strings or numbers.

DATES:
  Dates are written as YYYY-MM-DD. Requests accept YYYY-MM-DD or RFC 3339.

VALIDATION:
  Validation is done by the ledger, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/savings"
)

const dateLayout = "2006-01-02"

// =============================================================================
// ACCOUNTS
// =============================================================================

type AccountDTO struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Overdrawn bool            `json:"overdrawn"`
	Pending   int             `json:"pending"`
	Entries   map[string]int  `json:"entries"`
}

// CreateAccountRequest is the request to create an account. ID is
// optional.
type CreateAccountRequest struct {
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name"`
	Type    string          `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

type SetBalanceRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type ReconcileResponse struct {
	AccountID string          `json:"account_id"`
	Applied   int             `json:"applied"`
	Balance   decimal.Decimal `json:"balance"`
}

func toAccountDTO(a *generic.Account) AccountDTO {
	counts := make(map[string]int, len(generic.EntryKinds))
	for _, k := range generic.EntryKinds {
		counts[string(k)] = a.Count(k)
	}
	rec := a.Record()
	return AccountDTO{
		ID:        string(rec.ID),
		Name:      rec.Name,
		Type:      string(rec.Type),
		Balance:   rec.Balance,
		Overdrawn: rec.Balance.IsNegative(),
		Pending:   a.Pending(),
		Entries:   counts,
	}
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID          string          `json:"id"`
	Kind        string          `json:"kind"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Effect      decimal.Decimal `json:"effect"`
	Action      int             `json:"action,omitempty"`
	ActionName  string          `json:"action_name,omitempty"`
	SavingsID   string          `json:"savings_id,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Date        string          `json:"date"`
	Description string          `json:"description,omitempty"`
}

// CreateEntryRequest creates any entry kind. The account comes from the
// URL. Name, SubjectID, Period and InterestRate (a percentage) apply to
// borrow_lend entries.
type CreateEntryRequest struct {
	ID          string          `json:"id,omitempty"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Action      int             `json:"action,omitempty"`
	SavingsID   string          `json:"savings_id,omitempty"`
	CategoryID  string          `json:"category_id,omitempty"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description,omitempty"`

	Name         string          `json:"name,omitempty"`
	SubjectID    string          `json:"subject_id,omitempty"`
	Period       int             `json:"period,omitempty"`
	InterestRate decimal.Decimal `json:"interest_rate"`
}

type ImportEntriesRequest struct {
	Entries []CreateEntryRequest `json:"entries"`
}

func toEntryDTO(e *generic.Entry) EntryDTO {
	dto := EntryDTO{
		ID:          string(e.ID),
		Kind:        string(e.Kind),
		AccountID:   string(e.AccountID),
		Amount:      e.Amount,
		Effect:      e.Effect(),
		SavingsID:   string(e.SavingsID),
		CategoryID:  string(e.CategoryID),
		Date:        formatDate(e.Date),
		Description: e.Description,
	}
	if e.Kind == generic.EntryBorrowLend {
		dto.Action = int(e.Action)
		dto.ActionName = e.Action.String()
	}
	return dto
}

func toEntryDTOs(es []*generic.Entry) []EntryDTO {
	out := make([]EntryDTO, 0, len(es))
	for _, e := range es {
		out = append(out, toEntryDTO(e))
	}
	return out
}

// =============================================================================
// DERIVED ATTRIBUTES
// =============================================================================

// DerivedDTO shows a derived value with the value it replaced. Previous is
// absent until the value has been recomputed at least once.
type DerivedDTO struct {
	Name     string           `json:"name"`
	Value    decimal.Decimal  `json:"value"`
	Previous *decimal.Decimal `json:"previous,omitempty"`
	State    string           `json:"state"`
}

func toDerivedDTO(d *generic.Derived) DerivedDTO {
	dto := DerivedDTO{Name: d.Name(), Value: d.Get(), State: d.State().String()}
	if prev, err := d.Cached(); err == nil {
		dto.Previous = &prev
	}
	return dto
}

// =============================================================================
// SAVINGS
// =============================================================================

type SavingsDTO struct {
	ID              string           `json:"id"`
	Kind            string           `json:"kind"`
	Name            string           `json:"name"`
	Purpose         string           `json:"purpose,omitempty"`
	Amount          decimal.Decimal  `json:"amount"`
	StartDate       string           `json:"start_date"`
	MonthlyDuration int              `json:"monthly_duration,omitempty"`
	InterestRate    *decimal.Decimal `json:"interest_rate,omitempty"`
	Derived         DerivedDTO       `json:"derived"`
	Transactions    []string         `json:"transactions"`
}

// CreateSavingsRequest creates a savings product. InterestRate is a
// fraction (0.12 for 12%) and applies to economical savings.
type CreateSavingsRequest struct {
	ID              string          `json:"id,omitempty"`
	Kind            string          `json:"kind"`
	Name            string          `json:"name"`
	Purpose         string          `json:"purpose,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	StartDate       string          `json:"start_date,omitempty"`
	MonthlyDuration int             `json:"monthly_duration,omitempty"`
	InterestRate    decimal.Decimal `json:"interest_rate"`
}

// UpdateSavingsRequest is a partial edit; absent fields are unchanged.
type UpdateSavingsRequest struct {
	Name            *string          `json:"name,omitempty"`
	Purpose         *string          `json:"purpose,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	MonthlyDuration *int             `json:"monthly_duration,omitempty"`
	InterestRate    *decimal.Decimal `json:"interest_rate,omitempty"`
}

func (r UpdateSavingsRequest) inputs() savings.Inputs {
	return savings.Inputs{
		Name:            r.Name,
		Purpose:         r.Purpose,
		Amount:          r.Amount,
		MonthlyDuration: r.MonthlyDuration,
		InterestRate:    r.InterestRate,
	}
}

func toSavingsDTO(p savings.Product) SavingsDTO {
	rec := p.Record()
	dto := SavingsDTO{
		ID:           string(rec.ID),
		Kind:         string(rec.Kind),
		Name:         rec.Name,
		Purpose:      rec.Purpose,
		Amount:       rec.Amount,
		StartDate:    formatDate(rec.StartDate),
		Derived:      toDerivedDTO(p.Derived()),
		Transactions: []string{},
	}
	if rec.Kind == generic.KindEconomicalSavings {
		rate := rec.InterestRate
		dto.MonthlyDuration = rec.MonthlyDuration
		dto.InterestRate = &rate
	}
	for _, e := range p.Transactions() {
		dto.Transactions = append(dto.Transactions, string(e.ID))
	}
	return dto
}

// =============================================================================
// BORROW / LEND
// =============================================================================

type BorrowLendDTO struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Name         string          `json:"name,omitempty"`
	SubjectID    string          `json:"subject_id,omitempty"`
	Action       int             `json:"action"`
	ActionName   string          `json:"action_name"`
	Money        decimal.Decimal `json:"money"`
	Period       int             `json:"period"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	StartDate    string          `json:"start_date"`
	Description  string          `json:"description,omitempty"`
	FinalMoney   DerivedDTO      `json:"final_money"`
}

// UpdateBorrowLendRequest is a partial edit; absent fields are unchanged.
type UpdateBorrowLendRequest struct {
	Name         *string          `json:"name,omitempty"`
	SubjectID    *string          `json:"subject_id,omitempty"`
	Description  *string          `json:"description,omitempty"`
	Action       *int             `json:"action,omitempty"`
	Money        *decimal.Decimal `json:"money,omitempty"`
	Period       *int             `json:"period,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
}

func (r UpdateBorrowLendRequest) inputs() borrowlend.Inputs {
	in := borrowlend.Inputs{
		Name:         r.Name,
		Description:  r.Description,
		Money:        r.Money,
		Period:       r.Period,
		InterestRate: r.InterestRate,
	}
	if r.SubjectID != nil {
		id := generic.ID(*r.SubjectID)
		in.SubjectID = &id
	}
	if r.Action != nil {
		action := generic.ActionType(*r.Action)
		in.Action = &action
	}
	return in
}

func toBorrowLendDTO(r *borrowlend.Record) BorrowLendDTO {
	rec := r.Record()
	return BorrowLendDTO{
		ID:           string(rec.ID),
		AccountID:    string(rec.AccountID),
		Name:         rec.Name,
		SubjectID:    string(rec.SubjectID),
		Action:       int(rec.Action),
		ActionName:   rec.Action.String(),
		Money:        rec.Amount,
		Period:       rec.Period,
		InterestRate: rec.InterestRate,
		StartDate:    formatDate(rec.Date),
		Description:  rec.Description,
		FinalMoney:   toDerivedDTO(r.Derived()),
	}
}

// ActionTypeDTO describes one borrow/lend action.
type ActionTypeDTO struct {
	Value int    `json:"value"`
	Name  string `json:"name"`
	Sign  int    `json:"sign"`
}

// =============================================================================
// NAMED RECORDS
// =============================================================================

// NamedDTO is a category or a borrow/lend subject.
type NamedDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateNamedRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// AUDIT
// =============================================================================

type AuditEntryDTO struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Action    string            `json:"action"`
	Kind      string            `json:"kind"`
	TargetID  string            `json:"target_id"`
	AccountID string            `json:"account_id,omitempty"`
	Payload   map[string]string `json:"payload,omitempty"`
}

func toAuditEntryDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:        e.ID,
		Timestamp: e.Timestamp.Format(time.RFC3339),
		Action:    string(e.Action),
		Kind:      string(e.Kind),
		TargetID:  string(e.TargetID),
		AccountID: string(e.AccountID),
		Payload:   e.Payload,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

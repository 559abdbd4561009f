/*
handlers.go - HTTP API handlers for the ledger

PURPOSE:
  Exposes the ledger Book via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every mutation to ledger.Book.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                    List accounts
    POST   /api/accounts                    Create account
    GET    /api/accounts/{id}               Get account
    PUT    /api/accounts/{id}/balance       Override balance
    POST   /api/accounts/{id}/reconcile     Apply entries not yet applied
    GET    /api/accounts/{id}/entries       List entries (?kind=expense)
    POST   /api/accounts/{id}/entries       Create entry
    POST   /api/accounts/{id}/entries/batch Create several entries at once

  Entries:
    GET    /api/entries/{id}                Get entry
    DELETE /api/entries/{id}                Delete entry (reverses its effect)

  Savings:
    GET    /api/savings                     List products
    POST   /api/savings                     Create product
    GET    /api/savings/{id}                Get product
    PUT    /api/savings/{id}                Partial edit

  Borrow/lend:
    GET    /api/borrow-lend/{id}            Get record
    PUT    /api/borrow-lend/{id}            Partial edit
    GET    /api/action-types                The four borrow/lend actions

  Categories and subjects:
    GET/POST /api/categories
    GET/POST /api/subjects

  Audit:
    GET    /api/audit                       ?account=&target=&kind=&action=&limit=

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid identifier, balance, amount, action, period or input
  - 404: Resource not found
  - 409: Transaction limit reached, derived history unavailable
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The ledger is a single-user bookkeeping service.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/warp/finance-ledger/borrowlend"
	"github.com/warp/finance-ledger/generic"
	"github.com/warp/finance-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book   *ledger.Book
	Logger *slog.Logger
}

// NewHandler creates a new handler over book.
func NewHandler(book *ledger.Book, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Book: book, Logger: logger}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts := h.Book.Accounts()
	dtos := make([]AccountDTO, 0, len(accounts))
	for _, a := range accounts {
		dtos = append(dtos, toAccountDTO(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": dtos})
}

// CreateAccount creates a new account.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decode(w, r, &req) {
		return
	}

	acct, err := h.Book.CreateAccount(r.Context(), ledger.NewAccount{
		ID:      req.ID,
		Name:    req.Name,
		Type:    generic.AccountType(req.Type),
		Balance: req.Balance,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to create account", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Book.Account(urlID(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// SetBalance overrides an account's balance.
// PUT /api/accounts/{id}/balance
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	var req SetBalanceRequest
	if !decode(w, r, &req) {
		return
	}
	id := urlID(r)
	if err := h.Book.SetBalance(r.Context(), id, req.Balance); err != nil {
		h.writeDomainError(w, r, "Failed to set balance", err)
		return
	}
	acct, err := h.Book.Account(id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// Reconcile applies entries that are linked but not yet applied.
// POST /api/accounts/{id}/reconcile
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	applied, err := h.Book.Reconcile(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to reconcile account", err)
		return
	}
	acct, err := h.Book.Account(id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get account", err)
		return
	}
	writeJSON(w, http.StatusOK, ReconcileResponse{AccountID: string(id), Applied: applied, Balance: acct.Balance()})
}

// =============================================================================
// ENTRY HANDLERS
// =============================================================================

// ListEntries returns an account's entries, optionally of one kind.
// GET /api/accounts/{id}/entries?kind=expense
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	kind := generic.EntryKind(r.URL.Query().Get("kind"))
	entries, err := h.Book.Entries(urlID(r), kind)
	if err != nil {
		h.writeDomainError(w, r, "Failed to list entries", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": toEntryDTOs(entries)})
}

// CreateEntry records an expense, income, savings transaction or
// borrow/lend action against the account in the URL.
// POST /api/accounts/{id}/entries
func (h *Handler) CreateEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if !decode(w, r, &req) {
		return
	}
	in, err := newEntryFrom(urlID(r), req)
	if err != nil {
		h.writeDomainError(w, r, "Invalid entry", err)
		return
	}

	id, err := h.Book.CreateEntry(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create entry", err)
		return
	}
	e, err := h.Book.Entry(id)
	if err != nil {
		h.writeDomainError(w, r, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(e))
}

// ImportEntries records several entries for the account in the URL. Either
// all of them are kept or none is.
// POST /api/accounts/{id}/entries/batch
func (h *Handler) ImportEntries(w http.ResponseWriter, r *http.Request) {
	var req ImportEntriesRequest
	if !decode(w, r, &req) {
		return
	}
	accountID := urlID(r)
	ins := make([]ledger.NewEntry, 0, len(req.Entries))
	for i, e := range req.Entries {
		in, err := newEntryFrom(accountID, e)
		if err != nil {
			h.writeDomainError(w, r, fmt.Sprintf("Invalid entry %d", i), err)
			return
		}
		ins = append(ins, in)
	}

	ids, err := h.Book.ImportEntries(r.Context(), ins)
	if err != nil {
		h.writeDomainError(w, r, "Failed to import entries", err)
		return
	}
	dtos := make([]EntryDTO, 0, len(ids))
	for _, id := range ids {
		if e, err := h.Book.Entry(id); err == nil {
			dtos = append(dtos, toEntryDTO(e))
		}
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entries": dtos})
}

func newEntryFrom(accountID generic.ID, req CreateEntryRequest) (ledger.NewEntry, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return ledger.NewEntry{}, err
	}
	return ledger.NewEntry{
		ID:           req.ID,
		Kind:         generic.EntryKind(req.Kind),
		AccountID:    accountID,
		Amount:       req.Amount,
		Action:       generic.ActionType(req.Action),
		SavingsID:    generic.ID(req.SavingsID),
		CategoryID:   generic.ID(req.CategoryID),
		Date:         date,
		Description:  req.Description,
		Name:         req.Name,
		SubjectID:    generic.ID(req.SubjectID),
		Period:       req.Period,
		InterestRate: req.InterestRate,
	}, nil
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Book.Entry(urlID(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get entry", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(e))
}

// DeleteEntry removes an entry and reverses its balance effect.
// DELETE /api/entries/{id}
func (h *Handler) DeleteEntry(w http.ResponseWriter, r *http.Request) {
	id := urlID(r)
	if err := h.Book.DeleteEntry(r.Context(), id); err != nil {
		h.writeDomainError(w, r, "Failed to delete entry", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted", "id": id})
}

// =============================================================================
// SAVINGS HANDLERS
// =============================================================================

func (h *Handler) ListSavings(w http.ResponseWriter, r *http.Request) {
	products := h.Book.SavingsProducts()
	dtos := make([]SavingsDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toSavingsDTO(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"savings": dtos})
}

// CreateSavings creates an accumulative or economical savings product.
// POST /api/savings
func (h *Handler) CreateSavings(w http.ResponseWriter, r *http.Request) {
	var req CreateSavingsRequest
	if !decode(w, r, &req) {
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		h.writeDomainError(w, r, "Invalid start_date", err)
		return
	}

	p, err := h.Book.CreateSavings(r.Context(), ledger.NewSavings{
		ID:              req.ID,
		Kind:            generic.Kind(req.Kind),
		Name:            req.Name,
		Purpose:         req.Purpose,
		Amount:          req.Amount,
		StartDate:       start,
		MonthlyDuration: req.MonthlyDuration,
		InterestRate:    req.InterestRate,
	})
	if err != nil {
		h.writeDomainError(w, r, "Failed to create savings", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSavingsDTO(p))
}

func (h *Handler) GetSavings(w http.ResponseWriter, r *http.Request) {
	p, err := h.Book.Savings(urlID(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get savings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSavingsDTO(p))
}

// UpdateSavings applies a partial edit and returns the recomputed product.
// PUT /api/savings/{id}
func (h *Handler) UpdateSavings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSavingsRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Book.UpdateSavings(r.Context(), urlID(r), req.inputs())
	if err != nil {
		h.writeDomainError(w, r, "Failed to update savings", err)
		return
	}
	writeJSON(w, http.StatusOK, toSavingsDTO(p))
}

// =============================================================================
// BORROW / LEND HANDLERS
// =============================================================================

func (h *Handler) GetBorrowLend(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Book.BorrowLend(urlID(r))
	if err != nil {
		h.writeDomainError(w, r, "Failed to get borrow/lend record", err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowLendDTO(rec))
}

// UpdateBorrowLend applies a partial edit. Money and action edits move the
// account balance.
// PUT /api/borrow-lend/{id}
func (h *Handler) UpdateBorrowLend(w http.ResponseWriter, r *http.Request) {
	var req UpdateBorrowLendRequest
	if !decode(w, r, &req) {
		return
	}
	rec, err := h.Book.UpdateBorrowLend(r.Context(), urlID(r), req.inputs())
	if err != nil {
		h.writeDomainError(w, r, "Failed to update borrow/lend record", err)
		return
	}
	writeJSON(w, http.StatusOK, toBorrowLendDTO(rec))
}

// ListActionTypes returns the borrow/lend actions and their signs.
func (h *Handler) ListActionTypes(w http.ResponseWriter, r *http.Request) {
	actions := borrowlend.Actions()
	dtos := make([]ActionTypeDTO, 0, len(actions))
	for _, a := range actions {
		dtos = append(dtos, ActionTypeDTO{Value: int(a.Type), Name: a.Name, Sign: int(a.Sign)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"action_types": dtos})
}

// =============================================================================
// CATEGORY AND SUBJECT HANDLERS
// =============================================================================

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := h.Book.Categories()
	dtos := make([]NamedDTO, 0, len(categories))
	for _, c := range categories {
		dtos = append(dtos, NamedDTO{ID: string(c.ID), Name: c.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": dtos})
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Book.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create category", err)
		return
	}
	writeJSON(w, http.StatusCreated, NamedDTO{ID: string(c.ID), Name: c.Name})
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects := h.Book.Subjects()
	dtos := make([]NamedDTO, 0, len(subjects))
	for _, s := range subjects {
		dtos = append(dtos, NamedDTO{ID: string(s.ID), Name: s.Name})
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": dtos})
}

func (h *Handler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req CreateNamedRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := h.Book.CreateSubject(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, r, "Failed to create subject", err)
		return
	}
	writeJSON(w, http.StatusCreated, NamedDTO{ID: string(s.ID), Name: s.Name})
}

// =============================================================================
// AUDIT
// =============================================================================

// ListAudit returns audit entries, newest first.
// GET /api/audit?account=A2025&target=1&kind=borrow_lend&action=entry_created&limit=50
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter generic.AuditFilter
	if v := q.Get("account"); v != "" {
		id := generic.ID(v)
		filter.AccountID = &id
	}
	if v := q.Get("target"); v != "" {
		id := generic.ID(v)
		filter.TargetID = &id
	}
	if v := q.Get("kind"); v != "" {
		kind := generic.Kind(v)
		filter.Kind = &kind
	}
	for _, v := range q["action"] {
		for _, a := range strings.Split(v, ",") {
			if a = strings.TrimSpace(a); a != "" {
				filter.Actions = append(filter.Actions, generic.AuditAction(a))
			}
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = n
	}

	entries, err := h.Book.AuditTrail(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, "Failed to query audit log", err)
		return
	}
	dtos := make([]AuditEntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toAuditEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"audit": dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func urlID(r *http.Request) generic.ID {
	return generic.ID(chi.URLParam(r, "id"))
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

// parseDate accepts YYYY-MM-DD or RFC 3339. Empty means zero.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q (use YYYY-MM-DD)", generic.ErrInvalidInput, s)
	}
	return t.UTC(), nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case generic.IsNotFound(err):
		return http.StatusNotFound
	case generic.IsClientError(err):
		return http.StatusBadRequest
	case generic.IsConflict(err):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error(message, "error", err, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()))
	}
	writeError(w, status, message, err)
}

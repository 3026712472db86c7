// Package services orchestrates the expense lifecycle against a ledger
// backend. Every mutation follows the same shape: refetch authoritative
// state, check the guard locally, apply the change remotely, refetch again.
// A guard failure never reaches the wire.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"fido/internal/core"
	"fido/internal/ledger"
	applog "fido/internal/log"
)

// Ledger is the full backend surface the lifecycle needs.
type Ledger interface {
	ledger.ExpenseReader
	ledger.ExpenseWriter
	ledger.NoteEditor
	ledger.BankLister
}

// LifecycleService drives expenses through validation, approval and payment.
type LifecycleService struct {
	ledger Ledger
	clock  func() time.Time
}

func NewLifecycleService(l Ledger) *LifecycleService {
	return &LifecycleService{ledger: l, clock: func() time.Time { return time.Now().UTC() }}
}

// WithClock overrides the timestamp source. Test helper.
func (s *LifecycleService) WithClock(clock func() time.Time) *LifecycleService {
	s.clock = clock
	return s
}

// LoadExpense returns the authoritative state of one expense.
func (s *LifecycleService) LoadExpense(ctx context.Context, id string) (core.Expense, error) {
	return s.ledger.GetExpense(ctx, id)
}

// ExpenseDetail bundles what the detail view needs in one load.
type ExpenseDetail struct {
	Expense core.Expense
	Banks   []core.Bank
}

// LoadDetail fetches the expense and the bank list concurrently.
func (s *LifecycleService) LoadDetail(ctx context.Context, id string) (ExpenseDetail, error) {
	var detail ExpenseDetail
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		e, err := s.ledger.GetExpense(gctx, id)
		if err != nil {
			return err
		}
		detail.Expense = e
		return nil
	})
	g.Go(func() error {
		banks, err := s.ledger.ListBanks(gctx)
		if err != nil {
			return err
		}
		detail.Banks = banks
		return nil
	})
	if err := g.Wait(); err != nil {
		return ExpenseDetail{}, err
	}
	return detail, nil
}

// List returns one page of expenses.
func (s *LifecycleService) List(ctx context.Context, q ledger.ListQuery) ([]core.Expense, error) {
	return s.ledger.ListExpenses(ctx, q)
}

// Totals returns per-status totals across the ledger.
func (s *LifecycleService) Totals(ctx context.Context) (core.StatusTotals, error) {
	return s.ledger.Totals(ctx)
}

// Banks returns the payment accounts.
func (s *LifecycleService) Banks(ctx context.Context) ([]core.Bank, error) {
	return s.ledger.ListBanks(ctx)
}

// Create validates a draft locally and stores it.
func (s *LifecycleService) Create(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id, err := s.ledger.CreateExpense(ctx, e)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Expense created", applog.FieldExpenseID, id, "title", e.Title)
	return id, nil
}

// UpdateStatus moves the expense one step along the lifecycle. The transition
// is checked against fresh state; an illegal step fails before any write.
func (s *LifecycleService) UpdateStatus(ctx context.Context, id string, next core.Status, updater string) (core.Expense, error) {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if !core.CanTransition(e.Status, next) {
		return core.Expense{}, fmt.Errorf("%s to %s: %w", e.Status, next, core.ErrIllegalTransition)
	}
	if _, err := s.ledger.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &next, Updater: updater}); err != nil {
		return core.Expense{}, err
	}
	slog.InfoContext(ctx, "Expense status updated",
		applog.FieldExpenseID, id, "from", e.Status, "to", next, applog.FieldUpdater, updater)
	return s.ledger.GetExpense(ctx, id)
}

// PaymentRequest is one payment against an expense's outstanding balance.
type PaymentRequest struct {
	Amount   core.Money
	BankAcct string
	Payer    string
}

// PreviewPayment derives the balance and status a payment would produce,
// without touching the ledger.
func (s *LifecycleService) PreviewPayment(ctx context.Context, id string, amount core.Money) (core.PaymentPlan, error) {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.PaymentPlan{}, err
	}
	if !e.CanPay() {
		return core.PaymentPlan{}, core.ErrPaymentNotAllowed
	}
	return core.PlanPayment(e.OutstandingBalance(), amount)
}

// MakePayment applies a payment: new balance, derived status and the
// prepended payment record are persisted as one update, then the fresh state
// is returned.
func (s *LifecycleService) MakePayment(ctx context.Context, id string, req PaymentRequest) (core.Expense, error) {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if !e.CanPay() {
		return core.Expense{}, core.ErrPaymentNotAllowed
	}
	plan, err := core.PlanPayment(e.OutstandingBalance(), req.Amount)
	if err != nil {
		return core.Expense{}, err
	}

	now := s.clock()
	record := core.Payment{
		BankAcct:    req.BankAcct,
		PaidAmount:  req.Amount,
		PaymentDate: now,
		Memo:        core.PaymentMemo(req.BankAcct, e.Vendor.Name, now, id, req.Amount),
		Payer:       req.Payer,
	}
	history := append([]core.Payment{record}, e.PayHistory...)

	upd := ledger.ExpenseUpdate{
		Status:     &plan.NewStatus,
		Balance:    &plan.NewBalance,
		PayHistory: &history,
	}
	if _, err := s.ledger.UpdateExpense(ctx, id, upd); err != nil {
		return core.Expense{}, err
	}
	slog.InfoContext(ctx, "Payment applied",
		applog.FieldExpenseID, id,
		applog.FieldAmountKobo, req.Amount.Kobo,
		"new_balance_kobo", plan.NewBalance.Kobo,
		"new_status", plan.NewStatus)
	return s.ledger.GetExpense(ctx, id)
}

// AddNote appends a note and returns the refreshed expense.
func (s *LifecycleService) AddNote(ctx context.Context, id, text, author string, img *ledger.ImageAttachment) (core.Expense, error) {
	note := core.Note{Text: text, Author: author, Date: s.clock()}
	if err := note.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := s.ledger.AddNote(ctx, id, note, img); err != nil {
		return core.Expense{}, err
	}
	return s.ledger.GetExpense(ctx, id)
}

// DeleteNote removes the note at index after checking bounds against fresh
// state, then returns the refreshed expense.
func (s *LifecycleService) DeleteNote(ctx context.Context, id string, index int) (core.Expense, error) {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if index < 0 || index >= len(e.Notes) {
		return core.Expense{}, core.ErrNoteIndexOutOfRange
	}
	if err := s.ledger.DeleteNote(ctx, id, index); err != nil {
		return core.Expense{}, err
	}
	return s.ledger.GetExpense(ctx, id)
}

// Reset returns a non-draft expense to DRAFT, clearing payment history and
// notes in one update. Balance, line items and status history stay untouched.
func (s *LifecycleService) Reset(ctx context.Context, id string) (core.Expense, error) {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if !e.CanReset() {
		return core.Expense{}, core.ErrResetNotAllowed
	}

	draft := core.StatusDraft
	emptyPayments := []core.Payment{}
	emptyNotes := []core.Note{}
	upd := ledger.ExpenseUpdate{
		Status:     &draft,
		PayHistory: &emptyPayments,
		Notes:      &emptyNotes,
	}
	if _, err := s.ledger.UpdateExpense(ctx, id, upd); err != nil {
		return core.Expense{}, err
	}
	slog.InfoContext(ctx, "Expense reset to draft", applog.FieldExpenseID, id, "from", e.Status)
	return s.ledger.GetExpense(ctx, id)
}

// Delete removes an expense that has not entered the payment trail.
func (s *LifecycleService) Delete(ctx context.Context, id string) error {
	e, err := s.ledger.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if !e.CanDelete() {
		return core.ErrDeleteNotAllowed
	}
	if err := s.ledger.DeleteExpense(ctx, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted", applog.FieldExpenseID, id, applog.FieldStatus, e.Status)
	return nil
}

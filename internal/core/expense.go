package core

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrEmptyTitle          = errors.New("empty expense title")
	ErrEmptyVendor         = errors.New("empty vendor name")
	ErrNoProducts          = errors.New("expense needs at least one product line")
	ErrInvalidQuantity     = errors.New("invalid product quantity")
	ErrLineAmountMismatch  = errors.New("product amount does not match qty x price")
	ErrEmptyNoteText       = errors.New("empty note text")
	ErrNoteIndexOutOfRange = errors.New("note index out of range")
	ErrIllegalTransition   = errors.New("illegal status transition")
	ErrDeleteNotAllowed    = errors.New("expense can no longer be deleted")
	ErrResetNotAllowed     = errors.New("expense is already a draft")
)

type (
	// Vendor is referenced by name only; the API resolves it server-side.
	Vendor struct {
		Name string `json:"name"`
	}

	// Product is one line item of an expense.
	Product struct {
		ID     string `json:"_id,omitempty"`
		Name   string `json:"name"`
		Qty    int64  `json:"qty"`
		Price  Money  `json:"price"`
		Amount Money  `json:"amount"`
	}

	Note struct {
		Text   string    `json:"text"`
		Author string    `json:"author"`
		Date   time.Time `json:"date"`
		Image  string    `json:"image,omitempty"`
	}

	// Payment is immutable once created; history is most-recent-first.
	Payment struct {
		BankAcct    string    `json:"bankAcct"`
		PaidAmount  Money     `json:"paidAmount"`
		PaymentDate time.Time `json:"paymentDate"`
		Memo        string    `json:"memo,omitempty"`
		Payer       string    `json:"payer"`
	}

	// StatusChange records one transition; history is most-recent-first.
	StatusChange struct {
		OldStatus Status `json:"oldStatus"`
		NewStatus Status `json:"newStatus"`
		Updater   string `json:"updater"`
	}

	// Expense is the aggregate tracked through approval and payment. It is
	// fetched fresh from the Expense API on each view and never persisted
	// locally by the remote-backed client.
	Expense struct {
		ID            string         `json:"_id"`
		Title         string         `json:"title"`
		Vendor        Vendor         `json:"vendor"`
		Site          string         `json:"site,omitempty"`
		Category      string         `json:"category,omitempty"`
		Status        Status         `json:"status"`
		TxnAmount     Money          `json:"txn_amount"`
		Balance       *Money         `json:"balance,omitempty"`
		Products      []Product      `json:"products"`
		Notes         []Note         `json:"notes"`
		PayHistory    []Payment      `json:"payHistory"`
		StatusHistory []StatusChange `json:"statusHistory"`
		Date          time.Time      `json:"date"`
	}

	// Bank populates the payment-account selector.
	Bank struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}

	// StatusTotals mirrors GET /expense/totals.
	StatusTotals struct {
		Total     Money `json:"total"`
		Pending   Money `json:"pending"`
		Approved  Money `json:"approved"`
		Paid      Money `json:"paid"`
		Draft     Money `json:"draft"`
		Validated Money `json:"validated"`
	}
)

// OutstandingBalance returns the unpaid remainder, defaulting to the
// transaction amount when the API has not materialized a balance yet.
func (e Expense) OutstandingBalance() Money {
	if e.Balance != nil {
		return *e.Balance
	}
	return e.TxnAmount
}

// NextStatuses returns the legal one-step transitions for the expense.
func (e Expense) NextStatuses() []Status {
	return AllowedNext(e.Status)
}

// CanPay reports whether a payment may be applied: the expense has cleared
// approval and money is still owed.
func (e Expense) CanPay() bool {
	if e.Status != StatusApproved && e.Status != StatusPartPay {
		return false
	}
	return e.OutstandingBalance().Kobo > 0
}

// CanDelete reports whether the expense may still be removed. Anything
// approved or touched by payment keeps its financial trail.
func (e Expense) CanDelete() bool {
	switch e.Status {
	case StatusPaid, StatusApproved, StatusPartPay:
		return false
	}
	return true
}

// CanReset reports whether the expense can be sent back to draft.
func (e Expense) CanReset() bool {
	return e.Status != StatusDraft
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNoProducts
	}
	if p.Qty <= 0 {
		return ErrInvalidQuantity
	}
	if err := p.Price.Validate(); err != nil {
		return err
	}
	if p.Amount.Kobo != p.Qty*p.Price.Kobo {
		return ErrLineAmountMismatch
	}
	return nil
}

// Validate checks an expense draft before creation. Fetched expenses are
// taken as authoritative and are not re-validated against these rules.
func (e Expense) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if strings.TrimSpace(e.Vendor.Name) == "" {
		return ErrEmptyVendor
	}
	if len(e.Products) == 0 {
		return ErrNoProducts
	}
	var sum int64
	for _, p := range e.Products {
		if err := p.Validate(); err != nil {
			return err
		}
		sum += p.Amount.Kobo
	}
	if e.TxnAmount.Kobo != sum {
		return errors.New("txn_amount does not match product line total")
	}
	return nil
}

func (n Note) Validate() error {
	if strings.TrimSpace(n.Text) == "" {
		return ErrEmptyNoteText
	}
	return nil
}

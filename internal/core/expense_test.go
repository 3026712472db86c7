package core

import (
	"errors"
	"testing"
)

func validDraft() Expense {
	return Expense{
		Title:  "Generator fuel",
		Vendor: Vendor{Name: "Acme Ltd"},
		Products: []Product{
			{Name: "Diesel", Qty: 4, Price: Money{Kobo: 250000}, Amount: Money{Kobo: 1000000}},
		},
		TxnAmount: Money{Kobo: 1000000},
	}
}

func TestExpenseValidate(t *testing.T) {
	if err := validDraft().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name    string
		mutate  func(*Expense)
		wantErr error
	}{
		{"empty title", func(e *Expense) { e.Title = "  " }, ErrEmptyTitle},
		{"empty vendor", func(e *Expense) { e.Vendor.Name = "" }, ErrEmptyVendor},
		{"no products", func(e *Expense) { e.Products = nil }, ErrNoProducts},
		{"zero qty", func(e *Expense) { e.Products[0].Qty = 0 }, ErrInvalidQuantity},
		{"zero price", func(e *Expense) { e.Products[0].Price = Money{} }, ErrInvalidAmount},
		{"amount mismatch", func(e *Expense) { e.Products[0].Amount.Kobo = 999999 }, ErrLineAmountMismatch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validDraft()
			tc.mutate(&e)
			if err := e.Validate(); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	t.Run("txn amount mismatch", func(t *testing.T) {
		e := validDraft()
		e.TxnAmount.Kobo = 1
		if err := e.Validate(); err == nil {
			t.Fatalf("expected error for txn_amount mismatch")
		}
	})
}

func TestOutstandingBalance(t *testing.T) {
	e := validDraft()
	if got := e.OutstandingBalance(); got.Kobo != 1000000 {
		t.Fatalf("expected txn amount fallback, got %d", got.Kobo)
	}
	e.Balance = &Money{Kobo: 4000}
	if got := e.OutstandingBalance(); got.Kobo != 4000 {
		t.Fatalf("expected materialized balance, got %d", got.Kobo)
	}
}

func TestCanPay(t *testing.T) {
	cases := []struct {
		status  Status
		balance int64
		want    bool
	}{
		{StatusApproved, 100, true},
		{StatusPartPay, 100, true},
		{StatusApproved, 0, false},
		{StatusPartPay, 0, false},
		{StatusDraft, 100, false},
		{StatusValidated, 100, false},
		{StatusReviewed, 100, false},
		{StatusPaid, 100, false},
	}
	for _, tc := range cases {
		e := validDraft()
		e.Status = tc.status
		e.Balance = &Money{Kobo: tc.balance}
		if got := e.CanPay(); got != tc.want {
			t.Fatalf("CanPay(%s, balance %d) = %v, want %v", tc.status, tc.balance, got, tc.want)
		}
	}
}

func TestCanDelete(t *testing.T) {
	deletable := []Status{StatusDraft, StatusValidated, StatusReviewed}
	for _, s := range deletable {
		e := validDraft()
		e.Status = s
		if !e.CanDelete() {
			t.Fatalf("expected %s to be deletable", s)
		}
	}
	protected := []Status{StatusApproved, StatusPartPay, StatusPaid}
	for _, s := range protected {
		e := validDraft()
		e.Status = s
		if e.CanDelete() {
			t.Fatalf("expected %s to be protected from deletion", s)
		}
	}
}

func TestCanReset(t *testing.T) {
	e := validDraft()
	e.Status = StatusDraft
	if e.CanReset() {
		t.Fatalf("a draft cannot be reset")
	}
	for _, s := range []Status{StatusValidated, StatusReviewed, StatusApproved, StatusPartPay, StatusPaid} {
		e.Status = s
		if !e.CanReset() {
			t.Fatalf("expected %s to be resettable", s)
		}
	}
}

func TestNoteValidate(t *testing.T) {
	if err := (Note{Text: "checked invoice"}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Note{Text: "   "}).Validate(); !errors.Is(err, ErrEmptyNoteText) {
		t.Fatalf("expected ErrEmptyNoteText, got %v", err)
	}
}

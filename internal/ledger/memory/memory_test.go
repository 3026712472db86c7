package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"fido/internal/core"
	"fido/internal/ledger"
)

func draft(title string) core.Expense {
	return core.Expense{
		Title:  title,
		Vendor: core.Vendor{Name: "Acme Ltd"},
		Products: []core.Product{
			{Name: "Diesel", Qty: 2, Price: core.Money{Kobo: 5000}, Amount: core.Money{Kobo: 10000}},
		},
		TxnAmount: core.Money{Kobo: 10000},
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := New()

	id, err := s.CreateExpense(ctx, draft("fuel"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	e, err := s.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Status != core.StatusDraft {
		t.Fatalf("new expense must be DRAFT, got %s", e.Status)
	}
	if e.Title != "fuel" {
		t.Fatalf("title = %q", e.Title)
	}

	if _, err := s.GetExpense(ctx, "missing"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	s := New()
	bad := draft("x")
	bad.Products = nil
	if _, err := s.CreateExpense(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestUpdateStatusPrependsHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	next := core.StatusValidated
	if _, err := s.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &next, Updater: "ada"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	next2 := core.StatusReviewed
	if _, err := s.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &next2, Updater: "ben"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	e, _ := s.GetExpense(ctx, id)
	if len(e.StatusHistory) != 2 {
		t.Fatalf("expected 2 status records, got %d", len(e.StatusHistory))
	}
	// Most recent first.
	if e.StatusHistory[0].NewStatus != core.StatusReviewed || e.StatusHistory[0].Updater != "ben" {
		t.Fatalf("unexpected head record: %+v", e.StatusHistory[0])
	}
	if e.StatusHistory[1].OldStatus != core.StatusDraft {
		t.Fatalf("unexpected tail record: %+v", e.StatusHistory[1])
	}
}

func TestUpdateWithoutUpdaterSkipsHistory(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	paid := core.StatusPaid
	balance := core.Money{}
	if _, err := s.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &paid, Balance: &balance}); err != nil {
		t.Fatalf("update: %v", err)
	}
	e, _ := s.GetExpense(ctx, id)
	if len(e.StatusHistory) != 0 {
		t.Fatalf("payment-style update must not record a status change")
	}
	if e.Balance == nil || e.Balance.Kobo != 0 {
		t.Fatalf("balance not applied: %+v", e.Balance)
	}
}

func TestUpdateReplacesSlices(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	history := []core.Payment{{BankAcct: "OPS-01", PaidAmount: core.Money{Kobo: 5000}, Payer: "ada"}}
	if _, err := s.UpdateExpense(ctx, id, ledger.ExpenseUpdate{PayHistory: &history}); err != nil {
		t.Fatalf("update: %v", err)
	}
	empty := []core.Payment{}
	if _, err := s.UpdateExpense(ctx, id, ledger.ExpenseUpdate{PayHistory: &empty}); err != nil {
		t.Fatalf("update: %v", err)
	}
	e, _ := s.GetExpense(ctx, id)
	if len(e.PayHistory) != 0 {
		t.Fatalf("expected cleared pay history, got %d records", len(e.PayHistory))
	}
}

func TestListPagingAndSearch(t *testing.T) {
	ctx := context.Background()
	s := New()
	for i, title := range []string{"fuel north", "fuel south", "printer paper"} {
		e := draft(title)
		e.Date = time.Date(2026, 1, i+1, 0, 0, 0, 0, time.UTC)
		s.Seed(e)
	}

	all, err := s.ListExpenses(ctx, ledger.ListQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3, got %d", len(all))
	}
	if all[0].Title != "printer paper" {
		t.Fatalf("expected newest first, got %q", all[0].Title)
	}

	fuel, _ := s.ListExpenses(ctx, ledger.ListQuery{Page: 1, PageSize: 10, Search: "FUEL"})
	if len(fuel) != 2 {
		t.Fatalf("search expected 2, got %d", len(fuel))
	}

	page2, _ := s.ListExpenses(ctx, ledger.ListQuery{Page: 2, PageSize: 2})
	if len(page2) != 1 {
		t.Fatalf("page 2 expected 1, got %d", len(page2))
	}

	empty, _ := s.ListExpenses(ctx, ledger.ListQuery{Page: 9, PageSize: 10})
	if len(empty) != 0 {
		t.Fatalf("far page expected empty, got %d", len(empty))
	}
}

func TestTotals(t *testing.T) {
	ctx := context.Background()
	s := New()

	d := draft("a")
	d.Status = core.StatusDraft
	s.Seed(d)
	v := draft("b")
	v.Status = core.StatusValidated
	s.Seed(v)
	p := draft("c")
	p.Status = core.StatusPaid
	s.Seed(p)

	totals, err := s.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Total.Kobo != 30000 {
		t.Fatalf("total = %d, want 30000", totals.Total.Kobo)
	}
	if totals.Draft.Kobo != 10000 || totals.Validated.Kobo != 10000 || totals.Paid.Kobo != 10000 {
		t.Fatalf("per-status totals wrong: %+v", totals)
	}
}

func TestNotes(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	if err := s.AddNote(ctx, id, core.Note{Text: "first", Author: "ada"}, nil); err != nil {
		t.Fatalf("add note: %v", err)
	}
	img := &ledger.ImageAttachment{Filename: "receipt.png", ContentType: "image/png", Data: []byte{1, 2, 3}}
	if err := s.AddNote(ctx, id, core.Note{Text: "with image", Author: "ada"}, img); err != nil {
		t.Fatalf("add note with image: %v", err)
	}
	if err := s.AddNote(ctx, id, core.Note{Text: "third", Author: "ben"}, nil); err != nil {
		t.Fatalf("add third note: %v", err)
	}

	e, _ := s.GetExpense(ctx, id)
	if len(e.Notes) != 3 {
		t.Fatalf("expected 3 notes, got %d", len(e.Notes))
	}
	if e.Notes[1].Image == "" {
		t.Fatalf("image note lost its attachment")
	}

	if err := s.DeleteNote(ctx, id, 5); !errors.Is(err, core.ErrNoteIndexOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	// Deleting the first note keeps the remaining two in their relative order.
	if err := s.DeleteNote(ctx, id, 0); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	e, _ = s.GetExpense(ctx, id)
	if len(e.Notes) != 2 || e.Notes[0].Text != "with image" || e.Notes[1].Text != "third" {
		t.Fatalf("wrong note deleted: %+v", e.Notes)
	}
}

func TestAddNoteRejectsOversizeImage(t *testing.T) {
	s := New()
	id, _ := s.CreateExpense(context.Background(), draft("fuel"))
	img := &ledger.ImageAttachment{
		Filename:    "big.png",
		ContentType: "image/png",
		Data:        make([]byte, ledger.MaxImageBytes+1),
	}
	err := s.AddNote(context.Background(), id, core.Note{Text: "x", Author: "a"}, img)
	if !errors.Is(err, ledger.ErrImageTooLarge) {
		t.Fatalf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestDeleteExpense(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	if err := s.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetExpense(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.DeleteExpense(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, _ := s.CreateExpense(ctx, draft("fuel"))

	e1, _ := s.GetExpense(ctx, id)
	e1.Products[0].Name = "tampered"
	e2, _ := s.GetExpense(ctx, id)
	if e2.Products[0].Name != "Diesel" {
		t.Fatalf("store state leaked through returned slices")
	}
}

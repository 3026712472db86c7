package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fido/internal/core"
	"fido/internal/ledger"
)

func newRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "fido.db"))
	if err != nil {
		t.Fatalf("open repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func draft(title string) core.Expense {
	return core.Expense{
		Title:  title,
		Vendor: core.Vendor{Name: "Acme Ltd"},
		Products: []core.Product{
			{Name: "Diesel", Qty: 2, Price: core.Money{Kobo: 5000}, Amount: core.Money{Kobo: 10000}},
		},
		TxnAmount: core.Money{Kobo: 10000},
		Date:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateGetDelete(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	id, err := repo.CreateExpense(ctx, draft("fuel"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	e, err := repo.GetExpense(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if e.Status != core.StatusDraft || e.Title != "fuel" {
		t.Fatalf("expense = %+v", e)
	}
	if len(e.Products) != 1 || e.Products[0].Amount.Kobo != 10000 {
		t.Fatalf("products = %+v", e.Products)
	}

	if err := repo.DeleteExpense(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetExpense(ctx, id); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateSemantics(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	id, _ := repo.CreateExpense(ctx, draft("fuel"))

	next := core.StatusValidated
	e, err := repo.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &next, Updater: "ada"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.Status != core.StatusValidated {
		t.Fatalf("status = %s", e.Status)
	}
	if len(e.StatusHistory) != 1 || e.StatusHistory[0].Updater != "ada" {
		t.Fatalf("history = %+v", e.StatusHistory)
	}

	// Payment-style update: balance + replaced history, no status record.
	paid := core.StatusPaid
	balance := core.Money{}
	history := []core.Payment{{
		BankAcct:    "OPS-01",
		PaidAmount:  core.Money{Kobo: 10000},
		PaymentDate: time.Date(2026, 8, 2, 0, 0, 0, 0, time.UTC),
		Payer:       "ada",
	}}
	e, err = repo.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &paid, Balance: &balance, PayHistory: &history})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if e.Balance == nil || e.Balance.Kobo != 0 {
		t.Fatalf("balance = %+v", e.Balance)
	}
	if len(e.PayHistory) != 1 || e.PayHistory[0].BankAcct != "OPS-01" {
		t.Fatalf("payments = %+v", e.PayHistory)
	}
	if len(e.StatusHistory) != 1 {
		t.Fatalf("payment update must not add a status record, got %d", len(e.StatusHistory))
	}

	// Reset-style update clears the slices.
	draftStatus := core.StatusDraft
	emptyPay := []core.Payment{}
	emptyNotes := []core.Note{}
	e, err = repo.UpdateExpense(ctx, id, ledger.ExpenseUpdate{Status: &draftStatus, PayHistory: &emptyPay, Notes: &emptyNotes})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(e.PayHistory) != 0 || len(e.Notes) != 0 {
		t.Fatalf("reset-style update must clear slices: %+v", e)
	}

	if _, err := repo.UpdateExpense(ctx, "missing", ledger.ExpenseUpdate{Status: &next}); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndTotals(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for i, title := range []string{"fuel north", "fuel south", "printer paper"} {
		e := draft(title)
		e.Date = time.Date(2026, 8, i+1, 0, 0, 0, 0, time.UTC)
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
	}

	all, err := repo.ListExpenses(ctx, ledger.ListQuery{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Title != "printer paper" {
		t.Fatalf("list = %+v", all)
	}

	fuel, _ := repo.ListExpenses(ctx, ledger.ListQuery{Page: 1, PageSize: 10, Search: "fuel"})
	if len(fuel) != 2 {
		t.Fatalf("search expected 2, got %d", len(fuel))
	}

	page2, _ := repo.ListExpenses(ctx, ledger.ListQuery{Page: 2, PageSize: 2})
	if len(page2) != 1 {
		t.Fatalf("page 2 expected 1, got %d", len(page2))
	}

	totals, err := repo.Totals(ctx)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.Total.Kobo != 30000 || totals.Draft.Kobo != 30000 {
		t.Fatalf("totals = %+v", totals)
	}
}

func TestNotes(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	id, _ := repo.CreateExpense(ctx, draft("fuel"))

	note := core.Note{Text: "checked invoice", Author: "ada", Date: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	if err := repo.AddNote(ctx, id, note, nil); err != nil {
		t.Fatalf("add note: %v", err)
	}
	img := &ledger.ImageAttachment{Filename: "receipt.png", ContentType: "image/png", Data: []byte{1, 2, 3}}
	if err := repo.AddNote(ctx, id, core.Note{Text: "with image", Author: "ada", Date: note.Date}, img); err != nil {
		t.Fatalf("add image note: %v", err)
	}

	e, _ := repo.GetExpense(ctx, id)
	if len(e.Notes) != 2 || e.Notes[1].Image == "" {
		t.Fatalf("notes = %+v", e.Notes)
	}

	if err := repo.DeleteNote(ctx, id, 9); !errors.Is(err, core.ErrNoteIndexOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}
	if err := repo.DeleteNote(ctx, id, 0); err != nil {
		t.Fatalf("delete note: %v", err)
	}
	e, _ = repo.GetExpense(ctx, id)
	if len(e.Notes) != 1 || e.Notes[0].Text != "with image" {
		t.Fatalf("notes after delete = %+v", e.Notes)
	}
}

func TestBanksSeeded(t *testing.T) {
	repo := newRepo(t)
	banks, err := repo.ListBanks(context.Background())
	if err != nil {
		t.Fatalf("banks: %v", err)
	}
	if len(banks) == 0 {
		t.Fatalf("migration should seed banks")
	}
}

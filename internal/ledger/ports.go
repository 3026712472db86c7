package ledger

import (
	"context"
	"errors"

	"fido/internal/core"
)

// MaxImageBytes caps note image uploads, matching the limit the screens
// enforce before offering the file.
const MaxImageBytes = 800 * 1024

var ErrImageTooLarge = errors.New("image too large (max 800KB)")

// ListQuery carries the paging and search parameters of the expense list.
type ListQuery struct {
	Page     int
	PageSize int
	Search   string
}

// ExpenseUpdate is a partial update applied through PUT /expense/{id}.
// Only non-nil fields are sent; the ledger persists the whole update
// atomically. PayHistory and Notes are full replacements: a payment sends
// the freshly prepended history, a reset sends empty slices.
//
// Updater is set only by status transitions; the ledger then prepends a
// status-change record. Payments and resets change status without one, which
// mirrors the upstream behavior (reset leaves no audit entry).
type ExpenseUpdate struct {
	Status     *core.Status
	Updater    string
	Balance    *core.Money
	PayHistory *[]core.Payment
	Notes      *[]core.Note
}

// ImageAttachment is an optional image uploaded alongside a note. Its
// presence switches the note request to a multipart upload.
type ImageAttachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

func (a *ImageAttachment) Validate() error {
	if a == nil {
		return nil
	}
	if len(a.Data) == 0 {
		return errors.New("empty image attachment")
	}
	if len(a.Data) > MaxImageBytes {
		return ErrImageTooLarge
	}
	return nil
}

// Ports for the Expense Ledger collaborator. The remote REST adapter is the
// production implementation; the sqlite and memory adapters back standalone
// and test runs with the same semantics.
type (
	ExpenseReader interface {
		// GetExpense returns the authoritative state of one expense.
		GetExpense(ctx context.Context, id string) (core.Expense, error)
		// ListExpenses returns one page of expenses, optionally filtered.
		ListExpenses(ctx context.Context, q ListQuery) ([]core.Expense, error)
		// Totals returns per-status Naira totals across all expenses.
		Totals(ctx context.Context) (core.StatusTotals, error)
	}

	ExpenseWriter interface {
		// CreateExpense stores a new draft and returns its identifier.
		CreateExpense(ctx context.Context, e core.Expense) (string, error)
		// UpdateExpense applies a partial update and returns the new state.
		UpdateExpense(ctx context.Context, id string, upd ExpenseUpdate) (core.Expense, error)
		// DeleteExpense removes the expense irreversibly.
		DeleteExpense(ctx context.Context, id string) error
	}

	NoteEditor interface {
		// AddNote appends a note, as multipart when an image is attached.
		AddNote(ctx context.Context, id string, n core.Note, img *ImageAttachment) error
		// DeleteNote removes exactly the note at index.
		DeleteNote(ctx context.Context, id string, index int) error
	}

	BankLister interface {
		// ListBanks returns the accounts offered by the payment selector.
		ListBanks(ctx context.Context) ([]core.Bank, error)
	}
)

// Package memory is an in-process ledger used by tests and by DATA_BACKEND=memory
// runs. It applies the same server-side rules as the Expense API: updates are
// atomic, a status transition with an updater prepends a status-change record,
// and pay/notes replacements are taken wholesale.
package memory

import (
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fido/internal/core"
	"fido/internal/ledger"
)

type Store struct {
	mu    sync.Mutex
	seq   int
	items map[string]core.Expense
	order []string
	banks []core.Bank
}

func New() *Store {
	return &Store{
		items: map[string]core.Expense{},
		banks: []core.Bank{
			{Name: "Operations Account", Code: "OPS-01"},
			{Name: "Projects Account", Code: "PRJ-01"},
		},
	}
}

// Seed inserts an expense as-is, keeping its ID when present. Test helper.
func (s *Store) Seed(e core.Expense) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		s.seq++
		e.ID = fmt.Sprintf("mem-%d", s.seq)
	}
	if _, ok := s.items[e.ID]; !ok {
		s.order = append(s.order, e.ID)
	}
	s.items[e.ID] = e
	return e.ID
}

// SetBanks replaces the bank list. Test helper.
func (s *Store) SetBanks(banks []core.Bank) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks = append([]core.Bank(nil), banks...)
}

func (s *Store) GetExpense(_ context.Context, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	return cloneExpense(e), nil
}

func (s *Store) ListExpenses(_ context.Context, q ledger.ListQuery) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]core.Expense, 0, len(s.order))
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, id := range s.order {
		e := s.items[id]
		if needle != "" && !matches(e, needle) {
			continue
		}
		matched = append(matched, cloneExpense(e))
	}
	// Newest first, like the API's default ordering.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Date.After(matched[j].Date)
	})

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	start := (page - 1) * size
	if start >= len(matched) {
		return []core.Expense{}, nil
	}
	end := start + size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], nil
}

func matches(e core.Expense, needle string) bool {
	if strings.Contains(strings.ToLower(e.Title), needle) {
		return true
	}
	return strings.Contains(strings.ToLower(e.Vendor.Name), needle)
}

func (s *Store) Totals(_ context.Context) (core.StatusTotals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t core.StatusTotals
	for _, id := range s.order {
		e := s.items[id]
		t.Total.Kobo += e.TxnAmount.Kobo
		switch e.Status {
		case core.StatusDraft:
			t.Draft.Kobo += e.TxnAmount.Kobo
		case core.StatusValidated:
			t.Validated.Kobo += e.TxnAmount.Kobo
		case core.StatusReviewed:
			t.Pending.Kobo += e.TxnAmount.Kobo
		case core.StatusApproved, core.StatusPartPay:
			t.Approved.Kobo += e.TxnAmount.Kobo
		case core.StatusPaid:
			t.Paid.Kobo += e.TxnAmount.Kobo
		}
	}
	return t, nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	e.ID = fmt.Sprintf("mem-%d", s.seq)
	e.Status = core.StatusDraft
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}
	s.items[e.ID] = e
	s.order = append(s.order, e.ID)
	return e.ID, nil
}

func (s *Store) UpdateExpense(_ context.Context, id string, upd ledger.ExpenseUpdate) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	if upd.Status != nil {
		if upd.Updater != "" && *upd.Status != e.Status {
			rec := core.StatusChange{OldStatus: e.Status, NewStatus: *upd.Status, Updater: upd.Updater}
			e.StatusHistory = append([]core.StatusChange{rec}, e.StatusHistory...)
		}
		e.Status = *upd.Status
	}
	if upd.Balance != nil {
		b := *upd.Balance
		e.Balance = &b
	}
	if upd.PayHistory != nil {
		e.PayHistory = append([]core.Payment(nil), (*upd.PayHistory)...)
	}
	if upd.Notes != nil {
		e.Notes = append([]core.Note(nil), (*upd.Notes)...)
	}
	s.items[id] = e
	return cloneExpense(e), nil
}

func (s *Store) DeleteExpense(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) AddNote(_ context.Context, id string, n core.Note, img *ledger.ImageAttachment) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := img.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	if img != nil {
		n.Image = "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}
	e.Notes = append(e.Notes, n)
	s.items[id] = e
	return nil
}

func (s *Store) DeleteNote(_ context.Context, id string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[id]
	if !ok {
		return fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	if index < 0 || index >= len(e.Notes) {
		return core.ErrNoteIndexOutOfRange
	}
	e.Notes = append(e.Notes[:index], e.Notes[index+1:]...)
	s.items[id] = e
	return nil
}

func (s *Store) ListBanks(_ context.Context) ([]core.Bank, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Bank(nil), s.banks...), nil
}

func cloneExpense(e core.Expense) core.Expense {
	out := e
	if e.Balance != nil {
		b := *e.Balance
		out.Balance = &b
	}
	out.Products = append([]core.Product(nil), e.Products...)
	out.Notes = append([]core.Note(nil), e.Notes...)
	out.PayHistory = append([]core.Payment(nil), e.PayHistory...)
	out.StatusHistory = append([]core.StatusChange(nil), e.StatusHistory...)
	return out
}

var (
	_ ledger.ExpenseReader = (*Store)(nil)
	_ ledger.ExpenseWriter = (*Store)(nil)
	_ ledger.NoteEditor    = (*Store)(nil)
	_ ledger.BankLister    = (*Store)(nil)
)

// Package storage is the sqlite backend for standalone runs
// (DATA_BACKEND=sqlite). It stores the full expense aggregate and applies the
// same update rules as the remote Expense API so the service layer cannot
// tell them apart.
package storage

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"fido/internal/core"
	"fido/internal/ledger"
	applog "fido/internal/log"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

var (
	_ ledger.ExpenseReader = (*SQLiteRepository)(nil)
	_ ledger.ExpenseWriter = (*SQLiteRepository)(nil)
	_ ledger.NoteEditor    = (*SQLiteRepository)(nil)
	_ ledger.BankLister    = (*SQLiteRepository)(nil)
)

// GetExpense implements ledger.ExpenseReader.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	return r.loadExpense(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (r *SQLiteRepository) loadExpense(ctx context.Context, q querier, id string) (core.Expense, error) {
	var (
		e       core.Expense
		balance sql.NullInt64
	)
	row := q.QueryRowContext(ctx, `
		SELECT id, title, vendor_name, site, category, status, txn_amount_kobo, balance_kobo, expense_date
		FROM expenses WHERE id = ?`, id)
	var status string
	if err := row.Scan(&e.ID, &e.Title, &e.Vendor.Name, &e.Site, &e.Category, &status, &e.TxnAmount.Kobo, &balance, &e.Date); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
		}
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	e.Status = core.Status(status)
	if balance.Valid {
		e.Balance = &core.Money{Kobo: balance.Int64}
	}
	if err := r.loadChildren(ctx, q, &e); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) loadChildren(ctx context.Context, q querier, e *core.Expense) error {
	rows, err := q.QueryContext(ctx, `
		SELECT name, qty, price_kobo, amount_kobo FROM products
		WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p core.Product
		if err := rows.Scan(&p.Name, &p.Qty, &p.Price.Kobo, &p.Amount.Kobo); err != nil {
			return fmt.Errorf("scan product: %w", err)
		}
		e.Products = append(e.Products, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate products: %w", err)
	}

	noteRows, err := q.QueryContext(ctx, `
		SELECT text, author, note_date, image FROM notes
		WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var n core.Note
		if err := noteRows.Scan(&n.Text, &n.Author, &n.Date, &n.Image); err != nil {
			return fmt.Errorf("scan note: %w", err)
		}
		e.Notes = append(e.Notes, n)
	}
	if err := noteRows.Err(); err != nil {
		return fmt.Errorf("iterate notes: %w", err)
	}

	payRows, err := q.QueryContext(ctx, `
		SELECT bank_acct, paid_amount_kobo, payment_date, memo, payer FROM payments
		WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("load payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var p core.Payment
		if err := payRows.Scan(&p.BankAcct, &p.PaidAmount.Kobo, &p.PaymentDate, &p.Memo, &p.Payer); err != nil {
			return fmt.Errorf("scan payment: %w", err)
		}
		e.PayHistory = append(e.PayHistory, p)
	}
	if err := payRows.Err(); err != nil {
		return fmt.Errorf("iterate payments: %w", err)
	}

	histRows, err := q.QueryContext(ctx, `
		SELECT old_status, new_status, updater FROM status_history
		WHERE expense_id = ? ORDER BY position`, e.ID)
	if err != nil {
		return fmt.Errorf("load status history: %w", err)
	}
	defer histRows.Close()
	for histRows.Next() {
		var sc core.StatusChange
		var oldS, newS string
		if err := histRows.Scan(&oldS, &newS, &sc.Updater); err != nil {
			return fmt.Errorf("scan status change: %w", err)
		}
		sc.OldStatus = core.Status(oldS)
		sc.NewStatus = core.Status(newS)
		e.StatusHistory = append(e.StatusHistory, sc)
	}
	return histRows.Err()
}

// ListExpenses implements ledger.ExpenseReader.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, q ledger.ListQuery) ([]core.Expense, error) {
	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}

	query := `SELECT id FROM expenses`
	args := []any{}
	if s := strings.TrimSpace(q.Search); s != "" {
		query += ` WHERE title LIKE ? OR vendor_name LIKE ?`
		needle := "%" + s + "%"
		args = append(args, needle, needle)
	}
	query += ` ORDER BY expense_date DESC LIMIT ? OFFSET ?`
	args = append(args, size, (page-1)*size)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expense id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	out := make([]core.Expense, 0, len(ids))
	for _, id := range ids {
		e, err := r.loadExpense(ctx, r.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// Totals implements ledger.ExpenseReader.
func (r *SQLiteRepository) Totals(ctx context.Context) (core.StatusTotals, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COALESCE(SUM(txn_amount_kobo), 0) FROM expenses GROUP BY status`)
	if err != nil {
		return core.StatusTotals{}, fmt.Errorf("query totals: %w", err)
	}
	defer rows.Close()

	var t core.StatusTotals
	for rows.Next() {
		var status string
		var sum int64
		if err := rows.Scan(&status, &sum); err != nil {
			return core.StatusTotals{}, fmt.Errorf("scan totals row: %w", err)
		}
		t.Total.Kobo += sum
		switch core.Status(status) {
		case core.StatusDraft:
			t.Draft.Kobo += sum
		case core.StatusValidated:
			t.Validated.Kobo += sum
		case core.StatusReviewed:
			t.Pending.Kobo += sum
		case core.StatusApproved, core.StatusPartPay:
			t.Approved.Kobo += sum
		case core.StatusPaid:
			t.Paid.Kobo += sum
		}
	}
	return t, rows.Err()
}

// CreateExpense implements ledger.ExpenseWriter.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	id := uuid.NewString()
	date := e.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO expenses (id, title, vendor_name, site, category, status, txn_amount_kobo, expense_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, e.Title, e.Vendor.Name, e.Site, e.Category, string(core.StatusDraft), e.TxnAmount.Kobo, date)
	if err != nil {
		return "", fmt.Errorf("insert expense: %w", err)
	}
	for i, p := range e.Products {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (expense_id, name, qty, price_kobo, amount_kobo, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, p.Name, p.Qty, p.Price.Kobo, p.Amount.Kobo, i)
		if err != nil {
			return "", fmt.Errorf("insert product: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit create: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved to SQLite",
		applog.FieldExpenseID, id,
		"title", e.Title,
		applog.FieldAmountKobo, e.TxnAmount.Kobo)
	return id, nil
}

// UpdateExpense implements ledger.ExpenseWriter. The whole update is one
// transaction; replacement slices overwrite the stored child rows.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id string, upd ledger.ExpenseUpdate) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM expenses WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("load current status: %w", err)
	}

	if upd.Status != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE expenses SET status = ? WHERE id = ?`, string(*upd.Status), id); err != nil {
			return core.Expense{}, fmt.Errorf("update status: %w", err)
		}
		if upd.Updater != "" && string(*upd.Status) != current {
			_, err = tx.ExecContext(ctx, `
				UPDATE status_history SET position = position + 1 WHERE expense_id = ?`, id)
			if err != nil {
				return core.Expense{}, fmt.Errorf("shift status history: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO status_history (expense_id, old_status, new_status, updater, position)
				VALUES (?, ?, ?, ?, 0)`,
				id, current, string(*upd.Status), upd.Updater)
			if err != nil {
				return core.Expense{}, fmt.Errorf("insert status change: %w", err)
			}
		}
	}
	if upd.Balance != nil {
		if _, err := tx.ExecContext(ctx, `UPDATE expenses SET balance_kobo = ? WHERE id = ?`, upd.Balance.Kobo, id); err != nil {
			return core.Expense{}, fmt.Errorf("update balance: %w", err)
		}
	}
	if upd.PayHistory != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE expense_id = ?`, id); err != nil {
			return core.Expense{}, fmt.Errorf("clear payments: %w", err)
		}
		for i, p := range *upd.PayHistory {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO payments (expense_id, bank_acct, paid_amount_kobo, payment_date, memo, payer, position)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				id, p.BankAcct, p.PaidAmount.Kobo, p.PaymentDate, p.Memo, p.Payer, i)
			if err != nil {
				return core.Expense{}, fmt.Errorf("insert payment: %w", err)
			}
		}
	}
	if upd.Notes != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE expense_id = ?`, id); err != nil {
			return core.Expense{}, fmt.Errorf("clear notes: %w", err)
		}
		for i, n := range *upd.Notes {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO notes (expense_id, text, author, note_date, image, position)
				VALUES (?, ?, ?, ?, ?, ?)`,
				id, n.Text, n.Author, n.Date, n.Image, i)
			if err != nil {
				return core.Expense{}, fmt.Errorf("insert note: %w", err)
			}
		}
	}

	e, err := r.loadExpense(ctx, tx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit update: %w", err)
	}
	return e, nil
}

// DeleteExpense implements ledger.ExpenseWriter.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	slog.InfoContext(ctx, "Expense deleted from SQLite", applog.FieldExpenseID, id)
	return nil
}

// AddNote implements ledger.NoteEditor. Images are stored inline as data URIs
// so the aggregate survives a round trip without blob storage.
func (r *SQLiteRepository) AddNote(ctx context.Context, id string, n core.Note, img *ledger.ImageAttachment) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := img.Validate(); err != nil {
		return err
	}
	if img != nil {
		n.Image = "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM expenses WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("expense %s: %w", id, ledger.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check expense: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO notes (expense_id, text, author, note_date, image, position)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(position) + 1, 0) FROM notes WHERE expense_id = ?))`,
		id, n.Text, n.Author, n.Date, n.Image, id)
	if err != nil {
		return fmt.Errorf("insert note: %w", err)
	}
	return tx.Commit()
}

// DeleteNote implements ledger.NoteEditor.
func (r *SQLiteRepository) DeleteNote(ctx context.Context, id string, index int) error {
	if index < 0 {
		return core.ErrNoteIndexOutOfRange
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		DELETE FROM notes WHERE expense_id = ? AND position = ?`, id, index)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete note rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNoteIndexOutOfRange
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE notes SET position = position - 1 WHERE expense_id = ? AND position > ?`, id, index)
	if err != nil {
		return fmt.Errorf("compact note positions: %w", err)
	}
	return tx.Commit()
}

// ListBanks implements ledger.BankLister.
func (r *SQLiteRepository) ListBanks(ctx context.Context) ([]core.Bank, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name, code FROM banks`)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	defer rows.Close()

	var banks []core.Bank
	for rows.Next() {
		var b core.Bank
		if err := rows.Scan(&b.Name, &b.Code); err != nil {
			return nil, fmt.Errorf("scan bank: %w", err)
		}
		banks = append(banks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate banks: %w", err)
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i].Name < banks[j].Name })
	return banks, nil
}

// Package remote is the REST adapter for the Expense API. It owns the
// authenticated-request plumbing: bearer credentials, request IDs, JSON
// decoding, and the 401 short-circuit. Timeouts are inherited from the
// underlying http.Client; dispatched calls are never cancelled mid-flight
// by this package.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"fido/internal/core"
	"fido/internal/ledger"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "fido_expense_api_requests_total",
	Help: "Requests issued to the Expense API by method and status code.",
}, []string{"method", "status"})

// TokenSource yields the bearer credential attached to outbound requests.
// An empty token means the request goes out unauthenticated.
type TokenSource interface {
	Token() string
}

// StaticToken is a TokenSource for a fixed credential from config.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

type Client struct {
	base   string
	hc     *http.Client
	tokens TokenSource
}

// Ensure interface conformance
var (
	_ ledger.ExpenseReader = (*Client)(nil)
	_ ledger.ExpenseWriter = (*Client)(nil)
	_ ledger.NoteEditor    = (*Client)(nil)
	_ ledger.BankLister    = (*Client)(nil)
)

// New creates a remote ledger client for the given API base URL
// (e.g. "https://fido-api.example.com/api").
func New(baseURL string, tokens TokenSource, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("missing expense api base url")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid expense api base url: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base:   baseURL,
		hc:     newHTTPClient(timeout),
		tokens: tokens,
	}, nil
}

// newHTTPClient builds an HTTP client with connection pooling and
// keep-alive tuned for a single API host.
func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

// do issues one request and decodes the JSON response into out (when non-nil).
// 401 maps to ledger.ErrUnauthenticated; other non-2xx responses become an
// *ledger.APIError carrying the server-provided message verbatim.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.tokens.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.hc.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues(method, "transport_error").Inc()
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	requestsTotal.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized {
		slog.WarnContext(ctx, "Expense API rejected credentials", "method", method, "path", path)
		return ledger.ErrUnauthenticated
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s payload: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, body, contentType, out)
}

// apiError extracts the server message from an error body shaped
// {"message": "..."} and wraps it with the status code. 404s additionally
// match ledger.ErrNotFound.
func apiError(resp *http.Response) error {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	_ = json.Unmarshal(raw, &payload)
	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}
	apiErr := &ledger.APIError{StatusCode: resp.StatusCode, Message: msg}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", ledger.ErrNotFound, apiErr)
	}
	return apiErr
}

type expenseEnvelope struct {
	Expense core.Expense `json:"expense"`
}

// GetExpense implements ledger.ExpenseReader.
func (c *Client) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var env expenseEnvelope
	if err := c.doJSON(ctx, http.MethodGet, "/expense/"+url.PathEscape(id), nil, &env); err != nil {
		return core.Expense{}, err
	}
	return env.Expense, nil
}

// ListExpenses implements ledger.ExpenseReader.
func (c *Client) ListExpenses(ctx context.Context, q ledger.ListQuery) ([]core.Expense, error) {
	params := url.Values{}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("pagesize", strconv.Itoa(q.PageSize))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		params.Set("search", s)
	}
	path := "/expense/list"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var env struct {
		Expenses []core.Expense `json:"expenses"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return env.Expenses, nil
}

// Totals implements ledger.ExpenseReader.
func (c *Client) Totals(ctx context.Context) (core.StatusTotals, error) {
	var totals core.StatusTotals
	if err := c.doJSON(ctx, http.MethodGet, "/expense/totals", nil, &totals); err != nil {
		return core.StatusTotals{}, err
	}
	return totals, nil
}

// CreateExpense implements ledger.ExpenseWriter.
func (c *Client) CreateExpense(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	payload := map[string]any{
		"title":      e.Title,
		"vendor":     e.Vendor,
		"products":   e.Products,
		"txn_amount": e.TxnAmount,
	}
	if e.Site != "" {
		payload["site"] = e.Site
	}
	var env expenseEnvelope
	if err := c.doJSON(ctx, http.MethodPost, "/expense", payload, &env); err != nil {
		return "", err
	}
	return env.Expense.ID, nil
}

// UpdateExpense implements ledger.ExpenseWriter. Only the fields set on upd
// are sent; the API applies them as one update.
func (c *Client) UpdateExpense(ctx context.Context, id string, upd ledger.ExpenseUpdate) (core.Expense, error) {
	payload := map[string]any{}
	if upd.Status != nil {
		payload["status"] = *upd.Status
	}
	if upd.Updater != "" {
		payload["updater"] = upd.Updater
	}
	if upd.Balance != nil {
		payload["balance"] = *upd.Balance
	}
	if upd.PayHistory != nil {
		payload["payHistory"] = *upd.PayHistory
	}
	if upd.Notes != nil {
		payload["notes"] = *upd.Notes
	}
	if len(payload) == 0 {
		return core.Expense{}, errors.New("empty expense update")
	}
	var env expenseEnvelope
	if err := c.doJSON(ctx, http.MethodPut, "/expense/"+url.PathEscape(id), payload, &env); err != nil {
		return core.Expense{}, err
	}
	return env.Expense, nil
}

// DeleteExpense implements ledger.ExpenseWriter.
func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/expense/"+url.PathEscape(id), nil, nil)
}

// AddNote implements ledger.NoteEditor. With an image attached the request
// becomes a multipart upload of text/author/date/image; both forms yield an
// equivalent note record server-side.
func (c *Client) AddNote(ctx context.Context, id string, n core.Note, img *ledger.ImageAttachment) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if err := img.Validate(); err != nil {
		return err
	}
	path := "/expense/notes/" + url.PathEscape(id)
	if img == nil {
		payload := map[string]any{
			"text":   n.Text,
			"author": n.Author,
			"date":   n.Date.UTC().Format(time.RFC3339),
		}
		return c.doJSON(ctx, http.MethodPut, path, payload, nil)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("text", n.Text)
	_ = w.WriteField("author", n.Author)
	_ = w.WriteField("date", n.Date.UTC().Format(time.RFC3339))
	part, err := w.CreateFormFile("image", img.Filename)
	if err != nil {
		return fmt.Errorf("build multipart image: %w", err)
	}
	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("write multipart image: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, &buf, w.FormDataContentType(), nil)
}

// DeleteNote implements ledger.NoteEditor.
func (c *Client) DeleteNote(ctx context.Context, id string, index int) error {
	if index < 0 {
		return core.ErrNoteIndexOutOfRange
	}
	path := "/expense/notes/" + url.PathEscape(id) + "/" + strconv.Itoa(index)
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

// ListBanks implements ledger.BankLister.
func (c *Client) ListBanks(ctx context.Context) ([]core.Bank, error) {
	var banks []core.Bank
	if err := c.doJSON(ctx, http.MethodGet, "/banks", nil, &banks); err != nil {
		return nil, err
	}
	return banks, nil
}

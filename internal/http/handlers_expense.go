package http

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"fido/internal/core"
	"fido/internal/ledger"
	"fido/internal/services"
)

// expenseView is the expense plus the derived flags screens key off. The
// flags are computed from the authoritative state in the same response, so
// the UI never derives them from stale data.
type expenseView struct {
	core.Expense
	OutstandingBalance core.Money    `json:"outstandingBalance"`
	OutstandingDisplay string        `json:"outstandingDisplay"`
	NextStatuses       []core.Status `json:"nextStatuses"`
	CanPay             bool          `json:"canPay"`
	CanDelete          bool          `json:"canDelete"`
	CanReset           bool          `json:"canReset"`
	Final              bool          `json:"final"`
}

func viewOf(e core.Expense) expenseView {
	next := e.NextStatuses()
	if next == nil {
		next = []core.Status{}
	}
	outstanding := e.OutstandingBalance()
	return expenseView{
		Expense:            e,
		OutstandingBalance: outstanding,
		OutstandingDisplay: core.FormatNaira(outstanding.Kobo),
		NextStatuses:       next,
		CanPay:             e.CanPay(),
		CanDelete:          e.CanDelete(),
		CanReset:           e.CanReset(),
		Final:              e.Status.Terminal(),
	}
}

func (s *Server) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &badRequestError{msg: "invalid JSON body"}
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return &badRequestError{msg: "invalid field: " + strings.ToLower(verrs[0].Field())}
		}
		return &badRequestError{msg: "invalid request"}
	}
	return nil
}

type badRequestError struct{ msg string }

func (e *badRequestError) Error() string { return e.msg }

func respondBadRequest(w http.ResponseWriter, r *http.Request, err error) bool {
	var br *badRequestError
	if errors.As(err, &br) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: br.msg})
		return true
	}
	return false
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	detail, err := s.service.LoadDetail(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	banks := detail.Banks
	if banks == nil {
		banks = []core.Bank{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"expense": viewOf(detail.Expense),
		"banks":   banks,
	})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := ledger.ListQuery{
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pagesize", 10),
		Search:   r.URL.Query().Get("search"),
	}
	expenses, err := s.service.List(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	views := make([]expenseView, 0, len(expenses))
	for _, e := range expenses {
		views = append(views, viewOf(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": views})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

type productRequest struct {
	Name   string     `json:"name" validate:"required"`
	Qty    int64      `json:"qty" validate:"gt=0"`
	Price  core.Money `json:"price"`
	Amount core.Money `json:"amount"`
}

type createExpenseRequest struct {
	Title    string           `json:"title" validate:"required,max=200"`
	Vendor   string           `json:"vendor" validate:"required"`
	Site     string           `json:"site"`
	Category string           `json:"category"`
	Products []productRequest `json:"products" validate:"required,min=1,dive"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		if !respondBadRequest(w, r, err) {
			respondError(w, r, err)
		}
		return
	}

	e := core.Expense{
		Title:    req.Title,
		Vendor:   core.Vendor{Name: req.Vendor},
		Site:     req.Site,
		Category: req.Category,
	}
	for _, p := range req.Products {
		e.Products = append(e.Products, core.Product{
			Name:   p.Name,
			Qty:    p.Qty,
			Price:  p.Price,
			Amount: p.Amount,
		})
		e.TxnAmount.Kobo += p.Amount.Kobo
	}

	id, err := s.service.Create(r.Context(), e)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

type updateStatusRequest struct {
	Status  string `json:"status" validate:"required"`
	Updater string `json:"updater" validate:"required"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := s.decodeAndValidate(r, &req); err != nil {
		if !respondBadRequest(w, r, err) {
			respondError(w, r, err)
		}
		return
	}

	next := core.Status(req.Status)
	if !next.Known() {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: "unknown status: " + req.Status})
		return
	}

	e, err := s.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), next, req.Updater)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

type paymentBody struct {
	Amount   json.RawMessage `json:"amount"`
	BankAcct string          `json:"bankAcct" validate:"required"`
	Payer    string          `json:"payer" validate:"required"`
}

// decodeAmount reads an amount that arrives either as a Naira number or as
// the free-text string the payment form submits ("4000.50", "4000,50").
func decodeAmount(raw json.RawMessage) (core.Money, error) {
	if len(raw) == 0 {
		return core.Money{}, core.ErrInvalidAmount
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return core.Money{}, core.ErrInvalidAmount
		}
		kobo, err := core.ParseDecimalToKobo(s)
		if err != nil {
			return core.Money{}, err
		}
		return core.Money{Kobo: kobo}, nil
	}
	var m core.Money
	if err := m.UnmarshalJSON(raw); err != nil {
		return core.Money{}, core.ErrInvalidAmount
	}
	return m, nil
}

func (s *Server) handleMakePayment(w http.ResponseWriter, r *http.Request) {
	var req paymentBody
	if err := s.decodeAndValidate(r, &req); err != nil {
		if !respondBadRequest(w, r, err) {
			respondError(w, r, err)
		}
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	e, err := s.service.MakePayment(r.Context(), chi.URLParam(r, "id"), services.PaymentRequest{
		Amount:   amount,
		BankAcct: req.BankAcct,
		Payer:    req.Payer,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	// Totals shift after a payment lands.
	s.totals.Delete(totalsCacheKey)
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

type previewBody struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *Server) handlePreviewPayment(w http.ResponseWriter, r *http.Request) {
	var req previewBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid JSON body"})
		return
	}
	amount, err := decodeAmount(req.Amount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	plan, err := s.service.PreviewPayment(r.Context(), chi.URLParam(r, "id"), amount)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"newBalance": plan.NewBalance,
		"newStatus":  plan.NewStatus,
	})
}

type noteBody struct {
	Text   string `json:"text" validate:"required"`
	Author string `json:"author" validate:"required"`
}

func (s *Server) handleAddNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		s.handleAddNoteMultipart(w, r, id)
		return
	}

	var req noteBody
	if err := s.decodeAndValidate(r, &req); err != nil {
		if !respondBadRequest(w, r, err) {
			respondError(w, r, err)
		}
		return
	}

	e, err := s.service.AddNote(r.Context(), id, req.Text, req.Author, nil)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

func (s *Server) handleAddNoteMultipart(w http.ResponseWriter, r *http.Request, id string) {
	// Form limit leaves headroom over the image cap for the text parts.
	if err := r.ParseMultipartForm(ledger.MaxImageBytes + 64*1024); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid multipart body"})
		return
	}

	text := r.FormValue("text")
	author := r.FormValue("author")

	var img *ledger.ImageAttachment
	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		data, readErr := io.ReadAll(io.LimitReader(file, ledger.MaxImageBytes+1))
		if readErr != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "unreadable image upload"})
			return
		}
		img = &ledger.ImageAttachment{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid image upload"})
		return
	}

	e, err := s.service.AddNote(r.Context(), id, text, author, img)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid note index"})
		return
	}

	e, err := s.service.DeleteNote(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	e, err := s.service.Reset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": viewOf(e)})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	s.totals.Delete(totalsCacheKey)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

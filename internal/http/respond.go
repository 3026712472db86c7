package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"fido/internal/core"
	"fido/internal/ledger"
	applog "fido/internal/log"
)

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// validationErrs are the domain failures surfaced as 422: the request was
// understood but the expense's state or the payload forbids it.
var validationErrs = []error{
	core.ErrInvalidAmount,
	core.ErrExceedsBalance,
	core.ErrPaymentNotAllowed,
	core.ErrIllegalTransition,
	core.ErrDeleteNotAllowed,
	core.ErrResetNotAllowed,
	core.ErrNoteIndexOutOfRange,
	core.ErrEmptyTitle,
	core.ErrEmptyVendor,
	core.ErrNoProducts,
	core.ErrInvalidQuantity,
	core.ErrLineAmountMismatch,
	core.ErrEmptyNoteText,
	ledger.ErrImageTooLarge,
}

// respondError maps domain and transport failures onto the gateway surface.
// Guard failures are 422, auth failures 401, upstream API errors keep their
// status with the server message verbatim, everything else is a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	for _, sentinel := range validationErrs {
		if errors.Is(err, sentinel) {
			writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Message: sentinel.Error()})
			return
		}
	}

	if errors.Is(err, ledger.ErrUnauthenticated) {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Message: "authentication required"})
		return
	}
	if errors.Is(err, ledger.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Message: "not found"})
		return
	}

	var apiErr *ledger.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 || status > 599 {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, errorResponse{Message: apiErr.UserMessage()})
		return
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		slog.WarnContext(r.Context(), "Expense API unreachable", applog.FieldError, err)
		writeJSON(w, http.StatusBadGateway, errorResponse{Message: "Something went wrong"})
		return
	}

	slog.ErrorContext(r.Context(), "Request failed", applog.FieldPath, r.URL.Path, applog.FieldError, err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "Something went wrong"})
}

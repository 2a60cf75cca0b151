package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"financas/internal/core"
	applog "financas/internal/log"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error               string `json:"error"`
	PendingInstallments int    `json:"pending_installments,omitempty"`
}

// badRequest marks request-shape problems that never reach the services.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func newBadRequest(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// validationErrors are the domain errors reported back to the client as 400.
var validationErrors = []error{
	core.ErrInvalidInstallmentCount,
	core.ErrInvalidAmount,
	core.ErrInvalidLimit,
	core.ErrInvalidClosingDay,
	core.ErrInvalidDueDay,
	core.ErrInvalidDay,
	core.ErrInvalidMonth,
	core.ErrEmptyName,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrInvalidType,
	core.ErrUnknownCategory,
}

// writeError maps an error to its status code. Anything unrecognised is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		pending *core.PendingInstallmentsError
		bad     *badRequest
	)
	switch {
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: bad.msg})
	case errors.As(err, &pending):
		writeJSON(w, http.StatusConflict, errorBody{Error: pending.Error(), PendingInstallments: pending.Count})
	case errors.Is(err, core.ErrNotFound), errors.Is(err, core.ErrInvalidCard):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.Is(err, core.ErrDuplicateCategory), errors.Is(err, core.ErrCategoryInUse):
		writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
	case isValidation(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			applog.NewFields().
				WithComponent(applog.ComponentHTTP).
				WithRequest(r.Method, r.URL.Path, r.URL.RawQuery).
				WithError(err).
				ToSlice()...)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
	}
}

func isValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return newBadRequest("request body too large")
		}
		return newBadRequest("invalid JSON body: %v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, newBadRequest("%s %q", errInvalidID, r.PathValue("id"))
	}
	return id, nil
}

func parsePeriod(r *http.Request) (core.Period, error) {
	var p core.Period
	q := r.URL.Query()
	for _, f := range []struct {
		key string
		dst *core.Date
	}{{"from", &p.From}, {"to", &p.To}} {
		v := q.Get(f.key)
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			return core.Period{}, newBadRequest("invalid %s: %v", f.key, err)
		}
		*f.dst = d
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.To.Before(p.From.Time) {
		return core.Period{}, newBadRequest("to must not be before from")
	}
	return p, nil
}

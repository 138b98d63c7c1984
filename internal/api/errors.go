package api

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/unimerch/shop-api/internal/domain/catalog"
	"github.com/unimerch/shop-api/internal/domain/order"
	"github.com/unimerch/shop-api/internal/domain/promo"
)

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string
	Message string
}

// FieldErrors is the error type produced by DTO parsing.
type FieldErrors []FieldError

func (e FieldErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Field + ": " + fe.Message
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// writeError encodes the error envelope {error_code, message, details?}.
func writeError(w http.ResponseWriter, status int, code, message string, details FieldErrors) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("error_code")
	e.Str(code)
	e.FieldStart("message")
	e.Str(message)
	if len(details) > 0 {
		e.FieldStart("details")
		e.ArrStart()
		for _, fe := range details {
			e.ObjStart()
			e.FieldStart("field")
			e.Str(fe.Field)
			e.FieldStart("message")
			e.Str(fe.Message)
			e.ObjEnd()
		}
		e.ArrEnd()
	}
	e.ObjEnd()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeDomainError maps domain errors to the HTTP taxonomy. Anything
// unrecognized is logged and reported as a generic 500 so internals
// never leak to clients.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs FieldErrors
	if errors.As(err, &fieldErrs) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "request validation failed", fieldErrs)
		return
	}

	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, catalog.ErrCategoryNotFound),
		errors.Is(err, catalog.ErrProductNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
		return
	case errors.Is(err, catalog.ErrSlugTaken):
		writeError(w, http.StatusConflict, "SLUG_TAKEN", err.Error(), nil)
		return
	case errors.Is(err, catalog.ErrProductInUse):
		writeError(w, http.StatusConflict, "PRODUCT_IN_USE", err.Error(), nil)
		return
	case errors.Is(err, order.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, "CONFLICT", err.Error(), nil)
		return
	}

	var invalidQty *order.InvalidQuantityError
	if errors.As(err, &invalidQty) {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", invalidQty.Error(), nil)
		return
	}

	var notFound *order.ProductNotFoundError
	if errors.As(err, &notFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", notFound.Error(), nil)
		return
	}

	var unavailable *order.ProductUnavailableError
	if errors.As(err, &unavailable) {
		code := "PRODUCT_UNAVAILABLE"
		if unavailable.Reason == order.ReasonInsufficientStock {
			code = "INSUFFICIENT_STOCK"
		}
		writeError(w, http.StatusConflict, code, unavailable.Error(), nil)
		return
	}

	var conflict *order.StatusConflictError
	if errors.As(err, &conflict) {
		writeError(w, http.StatusConflict, "STATUS_CONFLICT", conflict.Error(), nil)
		return
	}

	if reason := promo.Reason(err); reason != "" {
		writeError(w, http.StatusBadRequest, "PROMO_"+strings.ToUpper(reason), err.Error(), nil)
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal server error", nil)
}

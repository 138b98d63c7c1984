package api

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/metric"

	"github.com/unimerch/shop-api/internal/domain/promo"
)

// validatePromo prices the given cart with the promo code applied.
// Promo rejections answer 400 with valid=false and a machine-readable
// reason so the frontend can show inline feedback. Cart problems
// (unknown product, bad quantity) still use the error envelope.
func (h *Handler) validatePromo(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parsePromoValidateRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	quote, err := h.orders.Quote(r.Context(), req.Items, req.Code)
	if err != nil {
		if reason := promo.Reason(err); reason != "" {
			if h.metrics != nil {
				h.metrics.promoRejections.Add(r.Context(), 1,
					metric.WithAttributes(reasonKey.String(reason)))
			}
			var e jx.Encoder
			e.ObjStart()
			e.FieldStart("valid")
			e.Bool(false)
			e.FieldStart("reason")
			e.Str(reason)
			e.ObjEnd()
			writeJSON(w, http.StatusBadRequest, &e)
			return
		}
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("valid")
	e.Bool(true)
	e.FieldStart("code")
	e.Str(quote.Promo.Code)
	e.FieldStart("discount_type")
	e.Str(string(quote.Promo.DiscountType))
	e.FieldStart("value")
	e.Str(quote.Promo.Value.String())
	e.FieldStart("subtotal")
	e.Int64(quote.Subtotal)
	e.FieldStart("discount_amount")
	e.Int64(quote.Discount)
	e.FieldStart("total")
	e.Int64(quote.Total)
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

package api

import (
	"net/http"

	"github.com/go-faster/jx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/unimerch/shop-api/internal/domain/order"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parseOrderRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	placed, err := h.orders.Place(r.Context(), order.PlaceRequest{
		Items:            req.Items,
		PromoCode:        req.PromoCode,
		CustomerName:     req.CustomerName,
		Phone:            req.Phone,
		TelegramUsername: req.TelegramUsername,
		PaymentMethod:    order.PaymentMethod(req.PaymentMethod),
		Comment:          req.Comment,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	ctx := r.Context()
	trace.SpanFromContext(ctx).SetAttributes(paymentMethodKey.String(string(placed.PaymentMethod)))
	if h.metrics != nil {
		attrs := metric.WithAttributes(paymentMethodKey.String(string(placed.PaymentMethod)))
		h.metrics.ordersPlaced.Add(ctx, 1, attrs)
		h.metrics.revenue.Add(ctx, placed.Total, attrs)
	}

	var e jx.Encoder
	encodeOrder(&e, placed)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.ListFilter{Status: order.Status(q.Get("status"))}
	var err error
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(q, "offset"); err != nil {
		writeDomainError(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Confirm(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if h.metrics != nil {
		h.metrics.ordersCancelled.Add(r.Context(), 1)
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

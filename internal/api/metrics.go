package api

import (
	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the API-level business counters. HTTP-level metrics
// (latency, status codes) come from the otelhttp middleware; these
// track what the shop actually sells.
type Metrics struct {
	ordersPlaced    metric.Int64Counter
	ordersCancelled metric.Int64Counter
	promoRejections metric.Int64Counter
	revenue         metric.Int64Counter
}

// NewMetrics registers the API counters on the given provider.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("shop-api")

	ordersPlaced, err := meter.Int64Counter("orders_placed_total",
		metric.WithDescription("Orders successfully placed"))
	if err != nil {
		return nil, errors.Wrap(err, "orders_placed_total")
	}
	ordersCancelled, err := meter.Int64Counter("orders_cancelled_total",
		metric.WithDescription("Orders cancelled"))
	if err != nil {
		return nil, errors.Wrap(err, "orders_cancelled_total")
	}
	promoRejections, err := meter.Int64Counter("promo_rejections_total",
		metric.WithDescription("Promo validations rejected, by reason"))
	if err != nil {
		return nil, errors.Wrap(err, "promo_rejections_total")
	}
	revenue, err := meter.Int64Counter("order_revenue_minor_units",
		metric.WithDescription("Total of placed orders in minor currency units"))
	if err != nil {
		return nil, errors.Wrap(err, "order_revenue_minor_units")
	}

	return &Metrics{
		ordersPlaced:    ordersPlaced,
		ordersCancelled: ordersCancelled,
		promoRejections: promoRejections,
		revenue:         revenue,
	}, nil
}

var paymentMethodKey = attribute.Key("payment_method")

var reasonKey = attribute.Key("reason")

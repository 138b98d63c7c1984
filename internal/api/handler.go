// Package api exposes the REST surface of the merch shop: catalog
// CRUD, promo validation, and the order lifecycle. Request and
// response bodies are encoded by hand with go-faster/jx; routing uses
// net/http method patterns.
package api

import (
	"net/http"

	"github.com/unimerch/shop-api/internal/domain/auth"
	"github.com/unimerch/shop-api/internal/domain/catalog"
	"github.com/unimerch/shop-api/internal/domain/order"
)

// Handler serves the API routes, delegating business logic to the
// injected repositories and services.
type Handler struct {
	categories catalog.CategoryRepository
	products   catalog.ProductRepository
	orders     *order.Service
	apikeys    auth.Repository
	pepper     []byte
	// metrics is optional; counters are skipped when nil.
	metrics *Metrics
}

// NewHandler constructs a Handler with its domain dependencies. The
// pepper feeds API key hashing for admin-route authentication.
func NewHandler(
	categories catalog.CategoryRepository,
	products catalog.ProductRepository,
	orders *order.Service,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		categories: categories,
		products:   products,
		orders:     orders,
		apikeys:    apikeys,
		pepper:     pepper,
	}
}

// WithMetrics attaches business counters to the handler.
func (h *Handler) WithMetrics(m *Metrics) *Handler {
	h.metrics = m
	return h
}

// Routes registers every API route on a fresh mux. Mutating catalog
// routes and order administration require an API key; the storefront
// reads and order placement are public.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	handle := func(method, path string, fn http.HandlerFunc) {
		// Each route answers with and without a trailing slash, matching
		// what the Mini App frontend already sends.
		mux.HandleFunc(method+" "+path, fn)
		mux.HandleFunc(method+" "+path+"/{$}", fn)
	}

	handle("GET", "/api/v1/categories", h.listCategories)
	handle("POST", "/api/v1/categories", h.requireAPIKey(h.createCategory))
	handle("GET", "/api/v1/categories/{id}", h.getCategory)
	handle("PUT", "/api/v1/categories/{id}", h.requireAPIKey(h.updateCategory))
	handle("DELETE", "/api/v1/categories/{id}", h.requireAPIKey(h.deleteCategory))

	handle("GET", "/api/v1/products", h.listProducts)
	handle("POST", "/api/v1/products", h.requireAPIKey(h.createProduct))
	handle("GET", "/api/v1/products/{id}", h.getProduct)
	handle("PUT", "/api/v1/products/{id}", h.requireAPIKey(h.updateProduct))
	handle("DELETE", "/api/v1/products/{id}", h.requireAPIKey(h.deleteProduct))

	handle("POST", "/api/v1/promos/validate", h.validatePromo)

	handle("POST", "/api/v1/orders", h.placeOrder)
	handle("GET", "/api/v1/orders", h.requireAPIKey(h.listOrders))
	handle("GET", "/api/v1/orders/{id}", h.getOrder)
	handle("POST", "/api/v1/orders/{id}/confirm", h.requireAPIKey(h.confirmOrder))
	handle("POST", "/api/v1/orders/{id}/cancel", h.requireAPIKey(h.cancelOrder))

	return mux
}

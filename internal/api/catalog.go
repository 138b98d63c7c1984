package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-faster/jx"

	"github.com/unimerch/shop-api/internal/domain/catalog"
)

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, FieldErrors{{Field: "id", Message: "must be a positive integer"}}
	}
	return id, nil
}

// queryInt parses an optional integer query parameter; absence is zero.
func queryInt(q url.Values, field string) (int, error) {
	v := q.Get(field)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, FieldErrors{{Field: field, Message: "must be an integer"}}
	}
	return n, nil
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("show_inactive") == "true"
	categories, err := h.categories.List(r.Context(), includeInactive)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, c := range categories {
		encodeCategory(&e, c)
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.categories.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCategory(&e, *c)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) createCategory(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parseCategoryRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c := catalog.Category{
		Name:      req.Name,
		Slug:      req.Slug,
		SortOrder: req.SortOrder,
		IsActive:  req.IsActive,
	}
	if err := h.categories.Create(r.Context(), &c); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCategory(&e, c)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parseCategoryRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	c := catalog.Category{
		ID:        id,
		Name:      req.Name,
		Slug:      req.Slug,
		SortOrder: req.SortOrder,
		IsActive:  req.IsActive,
	}
	if err := h.categories.Update(r.Context(), &c); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeCategory(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.categories.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := catalog.ProductFilter{
		IncludeInactive: q.Get("show_inactive") == "true",
		Search:          q.Get("search"),
		Sort:            q.Get("ordering"),
	}
	if v := q.Get("category_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeDomainError(w, r, FieldErrors{{Field: "category_id", Message: "must be an integer"}})
			return
		}
		filter.CategoryID = &id
	}
	var err error
	if filter.Limit, err = queryInt(q, "limit"); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(q, "offset"); err != nil {
		writeDomainError(w, r, err)
		return
	}

	page, err := h.products.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("total")
	e.Int64(page.Total)
	e.FieldStart("products")
	e.ArrStart()
	for _, p := range page.Products {
		encodeProduct(&e, p)
	}
	e.ArrEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parseProductRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	p := productFromRequest(req)
	if err := h.products.Create(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusCreated, &e)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	data, err := readBody(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	req, err := parseProductRequest(data)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	p := productFromRequest(req)
	p.ID = id
	if err := h.products.Update(r.Context(), p); err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeProduct(&e, *p)
	writeJSON(w, http.StatusOK, &e)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.products.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func productFromRequest(req *productRequest) *catalog.Product {
	return &catalog.Product{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		StockQuantity: req.StockQuantity,
		IsActive:      req.IsActive,
		CategoryID:    req.CategoryID,
	}
}

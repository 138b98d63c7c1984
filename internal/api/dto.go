package api

import (
	"io"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/unimerch/shop-api/internal/domain/catalog"
	"github.com/unimerch/shop-api/internal/domain/order"
)

// maxBodySize caps request bodies; catalog and order payloads are tiny.
const maxBodySize = 1 << 20

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		return nil, FieldErrors{{Field: "body", Message: "unreadable request body"}}
	}
	return data, nil
}

// malformed is the parse failure for bodies that are not valid JSON of
// the expected shape.
var malformed = FieldErrors{{Field: "body", Message: "malformed JSON"}}

// categoryRequest is the decoded body for category create/update.
type categoryRequest struct {
	Name      string
	Slug      string
	SortOrder int
	IsActive  bool
}

func parseCategoryRequest(data []byte) (*categoryRequest, error) {
	req := categoryRequest{IsActive: true}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "slug":
			req.Slug, err = d.Str()
		case "sort_order":
			req.SortOrder, err = d.Int()
		case "is_active":
			req.IsActive, err = d.Bool()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, malformed
	}

	var errs FieldErrors
	if req.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if req.Slug == "" {
		errs = append(errs, FieldError{Field: "slug", Message: "required"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &req, nil
}

// productRequest is the decoded body for product create/update.
type productRequest struct {
	Name          string
	Slug          string
	Description   string
	Price         int64
	priceSet      bool
	DiscountPrice *int64
	StockQuantity int
	IsActive      bool
	CategoryID    *int64
}

func parseProductRequest(data []byte) (*productRequest, error) {
	req := productRequest{IsActive: true}
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "slug":
			req.Slug, err = d.Str()
		case "description":
			req.Description, err = d.Str()
		case "price":
			req.Price, err = d.Int64()
			req.priceSet = err == nil
		case "discount_price":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v int64
			if v, err = d.Int64(); err == nil {
				req.DiscountPrice = &v
			}
		case "stock_quantity":
			req.StockQuantity, err = d.Int()
		case "is_active":
			req.IsActive, err = d.Bool()
		case "category_id":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var v int64
			if v, err = d.Int64(); err == nil {
				req.CategoryID = &v
			}
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, malformed
	}

	var errs FieldErrors
	if req.Name == "" {
		errs = append(errs, FieldError{Field: "name", Message: "required"})
	}
	if req.Slug == "" {
		errs = append(errs, FieldError{Field: "slug", Message: "required"})
	}
	if !req.priceSet {
		errs = append(errs, FieldError{Field: "price", Message: "required"})
	} else if req.Price < 0 {
		errs = append(errs, FieldError{Field: "price", Message: "must not be negative"})
	}
	if req.DiscountPrice != nil {
		if *req.DiscountPrice < 0 {
			errs = append(errs, FieldError{Field: "discount_price", Message: "must not be negative"})
		} else if req.priceSet && *req.DiscountPrice >= req.Price {
			errs = append(errs, FieldError{Field: "discount_price", Message: "must be less than price"})
		}
	}
	if req.StockQuantity < 0 {
		errs = append(errs, FieldError{Field: "stock_quantity", Message: "must not be negative"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &req, nil
}

func parseCartItems(d *jx.Decoder, items *[]order.CartLine) error {
	return d.Arr(func(d *jx.Decoder) error {
		var line order.CartLine
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				line.ProductID, err = d.Int64()
			case "quantity":
				line.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		*items = append(*items, line)
		return nil
	})
}

func validateCartItems(items []order.CartLine, errs FieldErrors) FieldErrors {
	if len(items) == 0 {
		return append(errs, FieldError{Field: "items", Message: "required"})
	}
	for _, it := range items {
		if it.ProductID <= 0 {
			errs = append(errs, FieldError{Field: "items.product_id", Message: "must be a positive product id"})
		}
		if it.Quantity <= 0 {
			errs = append(errs, FieldError{Field: "items.quantity", Message: "must be greater than 0"})
		}
	}
	return errs
}

// promoValidateRequest is the decoded body for POST /promos/validate.
type promoValidateRequest struct {
	Code  string
	Items []order.CartLine
}

func parsePromoValidateRequest(data []byte) (*promoValidateRequest, error) {
	var req promoValidateRequest
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			req.Code, err = d.Str()
		case "items":
			err = parseCartItems(d, &req.Items)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, malformed
	}

	var errs FieldErrors
	if req.Code == "" {
		errs = append(errs, FieldError{Field: "code", Message: "required"})
	}
	errs = validateCartItems(req.Items, errs)
	if len(errs) > 0 {
		return nil, errs
	}
	return &req, nil
}

// orderRequest is the decoded body for POST /orders.
type orderRequest struct {
	Items            []order.CartLine
	PromoCode        string
	CustomerName     string
	Phone            string
	TelegramUsername string
	PaymentMethod    string
	Comment          string
}

func parseOrderRequest(data []byte) (*orderRequest, error) {
	var req orderRequest
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items":
			err = parseCartItems(d, &req.Items)
		case "promo_code":
			req.PromoCode, err = d.Str()
		case "customer_name":
			req.CustomerName, err = d.Str()
		case "phone":
			req.Phone, err = d.Str()
		case "telegram_username":
			req.TelegramUsername, err = d.Str()
		case "payment_method":
			req.PaymentMethod, err = d.Str()
		case "comment":
			req.Comment, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, malformed
	}

	var errs FieldErrors
	errs = validateCartItems(req.Items, errs)
	if req.CustomerName == "" {
		errs = append(errs, FieldError{Field: "customer_name", Message: "required"})
	}
	if req.Phone == "" {
		errs = append(errs, FieldError{Field: "phone", Message: "required"})
	}
	if !order.PaymentMethod(req.PaymentMethod).Valid() {
		errs = append(errs, FieldError{Field: "payment_method", Message: "must be cash or card"})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return &req, nil
}

// Response encoders. Everything goes through jx so the wire shapes stay
// in one place.

func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func encodeCategory(e *jx.Encoder, c catalog.Category) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(c.ID)
	e.FieldStart("name")
	e.Str(c.Name)
	e.FieldStart("slug")
	e.Str(c.Slug)
	e.FieldStart("sort_order")
	e.Int(c.SortOrder)
	e.FieldStart("is_active")
	e.Bool(c.IsActive)
	e.ObjEnd()
}

func encodeProduct(e *jx.Encoder, p catalog.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Int64(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("slug")
	e.Str(p.Slug)
	e.FieldStart("description")
	e.Str(p.Description)
	e.FieldStart("price")
	e.Int64(p.Price)
	e.FieldStart("discount_price")
	if p.DiscountPrice != nil {
		e.Int64(*p.DiscountPrice)
	} else {
		e.Null()
	}
	e.FieldStart("effective_price")
	e.Int64(p.EffectivePrice())
	e.FieldStart("stock_quantity")
	e.Int(p.StockQuantity)
	e.FieldStart("is_active")
	e.Bool(p.IsActive)
	e.FieldStart("category_id")
	if p.CategoryID != nil {
		e.Int64(*p.CategoryID)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("customer_name")
	e.Str(o.CustomerName)
	e.FieldStart("phone")
	e.Str(o.Phone)
	e.FieldStart("telegram_username")
	e.Str(o.TelegramUsername)
	e.FieldStart("payment_method")
	e.Str(string(o.PaymentMethod))
	e.FieldStart("comment")
	e.Str(o.Comment)
	e.FieldStart("promo_code")
	if o.PromoCode != "" {
		e.Str(o.PromoCode)
	} else {
		e.Null()
	}
	e.FieldStart("subtotal")
	e.Int64(o.Subtotal)
	e.FieldStart("discount_amount")
	e.Int64(o.DiscountAmount)
	e.FieldStart("total")
	e.Int64(o.Total)
	e.FieldStart("items")
	e.ArrStart()
	for _, it := range o.Items {
		e.ObjStart()
		e.FieldStart("product_id")
		e.Int64(it.ProductID)
		e.FieldStart("name")
		e.Str(it.NameSnapshot)
		e.FieldStart("unit_price")
		e.Int64(it.UnitPrice)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("line_total")
		e.Int64(it.LineTotal)
		e.ObjEnd()
	}
	e.ArrEnd()
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.FieldStart("updated_at")
	e.Str(o.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	e.ObjEnd()
}

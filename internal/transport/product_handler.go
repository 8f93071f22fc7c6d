package transport

import (
	"net/http"
	"strings"

	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/middleware"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductImageRequest is one product image in a create or update payload
type ProductImageRequest struct {
	URL       string `json:"url" validate:"required,max=2048"`
	AltText   string `json:"alt_text" validate:"max=255"`
	Position  int    `json:"position" validate:"min=0"`
	IsPrimary bool   `json:"is_primary"`
}

// ProductDocumentRequest is one downloadable document
type ProductDocumentRequest struct {
	Title   string `json:"title" validate:"required,max=255"`
	URL     string `json:"url" validate:"required,max=2048"`
	DocType string `json:"doc_type" validate:"omitempty,doc_type"`
}

// BulkDiscountRequest is one bulk discount tier
type BulkDiscountRequest struct {
	MinQuantity     int             `json:"min_quantity" validate:"required,min=1"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
}

// ProductRequest represents a product create or update payload. Children are replaced
// wholesale on update.
type ProductRequest struct {
	Name           string                   `json:"name" validate:"required,max=255"`
	Slug           string                   `json:"slug" validate:"omitempty,max=100"`
	Description    string                   `json:"description" validate:"max=20000"`
	Category       string                   `json:"category" validate:"required,product_category"`
	Material       string                   `json:"material" validate:"max=100"`
	Size           string                   `json:"size" validate:"max=100"`
	PressureRating string                   `json:"pressure_rating" validate:"max=100"`
	Price          decimal.Decimal          `json:"price"`
	Unit           string                   `json:"unit" validate:"max=50"`
	StockStatus    string                   `json:"stock_status" validate:"omitempty,stock_status"`
	Specifications map[string]string        `json:"specifications" validate:"max=100"`
	IsActive       *bool                    `json:"is_active"`
	Images         []ProductImageRequest    `json:"images" validate:"max=50,dive"`
	Documents      []ProductDocumentRequest `json:"documents" validate:"max=50,dive"`
	BulkDiscounts  []BulkDiscountRequest    `json:"bulk_discounts" validate:"max=20,dive"`
}

func (req ProductRequest) toInput() service.ProductInput {
	in := service.ProductInput{
		Name:           req.Name,
		Slug:           req.Slug,
		Description:    req.Description,
		Category:       req.Category,
		Material:       req.Material,
		Size:           req.Size,
		PressureRating: req.PressureRating,
		Price:          req.Price,
		Unit:           req.Unit,
		StockStatus:    req.StockStatus,
		Specifications: req.Specifications,
		IsActive:       req.IsActive == nil || *req.IsActive,
	}
	for _, img := range req.Images {
		in.Images = append(in.Images, service.ImageInput(img))
	}
	for _, doc := range req.Documents {
		in.Documents = append(in.Documents, service.DocumentInput(doc))
	}
	for _, d := range req.BulkDiscounts {
		in.BulkDiscounts = append(in.BulkDiscounts, service.DiscountInput(d))
	}
	return in
}

// ProductHandler serves the storefront catalog and admin product management
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{productService: productService, logger: logger}
}

// RegisterRoutes registers the catalog and product admin routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/price", h.Price)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)

			r.With(middleware.RequirePermission(middleware.PermAuditRead, h.logger)).Get("/{id}/audit", h.AuditHistory)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequirePermission(middleware.PermProductsWrite, h.logger))
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
		})
	})

	r.With(authMiddleware, middleware.RequirePermission(middleware.PermProductsWrite, h.logger)).
		Get("/api/admin/products", h.ListAdmin)
}

// List serves the public catalog with filtering, sorting and paging
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := service.CatalogQuery{
		Filter: catalog.Filter{
			Category:    q.Get("category"),
			Material:    q.Get("material"),
			Size:        q.Get("size"),
			Search:      q.Get("search"),
			InStockOnly: q.Get("in_stock") == "true",
		},
		SortBy: q.Get("sort"),
		Order:  q.Get("order"),
	}
	query.Page, query.PageSize = pageParams(r)

	var err error
	if query.Filter.MinPrice, err = queryDecimal(r, "min_price"); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "min_price must be a number")
		return
	}
	if query.Filter.MaxPrice, err = queryDecimal(r, "max_price"); err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "max_price must be a number")
		return
	}

	page, err := h.productService.ListCatalog(r.Context(), query)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}
	respondPage(w, page, page.Total, page.TotalPages)
}

// ListAdmin lists products for the back office, inactive ones included
func (h *ProductHandler) ListAdmin(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := repository.ProductListParams{
		Category:   q.Get("category"),
		Search:     q.Get("search"),
		ActiveOnly: q.Get("active") == "true",
		SortBy:     q.Get("sort"),
		SortOrder:  repository.SortOrderAsc,
	}
	if strings.EqualFold(q.Get("order"), catalog.OrderDesc) {
		params.SortOrder = repository.SortOrderDesc
	}
	params.Page, params.PageSize = pageParams(r)

	products, total, err := h.productService.ListAdmin(r.Context(), params)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list products")
		return
	}
	resp := newListResponse(products, params.Page, params.PageSize, total)
	respondPage(w, resp, resp.Total, resp.TotalPages)
}

// Get serves one product by id or slug. Inactive products are visible to signed-in staff only
// through the admin listing.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.productService.Get(r.Context(), chi.URLParam(r, "id"), false)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to get product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Price quotes a quantity of a product after bulk discounts
func (h *ProductHandler) Price(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	quantity, err := queryInt(r, "quantity")
	if err != nil || quantity <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be a positive integer")
		return
	}

	quote, err := h.productService.PriceForQuantity(r.Context(), id, quantity)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to price product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, quote)
}

// Create adds a product
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.Create(r.Context(), req.toInput(), middleware.ActorID(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// Update replaces a product
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req ProductRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	product, err := h.productService.Update(r.Context(), id, req.toInput(), middleware.ActorID(r.Context()))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to update product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// Delete removes a product
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.productService.Delete(r.Context(), id, middleware.ActorID(r.Context())); err != nil {
		respondServiceError(w, h.logger, err, "failed to delete product")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AuditHistory returns a product's audit trail, newest first
func (h *ProductHandler) AuditHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	entries, err := h.productService.AuditHistory(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to load audit history")
		return
	}
	if entries == nil {
		entries = []*domain.AuditLogEntry{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}

func queryDecimal(r *http.Request, name string) (*decimal.Decimal, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

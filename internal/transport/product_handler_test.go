package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func productRouter(svc *MockProductService) http.Handler {
	return newTestRouter(NewProductHandler(svc, zap.NewNop()))
}

func TestProductHandler_ListParsesQuery(t *testing.T) {
	svc := new(MockProductService)
	minPrice := decimal.RequireFromString("2.50")
	svc.On("ListCatalog", mock.Anything, mock.MatchedBy(func(q service.CatalogQuery) bool {
		return q.Filter.Category == domain.CategoryPipes &&
			q.Filter.Material == "PVC" &&
			q.Filter.InStockOnly &&
			q.Filter.MinPrice != nil && q.Filter.MinPrice.Equal(minPrice) &&
			q.Filter.MaxPrice == nil &&
			q.SortBy == catalog.SortByPrice && q.Order == catalog.OrderDesc &&
			q.Page == 2 && q.PageSize == 10
	})).Return(&catalog.Page{Items: []domain.Product{}, Page: 2, PageSize: 10, Total: 25, TotalPages: 3}, nil)

	req := httptest.NewRequest(http.MethodGet,
		"/api/products?category=pipes&material=PVC&in_stock=true&min_price=2.50&sort=price&order=desc&page=2&page_size=10", nil)
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "25", w.Header().Get("X-Total-Count"))
	assert.Equal(t, "3", w.Header().Get("X-Total-Pages"))
	svc.AssertExpectations(t)
}

func TestProductHandler_ListCapsHugePage(t *testing.T) {
	svc := new(MockProductService)
	svc.On("ListCatalog", mock.Anything, mock.MatchedBy(func(q service.CatalogQuery) bool {
		return q.Page == catalog.MaxPage && q.PageSize == catalog.DefaultPageSize
	})).Return(&catalog.Page{Items: []domain.Product{}, Page: catalog.MaxPage, PageSize: catalog.DefaultPageSize}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/products?page=461168601842738792", nil)
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestProductHandler_ListRejectsBadPrice(t *testing.T) {
	svc := new(MockProductService)

	req := httptest.NewRequest(http.MethodGet, "/api/products?max_price=cheap", nil)
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListCatalog", mock.Anything, mock.Anything)
}

func TestProductHandler_GetBySlug(t *testing.T) {
	svc := new(MockProductService)
	product := &domain.Product{ID: uuid.New(), Name: "Gate Valve", Slug: "gate-valve", IsActive: true}
	svc.On("Get", mock.Anything, "gate-valve", false).Return(product, nil)
	svc.On("Get", mock.Anything, "missing", false).Return(nil, repository.ErrProductNotFound)

	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/gate-valve", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Product
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, product.ID, got.ID)

	w = httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProductHandler_Price(t *testing.T) {
	svc := new(MockProductService)
	id := uuid.New()
	svc.On("PriceForQuantity", mock.Anything, id, 25).Return(&catalog.PriceQuote{
		ProductID: id.String(),
		Quantity:  25,
		UnitPrice: decimal.RequireFromString("9.50"),
		Total:     decimal.RequireFromString("237.50"),
	}, nil)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"priced", fmt.Sprintf("/api/products/%s/price?quantity=25", id), http.StatusOK},
		{"missing quantity", fmt.Sprintf("/api/products/%s/price", id), http.StatusBadRequest},
		{"negative quantity", fmt.Sprintf("/api/products/%s/price?quantity=-3", id), http.StatusBadRequest},
		{"bad id", "/api/products/not-a-uuid/price?quantity=1", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			productRouter(svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
	svc.AssertNumberOfCalls(t, "PriceForQuantity", 1)
}

func TestProductHandler_WritesRequirePermission(t *testing.T) {
	svc := new(MockProductService)
	body := []byte(`{"name":"Elbow 90","category":"fittings","price":"3.20"}`)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"viewer", bearer(t, uuid.New(), domain.RoleViewer), http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(body))
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			w := httptest.NewRecorder()
			productRouter(svc).ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestProductHandler_Create(t *testing.T) {
	svc := new(MockProductService)
	editor := uuid.New()

	svc.On("Create", mock.Anything, mock.MatchedBy(func(in service.ProductInput) bool {
		return in.Name == "Elbow 90" &&
			in.IsActive &&
			in.Price.Equal(decimal.RequireFromString("3.20")) &&
			len(in.Images) == 1 && in.Images[0].IsPrimary &&
			len(in.BulkDiscounts) == 1 && in.BulkDiscounts[0].MinQuantity == 50
	}), &editor).Return(&domain.Product{ID: uuid.New(), Name: "Elbow 90", Slug: "elbow-90"}, nil)

	body := []byte(`{
		"name": "Elbow 90",
		"category": "fittings",
		"price": "3.20",
		"images": [{"url": "/uploads/media/elbow.png", "is_primary": true}],
		"bulk_discounts": [{"min_quantity": 50, "discount_percent": "7.5"}]
	}`)
	req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, editor, domain.RoleEditor))
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	svc.AssertExpectations(t)
}

func TestProductHandler_CreateValidationAndConflicts(t *testing.T) {
	admin := bearer(t, uuid.New(), domain.RoleAdmin)

	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"unknown category", `{"name":"X","category":"widgets","price":"1"}`, nil, http.StatusBadRequest},
		{"malformed json", `{"name":`, nil, http.StatusBadRequest},
		{"duplicate slug", `{"name":"X","slug":"x","category":"pipes","price":"1"}`, repository.ErrDuplicateSlug, http.StatusConflict},
		{"business rule", `{"name":"X","category":"pipes","price":"-1"}`, fmt.Errorf("%w: price must not be negative", service.ErrInvalidInput), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockProductService)
			if tt.err != nil {
				svc.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil, tt.err)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/products", bytes.NewReader([]byte(tt.body)))
			req.Header.Set("Authorization", admin)
			w := httptest.NewRecorder()
			productRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			var resp map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Contains(t, resp, "error")
		})
	}
}

func TestProductHandler_DeleteAndAudit(t *testing.T) {
	svc := new(MockProductService)
	admin := uuid.New()
	id := uuid.New()
	svc.On("Delete", mock.Anything, id, &admin).Return(nil)
	svc.On("AuditHistory", mock.Anything, id).Return([]*domain.AuditLogEntry(nil), nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/products/"+id.String(), nil)
	req.Header.Set("Authorization", bearer(t, admin, domain.RoleAdmin))
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/products/"+id.String()+"/audit", nil)
	req.Header.Set("Authorization", bearer(t, uuid.New(), domain.RoleViewer))
	w = httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	svc.AssertExpectations(t)
}

func TestProductHandler_ListAdmin(t *testing.T) {
	svc := new(MockProductService)
	svc.On("ListAdmin", mock.Anything, repository.ProductListParams{
		Category:  domain.CategoryValves,
		Page:      1,
		PageSize:  catalog.DefaultPageSize,
		SortOrder: repository.SortOrderDesc,
		SortBy:    "price",
	}).Return([]*domain.Product{{ID: uuid.New(), Name: "Old Valve"}}, 41, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/products?category=valves&sort=price&order=desc", nil)
	req.Header.Set("Authorization", bearer(t, uuid.New(), domain.RoleEditor))
	w := httptest.NewRecorder()
	productRouter(svc).ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp ListResponse[domain.Product]
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, 41, resp.Total)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Len(t, resp.Items, 1)
}

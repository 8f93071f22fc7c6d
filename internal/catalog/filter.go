// Package catalog holds the pure catalog operations used by the storefront: filtering,
// sorting, pagination and quantity pricing over already-loaded products.
package catalog

import (
	"sort"
	"strings"

	"pipe-company/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	// MaxPage keeps (page-1)*pageSize far away from int overflow
	MaxPage = 1_000_000
)

// Sort fields
const (
	SortByName      = "name"
	SortByPrice     = "price"
	SortByCreatedAt = "created_at"
)

// Sort orders
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// Filter narrows a product list. Zero-valued fields do not filter.
type Filter struct {
	Category    string
	Material    string
	Size        string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Search      string
	InStockOnly bool
}

// Apply returns the products matching every set criterion, preserving input order
func (f Filter) Apply(products []domain.Product) []domain.Product {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.Material != "" && !strings.EqualFold(p.Material, f.Material) {
			continue
		}
		if f.Size != "" && !strings.EqualFold(p.Size, f.Size) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		if f.InStockOnly && !p.InStock() {
			continue
		}
		if search != "" && !matchesSearch(&p, search) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matchesSearch(p *domain.Product, term string) bool {
	for _, field := range []string{p.Name, p.Description, p.Material, p.Size} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Sort orders products in place by the given field. Unknown fields fall back to name.
// The sort is stable so equal keys keep their input order.
func Sort(products []domain.Product, field, order string) {
	desc := order == OrderDesc

	var less func(a, b *domain.Product) bool
	switch field {
	case SortByPrice:
		less = func(a, b *domain.Product) bool { return a.Price.LessThan(b.Price) }
	case SortByCreatedAt:
		less = func(a, b *domain.Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	default:
		less = func(a, b *domain.Product) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) }
	}

	sort.SliceStable(products, func(i, j int) bool {
		if desc {
			return less(&products[j], &products[i])
		}
		return less(&products[i], &products[j])
	})
}

// Page is one page of a product listing
type Page struct {
	Items      []domain.Product `json:"items"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	Total      int              `json:"total"`
	TotalPages int              `json:"total_pages"`
}

// NormalizePage clamps paging arguments: page to [1, MaxPage], pageSize 0 becomes the
// default and anything else is clamped to [1, MaxPageSize].
func NormalizePage(page, pageSize int) (int, int) {
	switch {
	case page < 1:
		page = 1
	case page > MaxPage:
		page = MaxPage
	}
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 1:
		pageSize = 1
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Paginate slices out one page. A page past the end is empty but still reports totals.
func Paginate(products []domain.Product, page, pageSize int) Page {
	page, pageSize = NormalizePage(page, pageSize)

	total := len(products)
	totalPages := (total + pageSize - 1) / pageSize

	start := total
	if page-1 <= total/pageSize {
		start = min((page-1)*pageSize, total)
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	items := make([]domain.Product, end-start)
	copy(items, products[start:end])

	return Page{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

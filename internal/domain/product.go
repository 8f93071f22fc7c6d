package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product categories
const (
	CategoryPipes       = "pipes"
	CategoryFittings    = "fittings"
	CategoryValves      = "valves"
	CategoryFlanges     = "flanges"
	CategoryAccessories = "accessories"
)

// Stock statuses
const (
	StockInStock     = "in_stock"
	StockLow         = "low_stock"
	StockOut         = "out_of_stock"
	StockMadeToOrder = "made_to_order"
)

// Document types
const (
	DocTypeDatasheet   = "datasheet"
	DocTypeCertificate = "certificate"
	DocTypeManual      = "manual"
	DocTypeDrawing     = "drawing"
)

// ProductCategories lists every catalog category in display order
var ProductCategories = []string{CategoryPipes, CategoryFittings, CategoryValves, CategoryFlanges, CategoryAccessories}

// StockStatuses lists every stock status
var StockStatuses = []string{StockInStock, StockLow, StockOut, StockMadeToOrder}

// DocumentTypes lists every product document type
var DocumentTypes = []string{DocTypeDatasheet, DocTypeCertificate, DocTypeManual, DocTypeDrawing}

// Product represents a product in the catalog
type Product struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Name           string            `json:"name" db:"name"`
	Slug           string            `json:"slug" db:"slug"`
	Description    string            `json:"description" db:"description"`
	Category       string            `json:"category" db:"category"`
	Material       string            `json:"material" db:"material"`
	Size           string            `json:"size" db:"size"`
	PressureRating string            `json:"pressure_rating" db:"pressure_rating"`
	Price          decimal.Decimal   `json:"price" db:"price"`
	Unit           string            `json:"unit" db:"unit"`
	StockStatus    string            `json:"stock_status" db:"stock_status"`
	Specifications map[string]string `json:"specifications" db:"specifications"`
	IsActive       bool              `json:"is_active" db:"is_active"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`

	Images        []ProductImage    `json:"images"`
	Documents     []ProductDocument `json:"documents"`
	BulkDiscounts []BulkDiscount    `json:"bulk_discounts"`
}

// InStock reports whether the product can be ordered without waiting for production
func (p *Product) InStock() bool {
	return p.StockStatus == StockInStock || p.StockStatus == StockLow
}

// PrimaryImage returns the image flagged as primary, falling back to the lowest position
func (p *Product) PrimaryImage() *ProductImage {
	var best *ProductImage
	for i := range p.Images {
		img := &p.Images[i]
		if img.IsPrimary {
			return img
		}
		if best == nil || img.Position < best.Position {
			best = img
		}
	}
	return best
}

// ProductImage is an ordered image attached to a product
type ProductImage struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	URL       string    `json:"url" db:"url"`
	AltText   string    `json:"alt_text" db:"alt_text"`
	Position  int       `json:"position" db:"position"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ProductDocument is a downloadable file (datasheet, certificate, ...) for a product
type ProductDocument struct {
	ID        uuid.UUID `json:"id" db:"id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Title     string    `json:"title" db:"title"`
	URL       string    `json:"url" db:"url"`
	DocType   string    `json:"doc_type" db:"doc_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// BulkDiscount is a quantity tier that lowers the unit price
type BulkDiscount struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ProductID       uuid.UUID       `json:"product_id" db:"product_id"`
	MinQuantity     int             `json:"min_quantity" db:"min_quantity"`
	DiscountPercent decimal.Decimal `json:"discount_percent" db:"discount_percent"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrDuplicateSlug   = errors.New("a product with this slug already exists")
	ErrDuplicateTier   = errors.New("bulk discount tiers must have distinct minimum quantities")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductListParams filters and pages the admin product listing
type ProductListParams struct {
	Category   string
	Search     string
	ActiveOnly bool
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  SortOrder
}

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	SlugExists(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error)
	List(ctx context.Context, params ProductListParams) ([]*domain.Product, int, error)
	ListActive(ctx context.Context) ([]domain.Product, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, slug, description, category, material, size, pressure_rating,
	price, unit, stock_status, specifications, is_active, created_at, updated_at`

// Create inserts a product and its images, documents and discount tiers in one transaction
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	specs, err := marshalSpecs(product.Specifications)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			query,
			product.ID,
			product.Name,
			product.Slug,
			product.Description,
			product.Category,
			product.Material,
			product.Size,
			product.PressureRating,
			product.Price,
			product.Unit,
			product.StockStatus,
			specs,
			product.IsActive,
			product.CreatedAt,
			product.UpdatedAt,
		)
		if err != nil {
			return err
		}
		return insertChildren(ctx, tx, product)
	})

	if err != nil {
		return mapProductWriteError("create", err)
	}
	return nil
}

// Update rewrites the product row and replaces all of its children
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	specs, err := marshalSpecs(product.Specifications)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, slug = $3, description = $4, category = $5, material = $6, size = $7,
		    pressure_rating = $8, price = $9, unit = $10, stock_status = $11,
		    specifications = $12, is_active = $13, updated_at = $14
		WHERE id = $1
	`

	err = withTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(
			ctx,
			query,
			product.ID,
			product.Name,
			product.Slug,
			product.Description,
			product.Category,
			product.Material,
			product.Size,
			product.PressureRating,
			product.Price,
			product.Unit,
			product.StockStatus,
			specs,
			product.IsActive,
			product.UpdatedAt,
		)
		if err != nil {
			return err
		}
		if err := expectOneRow(result, ErrProductNotFound); err != nil {
			return err
		}

		for _, table := range []string{"product_images", "product_documents", "bulk_discounts"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE product_id = $1", product.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return insertChildren(ctx, tx, product)
	})

	if err != nil {
		return mapProductWriteError("update", err)
	}
	return nil
}

// Delete removes a product. Children cascade; quote items keep their name snapshot.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return expectOneRow(result, ErrProductNotFound)
}

// FindByID retrieves a product with its children
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	return r.findOne(ctx, "id = $1", id)
}

// FindBySlug retrieves a product with its children by its URL slug
func (r *productRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.findOne(ctx, "slug = $1", slug)
}

func (r *productRepository) findOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + where

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	if err := r.loadChildren(ctx, []*domain.Product{product}); err != nil {
		return nil, err
	}
	return product, nil
}

// SlugExists reports whether another product already uses slug
func (r *productRepository) SlugExists(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM products WHERE slug = $1 AND ($2::uuid IS NULL OR id <> $2::uuid))`

	var exclude any
	if excludeID != nil {
		exclude = *excludeID
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, slug, exclude).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// List retrieves products with optional filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, params ProductListParams) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price":      true,
		"created_at": true,
		"updated_at": true,
	}

	sortBy := params.SortBy
	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	sortOrder := params.SortOrder
	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	var conditions []string
	args := []interface{}{}
	argIndex := 1

	if params.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, params.Category)
		argIndex++
	}
	if search := strings.TrimSpace(params.Search); search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d OR slug ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+search+"%")
		argIndex++
	}
	if params.ActiveOnly {
		conditions = append(conditions, "is_active = TRUE")
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortBy, sortOrder, argIndex, argIndex+1)

	args = append(args, params.PageSize, offset(params.Page, params.PageSize))

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}

	if err := r.loadChildren(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListActive returns every active product with children, ordered by name
func (r *productRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE is_active = TRUE ORDER BY name, id`

	products, err := r.queryProducts(ctx, query)
	if err != nil {
		return nil, err
	}
	if err := r.loadChildren(ctx, products); err != nil {
		return nil, err
	}

	out := make([]domain.Product, len(products))
	for i, p := range products {
		out[i] = *p
	}
	return out, nil
}

func (r *productRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return products, nil
}

// loadChildren fills images, documents and discounts for a batch of products
func (r *productRepository) loadChildren(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.Product, len(products))
	ids := make([]string, 0, len(products))
	for _, p := range products {
		p.Images = []domain.ProductImage{}
		p.Documents = []domain.ProductDocument{}
		p.BulkDiscounts = []domain.BulkDiscount{}
		byID[p.ID] = p
		ids = append(ids, p.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, url, alt_text, position, is_primary, created_at
		FROM product_images WHERE product_id = ANY($1::uuid[])
		ORDER BY position, created_at
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load product images: %w", err)
	}
	for rows.Next() {
		var img domain.ProductImage
		if err := rows.Scan(&img.ID, &img.ProductID, &img.URL, &img.AltText, &img.Position, &img.IsPrimary, &img.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan product image: %w", err)
		}
		byID[img.ProductID].Images = append(byID[img.ProductID].Images, img)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product images: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, product_id, title, url, doc_type, created_at
		FROM product_documents WHERE product_id = ANY($1::uuid[])
		ORDER BY title
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load product documents: %w", err)
	}
	for rows.Next() {
		var doc domain.ProductDocument
		if err := rows.Scan(&doc.ID, &doc.ProductID, &doc.Title, &doc.URL, &doc.DocType, &doc.CreatedAt); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan product document: %w", err)
		}
		byID[doc.ProductID].Documents = append(byID[doc.ProductID].Documents, doc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating product documents: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `
		SELECT id, product_id, min_quantity, discount_percent, created_at
		FROM bulk_discounts WHERE product_id = ANY($1::uuid[])
		ORDER BY min_quantity
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load bulk discounts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d domain.BulkDiscount
		if err := rows.Scan(&d.ID, &d.ProductID, &d.MinQuantity, &d.DiscountPercent, &d.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan bulk discount: %w", err)
		}
		byID[d.ProductID].BulkDiscounts = append(byID[d.ProductID].BulkDiscounts, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating bulk discounts: %w", err)
	}
	return nil
}

func insertChildren(ctx context.Context, tx *sql.Tx, product *domain.Product) error {
	now := time.Now().UTC()

	for i := range product.Images {
		img := &product.Images[i]
		prepareChild(&img.ID, &img.ProductID, &img.CreatedAt, product.ID, now)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_images (id, product_id, url, alt_text, position, is_primary, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, img.ID, img.ProductID, img.URL, img.AltText, img.Position, img.IsPrimary, img.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product image: %w", err)
		}
	}

	for i := range product.Documents {
		doc := &product.Documents[i]
		prepareChild(&doc.ID, &doc.ProductID, &doc.CreatedAt, product.ID, now)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_documents (id, product_id, title, url, doc_type, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, doc.ID, doc.ProductID, doc.Title, doc.URL, doc.DocType, doc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert product document: %w", err)
		}
	}

	for i := range product.BulkDiscounts {
		d := &product.BulkDiscounts[i]
		prepareChild(&d.ID, &d.ProductID, &d.CreatedAt, product.ID, now)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO bulk_discounts (id, product_id, min_quantity, discount_percent, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, d.ID, d.ProductID, d.MinQuantity, d.DiscountPercent, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert bulk discount: %w", err)
		}
	}
	return nil
}

func prepareChild(id, productID *uuid.UUID, createdAt *time.Time, parent uuid.UUID, now time.Time) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
	*productID = parent
	if createdAt.IsZero() {
		*createdAt = now
	}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var specs []byte
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Slug,
		&product.Description,
		&product.Category,
		&product.Material,
		&product.Size,
		&product.PressureRating,
		&product.Price,
		&product.Unit,
		&product.StockStatus,
		&specs,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Specifications = map[string]string{}
	if len(specs) > 0 {
		if err := json.Unmarshal(specs, &product.Specifications); err != nil {
			return nil, fmt.Errorf("failed to decode specifications: %w", err)
		}
	}
	return product, nil
}

func marshalSpecs(specs map[string]string) (string, error) {
	if specs == nil {
		specs = map[string]string{}
	}
	raw, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("failed to encode specifications: %w", err)
	}
	return string(raw), nil
}

func mapProductWriteError(op string, err error) error {
	switch {
	case errors.Is(err, ErrProductNotFound):
		return err
	case isUniqueViolation(err, "products_slug_key"):
		return ErrDuplicateSlug
	case isUniqueViolation(err, "uq_bulk_discounts_tier"):
		return ErrDuplicateTier
	}
	return fmt.Errorf("failed to %s product: %w", op, err)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"pipe-company/internal/audit"
	"pipe-company/internal/cache"
	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/sanitize"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const maxSlugAttempts = 50

// ProductCache is the catalog cache the product service reads through
type ProductCache interface {
	GetActive(ctx context.Context) ([]domain.Product, error)
	SetActive(ctx context.Context, products []domain.Product, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// ImageInput is an image attached to a product on create or update
type ImageInput struct {
	URL       string
	AltText   string
	Position  int
	IsPrimary bool
}

// DocumentInput is a downloadable document attached to a product
type DocumentInput struct {
	Title   string
	URL     string
	DocType string
}

// DiscountInput is a bulk discount tier
type DiscountInput struct {
	MinQuantity     int
	DiscountPercent decimal.Decimal
}

// ProductInput carries the editable fields of a product
type ProductInput struct {
	Name           string
	Slug           string
	Description    string
	Category       string
	Material       string
	Size           string
	PressureRating string
	Price          decimal.Decimal
	Unit           string
	StockStatus    string
	Specifications map[string]string
	IsActive       bool
	Images         []ImageInput
	Documents      []DocumentInput
	BulkDiscounts  []DiscountInput
}

// CatalogQuery is a storefront listing request
type CatalogQuery struct {
	Filter   catalog.Filter
	SortBy   string
	Order    string
	Page     int
	PageSize int
}

// ProductService defines catalog reads and admin product management
type ProductService interface {
	ListCatalog(ctx context.Context, q CatalogQuery) (*catalog.Page, error)
	ListAdmin(ctx context.Context, params repository.ProductListParams) ([]*domain.Product, int, error)
	Get(ctx context.Context, idOrSlug string, includeInactive bool) (*domain.Product, error)
	PriceForQuantity(ctx context.Context, id uuid.UUID, quantity int) (*catalog.PriceQuote, error)
	Create(ctx context.Context, in ProductInput, actor *uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, id uuid.UUID, in ProductInput, actor *uuid.UUID) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
	AuditHistory(ctx context.Context, id uuid.UUID) ([]*domain.AuditLogEntry, error)
}

type productService struct {
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	cache       ProductCache
	cacheTTL    time.Duration
	logger      *zap.Logger
}

// NewProductService creates a new instance of ProductService. cache may be nil.
func NewProductService(
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	productCache ProductCache,
	cacheTTL time.Duration,
	logger *zap.Logger,
) ProductService {
	if productCache == nil {
		productCache = cache.NewProductCache(nil, "")
	}
	return &productService{
		productRepo: productRepo,
		auditRepo:   auditRepo,
		cache:       productCache,
		cacheTTL:    cacheTTL,
		logger:      logger,
	}
}

// activeProducts reads the catalog through the cache. Cache failures fall back to the database.
func (s *productService) activeProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.cache.GetActive(ctx)
	if err == nil {
		return products, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("Product cache read failed", zap.Error(err))
	}

	products, err = s.productRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	if err := s.cache.SetActive(ctx, products, s.cacheTTL); err != nil {
		s.logger.Warn("Product cache write failed", zap.Error(err))
	}
	return products, nil
}

func (s *productService) invalidateCache(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("Product cache invalidation failed", zap.Error(err))
	}
}

// ListCatalog filters, sorts and pages the active catalog
func (s *productService) ListCatalog(ctx context.Context, q CatalogQuery) (*catalog.Page, error) {
	products, err := s.activeProducts(ctx)
	if err != nil {
		return nil, err
	}

	filtered := q.Filter.Apply(products)
	catalog.Sort(filtered, q.SortBy, q.Order)
	page := catalog.Paginate(filtered, q.Page, q.PageSize)
	return &page, nil
}

// ListAdmin lists products for the back office, inactive ones included unless filtered
func (s *productService) ListAdmin(ctx context.Context, params repository.ProductListParams) ([]*domain.Product, int, error) {
	params.Page, params.PageSize = catalog.NormalizePage(params.Page, params.PageSize)
	products, total, err := s.productRepo.List(ctx, params)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// Get finds a product by id or slug. Inactive products are hidden unless includeInactive.
func (s *productService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*domain.Product, error) {
	var (
		product *domain.Product
		err     error
	)
	if id, parseErr := uuid.Parse(idOrSlug); parseErr == nil {
		product, err = s.productRepo.FindByID(ctx, id)
	} else {
		product, err = s.productRepo.FindBySlug(ctx, strings.ToLower(strings.TrimSpace(idOrSlug)))
	}
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	if !product.IsActive && !includeInactive {
		return nil, repository.ErrProductNotFound
	}
	return product, nil
}

// PriceForQuantity prices a quantity of an active product after bulk discounts
func (s *productService) PriceForQuantity(ctx context.Context, id uuid.UUID, quantity int) (*catalog.PriceQuote, error) {
	if quantity <= 0 {
		return nil, catalog.ErrInvalidQuantity
	}
	product, err := s.Get(ctx, id.String(), false)
	if err != nil {
		return nil, err
	}
	return catalog.PriceForQuantity(product, quantity)
}

// Create validates and stores a new product, recording an audit entry
func (s *productService) Create(ctx context.Context, in ProductInput, actor *uuid.UUID) (*domain.Product, error) {
	now := time.Now().UTC()
	product, err := buildProduct(uuid.New(), in, now)
	if err != nil {
		return nil, err
	}
	product.CreatedAt = now

	if product.Slug, err = s.resolveSlug(ctx, in.Slug, product.Name, nil); err != nil {
		return nil, err
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicateSlug) || errors.Is(err, repository.ErrDuplicateTier) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.invalidateCache(ctx)
	s.recordAudit(ctx, product.ID, domain.AuditActionCreate, audit.Diff(nil, product), actor)

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()), zap.String("slug", product.Slug))
	return product, nil
}

// Update replaces a product's fields and children, recording the changed fields
func (s *productService) Update(ctx context.Context, id uuid.UUID, in ProductInput, actor *uuid.UUID) (*domain.Product, error) {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	product, err := buildProduct(id, in, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	product.CreatedAt = existing.CreatedAt

	slugSource := in.Slug
	if strings.TrimSpace(slugSource) == "" {
		// keep the published URL unless the editor asks for a new one
		slugSource = existing.Slug
	}
	if product.Slug, err = s.resolveSlug(ctx, slugSource, product.Name, &id); err != nil {
		return nil, err
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) || errors.Is(err, repository.ErrDuplicateSlug) || errors.Is(err, repository.ErrDuplicateTier) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.invalidateCache(ctx)
	changes := audit.Diff(existing, product)
	changes = append(changes, childChanges(existing, product)...)
	s.recordAudit(ctx, id, domain.AuditActionUpdate, changes, actor)

	return product, nil
}

// Delete removes a product. Its children cascade and quote items keep the product name.
func (s *productService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	existing, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to get product: %w", err)
	}

	if err := s.productRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrProductNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.invalidateCache(ctx)
	s.recordAudit(ctx, id, domain.AuditActionDelete, audit.Diff(existing, nil), actor)

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// AuditHistory returns the audit trail of one product, newest first
func (s *productService) AuditHistory(ctx context.Context, id uuid.UUID) ([]*domain.AuditLogEntry, error) {
	entries, err := s.auditRepo.ListByEntity(ctx, domain.EntityProduct, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit history: %w", err)
	}
	return entries, nil
}

// recordAudit stores an audit entry. The product write has already happened, so a failure is logged, not returned.
func (s *productService) recordAudit(ctx context.Context, id uuid.UUID, action string, changes []domain.FieldChange, actor *uuid.UUID) {
	entry := audit.NewEntry(domain.EntityProduct, id, action, changes, actor)
	if entry == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry",
			zap.String("product_id", id.String()),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}

// resolveSlug returns requested (normalized) when given, or a free slug derived from name.
// A requested slug that is taken is an error; a derived one gets a numeric suffix.
func (s *productService) resolveSlug(ctx context.Context, requested, name string, excludeID *uuid.UUID) (string, error) {
	if strings.TrimSpace(requested) != "" {
		slug := sanitize.Slug(requested)
		if slug == "" {
			return "", invalidf("slug must contain letters or digits")
		}
		exists, err := s.productRepo.SlugExists(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if exists {
			return "", repository.ErrDuplicateSlug
		}
		return slug, nil
	}

	base := sanitize.Slug(name)
	if base == "" {
		base = "product"
	}
	candidate := base
	for n := 2; n <= maxSlugAttempts; n++ {
		exists, err := s.productRepo.SlugExists(ctx, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug: %w", err)
		}
		if !exists {
			return candidate, nil
		}
		suffix := fmt.Sprintf("-%d", n)
		if len(base)+len(suffix) > 100 {
			base = strings.TrimRight(base[:100-len(suffix)], "-")
		}
		candidate = base + suffix
	}
	return "", repository.ErrDuplicateSlug
}

// buildProduct sanitizes input and enforces the product rules that the database would
// otherwise reject with a less helpful error.
func buildProduct(id uuid.UUID, in ProductInput, now time.Time) (*domain.Product, error) {
	p := &domain.Product{
		ID:             id,
		Name:           sanitize.SingleLine(in.Name),
		Description:    sanitize.Text(in.Description),
		Category:       strings.TrimSpace(in.Category),
		Material:       sanitize.SingleLine(in.Material),
		Size:           sanitize.SingleLine(in.Size),
		PressureRating: sanitize.SingleLine(in.PressureRating),
		Price:          in.Price.Round(2),
		Unit:           sanitize.SingleLine(in.Unit),
		StockStatus:    strings.TrimSpace(in.StockStatus),
		Specifications: sanitize.Specifications(in.Specifications),
		IsActive:       in.IsActive,
		UpdatedAt:      now,
	}

	if p.Name == "" {
		return nil, invalidf("name is required")
	}
	if p.Price.IsNegative() {
		return nil, invalidf("price must not be negative")
	}
	if !slices.Contains(domain.ProductCategories, p.Category) {
		return nil, invalidf("unknown category %q", p.Category)
	}
	if p.StockStatus == "" {
		p.StockStatus = domain.StockInStock
	}
	if !slices.Contains(domain.StockStatuses, p.StockStatus) {
		return nil, invalidf("unknown stock status %q", p.StockStatus)
	}
	if p.Unit == "" {
		p.Unit = "piece"
	}

	primarySeen := false
	for i, img := range in.Images {
		url := sanitize.URL(img.URL)
		if url == "" {
			return nil, invalidf("images[%d].url must be an http(s) or site-relative URL", i)
		}
		position := img.Position
		if position == 0 {
			position = i
		}
		// only the first flagged image stays primary
		primary := img.IsPrimary && !primarySeen
		primarySeen = primarySeen || primary
		p.Images = append(p.Images, domain.ProductImage{
			ID:        uuid.New(),
			ProductID: id,
			URL:       url,
			AltText:   sanitize.SingleLine(img.AltText),
			Position:  position,
			IsPrimary: primary,
			CreatedAt: now,
		})
	}
	if !primarySeen && len(p.Images) > 0 {
		p.Images[0].IsPrimary = true
	}

	for i, doc := range in.Documents {
		url := sanitize.URL(doc.URL)
		if url == "" {
			return nil, invalidf("documents[%d].url must be an http(s) or site-relative URL", i)
		}
		docType := strings.TrimSpace(doc.DocType)
		if docType == "" {
			docType = domain.DocTypeDatasheet
		}
		if !slices.Contains(domain.DocumentTypes, docType) {
			return nil, invalidf("documents[%d].doc_type %q is unknown", i, docType)
		}
		title := sanitize.SingleLine(doc.Title)
		if title == "" {
			return nil, invalidf("documents[%d].title is required", i)
		}
		p.Documents = append(p.Documents, domain.ProductDocument{
			ID:        uuid.New(),
			ProductID: id,
			Title:     title,
			URL:       url,
			DocType:   docType,
			CreatedAt: now,
		})
	}

	seenTiers := make(map[int]bool, len(in.BulkDiscounts))
	for i, d := range in.BulkDiscounts {
		if d.MinQuantity <= 0 {
			return nil, invalidf("bulk_discounts[%d].min_quantity must be positive", i)
		}
		// stored with two decimals, so the range applies to the rounded value
		percent := d.DiscountPercent.Round(2)
		if !percent.IsPositive() || percent.GreaterThan(decimal.NewFromInt(100)) {
			return nil, invalidf("bulk_discounts[%d].discount_percent must be in (0, 100]", i)
		}
		if seenTiers[d.MinQuantity] {
			return nil, repository.ErrDuplicateTier
		}
		seenTiers[d.MinQuantity] = true
		p.BulkDiscounts = append(p.BulkDiscounts, domain.BulkDiscount{
			ID:              uuid.New(),
			ProductID:       id,
			MinQuantity:     d.MinQuantity,
			DiscountPercent: percent,
			CreatedAt:       now,
		})
	}
	slices.SortFunc(p.BulkDiscounts, func(a, b domain.BulkDiscount) int { return a.MinQuantity - b.MinQuantity })

	return p, nil
}

// childChanges summarizes replaced children as counts, since Diff does not descend into them
func childChanges(old, new *domain.Product) []domain.FieldChange {
	var changes []domain.FieldChange
	add := func(field string, before, after int) {
		if before != after {
			changes = append(changes, domain.FieldChange{Field: field, Old: before, New: after})
		}
	}
	add("images", len(old.Images), len(new.Images))
	add("documents", len(old.Documents), len(new.Documents))
	add("bulk_discounts", len(old.BulkDiscounts), len(new.BulkDiscounts))
	return changes
}

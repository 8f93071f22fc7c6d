package integrity

// Severity of a check's violations
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Check is a query returning one identifier per violating row
type Check struct {
	Name        string
	Description string
	Severity    Severity
	Query       string
}

// DefaultChecks is the catalog and quote consistency suite
var DefaultChecks = []Check{
	{
		Name:        "orphaned_product_images",
		Description: "Product images whose product no longer exists",
		Severity:    SeverityError,
		Query: `SELECT i.id::text FROM product_images i
			LEFT JOIN products p ON p.id = i.product_id
			WHERE p.id IS NULL`,
	},
	{
		Name:        "orphaned_product_documents",
		Description: "Product documents whose product no longer exists",
		Severity:    SeverityError,
		Query: `SELECT d.id::text FROM product_documents d
			LEFT JOIN products p ON p.id = d.product_id
			WHERE p.id IS NULL`,
	},
	{
		Name:        "orphaned_bulk_discounts",
		Description: "Bulk discount tiers whose product no longer exists",
		Severity:    SeverityError,
		Query: `SELECT b.id::text FROM bulk_discounts b
			LEFT JOIN products p ON p.id = b.product_id
			WHERE p.id IS NULL`,
	},
	{
		Name:        "dangling_quote_items",
		Description: "Quote items referencing a product that does not exist",
		Severity:    SeverityError,
		Query: `SELECT qi.id::text FROM quote_items qi
			LEFT JOIN products p ON p.id = qi.product_id
			WHERE qi.product_id IS NOT NULL AND p.id IS NULL`,
	},
	{
		Name:        "negative_prices",
		Description: "Products with a price below zero",
		Severity:    SeverityError,
		Query:       `SELECT id::text FROM products WHERE price < 0`,
	},
	{
		Name:        "discounts_out_of_range",
		Description: "Bulk discounts outside (0, 100] percent or with a non-positive minimum quantity",
		Severity:    SeverityError,
		Query: `SELECT id::text FROM bulk_discounts
			WHERE discount_percent <= 0 OR discount_percent > 100 OR min_quantity <= 0`,
	},
	{
		Name:        "multiple_primary_images",
		Description: "Products with more than one image flagged as primary",
		Severity:    SeverityError,
		Query: `SELECT product_id::text FROM product_images
			WHERE is_primary
			GROUP BY product_id HAVING COUNT(*) > 1`,
	},
	{
		Name:        "active_products_without_images",
		Description: "Active products that have no images",
		Severity:    SeverityWarning,
		Query: `SELECT p.id::text FROM products p
			WHERE p.is_active
			AND NOT EXISTS (SELECT 1 FROM product_images i WHERE i.product_id = p.id)`,
	},
	{
		Name:        "quotes_without_items",
		Description: "Quote requests that have no items",
		Severity:    SeverityWarning,
		Query: `SELECT q.id::text FROM quote_requests q
			WHERE NOT EXISTS (SELECT 1 FROM quote_items qi WHERE qi.quote_id = q.id)`,
	},
	{
		Name:        "duplicate_slugs",
		Description: "Product slugs that collide when compared case-insensitively",
		Severity:    SeverityError,
		Query: `SELECT LOWER(slug) FROM products
			GROUP BY LOWER(slug) HAVING COUNT(*) > 1`,
	},
}

// Package integrity validates cross-table consistency of the store database and repairs orphans.
package integrity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"pipe-company/internal/database"

	"go.uber.org/zap"
)

const maxSampleIDs = 5

// CheckResult is the outcome of one check
type CheckResult struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Violations  int      `json:"violations"`
	SampleIDs   []string `json:"sample_ids"`
	Error       string   `json:"error,omitempty"`
}

// Errored reports whether the check's query itself failed
func (r CheckResult) Errored() bool {
	return r.Error != ""
}

// Report is the outcome of a full run
type Report struct {
	Checks    []CheckResult `json:"checks"`
	Passed    bool          `json:"passed"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// FixResult counts rows touched by FixOrphans
type FixResult struct {
	ImagesDeleted      int64 `json:"images_deleted"`
	DocumentsDeleted   int64 `json:"documents_deleted"`
	DiscountsDeleted   int64 `json:"discounts_deleted"`
	QuoteItemsDetached int64 `json:"quote_items_detached"`
}

// Total is the number of rows changed
func (f FixResult) Total() int64 {
	return f.ImagesDeleted + f.DocumentsDeleted + f.DiscountsDeleted + f.QuoteItemsDetached
}

type Checker struct {
	db     *sql.DB
	logger *zap.Logger
	checks []Check
}

// NewChecker builds a checker running DefaultChecks
func NewChecker(db *sql.DB, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{db: db, logger: logger, checks: DefaultChecks}
}

// Checks returns the registered checks
func (c *Checker) Checks() []Check {
	return c.checks
}

// Run executes every check in order. A failing query marks that check errored and the
// run continues with the next one.
func (c *Checker) Run(ctx context.Context) *Report {
	report := &Report{StartedAt: time.Now().UTC(), Checks: make([]CheckResult, 0, len(c.checks))}
	start := time.Now()

	for _, check := range c.checks {
		result := c.runCheck(ctx, check)
		report.Checks = append(report.Checks, result)

		switch {
		case result.Errored():
			report.Errors++
			c.logger.Error("Integrity check failed to run", zap.String("check", check.Name), zap.String("error", result.Error))
		case result.Violations > 0 && check.Severity == SeverityError:
			report.Errors++
			c.logger.Warn("Integrity violations found",
				zap.String("check", check.Name),
				zap.Int("violations", result.Violations),
				zap.Strings("sample_ids", result.SampleIDs),
			)
		case result.Violations > 0:
			report.Warnings++
			c.logger.Info("Integrity warning",
				zap.String("check", check.Name),
				zap.Int("violations", result.Violations),
			)
		}
	}

	report.Passed = report.Errors == 0
	report.Duration = time.Since(start)
	return report
}

func (c *Checker) runCheck(ctx context.Context, check Check) CheckResult {
	result := CheckResult{
		Name:        check.Name,
		Description: check.Description,
		Severity:    check.Severity,
		SampleIDs:   []string{},
	}

	query := fmt.Sprintf(
		`SELECT v.id, COUNT(*) OVER () FROM (%s) AS v(id) ORDER BY v.id LIMIT %d`,
		check.Query, maxSampleIDs,
	)
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var total int
		if err := rows.Scan(&id, &total); err != nil {
			result.Error = err.Error()
			return result
		}
		result.SampleIDs = append(result.SampleIDs, id)
		result.Violations = total
	}
	if err := rows.Err(); err != nil {
		result.Error = err.Error()
	}
	return result
}

// FixOrphans removes child rows without a product and detaches quote items from missing
// products, all in one transaction.
func (c *Checker) FixOrphans(ctx context.Context) (*FixResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	fix := &FixResult{}
	steps := []struct {
		query string
		count *int64
	}{
		{`DELETE FROM product_images i WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.id = i.product_id)`, &fix.ImagesDeleted},
		{`DELETE FROM product_documents d WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.id = d.product_id)`, &fix.DocumentsDeleted},
		{`DELETE FROM bulk_discounts b WHERE NOT EXISTS (SELECT 1 FROM products p WHERE p.id = b.product_id)`, &fix.DiscountsDeleted},
		{`UPDATE quote_items qi SET product_id = NULL
			WHERE qi.product_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM products p WHERE p.id = qi.product_id)`, &fix.QuoteItemsDetached},
	}

	for _, step := range steps {
		res, err := tx.ExecContext(ctx, step.query)
		if err != nil {
			return nil, fmt.Errorf("failed to fix orphans: %w", err)
		}
		if *step.count, err = res.RowsAffected(); err != nil {
			return nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit orphan fix: %w", err)
	}

	c.logger.Info("Orphaned rows repaired",
		zap.Int64("images_deleted", fix.ImagesDeleted),
		zap.Int64("documents_deleted", fix.DocumentsDeleted),
		zap.Int64("discounts_deleted", fix.DiscountsDeleted),
		zap.Int64("quote_items_detached", fix.QuoteItemsDetached),
	)
	return fix, nil
}

// MigrationState reports the applied schema version against the embedded migrations
func (c *Checker) MigrationState(ctx context.Context) (*database.MigrationState, error) {
	return database.GetMigrationState(ctx, c.db)
}

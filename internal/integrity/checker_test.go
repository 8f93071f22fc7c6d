package integrity

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockChecker(t *testing.T) (*Checker, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewChecker(db, zap.NewNop()), mock
}

func expectCheck(mock sqlmock.Sqlmock, check Check) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(check.Query))
}

func cleanRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "count"})
}

func TestDefaultChecksAreComplete(t *testing.T) {
	names := map[string]Severity{}
	for _, c := range DefaultChecks {
		require.NotEmpty(t, c.Query, c.Name)
		require.NotEmpty(t, c.Description, c.Name)
		names[c.Name] = c.Severity
	}

	assert.Len(t, DefaultChecks, 10)
	assert.Equal(t, SeverityWarning, names["active_products_without_images"])
	assert.Equal(t, SeverityWarning, names["quotes_without_items"])
	assert.Equal(t, SeverityError, names["duplicate_slugs"])
}

func TestRun_AllClean(t *testing.T) {
	c, mock := newMockChecker(t)
	for _, check := range DefaultChecks {
		expectCheck(mock, check).WillReturnRows(cleanRows())
	}

	report := c.Run(context.Background())

	assert.True(t, report.Passed)
	assert.Zero(t, report.Errors)
	assert.Zero(t, report.Warnings)
	assert.Len(t, report.Checks, len(DefaultChecks))
	for _, r := range report.Checks {
		assert.Zero(t, r.Violations)
		assert.Empty(t, r.SampleIDs)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ViolationsAndWarnings(t *testing.T) {
	c, mock := newMockChecker(t)
	for _, check := range DefaultChecks {
		rows := cleanRows()
		switch check.Name {
		case "orphaned_product_images":
			for _, id := range []string{"a", "b", "c", "d", "e"} {
				rows.AddRow(id, 12)
			}
		case "quotes_without_items":
			rows.AddRow("q1", 1)
		}
		expectCheck(mock, check).WillReturnRows(rows)
	}

	report := c.Run(context.Background())

	assert.False(t, report.Passed)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 1, report.Warnings)

	orphans := report.Checks[0]
	assert.Equal(t, "orphaned_product_images", orphans.Name)
	assert.Equal(t, 12, orphans.Violations, "count covers all rows, not only the samples")
	assert.Len(t, orphans.SampleIDs, maxSampleIDs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_WarningsAloneStillPass(t *testing.T) {
	c, mock := newMockChecker(t)
	for _, check := range DefaultChecks {
		rows := cleanRows()
		if check.Name == "active_products_without_images" {
			rows.AddRow("p1", 2).AddRow("p2", 2)
		}
		expectCheck(mock, check).WillReturnRows(rows)
	}

	report := c.Run(context.Background())
	assert.True(t, report.Passed)
	assert.Equal(t, 1, report.Warnings)
}

func TestRun_QueryErrorIsRecordedAndRunContinues(t *testing.T) {
	c, mock := newMockChecker(t)
	for i, check := range DefaultChecks {
		if i == 2 {
			expectCheck(mock, check).WillReturnError(errors.New("relation \"bulk_discounts\" does not exist"))
			continue
		}
		expectCheck(mock, check).WillReturnRows(cleanRows())
	}

	report := c.Run(context.Background())

	assert.False(t, report.Passed)
	assert.Len(t, report.Checks, len(DefaultChecks))
	assert.True(t, report.Checks[2].Errored())
	assert.Contains(t, report.Checks[2].Error, "does not exist")
	assert.False(t, report.Checks[3].Errored())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFixOrphans(t *testing.T) {
	c, mock := newMockChecker(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_images").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM product_documents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM bulk_discounts").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE quote_items").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	fix, err := c.FixOrphans(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), fix.ImagesDeleted)
	assert.Equal(t, int64(1), fix.DocumentsDeleted)
	assert.Equal(t, int64(0), fix.DiscountsDeleted)
	assert.Equal(t, int64(2), fix.QuoteItemsDetached)
	assert.Equal(t, int64(6), fix.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFixOrphans_RollsBackOnError(t *testing.T) {
	c, mock := newMockChecker(t)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM product_images").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("DELETE FROM product_documents").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	_, err := c.FixOrphans(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock")
	assert.NoError(t, mock.ExpectationsWereMet())
}

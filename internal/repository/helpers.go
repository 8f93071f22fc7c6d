package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pipe-company/internal/catalog"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a postgres unique constraint failure,
// optionally limited to one named constraint
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// withTx runs fn inside a transaction, rolling back on error
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// expectOneRow maps a zero-row result to notFound
func expectOneRow(result sql.Result, notFound error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return notFound
	}
	return nil
}

// offset turns a 1-based page into a row offset. Pages are capped at catalog.MaxPage and
// page sizes are expected to be normalized already, so the product cannot overflow.
func offset(page, pageSize int) int {
	switch {
	case page < 1:
		page = 1
	case page > catalog.MaxPage:
		page = catalog.MaxPage
	}
	if pageSize < 1 {
		return 0
	}
	return (page - 1) * min(pageSize, catalog.MaxPageSize)
}

type rowScanner interface {
	Scan(dest ...any) error
}

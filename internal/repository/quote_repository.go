package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrQuoteNotFound = errors.New("quote request not found")
)

// QuoteRepository defines the interface for quote request data access
type QuoteRepository interface {
	Create(ctx context.Context, quote *domain.QuoteRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error)
	List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status, adminNotes string) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type quoteRepository struct {
	db *sql.DB
}

// NewQuoteRepository creates a new instance of QuoteRepository
func NewQuoteRepository(db *sql.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

const quoteColumns = `id, customer_name, email, phone, company, message, status, admin_notes, created_at, updated_at`

// Create inserts a quote request and its items in one transaction
func (r *quoteRepository) Create(ctx context.Context, quote *domain.QuoteRequest) error {
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO quote_requests (`+quoteColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			quote.ID,
			quote.CustomerName,
			quote.Email,
			quote.Phone,
			quote.Company,
			quote.Message,
			quote.Status,
			quote.AdminNotes,
			quote.CreatedAt,
			quote.UpdatedAt,
		)
		if err != nil {
			return err
		}

		for i := range quote.Items {
			item := &quote.Items[i]
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
			item.QuoteID = quote.ID
			_, err := tx.ExecContext(ctx, `
				INSERT INTO quote_items (id, quote_id, product_id, product_name, quantity, notes)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, item.ID, item.QuoteID, item.ProductID, item.ProductName, item.Quantity, item.Notes)
			if err != nil {
				return fmt.Errorf("failed to insert quote item: %w", err)
			}
		}
		return nil
	})

	if err != nil {
		return fmt.Errorf("failed to create quote request: %w", err)
	}
	return nil
}

// FindByID retrieves a quote request with its items
func (r *quoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+quoteColumns+` FROM quote_requests WHERE id = $1`, id)

	quote, err := scanQuote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, fmt.Errorf("failed to find quote request: %w", err)
	}

	if err := r.loadItems(ctx, []*domain.QuoteRequest{quote}); err != nil {
		return nil, err
	}
	return quote, nil
}

// List retrieves quote requests newest first, optionally filtered by status
func (r *quoteRepository) List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error) {
	whereClause := ""
	args := []interface{}{}
	if status != "" {
		whereClause = "WHERE status = $1"
		args = append(args, status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quote_requests "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count quote requests: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM quote_requests %s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, quoteColumns, whereClause, len(args)+1, len(args)+2)
	args = append(args, pageSize, offset(page, pageSize))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quote requests: %w", err)
	}
	defer rows.Close()

	quotes := []*domain.QuoteRequest{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan quote request: %w", err)
		}
		quotes = append(quotes, quote)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating quote requests: %w", err)
	}

	if err := r.loadItems(ctx, quotes); err != nil {
		return nil, 0, err
	}
	return quotes, total, nil
}

// UpdateStatus sets the status and admin notes of a quote request
func (r *quoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status, adminNotes string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE quote_requests SET status = $2, admin_notes = $3, updated_at = NOW()
		WHERE id = $1
	`, id, status, adminNotes)
	if err != nil {
		return fmt.Errorf("failed to update quote request: %w", err)
	}
	return expectOneRow(result, ErrQuoteNotFound)
}

// Delete removes a quote request and, by cascade, its items
func (r *quoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM quote_requests WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete quote request: %w", err)
	}
	return expectOneRow(result, ErrQuoteNotFound)
}

func (r *quoteRepository) loadItems(ctx context.Context, quotes []*domain.QuoteRequest) error {
	if len(quotes) == 0 {
		return nil
	}

	byID := make(map[uuid.UUID]*domain.QuoteRequest, len(quotes))
	ids := make([]string, 0, len(quotes))
	for _, q := range quotes {
		q.Items = []domain.QuoteItem{}
		byID[q.ID] = q
		ids = append(ids, q.ID.String())
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quote_id, product_id, product_name, quantity, notes
		FROM quote_items WHERE quote_id = ANY($1::uuid[])
		ORDER BY product_name, id
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to load quote items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.QuoteItem
		var productID uuid.NullUUID
		if err := rows.Scan(&item.ID, &item.QuoteID, &productID, &item.ProductName, &item.Quantity, &item.Notes); err != nil {
			return fmt.Errorf("failed to scan quote item: %w", err)
		}
		if productID.Valid {
			id := productID.UUID
			item.ProductID = &id
		}
		byID[item.QuoteID].Items = append(byID[item.QuoteID].Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating quote items: %w", err)
	}
	return nil
}

func scanQuote(row rowScanner) (*domain.QuoteRequest, error) {
	quote := &domain.QuoteRequest{}
	err := row.Scan(
		&quote.ID,
		&quote.CustomerName,
		&quote.Email,
		&quote.Phone,
		&quote.Company,
		&quote.Message,
		&quote.Status,
		&quote.AdminNotes,
		&quote.CreatedAt,
		&quote.UpdatedAt,
	)
	return quote, err
}

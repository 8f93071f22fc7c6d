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
	ErrMediaNotFound = errors.New("media not found")
)

// MediaRepository defines the interface for uploaded media records
type MediaRepository interface {
	Create(ctx context.Context, media *domain.Media) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Media, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type mediaRepository struct {
	db *sql.DB
}

// NewMediaRepository creates a new instance of MediaRepository
func NewMediaRepository(db *sql.DB) MediaRepository {
	return &mediaRepository{db: db}
}

const mediaColumns = `id, file_name, storage_key, url, content_type, size_bytes, alt_text, uploaded_by, created_at`

func (r *mediaRepository) Create(ctx context.Context, media *domain.Media) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media (`+mediaColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		media.ID,
		media.FileName,
		media.StorageKey,
		media.URL,
		media.ContentType,
		media.SizeBytes,
		media.AltText,
		media.UploadedBy,
		media.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create media: %w", err)
	}
	return nil
}

func (r *mediaRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	media, err := scanMedia(r.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMediaNotFound
		}
		return nil, fmt.Errorf("failed to find media: %w", err)
	}
	return media, nil
}

// List returns media newest first
func (r *mediaRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count media: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+mediaColumns+` FROM media
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2
	`, pageSize, offset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list media: %w", err)
	}
	defer rows.Close()

	items := []*domain.Media{}
	for rows.Next() {
		media, err := scanMedia(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan media: %w", err)
		}
		items = append(items, media)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating media: %w", err)
	}
	return items, total, nil
}

func (r *mediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return expectOneRow(result, ErrMediaNotFound)
}

func scanMedia(row rowScanner) (*domain.Media, error) {
	media := &domain.Media{}
	var uploadedBy uuid.NullUUID
	err := row.Scan(
		&media.ID,
		&media.FileName,
		&media.StorageKey,
		&media.URL,
		&media.ContentType,
		&media.SizeBytes,
		&media.AltText,
		&uploadedBy,
		&media.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if uploadedBy.Valid {
		id := uploadedBy.UUID
		media.UploadedBy = &id
	}
	return media, nil
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"pipe-company/internal/domain"
)

var (
	ErrCompanyInfoNotFound = errors.New("company info has not been set")
)

// CompanyRepository reads and writes the single company_info row
type CompanyRepository interface {
	Get(ctx context.Context) (*domain.CompanyInfo, error)
	Upsert(ctx context.Context, info *domain.CompanyInfo) error
}

type companyRepository struct {
	db *sql.DB
}

// NewCompanyRepository creates a new instance of CompanyRepository
func NewCompanyRepository(db *sql.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	info := &domain.CompanyInfo{}
	err := r.db.QueryRowContext(ctx, `
		SELECT name, tagline, description, email, phone, address, business_hours, updated_at
		FROM company_info WHERE id = 1
	`).Scan(
		&info.Name,
		&info.Tagline,
		&info.Description,
		&info.Email,
		&info.Phone,
		&info.Address,
		&info.BusinessHours,
		&info.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCompanyInfoNotFound
		}
		return nil, fmt.Errorf("failed to get company info: %w", err)
	}
	return info, nil
}

func (r *companyRepository) Upsert(ctx context.Context, info *domain.CompanyInfo) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO company_info (id, name, tagline, description, email, phone, address, business_hours, updated_at)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			tagline = EXCLUDED.tagline,
			description = EXCLUDED.description,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			business_hours = EXCLUDED.business_hours,
			updated_at = EXCLUDED.updated_at
	`,
		info.Name,
		info.Tagline,
		info.Description,
		info.Email,
		info.Phone,
		info.Address,
		info.BusinessHours,
		info.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save company info: %w", err)
	}
	return nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Media is an uploaded file held in object storage
type Media struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	FileName    string     `json:"file_name" db:"file_name"`
	StorageKey  string     `json:"storage_key" db:"storage_key"`
	URL         string     `json:"url" db:"url"`
	ContentType string     `json:"content_type" db:"content_type"`
	SizeBytes   int64      `json:"size_bytes" db:"size_bytes"`
	AltText     string     `json:"alt_text" db:"alt_text"`
	UploadedBy  *uuid.UUID `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}

// CompanyInfo holds the storefront's public company details. There is a single row.
type CompanyInfo struct {
	Name          string    `json:"name" db:"name"`
	Tagline       string    `json:"tagline" db:"tagline"`
	Description   string    `json:"description" db:"description"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	Address       string    `json:"address" db:"address"`
	BusinessHours string    `json:"business_hours" db:"business_hours"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

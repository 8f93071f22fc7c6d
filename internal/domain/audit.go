package domain

import (
	"time"

	"github.com/google/uuid"
)

// Audit actions
const (
	AuditActionCreate = "create"
	AuditActionUpdate = "update"
	AuditActionDelete = "delete"
)

// Audited entity types
const (
	EntityProduct = "product"
	EntityQuote   = "quote"
	EntityCompany = "company"
	EntityMedia   = "media"
)

// FieldChange records one field's value before and after a change.
// Old is nil on create, New is nil on delete.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// AuditLogEntry is a record of a change to an entity made from the admin panel
type AuditLogEntry struct {
	ID         uuid.UUID     `json:"id" db:"id"`
	EntityType string        `json:"entity_type" db:"entity_type"`
	EntityID   uuid.UUID     `json:"entity_id" db:"entity_id"`
	Action     string        `json:"action" db:"action"`
	Changes    []FieldChange `json:"changes" db:"changes"`
	UserID     *uuid.UUID    `json:"user_id" db:"user_id"`
	CreatedAt  time.Time     `json:"created_at" db:"created_at"`
}

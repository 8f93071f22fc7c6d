package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
)

// AuditRepository stores the admin change history
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLogEntry) error
	ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*domain.AuditLogEntry, error)
	List(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error)
}

type auditRepository struct {
	db *sql.DB
}

// NewAuditRepository creates a new instance of AuditRepository
func NewAuditRepository(db *sql.DB) AuditRepository {
	return &auditRepository{db: db}
}

const auditColumns = `id, entity_type, entity_id, action, changes, user_id, created_at`

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode audit changes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO audit_log (`+auditColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		string(changes),
		entry.UserID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns one entity's history, newest first
func (r *auditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	return r.query(ctx, `
		SELECT `+auditColumns+` FROM audit_log
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, id
	`, entityType, entityID)
}

// List returns the most recent entries across all entities
func (r *auditRepository) List(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	return r.query(ctx, `
		SELECT `+auditColumns+` FROM audit_log
		ORDER BY created_at DESC, id
		LIMIT $1
	`, limit)
}

func (r *auditRepository) query(ctx context.Context, query string, args ...any) ([]*domain.AuditLogEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*domain.AuditLogEntry{}
	for rows.Next() {
		entry := &domain.AuditLogEntry{}
		var changes []byte
		var userID uuid.NullUUID
		if err := rows.Scan(&entry.ID, &entry.EntityType, &entry.EntityID, &entry.Action, &changes, &userID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal(changes, &entry.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode audit changes: %w", err)
		}
		if userID.Valid {
			id := userID.UUID
			entry.UserID = &id
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit entries: %w", err)
	}
	return entries, nil
}

package transport

import (
	"context"
	"net/http"

	"pipe-company/internal/backup"
	"pipe-company/internal/domain"
	"pipe-company/internal/integrity"
	"pipe-company/internal/middleware"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// BackupManager is the part of the backup manager exposed over HTTP. Restores are not.
type BackupManager interface {
	Create(ctx context.Context, opts backup.CreateOptions) (*backup.Metadata, error)
	List() ([]*backup.Metadata, error)
	Verify(id string) (*backup.Metadata, error)
}

// IntegrityChecker runs the database consistency checks
type IntegrityChecker interface {
	Run(ctx context.Context) *integrity.Report
}

// AuditLog lists recent audit entries across all entities
type AuditLog interface {
	List(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error)
}

// CreateBackupRequest represents a manual backup request
type CreateBackupRequest struct {
	Label    string `json:"label" validate:"omitempty,max=40"`
	Compress *bool  `json:"compress"`
}

// VerifyBackupResponse reports a successful verification
type VerifyBackupResponse struct {
	Valid  bool             `json:"valid"`
	Backup *backup.Metadata `json:"backup"`
}

// AdminHandler serves backup, integrity and audit endpoints for operators
type AdminHandler struct {
	backups  BackupManager
	checker  IntegrityChecker
	auditLog AuditLog
	logger   *zap.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(backups BackupManager, checker IntegrityChecker, auditLog AuditLog, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{backups: backups, checker: checker, auditLog: auditLog, logger: logger}
}

// RegisterRoutes registers the admin routes under /api/admin
func (h *AdminHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.With(middleware.RequirePermission(middleware.PermAuditRead, h.logger)).Get("/api/admin/audit", h.AuditLog)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePermission(middleware.PermBackupsManage, h.logger))
			r.Get("/api/admin/backups", h.ListBackups)
			r.Post("/api/admin/backups", h.CreateBackup)
			r.Post("/api/admin/backups/{id}/verify", h.VerifyBackup)
			r.Get("/api/admin/integrity", h.Integrity)
		})
	})
}

func (h *AdminHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	backups, err := h.backups.List()
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list backups")
		return
	}
	if backups == nil {
		backups = []*backup.Metadata{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, backups)
}

func (h *AdminHandler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	var req CreateBackupRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, &req, h.logger) {
		return
	}

	meta, err := h.backups.Create(r.Context(), backup.CreateOptions{Label: req.Label, Compress: req.Compress})
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to create backup")
		return
	}

	h.logger.Info("Backup created over HTTP",
		zap.String("backup_id", meta.ID),
		zap.Stringp("requested_by", actorString(r)),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, meta)
}

// VerifyBackup checks size and checksum. A corrupted backup answers 422.
func (h *AdminHandler) VerifyBackup(w http.ResponseWriter, r *http.Request) {
	meta, err := h.backups.Verify(chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to verify backup")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, VerifyBackupResponse{Valid: true, Backup: meta})
}

// Integrity runs every consistency check and returns the report
func (h *AdminHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Run(r.Context())
	if !report.Passed {
		h.logger.Warn("Integrity checks failed", zap.Int("errors", report.Errors), zap.Int("warnings", report.Warnings))
	}
	middleware.RespondWithJSON(w, http.StatusOK, report)
}

// AuditLog returns the most recent audit entries, ?limit= capped at 1000
func (h *AdminHandler) AuditLog(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit == 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}

	entries, err := h.auditLog.List(r.Context(), limit)
	if err != nil {
		respondServiceError(w, h.logger, err, "failed to list audit entries")
		return
	}
	if entries == nil {
		entries = []*domain.AuditLogEntry{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}

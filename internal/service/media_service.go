package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"pipe-company/internal/audit"
	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/sanitize"
	"pipe-company/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrFileTooLarge           = errors.New("file exceeds the upload size limit")
	ErrUnsupportedContentType = errors.New("unsupported content type")
)

// AllowedMediaTypes lists the content types accepted for upload
var AllowedMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// UploadInput describes one uploaded file. Size is the declared length of Body.
type UploadInput struct {
	FileName string
	Size     int64
	Body     io.Reader
	AltText  string
}

// MediaService defines media library operations
type MediaService interface {
	Upload(ctx context.Context, in UploadInput, actor *uuid.UUID) (*domain.Media, error)
	List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
}

type mediaService struct {
	mediaRepo repository.MediaRepository
	auditRepo repository.AuditRepository
	store     storage.ObjectStorage
	maxBytes  int64
	logger    *zap.Logger
}

// NewMediaService creates a new instance of MediaService
func NewMediaService(
	mediaRepo repository.MediaRepository,
	auditRepo repository.AuditRepository,
	store storage.ObjectStorage,
	maxBytes int64,
	logger *zap.Logger,
) MediaService {
	return &mediaService{
		mediaRepo: mediaRepo,
		auditRepo: auditRepo,
		store:     store,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// Upload stores the file under media/<uuid>-<safe name> and records it. The content type
// is sniffed from the first bytes rather than trusted from the client.
func (s *mediaService) Upload(ctx context.Context, in UploadInput, actor *uuid.UUID) (*domain.Media, error) {
	if in.Size <= 0 {
		return nil, invalidf("file is empty")
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	body := bufio.NewReaderSize(in.Body, 512)
	head, err := body.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	contentType := strings.TrimSpace(strings.SplitN(http.DetectContentType(head), ";", 2)[0])
	if !slices.Contains(AllowedMediaTypes, contentType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}

	id := uuid.New()
	fileName := sanitize.FileName(in.FileName)
	key := "media/" + id.String() + "-" + fileName

	if err := s.store.Put(ctx, key, body, in.Size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	media := &domain.Media{
		ID:          id,
		FileName:    fileName,
		StorageKey:  key,
		URL:         s.store.URL(key),
		ContentType: contentType,
		SizeBytes:   in.Size,
		AltText:     sanitize.SingleLine(in.AltText),
		UploadedBy:  actor,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.mediaRepo.Create(ctx, media); err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.Warn("Failed to remove stored object after failed insert", zap.String("key", key), zap.Error(delErr))
		}
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	s.recordAudit(ctx, id, domain.AuditActionCreate, audit.Diff(nil, media), actor)
	s.logger.Info("Media uploaded",
		zap.String("media_id", id.String()),
		zap.String("content_type", contentType),
		zap.Int64("size_bytes", in.Size),
	)
	return media, nil
}

func (s *mediaService) List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error) {
	page, pageSize = catalog.NormalizePage(page, pageSize)
	items, total, err := s.mediaRepo.List(ctx, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list media: %w", err)
	}
	return items, total, nil
}

// Delete removes the stored object, then the record. An object already gone from
// storage does not block removing the record.
func (s *mediaService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	media, err := s.mediaRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return err
		}
		return fmt.Errorf("failed to get media: %w", err)
	}

	if err := s.store.Delete(ctx, media.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return fmt.Errorf("failed to delete stored object: %w", err)
	}

	if err := s.mediaRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrMediaNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete media: %w", err)
	}

	s.recordAudit(ctx, id, domain.AuditActionDelete, audit.Diff(media, nil), actor)
	return nil
}

func (s *mediaService) recordAudit(ctx context.Context, id uuid.UUID, action string, changes []domain.FieldChange, actor *uuid.UUID) {
	entry := audit.NewEntry(domain.EntityMedia, id, action, changes, actor)
	if entry == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry", zap.String("media_id", id.String()), zap.Error(err))
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"pipe-company/internal/audit"
	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/sanitize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxQuoteItems    = 50
	MaxQuoteQuantity = 1_000_000
)

var ErrInvalidTransition = errors.New("quote status transition not allowed")

// QuoteItemInput is one requested product line
type QuoteItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	Notes     string
}

// QuoteInput is a customer quote submission
type QuoteInput struct {
	CustomerName string
	Email        string
	Phone        string
	Company      string
	Message      string
	Items        []QuoteItemInput
}

// QuoteService defines quote intake and back-office handling
type QuoteService interface {
	Submit(ctx context.Context, in QuoteInput) (*domain.QuoteRequest, error)
	List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, adminNotes *string, actor *uuid.UUID) (*domain.QuoteRequest, error)
	Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error
}

type quoteService struct {
	quoteRepo   repository.QuoteRepository
	productRepo repository.ProductRepository
	auditRepo   repository.AuditRepository
	logger      *zap.Logger
}

// NewQuoteService creates a new instance of QuoteService
func NewQuoteService(
	quoteRepo repository.QuoteRepository,
	productRepo repository.ProductRepository,
	auditRepo repository.AuditRepository,
	logger *zap.Logger,
) QuoteService {
	return &quoteService{
		quoteRepo:   quoteRepo,
		productRepo: productRepo,
		auditRepo:   auditRepo,
		logger:      logger,
	}
}

// Submit stores a new quote request. Every item must reference an active product; the
// product's current name is kept on the item.
func (s *quoteService) Submit(ctx context.Context, in QuoteInput) (*domain.QuoteRequest, error) {
	now := time.Now().UTC()
	quote := &domain.QuoteRequest{
		ID:           uuid.New(),
		CustomerName: sanitize.SingleLine(in.CustomerName),
		Email:        sanitize.Email(in.Email),
		Phone:        sanitize.Phone(in.Phone),
		Company:      sanitize.SingleLine(in.Company),
		Message:      sanitize.Text(in.Message),
		Status:       domain.QuoteStatusNew,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if quote.CustomerName == "" {
		return nil, invalidf("customer_name is required")
	}
	if quote.Email == "" {
		return nil, invalidf("email is required")
	}
	if len(in.Items) == 0 {
		return nil, invalidf("at least one item is required")
	}
	if len(in.Items) > MaxQuoteItems {
		return nil, invalidf("at most %d items per quote", MaxQuoteItems)
	}

	for i, item := range in.Items {
		if item.Quantity <= 0 || item.Quantity > MaxQuoteQuantity {
			return nil, invalidf("items[%d].quantity must be between 1 and %d", i, MaxQuoteQuantity)
		}

		product, err := s.productRepo.FindByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return nil, invalidf("items[%d]: product %s does not exist", i, item.ProductID)
			}
			return nil, fmt.Errorf("failed to look up product: %w", err)
		}
		if !product.IsActive {
			return nil, invalidf("items[%d]: product %s is not available", i, item.ProductID)
		}

		productID := product.ID
		quote.Items = append(quote.Items, domain.QuoteItem{
			ID:          uuid.New(),
			QuoteID:     quote.ID,
			ProductID:   &productID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			Notes:       sanitize.Text(item.Notes),
		})
	}

	if err := s.quoteRepo.Create(ctx, quote); err != nil {
		return nil, fmt.Errorf("failed to create quote request: %w", err)
	}

	s.logger.Info("Quote request submitted",
		zap.String("quote_id", quote.ID.String()),
		zap.Int("items", len(quote.Items)),
	)
	return quote, nil
}

// List pages quote requests, optionally filtered by status
func (s *quoteService) List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error) {
	if status != "" && !slices.Contains(domain.QuoteStatuses, status) {
		return nil, 0, invalidf("unknown status %q", status)
	}
	page, pageSize = catalog.NormalizePage(page, pageSize)

	quotes, total, err := s.quoteRepo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list quote requests: %w", err)
	}
	return quotes, total, nil
}

func (s *quoteService) Get(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error) {
	quote, err := s.quoteRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get quote request: %w", err)
	}
	return quote, nil
}

// UpdateStatus moves a quote along its workflow. A nil adminNotes keeps the current notes.
func (s *quoteService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, adminNotes *string, actor *uuid.UUID) (*domain.QuoteRequest, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !slices.Contains(domain.QuoteStatuses, status) {
		return nil, invalidf("unknown status %q", status)
	}
	if !domain.CanTransitionQuote(existing.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, existing.Status, status)
	}

	updated := *existing
	updated.Status = status
	if adminNotes != nil {
		updated.AdminNotes = sanitize.Text(*adminNotes)
	}
	updated.UpdatedAt = time.Now().UTC()

	if err := s.quoteRepo.UpdateStatus(ctx, id, updated.Status, updated.AdminNotes); err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update quote request: %w", err)
	}

	s.recordAudit(ctx, id, domain.AuditActionUpdate, audit.Diff(existing, &updated), actor)
	return &updated, nil
}

func (s *quoteService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.quoteRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrQuoteNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete quote request: %w", err)
	}

	s.recordAudit(ctx, id, domain.AuditActionDelete, audit.Diff(existing, nil), actor)
	return nil
}

func (s *quoteService) recordAudit(ctx context.Context, id uuid.UUID, action string, changes []domain.FieldChange, actor *uuid.UUID) {
	entry := audit.NewEntry(domain.EntityQuote, id, action, changes, actor)
	if entry == nil {
		return
	}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry", zap.String("quote_id", id.String()), zap.Error(err))
	}
}

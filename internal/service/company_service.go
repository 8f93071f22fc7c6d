package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pipe-company/internal/audit"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/sanitize"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// companyEntityID is the fixed audit id of the single company row
var companyEntityID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("pipe-company:company-info"))

// DefaultCompanyInfo is served until an admin saves company details
func DefaultCompanyInfo() *domain.CompanyInfo {
	return &domain.CompanyInfo{
		Name:          "Pipe Company",
		Tagline:       "Pipes, fittings and valves for trade and industry",
		BusinessHours: "Mon-Fri 08:00-17:00",
	}
}

// CompanyService defines reads and edits of the storefront's company details
type CompanyService interface {
	Get(ctx context.Context) (*domain.CompanyInfo, error)
	Update(ctx context.Context, info domain.CompanyInfo, actor *uuid.UUID) (*domain.CompanyInfo, error)
}

type companyService struct {
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditRepository
	logger      *zap.Logger
}

// NewCompanyService creates a new instance of CompanyService
func NewCompanyService(companyRepo repository.CompanyRepository, auditRepo repository.AuditRepository, logger *zap.Logger) CompanyService {
	return &companyService{companyRepo: companyRepo, auditRepo: auditRepo, logger: logger}
}

func (s *companyService) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	info, err := s.companyRepo.Get(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrCompanyInfoNotFound) {
			return DefaultCompanyInfo(), nil
		}
		return nil, fmt.Errorf("failed to get company info: %w", err)
	}
	return info, nil
}

func (s *companyService) Update(ctx context.Context, info domain.CompanyInfo, actor *uuid.UUID) (*domain.CompanyInfo, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := &domain.CompanyInfo{
		Name:          sanitize.SingleLine(info.Name),
		Tagline:       sanitize.SingleLine(info.Tagline),
		Description:   sanitize.Text(info.Description),
		Email:         sanitize.Email(info.Email),
		Phone:         sanitize.Phone(info.Phone),
		Address:       sanitize.Text(info.Address),
		BusinessHours: sanitize.Text(info.BusinessHours),
		UpdatedAt:     time.Now().UTC(),
	}
	if updated.Name == "" {
		return nil, invalidf("name is required")
	}

	if err := s.companyRepo.Upsert(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save company info: %w", err)
	}

	if entry := audit.NewEntry(domain.EntityCompany, companyEntityID, domain.AuditActionUpdate, audit.Diff(current, updated), actor); entry != nil {
		if err := s.auditRepo.Create(ctx, entry); err != nil {
			s.logger.Error("Failed to record audit entry", zap.String("entity", domain.EntityCompany), zap.Error(err))
		}
	}
	return updated, nil
}

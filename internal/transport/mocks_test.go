package transport

import (
	"context"
	"net/http"
	"testing"
	"time"

	"pipe-company/internal/backup"
	"pipe-company/internal/catalog"
	"pipe-company/internal/domain"
	"pipe-company/internal/integrity"
	"pipe-company/internal/middleware"
	"pipe-company/internal/repository"
	"pipe-company/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockProductService implements service.ProductService for testing
type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) ListCatalog(ctx context.Context, q service.CatalogQuery) (*catalog.Page, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Page), args.Error(1)
}

func (m *MockProductService) ListAdmin(ctx context.Context, params repository.ProductListParams) ([]*domain.Product, int, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]*domain.Product), args.Int(1), args.Error(2)
}

func (m *MockProductService) Get(ctx context.Context, idOrSlug string, includeInactive bool) (*domain.Product, error) {
	args := m.Called(ctx, idOrSlug, includeInactive)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductService) PriceForQuantity(ctx context.Context, id uuid.UUID, quantity int) (*catalog.PriceQuote, error) {
	args := m.Called(ctx, id, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.PriceQuote), args.Error(1)
}

func (m *MockProductService) Create(ctx context.Context, in service.ProductInput, actor *uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id uuid.UUID, in service.ProductInput, actor *uuid.UUID) (*domain.Product, error) {
	args := m.Called(ctx, id, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return m.Called(ctx, id, actor).Error(0)
}

func (m *MockProductService) AuditHistory(ctx context.Context, id uuid.UUID) ([]*domain.AuditLogEntry, error) {
	args := m.Called(ctx, id)
	return args.Get(0).([]*domain.AuditLogEntry), args.Error(1)
}

// MockQuoteService implements service.QuoteService for testing
type MockQuoteService struct {
	mock.Mock
}

func (m *MockQuoteService) Submit(ctx context.Context, in service.QuoteInput) (*domain.QuoteRequest, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteRequest), args.Error(1)
}

func (m *MockQuoteService) List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error) {
	args := m.Called(ctx, status, page, pageSize)
	return args.Get(0).([]*domain.QuoteRequest), args.Int(1), args.Error(2)
}

func (m *MockQuoteService) Get(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteRequest), args.Error(1)
}

func (m *MockQuoteService) UpdateStatus(ctx context.Context, id uuid.UUID, status string, adminNotes *string, actor *uuid.UUID) (*domain.QuoteRequest, error) {
	args := m.Called(ctx, id, status, adminNotes, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QuoteRequest), args.Error(1)
}

func (m *MockQuoteService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return m.Called(ctx, id, actor).Error(0)
}

// MockMediaService implements service.MediaService for testing
type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) Upload(ctx context.Context, in service.UploadInput, actor *uuid.UUID) (*domain.Media, error) {
	args := m.Called(ctx, in, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Media), args.Error(1)
}

func (m *MockMediaService) List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error) {
	args := m.Called(ctx, page, pageSize)
	return args.Get(0).([]*domain.Media), args.Int(1), args.Error(2)
}

func (m *MockMediaService) Delete(ctx context.Context, id uuid.UUID, actor *uuid.UUID) error {
	return m.Called(ctx, id, actor).Error(0)
}

// MockCompanyService implements service.CompanyService for testing
type MockCompanyService struct {
	mock.Mock
}

func (m *MockCompanyService) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompanyInfo), args.Error(1)
}

func (m *MockCompanyService) Update(ctx context.Context, info domain.CompanyInfo, actor *uuid.UUID) (*domain.CompanyInfo, error) {
	args := m.Called(ctx, info, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CompanyInfo), args.Error(1)
}

// MockBackupManager implements BackupManager for testing
type MockBackupManager struct {
	mock.Mock
}

func (m *MockBackupManager) Create(ctx context.Context, opts backup.CreateOptions) (*backup.Metadata, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backup.Metadata), args.Error(1)
}

func (m *MockBackupManager) List() ([]*backup.Metadata, error) {
	args := m.Called()
	return args.Get(0).([]*backup.Metadata), args.Error(1)
}

func (m *MockBackupManager) Verify(id string) (*backup.Metadata, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*backup.Metadata), args.Error(1)
}

// MockIntegrityChecker implements IntegrityChecker for testing
type MockIntegrityChecker struct {
	mock.Mock
}

func (m *MockIntegrityChecker) Run(ctx context.Context) *integrity.Report {
	return m.Called(ctx).Get(0).(*integrity.Report)
}

// MockAuditLog implements AuditLog for testing
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) List(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]*domain.AuditLogEntry), args.Error(1)
}

// routeRegistrar is implemented by every handler in this package
type routeRegistrar interface {
	RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler)
}

// newTestRouter mounts handlers behind the real JWT middleware
func newTestRouter(handlers ...routeRegistrar) chi.Router {
	r := chi.NewRouter()
	auth := middleware.AuthMiddleware(testJWTSecret, zap.NewNop())
	for _, h := range handlers {
		h.RegisterRoutes(r, auth)
	}
	return r
}

// bearer signs an access token for a user with the given role
func bearer(t *testing.T, userID uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return "Bearer " + signed
}

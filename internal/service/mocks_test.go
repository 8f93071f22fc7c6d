package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"pipe-company/internal/cache"
	"pipe-company/internal/domain"
	"pipe-company/internal/repository"
	"pipe-company/internal/storage"

	"github.com/google/uuid"
)

type mockProductRepository struct {
	products map[uuid.UUID]*domain.Product
	listErr  error
	listHits int
}

func newMockProductRepository(products ...*domain.Product) *mockProductRepository {
	m := &mockProductRepository{products: map[uuid.UUID]*domain.Product{}}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepository) Create(ctx context.Context, p *domain.Product) error {
	for _, existing := range m.products {
		if existing.Slug == p.Slug {
			return repository.ErrDuplicateSlug
		}
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, p *domain.Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return repository.ErrProductNotFound
	}
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepository) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	for _, p := range m.products {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrProductNotFound
}

func (m *mockProductRepository) SlugExists(ctx context.Context, slug string, excludeID *uuid.UUID) (bool, error) {
	for _, p := range m.products {
		if p.Slug == slug && (excludeID == nil || p.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockProductRepository) List(ctx context.Context, params repository.ProductListParams) ([]*domain.Product, int, error) {
	var out []*domain.Product
	for _, p := range m.products {
		if params.ActiveOnly && !p.IsActive {
			continue
		}
		if params.Category != "" && p.Category != params.Category {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, len(out), nil
}

func (m *mockProductRepository) ListActive(ctx context.Context) ([]domain.Product, error) {
	m.listHits++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Product
	for _, p := range m.products {
		if p.IsActive {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type mockAuditRepository struct {
	entries []*domain.AuditLogEntry
	err     error
}

func (m *mockAuditRepository) Create(ctx context.Context, entry *domain.AuditLogEntry) error {
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditRepository) ListByEntity(ctx context.Context, entityType string, entityID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	var out []*domain.AuditLogEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.EntityType == entityType && e.EntityID == entityID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockAuditRepository) List(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	return m.entries, nil
}

type mockQuoteRepository struct {
	quotes map[uuid.UUID]*domain.QuoteRequest
}

func newMockQuoteRepository() *mockQuoteRepository {
	return &mockQuoteRepository{quotes: map[uuid.UUID]*domain.QuoteRequest{}}
}

func (m *mockQuoteRepository) Create(ctx context.Context, q *domain.QuoteRequest) error {
	cp := *q
	m.quotes[q.ID] = &cp
	return nil
}

func (m *mockQuoteRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.QuoteRequest, error) {
	q, ok := m.quotes[id]
	if !ok {
		return nil, repository.ErrQuoteNotFound
	}
	cp := *q
	return &cp, nil
}

func (m *mockQuoteRepository) List(ctx context.Context, status string, page, pageSize int) ([]*domain.QuoteRequest, int, error) {
	var out []*domain.QuoteRequest
	for _, q := range m.quotes {
		if status == "" || q.Status == status {
			out = append(out, q)
		}
	}
	return out, len(out), nil
}

func (m *mockQuoteRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status, adminNotes string) error {
	q, ok := m.quotes[id]
	if !ok {
		return repository.ErrQuoteNotFound
	}
	q.Status = status
	q.AdminNotes = adminNotes
	return nil
}

func (m *mockQuoteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.quotes[id]; !ok {
		return repository.ErrQuoteNotFound
	}
	delete(m.quotes, id)
	return nil
}

type mockMediaRepository struct {
	items     map[uuid.UUID]*domain.Media
	createErr error
}

func newMockMediaRepository() *mockMediaRepository {
	return &mockMediaRepository{items: map[uuid.UUID]*domain.Media{}}
}

func (m *mockMediaRepository) Create(ctx context.Context, media *domain.Media) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.items[media.ID] = media
	return nil
}

func (m *mockMediaRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Media, error) {
	media, ok := m.items[id]
	if !ok {
		return nil, repository.ErrMediaNotFound
	}
	return media, nil
}

func (m *mockMediaRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Media, int, error) {
	var out []*domain.Media
	for _, media := range m.items {
		out = append(out, media)
	}
	return out, len(out), nil
}

func (m *mockMediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.items[id]; !ok {
		return repository.ErrMediaNotFound
	}
	delete(m.items, id)
	return nil
}

type mockCompanyRepository struct {
	info *domain.CompanyInfo
}

func (m *mockCompanyRepository) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	if m.info == nil {
		return nil, repository.ErrCompanyInfoNotFound
	}
	cp := *m.info
	return &cp, nil
}

func (m *mockCompanyRepository) Upsert(ctx context.Context, info *domain.CompanyInfo) error {
	cp := *info
	m.info = &cp
	return nil
}

// memoryCache is an in-process ProductCache
type memoryCache struct {
	mu          sync.Mutex
	products    []domain.Product
	set         bool
	getErr      error
	invalidated int
}

func (c *memoryCache) GetActive(ctx context.Context) ([]domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	if !c.set {
		return nil, cache.ErrCacheMiss
	}
	return c.products, nil
}

func (c *memoryCache) SetActive(ctx context.Context, products []domain.Product, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = products
	c.set = true
	return nil
}

func (c *memoryCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = nil
	c.set = false
	c.invalidated++
	return nil
}

// memoryStorage is an in-process ObjectStorage
type memoryStorage struct {
	objects   map[string][]byte
	deleteErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: map[string][]byte{}}
}

func (s *memoryStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	s.objects[key] = data
	return nil
}

func (s *memoryStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(strings.NewReader(string(data))), nil
}

func (s *memoryStorage) Delete(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.objects[key]; !ok {
		return storage.ErrObjectNotFound
	}
	delete(s.objects, key)
	return nil
}

func (s *memoryStorage) URL(key string) string {
	return "/uploads/" + key
}

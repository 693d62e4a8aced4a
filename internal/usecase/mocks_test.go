package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/moodbite/backend/internal/domain"
)

// MockCatalogClient is a mock implementation of domain.CatalogClient
type MockCatalogClient struct {
	mu sync.Mutex

	payloads    map[string]*domain.RawProductPayload
	lookupError error
	lookupCalls int

	// searchErrors are returned by successive Search calls before searchResult
	searchErrors []error
	searchResult []domain.RawProductPayload
	searchCalls  int
	pageSizes    []int
}

func NewMockCatalogClient() *MockCatalogClient {
	return &MockCatalogClient{payloads: make(map[string]*domain.RawProductPayload)}
}

func (m *MockCatalogClient) Lookup(ctx context.Context, barcode string) (*domain.RawProductPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookupCalls++
	if m.lookupError != nil {
		return nil, m.lookupError
	}
	payload, ok := m.payloads[barcode]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	return payload, nil
}

func (m *MockCatalogClient) Search(ctx context.Context, pageSize int) ([]domain.RawProductPayload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	m.pageSizes = append(m.pageSizes, pageSize)
	if len(m.searchErrors) > 0 {
		err := m.searchErrors[0]
		m.searchErrors = m.searchErrors[1:]
		return nil, err
	}
	return m.searchResult, nil
}

// MockProductCache is a mock implementation of domain.ProductCache
type MockProductCache struct {
	data      map[string]domain.NutritionRecord
	getError  error
	setCalled bool
}

func NewMockProductCache() *MockProductCache {
	return &MockProductCache{data: make(map[string]domain.NutritionRecord)}
}

func (m *MockProductCache) Get(ctx context.Context, barcode string) (domain.NutritionRecord, error) {
	if m.getError != nil {
		return domain.NutritionRecord{}, m.getError
	}
	if record, ok := m.data[barcode]; ok {
		return record, nil
	}
	return domain.NutritionRecord{}, domain.ErrCacheMiss
}

func (m *MockProductCache) Set(ctx context.Context, barcode string, record domain.NutritionRecord, ttl time.Duration) error {
	m.setCalled = true
	m.data[barcode] = record
	return nil
}

func (m *MockProductCache) Delete(ctx context.Context, barcode string) error {
	delete(m.data, barcode)
	return nil
}

// countingStore wraps a store and counts catalog batch writes
type countingStore struct {
	domain.Store
	catalog *countingCatalog
}

func newCountingStore(inner domain.Store) *countingStore {
	return &countingStore{Store: inner, catalog: &countingCatalog{CatalogStore: inner.Catalog()}}
}

func (s *countingStore) Catalog() domain.CatalogStore {
	return s.catalog
}

type countingCatalog struct {
	domain.CatalogStore
	batches   int
	lastBatch []domain.NutritionRecord
	isEmpty   error
	putError  error
}

func (c *countingCatalog) IsEmpty(ctx context.Context) (bool, error) {
	if c.isEmpty != nil {
		return false, c.isEmpty
	}
	return c.CatalogStore.IsEmpty(ctx)
}

func (c *countingCatalog) PutBatch(ctx context.Context, records []domain.NutritionRecord) error {
	c.batches++
	c.lastBatch = records
	if c.putError != nil {
		return c.putError
	}
	return c.CatalogStore.PutBatch(ctx, records)
}

// failingStore fails every record and mood operation with err
type failingStore struct {
	domain.Store
	err error
}

func (s *failingStore) Add(ctx context.Context, userID string, collection domain.Collection, record domain.NutritionRecord) error {
	return s.err
}

func (s *failingStore) List(ctx context.Context, userID string, collection domain.Collection) ([]domain.NutritionRecord, error) {
	return nil, s.err
}

func (s *failingStore) ListMoods(ctx context.Context, userID string) ([]domain.MoodRecord, error) {
	return nil, s.err
}

func strPtr(s string) *string { return &s }

func payload(code, name string, sugars float64) *domain.RawProductPayload {
	return &domain.RawProductPayload{
		Code: code,
		Product: &domain.RawProduct{
			Code:        code,
			ProductName: strPtr(name),
			Nutriments: map[string]any{
				"energy-kcal_100g": 120.0,
				"sugars_100g":      sugars,
			},
		},
	}
}

package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Avijadhav01/E-commerce/internal/models"
	"github.com/Avijadhav01/E-commerce/internal/query"
	"github.com/Avijadhav01/E-commerce/internal/repository"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
)

type mockProductRepo struct {
	products map[string]*models.Product

	countTotal int
	countErr   error
	countPlan  *query.Plan
	findPlan   *query.Plan
	findPlans  []query.Plan
	findResult []models.Product
	findFn     func(plan query.Plan) []models.Product

	countCalls int
	findCalls  int
}

func (m *mockProductRepo) Create(ctx context.Context, product *models.Product) error {
	if m.products == nil {
		m.products = map[string]*models.Product{}
	}
	copy := *product
	m.products[product.ID] = &copy
	return nil
}

func (m *mockProductRepo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	if product, ok := m.products[id]; ok {
		copy := *product
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProductRepo) Update(ctx context.Context, product *models.Product) error {
	if _, ok := m.products[product.ID]; !ok {
		return sql.ErrNoRows
	}
	copy := *product
	m.products[product.ID] = &copy
	return nil
}

func (m *mockProductRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.products[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.products, id)
	return nil
}

func (m *mockProductRepo) Count(ctx context.Context, plan query.Plan) (int, error) {
	m.countCalls++
	m.countPlan = &plan
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countTotal, nil
}

func (m *mockProductRepo) Find(ctx context.Context, plan query.Plan) ([]models.Product, error) {
	m.findCalls++
	m.findPlan = &plan
	m.findPlans = append(m.findPlans, plan)
	if m.findFn != nil {
		return m.findFn(plan), nil
	}
	return m.findResult, nil
}

type mockCache struct {
	entries map[string][]byte
	deleted []string
}

func newMockCache() *mockCache {
	return &mockCache{entries: map[string][]byte{}}
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.entries, key)
	return nil
}

func newTestProductService(repo *mockProductRepo, cache *mockCache) *ProductService {
	return NewProductService(repo, cache, nil, validator.New(), zap.NewNop(), ProductConfig{
		DefaultPageSize: 10,
		MaxPageSize:     100,
		CacheTTL:        time.Minute,
	})
}

func TestProductServiceListRunsPlanningPipeline(t *testing.T) {
	repo := &mockProductRepo{
		countTotal: 25,
		findResult: []models.Product{{ID: "p1", Name: "Blue Shirt"}},
	}
	svc := newTestProductService(repo, newMockCache())

	params := query.Params{"keyword": "shirt", "category": "men", "page": "4", "limit": "10"}
	products, pagination, err := svc.List(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, products, 1)

	// Count runs against the assembled predicate before pagination.
	require.Equal(t, 1, repo.countCalls)
	require.Equal(t, 1, repo.findCalls)
	require.NotNil(t, repo.countPlan)
	assert.Equal(t, "shirt", repo.countPlan.Keyword)
	assert.Equal(t, map[string]string{"category": "men"}, repo.countPlan.Filters)

	// The page fetch uses the clamped window.
	require.NotNil(t, repo.findPlan)
	assert.Equal(t, 3, repo.findPlan.CurrentPage)
	assert.Equal(t, 20, repo.findPlan.Skip)
	assert.Equal(t, 10, repo.findPlan.Limit)

	require.NotNil(t, pagination)
	assert.Equal(t, 3, pagination.Page)
	assert.Equal(t, 25, pagination.TotalCount)
	assert.Equal(t, 3, pagination.TotalPages)
}

func TestProductServiceListEmptyResultIsValid(t *testing.T) {
	repo := &mockProductRepo{countTotal: 0, findResult: []models.Product{}}
	svc := newTestProductService(repo, newMockCache())

	products, pagination, err := svc.List(context.Background(), query.Params{"category": "none"})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 0, pagination.TotalCount)
	assert.Equal(t, 1, pagination.TotalPages)
}

func TestProductServiceListCapsLimit(t *testing.T) {
	repo := &mockProductRepo{countTotal: 500, findResult: []models.Product{}}
	svc := newTestProductService(repo, newMockCache())

	_, _, err := svc.List(context.Background(), query.Params{"limit": "10000"})
	require.NoError(t, err)
	assert.Equal(t, 100, repo.findPlan.Limit)
}

func TestProductServiceGetUsesCache(t *testing.T) {
	repo := &mockProductRepo{products: map[string]*models.Product{
		"p1": {ID: "p1", Name: "Blue Shirt", Price: 19.99},
	}}
	cache := newMockCache()
	svc := newTestProductService(repo, cache)

	first, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Blue Shirt", first.Name)

	// Remove the backing row; the cached copy should still serve.
	delete(repo.products, "p1")
	second, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "Blue Shirt", second.Name)
}

func TestProductServiceGetNotFound(t *testing.T) {
	svc := newTestProductService(&mockProductRepo{}, newMockCache())

	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProductServiceCreateDefaultsStock(t *testing.T) {
	repo := &mockProductRepo{}
	svc := newTestProductService(repo, newMockCache())

	product, err := svc.Create(context.Background(), CreateProductRequest{
		Name:        "Blue Shirt",
		Description: "Cotton shirt",
		Price:       19.99,
		Category:    "men",
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, product.Stock)
	assert.Equal(t, "admin-1", product.UserID)
}

func TestProductServiceCreateInvalidPrice(t *testing.T) {
	svc := newTestProductService(&mockProductRepo{}, newMockCache())

	_, err := svc.Create(context.Background(), CreateProductRequest{
		Name:        "Bad",
		Description: "Too expensive",
		Price:       10000000,
		Category:    "men",
	}, "admin-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProductServiceUpdateInvalidatesCache(t *testing.T) {
	repo := &mockProductRepo{products: map[string]*models.Product{
		"p1": {ID: "p1", Name: "Blue Shirt", Price: 19.99, Category: "men", Stock: 3, Description: "Cotton"},
	}}
	cache := newMockCache()
	svc := newTestProductService(repo, cache)

	_, err := svc.Get(context.Background(), "p1")
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), "p1", UpdateProductRequest{
		Name:        "Red Shirt",
		Description: "Cotton",
		Price:       24.99,
		Category:    "men",
		Stock:       3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Red Shirt", updated.Name)
	assert.Contains(t, cache.deleted, "product:p1")
}

func TestProductServiceDeleteNotFound(t *testing.T) {
	svc := newTestProductService(&mockProductRepo{}, newMockCache())

	err := svc.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestProductServiceExportCSV(t *testing.T) {
	repo := &mockProductRepo{
		countTotal: 1,
		findResult: []models.Product{{ID: "p1", Name: "Blue Shirt", Category: "men", Price: 19.99, Stock: 3, Ratings: 4.5}},
	}
	svc := newTestProductService(repo, newMockCache())

	payload, contentType, err := svc.Export(context.Background(), query.Params{}, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Contains(t, string(payload), "Blue Shirt")
	assert.Contains(t, string(payload), "19.99")
}

func TestProductServiceListInvalidFilterValue(t *testing.T) {
	repo := &mockProductRepo{
		countErr: fmt.Errorf("count products: %w: stock=%q", repository.ErrInvalidFilter, "abc"),
	}
	svc := newTestProductService(repo, newMockCache())

	_, _, err := svc.List(context.Background(), query.Params{"stock": "abc"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestProductServiceExportWalksAllPages(t *testing.T) {
	repo := &mockProductRepo{countTotal: 250}
	repo.findFn = func(plan query.Plan) []models.Product {
		remaining := repo.countTotal - plan.Skip
		if remaining > plan.Limit {
			remaining = plan.Limit
		}
		batch := make([]models.Product, remaining)
		for i := range batch {
			batch[i] = models.Product{ID: fmt.Sprintf("p%d", plan.Skip+i), Name: "Shirt"}
		}
		return batch
	}
	svc := newTestProductService(repo, newMockCache())

	payload, _, err := svc.Export(context.Background(), query.Params{}, "csv")
	require.NoError(t, err)

	require.Len(t, repo.findPlans, 3)
	assert.Equal(t, 0, repo.findPlans[0].Skip)
	assert.Equal(t, 100, repo.findPlans[1].Skip)
	assert.Equal(t, 200, repo.findPlans[2].Skip)

	// header plus one line per product, every page included
	lines := strings.Count(string(payload), "\n")
	assert.Equal(t, 251, lines)
}

func TestProductServiceExportUnknownFormat(t *testing.T) {
	svc := newTestProductService(&mockProductRepo{}, newMockCache())

	_, _, err := svc.Export(context.Background(), query.Params{}, "xml")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

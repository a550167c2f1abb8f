package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Avijadhav01/E-commerce/internal/models"
	"github.com/Avijadhav01/E-commerce/internal/query"
	"github.com/Avijadhav01/E-commerce/internal/repository"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
	"github.com/Avijadhav01/E-commerce/pkg/export"
)

type productRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, plan query.Plan) (int, error)
	Find(ctx context.Context, plan query.Plan) ([]models.Product, error)
}

type productCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CreateProductRequest represents payload for creating products.
type CreateProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"required,gte=0,lte=9999999"`
	Category    string  `json:"category" validate:"required"`
	Stock       int     `json:"stock" validate:"gte=0,lte=99999"`
}

// UpdateProductRequest payload for updating products.
type UpdateProductRequest struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"required,gte=0,lte=9999999"`
	Category    string  `json:"category" validate:"required"`
	Stock       int     `json:"stock" validate:"gte=0,lte=99999"`
}

// ProductConfig tunes listing defaults and caching.
type ProductConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	CacheTTL        time.Duration
}

// ProductService handles catalog workflows.
type ProductService struct {
	repo      productRepository
	cache     productCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    ProductConfig
}

// NewProductService creates an instance of ProductService. The metrics
// service is optional.
func NewProductService(repo productRepository, cache productCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config ProductConfig) *ProductService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.DefaultPageSize < 1 {
		config.DefaultPageSize = query.DefaultLimit
	}
	if config.MaxPageSize < config.DefaultPageSize {
		config.MaxPageSize = 100
	}
	return &ProductService{repo: repo, cache: cache, metrics: metrics, validator: validate, logger: logger, config: config}
}

// List runs the planning pipeline over raw listing parameters: keyword
// search, field filters, a count against the assembled predicate, then
// pagination clamped to the counted total. An empty page is a valid result.
func (s *ProductService) List(ctx context.Context, params query.Params) ([]models.Product, *models.Pagination, error) {
	plan := query.New(params).Search().Filter()

	total, err := s.repo.Count(ctx, plan)
	if err != nil {
		return nil, nil, wrapCatalogError(err, "failed to count products")
	}

	limit := plan.RequestedLimit()
	if limit > s.config.MaxPageSize {
		limit = s.config.MaxPageSize
	}

	plan = plan.Paginate(limit, total)

	products, err := s.repo.Find(ctx, plan)
	if err != nil {
		return nil, nil, wrapCatalogError(err, "failed to list products")
	}

	pagination := &models.Pagination{
		Page:       plan.CurrentPage,
		PageSize:   plan.Limit,
		TotalCount: plan.TotalCount,
		TotalPages: plan.TotalPages,
	}
	return products, pagination, nil
}

// Get returns a product by ID, consulting the cache first.
func (s *ProductService) Get(ctx context.Context, id string) (*models.Product, error) {
	cacheKey := productCacheKey(id)

	var cached models.Product
	if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
		s.observeCacheLookup(true)
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("product cache lookup failed", zap.String("id", id), zap.Error(err))
	}
	s.observeCacheLookup(false)

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}

	if err := s.cache.Set(ctx, cacheKey, product, s.config.CacheTTL); err != nil {
		s.logger.Warn("product cache store failed", zap.String("id", id), zap.Error(err))
	}

	return product, nil
}

// Create adds a new product owned by the acting user.
func (s *ProductService) Create(ctx context.Context, req CreateProductRequest, actorID string) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}

	product := &models.Product{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Stock:       req.Stock,
		UserID:      actorID,
	}
	if product.Stock == 0 {
		product.Stock = 1
	}

	if err := s.repo.Create(ctx, product); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create product")
	}

	return product, nil
}

// Update replaces mutable fields of an existing product.
func (s *ProductService) Update(ctx context.Context, id string, req UpdateProductRequest) (*models.Product, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid product payload")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load product")
	}

	product.Name = req.Name
	product.Description = req.Description
	product.Price = req.Price
	product.Category = req.Category
	product.Stock = req.Stock

	if err := s.repo.Update(ctx, product); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update product")
	}

	s.invalidate(ctx, id)
	return product, nil
}

// Delete removes a product.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "product not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete product")
	}

	s.invalidate(ctx, id)
	return nil
}

// Export renders the filtered catalog as CSV or PDF. The same planning
// stages that scope listings scope the export; the full result set is
// collected by walking every page of the plan.
func (s *ProductService) Export(ctx context.Context, params query.Params, format string) ([]byte, string, error) {
	plan := query.New(params).Search().Filter()

	total, err := s.repo.Count(ctx, plan)
	if err != nil {
		return nil, "", wrapCatalogError(err, "failed to count products")
	}

	plan = plan.Paginate(s.config.MaxPageSize, total)

	var products []models.Product
	for page := 1; page <= plan.TotalPages; page++ {
		batch, err := s.repo.Find(ctx, plan.Seek(page))
		if err != nil {
			return nil, "", wrapCatalogError(err, "failed to load products")
		}
		products = append(products, batch...)
		if len(batch) == 0 {
			break
		}
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Name", "Category", "Price", "Stock", "Ratings"},
	}
	for _, p := range products {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":       p.ID,
			"Name":     p.Name,
			"Category": p.Category,
			"Price":    strconv.FormatFloat(p.Price, 'f', 2, 64),
			"Stock":    strconv.Itoa(p.Stock),
			"Ratings":  strconv.FormatFloat(p.Ratings, 'f', 1, 64),
		})
	}

	switch format {
	case "pdf":
		payload, err := export.NewPDFExporter().Render(dataset, "Product Catalog")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf export")
		}
		return payload, "application/pdf", nil
	case "", "csv":
		payload, err := export.NewCSVExporter().Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv export")
		}
		return payload, "text/csv", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// wrapCatalogError classifies repository failures: a filter value that
// cannot be bound is the client's mistake, everything else is internal.
func wrapCatalogError(err error, message string) error {
	if errors.Is(err, repository.ErrInvalidFilter) {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid filter parameter")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *ProductService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Delete(ctx, productCacheKey(id)); err != nil {
		s.logger.Warn("product cache invalidation failed", zap.String("id", id), zap.Error(err))
	}
}

func (s *ProductService) observeCacheLookup(hit bool) {
	if s.metrics != nil {
		s.metrics.ObserveCacheLookup(hit)
	}
}

func productCacheKey(id string) string {
	return "product:" + id
}

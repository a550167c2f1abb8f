package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Avijadhav01/E-commerce/internal/models"
	"github.com/Avijadhav01/E-commerce/internal/query"
)

const productColumns = `id, name, description, price, category, stock, ratings, num_reviews, user_id, created_at, updated_at`

// ErrInvalidFilter reports a filter value that cannot be bound against its
// column, such as a non-numeric price.
var ErrInvalidFilter = errors.New("invalid filter value")

// filterableColumns maps client filter parameters onto product columns.
// Parameters outside this allow list are ignored so arbitrary input never
// reaches the SQL text. Numeric columns parse their value before binding.
var filterableColumns = map[string]struct {
	column  string
	numeric bool
}{
	"category": {column: "category"},
	"price":    {column: "price", numeric: true},
	"stock":    {column: "stock", numeric: true},
	"ratings":  {column: "ratings", numeric: true},
	"user_id":  {column: "user_id"},
}

// ProductRepository provides database access for the product catalog.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new instance of ProductRepository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	const query = `INSERT INTO products (id, name, description, price, category, stock, ratings, num_reviews, user_id, created_at, updated_at) VALUES (:id, :name, :description, :price, :category, :stock, :ratings, :num_reviews, :user_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// FindByID returns a product by identifier.
func (r *ProductRepository) FindByID(ctx context.Context, id string) (*models.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products WHERE id = $1 LIMIT 1`, productColumns)
	var product models.Product
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find product by id: %w", err)
	}
	return &product, nil
}

// Update updates mutable fields of a product.
func (r *ProductRepository) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now().UTC()
	const query = `UPDATE products SET name = :name, description = :description, price = :price, category = :category, stock = :stock, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, product)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a product record.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM products WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Count returns the number of products matching the plan's conditions. It
// shares the WHERE clause with Find so the page count and the page fetch
// always scope the same predicate.
func (r *ProductRepository) Count(ctx context.Context, plan query.Plan) (int, error) {
	where, args, err := buildWhere(plan)
	if err != nil {
		return 0, err
	}
	countQuery := "SELECT COUNT(*) FROM products" + where

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return total, nil
}

// Find returns the page of products described by a fully paginated plan.
func (r *ProductRepository) Find(ctx context.Context, plan query.Plan) ([]models.Product, error) {
	where, args, err := buildWhere(plan)
	if err != nil {
		return nil, err
	}
	listQuery := fmt.Sprintf("SELECT %s FROM products%s ORDER BY created_at DESC LIMIT %d OFFSET %d", productColumns, where, plan.Limit, plan.Skip)

	products := []models.Product{}
	if err := r.db.SelectContext(ctx, &products, listQuery, args...); err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return products, nil
}

func buildWhere(plan query.Plan) (string, []interface{}, error) {
	var conditions []string
	var args []interface{}

	if plan.Keyword != "" {
		conditions = append(conditions, fmt.Sprintf(`name ILIKE $%d ESCAPE '\'`, len(args)+1))
		args = append(args, "%"+query.EscapeLike(plan.Keyword)+"%")
	}

	params := make([]string, 0, len(plan.Filters))
	for param := range plan.Filters {
		if _, ok := filterableColumns[param]; ok {
			params = append(params, param)
		}
	}
	sort.Strings(params)

	for _, param := range params {
		col := filterableColumns[param]
		raw := plan.Filters[param]

		var value interface{} = raw
		if col.numeric {
			parsed, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return "", nil, fmt.Errorf("%w: %s=%q", ErrInvalidFilter, param, raw)
			}
			value = parsed
		}

		conditions = append(conditions, fmt.Sprintf("%s = $%d", col.column, len(args)+1))
		args = append(args, value)
	}

	if len(conditions) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conditions, " AND "), args, nil
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const productColumns = "id, name, description, price, stock, image, category, created_at, updated_at"

// productCache holds recently viewed products. Only product-detail reads go
// through it; the cart engine and checkout always query live rows.
type productCache struct {
	mu    sync.RWMutex
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// CatalogService lists and retrieves products and handles admin product CRUD.
type CatalogService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	cache   productCache
}

// NewCatalogService creates a new catalog service
func NewCatalogService(database *db.DB, m *metrics.AppMetrics) *CatalogService {
	return &CatalogService{
		db:      database,
		metrics: m,
		cache:   productCache{items: make(map[int64]cachedProduct)},
	}
}

// ListFeatured returns up to limit products in insertion order.
func (s *CatalogService) ListFeatured(ctx context.Context, limit int) ([]models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products ORDER BY id LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, limit)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// ListAll returns every product in insertion order.
func (s *CatalogService) ListAll(ctx context.Context) ([]models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products ORDER BY id"
	rows, err := s.db.QueryContext(ctx, query)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

// GroupByCategory groups products by category, preserving the original
// order within each group. The returned category list puts the fixed
// display order first, then unlisted categories in first-seen order.
func GroupByCategory(products []models.Product) (map[string][]models.Product, []string) {
	grouped := make(map[string][]models.Product)
	var seen []string
	for _, p := range products {
		if _, ok := grouped[p.Category]; !ok {
			seen = append(seen, p.Category)
		}
		grouped[p.Category] = append(grouped[p.Category], p)
	}

	var order []string
	known := make(map[string]bool)
	for _, c := range models.CategoryDisplayOrder {
		known[c] = true
		if _, ok := grouped[c]; ok {
			order = append(order, c)
		}
	}
	for _, c := range seen {
		if !known[c] {
			order = append(order, c)
		}
	}
	return grouped, order
}

// GetProduct returns a product by ID, serving repeat views from a short
// lived cache.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	s.cache.mu.RLock()
	if cached, exists := s.cache.items[id]; exists && time.Now().Before(cached.expires) {
		s.cache.mu.RUnlock()
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		s.recordView(ctx, &cached.product)
		return &cached.product, nil
	}
	s.cache.mu.RUnlock()
	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))

	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	var p models.Product
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Category, &p.CreatedAt, &p.UpdatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("product")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	s.cache.mu.Lock()
	s.cache.items[id] = cachedProduct{product: p, expires: time.Now().Add(5 * time.Minute)}
	s.cache.mu.Unlock()

	s.recordView(ctx, &p)
	return &p, nil
}

// ProductInput carries raw admin form values; price and stock arrive as
// strings and are validated here.
type ProductInput struct {
	Name        string
	Description string
	Price       string
	Stock       string
	Image       string
	Category    string
}

func (in ProductInput) parse() (models.Product, error) {
	if in.Name == "" {
		return models.Product{}, apperr.Validation("product name is required")
	}

	price, err := strconv.ParseFloat(in.Price, 64)
	if err != nil || price < 0 {
		return models.Product{}, apperr.Validation("price must be a non-negative number")
	}
	stock, err := strconv.Atoi(in.Stock)
	if err != nil || stock < 0 {
		return models.Product{}, apperr.Validation("stock must be a non-negative integer")
	}

	image := in.Image
	if image == "" {
		image = "default.jpg"
	}
	category := in.Category
	if category == "" {
		category = models.DefaultCategory
	}

	return models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       price,
		Stock:       stock,
		Image:       image,
		Category:    category,
	}, nil
}

// CreateProduct validates and inserts a new product.
func (s *CatalogService) CreateProduct(ctx context.Context, in ProductInput) (*models.Product, error) {
	p, err := in.parse()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	query := "INSERT INTO products (name, description, price, stock, image, category) VALUES (?, ?, ?, ?, ?, ?)"
	result, err := s.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.Stock, p.Image, p.Category)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}
	return &p, nil
}

// UpdateProduct validates the whole input before touching the row, so a
// malformed field leaves the product unchanged.
func (s *CatalogService) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*models.Product, error) {
	p, err := in.parse()
	if err != nil {
		return nil, err
	}
	p.ID = id

	start := time.Now()
	query := "UPDATE products SET name = ?, description = ?, price = ?, stock = ?, image = ?, category = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.Stock, p.Image, p.Category, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, apperr.NotFound("product")
	}

	s.invalidate(id)
	return &p, nil
}

// DeleteProduct removes the product row. Historical orders keep their own
// name/price snapshots, so no cascade is needed.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	start := time.Now()
	query := "DELETE FROM products WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "DELETE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("product")
	}

	s.invalidate(id)
	return nil
}

func (s *CatalogService) invalidate(id int64) {
	s.cache.mu.Lock()
	delete(s.cache.items, id)
	s.cache.mu.Unlock()
}

func (s *CatalogService) recordView(ctx context.Context, p *models.Product) {
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", p.ID),
		attribute.String("product_category", p.Category),
	})
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.StockLevel.Record(ctx, int64(p.Stock), metric.WithAttributes(attrs...))
}

func scanProducts(rows *sql.Rows) ([]models.Product, error) {
	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock, &p.Image, &p.Category, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

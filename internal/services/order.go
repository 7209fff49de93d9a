package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/models"
)

const orderColumns = "id, user_id, items_json, total_price, status, created_at"

// OrderService handles order reads, admin status transitions and dashboard
// reporting. Orders are only ever created by the cart engine's checkout.
type OrderService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewOrderService creates a new order service
func NewOrderService(database *db.DB, m *metrics.AppMetrics) *OrderService {
	return &OrderService{
		db:      database,
		metrics: m,
	}
}

// GetOrder returns an order by ID
func (s *OrderService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	start := time.Now()
	query := "SELECT " + orderColumns + " FROM orders WHERE id = ?"

	row := s.db.QueryRowContext(ctx, query, orderID)
	order, err := scanOrder(row)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("order")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return order, nil
}

// ListUserOrders returns a user's orders, most recent first.
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders WHERE user_id = ? ORDER BY created_at DESC"
	return s.listOrders(ctx, query, userID)
}

// ListAllOrders returns every order, most recent first.
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.Order, error) {
	query := "SELECT " + orderColumns + " FROM orders ORDER BY created_at DESC"
	return s.listOrders(ctx, query)
}

func (s *OrderService) listOrders(ctx context.Context, query string, args ...interface{}) ([]models.Order, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

// UpdateOrderStatus sets an order's status. Anything outside the fixed
// status set is rejected without touching the row; within the set, any
// transition is allowed.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID int64, status string) error {
	if !models.ValidStatuses[status] {
		return apperr.Validation("invalid status: " + status)
	}

	start := time.Now()
	query := "UPDATE orders SET status = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, status, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperr.NotFound("order")
	}
	return nil
}

// DashboardStats is the admin dashboard read-side aggregate.
type DashboardStats struct {
	TotalProducts   int            `json:"total_products"`
	PendingOrders   int            `json:"pending_orders"`
	CompletedOrders int            `json:"completed_orders"`
	RecentOrders    []models.Order `json:"recent_orders"`
}

// DashboardStats returns aggregate counts plus the five most recent orders.
func (s *OrderService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}

	counts := []struct {
		query string
		table string
		dest  *int
		args  []interface{}
	}{
		{"SELECT COUNT(*) FROM products", "products", &stats.TotalProducts, nil},
		{"SELECT COUNT(*) FROM orders WHERE status = ?", "orders", &stats.PendingOrders, []interface{}{models.StatusPending}},
		{"SELECT COUNT(*) FROM orders WHERE status = ?", "orders", &stats.CompletedOrders, []interface{}{models.StatusCompleted}},
	}
	for _, c := range counts {
		start := time.Now()
		err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest)
		s.metrics.RecordDBQuery(ctx, "SELECT", c.table, c.query, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", c.table, err)
		}
	}

	recent, err := s.listOrders(ctx, "SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT 5")
	if err != nil {
		return nil, err
	}
	stats.RecentOrders = recent

	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var order models.Order
	var itemsJSON string
	if err := row.Scan(&order.ID, &order.UserID, &itemsJSON, &order.TotalPrice, &order.Status, &order.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(itemsJSON), &order.Items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return &order, nil
}

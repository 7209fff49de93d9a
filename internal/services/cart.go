package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/logger"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Cart update actions.
const (
	ActionIncrease = "increase"
	ActionDecrease = "decrease"
	ActionRemove   = "remove"
)

// Adjustment reasons reported by Reconcile and Update.
const (
	AdjustRemoved    = "removed"
	AdjustClamped    = "adjusted"
	AdjustStockLimit = "stock_limit"
)

// Adjustment describes a cart line the engine had to correct against live
// stock.
type Adjustment struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Quantity  int    `json:"quantity"`
}

// CartService is the cart engine. It holds no cart state of its own: the
// request layer passes the session cart in and persists whatever comes
// back.
type CartService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewCartService creates a new cart service
func NewCartService(database *db.DB, m *metrics.AppMetrics) *CartService {
	return &CartService{
		db:      database,
		metrics: m,
	}
}

// Add puts qty units of a product into the cart, snapshotting the product's
// current name, price and image on a new line. The requested increment is
// checked against total live stock, not against stock minus what the cart
// already holds, so repeated adds can push a line past real stock; that is
// caught later by Reconcile and Checkout.
func (s *CartService) Add(ctx context.Context, cart models.Cart, productID int64, qty int) (models.Cart, error) {
	if qty < 1 {
		qty = 1
	}
	if cart == nil {
		cart = models.Cart{}
	}

	name, price, stock, image, err := s.productRow(ctx, productID)
	if err == sql.ErrNoRows {
		return cart, apperr.NotFound("product")
	}
	if err != nil {
		return cart, fmt.Errorf("failed to get product: %w", err)
	}

	if qty > stock {
		return cart, apperr.InsufficientStock(name)
	}

	key := strconv.FormatInt(productID, 10)
	if line, ok := cart[key]; ok {
		line.Quantity += qty
		cart[key] = line
	} else {
		cart[key] = models.CartLine{Name: name, Price: price, Image: image, Quantity: qty}
	}

	s.recordCartSize(ctx, cart)
	return cart, nil
}

// Reconcile re-validates every cart line against live stock: missing or
// sold-out products are dropped, overdrawn lines are clamped down to stock.
// Returns the reconciled cart, its total over the reconciled set, and the
// list of corrections. Running it again without intervening stock changes
// is a no-op.
func (s *CartService) Reconcile(ctx context.Context, cart models.Cart) (models.Cart, float64, []Adjustment, error) {
	cleaned := models.Cart{}
	var adjustments []Adjustment

	for _, key := range sortedKeys(cart) {
		line := cart[key]
		productID, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			adjustments = append(adjustments, Adjustment{ProductID: key, Name: line.Name, Reason: AdjustRemoved})
			continue
		}

		_, _, stock, _, err := s.productRow(ctx, productID)
		switch {
		case err == sql.ErrNoRows || (err == nil && stock == 0):
			adjustments = append(adjustments, Adjustment{ProductID: key, Name: line.Name, Reason: AdjustRemoved})
		case err != nil:
			return cart, 0, nil, fmt.Errorf("failed to get product: %w", err)
		case stock < line.Quantity:
			line.Quantity = stock
			cleaned[key] = line
			adjustments = append(adjustments, Adjustment{ProductID: key, Name: line.Name, Reason: AdjustClamped, Quantity: stock})
		default:
			cleaned[key] = line
		}
	}

	s.recordCartSize(ctx, cleaned)
	return cleaned, cleaned.Total(), adjustments, nil
}

// Update applies a single-line action. An absent line is ignored; increase
// is capped at live stock and reports a stock-limit adjustment instead of
// going over; decrease to zero removes the line.
func (s *CartService) Update(ctx context.Context, cart models.Cart, productID int64, action string) (models.Cart, *Adjustment, error) {
	name, _, stock, _, err := s.productRow(ctx, productID)
	if err == sql.ErrNoRows {
		return cart, nil, apperr.NotFound("product")
	}
	if err != nil {
		return cart, nil, fmt.Errorf("failed to get product: %w", err)
	}

	key := strconv.FormatInt(productID, 10)
	line, ok := cart[key]
	if !ok {
		return cart, nil, nil
	}

	var adjustment *Adjustment
	switch action {
	case ActionRemove:
		delete(cart, key)
	case ActionIncrease:
		if line.Quantity < stock {
			line.Quantity++
			cart[key] = line
		} else {
			adjustment = &Adjustment{ProductID: key, Name: name, Reason: AdjustStockLimit, Quantity: stock}
		}
	case ActionDecrease:
		line.Quantity--
		if line.Quantity <= 0 {
			delete(cart, key)
		} else {
			cart[key] = line
		}
	default:
		return cart, nil, apperr.Validation("unknown cart action: " + action)
	}

	s.recordCartSize(ctx, cart)
	return cart, adjustment, nil
}

// Checkout converts the cart into a persisted order. Stock decrements and
// the order insert commit or fail together; a line whose conditional
// decrement affects no row (missing product or insufficient stock) aborts
// the whole transaction and leaves the cart untouched. Concurrent checkouts
// against the same product are serialized by the storage layer: the loser's
// decrement matches no row and it fails with InsufficientStock.
//
// The order is created Pending and flipped to Completed by a second atomic
// update once the simulated payment "succeeds"; a real payment gateway call
// can later slot between the two without changing the transaction shape.
func (s *CartService) Checkout(ctx context.Context, userID int64, cart models.Cart) (*models.Order, error) {
	if len(cart) == 0 {
		return nil, apperr.EmptyCart()
	}

	ids := make([]int64, 0, len(cart))
	for key, line := range cart {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, apperr.InsufficientStock(line.Name)
		}
		ids = append(ids, id)
	}
	// Ascending id order keeps row lock acquisition deterministic.
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	items := make(map[string]models.OrderLine, len(cart))
	var total float64

	decrementQuery := "UPDATE products SET stock = stock - ? WHERE id = ? AND stock >= ?"
	snapshotQuery := "SELECT name, price FROM products WHERE id = ?"

	for _, id := range ids {
		key := strconv.FormatInt(id, 10)
		line := cart[key]

		start := time.Now()
		result, err := tx.ExecContext(ctx, decrementQuery, line.Quantity, id, line.Quantity)
		s.metrics.RecordDBQuery(ctx, "UPDATE", "products", decrementQuery, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to reserve stock: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return nil, apperr.InsufficientStock(line.Name)
		}

		// Snapshot the live price and name inside the transaction.
		var name string
		var price float64
		start = time.Now()
		err = tx.QueryRowContext(ctx, snapshotQuery, id).Scan(&name, &price)
		s.metrics.RecordDBQuery(ctx, "SELECT", "products", snapshotQuery, start, err == nil)
		if err != nil {
			return nil, fmt.Errorf("failed to snapshot product: %w", err)
		}

		items[key] = models.OrderLine{Quantity: line.Quantity, PriceAtOrder: price, Name: name}
		total += price * float64(line.Quantity)
	}

	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}

	start := time.Now()
	orderQuery := "INSERT INTO orders (user_id, items_json, total_price, status) VALUES (?, ?, ?, ?)"
	result, err := tx.ExecContext(ctx, orderQuery, userID, string(itemsJSON), total, models.StatusPending)
	s.metrics.RecordDBQuery(ctx, "INSERT", "orders", orderQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get order ID: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	// Simulated payment: the order completes immediately, as its own atomic
	// update.
	start = time.Now()
	statusQuery := "UPDATE orders SET status = ? WHERE id = ?"
	_, err = s.db.ExecContext(ctx, statusQuery, models.StatusCompleted, orderID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "orders", statusQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("order %d created but payment completion failed: %w", orderID, err)
	}

	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("order_status", models.StatusCompleted),
	})
	s.metrics.OrdersCreated.Add(ctx, 1, metric.WithAttributes(attrs...))
	s.metrics.RevenueTotal.Add(ctx, total, metric.WithAttributes(attrs...))

	logger.Log.Info("order placed",
		zap.Int64("order_id", orderID),
		zap.Int64("user_id", userID),
		zap.Float64("total", total),
		zap.Int("lines", len(items)),
	)

	return &models.Order{
		ID:         orderID,
		UserID:     userID,
		Items:      items,
		TotalPrice: total,
		Status:     models.StatusCompleted,
		CreatedAt:  time.Now(),
	}, nil
}

// productRow reads the live fields the cart engine needs. Returns
// sql.ErrNoRows untouched so callers can tell a missing product apart from
// a query failure.
func (s *CartService) productRow(ctx context.Context, id int64) (name string, price float64, stock int, image string, err error) {
	start := time.Now()
	query := "SELECT name, price, stock, image FROM products WHERE id = ?"
	err = s.db.QueryRowContext(ctx, query, id).Scan(&name, &price, &stock, &image)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || err == sql.ErrNoRows)
	return name, price, stock, image, err
}

func (s *CartService) recordCartSize(ctx context.Context, cart models.Cart) {
	s.metrics.CartItemsCount.Record(ctx, int64(cart.Count()),
		metric.WithAttributes(s.metrics.WithServiceName(nil)...))
}

func sortedKeys(cart models.Cart) []string {
	keys := make([]string, 0, len(cart))
	for key := range cart {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, errA := strconv.ParseInt(keys[i], 10, 64)
		b, errB := strconv.ParseInt(keys[j], 10, 64)
		if errA != nil || errB != nil {
			return keys[i] < keys[j]
		}
		return a < b
	})
	return keys
}

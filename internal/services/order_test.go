package services

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleItemsJSON = `{"2":{"quantity":4,"price_at_order":100,"name":"Pendant"}}`

func orderRows(orders ...models.Order) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "user_id", "items_json", "total_price", "status", "created_at"})
	for _, o := range orders {
		rows.AddRow(o.ID, o.UserID, sampleItemsJSON, o.TotalPrice, o.Status, o.CreatedAt)
	}
	return rows
}

func TestGetOrder(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	created := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+orderColumns+" FROM orders WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(orderRows(models.Order{ID: 42, UserID: 7, TotalPrice: 400, Status: models.StatusCompleted, CreatedAt: created}))

	order, err := svc.GetOrder(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), order.ID)
	assert.Equal(t, models.StatusCompleted, order.Status)
	assert.Equal(t, models.OrderLine{Quantity: 4, PriceAtOrder: 100, Name: "Pendant"}, order.Items["2"])
}

func TestGetOrderNotFound(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+orderColumns+" FROM orders WHERE id = ?")).
		WithArgs(int64(99)).
		WillReturnRows(orderRows())

	_, err := svc.GetOrder(context.Background(), 99)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestListUserOrders(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+orderColumns+" FROM orders WHERE user_id = ? ORDER BY created_at DESC")).
		WithArgs(int64(7)).
		WillReturnRows(orderRows(
			models.Order{ID: 2, UserID: 7, TotalPrice: 200, Status: models.StatusCompleted, CreatedAt: now},
			models.Order{ID: 1, UserID: 7, TotalPrice: 100, Status: models.StatusCompleted, CreatedAt: now.Add(-time.Hour)},
		))

	orders, err := svc.ListUserOrders(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, int64(2), orders[0].ID)
}

func TestListAllOrders(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + orderColumns + " FROM orders ORDER BY created_at DESC")).
		WillReturnRows(orderRows(models.Order{ID: 1, UserID: 7, TotalPrice: 100, Status: models.StatusPending, CreatedAt: time.Now()}))

	orders, err := svc.ListAllOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestUpdateOrderStatus(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ? WHERE id = ?")).
		WithArgs(models.StatusCancelled, int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, svc.UpdateOrderStatus(context.Background(), 42, models.StatusCancelled))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusRejectsUnknownStatus(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	err := svc.UpdateOrderStatus(context.Background(), 42, "Shipped")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	// No SQL runs for a rejected status.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateOrderStatusNotFound(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status = ? WHERE id = ?")).
		WithArgs(models.StatusPending, int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := svc.UpdateOrderStatus(context.Background(), 99, models.StatusPending)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestDashboardStats(t *testing.T) {
	database, mock, m := newTestDeps(t)
	svc := NewOrderService(database, m)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE status = ?")).
		WithArgs(models.StatusPending).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders WHERE status = ?")).
		WithArgs(models.StatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT "+orderColumns+" FROM orders ORDER BY created_at DESC LIMIT 5")).
		WillReturnRows(orderRows(models.Order{ID: 11, UserID: 7, TotalPrice: 400, Status: models.StatusCompleted, CreatedAt: time.Now()}))

	stats, err := svc.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalProducts)
	assert.Equal(t, 2, stats.PendingOrders)
	assert.Equal(t, 9, stats.CompletedOrders)
	require.Len(t, stats.RecentOrders, 1)
	assert.Equal(t, int64(11), stats.RecentOrders[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

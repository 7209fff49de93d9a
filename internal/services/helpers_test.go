package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

// newTestDeps wires a sqlmock-backed DB and noop instruments for service
// tests.
func newTestDeps(t *testing.T) (*db.DB, sqlmock.Sqlmock, *metrics.AppMetrics) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	m, err := metrics.NewAppMetrics(noop.NewMeterProvider().Meter("test"), "test")
	require.NoError(t, err)

	return db.Wrap(sqlDB), mock, m
}

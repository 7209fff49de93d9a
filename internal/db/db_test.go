package db

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return Wrap(sqlDB), mock
}

func TestSplitSQLStatements(t *testing.T) {
	schema := `-- comment
CREATE TABLE a (
    id INT
);

-- another comment
CREATE TABLE b (id INT);
`
	statements := splitSQLStatements(schema)
	require.Len(t, statements, 2)
	assert.Contains(t, statements[0], "CREATE TABLE a")
	assert.Contains(t, statements[1], "CREATE TABLE b")
}

func TestInitSchema(t *testing.T) {
	database, mock := newMockDB(t)

	mock.ExpectExec("CREATE TABLE a.*").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE b.*").WillReturnResult(sqlmock.NewResult(0, 0))

	err := database.InitSchema(context.Background(), "CREATE TABLE a (id INT);\nCREATE TABLE b (id INT);")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedProductsSkipsNonEmptyTable(t *testing.T) {
	database, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	require.NoError(t, database.SeedProducts(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedProductsFillsEmptyTable(t *testing.T) {
	database, mock := newMockDB(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM products")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	insert := regexp.QuoteMeta("INSERT INTO products (name, description, price, stock, image, category) VALUES (?, ?, ?, ?, ?, ?)")
	for i := 0; i < 6; i++ {
		mock.ExpectExec(insert).WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}

	require.NoError(t, database.SeedProducts(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

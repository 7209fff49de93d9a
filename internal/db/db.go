package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/go-sql-driver/mysql"
	"github.com/musejewels/storefront/internal/logger"
	"github.com/musejewels/storefront/internal/models"
	"go.opentelemetry.io/otel/attribute"
)

// DB wraps the database connection.
type DB struct {
	*sql.DB
}

// Open creates a new MySQL connection with OpenTelemetry instrumentation.
func Open(dsn, serviceName string) (*DB, error) {
	driverName, err := otelsql.Register("mysql",
		otelsql.WithAttributes(
			attribute.String("db.system", "mysql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(
		attribute.String("db.system", "mysql"),
		attribute.String("service.name", serviceName),
	)); err != nil {
		logger.Log.Sugar().Warnf("failed to register otelsql stats metrics: %v", err)
	}

	return Wrap(sqlDB), nil
}

// Wrap builds a DB around an existing connection. Used by tests to inject a
// mock driver.
func Wrap(sqlDB *sql.DB) *DB {
	return &DB{DB: sqlDB}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// InitSchema initializes the database schema. It splits the SQL into
// individual statements and executes them one by one.
func (db *DB) InitSchema(ctx context.Context, schemaSQL string) error {
	statements := splitSQLStatements(schemaSQL)

	for i, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" || strings.HasPrefix(stmt, "--") {
			continue
		}

		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute statement %d: %w\nStatement: %s", i+1, err, stmt)
		}
	}

	logger.Log.Info("Database schema initialized")
	return nil
}

// SeedProducts inserts the sample catalog when the products table is empty.
func (db *DB) SeedProducts(ctx context.Context) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return fmt.Errorf("failed to count products: %w", err)
	}
	if count > 0 {
		return nil
	}

	samples := []models.Product{
		{Name: "Rose Gold Heart Pendant", Description: "A delicate rose gold heart pendant with small stones.", Price: 1499.00, Stock: 15, Image: "pendant_heart.jpg", Category: "Pendant Sets"},
		{Name: "Sapphire Stud Earrings", Description: "Small but striking sapphire earrings for daily wear.", Price: 750.50, Stock: 30, Image: "earrings.jpg", Category: "Earrings"},
		{Name: "Classic Diamond Necklace Set", Description: "Full bridal-style necklace set with matching earrings.", Price: 2999.00, Stock: 10, Image: "necklace_classic.jpg", Category: "Necklace Sets"},
		{Name: "Emerald Drop Earrings", Description: "Elegant emerald cut drop earrings, perfect for evenings.", Price: 1250.00, Stock: 20, Image: "earrings_emerald.jpg", Category: "Earrings"},
		{Name: "Solitaire Pendant & Chain", Description: "Simple solitaire pendant with a thin golden chain.", Price: 1800.00, Stock: 12, Image: "pendant_solitaire.jpg", Category: "Pendant Sets"},
		{Name: "Pearl Choker Necklace", Description: "A modern choker-style necklace with tiny freshwater pearls.", Price: 2400.00, Stock: 8, Image: "necklace_pearl.jpg", Category: "Necklace Sets"},
	}

	query := "INSERT INTO products (name, description, price, stock, image, category) VALUES (?, ?, ?, ?, ?, ?)"
	for _, p := range samples {
		if _, err := db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.Stock, p.Image, p.Category); err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.Name, err)
		}
	}

	logger.Log.Sugar().Infof("Seeded %d sample products", len(samples))
	return nil
}

// splitSQLStatements splits a SQL string into individual statements
func splitSQLStatements(sql string) []string {
	// Strip comment lines before splitting on semicolons
	lines := strings.Split(sql, "\n")
	var cleanedLines []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && !strings.HasPrefix(trimmed, "--") {
			cleanedLines = append(cleanedLines, line)
		}
	}

	statements := strings.Split(strings.Join(cleanedLines, "\n"), ";")

	var result []string
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			result = append(result, stmt)
		}
	}

	return result
}

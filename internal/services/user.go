package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/musejewels/storefront/internal/apperr"
	"github.com/musejewels/storefront/internal/db"
	"github.com/musejewels/storefront/internal/metrics"
	"github.com/musejewels/storefront/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserService handles registration and login. Passwords are stored as
// bcrypt hashes, never in plain text.
type UserService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
}

// NewUserService creates a new user service
func NewUserService(database *db.DB, m *metrics.AppMetrics) *UserService {
	return &UserService{
		db:      database,
		metrics: m,
	}
}

// Register creates a new user account. Username and email are unique; a
// duplicate of either fails with a conflict.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	if username == "" || email == "" || password == "" {
		return nil, apperr.Validation("all fields are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	start := time.Now()
	query := "INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)"
	result, err := s.db.ExecContext(ctx, query, username, email, string(hash))
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		// MySQL error 1062 on the unique username/email keys
		if strings.Contains(err.Error(), "Duplicate entry") {
			return nil, apperr.Conflict("username or email already taken")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return &models.User{
		ID:        id,
		Username:  username,
		Email:     email,
		CreatedAt: time.Now(),
	}, nil
}

// Authenticate verifies a username/password pair. An unknown username and a
// wrong password produce the same error so login failures don't reveal
// which accounts exist.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	start := time.Now()
	query := "SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?"
	var user models.User
	err := s.db.QueryRowContext(ctx, query, username).Scan(
		&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt,
	)
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || err == sql.ErrNoRows)

	if err == sql.ErrNoRows {
		return nil, apperr.Unauthenticated("invalid username or password")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthenticated("invalid username or password")
	}

	user.PasswordHash = ""
	return &user, nil
}

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benvon/tagdesk/internal/models"
)

// runtimeConfigKey is the single row the server reads CORS and rate limit
// settings from. The tables are keyed so more profiles can be added later.
const runtimeConfigKey = "default"

// CorsConfigRepository stores the allowed origins the server reloads
// periodically.
type CorsConfigRepository struct {
	db *DB
}

// NewCorsConfigRepository creates a new CORS config repository.
func NewCorsConfigRepository(db *DB) *CorsConfigRepository {
	return &CorsConfigRepository{db: db}
}

// Get returns the stored settings, or nil when none were saved.
func (r *CorsConfigRepository) Get(ctx context.Context) (*models.CorsConfig, error) {
	c := &models.CorsConfig{}
	err := r.db.QueryRowContext(ctx,
		`SELECT config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at
		 FROM cors_config WHERE config_key = $1`, runtimeConfigKey,
	).Scan(&c.ConfigKey, &c.AllowedOrigins, &c.AllowCredentials, &c.MaxAge, &c.CreatedAt, &c.UpdatedAt)
	return optionalRow(c, err, "cors")
}

// Set saves the settings. AllowedOrigins is a comma-separated list.
func (r *CorsConfigRepository) Set(ctx context.Context, c *models.CorsConfig) error {
	origins := strings.TrimSpace(c.AllowedOrigins)
	if origins == "" {
		return errors.New("allowed_origins cannot be empty")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cors_config (config_key, allowed_origins, allow_credentials, max_age, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (config_key) DO UPDATE SET
			allowed_origins = EXCLUDED.allowed_origins,
			allow_credentials = EXCLUDED.allow_credentials,
			max_age = EXCLUDED.max_age,
			updated_at = EXCLUDED.updated_at
	`, runtimeConfigKey, origins, c.AllowCredentials, c.MaxAge, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store cors config: %w", err)
	}
	return nil
}

// RatelimitConfigRepository stores the request rate the server reloads
// periodically.
type RatelimitConfigRepository struct {
	db *DB
}

// NewRatelimitConfigRepository creates a new rate limit config repository.
func NewRatelimitConfigRepository(db *DB) *RatelimitConfigRepository {
	return &RatelimitConfigRepository{db: db}
}

// Get returns the stored rate, or nil when none was saved.
func (r *RatelimitConfigRepository) Get(ctx context.Context) (*models.RatelimitConfig, error) {
	c := &models.RatelimitConfig{}
	err := r.db.QueryRowContext(ctx,
		`SELECT config_key, rate, created_at, updated_at FROM ratelimit_config WHERE config_key = $1`,
		runtimeConfigKey,
	).Scan(&c.ConfigKey, &c.Rate, &c.CreatedAt, &c.UpdatedAt)
	return optionalRow(c, err, "ratelimit")
}

// Set saves the rate, formatted like "5-S" or "100-M".
func (r *RatelimitConfigRepository) Set(ctx context.Context, c *models.RatelimitConfig) error {
	rate := strings.TrimSpace(c.Rate)
	if rate == "" {
		return errors.New("rate cannot be empty")
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO ratelimit_config (config_key, rate, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (config_key) DO UPDATE SET
			rate = EXCLUDED.rate,
			updated_at = EXCLUDED.updated_at
	`, runtimeConfigKey, rate, time.Now())
	if err != nil {
		return fmt.Errorf("failed to store ratelimit config: %w", err)
	}
	return nil
}

// optionalRow turns a missing row into (nil, nil).
func optionalRow[T any](v *T, err error, what string) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s config: %w", what, err)
	}
	return v, nil
}

package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// DB wraps the database connection
type DB struct {
	*sql.DB
}

// NewDB creates a new database connection
// connectionString should be in the format: "host=localhost port=5432 user=postgres password=postgres dbname=dcaplanner sslmode=disable"
func NewDB(connectionString string) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate creates the schema if it does not exist yet
func (db *DB) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS configs (
			user_id TEXT PRIMARY KEY,
			starting_capital DECIMAL NOT NULL,
			usable_percent DECIMAL NOT NULL,
			duration_weeks INT NOT NULL,
			current_week INT NOT NULL,
			start_date DATE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS assets (
			user_id TEXT NOT NULL,
			id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			allocation_percent DECIMAL NOT NULL,
			reference_price DECIMAL NOT NULL,
			PRIMARY KEY (user_id, id)
		)`,
		`CREATE TABLE IF NOT EXISTS tiers (
			user_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			position INT NOT NULL,
			label TEXT NOT NULL,
			min_price DECIMAL NOT NULL,
			max_price DECIMAL,
			coefficient DECIMAL NOT NULL,
			PRIMARY KEY (user_id, asset_id, position),
			FOREIGN KEY (user_id, asset_id) REFERENCES assets (user_id, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS purchases (
			id UUID PRIMARY KEY,
			user_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			week_index INT NOT NULL,
			quantity DECIMAL NOT NULL,
			price_at_purchase DECIMAL NOT NULL,
			amount_spent DECIMAL NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			FOREIGN KEY (user_id, asset_id) REFERENCES assets (user_id, id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS price_cache (
			user_id TEXT NOT NULL,
			provider_id TEXT NOT NULL,
			day DATE NOT NULL,
			eur DECIMAL NOT NULL,
			usd DECIMAL NOT NULL,
			PRIMARY KEY (user_id, provider_id, day)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}

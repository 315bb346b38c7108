package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// configRepository implements domain.ConfigRepository
type configRepository struct {
	db *DB
}

// NewConfigRepository creates a new config repository
func NewConfigRepository(db *DB) domain.ConfigRepository {
	return &configRepository{db: db}
}

// Get retrieves the user's capital config
func (r *configRepository) Get(ctx context.Context, userID string) (*domain.CapitalConfig, error) {
	query := `
		SELECT starting_capital, usable_percent, duration_weeks, current_week, start_date
		FROM configs
		WHERE user_id = $1
	`

	var cfg domain.CapitalConfig
	var capitalStr, percentStr string

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&capitalStr,
		&percentStr,
		&cfg.DurationWeeks,
		&cfg.CurrentWeek,
		&cfg.StartDate,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get config: %w", err)
	}

	if cfg.StartingCapital, err = decimal.NewFromString(capitalStr); err != nil {
		return nil, fmt.Errorf("failed to parse starting_capital: %w", err)
	}
	if cfg.UsablePercent, err = decimal.NewFromString(percentStr); err != nil {
		return nil, fmt.Errorf("failed to parse usable_percent: %w", err)
	}
	cfg.StartDate = cfg.StartDate.UTC()

	return &cfg, nil
}

// Put creates or replaces the user's capital config
func (r *configRepository) Put(ctx context.Context, userID string, cfg *domain.CapitalConfig) error {
	query := `
		INSERT INTO configs (user_id, starting_capital, usable_percent, duration_weeks, current_week, start_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			starting_capital = EXCLUDED.starting_capital,
			usable_percent = EXCLUDED.usable_percent,
			duration_weeks = EXCLUDED.duration_weeks,
			current_week = EXCLUDED.current_week,
			start_date = EXCLUDED.start_date
	`

	_, err := r.db.ExecContext(ctx, query,
		userID,
		cfg.StartingCapital.String(),
		cfg.UsablePercent.String(),
		cfg.DurationWeeks,
		cfg.CurrentWeek,
		cfg.StartDate,
	)
	if err != nil {
		return fmt.Errorf("failed to put config: %w", err)
	}

	return nil
}

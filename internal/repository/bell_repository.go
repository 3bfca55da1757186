package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"collegebot/internal/models"
)

// BellRepository persists the pair-number → start-time lookup.
type BellRepository struct {
	db *sqlx.DB
}

// NewBellRepository creates a new bell repository.
func NewBellRepository(db *sqlx.DB) *BellRepository {
	return &BellRepository{db: db}
}

// Upsert stores the bell table, replacing times for pairs already present.
// An empty table is a no-op so a broken bells page never wipes stored times.
func (r *BellRepository) Upsert(ctx context.Context, table models.BellTable) error {
	if table.Empty() {
		return nil
	}

	pairs := make([]int, 0, len(table))
	for pair := range table {
		pairs = append(pairs, pair)
	}
	sort.Ints(pairs)

	const query = `
		INSERT INTO bells (pair_number, time_normal, time_monday) VALUES ($1, $2, $3)
		ON CONFLICT (pair_number) DO UPDATE SET time_normal = EXCLUDED.time_normal, time_monday = EXCLUDED.time_monday`

	for _, pair := range pairs {
		times := table[pair]
		var normal, monday interface{}
		if times.Normal != "" {
			normal = times.Normal
		}
		if times.Monday != "" {
			monday = times.Monday
		}
		if _, err := r.db.ExecContext(ctx, query, pair, normal, monday); err != nil {
			return fmt.Errorf("upsert bell %d: %w", pair, err)
		}
	}
	return nil
}

// Time returns the stored start time of a pair for the requested weekday
// variant, or "" when unknown.
func (r *BellRepository) Time(ctx context.Context, pair int, monday bool) (string, error) {
	column := "time_normal"
	if monday {
		column = "time_monday"
	}

	var value sql.NullString
	err := r.db.GetContext(ctx, &value,
		fmt.Sprintf("SELECT %s FROM bells WHERE pair_number = $1", column), pair)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load bell time: %w", err)
	}
	return value.String, nil
}

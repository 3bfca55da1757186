package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"collegebot/internal/models"
)

// SubscriptionRepository persists chat subscriptions.
type SubscriptionRepository struct {
	db *sqlx.DB
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *sqlx.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// Upsert stores the subscription for the subscriber key, replacing a prior
// one.
func (r *SubscriptionRepository) Upsert(ctx context.Context, sub models.Subscription) error {
	const query = `
		INSERT INTO subscriptions (chat_id, thread_id, platform, sub_type, sub_value)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id, thread_id, platform)
		DO UPDATE SET sub_type = EXCLUDED.sub_type, sub_value = EXCLUDED.sub_value`
	if _, err := r.db.ExecContext(ctx, query,
		sub.ChatID, sub.ThreadID, sub.Platform, sub.Type, sub.Value); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Find returns the subscription stored for the subscriber key, or nil.
func (r *SubscriptionRepository) Find(ctx context.Context, key models.SubscriberKey) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.GetContext(ctx, &sub,
		`SELECT chat_id, thread_id, platform, sub_type, sub_value
		 FROM subscriptions WHERE chat_id = $1 AND thread_id = $2 AND platform = $3`,
		key.ChatID, key.ThreadID, key.Platform)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find subscription: %w", err)
	}
	return &sub, nil
}

// ListByValue resolves the subscribers a changed value affects. Group
// subscriptions match on exact equality; teacher subscriptions match when the
// stored value is a prefix of the changed teacher's full name, so a
// partial-name subscription catches every matching full name.
func (r *SubscriptionRepository) ListByValue(ctx context.Context, value string, subType int) ([]models.Subscriber, error) {
	var query string
	if subType == models.SubTeacher {
		query = `SELECT chat_id, thread_id, platform FROM subscriptions
		         WHERE $1 LIKE sub_value || '%' AND sub_type = 1`
	} else {
		query = `SELECT chat_id, thread_id, platform FROM subscriptions
		         WHERE sub_value = $1 AND sub_type = 0`
	}

	var subs []models.Subscriber
	if err := r.db.SelectContext(ctx, &subs, query, value); err != nil {
		return nil, fmt.Errorf("list subscribers: %w", err)
	}
	return subs, nil
}

// AllUnique lists every distinct subscriber destination.
func (r *SubscriptionRepository) AllUnique(ctx context.Context) ([]models.Subscriber, error) {
	var subs []models.Subscriber
	if err := r.db.SelectContext(ctx, &subs,
		`SELECT DISTINCT chat_id, thread_id, platform FROM subscriptions`); err != nil {
		return nil, fmt.Errorf("list all subscribers: %w", err)
	}
	return subs, nil
}

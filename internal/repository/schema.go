package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// schema is the persisted state contract: schedule snapshots with per-lesson
// child tables, the bell lookup, and chat subscriptions.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		group_name TEXT NOT NULL,
		date_val TEXT NOT NULL,
		is_monday BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (group_name, date_val)
	)`,
	`CREATE TABLE IF NOT EXISTS lessons (
		id TEXT PRIMARY KEY,
		schedule_id TEXT NOT NULL REFERENCES schedules(id) ON DELETE CASCADE,
		pair_number INT NOT NULL,
		ordinal INT NOT NULL DEFAULT 0,
		subject TEXT NOT NULL DEFAULT '',
		start_time TEXT,
		raw_text TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_teachers (
		lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		ordinal INT NOT NULL DEFAULT 0,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_rooms (
		lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		ordinal INT NOT NULL DEFAULT 0,
		room_number INT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS lesson_labels (
		lesson_id TEXT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
		ordinal INT NOT NULL DEFAULT 0,
		label TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bells (
		pair_number INT PRIMARY KEY,
		time_normal TEXT,
		time_monday TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		chat_id BIGINT NOT NULL,
		thread_id INT NOT NULL DEFAULT 0,
		platform TEXT NOT NULL DEFAULT 'TG',
		sub_type INT NOT NULL,
		sub_value TEXT NOT NULL,
		PRIMARY KEY (chat_id, thread_id, platform)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_lessons_schedule ON lessons(schedule_id, pair_number)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_group_date ON schedules(group_name, date_val)`,
}

// Migrate creates the storage schema when missing.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

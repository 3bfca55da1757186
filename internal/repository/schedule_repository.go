package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"collegebot/internal/models"
)

// ScheduleRepository persists schedule snapshots and serves the read queries
// behind the formatted schedule texts.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// DayRef identifies one stored schedule snapshot.
type DayRef struct {
	ID       string `db:"id"`
	Date     string `db:"date_val"`
	IsMonday bool   `db:"is_monday"`
}

// StoredLesson is one lesson row of a snapshot.
type StoredLesson struct {
	ID        string         `db:"id"`
	Pair      int            `db:"pair_number"`
	Subject   string         `db:"subject"`
	StartTime sql.NullString `db:"start_time"`
	Raw       string         `db:"raw_text"`
}

// TeacherLessonRow is one aggregated row of a teacher's day.
type TeacherLessonRow struct {
	Pair    int            `db:"pair_number"`
	Subject string         `db:"subject"`
	Group   string         `db:"group_name"`
	Rooms   sql.NullString `db:"rooms"`
}

// RoomLessonRow is one aggregated row of a room's day.
type RoomLessonRow struct {
	Pair     int            `db:"pair_number"`
	Subject  string         `db:"subject"`
	Group    string         `db:"group_name"`
	Teachers sql.NullString `db:"teachers"`
}

// Signature returns the stored content signature for (group, date): the
// lessons of the snapshot in ascending pair order concatenated as
// "pair:subject:raw|". A never-stored key yields the empty string.
func (r *ScheduleRepository) Signature(ctx context.Context, group, date string) (string, error) {
	var scheduleID string
	err := r.db.GetContext(ctx, &scheduleID,
		`SELECT id FROM schedules WHERE group_name = $1 AND date_val = $2`, group, date)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find schedule for signature: %w", err)
	}

	var lessons []StoredLesson
	if err := r.db.SelectContext(ctx, &lessons,
		`SELECT id, pair_number, subject, start_time, raw_text FROM lessons WHERE schedule_id = $1 ORDER BY pair_number, ordinal`,
		scheduleID); err != nil {
		return "", fmt.Errorf("load lessons for signature: %w", err)
	}

	var sb strings.Builder
	for _, l := range lessons {
		fmt.Fprintf(&sb, "%d:%s:%s|", l.Pair, l.Subject, l.Raw)
	}
	return sb.String(), nil
}

// Replace stores the fresh snapshot for (group, date), deleting any prior one
// in the same transaction so the swap is atomic per key.
func (r *ScheduleRepository) Replace(ctx context.Context, group, date string, day *models.DaySchedule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schedules WHERE group_name = $1 AND date_val = $2`, group, date); err != nil {
		return fmt.Errorf("drop prior snapshot: %w", err)
	}

	scheduleID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schedules (id, group_name, date_val, is_monday) VALUES ($1, $2, $3, $4)`,
		scheduleID, group, date, day.IsMonday); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}

	pairs := make([]int, 0, len(day.Periods))
	for n := range day.Periods {
		pairs = append(pairs, n)
	}
	sort.Ints(pairs)

	// ordinal preserves the parse encounter order within a pair, so the
	// stored signature reads back in the same sequence it was written.
	ordinal := 0
	for _, pair := range pairs {
		for _, lesson := range day.Periods[pair].Lessons {
			lessonID := uuid.NewString()
			var startTime interface{}
			if lesson.StartTime != "" {
				startTime = lesson.StartTime
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lessons (id, schedule_id, pair_number, ordinal, subject, start_time, raw_text) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				lessonID, scheduleID, pair, ordinal, lesson.Subject, startTime, lesson.Raw); err != nil {
				return fmt.Errorf("insert lesson: %w", err)
			}
			ordinal++
			for i, name := range lesson.Teachers {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO lesson_teachers (lesson_id, ordinal, name) VALUES ($1, $2, $3)`, lessonID, i, name); err != nil {
					return fmt.Errorf("insert lesson teacher: %w", err)
				}
			}
			for i, room := range lesson.Rooms {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO lesson_rooms (lesson_id, ordinal, room_number) VALUES ($1, $2, $3)`, lessonID, i, room); err != nil {
					return fmt.Errorf("insert lesson room: %w", err)
				}
			}
			for i, label := range lesson.Labels {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO lesson_labels (lesson_id, ordinal, label) VALUES ($1, $2, $3)`, lessonID, i, label); err != nil {
					return fmt.Errorf("insert lesson label: %w", err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace: %w", err)
	}
	return nil
}

// FindGroupDay resolves the snapshot to render for a group, optionally
// narrowed to a date. Both the dotted and the spelled-out date form are
// matched. Absent date resolves to the most recently ingested snapshot.
func (r *ScheduleRepository) FindGroupDay(ctx context.Context, group, date, textDate string) (*DayRef, error) {
	var ref DayRef
	var err error
	if date != "" {
		if textDate == "" {
			textDate = date
		}
		err = r.db.GetContext(ctx, &ref,
			`SELECT id, date_val, is_monday FROM schedules
			 WHERE group_name LIKE $1 AND (date_val LIKE $2 OR date_val LIKE $3)
			 ORDER BY created_at DESC LIMIT 1`,
			"%"+group+"%", "%"+date+"%", "%"+textDate+"%")
	} else {
		err = r.db.GetContext(ctx, &ref,
			`SELECT id, date_val, is_monday FROM schedules
			 WHERE group_name LIKE $1 ORDER BY created_at DESC LIMIT 1`,
			"%"+group+"%")
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find group day: %w", err)
	}
	return &ref, nil
}

// ResolveDate finds the stored date matching the query (dotted or free-form),
// or the latest ingested date when the query is empty. Returns nil when
// nothing matches.
func (r *ScheduleRepository) ResolveDate(ctx context.Context, date, textDate string) (*DayRef, error) {
	var ref DayRef
	var err error
	if date != "" {
		if textDate == "" {
			textDate = date
		}
		err = r.db.GetContext(ctx, &ref,
			`SELECT id, date_val, is_monday FROM schedules
			 WHERE date_val LIKE $1 OR date_val LIKE $2 LIMIT 1`,
			"%"+date+"%", "%"+textDate+"%")
	} else {
		err = r.db.GetContext(ctx, &ref,
			`SELECT id, date_val, is_monday FROM schedules ORDER BY created_at DESC LIMIT 1`)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve date: %w", err)
	}
	return &ref, nil
}

// Lessons returns the lesson rows of a snapshot in pair order, ties resolved
// by insertion sequence.
func (r *ScheduleRepository) Lessons(ctx context.Context, scheduleID string) ([]StoredLesson, error) {
	var lessons []StoredLesson
	if err := r.db.SelectContext(ctx, &lessons,
		`SELECT id, pair_number, subject, start_time, raw_text FROM lessons WHERE schedule_id = $1 ORDER BY pair_number, ordinal`,
		scheduleID); err != nil {
		return nil, fmt.Errorf("load lessons: %w", err)
	}
	return lessons, nil
}

// LessonTeachers returns the teacher names of a lesson in insertion order.
func (r *ScheduleRepository) LessonTeachers(ctx context.Context, lessonID string) ([]string, error) {
	var names []string
	if err := r.db.SelectContext(ctx, &names,
		`SELECT name FROM lesson_teachers WHERE lesson_id = $1 ORDER BY ordinal`, lessonID); err != nil {
		return nil, fmt.Errorf("load lesson teachers: %w", err)
	}
	return names, nil
}

// LessonRooms returns the room numbers of a lesson in insertion order.
func (r *ScheduleRepository) LessonRooms(ctx context.Context, lessonID string) ([]int, error) {
	var rooms []int
	if err := r.db.SelectContext(ctx, &rooms,
		`SELECT room_number FROM lesson_rooms WHERE lesson_id = $1 ORDER BY ordinal`, lessonID); err != nil {
		return nil, fmt.Errorf("load lesson rooms: %w", err)
	}
	return rooms, nil
}

// LessonLabels returns the labels of a lesson in insertion order.
func (r *ScheduleRepository) LessonLabels(ctx context.Context, lessonID string) ([]string, error) {
	var labels []string
	if err := r.db.SelectContext(ctx, &labels,
		`SELECT label FROM lesson_labels WHERE lesson_id = $1 ORDER BY ordinal`, lessonID); err != nil {
		return nil, fmt.Errorf("load lesson labels: %w", err)
	}
	return labels, nil
}

// TeacherDay returns the lessons a teacher gives on the date, aggregated per
// pair/subject/group with their rooms.
func (r *ScheduleRepository) TeacherDay(ctx context.Context, teacher, date string) ([]TeacherLessonRow, error) {
	const query = `
		SELECT l.pair_number, l.subject, s.group_name,
		       STRING_AGG(DISTINCT lr.room_number::text, ',') AS rooms
		FROM schedules s
		JOIN lessons l ON s.id = l.schedule_id
		JOIN lesson_teachers lt ON l.id = lt.lesson_id
		LEFT JOIN lesson_rooms lr ON l.id = lr.lesson_id
		WHERE lt.name LIKE $1 AND s.date_val = $2
		GROUP BY l.pair_number, l.subject, s.group_name
		ORDER BY l.pair_number`
	var rows []TeacherLessonRow
	if err := r.db.SelectContext(ctx, &rows, query, "%"+teacher+"%", date); err != nil {
		return nil, fmt.Errorf("load teacher day: %w", err)
	}
	return rows, nil
}

// RoomDay returns the lessons held in the room on the date, aggregated per
// pair/subject/group with their teachers.
func (r *ScheduleRepository) RoomDay(ctx context.Context, room int, date string) ([]RoomLessonRow, error) {
	const query = `
		SELECT l.pair_number, l.subject, s.group_name,
		       STRING_AGG(DISTINCT lt.name, ', ') AS teachers
		FROM schedules s
		JOIN lessons l ON s.id = l.schedule_id
		JOIN lesson_rooms lr ON l.id = lr.lesson_id
		LEFT JOIN lesson_teachers lt ON l.id = lt.lesson_id
		WHERE lr.room_number = $1 AND s.date_val = $2
		GROUP BY l.pair_number, l.subject, s.group_name
		ORDER BY l.pair_number`
	var rows []RoomLessonRow
	if err := r.db.SelectContext(ctx, &rows, query, room, date); err != nil {
		return nil, fmt.Errorf("load room day: %w", err)
	}
	return rows, nil
}

// Groups lists every group with a stored schedule.
func (r *ScheduleRepository) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	if err := r.db.SelectContext(ctx, &groups,
		`SELECT DISTINCT group_name FROM schedules ORDER BY group_name`); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Teachers lists every teacher seen in stored lessons.
func (r *ScheduleRepository) Teachers(ctx context.Context) ([]string, error) {
	var teachers []string
	if err := r.db.SelectContext(ctx, &teachers,
		`SELECT DISTINCT name FROM lesson_teachers ORDER BY name`); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ActiveRooms lists the rooms referenced by recent snapshots.
func (r *ScheduleRepository) ActiveRooms(ctx context.Context) ([]int, error) {
	var rooms []int
	if err := r.db.SelectContext(ctx, &rooms,
		`SELECT DISTINCT lr.room_number
		 FROM lesson_rooms lr
		 JOIN lessons l ON lr.lesson_id = l.id
		 JOIN schedules s ON l.schedule_id = s.id
		 ORDER BY lr.room_number LIMIT 100`); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"collegebot/internal/models"
)

func TestScheduleRepositorySignature(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedules WHERE group_name = $1 AND date_val = $2")).
		WithArgs("1-ИП-2", "12 декабря 2025").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("sched-1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM lessons WHERE schedule_id = $1 ORDER BY pair_number, ordinal")).
		WithArgs("sched-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "pair_number", "subject", "start_time", "raw_text"}).
			AddRow("l1", 1, "Физика", nil, "Физика | Иванов И.И.").
			AddRow("l2", 2, "Математика", nil, "Математика"))

	sig, err := repo.Signature(context.Background(), "1-ИП-2", "12 декабря 2025")
	require.NoError(t, err)
	require.Equal(t, "1:Физика:Физика | Иванов И.И.|2:Математика:Математика|", sig)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositorySignatureMissingIsEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM schedules")).
		WithArgs("1-ИП-2", "12 декабря 2025").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	sig, err := repo.Signature(context.Background(), "1-ИП-2", "12 декабря 2025")
	require.NoError(t, err)
	require.Empty(t, sig)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	day := models.NewDaySchedule(false)
	period := day.Period(1)
	period.Lessons = append(period.Lessons, models.Lesson{
		Subject:  "Физика",
		Teachers: []string{"Иванов И.И."},
		Rooms:    []int{205},
		Labels:   []string{"(лекция)"},
		Raw:      "Физика | Иванов И.И. | Ауд. 205 | (лекция)",
	})

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules WHERE group_name = $1 AND date_val = $2")).
		WithArgs("1-ИП-2", "12 декабря 2025").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WithArgs(sqlmock.AnyArg(), "1-ИП-2", "12 декабря 2025", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lessons")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 0, "Физика", nil, "Физика | Иванов И.И. | Ауд. 205 | (лекция)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_teachers")).
		WithArgs(sqlmock.AnyArg(), 0, "Иванов И.И.").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_rooms")).
		WithArgs(sqlmock.AnyArg(), 0, 205).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lesson_labels")).
		WithArgs(sqlmock.AnyArg(), 0, "(лекция)").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewScheduleRepository(db).Replace(context.Background(), "1-ИП-2", "12 декабря 2025", day)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceKeepsPairOrder(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	day := models.NewDaySchedule(false)
	period := day.Period(1)
	period.Lessons = append(period.Lessons,
		models.Lesson{Subject: "Физика", Raw: "Физика"},
		models.Lesson{Subject: "Химия", Raw: "Химия"},
	)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules")).
		WithArgs("1-ИП-2", "12 декабря 2025").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schedules")).
		WithArgs(sqlmock.AnyArg(), "1-ИП-2", "12 декабря 2025", false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Lessons sharing a pair get consecutive ordinals, so the signature
	// read-back cannot permute them.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lessons")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 0, "Физика", nil, "Физика").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lessons")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, 1, "Химия", nil, "Химия").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := NewScheduleRepository(db).Replace(context.Background(), "1-ИП-2", "12 декабря 2025", day)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryReplaceRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	day := models.NewDaySchedule(false)
	day.Period(1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM schedules")).
		WithArgs("1-ИП-2", "12 декабря 2025").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := NewScheduleRepository(db).Replace(context.Background(), "1-ИП-2", "12 декабря 2025", day)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindGroupDayLatest(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE group_name LIKE $1 ORDER BY created_at DESC LIMIT 1")).
		WithArgs("%1-ИП-2%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "date_val", "is_monday"}).
			AddRow("sched-1", "12 декабря 2025", true))

	ref, err := repo.FindGroupDay(context.Background(), "1-ИП-2", "", "")
	require.NoError(t, err)
	require.NotNil(t, ref)
	require.Equal(t, "sched-1", ref.ID)
	require.True(t, ref.IsMonday)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindGroupDayByDate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("date_val LIKE $2 OR date_val LIKE $3")).
		WithArgs("%1-ИП-2%", "%12.12.2025%", "%12 декабря 2025%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "date_val", "is_monday"}))

	ref, err := repo.FindGroupDay(context.Background(), "1-ИП-2", "12.12.2025", "12 декабря 2025")
	require.NoError(t, err)
	require.Nil(t, ref)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryTeacherDay(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewScheduleRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("JOIN lesson_teachers lt ON l.id = lt.lesson_id")).
		WithArgs("%Иванов%", "12 декабря 2025").
		WillReturnRows(sqlmock.NewRows([]string{"pair_number", "subject", "group_name", "rooms"}).
			AddRow(1, "Физика", "1-ИП-2", "205"))

	rows, err := repo.TeacherDay(context.Background(), "Иванов", "12 декабря 2025")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Физика", rows[0].Subject)
	require.Equal(t, "205", rows[0].Rooms.String)
	require.NoError(t, mock.ExpectationsWereMet())
}

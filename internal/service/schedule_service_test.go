package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"collegebot/internal/repository"
)

type scheduleStoreStub struct {
	ref      *repository.DayRef
	lessons  []repository.StoredLesson
	teachers map[string][]string
	rooms    map[string][]int
	labels   map[string][]string

	teacherRows []repository.TeacherLessonRow
	roomRows    []repository.RoomLessonRow

	lastGroup, lastDate, lastTextDate string
}

func (s *scheduleStoreStub) FindGroupDay(ctx context.Context, group, date, textDate string) (*repository.DayRef, error) {
	s.lastGroup, s.lastDate, s.lastTextDate = group, date, textDate
	return s.ref, nil
}

func (s *scheduleStoreStub) ResolveDate(ctx context.Context, date, textDate string) (*repository.DayRef, error) {
	s.lastDate, s.lastTextDate = date, textDate
	return s.ref, nil
}

func (s *scheduleStoreStub) Lessons(ctx context.Context, scheduleID string) ([]repository.StoredLesson, error) {
	return s.lessons, nil
}

func (s *scheduleStoreStub) LessonTeachers(ctx context.Context, lessonID string) ([]string, error) {
	return s.teachers[lessonID], nil
}

func (s *scheduleStoreStub) LessonRooms(ctx context.Context, lessonID string) ([]int, error) {
	return s.rooms[lessonID], nil
}

func (s *scheduleStoreStub) LessonLabels(ctx context.Context, lessonID string) ([]string, error) {
	return s.labels[lessonID], nil
}

func (s *scheduleStoreStub) TeacherDay(ctx context.Context, teacher, date string) ([]repository.TeacherLessonRow, error) {
	return s.teacherRows, nil
}

func (s *scheduleStoreStub) RoomDay(ctx context.Context, room int, date string) ([]repository.RoomLessonRow, error) {
	return s.roomRows, nil
}

func (s *scheduleStoreStub) Groups(ctx context.Context) ([]string, error)   { return nil, nil }
func (s *scheduleStoreStub) Teachers(ctx context.Context) ([]string, error) { return nil, nil }
func (s *scheduleStoreStub) ActiveRooms(ctx context.Context) ([]int, error) { return nil, nil }

type bellStub struct {
	times map[int]string
}

func (b *bellStub) Time(ctx context.Context, pair int, monday bool) (string, error) {
	return b.times[pair], nil
}

type cacheStub struct {
	values  map[string]string
	deleted []string
}

func newCacheStub() *cacheStub {
	return &cacheStub{values: make(map[string]string)}
}

func (c *cacheStub) Get(ctx context.Context, key string) (string, error) {
	if v, ok := c.values[key]; ok {
		return v, nil
	}
	return "", sql.ErrNoRows
}

func (c *cacheStub) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.values[key] = value
	return nil
}

func (c *cacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.deleted = append(c.deleted, pattern)
	c.values = make(map[string]string)
	return nil
}

func TestByGroupFormatsDay(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"},
		lessons: []repository.StoredLesson{
			{ID: "l1", Pair: 1, Subject: "Физика", Raw: "Физика | Иванов И.И. | Ауд. 205"},
		},
		teachers: map[string][]string{"l1": {"Иванов И.И."}},
		rooms:    map[string][]int{"l1": {205}},
	}
	bells := &bellStub{times: map[int]string{1: "8.30 – 10.05"}}
	svc := NewScheduleService(store, bells, nil, 0, nil)

	text, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.Equal(t,
		"📅 <b>12 декабря 2025</b> (1-ИП-2)\n\n"+
			"1 пара <i>(8.30 – 10.05)</i> \n"+
			"<b>Физика</b> [Каб: 205] (Иванов И.И.)\n\n",
		text)
}

func TestByGroupStartTimeOverridesBell(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"},
		lessons: []repository.StoredLesson{
			{ID: "l1", Pair: 2, Subject: "Математика", StartTime: sql.NullString{String: "9:30", Valid: true}},
		},
	}
	bells := &bellStub{times: map[int]string{2: "10.15 – 11.50"}}
	svc := NewScheduleService(store, bells, nil, 0, nil)

	text, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.Contains(t, text, "2 пара <i>(Начало в 9:30)</i> ")
	require.NotContains(t, text, "10.15")
}

func TestByGroupMondayMark(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "15 декабря 2025", IsMonday: true},
	}
	svc := NewScheduleService(store, &bellStub{}, nil, 0, nil)

	text, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.Contains(t, text, "<i>(Понедельник)</i>")
}

func TestByGroupNotFoundMessages(t *testing.T) {
	store := &scheduleStoreStub{}
	svc := NewScheduleService(store, &bellStub{}, nil, 0, nil)

	text, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.Equal(t, "Расписание для группы '1-ИП-2' не найдено.", text)

	text, err = svc.ByGroup(context.Background(), "1-ИП-2", "12.12.2025")
	require.NoError(t, err)
	require.Equal(t, "Расписание для группы '1-ИП-2' на дату '12.12.2025' не найдено.", text)
	require.Equal(t, "12 декабря 2025", store.lastTextDate)
}

func TestByGroupUsesCache(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"},
	}
	cache := newCacheStub()
	svc := NewScheduleService(store, &bellStub{}, cache, time.Minute, nil)

	first, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)

	// Second call is served from cache even after the store changes.
	store.ref = nil
	second, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.Equal(t, first, second)

	svc.InvalidateGroup(context.Background(), "1-ИП-2")
	require.Equal(t, []string{"schedule:text:1-ИП-2:*"}, cache.deleted)

	third, err := svc.ByGroup(context.Background(), "1-ИП-2", "")
	require.NoError(t, err)
	require.NotEqual(t, first, third)
}

func TestByTeacherGroupsByPair(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"},
		teacherRows: []repository.TeacherLessonRow{
			{Pair: 2, Subject: "Математика", Group: "2-БД-1"},
			{Pair: 1, Subject: "Физика", Group: "1-ИП-2", Rooms: sql.NullString{String: "205", Valid: true}},
			{Pair: 1, Subject: "Физика", Group: "3-СА-1", Rooms: sql.NullString{String: "205,210", Valid: true}},
		},
	}
	bells := &bellStub{times: map[int]string{1: "8.30 – 10.05"}}
	svc := NewScheduleService(store, bells, nil, 0, nil)

	text, err := svc.ByTeacher(context.Background(), "Иванов И.И.", "")
	require.NoError(t, err)
	require.Equal(t,
		"🗓 Расписание:\n📅 <b>12 декабря 2025</b>\n"+
			"Преподаватель: <b>Иванов И.И.</b>\n\n"+
			"<b>1 пара (8.30 – 10.05)</b>\n"+
			"   • Физика — <b>1-ИП-2</b> [Каб: 205]\n"+
			"   • Физика — <b>3-СА-1</b> [Каб: 205, 210]\n\n"+
			"<b>2 пара</b>\n"+
			"   • Математика — <b>2-БД-1</b>\n\n",
		text)
}

func TestByTeacherNoLessons(t *testing.T) {
	store := &scheduleStoreStub{ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"}}
	svc := NewScheduleService(store, &bellStub{}, nil, 0, nil)

	text, err := svc.ByTeacher(context.Background(), "Иванов И.И.", "")
	require.NoError(t, err)
	require.Equal(t, "На <b>12 декабря 2025</b> у преподавателя <b>Иванов И.И.</b> пар нет.", text)
}

func TestByTeacherNothingIngested(t *testing.T) {
	svc := NewScheduleService(&scheduleStoreStub{}, &bellStub{}, nil, 0, nil)

	text, err := svc.ByTeacher(context.Background(), "Иванов И.И.", "")
	require.NoError(t, err)
	require.Equal(t, "Расписание ещё не загружено.", text)

	text, err = svc.ByTeacher(context.Background(), "Иванов И.И.", "12.12.2025")
	require.NoError(t, err)
	require.Equal(t, "Расписание на дату 12.12.2025 не найдено в базе.", text)
}

func TestByRoomGroupsByPair(t *testing.T) {
	store := &scheduleStoreStub{
		ref: &repository.DayRef{ID: "s1", Date: "12 декабря 2025"},
		roomRows: []repository.RoomLessonRow{
			{Pair: 1, Subject: "Физика", Group: "1-ИП-2", Teachers: sql.NullString{String: "Иванов И.И.", Valid: true}},
		},
	}
	svc := NewScheduleService(store, &bellStub{}, nil, 0, nil)

	text, err := svc.ByRoom(context.Background(), 205, "")
	require.NoError(t, err)
	require.Contains(t, text, "Кабинет: <b>205</b>")
	require.Contains(t, text, "   • Физика — <b>1-ИП-2</b> (Иванов И.И.)\n")
}

func TestDottedDateToText(t *testing.T) {
	require.Equal(t, "12 декабря 2025", dottedDateToText("12.12.2025"))
	require.Equal(t, "1 сентября 2025", dottedDateToText("01.09.2025"))
	require.Equal(t, "5 мая 2024", dottedDateToText("5/5/24"))
	require.Equal(t, "", dottedDateToText("12 декабря"))
	require.Equal(t, "", dottedDateToText("12.13.2025"))
	require.Equal(t, "", dottedDateToText(""))
}

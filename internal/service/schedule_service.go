package service

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"collegebot/internal/repository"
)

var monthsGenitive = [12]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

var reDottedDate = regexp.MustCompile(`^(\d{1,2})[./-](\d{1,2})[./-](\d{2,4})$`)

type scheduleStore interface {
	FindGroupDay(ctx context.Context, group, date, textDate string) (*repository.DayRef, error)
	ResolveDate(ctx context.Context, date, textDate string) (*repository.DayRef, error)
	Lessons(ctx context.Context, scheduleID string) ([]repository.StoredLesson, error)
	LessonTeachers(ctx context.Context, lessonID string) ([]string, error)
	LessonRooms(ctx context.Context, lessonID string) ([]int, error)
	LessonLabels(ctx context.Context, lessonID string) ([]string, error)
	TeacherDay(ctx context.Context, teacher, date string) ([]repository.TeacherLessonRow, error)
	RoomDay(ctx context.Context, room int, date string) ([]repository.RoomLessonRow, error)
	Groups(ctx context.Context) ([]string, error)
	Teachers(ctx context.Context) ([]string, error)
	ActiveRooms(ctx context.Context) ([]int, error)
}

type bellReader interface {
	Time(ctx context.Context, pair int, monday bool) (string, error)
}

type textCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// ScheduleService renders stored schedules into the human-readable texts the
// front ends and the notifier send out.
type ScheduleService struct {
	store    scheduleStore
	bells    bellReader
	cache    textCache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewScheduleService builds a ScheduleService. cache may be nil.
func NewScheduleService(store scheduleStore, bells bellReader, cache textCache, cacheTTL time.Duration, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{store: store, bells: bells, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// ByGroup renders the schedule of a group, optionally narrowed to a date
// (dotted numeric or free-form text). Absent date resolves to the latest
// ingested snapshot.
func (s *ScheduleService) ByGroup(ctx context.Context, group, date string) (string, error) {
	cacheKey := groupCacheKey(group, date)
	if s.cache != nil {
		if text, err := s.cache.Get(ctx, cacheKey); err == nil {
			return text, nil
		}
	}

	ref, err := s.store.FindGroupDay(ctx, group, date, dottedDateToText(date))
	if err != nil {
		return "", err
	}
	if ref == nil {
		if date != "" {
			return fmt.Sprintf("Расписание для группы '%s' на дату '%s' не найдено.", group, date), nil
		}
		return fmt.Sprintf("Расписание для группы '%s' не найдено.", group), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 <b>%s</b> (%s)\n", ref.Date, group)
	if ref.IsMonday {
		sb.WriteString("<i>(Понедельник)</i>\n")
	}
	sb.WriteString("\n")

	lessons, err := s.store.Lessons(ctx, ref.ID)
	if err != nil {
		return "", err
	}
	for _, lesson := range lessons {
		if err := s.appendLesson(ctx, &sb, lesson, ref.IsMonday); err != nil {
			return "", err
		}
	}

	text := sb.String()
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, text, s.cacheTTL); err != nil {
			s.logger.Sugar().Warnw("schedule text cache write failed", "group", group, "error", err)
		}
	}
	return text, nil
}

// ByTeacher renders a teacher's day across all groups.
func (s *ScheduleService) ByTeacher(ctx context.Context, teacher, date string) (string, error) {
	ref, err := s.store.ResolveDate(ctx, date, dottedDateToText(date))
	if err != nil {
		return "", err
	}
	if ref == nil {
		if date != "" {
			return fmt.Sprintf("Расписание на дату %s не найдено в базе.", date), nil
		}
		return "Расписание ещё не загружено.", nil
	}

	rows, err := s.store.TeacherDay(ctx, teacher, ref.Date)
	if err != nil {
		return "", err
	}

	byPair := make(map[int][]string)
	for _, row := range rows {
		roomStr := ""
		if row.Rooms.Valid && row.Rooms.String != "" {
			roomStr = " [Каб: " + strings.ReplaceAll(row.Rooms.String, ",", ", ") + "]"
		}
		line := strings.TrimSpace(row.Subject) + " — <b>" + row.Group + "</b>" + roomStr
		byPair[row.Pair] = append(byPair[row.Pair], line)
	}
	if len(byPair) == 0 {
		return fmt.Sprintf("На <b>%s</b> у преподавателя <b>%s</b> пар нет.", ref.Date, teacher), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 Расписание:\n📅 <b>%s</b>\n", ref.Date)
	fmt.Fprintf(&sb, "Преподаватель: <b>%s</b>\n\n", teacher)
	if err := s.appendPairMap(ctx, &sb, byPair, ref.IsMonday); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ByRoom renders a room's day across all groups.
func (s *ScheduleService) ByRoom(ctx context.Context, room int, date string) (string, error) {
	ref, err := s.store.ResolveDate(ctx, date, dottedDateToText(date))
	if err != nil {
		return "", err
	}
	if ref == nil {
		if date != "" {
			return fmt.Sprintf("Расписание на дату %s не найдено в базе.", date), nil
		}
		return "Расписание ещё не загружено.", nil
	}

	rows, err := s.store.RoomDay(ctx, room, ref.Date)
	if err != nil {
		return "", err
	}

	byPair := make(map[int][]string)
	for _, row := range rows {
		teacherStr := ""
		if row.Teachers.Valid && row.Teachers.String != "" {
			teacherStr = " (" + row.Teachers.String + ")"
		}
		line := strings.TrimSpace(row.Subject) + " — <b>" + row.Group + "</b>" + teacherStr
		byPair[row.Pair] = append(byPair[row.Pair], line)
	}
	if len(byPair) == 0 {
		return fmt.Sprintf("На <b>%s</b> в кабинете <b>%d</b> пар нет.", ref.Date, room), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 Расписание:\n📅 <b>%s</b>\n", ref.Date)
	fmt.Fprintf(&sb, "Кабинет: <b>%d</b>\n\n", room)
	if err := s.appendPairMap(ctx, &sb, byPair, ref.IsMonday); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Groups lists groups available for subscription or search.
func (s *ScheduleService) Groups(ctx context.Context) ([]string, error) {
	return s.store.Groups(ctx)
}

// Teachers lists teachers available for subscription or search.
func (s *ScheduleService) Teachers(ctx context.Context) ([]string, error) {
	return s.store.Teachers(ctx)
}

// Rooms lists rooms referenced by recent snapshots.
func (s *ScheduleService) Rooms(ctx context.Context) ([]int, error) {
	return s.store.ActiveRooms(ctx)
}

// InvalidateGroup drops cached texts for a group after its schedule changed.
func (s *ScheduleService) InvalidateGroup(ctx context.Context, group string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, groupCacheKey(group, "*")); err != nil {
		s.logger.Sugar().Warnw("schedule text cache invalidation failed", "group", group, "error", err)
	}
}

func (s *ScheduleService) appendLesson(ctx context.Context, sb *strings.Builder, lesson repository.StoredLesson, isMonday bool) error {
	timeStr, err := s.bells.Time(ctx, lesson.Pair, isMonday)
	if err != nil {
		return err
	}
	if lesson.StartTime.Valid && lesson.StartTime.String != "" {
		timeStr = "Начало в " + lesson.StartTime.String
	}

	fmt.Fprintf(sb, "%d пара", lesson.Pair)
	if timeStr != "" {
		fmt.Fprintf(sb, " <i>(%s)</i> ", timeStr)
	}
	sb.WriteString("\n")
	fmt.Fprintf(sb, "<b>%s</b>", lesson.Subject)

	rooms, err := s.store.LessonRooms(ctx, lesson.ID)
	if err != nil {
		return err
	}
	if len(rooms) > 0 {
		parts := make([]string, len(rooms))
		for i, room := range rooms {
			parts[i] = strconv.Itoa(room)
		}
		fmt.Fprintf(sb, " [Каб: %s]", strings.Join(parts, ","))
	}

	teachers, err := s.store.LessonTeachers(ctx, lesson.ID)
	if err != nil {
		return err
	}
	if len(teachers) > 0 {
		fmt.Fprintf(sb, " (%s)", strings.Join(teachers, ", "))
	}

	labels, err := s.store.LessonLabels(ctx, lesson.ID)
	if err != nil {
		return err
	}
	if len(labels) > 0 {
		fmt.Fprintf(sb, " %s", strings.Join(labels, " "))
	}

	sb.WriteString("\n\n")
	return nil
}

func (s *ScheduleService) appendPairMap(ctx context.Context, sb *strings.Builder, byPair map[int][]string, isMonday bool) error {
	pairs := make([]int, 0, len(byPair))
	for pair := range byPair {
		pairs = append(pairs, pair)
	}
	sort.Ints(pairs)

	for _, pair := range pairs {
		timeStr, err := s.bells.Time(ctx, pair, isMonday)
		if err != nil {
			return err
		}
		if timeStr != "" {
			timeStr = " (" + timeStr + ")"
		}
		fmt.Fprintf(sb, "<b>%d пара%s</b>\n", pair, timeStr)
		for _, line := range byPair[pair] {
			fmt.Fprintf(sb, "   • %s\n", line)
		}
		sb.WriteString("\n")
	}
	return nil
}

func groupCacheKey(group, date string) string {
	if date == "" {
		date = "latest"
	}
	return "schedule:text:" + group + ":" + date
}

// dottedDateToText converts a dotted numeric date into the spelled-out form
// used in the published headings ("12.12.2025" → "12 декабря 2025"), so a
// numeric query also matches headings stored as text.
func dottedDateToText(date string) string {
	m := reDottedDate.FindStringSubmatch(strings.TrimSpace(date))
	if m == nil {
		return ""
	}
	day, err := strconv.Atoi(m[1])
	if err != nil {
		return ""
	}
	month, err := strconv.Atoi(m[2])
	if err != nil || month < 1 || month > 12 {
		return ""
	}
	year := m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	return fmt.Sprintf("%d %s %s", day, monthsGenitive[month-1], year)
}

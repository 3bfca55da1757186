package service

import (
	"context"
	"sort"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"collegebot/internal/metrics"
	"collegebot/internal/models"
	"collegebot/internal/parser"
)

const (
	groupUpdateHeader   = "📢️ <b>ОБНОВЛЕНИЕ РАСПИСАНИЯ!</b>\n\n"
	teacherUpdateHeader = "📢️ <b>Расписание обновилось!</b>\n\n"
)

type updateSource interface {
	Timetable(ctx context.Context) (*goquery.Document, error)
	Bells(ctx context.Context) (*goquery.Document, error)
}

type scheduleWriter interface {
	Signature(ctx context.Context, group, date string) (string, error)
	Replace(ctx context.Context, group, date string, day *models.DaySchedule) error
}

type bellWriter interface {
	Upsert(ctx context.Context, table models.BellTable) error
}

type subscriberSource interface {
	GroupSubscribers(ctx context.Context, group string) ([]models.Subscriber, error)
	TeacherSubscribers(ctx context.Context, teacher string) ([]models.Subscriber, error)
}

type textRenderer interface {
	ByGroup(ctx context.Context, group, date string) (string, error)
	ByTeacher(ctx context.Context, teacher, date string) (string, error)
	InvalidateGroup(ctx context.Context, group string)
}

type broadcaster interface {
	Broadcast(ctx context.Context, subs []models.Subscriber, text string, rich bool) (sent, failed int)
}

// UpdaterService periodically re-ingests the published timetable, persists
// days whose content changed and notifies their subscribers.
type UpdaterService struct {
	source    updateSource
	parser    *parser.Parser
	schedules scheduleWriter
	bells     bellWriter
	subs      subscriberSource
	texts     textRenderer
	router    broadcaster
	metrics   *metrics.Metrics
	interval  time.Duration
	logger    *zap.Logger
}

// NewUpdaterService wires the update pipeline. metrics may be nil.
func NewUpdaterService(
	source updateSource,
	p *parser.Parser,
	schedules scheduleWriter,
	bells bellWriter,
	subs subscriberSource,
	texts textRenderer,
	router broadcaster,
	m *metrics.Metrics,
	interval time.Duration,
	logger *zap.Logger,
) *UpdaterService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UpdaterService{
		source:    source,
		parser:    p,
		schedules: schedules,
		bells:     bells,
		subs:      subs,
		texts:     texts,
		router:    router,
		metrics:   m,
		interval:  interval,
		logger:    logger,
	}
}

// Run ticks once immediately, then on every interval until ctx is cancelled.
// Ticks run sequentially, a slow tick delays the next one instead of
// overlapping it.
func (s *UpdaterService) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick performs one full ingest pass: refresh bell times, fetch and parse the
// timetable, persist changed days and fan out notifications.
func (s *UpdaterService) Tick(ctx context.Context) {
	start := time.Now()

	s.refreshBells(ctx)

	fetchStart := time.Now()
	doc, err := s.source.Timetable(ctx)
	s.metrics.ObserveFetch("timetable", time.Since(fetchStart))
	if err != nil {
		s.logger.Sugar().Warnw("timetable fetch failed", "error", err)
		s.metrics.ObserveTick("fetch_error", time.Since(start))
		return
	}

	parsed := s.parser.ParseDocument(doc)
	if len(parsed) == 0 {
		s.logger.Sugar().Warnw("timetable page yielded no groups")
		s.metrics.ObserveTick("empty", time.Since(start))
		return
	}

	changes := 0
	changedTeachers := make(map[string]bool)
	for _, group := range sortedKeys(parsed) {
		days := parsed[group]
		for _, date := range sortedKeys(days) {
			day := days[date]
			if !s.persistIfChanged(ctx, group, date, day) {
				continue
			}
			changes++
			s.metrics.RecordChange()
			s.texts.InvalidateGroup(ctx, group)
			s.notifyGroup(ctx, group, date)
			for _, teacher := range day.TeacherNames() {
				changedTeachers[teacher] = true
			}
		}
	}

	// Teacher names are unioned across every changed day, so a teacher gets at
	// most one message per tick, rendered for their latest stored day.
	for _, teacher := range sortedKeys(changedTeachers) {
		s.notifyTeacher(ctx, teacher)
	}

	s.logger.Sugar().Infow("update tick finished",
		"groups", len(parsed), "changes", changes, "took", time.Since(start))
	s.metrics.ObserveTick("ok", time.Since(start))
}

// persistIfChanged compares the freshly parsed day against the stored
// signature and replaces the stored day on mismatch. A failed write leaves
// the stored signature untouched, so the day is retried on the next tick.
func (s *UpdaterService) persistIfChanged(ctx context.Context, group, date string, day *models.DaySchedule) bool {
	sig := day.Signature()
	stored, err := s.schedules.Signature(ctx, group, date)
	if err != nil {
		s.logger.Sugar().Warnw("signature lookup failed", "group", group, "date", date, "error", err)
		return false
	}
	if stored == sig {
		return false
	}
	if err := s.schedules.Replace(ctx, group, date, day); err != nil {
		s.logger.Sugar().Warnw("schedule write failed", "group", group, "date", date, "error", err)
		return false
	}
	return true
}

func (s *UpdaterService) refreshBells(ctx context.Context) {
	fetchStart := time.Now()
	doc, err := s.source.Bells(ctx)
	s.metrics.ObserveFetch("bells", time.Since(fetchStart))
	if err != nil {
		s.logger.Sugar().Warnw("bell page fetch failed", "error", err)
		return
	}
	table := parser.ParseBellPage(doc)
	if table.Empty() {
		return
	}
	if err := s.bells.Upsert(ctx, table); err != nil {
		s.logger.Sugar().Warnw("bell times write failed", "error", err)
	}
}

func (s *UpdaterService) notifyGroup(ctx context.Context, group, date string) {
	subs, err := s.subs.GroupSubscribers(ctx, group)
	if err != nil {
		s.logger.Sugar().Warnw("group subscriber lookup failed", "group", group, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}
	text, err := s.texts.ByGroup(ctx, group, date)
	if err != nil {
		s.logger.Sugar().Warnw("group text render failed", "group", group, "date", date, "error", err)
		return
	}
	sent, failed := s.router.Broadcast(ctx, subs, groupUpdateHeader+text, true)
	s.metrics.RecordNotifications(sent, failed)
	s.logger.Sugar().Infow("group subscribers notified",
		"group", group, "date", date, "sent", sent, "failed", failed)
}

func (s *UpdaterService) notifyTeacher(ctx context.Context, teacher string) {
	subs, err := s.subs.TeacherSubscribers(ctx, teacher)
	if err != nil {
		s.logger.Sugar().Warnw("teacher subscriber lookup failed", "teacher", teacher, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}
	text, err := s.texts.ByTeacher(ctx, teacher, "")
	if err != nil {
		s.logger.Sugar().Warnw("teacher text render failed", "teacher", teacher, "error", err)
		return
	}
	sent, failed := s.router.Broadcast(ctx, subs, teacherUpdateHeader+text, true)
	s.metrics.RecordNotifications(sent, failed)
	s.logger.Sugar().Infow("teacher subscribers notified",
		"teacher", teacher, "sent", sent, "failed", failed)
}

func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package metrics

import (
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics encapsulates Prometheus instrumentation for the update pipeline
// and provides lightweight snapshots for the admin surface.
type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	ticksTotal    *prometheus.CounterVec
	tickDuration  prometheus.Observer
	changesTotal  prometheus.Counter
	notifications *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	tickCount    uint64
	changeCount  uint64
	lastTickUnix int64
}

// Snapshot is an aggregated view of pipeline activity.
type Snapshot struct {
	TicksTotal   uint64    `json:"ticks_total"`
	ChangesTotal uint64    `json:"changes_total"`
	LastTickAt   time.Time `json:"last_tick_at"`
	Goroutines   int       `json:"goroutines"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// New registers the pipeline collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	ticksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "updater_ticks_total",
		Help: "Total number of update ticks by outcome",
	}, []string{"outcome"})

	tickDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "updater_tick_duration_seconds",
		Help:    "Duration of one full update tick",
		Buckets: prometheus.DefBuckets,
	})

	changesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schedule_changes_total",
		Help: "Total number of (group, date) schedule changes detected",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Total notification deliveries by result",
	}, []string{"result"})

	fetchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "source_fetch_duration_seconds",
		Help:    "Duration of source page fetches",
		Buckets: prometheus.DefBuckets,
	}, []string{"page"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(ticksTotal, tickDuration, changesTotal, notifications, fetchDuration, goroutines)

	return &Metrics{
		registry:      registry,
		handler:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ticksTotal:    ticksTotal,
		tickDuration:  tickDuration,
		changesTotal:  changesTotal,
		notifications: notifications,
		fetchDuration: fetchDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveTick records one completed tick with its outcome label.
func (m *Metrics) ObserveTick(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.ticksTotal.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(duration.Seconds())
	atomic.AddUint64(&m.tickCount, 1)
	atomic.StoreInt64(&m.lastTickUnix, time.Now().Unix())
}

// RecordChange counts one detected (group, date) schedule change.
func (m *Metrics) RecordChange() {
	if m == nil {
		return
	}
	m.changesTotal.Inc()
	atomic.AddUint64(&m.changeCount, 1)
}

// RecordNotifications counts delivery results reported by the router.
func (m *Metrics) RecordNotifications(sent, failed int) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues("sent").Add(float64(sent))
	m.notifications.WithLabelValues("failed").Add(float64(failed))
}

// ObserveFetch records how long a source page took to download.
func (m *Metrics) ObserveFetch(page string, duration time.Duration) {
	if m == nil {
		return
	}
	m.fetchDuration.WithLabelValues(page).Observe(duration.Seconds())
}

// Stats returns an aggregated snapshot for the admin surface.
func (m *Metrics) Stats() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	snap := Snapshot{
		TicksTotal:   atomic.LoadUint64(&m.tickCount),
		ChangesTotal: atomic.LoadUint64(&m.changeCount),
		Goroutines:   runtime.NumGoroutine(),
		GeneratedAt:  time.Now().UTC(),
	}
	if unix := atomic.LoadInt64(&m.lastTickUnix); unix > 0 {
		snap.LastTickAt = time.Unix(unix, 0).UTC()
	}
	return snap
}

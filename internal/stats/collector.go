// Package stats aggregates finalized records into per-collection
// statistics and Prometheus metrics.
package stats

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector collects and aggregates statistics
type Collector struct {
	mu             sync.RWMutex
	startTime      time.Time
	collections    map[string]*models.AtomicCollectionStat // collection path -> stats
	byKind         map[models.QueryKind]int64
	recentErrors   []models.ErrorStat
	hourlyStats    map[string]*hourlyCounter // "YYYY-MM-DD-HH" -> counter
	maxErrors      int
	maxHourlySlots int
	pending        func() int
	now            func() time.Time

	registry *prometheus.Registry
	records  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

type hourlyCounter struct {
	Hour    string
	Records int64
	Errors  int64
}

// NewCollector creates a new statistics collector with its own metrics
// registry
func NewCollector() *Collector {
	c := &Collector{
		startTime:      time.Now(),
		collections:    make(map[string]*models.AtomicCollectionStat),
		byKind:         make(map[models.QueryKind]int64),
		recentErrors:   make([]models.ErrorStat, 0),
		hourlyStats:    make(map[string]*hourlyCounter),
		maxErrors:      100,
		maxHourlySlots: 168, // 7 days
		now:            time.Now,
		registry:       prometheus.NewRegistry(),
	}

	c.records = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "firescope_records_total",
		Help: "Finalized records by operation kind",
	}, []string{"kind"})
	c.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "firescope_record_duration_ms",
		Help:    "Duration of the call a record was decoded from, in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"kind"})
	pending := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "firescope_pending_calls",
		Help: "Calls waiting for their completion signal",
	}, func() float64 {
		return float64(c.pendingCalls())
	})
	c.registry.MustRegister(c.records, c.duration, pending)

	return c
}

// SetPendingSource registers the function reporting buffered calls,
// usually the correlator's Pending
func (c *Collector) SetPendingSource(fn func() int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = fn
}

func (c *Collector) pendingCalls() int {
	c.mu.RLock()
	fn := c.pending
	c.mu.RUnlock()
	if fn == nil {
		return 0
	}
	return fn()
}

// Handler serves the collector's metrics in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Publish records a finalized record as a correlator sink
func (c *Collector) Publish(rec *models.Record) {
	c.RecordRecord(rec)
}

// RecordRecord adds a record to the statistics
func (c *Collector) RecordRecord(rec *models.Record) {
	c.records.WithLabelValues(string(rec.Kind)).Inc()
	c.duration.WithLabelValues(string(rec.Kind)).Observe(float64(rec.DurationMs))

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	isError := rec.IsError()

	colStats, ok := c.collections[rec.CollectionPath]
	if !ok {
		colStats = &models.AtomicCollectionStat{Collection: rec.CollectionPath}
		colStats.MinTimeMs.Store(rec.DurationMs)
		c.collections[rec.CollectionPath] = colStats
	}

	colStats.TotalRecords.Add(1)
	colStats.TotalTimeMs.Add(rec.DurationMs)
	colStats.LastRecordTime.Store(now)

	for {
		currentMin := colStats.MinTimeMs.Load()
		if rec.DurationMs >= currentMin || colStats.MinTimeMs.CompareAndSwap(currentMin, rec.DurationMs) {
			break
		}
	}
	for {
		currentMax := colStats.MaxTimeMs.Load()
		if rec.DurationMs <= currentMax || colStats.MaxTimeMs.CompareAndSwap(currentMax, rec.DurationMs) {
			break
		}
	}

	c.byKind[rec.Kind]++

	if isError {
		colStats.TotalErrors.Add(1)
		c.recentErrors = append(c.recentErrors, models.ErrorStat{
			Timestamp:  rec.EndedAt,
			GroupID:    rec.GroupID,
			Collection: rec.CollectionPath,
			Kind:       rec.Kind,
			Method:     rec.Method,
			StatusCode: rec.Status,
		})
		if len(c.recentErrors) > c.maxErrors {
			c.recentErrors = c.recentErrors[1:]
		}
	}

	hourKey := now.Format("2006-01-02-15")
	hourly, ok := c.hourlyStats[hourKey]
	if !ok {
		hourly = &hourlyCounter{Hour: hourKey}
		c.hourlyStats[hourKey] = hourly
		c.cleanupOldHourlyStats()
	}
	hourly.Records++
	if isError {
		hourly.Errors++
	}
}

// cleanupOldHourlyStats removes hourly stats older than maxHourlySlots
func (c *Collector) cleanupOldHourlyStats() {
	if len(c.hourlyStats) <= c.maxHourlySlots {
		return
	}

	keys := make([]string, 0, len(c.hourlyStats))
	for k := range c.hourlyStats {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	toRemove := len(keys) - c.maxHourlySlots
	for i := 0; i < toRemove; i++ {
		delete(c.hourlyStats, keys[i])
	}
}

// GetGlobalStats returns global statistics
func (c *Collector) GetGlobalStats() *models.GlobalStats {
	pending := c.pendingCalls()

	c.mu.RLock()
	defer c.mu.RUnlock()

	var totalRecords, totalErrors, totalTimeMs int64

	colStats := make([]models.CollectionStat, 0, len(c.collections))
	for _, col := range c.collections {
		stat := col.ToCollectionStat()
		colStats = append(colStats, stat)
		totalRecords += stat.TotalRecords
		totalErrors += stat.TotalErrors
		totalTimeMs += col.TotalTimeMs.Load()
	}

	// Most active first, ties by name for a stable listing
	sort.Slice(colStats, func(i, j int) bool {
		if colStats[i].TotalRecords != colStats[j].TotalRecords {
			return colStats[i].TotalRecords > colStats[j].TotalRecords
		}
		return colStats[i].Collection < colStats[j].Collection
	})

	topCols := colStats
	if len(topCols) > 10 {
		topCols = topCols[:10]
	}

	var avgDurationMs float64
	if totalRecords > 0 {
		avgDurationMs = float64(totalTimeMs) / float64(totalRecords)
	}

	uptime := c.now().Sub(c.startTime)
	var recordsPerSecond float64
	if uptime.Seconds() > 0 {
		recordsPerSecond = float64(totalRecords) / uptime.Seconds()
	}

	byKind := make(map[models.QueryKind]int64, len(c.byKind))
	for k, n := range c.byKind {
		byKind[k] = n
	}
	recentErrors := make([]models.ErrorStat, len(c.recentErrors))
	copy(recentErrors, c.recentErrors)

	return &models.GlobalStats{
		TotalRecords:     totalRecords,
		TotalErrors:      totalErrors,
		TotalCollections: len(c.collections),
		PendingCalls:     pending,
		AvgDurationMs:    avgDurationMs,
		RecordsPerSecond: recordsPerSecond,
		StartTime:        c.startTime,
		Uptime:           formatDuration(uptime),
		RecordsByKind:    byKind,
		TopCollections:   topCols,
		RecentErrors:     recentErrors,
		RecordsByHour:    c.buildHourlyStats(),
	}
}

// GetCollectionStats returns statistics for one collection path
func (c *Collector) GetCollectionStats(collection string) *models.CollectionStat {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if col, ok := c.collections[collection]; ok {
		stat := col.ToCollectionStat()
		return &stat
	}
	return nil
}

// buildHourlyStats builds the last 24 hours, oldest first
func (c *Collector) buildHourlyStats() []models.HourlyStat {
	now := c.now()
	stats := make([]models.HourlyStat, 0, 24)

	for i := 23; i >= 0; i-- {
		hour := now.Add(-time.Duration(i) * time.Hour)
		stat := models.HourlyStat{Hour: hour.Format("15:00")}
		if hourly, ok := c.hourlyStats[hour.Format("2006-01-02-15")]; ok {
			stat.Records = hourly.Records
			stat.Errors = hourly.Errors
		}
		stats = append(stats, stat)
	}
	return stats
}

// Reset resets all statistics. Prometheus counters are cumulative and are
// not reset.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.startTime = c.now()
	c.collections = make(map[string]*models.AtomicCollectionStat)
	c.byKind = make(map[models.QueryKind]int64)
	c.recentErrors = make([]models.ErrorStat, 0)
	c.hourlyStats = make(map[string]*hourlyCounter)
}

// formatDuration formats a duration in a human-readable format
func formatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		return d.Round(time.Minute).String()
	case d >= time.Minute:
		return d.Round(time.Second).String()
	}
	return d.Round(time.Millisecond).String()
}

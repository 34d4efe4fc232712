package models

import (
	"sync/atomic"
	"time"
)

// GlobalStats represents global statistics over finalized records
type GlobalStats struct {
	TotalRecords     int64               `json:"totalRecords"`
	TotalErrors      int64               `json:"totalErrors"`
	TotalCollections int                 `json:"totalCollections"`
	PendingCalls     int                 `json:"pendingCalls"`
	AvgDurationMs    float64             `json:"avgDurationMs"`
	RecordsPerSecond float64             `json:"recordsPerSecond"`
	StartTime        time.Time           `json:"startTime"`
	Uptime           string              `json:"uptime"`
	RecordsByKind    map[QueryKind]int64 `json:"recordsByKind"`
	TopCollections   []CollectionStat    `json:"topCollections"`
	RecentErrors     []ErrorStat         `json:"recentErrors"`
	RecordsByHour    []HourlyStat        `json:"recordsByHour"`
}

// CollectionStat represents statistics for a single collection path
type CollectionStat struct {
	Collection     string  `json:"collection"`
	TotalRecords   int64   `json:"totalRecords"`
	TotalErrors    int64   `json:"totalErrors"`
	AvgDurationMs  float64 `json:"avgDurationMs"`
	MinDurationMs  float64 `json:"minDurationMs"`
	MaxDurationMs  float64 `json:"maxDurationMs"`
	LastRecordTime string  `json:"lastRecordTime,omitempty"`
}

// ErrorStat represents a call that finished with an error status
type ErrorStat struct {
	Timestamp  time.Time `json:"timestamp"`
	GroupID    string    `json:"groupId"`
	Collection string    `json:"collection"`
	Kind       QueryKind `json:"type"`
	Method     string    `json:"method"`
	StatusCode int       `json:"statusCode"`
}

// HourlyStat represents hourly record counts
type HourlyStat struct {
	Hour    string `json:"hour"`
	Records int64  `json:"records"`
	Errors  int64  `json:"errors"`
}

// AtomicCollectionStat is a thread-safe version of collection statistics
type AtomicCollectionStat struct {
	Collection     string
	TotalRecords   atomic.Int64
	TotalErrors    atomic.Int64
	TotalTimeMs    atomic.Int64
	MinTimeMs      atomic.Int64
	MaxTimeMs      atomic.Int64
	LastRecordTime atomic.Value // stores time.Time
}

// ToCollectionStat converts to a regular CollectionStat
func (a *AtomicCollectionStat) ToCollectionStat() CollectionStat {
	total := a.TotalRecords.Load()
	var avgMs float64
	if total > 0 {
		avgMs = float64(a.TotalTimeMs.Load()) / float64(total)
	}

	var last string
	if t, ok := a.LastRecordTime.Load().(time.Time); ok && !t.IsZero() {
		last = t.Format(time.RFC3339)
	}

	return CollectionStat{
		Collection:     a.Collection,
		TotalRecords:   total,
		TotalErrors:    a.TotalErrors.Load(),
		AvgDurationMs:  avgMs,
		MinDurationMs:  float64(a.MinTimeMs.Load()),
		MaxDurationMs:  float64(a.MaxTimeMs.Load()),
		LastRecordTime: last,
	}
}

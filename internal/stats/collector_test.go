package stats

import (
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prasenjit/firescope/internal/models"
)

func record(collection string, kind models.QueryKind, durationMs int64, status int) *models.Record {
	return &models.Record{
		QueryDescription: models.QueryDescription{Kind: kind, CollectionPath: collection},
		GroupID:          "g-1",
		Method:           "POST",
		Status:           status,
		DurationMs:       durationMs,
		EndedAt:          time.Now(),
	}
}

func TestNewCollector(t *testing.T) {
	c := NewCollector()
	if c == nil {
		t.Fatal("NewCollector returned nil")
	}
	if c.collections == nil || c.byKind == nil || c.hourlyStats == nil {
		t.Fatal("Collector maps not initialized")
	}
	if c.maxErrors != 100 {
		t.Errorf("Expected maxErrors 100, got %d", c.maxErrors)
	}
	if c.maxHourlySlots != 168 {
		t.Errorf("Expected maxHourlySlots 168, got %d", c.maxHourlySlots)
	}
}

func TestRecordRecord(t *testing.T) {
	c := NewCollector()

	c.RecordRecord(record("Users", models.KindStructuredQuery, 100, 200))
	stats := c.GetGlobalStats()
	if stats.TotalRecords != 1 || stats.TotalErrors != 0 {
		t.Errorf("Expected 1 record and 0 errors, got %d/%d", stats.TotalRecords, stats.TotalErrors)
	}

	c.RecordRecord(record("Users", models.KindDocLookup, 50, 403))
	stats = c.GetGlobalStats()
	if stats.TotalRecords != 2 || stats.TotalErrors != 1 {
		t.Errorf("Expected 2 records and 1 error, got %d/%d", stats.TotalRecords, stats.TotalErrors)
	}
	if stats.RecordsByKind[models.KindStructuredQuery] != 1 || stats.RecordsByKind[models.KindDocLookup] != 1 {
		t.Errorf("Unexpected kind counts: %v", stats.RecordsByKind)
	}
	if len(stats.RecentErrors) != 1 || stats.RecentErrors[0].StatusCode != 403 {
		t.Errorf("Unexpected recent errors: %+v", stats.RecentErrors)
	}
	if stats.AvgDurationMs != 75 {
		t.Errorf("Expected avg 75ms, got %f", stats.AvgDurationMs)
	}
}

func TestRecordRecord_MinMaxDuration(t *testing.T) {
	c := NewCollector()

	for _, d := range []int64{100, 50, 200} {
		c.RecordRecord(record("Users", models.KindStructuredQuery, d, 200))
	}

	stat := c.GetCollectionStats("Users")
	if stat == nil {
		t.Fatal("Expected collection stats")
	}
	if stat.MinDurationMs != 50 || stat.MaxDurationMs != 200 {
		t.Errorf("Expected min 50 max 200, got %f/%f", stat.MinDurationMs, stat.MaxDurationMs)
	}
	if stat.LastRecordTime == "" {
		t.Error("Expected last record time")
	}

	if c.GetCollectionStats("Missing") != nil {
		t.Error("Expected nil for unknown collection")
	}
}

func TestGetGlobalStats_TopCollections(t *testing.T) {
	c := NewCollector()

	for i := 0; i < 12; i++ {
		name := string(rune('A' + i))
		for j := 0; j <= i; j++ {
			c.RecordRecord(record(name, models.KindStructuredQuery, 10, 200))
		}
	}

	stats := c.GetGlobalStats()
	if stats.TotalCollections != 12 {
		t.Errorf("Expected 12 collections, got %d", stats.TotalCollections)
	}
	if len(stats.TopCollections) != 10 {
		t.Fatalf("Expected top 10, got %d", len(stats.TopCollections))
	}
	if stats.TopCollections[0].Collection != "L" || stats.TopCollections[0].TotalRecords != 12 {
		t.Errorf("Expected busiest collection first, got %+v", stats.TopCollections[0])
	}
}

func TestGetGlobalStats_HourlyStats(t *testing.T) {
	c := NewCollector()
	c.RecordRecord(record("Users", models.KindStructuredQuery, 10, 200))
	c.RecordRecord(record("Users", models.KindStructuredQuery, 10, 500))

	stats := c.GetGlobalStats()
	if len(stats.RecordsByHour) != 24 {
		t.Fatalf("Expected 24 hourly slots, got %d", len(stats.RecordsByHour))
	}
	last := stats.RecordsByHour[23]
	if last.Records != 2 || last.Errors != 1 {
		t.Errorf("Expected current hour 2/1, got %d/%d", last.Records, last.Errors)
	}
}

func TestRecentErrors_MaxLimit(t *testing.T) {
	c := NewCollector()
	for i := 0; i < 150; i++ {
		c.RecordRecord(record("Users", models.KindStructuredQuery, 1, 500))
	}
	if n := len(c.GetGlobalStats().RecentErrors); n != 100 {
		t.Errorf("Expected 100 recent errors, got %d", n)
	}
}

func TestPendingSource(t *testing.T) {
	c := NewCollector()
	if c.GetGlobalStats().PendingCalls != 0 {
		t.Error("Expected 0 pending without a source")
	}

	c.SetPendingSource(func() int { return 3 })
	if n := c.GetGlobalStats().PendingCalls; n != 3 {
		t.Errorf("Expected 3 pending, got %d", n)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.SetPendingSource(func() int { return 2 })
	c.Publish(record("Users", models.KindAggregationQuery, 42, 200))

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	out := string(body)

	for _, want := range []string{
		`firescope_records_total{kind="aggregation_query"} 1`,
		`firescope_record_duration_ms_count{kind="aggregation_query"} 1`,
		`firescope_pending_calls 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestReset(t *testing.T) {
	c := NewCollector()
	c.RecordRecord(record("Users", models.KindStructuredQuery, 10, 500))

	c.Reset()

	stats := c.GetGlobalStats()
	if stats.TotalRecords != 0 || stats.TotalErrors != 0 || len(stats.RecentErrors) != 0 {
		t.Errorf("Expected empty stats after reset, got %+v", stats)
	}
	if len(stats.RecordsByKind) != 0 {
		t.Errorf("Expected kind counts cleared, got %v", stats.RecordsByKind)
	}
}

func TestHourlyStatsCleanup(t *testing.T) {
	c := NewCollector()
	c.maxHourlySlots = 5

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		c.now = func() time.Time { return at }
		c.RecordRecord(record("Users", models.KindStructuredQuery, 1, 200))
	}

	if len(c.hourlyStats) > 5 {
		t.Errorf("Expected at most 5 hourly slots, got %d", len(c.hourlyStats))
	}
	if _, ok := c.hourlyStats["2024-01-01-09"]; !ok {
		t.Error("Expected newest slot to be kept")
	}
}

func TestConcurrentStatsAccess(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.RecordRecord(record("Users", models.KindStructuredQuery, 5, 200))
		}()
		go func() {
			defer wg.Done()
			_ = c.GetGlobalStats()
		}()
	}
	wg.Wait()

	if n := c.GetGlobalStats().TotalRecords; n != 50 {
		t.Errorf("Expected 50 records, got %d", n)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 30*time.Minute + 10*time.Second, "2h30m0s"},
		{50 * time.Hour, "50h0m0s"},
	}

	for _, tt := range tests {
		if got := formatDuration(tt.duration); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.duration, got, tt.want)
		}
	}
}

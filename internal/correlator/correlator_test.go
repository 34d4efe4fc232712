package correlator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prasenjit/firescope/internal/models"
)

const runQueryURL = "https://firestore.googleapis.com/v1/projects/p/databases/(default)/documents:runQuery"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSink struct {
	mu      sync.Mutex
	records []*models.Record
}

func (s *recordingSink) Publish(rec *models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func queryCall(id, collection string) *models.CapturedCall {
	return &models.CapturedCall{
		RequestID:    id,
		URL:          runQueryURL,
		Method:       "POST",
		TabContext:   "tab-1",
		BodyEncoding: models.EncodingRaw,
		RawBody:      []byte(`{"structuredQuery":{"from":[{"collectionId":"` + collection + `"}]}}`),
	}
}

func multiplexedCall(id string) *models.CapturedCall {
	return &models.CapturedCall{
		RequestID:    id,
		URL:          "https://firestore.googleapis.com/google.firestore.v1.Firestore/Listen/channel?VER=8",
		Method:       "POST",
		TabContext:   "tab-1",
		BodyEncoding: models.EncodingForm,
		FormFields: []models.FormField{
			{Key: "req0___data__", Values: []string{`{"addTarget":{"structuredQuery":{"from":[{"collectionId":"Users"}]}}}`}},
			{Key: "req1___data__", Values: []string{`{"addTarget":{"documents":["projects/p/databases/(default)/documents/Users/123"]}}`}},
		},
	}
}

func newTestCorrelator(sinks ...Sink) (*Correlator, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	return New(Options{Now: clock.Now}, sinks...), clock
}

func TestCorrelator_GroupedCompletion(t *testing.T) {
	sink := &recordingSink{}
	c, clock := newTestCorrelator(sink)

	if n := c.Observe(multiplexedCall("req-1")); n != 2 {
		t.Fatalf("Expected 2 buffered descriptions, got %d", n)
	}

	clock.Advance(150 * time.Millisecond)
	records := c.Complete(models.CompletionSignal{RequestID: "req-1", StatusCode: 200})

	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	for _, r := range records {
		if r.DurationMs != 150 {
			t.Errorf("Expected duration 150ms, got %d", r.DurationMs)
		}
		if r.Status != 200 {
			t.Errorf("Expected status 200, got %d", r.Status)
		}
		if r.GroupTotal != 2 {
			t.Errorf("Expected groupTotal 2, got %d", r.GroupTotal)
		}
		if r.GroupID != "req-1" {
			t.Errorf("Expected groupId req-1, got %q", r.GroupID)
		}
		if r.Method != "POST" || r.TabContext != "tab-1" {
			t.Errorf("Unexpected method/tab: %q %q", r.Method, r.TabContext)
		}
	}
	if records[0].ID == records[1].ID || records[0].ID == "" {
		t.Error("Expected distinct record IDs")
	}
	if records[0].Kind != models.KindStructuredQuery || records[1].Kind != models.KindDocLookup {
		t.Errorf("Expected decode order to be preserved, got %q then %q", records[0].Kind, records[1].Kind)
	}
	if sink.Len() != 2 {
		t.Errorf("Expected sink to receive 2 records, got %d", sink.Len())
	}
	if c.Pending() != 0 {
		t.Errorf("Expected empty buffer, got %d", c.Pending())
	}
}

func TestCorrelator_UnknownCompletionIgnored(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCorrelator(sink)

	if records := c.Complete(models.CompletionSignal{RequestID: "never-seen", StatusCode: 200}); records != nil {
		t.Errorf("Expected nil, got %+v", records)
	}
	if sink.Len() != 0 {
		t.Errorf("Expected no emitted records, got %d", sink.Len())
	}
}

func TestCorrelator_DropsGetAndEmptyCalls(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCorrelator(sink)

	get := queryCall("get-1", "Users")
	get.Method = "GET"
	if n := c.Observe(get); n != 0 {
		t.Errorf("Expected GET to be dropped, buffered %d", n)
	}

	empty := &models.CapturedCall{
		RequestID:    "empty-1",
		URL:          "https://firestore.googleapis.com/google.firestore.v1.Firestore/Listen/channel?VER=8",
		Method:       "POST",
		BodyEncoding: models.EncodingForm,
		FormFields:   []models.FormField{{Key: "req0___data__", Values: []string{`{"removeTarget":2}`}}},
	}
	if n := c.Observe(empty); n != 0 {
		t.Errorf("Expected removeTarget call to be dropped, buffered %d", n)
	}

	c.Complete(models.CompletionSignal{RequestID: "get-1", StatusCode: 200})
	c.Complete(models.CompletionSignal{RequestID: "empty-1", StatusCode: 200})

	if sink.Len() != 0 {
		t.Errorf("Expected no records, got %d", sink.Len())
	}
}

func TestCorrelator_OrderingIndependence(t *testing.T) {
	c, clock := newTestCorrelator()

	c.Observe(queryCall("a", "Alpha"))
	clock.Advance(10 * time.Millisecond)
	c.Observe(queryCall("b", "Beta"))
	clock.Advance(10 * time.Millisecond)
	c.Observe(queryCall("c", "Gamma"))

	clock.Advance(100 * time.Millisecond)
	want := map[string]struct {
		collection string
		status     int
		duration   int64
	}{
		"c": {"Gamma", 201, 100},
		"a": {"Alpha", 500, 120},
		"b": {"Beta", 404, 110},
	}
	for _, id := range []string{"c", "a", "b"} {
		w := want[id]
		records := c.Complete(models.CompletionSignal{RequestID: id, StatusCode: w.status})
		if len(records) != 1 {
			t.Fatalf("Expected 1 record for %s, got %d", id, len(records))
		}
		r := records[0]
		if r.CollectionPath != w.collection || r.Status != w.status || r.DurationMs != w.duration {
			t.Errorf("Record for %s = %s/%d/%dms, want %s/%d/%dms", id, r.CollectionPath, r.Status, r.DurationMs, w.collection, w.status, w.duration)
		}
	}
}

func TestCorrelator_CompletionUsesSignalTime(t *testing.T) {
	c, clock := newTestCorrelator()
	start := clock.Now()

	c.Observe(queryCall("req-1", "Users"))
	records := c.Complete(models.CompletionSignal{
		RequestID:  "req-1",
		StatusCode: 200,
		Method:     "PATCH",
		EndedAt:    start.Add(42 * time.Millisecond),
	})

	if len(records) != 1 || records[0].DurationMs != 42 || records[0].Method != "PATCH" {
		t.Fatalf("Unexpected records: %+v", records)
	}
}

func TestCorrelator_ReobservedCallKeepsStartTime(t *testing.T) {
	c, clock := newTestCorrelator()
	start := clock.Now()

	c.Observe(queryCall("req-1", "Users"))
	clock.Advance(30 * time.Millisecond)
	c.Observe(queryCall("req-1", "Posts"))
	clock.Advance(20 * time.Millisecond)

	if c.Pending() != 1 {
		t.Fatalf("Expected 1 pending call, got %d", c.Pending())
	}

	records := c.Complete(models.CompletionSignal{RequestID: "req-1", StatusCode: 200})
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if !records[0].StartedAt.Equal(start) || records[0].DurationMs != 50 {
		t.Errorf("Expected first start time and 50ms, got %v %dms", records[0].StartedAt, records[0].DurationMs)
	}
	if records[0].CollectionPath != "Posts" {
		t.Errorf("Expected latest decoded call, got %q", records[0].CollectionPath)
	}
}

func TestCorrelator_Sweep(t *testing.T) {
	c, clock := newTestCorrelator()

	c.Observe(queryCall("old", "Users"))
	clock.Advance(DefaultMaxAge)
	c.Observe(queryCall("new", "Users"))

	if n := c.Sweep(clock.Now()); n != 0 {
		t.Errorf("Expected nothing evicted at exactly MaxAge, got %d", n)
	}

	clock.Advance(time.Second)
	if n := c.Sweep(clock.Now()); n != 1 {
		t.Errorf("Expected 1 eviction, got %d", n)
	}
	if c.Pending() != 1 {
		t.Errorf("Expected 1 pending call, got %d", c.Pending())
	}
	if records := c.Complete(models.CompletionSignal{RequestID: "old", StatusCode: 200}); records != nil {
		t.Error("Expected evicted call not to complete")
	}
}

func TestCorrelator_RunStopsOnCancel(t *testing.T) {
	c := New(Options{SweepInterval: time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCorrelator_AddSink(t *testing.T) {
	c, _ := newTestCorrelator()
	var got []*models.Record
	c.AddSink(SinkFunc(func(rec *models.Record) { got = append(got, rec) }))

	c.Observe(queryCall("req-1", "Users"))
	c.Complete(models.CompletionSignal{RequestID: "req-1", StatusCode: 200})

	if len(got) != 1 || got[0].CollectionPath != "Users" {
		t.Errorf("Expected added sink to receive the record, got %+v", got)
	}
}

func TestCorrelator_Concurrent(t *testing.T) {
	sink := &recordingSink{}
	c, _ := newTestCorrelator(sink)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('A'+i%26)) + string(rune('a'+i/26))
			c.Observe(queryCall(id, "Users"))
			c.Complete(models.CompletionSignal{RequestID: id, StatusCode: 200})
		}(i)
	}
	wg.Wait()

	if sink.Len() != 50 {
		t.Errorf("Expected 50 records, got %d", sink.Len())
	}
	if c.Pending() != 0 {
		t.Errorf("Expected empty buffer, got %d", c.Pending())
	}
}

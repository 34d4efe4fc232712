package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecordFilter_Matches(t *testing.T) {
	now := time.Now()
	rec := &Record{
		QueryDescription: QueryDescription{Kind: KindStructuredQuery, CollectionPath: "Users"},
		GroupID:          "req-1",
		Method:           "POST",
		Status:           200,
		EndedAt:          now,
		TabContext:       "tab-1",
	}

	tests := []struct {
		name   string
		filter *RecordFilter
		want   bool
	}{
		{"nil filter", nil, true},
		{"empty filter", &RecordFilter{}, true},
		{"collection match", &RecordFilter{Collection: "Users"}, true},
		{"collection mismatch", &RecordFilter{Collection: "Posts"}, false},
		{"kind mismatch", &RecordFilter{Kind: KindDocLookup}, false},
		{"method match", &RecordFilter{Method: "POST"}, true},
		{"status mismatch", &RecordFilter{Status: 500}, false},
		{"tab mismatch", &RecordFilter{TabContext: "tab-2"}, false},
		{"group match", &RecordFilter{GroupID: "req-1"}, true},
		{"start after record", &RecordFilter{StartTime: now.Add(time.Minute)}, false},
		{"end before record", &RecordFilter{EndTime: now.Add(-time.Minute)}, false},
		{"window contains record", &RecordFilter{StartTime: now.Add(-time.Minute), EndTime: now.Add(time.Minute)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(rec); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecordJSON_FlattensDescription(t *testing.T) {
	rec := Record{
		QueryDescription: QueryDescription{
			Kind:           KindStructuredQuery,
			CollectionPath: "Users",
			Filters:        []Filter{{Field: "age", Op: OpGreaterThanOrEqual, Value: IntegerValue(18)}},
		},
		GroupID:    "req-1",
		GroupTotal: 2,
		Status:     200,
		DurationMs: 150,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out["type"] != "structured_query" {
		t.Errorf("Expected type structured_query, got %v", out["type"])
	}
	if out["collectionPath"] != "Users" {
		t.Errorf("Expected collectionPath Users, got %v", out["collectionPath"])
	}
	if out["groupTotal"] != float64(2) {
		t.Errorf("Expected groupTotal 2, got %v", out["groupTotal"])
	}
	filters := out["filters"].([]any)
	first := filters[0].(map[string]any)
	if first["value"] != float64(18) {
		t.Errorf("Expected scalar filter value 18, got %v", first["value"])
	}

	if rec.IsError() {
		t.Error("Expected status 200 not to be an error")
	}
}

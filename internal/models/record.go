package models

import (
	"time"
)

// Record is a QueryDescription enriched with the timing and status of the
// call it was decoded from
type Record struct {
	QueryDescription
	ID         string    `json:"id"`
	GroupID    string    `json:"groupId"`
	GroupTotal int       `json:"groupTotal"`
	Method     string    `json:"method"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
	EndedAt    time.Time `json:"endedAt"`
	TabContext string    `json:"tabContext,omitempty"`
}

// IsError reports whether the call failed with an HTTP error status
func (r *Record) IsError() bool {
	return r.Status >= 400
}

// RecordFilter represents filters for querying stored records
type RecordFilter struct {
	Collection string    `json:"collection,omitempty"`
	Kind       QueryKind `json:"type,omitempty"`
	Method     string    `json:"method,omitempty"`
	Status     int       `json:"status,omitempty"`
	TabContext string    `json:"tabContext,omitempty"`
	GroupID    string    `json:"groupId,omitempty"`
	StartTime  time.Time `json:"startTime,omitempty"`
	EndTime    time.Time `json:"endTime,omitempty"`
	Limit      int       `json:"limit,omitempty"`
}

// Matches reports whether r satisfies every set field of the filter.
// Limit is not evaluated here.
func (f *RecordFilter) Matches(r *Record) bool {
	if f == nil {
		return true
	}
	if f.Collection != "" && r.CollectionPath != f.Collection {
		return false
	}
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.Method != "" && r.Method != f.Method {
		return false
	}
	if f.Status != 0 && r.Status != f.Status {
		return false
	}
	if f.TabContext != "" && r.TabContext != f.TabContext {
		return false
	}
	if f.GroupID != "" && r.GroupID != f.GroupID {
		return false
	}
	if !f.StartTime.IsZero() && r.EndedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && r.EndedAt.After(f.EndTime) {
		return false
	}
	return true
}

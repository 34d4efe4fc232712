package models

import (
	"time"
)

// BodyEncoding describes which payload representation a captured call carries
type BodyEncoding string

// Supported body encodings
const (
	EncodingRaw  BodyEncoding = "raw-bytes"
	EncodingForm BodyEncoding = "form-fields"
	EncodingNone BodyEncoding = "none"
)

// FormField is one form-encoded field in the order it appeared on the wire
type FormField struct {
	Key    string   `json:"key"`
	Values []string `json:"values"`
}

// First returns the first value of the field, or "" if it has none
func (f FormField) First() string {
	if len(f.Values) == 0 {
		return ""
	}
	return f.Values[0]
}

// CapturedCall is one outgoing HTTP call to the database API, as observed
// when the request was about to be sent
type CapturedCall struct {
	RequestID    string       `json:"requestId"`
	URL          string       `json:"url"`
	Method       string       `json:"method"`
	TabContext   string       `json:"tabContext,omitempty"`
	BodyEncoding BodyEncoding `json:"bodyEncoding"`
	RawBody      []byte       `json:"rawBody,omitempty"`
	FormFields   []FormField  `json:"formFields,omitempty"`
}

// CompletionSignal reports that a captured call finished on the network
type CompletionSignal struct {
	RequestID  string    `json:"requestId"`
	StatusCode int       `json:"statusCode"`
	Method     string    `json:"method,omitempty"`
	EndedAt    time.Time `json:"endedAt"`
}

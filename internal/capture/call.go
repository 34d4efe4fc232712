// Package capture turns observed Firestore traffic into captured calls and
// completion signals for the correlator.
package capture

import (
	"mime"
	"net/url"
	"strings"

	"github.com/prasenjit/firescope/internal/models"
)

// DefaultTab is the tab context of traffic with no explicit tab
const DefaultTab = "default"

const formContentType = "application/x-www-form-urlencoded"

// Recorder is the correlator surface capture sources feed
type Recorder interface {
	Observe(call *models.CapturedCall) int
	Complete(sig models.CompletionSignal) []models.Record
}

// NewCall builds a captured call from a request about to be sent.
// Form-encoded bodies are split into ordered fields, any other non-empty
// body is kept as raw bytes.
func NewCall(requestID, rawURL, method, tab, contentType string, body []byte) *models.CapturedCall {
	if tab == "" {
		tab = DefaultTab
	}
	call := &models.CapturedCall{
		RequestID:    requestID,
		URL:          rawURL,
		Method:       strings.ToUpper(method),
		TabContext:   tab,
		BodyEncoding: models.EncodingNone,
	}

	switch {
	case len(body) == 0:
	case isForm(contentType):
		call.BodyEncoding = models.EncodingForm
		call.FormFields = ParseForm(string(body))
	default:
		call.BodyEncoding = models.EncodingRaw
		call.RawBody = body
	}
	return call
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), formContentType)
	}
	return mediaType == formContentType
}

// ParseForm splits a urlencoded body into fields in first-appearance order.
// Repeated keys collect their values on the first field. Pairs that fail to
// unescape are kept verbatim.
func ParseForm(body string) []models.FormField {
	var (
		fields []models.FormField
		index  = make(map[string]int)
	)
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key := unescape(k)
		value := unescape(v)

		if i, ok := index[key]; ok {
			fields[i].Values = append(fields[i].Values, value)
			continue
		}
		index[key] = len(fields)
		fields = append(fields, models.FormField{Key: key, Values: []string{value}})
	}
	return fields
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

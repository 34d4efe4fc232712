// Package filter drops captured traffic and decoded descriptions that carry
// nothing worth reporting.
package filter

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/prasenjit/firescope/internal/models"
)

// DefaultAPIHost is the Firestore API host
const DefaultAPIHost = "firestore.googleapis.com"

// AcceptCall reports whether a captured call should reach the decoder.
// The call must target host and must not be a GET; GETs on the channel are
// connection maintenance and carry no query data.
func AcceptCall(call *models.CapturedCall, host string) bool {
	if call == nil {
		return false
	}
	if strings.EqualFold(call.Method, http.MethodGet) {
		return false
	}
	if host == "" {
		host = DefaultAPIHost
	}
	u, err := url.Parse(call.URL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), host)
}

// IsMeaningful reports whether a description identifies a collection
func IsMeaningful(desc models.QueryDescription) bool {
	if desc.CollectionPath == "" {
		return false
	}
	switch desc.Kind {
	case models.KindStructuredQuery, models.KindDocLookup, models.KindAggregationQuery:
		return true
	default:
		return desc.Kind.IsWrite()
	}
}

// Meaningful returns the meaningful subset of descs, preserving order
func Meaningful(descs []models.QueryDescription) []models.QueryDescription {
	out := make([]models.QueryDescription, 0, len(descs))
	for _, d := range descs {
		if IsMeaningful(d) {
			out = append(out, d)
		}
	}
	return out
}

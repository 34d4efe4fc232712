// Package decoder reconstructs logical database operations from captured
// Firestore wire calls. Decoding is best effort and never fails: payloads
// it cannot interpret contribute nothing to the result.
package decoder

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/tidwall/gjson"
)

// dataFieldPattern selects the multiplexed sub-payload fields (reqN___data__)
var dataFieldPattern = regexp.MustCompile(`data__$`)

var documentsURLPattern = regexp.MustCompile(`/documents/(.*?)(?:\?|$)`)

// writeChannelMarker identifies the write webchannel
const writeChannelMarker = "/Write/"

// Decode turns one captured call into zero or more query descriptions.
// The form-field representation is tried first; when it yields nothing
// the raw body is decoded.
func Decode(call *models.CapturedCall) []models.QueryDescription {
	if call == nil {
		return nil
	}

	var out []models.QueryDescription
	if call.BodyEncoding == models.EncodingForm {
		out = decodeForm(call.URL, call.FormFields)
	}
	if len(out) == 0 {
		out = decodeRaw(call.URL, rawText(call))
	}
	for i := range out {
		out[i].URL = call.URL
	}
	return out
}

func rawText(call *models.CapturedCall) string {
	if call.BodyEncoding != models.EncodingRaw || !utf8.Valid(call.RawBody) {
		return ""
	}
	return string(call.RawBody)
}

// decodeForm decodes every "…data__" field in wire order
func decodeForm(rawURL string, fields []models.FormField) []models.QueryDescription {
	isWrite := strings.Contains(rawURL, writeChannelMarker)

	var out []models.QueryDescription
	for _, field := range fields {
		if !dataFieldPattern.MatchString(field.Key) {
			continue
		}
		payload := field.First()
		if !gjson.Valid(payload) {
			continue
		}
		out = append(out, decodePayload(gjson.Parse(payload), isWrite)...)
	}
	return out
}

// decodePayload decodes one independently-parsed sub-payload
func decodePayload(obj gjson.Result, allowWrites bool) []models.QueryDescription {
	shape, node := classify(obj)
	switch shape {
	case shapeDocuments:
		return documentRefs(node)
	case shapeStructuredQuery:
		return []models.QueryDescription{structuredQuery(node)}
	case shapeAggregationQuery:
		return []models.QueryDescription{aggregationQuery(node)}
	case shapeWrites:
		if allowWrites {
			return writes(node)
		}
	}
	return nil
}

// decodeRaw decodes a single-query body. Anything it cannot read falls
// back to the collection path found in the URL.
func decodeRaw(rawURL, body string) []models.QueryDescription {
	if body != "" && gjson.Valid(body) {
		obj := gjson.Parse(body)
		if sq := obj.Get(pathStructured); sq.Exists() && sq.Type != gjson.Null {
			return []models.QueryDescription{structuredQuery(sq)}
		}
		if agg := obj.Get(pathAggregate); agg.Exists() && agg.Type != gjson.Null {
			return []models.QueryDescription{aggregationQuery(agg)}
		}
		if w := obj.Get(pathWrites); w.IsArray() {
			if out := writes(w); len(out) > 0 {
				return out
			}
		}
	}
	return []models.QueryDescription{urlFallback(rawURL)}
}

// urlFallback reports the documents path of the URL as a structured query
func urlFallback(rawURL string) models.QueryDescription {
	desc := models.QueryDescription{
		Kind:    models.KindStructuredQuery,
		Filters: []models.Filter{},
		OrderBy: []models.OrderBy{},
	}
	if m := documentsURLPattern.FindStringSubmatch(rawURL); m != nil {
		path := m[1]
		if decoded, err := url.PathUnescape(path); err == nil {
			path = decoded
		}
		desc.CollectionPath = path
	}
	return desc
}

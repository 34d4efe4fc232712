// Package querystring implements the compact query encoding used by the
// Firebase console's query builder view.
//
// An encoded query is "<clause count>|<clause>|<clause>...". Clause tokens
// are joined with '|'. Free-form values carry a "<length>/" prefix counted
// in UTF-16 code units; numeric values use the fixed prefix "1/".
package querystring

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/prasenjit/firescope/internal/models"
)

// Clause and value tags
const (
	tagWhere   = "WH"
	tagOrder   = "ORD"
	tagLimit   = "LIM"
	tagCount   = "COU"
	tagSum     = "SUM"
	tagAvg     = "AVG"
	tagArray   = "ARR"
	tagBool    = "BL"
	tagNumber  = "NUM"
	tagTime    = "TS"
	tagString  = "STR"
	dirAsc     = "ASC"
	dirDesc    = "DESC"
	numPrefix  = "1/"
	separator  = "|"
	lengthMark = "/"
)

// Query is a decoded clause list
type Query struct {
	Filters      []models.Filter      `json:"filters"`
	OrderBy      []models.OrderBy     `json:"orderBy"`
	Aggregations []models.Aggregation `json:"aggregations"`
	Limit        *int64               `json:"limit,omitempty"`
}

// Encode builds the query string for the given clauses. Clauses are
// emitted in the order filters, orderBy, aggregations, limit. An empty
// clause set encodes to "".
func Encode(filters []models.Filter, orderBy []models.OrderBy, aggregations []models.Aggregation, limit *int64) string {
	var clauses []string

	for _, f := range filters {
		parts := []string{tagWhere, "1", withLength(f.Field), models.MapOperator(string(f.Op)).Code()}
		parts = append(parts, encodeValue(f.Value)...)
		clauses = append(clauses, strings.Join(parts, separator))
	}

	for _, o := range orderBy {
		dir := dirDesc
		if o.Direction == models.Ascending {
			dir = dirAsc
		}
		clauses = append(clauses, strings.Join([]string{tagOrder, withLength(o.Field), dir}, separator))
	}

	for _, a := range aggregations {
		switch a.Op {
		case models.AggCount:
			clauses = append(clauses, tagCount)
		case models.AggSum:
			clauses = append(clauses, tagSum+separator+withLength(a.Field))
		case models.AggAvg:
			clauses = append(clauses, tagAvg+separator+withLength(a.Field))
		}
	}

	if limit != nil {
		clauses = append(clauses, tagLimit+separator+numPrefix+strconv.FormatInt(*limit, 10))
	}

	if len(clauses) == 0 {
		return ""
	}
	return strconv.Itoa(len(clauses)) + separator + strings.Join(clauses, separator)
}

// encodeValue returns the tag and payload tokens of a filter value
func encodeValue(v models.Value) []string {
	if v.Kind == models.KindArray {
		parts := []string{tagArray, strconv.Itoa(len(v.Items))}
		for _, item := range v.Items {
			parts = append(parts, encodeScalar(item)...)
		}
		return parts
	}
	return encodeScalar(v)
}

func encodeScalar(v models.Value) []string {
	switch v.Kind {
	case models.KindBoolean:
		return []string{tagBool, withLength(strconv.FormatBool(v.Bool))}
	case models.KindInteger:
		return []string{tagNumber, numPrefix + strconv.FormatInt(v.Int, 10)}
	case models.KindDouble:
		return []string{tagNumber, numPrefix + formatDouble(v.Float)}
	case models.KindTimestamp, models.KindString:
		if models.IsTimestamp(v.Str) {
			return []string{tagTime, withLength(v.Str)}
		}
		return []string{tagString, withLength(v.Str)}
	default:
		return []string{tagString, withLength(stringForm(v))}
	}
}

// stringForm renders values that have no dedicated tag
func stringForm(v models.Value) string {
	if v.IsNull() {
		return "null"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

func formatDouble(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// withLength prefixes s with its length in UTF-16 code units
func withLength(s string) string {
	return strconv.Itoa(utf16Len(s)) + lengthMark + s
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}

// Package consolelink builds Firebase console URLs that open a captured
// document or query.
package consolelink

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/prasenjit/firescope/internal/querystring"
)

// Console URL templates
const (
	DocumentTemplate             = "https://console.firebase.google.com/project/{PROJECT_ID}/firestore/databases/{DATABASE}/data/{COLLECTION}/{DOCUMENT}"
	CollectionQueryTemplate      = "https://console.firebase.google.com/project/{PROJECT_ID}/firestore/databases/{DATABASE}/data?view=query-view&query={QUERY}&scopeType=collection&scopeName=%2F{COLLECTION}"
	CollectionGroupQueryTemplate = "https://console.firebase.google.com/project/{PROJECT_ID}/firestore/databases/{DATABASE}/data?view=query-view&query={QUERY}&scopeType=collection_group&scopeName={COLLECTION}"
)

// DefaultDatabase is the console's name for the "(default)" database
const DefaultDatabase = "-default-"

var (
	projectPattern  = regexp.MustCompile(`projects/([^/]+)`)
	databasePattern = regexp.MustCompile(`databases/([^/]+)`)
)

// QueryInfo selects query mode. Filter values are expected in decoded form.
type QueryInfo struct {
	IsCollectionGroup bool                 `json:"isCollectionGroup"`
	Filters           []models.Filter      `json:"filters"`
	OrderBy           []models.OrderBy     `json:"orderBy"`
	Aggregations      []models.Aggregation `json:"aggregations,omitempty"`
	Limit             *int64               `json:"limit,omitempty"`
}

// FromDescription returns the query info of a decoded description
func FromDescription(d models.QueryDescription) *QueryInfo {
	return &QueryInfo{
		IsCollectionGroup: d.IsCollectionGroup,
		Filters:           d.Filters,
		OrderBy:           d.OrderBy,
		Aggregations:      d.Aggregations,
		Limit:             d.Limit,
	}
}

// databaseParam returns the "database" query parameter of rawURL
func databaseParam(rawURL string) string {
	_, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return ""
	}
	// ParseQuery keeps the pairs it could parse on error
	values, _ := url.ParseQuery(query)
	return values.Get("database")
}

// ExtractProjectID returns the project id named by the database query
// parameter or, failing that, by the URL path. It returns "" when neither
// carries one.
func ExtractProjectID(rawURL string) string {
	if db := databaseParam(rawURL); db != "" {
		if m := projectPattern.FindStringSubmatch(db); m != nil {
			return m[1]
		}
		return ""
	}
	if m := projectPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	return ""
}

// ExtractDatabaseID returns the database id in console form. The default
// database, and a missing id, map to DefaultDatabase.
func ExtractDatabaseID(rawURL string) string {
	if db := databaseParam(rawURL); db != "" {
		if m := databasePattern.FindStringSubmatch(db); m != nil {
			return normalizeDatabaseID(m[1])
		}
		return normalizeDatabaseID(db)
	}
	if m := databasePattern.FindStringSubmatch(rawURL); m != nil {
		return normalizeDatabaseID(m[1])
	}
	return DefaultDatabase
}

func normalizeDatabaseID(id string) string {
	v, err := url.PathUnescape(strings.TrimSpace(id))
	if err != nil || v == "" || v == "(default)" {
		return DefaultDatabase
	}
	return v
}

// Build returns the console URL for a captured call. Query mode is used
// when documentID is empty and q is non-nil; otherwise a document (or
// collection) link is built. Query mode unwraps typed filter values first.
// ok is false when no project id can be found.
func Build(rawURL, collection, documentID string, q *QueryInfo) (link string, ok bool) {
	projectID := ExtractProjectID(rawURL)
	if projectID == "" {
		return "", false
	}
	databaseID := ExtractDatabaseID(rawURL)

	if documentID == "" && q != nil {
		query := querystring.Encode(normalizeFilters(q.Filters), q.OrderBy, q.Aggregations, q.Limit)
		tmpl := CollectionQueryTemplate
		if q.IsCollectionGroup {
			tmpl = CollectionGroupQueryTemplate
			collection = strings.TrimPrefix(collection, "/")
		}
		return substitute(tmpl,
			"{PROJECT_ID}", projectID,
			"{DATABASE}", databaseID,
			"{COLLECTION}", collection,
			"{QUERY}", encodeURIComponent(query),
		), true
	}

	base := substitute(DocumentTemplate,
		"{PROJECT_ID}", projectID,
		"{DATABASE}", databaseID,
		"{COLLECTION}", collection,
	)
	if documentID != "" {
		return strings.Replace(base, "{DOCUMENT}", documentID, 1), true
	}
	return strings.Replace(base, "/{DOCUMENT}", "", 1), true
}

func normalizeFilters(filters []models.Filter) []models.Filter {
	out := make([]models.Filter, len(filters))
	for i, f := range filters {
		f.Value = f.Value.Normalize()
		out[i] = f
	}
	return out
}

// ForRecord builds the link for a finalized record: document link for
// lookups and writes, query link otherwise
func ForRecord(rec *models.Record) (string, bool) {
	if rec.DocumentID != "" {
		return Build(rec.URL, rec.CollectionPath, rec.DocumentID, nil)
	}
	return Build(rec.URL, rec.CollectionPath, "", FromDescription(rec.QueryDescription))
}

// substitute replaces the first occurrence of each placeholder in order
func substitute(tmpl string, pairs ...string) string {
	for i := 0; i+1 < len(pairs); i += 2 {
		tmpl = strings.Replace(tmpl, pairs[i], pairs[i+1], 1)
	}
	return tmpl
}

var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// encodeURIComponent escapes s like the browser function of the same name
func encodeURIComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}

package models

// QueryKind identifies the logical operation a description represents
type QueryKind string

// Read kinds
const (
	KindStructuredQuery  QueryKind = "structured_query"
	KindAggregationQuery QueryKind = "aggregation_query"
	KindDocLookup        QueryKind = "doc_lookup"
)

// Write kinds
const (
	KindCreate QueryKind = "create"
	KindUpdate QueryKind = "update"
	KindDelete QueryKind = "delete"
)

// IsWrite reports whether the kind belongs to the write family
func (k QueryKind) IsWrite() bool {
	return k == KindCreate || k == KindUpdate || k == KindDelete
}

// Direction is an orderBy direction
type Direction string

// Sort directions
const (
	Ascending  Direction = "ASCENDING"
	Descending Direction = "DESCENDING"
)

// AggregationOp is a server-side aggregation function
type AggregationOp string

// Aggregation functions
const (
	AggCount AggregationOp = "COUNT"
	AggSum   AggregationOp = "SUM"
	AggAvg   AggregationOp = "AVG"
)

// Filter is one flattened field filter
type Filter struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value Value    `json:"value"`
}

// OrderBy is one ordering clause
type OrderBy struct {
	Field     string    `json:"field"`
	Direction Direction `json:"direction"`
}

// Aggregation is one aggregation clause. Field is empty for COUNT.
type Aggregation struct {
	Op    AggregationOp `json:"op"`
	Field string        `json:"field,omitempty"`
	Alias string        `json:"alias,omitempty"`
}

// DocumentRef identifies a single document
type DocumentRef struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// QueryDescription is one logical database operation in canonical form.
// An empty CollectionPath means the path could not be resolved.
type QueryDescription struct {
	Kind              QueryKind        `json:"type"`
	CollectionPath    string           `json:"collectionPath"`
	IsCollectionGroup bool             `json:"isCollectionGroup"`
	Filters           []Filter         `json:"filters"`
	OrderBy           []OrderBy        `json:"orderBy"`
	Limit             *int64           `json:"limit,omitempty"`
	Aggregations      []Aggregation    `json:"aggregations,omitempty"`
	Documents         []DocumentRef    `json:"documents,omitempty"`
	DocumentID        string           `json:"documentId,omitempty"`
	Fields            map[string]Value `json:"fields,omitempty"`
	URL               string           `json:"url,omitempty"`
}

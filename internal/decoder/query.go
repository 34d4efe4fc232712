package decoder

import (
	"github.com/prasenjit/firescope/internal/models"
	"github.com/tidwall/gjson"
)

// Payload envelope locations
const (
	pathDocuments        = "addTarget.documents"
	pathTargetQuery      = "addTarget.query.structuredQuery"
	pathTargetStructured = "addTarget.structuredQuery"
	pathTargetAggregate  = "addTarget.query.structuredAggregationQuery"
	pathStructured       = "structuredQuery"
	pathAggregate        = "structuredAggregationQuery"
	pathWrites           = "writes"
)

// payloadShape discriminates the envelopes a sub-payload can carry
type payloadShape int

const (
	shapeUnrecognized payloadShape = iota
	shapeDocuments
	shapeStructuredQuery
	shapeAggregationQuery
	shapeWrites
)

// classify reports which known envelope a listen-channel payload carries.
// The order matches the precedence on the wire: document targets win over
// queries, queries over aggregations.
func classify(obj gjson.Result) (payloadShape, gjson.Result) {
	if docs := obj.Get(pathDocuments); docs.Exists() {
		return shapeDocuments, docs
	}
	if sq := firstOf(obj, pathTargetQuery, pathTargetStructured); sq.Exists() {
		return shapeStructuredQuery, sq
	}
	if agg := firstOf(obj, pathTargetAggregate, pathAggregate); agg.Get(pathStructured).Exists() {
		return shapeAggregationQuery, agg
	}
	if w := obj.Get(pathWrites); w.IsArray() {
		return shapeWrites, w
	}
	return shapeUnrecognized, gjson.Result{}
}

func firstOf(obj gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := obj.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// structuredQuery extracts a structured_query description
func structuredQuery(sq gjson.Result) models.QueryDescription {
	desc := models.QueryDescription{Kind: models.KindStructuredQuery}
	readSelection(sq, &desc)
	desc.Limit = readLimit(sq.Get("limit"))
	return desc
}

// aggregationQuery extracts an aggregation_query description
func aggregationQuery(agg gjson.Result) models.QueryDescription {
	sq := agg.Get(pathStructured)
	desc := models.QueryDescription{Kind: models.KindAggregationQuery}
	readSelection(sq, &desc)
	desc.Limit = readLimit(sq.Get("limit"))
	desc.Aggregations = readAggregations(agg.Get("aggregations"))
	return desc
}

// readSelection fills the collection, filters and ordering shared by
// plain and aggregation queries
func readSelection(sq gjson.Result, desc *models.QueryDescription) {
	from := sq.Get("from.0")
	desc.CollectionPath = from.Get("collectionId").String()
	desc.IsCollectionGroup = from.Get("allDescendants").Bool()
	desc.Filters = walkWhere(sq.Get("where"), []models.Filter{})
	desc.OrderBy = readOrderBy(sq.Get("orderBy"))
}

// readLimit accepts both a bare number and the {value: n} wrapper
func readLimit(limit gjson.Result) *int64 {
	switch {
	case limit.Type == gjson.Number:
		n := limit.Int()
		return &n
	case limit.IsObject() && limit.Get("value").Type == gjson.Number:
		n := limit.Get("value").Int()
		return &n
	default:
		return nil
	}
}

// walkWhere flattens the filter tree depth-first. Composite operators
// (AND/OR) are not carried into the result.
func walkWhere(node gjson.Result, acc []models.Filter) []models.Filter {
	if !node.Exists() || node.Type == gjson.Null {
		return acc
	}
	if ff := node.Get("fieldFilter"); ff.Exists() {
		return append(acc, models.Filter{
			Field: ff.Get("field.fieldPath").String(),
			Op:    models.MapOperator(ff.Get("op").String()),
			Value: DecodeValue(ff.Get("value")),
		})
	}
	if uf := node.Get("unaryFilter"); uf.Exists() {
		if !uf.Get("field").Exists() {
			return acc
		}
		return append(acc, models.Filter{
			Field: uf.Get("field.fieldPath").String(),
			Op:    unaryOperator(uf.Get("op").String()),
			Value: models.NullValue(),
		})
	}
	if children := node.Get("compositeFilter.filters"); children.IsArray() {
		for _, child := range children.Array() {
			acc = walkWhere(child, acc)
		}
	}
	return acc
}

// unaryOperator maps IS_NULL / IS_NAN to EQUAL and their negations to
// NOT_EQUAL
func unaryOperator(op string) models.Operator {
	switch op {
	case "IS_NOT_NULL", "IS_NOT_NAN":
		return models.OpNotEqual
	default:
		return models.OpEqual
	}
}

func readOrderBy(node gjson.Result) []models.OrderBy {
	out := []models.OrderBy{}
	if !node.IsArray() {
		return out
	}
	for _, o := range node.Array() {
		out = append(out, models.OrderBy{
			Field:     o.Get("field.fieldPath").String(),
			Direction: models.Direction(o.Get("direction").String()),
		})
	}
	return out
}

// readAggregations keeps each entry in list order, tagged by which of
// count/sum/avg it carries
func readAggregations(node gjson.Result) []models.Aggregation {
	out := []models.Aggregation{}
	if !node.IsArray() {
		return out
	}
	for _, a := range node.Array() {
		alias := a.Get("alias").String()
		switch {
		case a.Get("count").Exists():
			out = append(out, models.Aggregation{Op: models.AggCount, Alias: alias})
		case a.Get("sum").Exists():
			out = append(out, models.Aggregation{Op: models.AggSum, Field: fieldName(a.Get("sum.field")), Alias: alias})
		case a.Get("avg").Exists():
			out = append(out, models.Aggregation{Op: models.AggAvg, Field: fieldName(a.Get("avg.field")), Alias: alias})
		}
	}
	return out
}

// fieldName unwraps {fieldPath: "x"} and accepts a bare string
func fieldName(f gjson.Result) string {
	if f.IsObject() {
		return f.Get("fieldPath").String()
	}
	return f.String()
}

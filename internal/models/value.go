package models

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strconv"
	"time"
)

// ValueKind tags the variant held by a Value
type ValueKind string

// Value variants
const (
	KindString    ValueKind = "string"
	KindInteger   ValueKind = "integer"
	KindDouble    ValueKind = "double"
	KindBoolean   ValueKind = "boolean"
	KindNull      ValueKind = "null"
	KindTimestamp ValueKind = "timestamp"
	KindArray     ValueKind = "array"
	KindMap       ValueKind = "map"
	KindRaw       ValueKind = "raw" // unrecognized envelope, kept verbatim
)

// TimestampLayout is the fixed nanosecond-precision layout of timestamp values
const TimestampLayout = "2006-01-02T15:04:05.000000000Z"

var timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{9}Z$`)

// IsTimestamp reports whether s is a fixed nanosecond-precision UTC timestamp
func IsTimestamp(s string) bool {
	return timestampPattern.MatchString(s)
}

// NormalizeTimestamp rewrites an RFC 3339 timestamp into TimestampLayout.
// Unparseable input is returned unchanged.
func NormalizeTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return s
	}
	return t.UTC().Format(TimestampLayout)
}

// Value is a decoded document value. The zero Value is null.
type Value struct {
	Kind   ValueKind
	Str    string // string and timestamp
	Int    int64
	Float  float64
	Bool   bool
	Items  []Value
	Fields map[string]Value
	Raw    json.RawMessage
}

// StringValue returns a string Value
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// IntegerValue returns an integer Value
func IntegerValue(n int64) Value { return Value{Kind: KindInteger, Int: n} }

// DoubleValue returns a double Value
func DoubleValue(f float64) Value { return Value{Kind: KindDouble, Float: f} }

// BoolValue returns a boolean Value
func BoolValue(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// NullValue returns a null Value
func NullValue() Value { return Value{Kind: KindNull} }

// TimestampValue returns a timestamp Value normalized to TimestampLayout
func TimestampValue(s string) Value {
	return Value{Kind: KindTimestamp, Str: NormalizeTimestamp(s)}
}

// ArrayValue returns an array Value
func ArrayValue(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{Kind: KindArray, Items: items}
}

// MapValue returns a map Value
func MapValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{Kind: KindMap, Fields: fields}
}

// RawValue keeps an unrecognized envelope as-is
func RawValue(raw []byte) Value {
	return Value{Kind: KindRaw, Raw: json.RawMessage(raw)}
}

// IsNull reports whether the value is null (including the zero Value)
func (v Value) IsNull() bool {
	return v.Kind == "" || v.Kind == KindNull
}

// Scalar returns the plain Go representation of the value:
// string, int64, float64, bool, nil, []any or map[string]any.
func (v Value) Scalar() any {
	switch v.Kind {
	case KindString, KindTimestamp:
		return v.Str
	case KindInteger:
		return v.Int
	case KindDouble:
		return v.Float
	case KindBoolean:
		return v.Bool
	case KindArray:
		out := make([]any, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Scalar()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = f.Scalar()
		}
		return out
	case KindRaw:
		var out any
		if err := json.Unmarshal(v.Raw, &out); err != nil {
			return string(v.Raw)
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON encodes the value in its scalar form
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindRaw:
		if len(v.Raw) == 0 {
			return []byte("null"), nil
		}
		return v.Raw, nil
	case KindDouble:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return json.Marshal(nil)
		}
	case KindMap:
		// Sorted keys keep the encoding stable
		keys := make([]string, 0, len(v.Fields))
		for k := range v.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return nil, err
			}
			vb, err := v.Fields[k].MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	}
	return json.Marshal(v.Scalar())
}

// UnmarshalJSON infers the variant from a scalar JSON encoding. Typed wire
// envelopes such as {"integerValue":"18"} are unwrapped.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	*v = FromScalar(raw)
	return nil
}

// Normalize unwraps typed envelopes held as map values, at any depth
func (v Value) Normalize() Value {
	switch v.Kind {
	case KindMap:
		if len(v.Fields) == 1 {
			for tag := range v.Fields {
				if envelopeTags[tag] {
					return FromScalar(v.Scalar())
				}
			}
		}
		fields := make(map[string]Value, len(v.Fields))
		for k, f := range v.Fields {
			fields[k] = f.Normalize()
		}
		return MapValue(fields)
	case KindArray:
		items := make([]Value, len(v.Items))
		for i, item := range v.Items {
			items[i] = item.Normalize()
		}
		return ArrayValue(items...)
	}
	return v
}

// FromScalar builds a Value from a plain decoded JSON value. A single-key
// object whose key is a wire type tag is read as a typed envelope.
func FromScalar(x any) Value {
	switch t := x.(type) {
	case nil:
		return NullValue()
	case string:
		if IsTimestamp(t) {
			return Value{Kind: KindTimestamp, Str: t}
		}
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return IntegerValue(n)
		}
		f, _ := t.Float64()
		return DoubleValue(f)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return IntegerValue(int64(t))
		}
		return DoubleValue(t)
	case int:
		return IntegerValue(int64(t))
	case int64:
		return IntegerValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromScalar(item)
		}
		return ArrayValue(items...)
	case map[string]any:
		if v, ok := fromEnvelope(t); ok {
			return v
		}
		fields := make(map[string]Value, len(t))
		for k, f := range t {
			fields[k] = FromScalar(f)
		}
		return MapValue(fields)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return NullValue()
		}
		return RawValue(b)
	}
}

var envelopeTags = map[string]bool{
	"stringValue":    true,
	"integerValue":   true,
	"doubleValue":    true,
	"booleanValue":   true,
	"nullValue":      true,
	"timestampValue": true,
	"referenceValue": true,
	"arrayValue":     true,
	"mapValue":       true,
	"geoPointValue":  true,
	"bytesValue":     true,
}

// fromEnvelope unwraps a decoded typed envelope. Tags without a scalar form
// (geo points, bytes) are kept as raw values.
func fromEnvelope(m map[string]any) (Value, bool) {
	if len(m) != 1 {
		return Value{}, false
	}
	for tag, payload := range m {
		if !envelopeTags[tag] {
			return Value{}, false
		}
		switch tag {
		case "stringValue", "referenceValue":
			return StringValue(scalarString(payload)), true
		case "integerValue":
			s := scalarString(payload)
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return IntegerValue(n), true
			}
			f, _ := strconv.ParseFloat(s, 64)
			return IntegerValue(int64(f)), true
		case "doubleValue":
			// ParseFloat accepts "NaN", "Infinity" and "-Infinity"
			f, _ := strconv.ParseFloat(scalarString(payload), 64)
			return DoubleValue(f), true
		case "booleanValue":
			b, _ := strconv.ParseBool(scalarString(payload))
			return BoolValue(b), true
		case "nullValue":
			return NullValue(), true
		case "timestampValue":
			if ts, ok := payload.(map[string]any); ok {
				sec, _ := strconv.ParseInt(scalarString(ts["seconds"]), 10, 64)
				nanos, _ := strconv.ParseInt(scalarString(ts["nanos"]), 10, 64)
				return TimestampValue(time.Unix(sec, nanos).UTC().Format(time.RFC3339Nano)), true
			}
			return TimestampValue(scalarString(payload)), true
		case "arrayValue":
			items := []Value{}
			if body, ok := payload.(map[string]any); ok {
				if values, ok := body["values"].([]any); ok {
					for _, item := range values {
						items = append(items, FromScalar(item))
					}
				}
			}
			return ArrayValue(items...), true
		case "mapValue":
			fields := map[string]Value{}
			if body, ok := payload.(map[string]any); ok {
				if fm, ok := body["fields"].(map[string]any); ok {
					for k, f := range fm {
						fields[k] = FromScalar(f)
					}
				}
			}
			return MapValue(fields), true
		}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return NullValue(), true
	}
	return RawValue(raw), true
}

// scalarString renders a decoded JSON scalar the way the wire spells it
func scalarString(x any) string {
	switch t := x.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

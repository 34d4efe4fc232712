package decoder

import (
	"math"
	"strconv"
	"time"

	"github.com/prasenjit/firescope/internal/models"
	"github.com/tidwall/gjson"
)

// DecodeValue unwraps a typed value envelope such as {"integerValue":"18"}.
// Decoding is total: an envelope with an unrecognized tag, or input that is
// not an envelope at all, is returned verbatim as a raw Value.
func DecodeValue(v gjson.Result) models.Value {
	if !v.Exists() || v.Type == gjson.Null {
		return models.NullValue()
	}
	if !v.IsObject() {
		return models.RawValue([]byte(v.Raw))
	}

	var (
		tag     string
		payload gjson.Result
	)
	// The envelope is a single-key object; the first key is the tag
	v.ForEach(func(key, value gjson.Result) bool {
		tag = key.String()
		payload = value
		return false
	})

	switch tag {
	case "stringValue":
		return models.StringValue(payload.String())
	case "integerValue":
		if n, err := strconv.ParseInt(payload.String(), 10, 64); err == nil {
			return models.IntegerValue(n)
		}
		return models.IntegerValue(payload.Int())
	case "doubleValue":
		return models.DoubleValue(parseDouble(payload))
	case "booleanValue":
		return models.BoolValue(payload.Bool())
	case "nullValue":
		return models.NullValue()
	case "timestampValue":
		return decodeTimestamp(payload)
	case "referenceValue":
		return models.StringValue(payload.String())
	case "arrayValue":
		items := []models.Value{}
		payload.Get("values").ForEach(func(_, item gjson.Result) bool {
			items = append(items, DecodeValue(item))
			return true
		})
		return models.ArrayValue(items...)
	case "mapValue":
		return models.MapValue(DecodeFields(payload.Get("fields")))
	default:
		return models.RawValue([]byte(v.Raw))
	}
}

// DecodeFields decodes a document "fields" object into named values
func DecodeFields(fields gjson.Result) map[string]models.Value {
	out := make(map[string]models.Value)
	fields.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = DecodeValue(value)
		return true
	})
	return out
}

func parseDouble(v gjson.Result) float64 {
	if v.Type == gjson.Number {
		return v.Float()
	}
	switch s := v.String(); s {
	case "NaN":
		return math.NaN()
	case "Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	default:
		f, _ := strconv.ParseFloat(s, 64)
		return f
	}
}

// decodeTimestamp handles both the RFC 3339 string form and the
// {seconds, nanos} object form.
func decodeTimestamp(v gjson.Result) models.Value {
	if v.IsObject() {
		t := time.Unix(v.Get("seconds").Int(), v.Get("nanos").Int()).UTC()
		return models.TimestampValue(t.Format(time.RFC3339Nano))
	}
	return models.TimestampValue(v.String())
}

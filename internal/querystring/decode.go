package querystring

import (
	"errors"
	"fmt"
	"strconv"
	"unicode/utf16"

	"github.com/prasenjit/firescope/internal/models"
)

// ErrMalformed is returned for query strings that cannot be parsed
var ErrMalformed = errors.New("querystring: malformed query string")

// Decode parses a query string produced by Encode. Unknown operator codes
// decode to EQUAL. "" decodes to an empty Query.
func Decode(s string) (Query, error) {
	q := Query{
		Filters:      []models.Filter{},
		OrderBy:      []models.OrderBy{},
		Aggregations: []models.Aggregation{},
	}
	if s == "" {
		return q, nil
	}

	c := &cursor{buf: utf16.Encode([]rune(s))}
	count, err := c.int()
	if err != nil {
		return q, err
	}

	for i := 0; i < count; i++ {
		tag, err := c.token()
		if err != nil {
			return q, err
		}
		switch tag {
		case tagWhere:
			filters, err := c.where()
			if err != nil {
				return q, err
			}
			q.Filters = append(q.Filters, filters...)
		case tagOrder:
			field, err := c.sized()
			if err != nil {
				return q, err
			}
			dir, err := c.token()
			if err != nil {
				return q, err
			}
			d := models.Descending
			if dir == dirAsc {
				d = models.Ascending
			}
			q.OrderBy = append(q.OrderBy, models.OrderBy{Field: field, Direction: d})
		case tagCount:
			q.Aggregations = append(q.Aggregations, models.Aggregation{Op: models.AggCount})
		case tagSum, tagAvg:
			field, err := c.sized()
			if err != nil {
				return q, err
			}
			op := models.AggSum
			if tag == tagAvg {
				op = models.AggAvg
			}
			q.Aggregations = append(q.Aggregations, models.Aggregation{Op: op, Field: field})
		case tagLimit:
			raw, err := c.number()
			if err != nil {
				return q, err
			}
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				return q, fmt.Errorf("%w: limit %q", ErrMalformed, raw)
			}
			q.Limit = &n
		default:
			return q, fmt.Errorf("%w: unknown clause %q at %d", ErrMalformed, tag, c.pos)
		}
	}

	if !c.done() {
		return q, fmt.Errorf("%w: trailing data at %d", ErrMalformed, c.pos)
	}
	return q, nil
}

// cursor walks the string in UTF-16 code units so length prefixes can be
// honored exactly
type cursor struct {
	buf []uint16
	pos int
}

func (c *cursor) done() bool { return c.pos >= len(c.buf) }

// token reads up to the next separator and consumes it
func (c *cursor) token() (string, error) {
	if c.done() {
		return "", fmt.Errorf("%w: unexpected end", ErrMalformed)
	}
	start := c.pos
	for c.pos < len(c.buf) && c.buf[c.pos] != '|' {
		c.pos++
	}
	tok := string(utf16.Decode(c.buf[start:c.pos]))
	c.skipSeparator()
	return tok, nil
}

func (c *cursor) skipSeparator() {
	if c.pos < len(c.buf) && c.buf[c.pos] == '|' {
		c.pos++
	}
}

func (c *cursor) int() (int, error) {
	tok, err := c.token()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(tok)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: expected count, got %q", ErrMalformed, tok)
	}
	return n, nil
}

// lengthPrefix reads "<n>/" and returns n
func (c *cursor) lengthPrefix() (int, error) {
	start := c.pos
	for c.pos < len(c.buf) && c.buf[c.pos] >= '0' && c.buf[c.pos] <= '9' {
		c.pos++
	}
	if c.pos == start || c.pos >= len(c.buf) || c.buf[c.pos] != '/' {
		return 0, fmt.Errorf("%w: expected length prefix at %d", ErrMalformed, start)
	}
	n, err := strconv.Atoi(string(utf16.Decode(c.buf[start:c.pos])))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.pos++ // '/'
	return n, nil
}

// sized reads a "<n>/<value>" token holding exactly n code units
func (c *cursor) sized() (string, error) {
	n, err := c.lengthPrefix()
	if err != nil {
		return "", err
	}
	if c.pos+n > len(c.buf) {
		return "", fmt.Errorf("%w: value overruns input at %d", ErrMalformed, c.pos)
	}
	v := string(utf16.Decode(c.buf[c.pos : c.pos+n]))
	c.pos += n
	if !c.done() && c.buf[c.pos] != '|' {
		return "", fmt.Errorf("%w: length mismatch at %d", ErrMalformed, c.pos)
	}
	c.skipSeparator()
	return v, nil
}

// number reads a "1/<digits>" token; the prefix does not bound the value
func (c *cursor) number() (string, error) {
	if _, err := c.lengthPrefix(); err != nil {
		return "", err
	}
	tok, err := c.token()
	if err != nil {
		return "", err
	}
	return tok, nil
}

// where reads the property filters of a WH clause
func (c *cursor) where() ([]models.Filter, error) {
	n, err := c.int()
	if err != nil {
		return nil, err
	}
	filters := make([]models.Filter, 0, n)
	for i := 0; i < n; i++ {
		field, err := c.sized()
		if err != nil {
			return nil, err
		}
		code, err := c.token()
		if err != nil {
			return nil, err
		}
		value, err := c.value()
		if err != nil {
			return nil, err
		}
		filters = append(filters, models.Filter{Field: field, Op: models.OperatorFromCode(code), Value: value})
	}
	return filters, nil
}

func (c *cursor) value() (models.Value, error) {
	tag, err := c.token()
	if err != nil {
		return models.Value{}, err
	}
	if tag != tagArray {
		return c.scalar(tag)
	}

	n, err := c.int()
	if err != nil {
		return models.Value{}, err
	}
	items := make([]models.Value, 0, n)
	for i := 0; i < n; i++ {
		itemTag, err := c.token()
		if err != nil {
			return models.Value{}, err
		}
		item, err := c.scalar(itemTag)
		if err != nil {
			return models.Value{}, err
		}
		items = append(items, item)
	}
	return models.ArrayValue(items...), nil
}

func (c *cursor) scalar(tag string) (models.Value, error) {
	switch tag {
	case tagNumber:
		raw, err := c.number()
		if err != nil {
			return models.Value{}, err
		}
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return models.IntegerValue(n), nil
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Value{}, fmt.Errorf("%w: number %q", ErrMalformed, raw)
		}
		return models.DoubleValue(f), nil
	case tagBool:
		s, err := c.sized()
		if err != nil {
			return models.Value{}, err
		}
		return models.BoolValue(s == "true"), nil
	case tagTime:
		s, err := c.sized()
		if err != nil {
			return models.Value{}, err
		}
		return models.TimestampValue(s), nil
	case tagString:
		s, err := c.sized()
		if err != nil {
			return models.Value{}, err
		}
		return models.StringValue(s), nil
	default:
		return models.Value{}, fmt.Errorf("%w: unknown value tag %q", ErrMalformed, tag)
	}
}

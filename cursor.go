package searchpager

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

var _encoder = base64.RawURLEncoding

// Cursor is a position in a sorted result set: the sort tuple of a boundary
// document and the traversal direction. A nil *Cursor means "first page".
//
// Values are normalized on construction: integers become int64, floats become
// float64, strings, bools and nil are kept. Anything else is rejected.
type Cursor struct {
	values    []any
	traversal Traversal
}

type cursorPayload struct {
	Values   []any `json:"v"`
	Previous bool  `json:"p,omitempty"`
}

// NewCursor builds a cursor over the given sort tuple.
func NewCursor(values []any, t Traversal) (*Cursor, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("%w: empty sort tuple", ErrInvalidCursor)
	}

	normalized := make([]any, len(values))
	for i, v := range values {
		nv, err := normalizeSortValue(v)
		if err != nil {
			return nil, fmt.Errorf("%w: value #%d: %w", ErrInvalidCursor, i, err)
		}
		normalized[i] = nv
	}

	return &Cursor{values: normalized, traversal: t}, nil
}

// EncodeCursor returns the opaque token for the given sort tuple.
func EncodeCursor(values []any, t Traversal) (string, error) {
	c, err := NewCursor(values, t)
	if err != nil {
		return "", err
	}

	return c.String(), nil
}

// DecodeCursor parses a token produced by EncodeCursor or Cursor.String.
// An empty token decodes to a nil cursor and no error.
func DecodeCursor(token string) (*Cursor, error) {
	if len(token) == 0 {
		return nil, nil
	}

	jsonData, err := _encoder.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode base64 encoded cursor: %w", ErrInvalidCursor, err)
	}

	dec := json.NewDecoder(bytes.NewReader(jsonData))
	dec.UseNumber()
	dec.DisallowUnknownFields()

	var payload cursorPayload
	if err = dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal json encoded cursor: %w", ErrInvalidCursor, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after cursor payload", ErrInvalidCursor)
	}

	return NewCursor(payload.Values, lookupTraversal(payload.Previous))
}

func lookupTraversal(previous bool) Traversal {
	if previous {
		return Backward
	}

	return Forward
}

// String implements fmt.Stringer and returns the opaque URL-safe token.
func (c *Cursor) String() string {
	if c.IsEmpty() {
		return ""
	}

	encoded := make([]any, len(c.values))
	for i, v := range c.values {
		encoded[i] = encodableSortValue(v)
	}

	jTok, err := json.Marshal(cursorPayload{Values: encoded, Previous: c.traversal == Backward})
	if err != nil {
		panic(fmt.Errorf("cannot marshal cursor value: %w", err))
	}

	return _encoder.EncodeToString(jTok)
}

// MarshalText lets a cursor be embedded in JSON responses as its token.
func (c *Cursor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// IsEmpty reports whether the cursor points nowhere (first page).
func (c *Cursor) IsEmpty() bool {
	return c == nil || len(c.values) == 0
}

// Values returns a copy of the sort tuple.
func (c *Cursor) Values() []any {
	if c == nil {
		return nil
	}

	return slices.Clone(c.values)
}

func (c *Cursor) Len() int {
	if c == nil {
		return 0
	}

	return len(c.values)
}

func (c *Cursor) Traversal() Traversal {
	if c == nil {
		return Forward
	}

	return c.traversal
}

// PointsToPrevious is true iff the cursor walks backward.
func (c *Cursor) PointsToPrevious() bool {
	return c != nil && c.traversal == Backward
}

// PointsToNext is true iff the cursor walks forward.
func (c *Cursor) PointsToNext() bool {
	return c != nil && c.traversal == Forward
}

// Flip returns a new cursor over the same tuple walking the other way.
func (c *Cursor) Flip() *Cursor {
	if c == nil {
		return nil
	}

	return &Cursor{
		values:    slices.Clone(c.values),
		traversal: lookupTraversal(c.traversal == Forward),
	}
}

// Equal compares tuples and traversal.
func (c *Cursor) Equal(other *Cursor) bool {
	if c.IsEmpty() || other.IsEmpty() {
		return c.IsEmpty() == other.IsEmpty()
	}

	return c.traversal == other.traversal && slices.Equal(c.values, other.values)
}

func (c *Cursor) validate(sort SortSpec) error {
	if c.IsEmpty() {
		return nil
	}

	if len(c.values) != len(sort) {
		return fmt.Errorf(
			"%w: cursor holds %d values, sort has %d fields", ErrInvalidCursor, len(c.values), len(sort),
		)
	}

	return nil
}

// normalizeSortValue maps a scalar sort value onto the canonical set of types
// a cursor can hold.
func normalizeSortValue(v any) (any, error) {
	switch vt := v.(type) {
	case nil, string, bool, int64:
		return v, nil
	case json.Number:
		if i, err := vt.Int64(); err == nil {
			return i, nil
		}
		f, err := vt.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number '%s'", vt)
		}
		return normalizeSortValue(f)
	case int:
		return int64(vt), nil
	case int8:
		return int64(vt), nil
	case int16:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case uint8:
		return int64(vt), nil
	case uint16:
		return int64(vt), nil
	case uint32:
		return int64(vt), nil
	case uint:
		if uint64(vt) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", vt)
		}
		return int64(vt), nil
	case uint64:
		if vt > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", vt)
		}
		return int64(vt), nil
	case float32:
		return normalizeSortValue(float64(vt))
	case float64:
		if math.IsNaN(vt) || math.IsInf(vt, 0) {
			return nil, fmt.Errorf("non-finite float %v", vt)
		}
		return vt, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// encodableSortValue keeps floats distinguishable from integers in JSON, so
// 2.0 does not come back as int64(2).
func encodableSortValue(v any) any {
	f, ok := v.(float64)
	if !ok {
		return v
	}

	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}

	return json.Number(s)
}

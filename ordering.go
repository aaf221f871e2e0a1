package searchpager

import (
	"fmt"
	"math"
	"strings"

	"github.com/samber/lo"
)

// SortDirection defines the sort order of a single field as the search engine
// understands it.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

func (d SortDirection) Valid() bool {
	return d == SortAsc || d == SortDesc
}

// Flip returns the opposite direction.
func (d SortDirection) Flip() SortDirection {
	switch d {
	case SortAsc:
		return SortDesc
	case SortDesc:
		return SortAsc
	default:
		panic(fmt.Errorf("cannot flip sort direction '%s'", d))
	}
}

// Traversal is the direction a cursor walks the result set in.
type Traversal int

const (
	Forward Traversal = iota
	Backward
)

func (t Traversal) String() string {
	return lo.Ternary(t == Backward, "backward", "forward")
}

type (
	// SortSpec is an ordered list of sort fields. Field order defines tie-break
	// priority; for cursor pagination the last field must be unique.
	SortSpec []SortField

	SortField struct {
		Field string
		Order SortDirection
	}

	FieldAlias = string

	// FieldMapping maps external sort aliases to index field names, e.g.
	// "name" -> "name.keyword".
	FieldMapping = map[FieldAlias]string
)

var _availableFieldNameSymbols = append([]rune("_.-@"), lo.AlphanumericCharset...)

func (f SortField) validate() error {
	if f.Field == "" {
		return fmt.Errorf("empty sort field name")
	}

	if !f.Order.Valid() {
		return fmt.Errorf("invalid sort direction '%s' for field '%s'", f.Order, f.Field)
	}

	if !lo.Every(_availableFieldNameSymbols, []rune(f.Field)) {
		return fmt.Errorf("sort field name contains forbidden symbols '%s'", f.Field)
	}

	return nil
}

// Resolve returns the sort to send to the engine for the given traversal.
// Forward traversal keeps the spec as is; backward traversal flips every
// direction and keeps the field order.
func (s SortSpec) Resolve(t Traversal) SortSpec {
	if t == Backward {
		return s.Flip()
	}

	return s.Clone()
}

// Flip returns a copy with every direction reversed.
func (s SortSpec) Flip() SortSpec {
	if s == nil {
		return nil
	}

	return lo.Map(s, func(f SortField, _ int) SortField {
		return SortField{Field: f.Field, Order: f.Order.Flip()}
	})
}

func (s SortSpec) Clone() SortSpec {
	if s == nil {
		return nil
	}

	ret := make(SortSpec, len(s))
	copy(ret, s)

	return ret
}

// Fields returns the field names in priority order.
func (s SortSpec) Fields() []string {
	return lo.Map(s, func(f SortField, _ int) string { return f.Field })
}

// ToBody renders the spec in the engine's sort clause format:
//
//	[{"created_at": {"order": "desc"}}, {"id": {"order": "asc"}}]
func (s SortSpec) ToBody() []map[string]any {
	return lo.Map(s, func(f SortField, _ int) map[string]any {
		return map[string]any{f.Field: map[string]any{"order": string(f.Order)}}
	})
}

func (s SortSpec) String() string {
	return strings.Join(lo.Map(s, func(f SortField, _ int) string {
		return f.Field + " " + string(f.Order)
	}), ", ")
}

func (s SortSpec) validate() error {
	if len(s) == 0 {
		return fmt.Errorf("%w: empty sort spec", ErrConfiguration)
	}

	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if err := f.validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrConfiguration, err)
		}

		if _, ok := seen[f.Field]; ok {
			return fmt.Errorf("%w: duplicate sort field '%s'", ErrConfiguration, f.Field)
		}
		seen[f.Field] = struct{}{}
	}

	return nil
}

// ParseSort builds a SortSpec from strings in the format "field asc|desc".
// A bare "field" sorts ascending. Aliases are resolved via FieldMapping; an
// unknown alias is reported together with the closest known one.
func ParseSort(stringSorts []string, fieldMapping FieldMapping) (SortSpec, error) {
	ret := make(SortSpec, 0, len(stringSorts))
	aliases := lo.Keys(fieldMapping)
	seen := make(map[string]struct{}, len(stringSorts))

	for _, stringSort := range stringSorts {
		parts := strings.Fields(stringSort)
		if len(parts) == 0 || len(parts) > 2 {
			return nil, fmt.Errorf("invalid sort string format '%s'", stringSort)
		}

		alias := parts[0]
		order := SortAsc
		if len(parts) == 2 {
			order = SortDirection(strings.ToLower(parts[1]))
		}

		field := fieldMapping[alias]
		if field == "" {
			return nil, fmt.Errorf("invalid sort field '%s'. closest: '%s'", alias, closestAlias(alias, aliases))
		}

		sf := SortField{Field: field, Order: order}
		if err := sf.validate(); err != nil {
			return nil, err
		}
		if _, ok := seen[field]; ok {
			return nil, fmt.Errorf("duplicate sort field '%s'", alias)
		}
		seen[field] = struct{}{}

		ret = append(ret, sf)
	}

	return ret, nil
}

// ParseSortSpec parses "field asc|desc" strings without alias resolution.
func ParseSortSpec(stringSorts ...string) (SortSpec, error) {
	mapping := make(FieldMapping, len(stringSorts))
	for _, s := range stringSorts {
		if parts := strings.Fields(s); len(parts) > 0 {
			mapping[parts[0]] = parts[0]
		}
	}

	return ParseSort(stringSorts, mapping)
}

func closestAlias(input FieldAlias, dataSet []FieldAlias) FieldAlias {
	minDist := math.MaxInt
	closest := ""

	for _, dataSetAlias := range dataSet {
		dist := levenshtein([]rune(dataSetAlias), []rune(input))
		if dist < minDist || (dist == minDist && dataSetAlias < closest) {
			minDist = dist
			closest = dataSetAlias
		}
	}

	return closest
}

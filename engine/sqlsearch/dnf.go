package sqlsearch

import (
	"fmt"
	"time"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"

	"github.com/Alp4ka/searchpager"
)

type (
	conjunct struct {
		Column   string
		Value    any
		Operator Operator
	}

	disjunct []conjunct

	// keysetDNF is the disjunctive normal form of a search_after position.
	// Disjuncts are joined by OR, conjuncts inside a disjunct by AND:
	//
	//	(C1 O1 V1) OR (C1 = V1 AND C2 O2 V2) OR ... (C1 = V1 ... AND Cn On Vn)
	//
	// where Oi is ">" for ascending and "<" for descending columns.
	keysetDNF []disjunct
)

// newKeysetDNF expands a sort spec and the sort tuple of the last seen row
// into the condition selecting every row after it.
func newKeysetDNF(sort searchpager.SortSpec, after []any, column func(string) (string, error)) (keysetDNF, error) {
	if len(after) == 0 {
		return nil, nil
	}
	if len(after) != len(sort) {
		return nil, fmt.Errorf(
			"%w: search_after holds %d values, sort has %d fields", ErrUnsupportedQuery, len(after), len(sort),
		)
	}

	conjuncts := make([]conjunct, 0, len(sort))
	for i, f := range sort {
		col, err := column(f.Field)
		if err != nil {
			return nil, err
		}
		if after[i] == nil {
			return nil, fmt.Errorf("%w: null search_after value for '%s'", ErrUnsupportedQuery, f.Field)
		}

		conjuncts = append(conjuncts, conjunct{Column: col, Value: after[i], Operator: operatorFor(f.Order)})
	}

	ret := make(keysetDNF, 0, len(conjuncts))
	for i := range conjuncts {
		d := make(disjunct, 0, i+1)
		d = append(d, lo.Map(conjuncts[:i], func(c conjunct, _ int) conjunct {
			return conjunct{Column: c.Column, Value: c.Value, Operator: operatorEq}
		})...)
		d = append(d, conjuncts[i])

		ret = append(ret, d)
	}

	return ret, nil
}

// expression renders "Column Operator ?".
func (c conjunct) expression() clause.Expression {
	return clause.Expr{
		SQL:  fmt.Sprintf("%s %s ?", c.Column, c.Operator),
		Vars: []any{parseAnyValue(c.Value)},
	}
}

// parseAnyValue turns RFC 3339 strings back into time.Time, since timestamps
// travel through cursors as text.
func parseAnyValue(v any) any {
	parse := func(b []byte) any {
		var ts time.Time
		if err := ts.UnmarshalText(b); err == nil {
			return ts
		}

		return v
	}

	switch vt := v.(type) {
	case string:
		return parse([]byte(vt))
	case []byte:
		return parse(vt)
	default:
		return v
	}
}

func (d disjunct) expression() clause.Expression {
	exprs := lo.Map(d, func(c conjunct, _ int) clause.Expression { return c.expression() })

	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return clause.And(exprs...)
	}
}

func (d keysetDNF) expression() clause.Expression {
	exprs := make([]clause.Expression, 0, len(d))
	for _, dj := range d {
		if expr := dj.expression(); expr != nil {
			exprs = append(exprs, expr)
		}
	}

	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return clause.Or(exprs...)
	}
}

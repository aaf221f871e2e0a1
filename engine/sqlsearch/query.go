package sqlsearch

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
)

var _identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// translator turns the supported subset of the query DSL into GORM
// conditions:
//
//	match_all, match_none, term, terms, range, match, multi_match, bool
//
// multi_match over "*" searches the configured text columns.
type translator struct {
	column      func(string) (string, error)
	textColumns []string
}

func (t translator) translate(query map[string]any) (clause.Expression, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if len(query) != 1 {
		return nil, fmt.Errorf("%w: query must hold exactly one clause, got %d", ErrUnsupportedQuery, len(query))
	}

	for kind, body := range query {
		switch kind {
		case "match_all":
			return nil, nil
		case "match_none":
			return clause.Expr{SQL: "1 = 0"}, nil
		case "term":
			return t.term(body)
		case "terms":
			return t.terms(body)
		case "range":
			return t.rangeQuery(body)
		case "match":
			return t.match(body)
		case "multi_match":
			return t.multiMatch(body)
		case "bool":
			return t.boolQuery(body)
		default:
			return nil, fmt.Errorf("%w: query type '%s'", ErrUnsupportedQuery, kind)
		}
	}

	return nil, nil
}

// field extracts the single {"field": value} pair most leaf queries use.
func (t translator) field(kind string, body any) (string, any, error) {
	m, ok := body.(map[string]any)
	if !ok || len(m) != 1 {
		return "", nil, fmt.Errorf("%w: %s expects a single field", ErrUnsupportedQuery, kind)
	}

	for name, value := range m {
		col, err := t.column(name)
		if err != nil {
			return "", nil, err
		}

		return col, value, nil
	}

	return "", nil, nil
}

func (t translator) term(body any) (clause.Expression, error) {
	col, value, err := t.field("term", body)
	if err != nil {
		return nil, err
	}

	if m, ok := value.(map[string]any); ok {
		value = m["value"]
	}

	return clause.Expr{SQL: col + " = ?", Vars: []any{value}}, nil
}

func (t translator) terms(body any) (clause.Expression, error) {
	col, value, err := t.field("terms", body)
	if err != nil {
		return nil, err
	}

	var values []any
	switch vt := value.(type) {
	case []any:
		values = vt
	case []string:
		values = lo.ToAnySlice(vt)
	case []int64:
		values = lo.ToAnySlice(vt)
	case []int:
		values = lo.ToAnySlice(vt)
	default:
		return nil, fmt.Errorf("%w: terms expects a list, got %T", ErrUnsupportedQuery, value)
	}

	if len(values) == 0 {
		return clause.Expr{SQL: "1 = 0"}, nil
	}

	return clause.Expr{SQL: col + " IN ?", Vars: []any{values}}, nil
}

var _rangeOperators = map[string]string{
	"gt":  ">",
	"gte": ">=",
	"lt":  "<",
	"lte": "<=",
}

func (t translator) rangeQuery(body any) (clause.Expression, error) {
	col, value, err := t.field("range", body)
	if err != nil {
		return nil, err
	}

	bounds, ok := value.(map[string]any)
	if !ok || len(bounds) == 0 {
		return nil, fmt.Errorf("%w: range on '%s' has no bounds", ErrUnsupportedQuery, col)
	}

	keys := lo.Keys(bounds)
	sort.Strings(keys)

	exprs := make([]clause.Expression, 0, len(keys))
	for _, k := range keys {
		op, ok := _rangeOperators[k]
		if !ok {
			return nil, fmt.Errorf("%w: range bound '%s'", ErrUnsupportedQuery, k)
		}
		exprs = append(exprs, clause.Expr{SQL: fmt.Sprintf("%s %s ?", col, op), Vars: []any{parseAnyValue(bounds[k])}})
	}

	return andExpressions(exprs), nil
}

func (t translator) match(body any) (clause.Expression, error) {
	col, value, err := t.field("match", body)
	if err != nil {
		return nil, err
	}

	if m, ok := value.(map[string]any); ok {
		value = m["query"]
	}

	text, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("%w: match on '%s' expects text", ErrUnsupportedQuery, col)
	}

	return like(col, text), nil
}

func (t translator) multiMatch(body any) (clause.Expression, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: multi_match expects an object", ErrUnsupportedQuery)
	}

	text, ok := m["query"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: multi_match expects a text query", ErrUnsupportedQuery)
	}

	columns, err := t.matchColumns(m["fields"])
	if err != nil {
		return nil, err
	}

	return orExpressions(lo.Map(columns, func(col string, _ int) clause.Expression { return like(col, text) })), nil
}

func (t translator) matchColumns(raw any) ([]string, error) {
	var fields []string
	switch vt := raw.(type) {
	case nil:
	case []string:
		fields = vt
	case []any:
		for _, f := range vt {
			s, ok := f.(string)
			if !ok {
				return nil, fmt.Errorf("%w: multi_match field %v", ErrUnsupportedQuery, f)
			}
			fields = append(fields, s)
		}
	default:
		return nil, fmt.Errorf("%w: multi_match fields %T", ErrUnsupportedQuery, raw)
	}

	if len(fields) == 0 || lo.Contains(fields, "*") {
		if len(t.textColumns) == 0 {
			return nil, fmt.Errorf("%w: match over all fields without text columns", ErrUnsupportedQuery)
		}
		return t.textColumns, nil
	}

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := t.column(strings.SplitN(f, "^", 2)[0])
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	return columns, nil
}

func (t translator) boolQuery(body any) (clause.Expression, error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: bool expects an object", ErrUnsupportedQuery)
	}

	var exprs []clause.Expression
	for _, occur := range []string{"must", "filter", "should", "must_not"} {
		raw, ok := m[occur]
		if !ok {
			continue
		}

		children, err := t.children(occur, raw)
		if err != nil {
			return nil, err
		}
		if len(children) == 0 {
			continue
		}

		switch occur {
		case "must", "filter":
			exprs = append(exprs, children...)
		case "should":
			exprs = append(exprs, orExpressions(children))
		case "must_not":
			exprs = append(exprs, clause.Not(children...))
		}
	}

	return andExpressions(exprs), nil
}

// children translates a bool occurrence, which may be a single query or a
// list of them. Clauses matching everything are dropped.
func (t translator) children(occur string, raw any) ([]clause.Expression, error) {
	var queries []map[string]any
	switch vt := raw.(type) {
	case map[string]any:
		queries = []map[string]any{vt}
	case []map[string]any:
		queries = vt
	case []any:
		for _, item := range vt {
			q, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: bool.%s holds %T", ErrUnsupportedQuery, occur, item)
			}
			queries = append(queries, q)
		}
	default:
		return nil, fmt.Errorf("%w: bool.%s holds %T", ErrUnsupportedQuery, occur, raw)
	}

	ret := make([]clause.Expression, 0, len(queries))
	for _, q := range queries {
		expr, err := t.translate(q)
		if err != nil {
			return nil, err
		}
		if expr != nil {
			ret = append(ret, expr)
		}
	}

	return ret, nil
}

func like(col, text string) clause.Expression {
	return clause.Expr{SQL: col + " LIKE ?", Vars: []any{"%" + escapeLike(text) + "%"}}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(s)
}

func andExpressions(exprs []clause.Expression) clause.Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return clause.And(exprs...)
	}
}

func orExpressions(exprs []clause.Expression) clause.Expression {
	switch len(exprs) {
	case 0:
		return nil
	case 1:
		return exprs[0]
	default:
		return clause.Or(exprs...)
	}
}

// Package sqlsearch serves search requests from a relational table through
// GORM. size, from, sort and search_after are emulated with LIMIT, OFFSET,
// ORDER BY and a keyset condition, so keyset pages over SQL behave like
// pages over a search engine.
package sqlsearch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Alp4ka/searchpager"
)

// ErrUnsupportedQuery is returned for requests that cannot be expressed in SQL.
var ErrUnsupportedQuery = errors.New("sqlsearch: unsupported query")

const (
	DefaultKeyColumn = "id"

	idField    = "_id"
	scoreField = "_score"
)

// Option configures a Searcher.
type Option func(*Searcher)

// WithKeyColumn sets the unique column hits take their _id from.
func WithKeyColumn(column string) Option {
	return func(s *Searcher) { s.keyColumn = column }
}

// WithTextColumns sets the columns a match over all fields searches.
func WithTextColumns(columns ...string) Option {
	return func(s *Searcher) { s.textColumns = columns }
}

// WithFieldMapping maps request field names to column names.
func WithFieldMapping(mapping map[string]string) Option {
	return func(s *Searcher) { s.fields = maps.Clone(mapping) }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Searcher) { s.logger = logger }
}

// Searcher implements searchpager.Searcher over a GORM connection. The
// request index is the table name.
type Searcher struct {
	db          *gorm.DB
	keyColumn   string
	textColumns []string
	fields      map[string]string
	logger      *zap.Logger
}

func New(db *gorm.DB, opts ...Option) (*Searcher, error) {
	if db == nil {
		return nil, errors.New("sqlsearch: nil database")
	}

	s := &Searcher{db: db, keyColumn: DefaultKeyColumn}
	for _, o := range opts {
		o(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if !_identifier.MatchString(s.keyColumn) {
		return nil, fmt.Errorf("sqlsearch: invalid key column '%s'", s.keyColumn)
	}
	for _, col := range s.textColumns {
		if !_identifier.MatchString(col) {
			return nil, fmt.Errorf("sqlsearch: invalid text column '%s'", col)
		}
	}
	for field, col := range s.fields {
		if !_identifier.MatchString(col) {
			return nil, fmt.Errorf("sqlsearch: invalid column '%s' for field '%s'", col, field)
		}
	}

	return s, nil
}

// Search implements searchpager.Searcher.
func (s *Searcher) Search(ctx context.Context, req *searchpager.Request) (*searchpager.SearchResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrUnsupportedQuery)
	}
	if !_identifier.MatchString(req.Index) {
		return nil, fmt.Errorf("%w: invalid table '%s'", ErrUnsupportedQuery, req.Index)
	}
	if len(req.Aggregations) > 0 {
		return nil, fmt.Errorf("%w: aggregations", ErrUnsupportedQuery)
	}

	start := time.Now()

	where, err := translator{column: s.column, textColumns: s.textColumns}.translate(req.Query)
	if err != nil {
		return nil, err
	}

	keyset, err := newKeysetDNF(req.Sort, req.SearchAfter, s.column)
	if err != nil {
		return nil, err
	}

	filtered := func() *gorm.DB {
		tx := s.db.WithContext(ctx).Table(req.Index)
		if where != nil {
			tx = tx.Clauses(where)
		}
		return tx
	}

	var total int64
	if err = filtered().Count(&total).Error; err != nil {
		return nil, fmt.Errorf("sqlsearch: count '%s': %w", req.Index, err)
	}

	tx := filtered().Select("*")
	if expr := keyset.expression(); expr != nil {
		tx = tx.Clauses(expr)
	}
	if len(req.Sort) > 0 {
		orderBy, err := s.orderBy(req.Sort)
		if err != nil {
			return nil, err
		}
		tx = tx.Order(orderBy)
	}
	if req.Size > 0 {
		tx = tx.Limit(req.Size)
	}
	if req.From != nil && *req.From > 0 {
		tx = tx.Offset(*req.From)
	}

	var rows []map[string]any
	if err = tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlsearch: search '%s': %w", req.Index, err)
	}

	hits, err := s.hits(req, rows)
	if err != nil {
		return nil, err
	}

	took := time.Since(start)
	s.logger.Debug("sql search",
		zap.String("table", req.Index),
		zap.Int64("total", total),
		zap.Int("rows", len(rows)),
		zap.Bool("keyset", len(keyset) > 0),
		zap.Duration("took", took),
	)

	return &searchpager.SearchResult{
		Meta: searchpager.ResultMeta{
			Took:   took.Milliseconds(),
			Shards: searchpager.ShardStats{Total: 1, Successful: 1},
			Total:  searchpager.TotalHits{Value: total, Relation: "eq"},
		},
		Hits: hits,
	}, nil
}

func (s *Searcher) hits(req *searchpager.Request, rows []map[string]any) ([]searchpager.Hit, error) {
	ret := make([]searchpager.Hit, 0, len(rows))
	for _, row := range rows {
		source := make(map[string]any, len(row))
		for k, v := range row {
			source[k] = rowValue(v)
		}

		sortValues := make([]any, 0, len(req.Sort))
		for _, f := range req.Sort {
			col, err := s.column(f.Field)
			if err != nil {
				return nil, err
			}
			sortValues = append(sortValues, source[lastSegment(col)])
		}

		if len(req.SourceFields) > 0 {
			source = lo.PickByKeys(source, req.SourceFields)
		}

		ret = append(ret, searchpager.Hit{
			Index:  req.Index,
			ID:     fmt.Sprint(rowValue(row[lastSegment(s.keyColumn)])),
			Source: source,
			Sort:   sortValues,
		})
	}

	return ret, nil
}

// orderBy renders "c1 DESC, c2 ASC".
func (s *Searcher) orderBy(sort searchpager.SortSpec) (string, error) {
	parts := make([]string, 0, len(sort))
	for _, f := range sort {
		col, err := s.column(f.Field)
		if err != nil {
			return "", err
		}
		parts = append(parts, col+" "+strings.ToUpper(string(f.Order)))
	}

	return strings.Join(parts, ", "), nil
}

// column resolves a request field to a column. _id is the key column.
func (s *Searcher) column(field string) (string, error) {
	switch field {
	case idField:
		return s.keyColumn, nil
	case scoreField:
		return "", fmt.Errorf("%w: relevance sort", ErrUnsupportedQuery)
	}

	col := field
	if mapped, ok := s.fields[field]; ok {
		col = mapped
	}
	if !_identifier.MatchString(col) {
		return "", fmt.Errorf("%w: invalid column '%s'", ErrUnsupportedQuery, field)
	}

	return col, nil
}

// rowValue makes driver values cursor friendly: bytes become text and
// timestamps RFC 3339 text, which the keyset condition parses back.
func rowValue(v any) any {
	switch vt := v.(type) {
	case []byte:
		return string(vt)
	case time.Time:
		return vt.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if vt == nil {
			return nil
		}
		return vt.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func lastSegment(col string) string {
	if i := strings.LastIndexByte(col, '.'); i >= 0 {
		return col[i+1:]
	}

	return col
}

var _ searchpager.Searcher = (*Searcher)(nil)

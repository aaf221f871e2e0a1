package searchpager

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Searcher executes a single search request. Timeouts, retries and
// cancellation are its business; errors are passed through untouched.
type Searcher interface {
	Search(ctx context.Context, req *Request) (*SearchResult, error)
}

// SearcherFunc adapts a function to Searcher.
type SearcherFunc func(ctx context.Context, req *Request) (*SearchResult, error)

func (f SearcherFunc) Search(ctx context.Context, req *Request) (*SearchResult, error) {
	return f(ctx, req)
}

// Collector receives search metrics.
type Collector interface {
	SearchQuery(index string, mode Mode, took time.Duration, err error)
	Hydrated(index string, entities int, hasMore bool)
}

// NoOpCollector discards metrics.
type NoOpCollector struct{}

func (NoOpCollector) SearchQuery(string, Mode, time.Duration, error) {}
func (NoOpCollector) Hydrated(string, int, bool)                    {}

// Option configures an Index.
type Option func(*Index)

// WithDefaultSort is used whenever a query carries no explicit sort.
func WithDefaultSort(sort SortSpec) Option {
	return func(i *Index) { i.defaultSort = sort.Clone() }
}

// WithPerPage sets the default and maximum page sizes.
func WithPerPage(perPage, maxPerPage int) Option {
	return func(i *Index) {
		i.perPage = perPage
		i.maxPerPage = maxPerPage
	}
}

// WithCursorParam sets the query parameter cursor tokens travel in.
func WithCursorParam(name string) Option {
	return func(i *Index) { i.cursorParam = name }
}

// WithPageParam sets the query parameter page numbers travel in.
func WithPageParam(name string) Option {
	return func(i *Index) { i.pageParam = name }
}

// WithHydrator replaces the hydrator, e.g. to declare relations.
func WithHydrator(h *Hydrator) Option {
	return func(i *Index) { i.hydrator = h }
}

// WithRelations declares the relation graph on the index hydrator.
func WithRelations(graph RelationGraph) Option {
	return func(i *Index) { i.relations = graph }
}

func WithLogger(logger *zap.Logger) Option {
	return func(i *Index) { i.logger = logger }
}

func WithCollector(collector Collector) Option {
	return func(i *Index) { i.collector = collector }
}

// Index searches one index and hydrates its hits as entities of one type. It
// holds configuration only and is safe for concurrent use.
type Index struct {
	name        string
	client      Searcher
	hydrator    *Hydrator
	relations   RelationGraph
	defaultSort SortSpec
	perPage     int
	maxPerPage  int
	cursorParam string
	pageParam   string
	logger      *zap.Logger
	collector   Collector
}

// NewIndex creates an Index named name whose hits hydrate as entityType.
func NewIndex(name, entityType string, client Searcher, opts ...Option) (*Index, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: nil searcher", ErrConfiguration)
	}

	i := &Index{
		name:   name,
		client: client,
	}
	for _, o := range opts {
		o(i)
	}

	if i.hydrator == nil {
		i.hydrator = NewHydrator(entityType)
	}
	if i.relations != nil {
		i.hydrator = i.hydrator.WithRelations(i.relations)
	}
	if err := i.hydrator.GetRelations().Validate(); err != nil {
		return nil, err
	}
	if len(i.defaultSort) > 0 {
		if err := i.defaultSort.validate(); err != nil {
			return nil, fmt.Errorf("default sort: %w", err)
		}
	}

	if i.maxPerPage <= 0 {
		i.maxPerPage = MaxPerPage
	}
	i.perPage = NormalizePerPageMax(i.perPage, i.maxPerPage)
	if i.cursorParam == "" {
		i.cursorParam = DefaultCursorParam
	}
	if i.pageParam == "" {
		i.pageParam = DefaultPageParam
	}
	if i.logger == nil {
		i.logger = zap.NewNop()
	}
	if i.collector == nil {
		i.collector = NoOpCollector{}
	}

	return i, nil
}

func (i *Index) Name() string { return i.name }

func (i *Index) Hydrator() *Hydrator { return i.hydrator }

func (i *Index) DefaultSort() SortSpec { return i.defaultSort.Clone() }

func (i *Index) PerPage() int { return i.perPage }

func (i *Index) MaxPerPage() int { return i.maxPerPage }

func (i *Index) CursorParam() string { return i.cursorParam }

func (i *Index) PageParam() string { return i.pageParam }

// SearchByQuery assembles the request, runs it and hydrates the result.
// Zero Limit means the index default; an empty Sort means the default sort.
func (i *Index) SearchByQuery(ctx context.Context, rc RequestContext, params QueryParams) (*ResultCollection, error) {
	if params.Limit <= 0 {
		params.Limit = i.perPage
	}
	params.Limit = NormalizePerPageMax(params.Limit, i.maxPerPage)
	if len(params.Sort) == 0 {
		params.Sort = i.defaultSort.Clone()
	}
	if params.CursorParam == "" {
		params.CursorParam = i.cursorParam
	}
	if params.Mode == "" {
		params.Mode = ModeOffset
	}

	req, cursor, err := Assemble(params, rc)
	if err != nil {
		i.logger.Warn("cannot assemble search request",
			zap.String("index", i.name),
			zap.String("mode", string(params.Mode)),
			zap.Error(err),
		)
		return nil, err
	}
	req.Index = i.name

	result, err := i.execute(ctx, req, params.Mode)
	if err != nil {
		return nil, err
	}

	return i.Hydrate(result, HydrateOptions{
		Request:     rc,
		PerPage:     params.Limit,
		Mode:        params.Mode,
		Cursor:      cursor,
		CursorParam: params.CursorParam,
		Sort:        params.Sort,
	})
}

// Search runs a free-text query across all fields. An empty term matches
// every document.
func (i *Index) Search(
	ctx context.Context,
	rc RequestContext,
	term string,
	mode Mode,
	cursorParam string,
) (*ResultCollection, error) {
	return i.SearchByQuery(ctx, rc, QueryParams{
		Query:       TermQuery(term),
		Mode:        mode,
		CursorParam: cursorParam,
	})
}

// ComplexSearch sends a caller-built request as is and hydrates the hits
// without pagination bookkeeping.
func (i *Index) ComplexSearch(ctx context.Context, req *Request) (*ResultCollection, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrConfiguration)
	}
	if req.Index == "" {
		req.Index = i.name
	}

	result, err := i.execute(ctx, req, ModeOffset)
	if err != nil {
		return nil, err
	}

	return i.Hydrate(result, HydrateOptions{Mode: ModeOffset, PerPage: req.Size})
}

// HydrateOptions describes the request a raw result belongs to.
type HydrateOptions struct {
	Request     RequestContext
	PerPage     int
	Mode        Mode
	Cursor      *Cursor
	CursorParam string
	// Sort is the sort the caller asked for, not the flipped one sent to the
	// engine.
	Sort SortSpec
}

// Hydrate turns a raw result into a collection. On error no partial
// collection is returned.
func (i *Index) Hydrate(result *SearchResult, opts HydrateOptions) (*ResultCollection, error) {
	if result == nil {
		result = &SearchResult{}
	}

	limit := opts.PerPage
	if limit <= 0 {
		limit = len(result.Hits)
	}
	if opts.Mode == "" {
		opts.Mode = ModeOffset
	}
	if opts.CursorParam == "" {
		opts.CursorParam = i.cursorParam
	}

	entities, hasMore, err := i.hydrator.Hydrate(result.Hits, limit, opts.Mode, opts.Cursor.Traversal())
	if err != nil {
		i.logger.Warn("cannot hydrate search result", zap.String("index", i.name), zap.Error(err))
		return nil, err
	}
	i.collector.Hydrated(i.name, len(entities), hasMore)

	i.logger.Debug("hydrated search result",
		zap.String("index", i.name),
		zap.String("mode", string(opts.Mode)),
		zap.Int("entities", len(entities)),
		zap.Bool("has_more", hasMore),
		zap.Stringer("traversal", opts.Cursor.Traversal()),
	)

	meta := result.Meta

	return NewResultCollection(entities, &meta).
		WithRequest(opts.Request).
		WithPerPage(limit).
		WithCursor(opts.Cursor, opts.CursorParam).
		WithPageParam(i.pageParam).
		WithSort(opts.Sort).
		WithHasMore(hasMore), nil
}

func (i *Index) execute(ctx context.Context, req *Request, mode Mode) (*SearchResult, error) {
	i.logger.Debug("executing search",
		zap.String("index", req.Index),
		zap.String("mode", string(mode)),
		zap.Int("size", req.Size),
		zap.Stringer("sort", req.Sort),
		zap.Bool("search_after", len(req.SearchAfter) > 0),
	)

	start := time.Now()
	result, err := i.client.Search(ctx, req)
	took := time.Since(start)
	i.collector.SearchQuery(i.name, mode, took, err)

	if err != nil {
		i.logger.Warn("search failed", zap.String("index", req.Index), zap.Duration("took", took), zap.Error(err))
		return nil, err
	}

	return result, nil
}

// TermQuery matches term against every field; an empty term matches all.
func TermQuery(term string) map[string]any {
	if term == "" {
		return map[string]any{"match_all": map[string]any{}}
	}

	return map[string]any{
		"multi_match": map[string]any{
			"query":  term,
			"fields": []string{"*"},
		},
	}
}

package searchpager

import (
	"net/url"
	"slices"
)

// ResultCollection is a hydrated result set plus everything needed to render
// it as an offset or cursor page.
type ResultCollection struct {
	items       []*Entity
	meta        *ResultMeta
	path        string
	query       url.Values
	perPage     int
	cursor      *Cursor
	cursorParam string
	pageParam   string
	sort        SortSpec
	hasMore     bool
}

// NewResultCollection wraps entities. meta may be nil; accessors then return
// zero values.
func NewResultCollection(items []*Entity, meta *ResultMeta) *ResultCollection {
	return &ResultCollection{
		items: items,
		meta:  meta,
	}
}

// WithRequest records the path and query string pages link against.
func (c *ResultCollection) WithRequest(rc RequestContext) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	if rc != nil {
		c.path = rc.Path()
		c.query = rc.Query()
	}

	return c
}

func (c *ResultCollection) WithPerPage(perPage int) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	c.perPage = perPage

	return c
}

// WithCursor records the inbound cursor and the parameter it travels in.
func (c *ResultCollection) WithCursor(cursor *Cursor, param string) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	c.cursor = cursor
	c.cursorParam = param

	return c
}

// WithPageParam sets the query parameter offset pages use.
func (c *ResultCollection) WithPageParam(param string) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	c.pageParam = param

	return c
}

// WithSort records the sort the caller asked for, before any flip.
func (c *ResultCollection) WithSort(sort SortSpec) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	c.sort = sort.Clone()

	return c
}

// WithHasMore records whether the overfetch sentinel was present.
func (c *ResultCollection) WithHasMore(hasMore bool) *ResultCollection {
	if c == nil {
		c = new(ResultCollection)
	}

	c.hasMore = hasMore

	return c
}

func (c *ResultCollection) Items() []*Entity {
	if c == nil {
		return nil
	}

	return slices.Clone(c.items)
}

func (c *ResultCollection) Len() int {
	if c == nil {
		return 0
	}

	return len(c.items)
}

// HasMeta reports whether engine metadata was supplied.
func (c *ResultCollection) HasMeta() bool {
	return c != nil && c.meta != nil
}

func (c *ResultCollection) TotalHits() int64 {
	if !c.HasMeta() {
		return 0
	}

	return c.meta.Total.Value
}

// TotalRelation is "eq" for exact totals and "gte" for lower bounds.
func (c *ResultCollection) TotalRelation() string {
	if !c.HasMeta() {
		return ""
	}

	return c.meta.Total.Relation
}

func (c *ResultCollection) MaxScore() *float64 {
	if !c.HasMeta() {
		return nil
	}

	return c.meta.MaxScore
}

// Took is the engine-reported duration in milliseconds.
func (c *ResultCollection) Took() int64 {
	if !c.HasMeta() {
		return 0
	}

	return c.meta.Took
}

func (c *ResultCollection) TimedOut() bool {
	if !c.HasMeta() {
		return false
	}

	return c.meta.TimedOut
}

func (c *ResultCollection) Shards() ShardStats {
	if !c.HasMeta() {
		return ShardStats{}
	}

	return c.meta.Shards
}

func (c *ResultCollection) Aggregations() map[string]any {
	if !c.HasMeta() {
		return nil
	}

	return c.meta.Aggregations
}

func (c *ResultCollection) HasMore() bool {
	return c != nil && c.hasMore
}

func (c *ResultCollection) Cursor() *Cursor {
	if c == nil {
		return nil
	}

	return c.cursor
}

func (c *ResultCollection) PerPage() int {
	if c == nil {
		return 0
	}

	return c.perPage
}

func (c *ResultCollection) Sort() SortSpec {
	if c == nil {
		return nil
	}

	return c.sort.Clone()
}

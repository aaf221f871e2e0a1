package searchpager

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _blogGraph = RelationGraph{
	"post": {
		"author":   {Related: "user", Cardinality: One},
		"tags":     {Related: "tag", Cardinality: Many, PivotKey: "pivot"},
		"comments": {Related: "comment", Cardinality: Many},
	},
	"comment": {
		"author": {Related: "user", Cardinality: One},
	},
	"user": {
		"company": {Related: "company", Cardinality: One},
	},
}

func blogHit() Hit {
	return Hit{
		ID: "1",
		Source: map[string]any{
			"title":  "hello",
			"author": map[string]any{"id": int64(7), "name": "ann", "company": map[string]any{"id": "acme"}},
			"tags": []any{
				map[string]any{"id": int64(3), "name": "go", "pivot": map[string]any{"post_id": int64(1), "tag_id": int64(3)}},
				map[string]any{"id": int64(4), "name": "db", "pivot": nil},
			},
			"comments": []any{
				map[string]any{"id": int64(10), "body": "nice", "author": map[string]any{"id": int64(8)}},
				nil,
			},
			// Relations of other types are never matched on the root.
			"company":   map[string]any{"id": "ignored"},
			"sort_data": []any{int64(1)},
		},
	}
}

func Test_Hydrator_Build_nested(t *testing.T) {
	e, err := NewHydrator("post").WithRelations(_blogGraph).FromHit(blogHit())
	require.NoError(t, err)

	assert.Equal(t, []string{"author", "comments", "tags"}, e.RelationNames())

	_, raw := e.Attr("author")
	assert.False(t, raw, "raw relation key is removed from attributes")
	company, ok := e.Attr("company")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"id": "ignored"}, company)
	_, hasSortData := e.Relation(DefaultSortKey)
	assert.False(t, hasSortData)

	author := e.One("author")
	require.NotNil(t, author)
	assert.Equal(t, "user", author.Type())
	assert.Equal(t, int64(7), author.ID())
	assert.False(t, author.IsDocument())
	require.NotNil(t, author.One("company"))
	assert.Equal(t, "acme", author.One("company").ID())

	tags := e.Many("tags")
	require.Len(t, tags, 2)
	assert.Equal(t, "tag", tags[0].Type())
	_, pivotAttr := tags[0].Attr("pivot")
	assert.False(t, pivotAttr)
	pivot := tags[0].Pivot()
	require.NotNil(t, pivot)
	assert.Equal(t, "tags", pivot.Relation())
	assert.Equal(t, "post", pivot.ParentType())
	tagID, _ := pivot.Attr("tag_id")
	assert.Equal(t, int64(3), tagID)
	assert.Nil(t, tags[1].Pivot(), "null pivot attaches nothing")

	comments := e.Many("comments")
	require.Len(t, comments, 2)
	assert.Equal(t, int64(8), comments[0].One("author").ID())
	assert.Nil(t, comments[1].ID(), "null list item becomes an empty record")
	assert.Empty(t, comments[1].Attributes())
}

func Test_Entity_ToMap(t *testing.T) {
	hit := blogHit()
	e, err := NewHydrator("post").WithRelations(_blogGraph).FromHit(hit)
	require.NoError(t, err)

	m := e.ToMap()
	assert.Equal(t, "hello", m["title"])
	assert.Equal(t, int64(1), m["id"])
	assert.Equal(t, map[string]any{"id": int64(7), "name": "ann", "company": map[string]any{"id": "acme"}}, m["author"])

	tags, ok := m["tags"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"post_id": int64(1), "tag_id": int64(3)}, tags[0].(map[string]any)[PivotRelation])

	// Rehydrating the flattened form yields the same tree.
	again, err := NewHydrator("post").WithRelations(_blogGraph).FromHit(Hit{ID: "1", Source: m})
	require.NoError(t, err)
	assert.Equal(t, m, again.ToMap())

	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"author":{`)
}

func Test_Entity_ToMap_customPivotKey(t *testing.T) {
	graph := RelationGraph{"post": {"tags": {Related: "tag", Cardinality: Many, PivotKey: "junction"}}}
	h := NewHydrator("post").WithRelations(graph)

	e, err := h.FromHit(Hit{ID: "1", Source: map[string]any{
		"tags": []any{map[string]any{"id": int64(3), "junction": map[string]any{"tag_id": int64(3)}}},
	}})
	require.NoError(t, err)

	pivot := e.Many("tags")[0].Pivot()
	require.NotNil(t, pivot)
	assert.Equal(t, "junction", pivot.Key())

	m := e.ToMap()
	tag := m["tags"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"tag_id": int64(3)}, tag["junction"])
	assert.NotContains(t, tag, PivotRelation)

	again, err := h.FromHit(Hit{ID: "1", Source: m})
	require.NoError(t, err)
	require.NotNil(t, again.Many("tags")[0].Pivot())
	tagID, _ := again.Many("tags")[0].Pivot().Attr("tag_id")
	assert.Equal(t, int64(3), tagID)
	assert.Equal(t, m, again.ToMap())
}

func Test_Hydrator_Build_errors(t *testing.T) {
	tests := []struct {
		name     string
		graph    RelationGraph
		source   map[string]any
		wantPath string
		target   error
	}{
		{
			name:     "one holds many",
			graph:    _blogGraph,
			source:   map[string]any{"author": []any{map[string]any{"id": 1}, map[string]any{"id": 2}}},
			wantPath: "post.author",
			target:   ErrRelationHydration,
		},
		{
			name:     "scalar relation value",
			graph:    _blogGraph,
			source:   map[string]any{"author": "ann"},
			wantPath: "post.author",
			target:   ErrRelationHydration,
		},
		{
			name:     "scalar list item",
			graph:    _blogGraph,
			source:   map[string]any{"tags": []any{map[string]any{"id": 1}, "go"}},
			wantPath: "post.tags[1]",
			target:   ErrRelationHydration,
		},
		{
			name:     "pivot is not an object",
			graph:    _blogGraph,
			source:   map[string]any{"tags": []any{map[string]any{"id": 1, "pivot": "x"}}},
			wantPath: "post.tags[0].pivot",
			target:   ErrRelationHydration,
		},
		{
			name:     "nested failure keeps the full path",
			graph:    _blogGraph,
			source:   map[string]any{"comments": []any{map[string]any{"author": 5}}},
			wantPath: "post.comments[0].author",
			target:   ErrRelationHydration,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewHydrator("post").WithRelations(tt.graph).FromHit(Hit{ID: "1", Source: tt.source})
			require.ErrorIs(t, err, tt.target)

			var relErr *RelationError
			require.True(t, errors.As(err, &relErr))
			assert.Equal(t, tt.wantPath, relErr.Path)
		})
	}
}

func Test_Hydrator_Build_depthLimit(t *testing.T) {
	graph := RelationGraph{"category": {"parent": {Related: "category", Cardinality: One}}}

	nest := func(levels int) map[string]any {
		node := map[string]any{"id": int64(levels)}
		for i := levels - 1; i >= 0; i-- {
			node = map[string]any{"id": int64(i), "parent": node}
		}
		return node
	}

	h := NewHydrator("category").WithRelations(graph).WithMaxDepth(3)

	e, err := h.FromHit(Hit{Source: nest(3)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), e.One("parent").One("parent").One("parent").ID())

	_, err = h.FromHit(Hit{Source: nest(4)})
	require.ErrorIs(t, err, ErrRecursionLimit)
}

func Test_Hydrator_Build_direct(t *testing.T) {
	h := NewHydrator("").WithRelations(_blogGraph)
	require.NoError(t, h.Build(nil))

	e := newEntity("comment", map[string]any{"author": map[string]any{"id": "9"}})
	require.NoError(t, h.Build(e))
	assert.Equal(t, int64(9), e.One("author").ID())

	none := newEntity("post", map[string]any{"author": nil})
	require.NoError(t, h.Build(none))
	assert.Nil(t, none.One("author"))
	assert.Equal(t, []string{"author"}, none.RelationNames())
}

func Test_RelationGraph_Validate(t *testing.T) {
	tests := []struct {
		name  string
		graph RelationGraph
		ok    bool
	}{
		{"nil graph", nil, true},
		{"valid graph", _blogGraph, true},
		{"empty name", RelationGraph{"post": {"": {Related: "user", Cardinality: One}}}, false},
		{"no related type", RelationGraph{"post": {"author": {Cardinality: One}}}, false},
		{"no cardinality", RelationGraph{"post": {"author": {Related: "user"}}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.graph.Validate()
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrConfiguration)
		})
	}

	link, ok := _blogGraph.Lookup("post", "tags")
	require.True(t, ok)
	assert.Equal(t, Many, link.Cardinality)
	_, ok = _blogGraph.Lookup("tag", "tags")
	assert.False(t, ok)
	assert.Equal(t, "one", One.String())
	assert.Equal(t, "cardinality(0)", Cardinality(0).String())
}

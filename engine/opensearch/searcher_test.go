package opensearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alp4ka/searchpager"
	"github.com/Alp4ka/searchpager/engine"
)

func newCluster(t *testing.T, status int, body string, inspect func(r *http.Request, body map[string]any)) *Searcher {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var reqBody map[string]any
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&reqBody)
		}
		if inspect != nil {
			inspect(r, reqBody)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	s, err := New(client, nil)
	require.NoError(t, err)

	return s
}

func Test_Searcher_Search(t *testing.T) {
	const response = `{
		"took": 5,
		"timed_out": false,
		"_shards": {"total": 2, "successful": 2, "skipped": 0, "failed": 0},
		"hits": {
			"total": {"value": 10000, "relation": "gte"},
			"max_score": 1.5,
			"hits": [
				{"_index": "posts", "_id": "abc", "_score": 1.5, "_source": {"title": "A", "author": {"id": 3}}},
				{"_index": "posts", "_id": "12", "_score": 1.2, "_source": {"title": "B"}}
			]
		}
	}`

	var (
		gotPath  string
		gotQuery string
		gotBody  map[string]any
	)
	s := newCluster(t, http.StatusOK, response, func(r *http.Request, body map[string]any) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("track_total_hits")
		gotBody = body
	})

	from := 20
	res, err := s.Search(context.Background(), &searchpager.Request{
		Index: "posts",
		Query: searchpager.TermQuery("hello"),
		Size:  10,
		From:  &from,
	})
	require.NoError(t, err)

	assert.Equal(t, "/posts/_search", gotPath)
	assert.Equal(t, "true", gotQuery)
	assert.EqualValues(t, 20, gotBody["from"])

	assert.EqualValues(t, 10000, res.Meta.Total.Value)
	assert.Equal(t, "gte", res.Meta.Total.Relation)
	assert.Equal(t, 2, res.Meta.Shards.Successful)
	require.NotNil(t, res.Meta.MaxScore)
	assert.InDelta(t, 1.5, *res.Meta.MaxScore, 1e-9)

	require.Len(t, res.Hits, 2)
	assert.Equal(t, "abc", res.Hits[0].ID)
	assert.Equal(t, map[string]any{"id": int64(3)}, res.Hits[0].Source["author"])
}

func Test_Searcher_Search_engineError(t *testing.T) {
	s := newCluster(t, http.StatusBadRequest,
		`{"error":{"type":"search_phase_execution_exception","reason":"all shards failed"},"status":400}`, nil)

	_, err := s.Search(context.Background(), &searchpager.Request{Index: "posts", Size: 1})

	var engineErr *engine.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, http.StatusBadRequest, engineErr.StatusCode)
	assert.Equal(t, "all shards failed", engineErr.Reason)
	assert.False(t, engine.IsNotFound(err))
}

func Test_New(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)

	_, err = NewClient(Config{})
	require.Error(t, err)
}

package elastic

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

const searchResponse = `{
	"took": 3,
	"timed_out": false,
	"_shards": {"total": 1, "successful": 1, "skipped": 0, "failed": 0},
	"hits": {
		"total": {"value": 42, "relation": "eq"},
		"max_score": null,
		"hits": [
			{"_index": "posts", "_id": "7", "_score": null, "_source": {"title": "Hello"}, "sort": [1700000000000, 7]}
		]
	}
}`

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

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
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
	var (
		gotPath string
		gotBody map[string]any
	)
	s := newCluster(t, http.StatusOK, searchResponse, func(r *http.Request, body map[string]any) {
		gotPath = r.URL.Path
		gotBody = body
	})

	res, err := s.Search(context.Background(), &searchpager.Request{
		Index:       "posts",
		Query:       searchpager.TermQuery(""),
		Size:        11,
		Sort:        searchpager.SortSpec{{Field: "created_at", Order: searchpager.SortDesc}, {Field: "id", Order: searchpager.SortAsc}},
		SearchAfter: []any{int64(1700000000000), int64(8)},
	})
	require.NoError(t, err)

	assert.Equal(t, "/posts/_search", gotPath)
	assert.EqualValues(t, 11, gotBody["size"])
	assert.NotContains(t, gotBody, "from")
	assert.Equal(t, []any{float64(1700000000000), float64(8)}, gotBody["search_after"])

	assert.EqualValues(t, 42, res.Meta.Total.Value)
	assert.EqualValues(t, 3, res.Meta.Took)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "7", res.Hits[0].ID)
	assert.Equal(t, []any{int64(1700000000000), int64(7)}, res.Hits[0].Sort)
}

func Test_Searcher_Search_engineError(t *testing.T) {
	s := newCluster(t, http.StatusNotFound,
		`{"error":{"type":"index_not_found_exception","reason":"no such index [nope]"},"status":404}`, nil)

	_, err := s.Search(context.Background(), &searchpager.Request{Index: "nope", Size: 1})
	require.Error(t, err)
	assert.True(t, engine.IsNotFound(err))

	var engineErr *engine.Error
	require.ErrorAs(t, err, &engineErr)
	assert.Equal(t, "index_not_found_exception", engineErr.Type)
}

func Test_New(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)

	_, err = NewClient(Config{})
	require.Error(t, err)
}

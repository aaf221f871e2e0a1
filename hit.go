package searchpager

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Hit is a raw engine record. It is consumed once per hydration pass and is
// never mutated by the hydrator.
type Hit struct {
	Index     string
	ID        string
	Score     *float64
	Version   *int64
	Source    map[string]any
	Sort      []any
	InnerHits map[string]any
	Fields    map[string]any
}

type (
	TotalHits struct {
		Value int64
		// Relation is "eq" or "gte" when the engine stopped counting.
		Relation string
	}

	ShardStats struct {
		Total      int
		Successful int
		Skipped    int
		Failed     int
	}

	// ResultMeta describes a search response apart from its hits.
	ResultMeta struct {
		Took         int64
		TimedOut     bool
		Shards       ShardStats
		Total        TotalHits
		MaxScore     *float64
		Aggregations map[string]any
	}

	// SearchResult is what a Searcher returns for a single request.
	SearchResult struct {
		Meta ResultMeta
		Hits []Hit
	}
)

type (
	wireResult struct {
		Took         int64          `json:"took"`
		TimedOut     bool           `json:"timed_out"`
		Shards       wireShards     `json:"_shards"`
		Hits         wireHits       `json:"hits"`
		Aggregations map[string]any `json:"aggregations"`
	}

	wireShards struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Skipped    int `json:"skipped"`
		Failed     int `json:"failed"`
	}

	wireHits struct {
		Total    json.RawMessage `json:"total"`
		MaxScore *float64        `json:"max_score"`
		Hits     []wireHit       `json:"hits"`
	}

	wireHit struct {
		Index     string         `json:"_index"`
		ID        any            `json:"_id"`
		Score     *float64       `json:"_score"`
		Version   *int64         `json:"_version"`
		Source    map[string]any `json:"_source"`
		Sort      []any          `json:"sort"`
		InnerHits map[string]any `json:"inner_hits"`
		Fields    map[string]any `json:"fields"`
	}
)

// DecodeSearchResult reads an engine search response body.
func DecodeSearchResult(r io.Reader) (*SearchResult, error) {
	var res SearchResult

	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	return &res, nil
}

// UnmarshalJSON implements json.Unmarshaler for the engine response format.
// Numbers inside sources, sort tuples and aggregations become int64 when
// integral and float64 otherwise.
func (r *SearchResult) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var w wireResult
	if err := dec.Decode(&w); err != nil {
		return err
	}

	total, err := decodeTotalHits(w.Hits.Total)
	if err != nil {
		return err
	}

	hits := make([]Hit, 0, len(w.Hits.Hits))
	for _, wh := range w.Hits.Hits {
		hits = append(hits, Hit{
			Index:     wh.Index,
			ID:        stringifyID(wh.ID),
			Score:     wh.Score,
			Version:   wh.Version,
			Source:    normalizeJSONMap(wh.Source),
			Sort:      normalizeJSONSlice(wh.Sort),
			InnerHits: normalizeJSONMap(wh.InnerHits),
			Fields:    normalizeJSONMap(wh.Fields),
		})
	}

	*r = SearchResult{
		Meta: ResultMeta{
			Took:     w.Took,
			TimedOut: w.TimedOut,
			Shards: ShardStats{
				Total:      w.Shards.Total,
				Successful: w.Shards.Successful,
				Skipped:    w.Shards.Skipped,
				Failed:     w.Shards.Failed,
			},
			Total:        total,
			MaxScore:     w.Hits.MaxScore,
			Aggregations: normalizeJSONMap(w.Aggregations),
		},
		Hits: hits,
	}

	return nil
}

// decodeTotalHits accepts both {"value": n, "relation": "eq"} and a bare
// number.
func decodeTotalHits(raw json.RawMessage) (TotalHits, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return TotalHits{}, nil
	}

	var obj struct {
		Value    int64  `json:"value"`
		Relation string `json:"relation"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return TotalHits{Value: obj.Value, Relation: obj.Relation}, nil
	}

	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return TotalHits{}, fmt.Errorf("unexpected hits.total format: %s", raw)
	}

	return TotalHits{Value: n, Relation: "eq"}, nil
}

func stringifyID(v any) string {
	switch vt := v.(type) {
	case nil:
		return ""
	case string:
		return vt
	case json.Number:
		return vt.String()
	default:
		return fmt.Sprint(vt)
	}
}

func normalizeJSON(v any) any {
	switch vt := v.(type) {
	case json.Number:
		if n, err := normalizeSortValue(vt); err == nil {
			return n
		}
		return vt.String()
	case map[string]any:
		return normalizeJSONMap(vt)
	case []any:
		return normalizeJSONSlice(vt)
	default:
		return v
	}
}

func normalizeJSONMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	for k, v := range m {
		m[k] = normalizeJSON(v)
	}

	return m
}

func normalizeJSONSlice(s []any) []any {
	for i, v := range s {
		s[i] = normalizeJSON(v)
	}

	return s
}

// isIntegerID reports whether an identifier looks like a plain integer.
func isIntegerID(id string) bool {
	id = strings.TrimPrefix(id, "-")
	if id == "" || len(id) > 18 || (len(id) > 1 && id[0] == '0') {
		return false
	}

	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

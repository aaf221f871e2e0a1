package searchpager

import (
	"fmt"
	"slices"
	"strconv"
)

const (
	DefaultKeyName  = "id"
	DefaultSortKey  = "sort_data"
	DefaultMaxDepth = 32

	innerHitsKey = "inner_hits"
)

// Hydrator turns hits into entities of a single root type and rebuilds their
// relation trees. A Hydrator is immutable after configuration and may be
// shared between goroutines.
type Hydrator struct {
	entityType string
	keyName    string
	sortKey    string
	maxDepth   int
	relations  RelationGraph
}

func NewHydrator(entityType string) *Hydrator {
	return &Hydrator{entityType: entityType}
}

// WithKeyName sets the attribute the identifier is stored under.
func (h *Hydrator) WithKeyName(keyName string) *Hydrator {
	if h == nil {
		h = new(Hydrator)
	}

	h.keyName = keyName

	return h
}

// WithSortKey sets the reserved key the engine sort tuple is known by. The
// key is never treated as a relation.
func (h *Hydrator) WithSortKey(sortKey string) *Hydrator {
	if h == nil {
		h = new(Hydrator)
	}

	h.sortKey = sortKey

	return h
}

// WithMaxDepth bounds relation nesting.
func (h *Hydrator) WithMaxDepth(depth int) *Hydrator {
	if h == nil {
		h = new(Hydrator)
	}

	h.maxDepth = depth

	return h
}

// WithRelations sets the relation graph.
func (h *Hydrator) WithRelations(graph RelationGraph) *Hydrator {
	if h == nil {
		h = new(Hydrator)
	}

	h.relations = graph

	return h
}

func (h *Hydrator) GetEntityType() string {
	if h == nil {
		return ""
	}

	return h.entityType
}

func (h *Hydrator) GetKeyName() string {
	if h == nil || h.keyName == "" {
		return DefaultKeyName
	}

	return h.keyName
}

func (h *Hydrator) GetSortKey() string {
	if h == nil || h.sortKey == "" {
		return DefaultSortKey
	}

	return h.sortKey
}

func (h *Hydrator) GetMaxDepth() int {
	if h == nil || h.maxDepth <= 0 {
		return DefaultMaxDepth
	}

	return h.maxDepth
}

func (h *Hydrator) GetRelations() RelationGraph {
	if h == nil {
		return nil
	}

	return h.relations
}

// Hydrate maps hits to entities.
//
// In cursor mode hits were fetched with one extra record. When more than
// limit hits arrived the surplus is dropped and hasMore is true. For backward
// traversal the page is reversed, so the caller always sees the order of the
// unflipped sort.
func (h *Hydrator) Hydrate(hits []Hit, limit int, mode Mode, t Traversal) ([]*Entity, bool, error) {
	hasMore := false
	if mode == ModeCursor && limit >= 0 && len(hits) > limit {
		hasMore = true
		hits = hits[:limit]
	}

	entities := make([]*Entity, 0, len(hits))
	for i := range hits {
		e, err := h.FromHit(hits[i])
		if err != nil {
			return nil, false, err
		}
		entities = append(entities, e)
	}

	if mode == ModeCursor && t == Backward {
		slices.Reverse(entities)
	}

	return entities, hasMore, nil
}

// FromHit hydrates a single hit, including its relations. The hit itself is
// left untouched.
func (h *Hydrator) FromHit(hit Hit) (*Entity, error) {
	attributes, _ := cloneValue(hit.Source).(map[string]any)
	if attributes == nil {
		attributes = make(map[string]any, len(hit.Fields)+1)
	}

	for k, v := range hit.Fields {
		attributes[k] = cloneValue(v)
	}

	e := newEntity(h.GetEntityType(), attributes)
	if hit.ID != "" {
		e.id = normalizeID(hit.ID)
		attributes[h.GetKeyName()] = e.id
	} else {
		e.id = normalizeID(attributes[h.GetKeyName()])
	}

	innerHits, _ := cloneValue(hit.InnerHits).(map[string]any)
	e.meta = DocumentMeta{
		Index:      hit.Index,
		Score:      hit.Score,
		Version:    hit.Version,
		Sort:       slices.Clone(hit.Sort),
		InnerHits:  innerHits,
		IsDocument: true,
	}

	if err := h.buildRelations(e, e.typ, 0); err != nil {
		return nil, fmt.Errorf("hit '%s': %w", hit.ID, err)
	}

	return e, nil
}

// normalizeID turns integer-looking identifiers into int64.
func normalizeID(v any) any {
	switch vt := v.(type) {
	case string:
		if isIntegerID(vt) {
			if n, err := strconv.ParseInt(vt, 10, 64); err == nil {
				return n
			}
		}
		return vt
	case float64:
		if vt == float64(int64(vt)) {
			return int64(vt)
		}
		return vt
	case int:
		return int64(vt)
	case int32:
		return int64(vt)
	default:
		return v
	}
}

// cloneValue deep-copies decoded JSON containers so hydration never writes
// into the caller's hit.
func cloneValue(v any) any {
	switch vt := v.(type) {
	case map[string]any:
		if vt == nil {
			return vt
		}
		ret := make(map[string]any, len(vt))
		for k, item := range vt {
			ret[k] = cloneValue(item)
		}
		return ret
	case []any:
		if vt == nil {
			return vt
		}
		ret := make([]any, len(vt))
		for i, item := range vt {
			ret[i] = cloneValue(item)
		}
		return ret
	case []map[string]any:
		if vt == nil {
			return vt
		}
		ret := make([]map[string]any, len(vt))
		for i, item := range vt {
			ret[i], _ = cloneValue(item).(map[string]any)
		}
		return ret
	default:
		return v
	}
}

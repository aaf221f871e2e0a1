package searchpager

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Cardinality of a relation.
type Cardinality int

const (
	One Cardinality = iota + 1
	Many
)

func (c Cardinality) Valid() bool {
	return c == One || c == Many
}

func (c Cardinality) String() string {
	switch c {
	case One:
		return "one"
	case Many:
		return "many"
	default:
		return fmt.Sprintf("cardinality(%d)", int(c))
	}
}

// RelationLink declares a named relation of an entity type.
type RelationLink struct {
	// Related is the entity type of the related records.
	Related     string
	Cardinality Cardinality
	// PivotKey, when set, is the key of the junction sub-map inside each
	// related record. It is moved into a Pivot under PivotRelation and
	// written back under PivotKey by ToMap.
	PivotKey string
}

// RelationGraph maps an entity type to its relations by name:
//
//	RelationGraph{
//		"post": {
//			"author": {Related: "user", Cardinality: One},
//			"tags":   {Related: "tag", Cardinality: Many, PivotKey: "pivot"},
//		},
//	}
//
// The graph must be acyclic in the data it describes; the builder keeps no
// visited set and relies on the depth limit instead.
type RelationGraph map[string]map[string]RelationLink

// Lookup returns the relation declared for typ under name. Relations of other
// types are never considered.
func (g RelationGraph) Lookup(typ, name string) (RelationLink, bool) {
	links, ok := g[typ]
	if !ok {
		return RelationLink{}, false
	}

	link, ok := links[name]
	return link, ok
}

// Validate checks that every link names a related type and a cardinality.
func (g RelationGraph) Validate() error {
	for _, typ := range lo.Keys(g) {
		for name, link := range g[typ] {
			if name == "" {
				return fmt.Errorf("%w: empty relation name on type '%s'", ErrConfiguration, typ)
			}
			if link.Related == "" {
				return fmt.Errorf("%w: relation '%s.%s' has no related type", ErrConfiguration, typ, name)
			}
			if !link.Cardinality.Valid() {
				return fmt.Errorf("%w: relation '%s.%s' has invalid %s", ErrConfiguration, typ, name, link.Cardinality)
			}
		}
	}

	return nil
}

// Build attaches the relations declared for e's type, recursively. Raw keys
// are removed before the structured relation is attached.
func (h *Hydrator) Build(e *Entity) error {
	if e == nil {
		return nil
	}

	return h.buildRelations(e, e.typ, 0)
}

func (h *Hydrator) buildRelations(e *Entity, path string, depth int) error {
	if depth > h.GetMaxDepth() {
		return fmt.Errorf("%w: %s (max depth %d)", ErrRecursionLimit, path, h.GetMaxDepth())
	}

	links := h.GetRelations()[e.typ]
	if len(links) == 0 {
		return nil
	}

	keys := lo.Keys(e.attributes)
	slices.Sort(keys)

	for _, key := range keys {
		if h.isReservedKey(key) {
			continue
		}

		link, ok := links[key]
		if !ok {
			continue
		}

		relPath := path + "." + key
		records, err := asRecords(e.attributes[key], relPath)
		if err != nil {
			return err
		}

		children := make([]*Entity, 0, len(records))
		for i, record := range records {
			itemPath := lo.Ternary(link.Cardinality == Many, fmt.Sprintf("%s[%d]", relPath, i), relPath)

			child, err := h.newRelated(e.typ, key, link, record, itemPath, depth+1)
			if err != nil {
				return err
			}
			children = append(children, child)
		}

		switch link.Cardinality {
		case One:
			switch len(children) {
			case 0:
				e.setRelation(key, nil)
			case 1:
				e.setRelation(key, children[0])
			default:
				return newRelationError(relPath, "one-cardinality relation holds %d records", len(children))
			}
		case Many:
			e.setRelation(key, children)
		default:
			return newRelationError(relPath, "invalid %s", link.Cardinality)
		}
	}

	return nil
}

func (h *Hydrator) newRelated(
	parentType string,
	relation string,
	link RelationLink,
	record map[string]any,
	path string,
	depth int,
) (*Entity, error) {
	var pivot *Pivot
	if link.PivotKey != "" {
		if raw, ok := record[link.PivotKey]; ok {
			delete(record, link.PivotKey)

			switch rt := raw.(type) {
			case nil:
			case map[string]any:
				pivot = &Pivot{relation: relation, parentType: parentType, key: link.PivotKey, attributes: rt}
			default:
				return nil, newRelationError(path+"."+link.PivotKey, "pivot must be an object, got %T", raw)
			}
		}
	}

	child := newEntity(link.Related, record)
	child.id = normalizeID(record[h.GetKeyName()])

	if pivot != nil {
		child.setRelation(PivotRelation, pivot)
	}

	if err := h.buildRelations(child, path, depth); err != nil {
		return nil, err
	}

	return child, nil
}

func (h *Hydrator) isReservedKey(key string) bool {
	return key == h.GetKeyName() || key == h.GetSortKey() || key == innerHitsKey || key == PivotRelation
}

// asRecords normalizes a raw relation value to a sequence of records: a
// single object becomes a one-element sequence, null becomes empty.
func asRecords(raw any, path string) ([]map[string]any, error) {
	switch rt := raw.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return []map[string]any{rt}, nil
	case []map[string]any:
		return rt, nil
	case []any:
		ret := make([]map[string]any, 0, len(rt))
		for i, item := range rt {
			switch it := item.(type) {
			case nil:
				ret = append(ret, map[string]any{})
			case map[string]any:
				ret = append(ret, it)
			default:
				return nil, newRelationError(fmt.Sprintf("%s[%d]", path, i), "expected object, got %T", item)
			}
		}
		return ret, nil
	default:
		return nil, newRelationError(path, "expected object or list of objects, got %T", raw)
	}
}

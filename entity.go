package searchpager

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/samber/lo"
)

// DocumentMeta is transient search metadata. It is kept apart from the
// persisted attributes and never written back into them.
type DocumentMeta struct {
	Index     string
	Score     *float64
	Version   *int64
	Sort      []any
	InnerHits map[string]any
	// IsDocument is true when the entity originates from a search hit, as
	// opposed to a nested relation record.
	IsDocument bool
}

// Entity is a typed object hydrated from a hit or from nested relation data.
type Entity struct {
	typ        string
	id         any
	attributes map[string]any
	relations  map[string]any
	relOrder   []string
	meta       DocumentMeta
}

func newEntity(typ string, attributes map[string]any) *Entity {
	return &Entity{
		typ:        typ,
		attributes: attributes,
		relations:  make(map[string]any),
	}
}

func (e *Entity) Type() string { return e.typ }

// ID returns the identifier: int64 for integer-looking ids, string otherwise,
// nil when the record carried none.
func (e *Entity) ID() any { return e.id }

func (e *Entity) Meta() DocumentMeta { return e.meta }

func (e *Entity) IsDocument() bool { return e.meta.IsDocument }

func (e *Entity) DocumentScore() *float64 { return e.meta.Score }

func (e *Entity) DocumentVersion() *int64 { return e.meta.Version }

// SortValues returns the engine sort tuple this entity was returned with.
func (e *Entity) SortValues() []any { return slices.Clone(e.meta.Sort) }

// Attr returns a persisted attribute.
func (e *Entity) Attr(key string) (any, bool) {
	v, ok := e.attributes[key]
	return v, ok
}

// Attributes returns a shallow copy of the persisted attributes.
func (e *Entity) Attributes() map[string]any {
	return maps.Clone(e.attributes)
}

// Relation returns an attached relation: *Entity, []*Entity or *Pivot.
func (e *Entity) Relation(name string) (any, bool) {
	v, ok := e.relations[name]
	return v, ok
}

// RelationNames lists attached relations in attachment order.
func (e *Entity) RelationNames() []string {
	return slices.Clone(e.relOrder)
}

// One returns a one-cardinality relation or nil.
func (e *Entity) One(name string) *Entity {
	v, _ := e.relations[name].(*Entity)
	return v
}

// Many returns a many-cardinality relation or nil.
func (e *Entity) Many(name string) []*Entity {
	v, _ := e.relations[name].([]*Entity)
	return v
}

// Pivot returns the junction record this entity was reached through.
func (e *Entity) Pivot() *Pivot {
	v, _ := e.relations[PivotRelation].(*Pivot)
	return v
}

func (e *Entity) setRelation(name string, value any) {
	delete(e.attributes, name)
	if _, ok := e.relations[name]; !ok {
		e.relOrder = append(e.relOrder, name)
	}
	e.relations[name] = value
}

// ToMap flattens the entity back into a nested attribute map: relations are
// written under their names and the pivot under the key it was read from.
func (e *Entity) ToMap() map[string]any {
	ret := maps.Clone(e.attributes)
	if ret == nil {
		ret = make(map[string]any, len(e.relations))
	}

	for name, rel := range e.relations {
		switch rt := rel.(type) {
		case *Entity:
			ret[name] = rt.ToMap()
		case []*Entity:
			ret[name] = lo.Map(rt, func(item *Entity, _ int) any { return item.ToMap() })
		case *Pivot:
			ret[rt.Key()] = rt.Attributes()
		default:
			ret[name] = nil
		}
	}

	return ret
}

// MarshalJSON implements json.Marshaler.
func (e *Entity) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToMap())
}

// PivotRelation is the reserved relation name junction data is attached under.
const PivotRelation = "pivot"

// Pivot holds many-to-many junction data between a parent and a related
// entity.
type Pivot struct {
	relation   string
	parentType string
	key        string
	attributes map[string]any
}

// Key is the record key the junction data was read from.
func (p *Pivot) Key() string {
	if p.key == "" {
		return PivotRelation
	}

	return p.key
}

// Relation is the name of the relation the pivot was found on.
func (p *Pivot) Relation() string { return p.relation }

// ParentType is the entity type owning that relation.
func (p *Pivot) ParentType() string { return p.parentType }

func (p *Pivot) Attr(key string) (any, bool) {
	v, ok := p.attributes[key]
	return v, ok
}

func (p *Pivot) Attributes() map[string]any {
	return maps.Clone(p.attributes)
}

func (p *Pivot) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.attributes)
}

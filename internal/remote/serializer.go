package remote

import (
	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// Serializer renders records into wire resources. Relationships marked
// embedded carry full nested resources, recursively; to-one relationships
// carry linkage.
type Serializer struct {
	store  *records.Store
	naming metadata.Naming
}

func NewSerializer(store *records.Store) *Serializer {
	return &Serializer{store: store, naming: store.Schema().Naming()}
}

// Serialize renders rec with its embedded graph. A record already rendered
// higher up the tree is not rendered again.
func (s *Serializer) Serialize(rec *records.Record) jsonapi.Resource {
	return s.serialize(rec, map[records.Identity]bool{})
}

func (s *Serializer) serialize(rec *records.Record, seen map[records.Identity]bool) jsonapi.Resource {
	seen[rec.Identity] = true

	res := jsonapi.Resource{
		Type:       s.naming.WireType(rec.Type),
		ID:         rec.ID,
		Attributes: make(map[string]any, len(rec.Attrs)),
	}
	for k, v := range rec.Attrs {
		res.Attributes[s.naming.WireAttr(k)] = v
	}

	for _, rel := range s.store.Schema().RelationshipsOf(rec.Type) {
		key := s.naming.WireAttr(rel.Name)

		if rel.IsToOne() {
			target := rec.ToOne(rel.Name)
			if target == nil {
				continue
			}
			if seen[*target] || !rel.Embedded {
				s.link(&res, key, s.linkage(*target))
				continue
			}
			related := s.store.Related(rec, rel)
			if len(related) == 0 {
				s.link(&res, key, s.linkage(*target))
				continue
			}
			s.link(&res, key, s.serialize(related[0], seen))
			continue
		}

		if !rel.Embedded {
			continue
		}
		children := make([]jsonapi.Resource, 0)
		for _, child := range s.store.Related(rec, rel) {
			if seen[child.Identity] {
				continue
			}
			children = append(children, s.serialize(child, seen))
		}
		s.link(&res, key, children)
	}
	return res
}

func (s *Serializer) linkage(id records.Identity) jsonapi.Identifier {
	return jsonapi.Identifier{Type: s.naming.WireType(id.Type), ID: id.ID}
}

func (s *Serializer) link(res *jsonapi.Resource, key string, v any) {
	if res.Relationships == nil {
		res.Relationships = make(map[string]jsonapi.Relationship)
	}
	res.Relationships[key] = jsonapi.NewRelationship(v)
}

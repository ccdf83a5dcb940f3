package engine

import (
	"context"
	"fmt"
	"strings"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/store"
)

// includeSet collects included resources once each, in load order.
type includeSet struct {
	order []jsonapi.Identifier
	byID  map[jsonapi.Identifier]*jsonapi.Resource
}

func newIncludeSet() *includeSet {
	return &includeSet{byID: make(map[jsonapi.Identifier]*jsonapi.Resource)}
}

func (s *includeSet) add(res jsonapi.Resource) *jsonapi.Resource {
	key := jsonapi.Identifier{Type: res.Type, ID: res.ID}
	if existing, ok := s.byID[key]; ok {
		return existing
	}
	r := res
	s.byID[key] = &r
	s.order = append(s.order, key)
	return &r
}

func (s *includeSet) resources() []jsonapi.Resource {
	out := make([]jsonapi.Resource, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, *s.byID[key])
	}
	return out
}

// includeLevel is one step of an include path: rows of one entity and the
// resources rendered from them.
type includeLevel struct {
	entity *metadata.Entity
	rows   []map[string]any
	res    []*jsonapi.Resource
}

// LoadIncludes follows each dotted include path (wire relationship names,
// e.g. "departments.users") from the given resources, attaching linkage to
// every resource on the way and returning the related resources.
func LoadIncludes(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, entity *metadata.Entity, rows []map[string]any, roots []*jsonapi.Resource, paths []string) ([]jsonapi.Resource, error) {
	included := newIncludeSet()
	if len(rows) == 0 {
		return nil, nil
	}

	for _, path := range paths {
		cur := includeLevel{entity: entity, rows: rows, res: roots}
		for _, seg := range strings.Split(path, ".") {
			rel := cur.entity.GetRelationship(reg.Naming().AttrName(seg))
			if rel == nil {
				return nil, InvalidPayloadError(fmt.Sprintf("Unknown include %s on %s", seg, cur.entity.Name))
			}
			next, err := loadRelated(ctx, q, dialect, reg, cur, rel, included)
			if err != nil {
				return nil, fmt.Errorf("load include %s: %w", path, err)
			}
			cur = next
		}
	}
	return included.resources(), nil
}

func loadRelated(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, cur includeLevel, rel *metadata.Relationship, included *includeSet) (includeLevel, error) {
	target := reg.GetEntity(rel.Target)
	if target == nil {
		return includeLevel{}, fmt.Errorf("unknown target entity: %s", rel.Target)
	}
	naming := reg.Naming()
	next := includeLevel{entity: target}

	if rel.IsToOne() {
		var ids []any
		for _, row := range cur.rows {
			if fk := row[rel.ForeignKey()]; fk != nil {
				ids = append(ids, fk)
			}
		}
		childRows, err := fetchWhereIn(ctx, q, dialect, reg, target, pkColumn(reg, target), ids)
		if err != nil {
			return includeLevel{}, err
		}
		for _, child := range childRows {
			next.rows = append(next.rows, child)
			next.res = append(next.res, included.add(toResource(reg, target, child)))
		}
		return next, nil
	}

	inverse := reg.GetRelationship(rel.Target, rel.Inverse)
	if inverse == nil || !inverse.IsToOne() {
		return includeLevel{}, fmt.Errorf("relationship %s.%s has no to-one inverse", cur.entity.Name, rel.Name)
	}
	fkCol := inverse.ForeignKey()
	pk := pkColumn(reg, cur.entity)

	var parentIDs []any
	for _, row := range cur.rows {
		parentIDs = append(parentIDs, row[pk])
	}
	childRows, err := fetchWhereIn(ctx, q, dialect, reg, target, fkCol, parentIDs)
	if err != nil {
		return includeLevel{}, err
	}

	grouped := make(map[string][]jsonapi.Identifier)
	for _, child := range childRows {
		res := included.add(toResource(reg, target, child))
		fk := idString(child[fkCol])
		grouped[fk] = append(grouped[fk], jsonapi.Identifier{Type: res.Type, ID: res.ID})
		next.rows = append(next.rows, child)
		next.res = append(next.res, res)
	}

	key := naming.WireAttr(rel.Name)
	for i, row := range cur.rows {
		linkage := grouped[idString(row[pk])]
		if linkage == nil {
			linkage = []jsonapi.Identifier{}
		}
		parent := cur.res[i]
		if parent.Relationships == nil {
			parent.Relationships = make(map[string]jsonapi.Relationship)
		}
		parent.Relationships[key] = jsonapi.NewRelationship(linkage)
	}
	return next, nil
}

func parseIncludes(raw string) []string {
	var includes []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			includes = append(includes, p)
		}
	}
	return includes
}

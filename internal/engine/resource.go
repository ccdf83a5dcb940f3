package engine

import (
	"context"
	"fmt"
	"strings"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/store"
)

// columnsOf returns the entity's columns: fields first, then the foreign
// keys of its to-one relationships.
func columnsOf(reg *metadata.Registry, entity *metadata.Entity) []string {
	naming := reg.Naming()
	cols := make([]string, 0, len(entity.Fields))
	for _, f := range entity.Fields {
		cols = append(cols, naming.Column(f.Name))
	}
	for _, rel := range entity.ForeignKeys() {
		cols = append(cols, rel.ForeignKey())
	}
	return cols
}

func pkColumn(reg *metadata.Registry, entity *metadata.Entity) string {
	return reg.Naming().Column(entity.PrimaryKey.Field)
}

func fetchRecord(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, entity *metadata.Entity, id string) (map[string]any, error) {
	pb := dialect.NewParamBuilder()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columnsOf(reg, entity), ", "), entity.Table, pkColumn(reg, entity), pb.Add(id))
	return store.QueryRow(ctx, q, sql, pb.Params()...)
}

// fetchWhereIn loads the rows of entity whose column matches one of values.
func fetchWhereIn(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, entity *metadata.Entity, column string, values []any) ([]map[string]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	pb := dialect.NewParamBuilder()
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE %s ORDER BY %s",
		strings.Join(columnsOf(reg, entity), ", "), entity.Table,
		store.InExpr(column, pb, values), pkColumn(reg, entity))
	return store.QueryRows(ctx, q, sql, pb.Params()...)
}

// toResource renders a row. To-one relationships are always present as
// linkage; to-many relationships only once includes attach them.
func toResource(reg *metadata.Registry, entity *metadata.Entity, row map[string]any) jsonapi.Resource {
	naming := reg.Naming()
	res := jsonapi.Resource{
		Type:       naming.WireType(entity.Name),
		ID:         idString(row[pkColumn(reg, entity)]),
		Attributes: make(map[string]any),
	}
	for _, f := range entity.Attributes() {
		res.Attributes[naming.WireAttr(f.Name)] = row[naming.Column(f.Name)]
	}
	for _, rel := range entity.ForeignKeys() {
		if res.Relationships == nil {
			res.Relationships = make(map[string]jsonapi.Relationship)
		}
		var linkage any
		if fk := row[rel.ForeignKey()]; fk != nil {
			linkage = jsonapi.Identifier{Type: naming.WireType(rel.Target), ID: idString(fk)}
		}
		res.Relationships[naming.WireAttr(rel.Name)] = jsonapi.NewRelationship(linkage)
	}
	return res
}

func idString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func identifier(reg *metadata.Registry, entityName, id string) jsonapi.Identifier {
	return jsonapi.Identifier{Type: reg.Naming().WireType(entityName), ID: id}
}

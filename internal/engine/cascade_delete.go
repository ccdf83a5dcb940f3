package engine

import (
	"context"
	"fmt"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/metrics"
	"orgchart/internal/store"
)

// deleter applies on_delete policies below a record being deleted.
type deleter struct {
	q       store.Querier
	dialect store.Dialect
	reg     *metadata.Registry
	metrics *metrics.Metrics
	deleted []jsonapi.Identifier
}

// HandleCascadeDelete processes on_delete policies for every to-many
// relationship of the entity, recursively, and returns the identities of
// the records it deleted. The record itself is left for the caller.
func HandleCascadeDelete(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, m *metrics.Metrics, entity *metadata.Entity, recordID string) ([]jsonapi.Identifier, error) {
	d := &deleter{q: q, dialect: dialect, reg: reg, metrics: m}
	if err := d.cascade(ctx, entity, recordID); err != nil {
		return nil, err
	}
	return d.deleted, nil
}

func (d *deleter) cascade(ctx context.Context, entity *metadata.Entity, recordID string) error {
	for _, rel := range entity.Relationships {
		if !rel.IsToMany() {
			continue
		}
		if err := d.executeCascade(ctx, &rel, recordID); err != nil {
			return fmt.Errorf("cascade delete for relationship %s.%s: %w", entity.Name, rel.Name, err)
		}
	}
	return nil
}

func (d *deleter) executeCascade(ctx context.Context, rel *metadata.Relationship, parentID string) error {
	policy := rel.DefaultOnDelete()
	if policy == "none" {
		return nil
	}

	target := d.reg.GetEntity(rel.Target)
	inverse := d.reg.GetRelationship(rel.Target, rel.Inverse)
	if target == nil || inverse == nil || !inverse.IsToOne() {
		return nil
	}
	fkCol := inverse.ForeignKey()

	switch policy {
	case "cascade":
		rows, err := fetchWhereIn(ctx, d.q, d.dialect, d.reg, target, fkCol, []any{parentID})
		if err != nil {
			return err
		}
		for _, row := range rows {
			childID := idString(row[pkColumn(d.reg, target)])
			if err := d.cascade(ctx, target, childID); err != nil {
				return err
			}
			if _, err := deleteRow(ctx, d.q, d.dialect, d.reg, target, childID); err != nil {
				return err
			}
			d.deleted = append(d.deleted, identifier(d.reg, target.Name, childID))
		}
		d.metrics.CascadeDeleted(target.Name, len(rows))

	case "set_null":
		pb := d.dialect.NewParamBuilder()
		sql := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = %s", target.Table, fkCol, fkCol, pb.Add(parentID))
		if _, err := store.Exec(ctx, d.q, sql, pb.Params()...); err != nil {
			return err
		}

	case "restrict":
		pb := d.dialect.NewParamBuilder()
		sql := fmt.Sprintf("SELECT COUNT(*) AS count FROM %s WHERE %s = %s", target.Table, fkCol, pb.Add(parentID))
		row, err := store.QueryRow(ctx, d.q, sql, pb.Params()...)
		if err != nil {
			return err
		}
		if count, ok := row["count"].(int64); ok && count > 0 {
			return ConflictError(fmt.Sprintf("Cannot delete: %d related %s records exist", count, rel.Target))
		}
	}

	return nil
}

func deleteRow(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, entity *metadata.Entity, id string) (int64, error) {
	pb := dialect.NewParamBuilder()
	sql := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", entity.Table, pkColumn(reg, entity), pb.Add(id))
	n, err := store.Exec(ctx, q, sql, pb.Params()...)
	if err != nil {
		return 0, fmt.Errorf("delete %s/%s: %w", entity.Name, id, err)
	}
	return n, nil
}

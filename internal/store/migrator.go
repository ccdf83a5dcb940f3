package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"orgchart/internal/metadata"
)

// Migrator keeps entity tables in line with the metadata registry.
type Migrator struct {
	store  *Store
	naming metadata.Naming
}

func NewMigrator(store *Store, naming metadata.Naming) *Migrator {
	return &Migrator{store: store, naming: naming}
}

// MigrateAll migrates every entity of the registry.
func (m *Migrator) MigrateAll(ctx context.Context, reg *metadata.Registry) error {
	for _, entity := range reg.AllEntities() {
		if err := m.Migrate(ctx, entity); err != nil {
			return err
		}
	}
	return nil
}

// Migrate creates the entity table if it doesn't exist, or adds missing
// columns. Columns never get dropped.
func (m *Migrator) Migrate(ctx context.Context, entity *metadata.Entity) error {
	exists, err := m.store.Dialect.TableExists(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("check table exists: %w", err)
	}

	if !exists {
		return m.createTable(ctx, entity)
	}
	return m.alterTable(ctx, entity)
}

type columnDef struct {
	name    string
	colType string
	primary bool
	index   bool
}

// columns returns the entity's columns: one per field plus a foreign key
// column per to-one relationship.
func (m *Migrator) columns(entity *metadata.Entity) []columnDef {
	var cols []columnDef
	for _, f := range entity.Fields {
		cols = append(cols, columnDef{
			name:    m.naming.Column(f.Name),
			colType: m.store.Dialect.ColumnType(f.Type),
			primary: f.Name == entity.PrimaryKey.Field,
		})
	}
	for _, rel := range entity.ForeignKeys() {
		cols = append(cols, columnDef{
			name:    rel.ForeignKey(),
			colType: m.store.Dialect.ColumnType("uuid"),
			index:   true,
		})
	}
	return cols
}

func (m *Migrator) createTable(ctx context.Context, entity *metadata.Entity) error {
	var defs []string
	for _, c := range m.columns(entity) {
		def := c.name + " " + c.colType
		if c.primary {
			def += " PRIMARY KEY"
		}
		defs = append(defs, def)
	}

	sql := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", entity.Table, strings.Join(defs, ",\n  "))
	if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("create table %s: %w", entity.Table, err)
	}
	log.Info().Str("table", entity.Table).Msg("created table")

	return m.createIndexes(ctx, entity)
}

func (m *Migrator) alterTable(ctx context.Context, entity *metadata.Entity) error {
	existing, err := m.store.Dialect.GetColumns(ctx, m.store.DB, entity.Table)
	if err != nil {
		return fmt.Errorf("get columns for %s: %w", entity.Table, err)
	}

	for _, c := range m.columns(entity) {
		if _, ok := existing[c.name]; ok {
			continue
		}
		sql := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", entity.Table, c.name, c.colType)
		if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("add column %s.%s: %w", entity.Table, c.name, err)
		}
		log.Info().Str("table", entity.Table).Str("column", c.name).Msg("added column")
	}

	return m.createIndexes(ctx, entity)
}

func (m *Migrator) createIndexes(ctx context.Context, entity *metadata.Entity) error {
	for _, c := range m.columns(entity) {
		if !c.index {
			continue
		}
		sql := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)",
			entity.Table, c.name, entity.Table, c.name)
		if _, err := m.store.DB.ExecContext(ctx, sql); err != nil {
			return fmt.Errorf("create index on %s.%s: %w", entity.Table, c.name, err)
		}
	}
	return nil
}

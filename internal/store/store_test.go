package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/config"
	"orgchart/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), config.DatabaseConfig{
		Driver: "sqlite",
		Name:   "test",
		Path:   t.TempDir(),
	})
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestMigrateAll_CreatesTablesWithForeignKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	reg := metadata.NewDefaultRegistry()

	m := NewMigrator(s, reg.Naming())
	require.NoError(t, m.MigrateAll(ctx, reg))
	// Second run is a no-op.
	require.NoError(t, m.MigrateAll(ctx, reg))

	cols, err := s.Dialect.GetColumns(ctx, s.DB, "users")
	require.NoError(t, err)
	for _, c := range []string{"id", "first_name", "last_name", "username", "email", "department_id"} {
		assert.Contains(t, cols, c)
	}

	cols, err = s.Dialect.GetColumns(ctx, s.DB, "companies")
	require.NoError(t, err)
	assert.Len(t, cols, 2)
}

func TestMigrate_AddsMissingColumns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := Exec(ctx, s.DB, "CREATE TABLE companies (id TEXT PRIMARY KEY)")
	require.NoError(t, err)

	reg := metadata.NewDefaultRegistry()
	require.NoError(t, NewMigrator(s, reg.Naming()).Migrate(ctx, reg.GetEntity("company")))

	cols, err := s.Dialect.GetColumns(ctx, s.DB, "companies")
	require.NoError(t, err)
	assert.Contains(t, cols, "name")
}

func TestQueryHelpers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := Exec(ctx, s.DB, "CREATE TABLE t (id TEXT PRIMARY KEY, n INTEGER)")
	require.NoError(t, err)

	pb := s.Dialect.NewParamBuilder()
	stmt := "INSERT INTO t (id, n) VALUES (" + pb.Add("a") + ", " + pb.Add(1) + ")"
	n, err := Exec(ctx, s.DB, stmt, pb.Params()...)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	row, err := QueryRow(ctx, s.DB, "SELECT id, n FROM t WHERE id = ?1", "a")
	require.NoError(t, err)
	assert.Equal(t, "a", row["id"])
	assert.EqualValues(t, 1, row["n"])

	_, err = QueryRow(ctx, s.DB, "SELECT id FROM t WHERE id = ?1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = Exec(ctx, s.DB, "INSERT INTO t (id, n) VALUES (?1, ?2)", "a", 2)
	assert.ErrorIs(t, MapError(s.Dialect, err), ErrUniqueViolation)
}

func TestInExpr(t *testing.T) {
	pb := (&PostgresDialect{}).NewParamBuilder()
	assert.Equal(t, "id IN ($1, $2)", InExpr("id", pb, []any{"a", "b"}))
	assert.Equal(t, []any{"a", "b"}, pb.Params())

	assert.Equal(t, "1=0", InExpr("id", pb, nil))
}

func TestInTx_CommitsOrRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	_, err := Exec(ctx, s.DB, "CREATE TABLE t (id TEXT PRIMARY KEY)")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = s.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := Exec(ctx, tx, "INSERT INTO t (id) VALUES (?1)", "rolled-back"); err != nil {
			return err
		}
		return boom
	})
	assert.Same(t, boom, err)

	require.NoError(t, s.InTx(ctx, func(tx *sql.Tx) error {
		_, err := Exec(ctx, tx, "INSERT INTO t (id) VALUES (?1)", "kept")
		return err
	}))

	rows, err := QueryRows(ctx, s.DB, "SELECT id FROM t ORDER BY id")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "kept", rows[0]["id"])
}

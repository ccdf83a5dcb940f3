package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

func TestCollect_BreadthFirstExcludesRoot(t *testing.T) {
	s, reg := orgGraph(t)
	w := NewWalker(s, reg)

	got := w.Collect(s.Peek(id("company", "c1")), CascadeDelete)
	assert.Equal(t, []records.Identity{
		id("department", "d1"),
		id("department", "d2"),
		id("user", "u1"),
		id("user", "u2"),
	}, identities(got))
}

func TestCollect_BackReferencesNotFollowed(t *testing.T) {
	s, reg := orgGraph(t)
	w := NewWalker(s, reg)

	got := w.Collect(s.Peek(id("user", "u1")), CascadeSave)
	assert.Empty(t, got)

	got = w.Collect(s.Peek(id("department", "d1")), CascadeSave)
	assert.Equal(t, []records.Identity{id("user", "u1"), id("user", "u2")}, identities(got))
}

func TestCollect_TerminatesOnCycle(t *testing.T) {
	reg := metadata.NewRegistry()
	reg.Load([]*metadata.Entity{{
		Name:  "node",
		Table: "nodes",
		Relationships: []metadata.Relationship{
			{Name: "next", Kind: metadata.ToOne, Target: "node", CascadeDelete: true},
		},
	}})
	s := records.NewStore(reg)

	a := records.NewRecord(id("node", "a"))
	b := records.NewRecord(id("node", "b"))
	a.LinkOne("next", &b.Identity)
	b.LinkOne("next", &a.Identity)
	s.Push(a)
	s.Push(b)

	got := NewWalker(s, reg).Collect(s.Peek(id("node", "a")), CascadeDelete)
	require.Len(t, got, 1)
	assert.Equal(t, id("node", "b"), got[0].Identity)
}

func TestRelationships_OnlyFlagged(t *testing.T) {
	s, reg := orgGraph(t)
	w := NewWalker(s, reg)

	rels := w.Relationships(s.Peek(id("department", "d1")), CascadeDelete)
	require.Len(t, rels, 1)
	assert.Equal(t, "users", rels[0].Name)

	assert.Empty(t, w.Relationships(s.Peek(id("user", "u1")), CascadeDelete))
}

func TestFlagString(t *testing.T) {
	assert.Equal(t, "cascade-delete", CascadeDelete.String())
	assert.Equal(t, "cascade-save", CascadeSave.String())
	assert.Equal(t, "flag(9)", Flag(9).String())
}

func TestIncludePaths(t *testing.T) {
	reg := metadata.NewDefaultRegistry()

	assert.Equal(t, []string{"departments.users"}, IncludePaths(reg, reg.Naming(), "company", CascadeDelete))
	assert.Equal(t, []string{"users"}, IncludePaths(reg, reg.Naming(), "department", CascadeSave))
	assert.Empty(t, IncludePaths(reg, reg.Naming(), "user", CascadeSave))
}

package records

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/metadata"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(metadata.NewDefaultRegistry())
}

func pushed(s *Store, typ, id string, attrs map[string]any) *Record {
	rec := NewRecord(Identity{Type: typ, ID: id})
	for k, v := range attrs {
		rec.Attrs[k] = v
	}
	return s.Push(rec)
}

func TestCreateNew(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.CreateNew("company")
	require.NoError(t, err)
	assert.Equal(t, StateNew, rec.State)
	assert.True(t, rec.IsNew())
	assert.Len(t, rec.ID, 36)
	assert.Same(t, rec, s.Peek(rec.Identity))

	_, err = s.CreateNew("planet")
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestPush_KeepsPointerAndCleansState(t *testing.T) {
	s := newTestStore(t)
	first := pushed(s, "company", "c1", map[string]any{"name": "Acme"})
	require.NoError(t, s.SetAttr(first.Identity, "name", "Acme Corp"))
	assert.Equal(t, StateDirty, first.State)

	second := pushed(s, "company", "c1", map[string]any{"name": "Acme Inc"})
	assert.Same(t, first, second)
	assert.Equal(t, "Acme Inc", first.Attr("name"))
	assert.Equal(t, StateSaved, first.State)
	assert.False(t, first.IsNew())
}

func TestPush_MergesAttributes(t *testing.T) {
	s := newTestStore(t)
	u := pushed(s, "user", "u1", map[string]any{"first-name": "Ann", "username": "ann"})

	pushed(s, "user", "u1", map[string]any{"username": "ann.lee"})
	assert.Equal(t, "Ann", u.Attr("first-name"))
	assert.Equal(t, "ann.lee", u.Attr("username"))
}

func TestAddToMany_LinksInverse(t *testing.T) {
	s := newTestStore(t)
	c1 := pushed(s, "company", "c1", nil)
	c2 := pushed(s, "company", "c2", nil)
	d := pushed(s, "department", "d1", nil)

	require.NoError(t, s.AddToMany(c1.Identity, "departments", d.Identity))
	assert.Equal(t, &c1.Identity, d.ToOne("company"))

	// Moving the department drops it from its previous company.
	require.NoError(t, s.AddToMany(c2.Identity, "departments", d.Identity))
	assert.Empty(t, c1.ToMany("departments"))
	assert.Equal(t, []Identity{d.Identity}, c2.ToMany("departments"))
	assert.Equal(t, &c2.Identity, d.ToOne("company"))
}

func TestRemoveFromMany(t *testing.T) {
	s := newTestStore(t)
	d := pushed(s, "department", "d1", nil)
	u := pushed(s, "user", "u1", nil)
	require.NoError(t, s.AddToMany(d.Identity, "users", u.Identity))

	t.Run("to-one relationship is rejected", func(t *testing.T) {
		err := s.RemoveFromMany(u.Identity, "department", d.Identity)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a to-many relationship")
		assert.Equal(t, &d.Identity, u.ToOne("department"))
		assert.Equal(t, []Identity{u.Identity}, d.ToMany("users"))
	})

	t.Run("unlinks both sides", func(t *testing.T) {
		require.NoError(t, s.RemoveFromMany(d.Identity, "users", u.Identity))
		assert.Empty(t, d.ToMany("users"))
		assert.Nil(t, u.ToOne("department"))
	})
}

func TestSetToOne_MaintainsInverse(t *testing.T) {
	s := newTestStore(t)
	d1 := pushed(s, "department", "d1", nil)
	d2 := pushed(s, "department", "d2", nil)
	u := pushed(s, "user", "u1", nil)

	require.NoError(t, s.SetToOne(u.Identity, "department", &d1.Identity))
	assert.Equal(t, []Identity{u.Identity}, d1.ToMany("users"))
	assert.Equal(t, StateDirty, u.State)

	require.NoError(t, s.SetToOne(u.Identity, "department", &d2.Identity))
	assert.Empty(t, d1.ToMany("users"))
	assert.Equal(t, []Identity{u.Identity}, d2.ToMany("users"))

	require.NoError(t, s.SetToOne(u.Identity, "department", nil))
	assert.Empty(t, d2.ToMany("users"))
	assert.Nil(t, u.ToOne("department"))

	err := s.SetToOne(u.Identity, "manager", nil)
	assert.ErrorIs(t, err, ErrUnknownRelationship)
}

func TestRelated_SkipsUnloaded(t *testing.T) {
	s := newTestStore(t)
	c := pushed(s, "company", "c1", nil)
	d1 := pushed(s, "department", "d1", nil)
	d2 := pushed(s, "department", "d2", nil)
	require.NoError(t, s.AddToMany(c.Identity, "departments", d1.Identity))
	require.NoError(t, s.AddToMany(c.Identity, "departments", d2.Identity))

	rel := *s.Schema().GetRelationship("company", "departments")
	assert.Equal(t, []*Record{d1, d2}, s.Related(c, rel))

	s.Unload(d1.Identity)
	assert.Equal(t, []*Record{d2}, s.Related(c, rel))
	assert.Nil(t, s.Peek(d1.Identity))
	assert.Equal(t, []Identity{d2.Identity}, c.ToMany("departments"))
}

func TestClearRelationship(t *testing.T) {
	s := newTestStore(t)
	c := pushed(s, "company", "c1", nil)
	d := pushed(s, "department", "d1", nil)
	require.NoError(t, s.AddToMany(c.Identity, "departments", d.Identity))

	s.ClearRelationship(c, *s.Schema().GetRelationship("company", "departments"))
	assert.Empty(t, c.ToMany("departments"))

	s.ClearRelationship(d, *s.Schema().GetRelationship("department", "company"))
	assert.Nil(t, d.ToOne("company"))
}

func TestMarkDeleted(t *testing.T) {
	s := newTestStore(t)
	c := pushed(s, "company", "c1", nil)

	s.MarkDeleted(c.Identity)
	assert.Equal(t, StateDeleted, c.State)
	assert.Nil(t, s.Peek(c.Identity))
	assert.Empty(t, s.PeekAll("company"))

	s.MarkDeleted(Identity{Type: "company", ID: "missing"})
}

func TestMarkSavedAndInvalid(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	u, err := s.CreateNew("user")
	require.NoError(t, err)

	errs := []ValidationError{{Attribute: "username", Message: "is too short"}}
	require.NoError(t, s.MarkInvalid(ctx, u.Identity, errs))
	assert.Equal(t, StateInvalid, u.State)
	assert.Equal(t, errs, u.Errors)

	// Fixing the offending attribute returns the record to new.
	require.NoError(t, s.SetAttr(u.Identity, "username", "jdoe"))
	assert.Empty(t, u.Errors)
	assert.Equal(t, StateNew, u.State)

	require.NoError(t, s.MarkSaved(ctx, u.Identity))
	assert.Equal(t, StateSaved, u.State)
	assert.False(t, u.IsNew())

	err = s.MarkSaved(ctx, Identity{Type: "user", ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshot_IsDetached(t *testing.T) {
	s := newTestStore(t)
	c := pushed(s, "company", "c1", map[string]any{"name": "Acme"})

	snap, err := s.Snapshot(c.Identity)
	require.NoError(t, err)
	snap.Attrs["name"] = "Changed"
	assert.Equal(t, "Acme", c.Attr("name"))
}

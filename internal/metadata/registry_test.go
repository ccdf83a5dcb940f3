package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry_RelationshipsOf(t *testing.T) {
	reg := NewDefaultRegistry()

	rels := reg.RelationshipsOf("department")
	require.Len(t, rels, 2)
	assert.Equal(t, "company", rels[0].Name)
	assert.True(t, rels[0].IsToOne())
	assert.False(t, rels[0].CascadeDelete)
	assert.Equal(t, "users", rels[1].Name)
	assert.True(t, rels[1].IsToMany())
	assert.True(t, rels[1].CascadeDelete)
	assert.True(t, rels[1].CascadeSave)

	assert.Empty(t, reg.RelationshipsOf("nonexistent"))
}

func TestDefaultRegistry_EntityForWireType(t *testing.T) {
	reg := NewDefaultRegistry()

	e := reg.EntityForWireType("departments")
	require.NotNil(t, e)
	assert.Equal(t, "department", e.Name)
	assert.Nil(t, reg.EntityForWireType("department"))
}

func TestDefaultRegistry_Order(t *testing.T) {
	reg := NewDefaultRegistry()

	var names []string
	for _, e := range reg.AllEntities() {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"company", "department", "user"}, names)
}

func TestEntity_ForeignKeys(t *testing.T) {
	reg := NewDefaultRegistry()

	fks := reg.GetEntity("user").ForeignKeys()
	require.Len(t, fks, 1)
	assert.Equal(t, "department_id", fks[0].ForeignKey())
	assert.Empty(t, reg.GetEntity("company").ForeignKeys())
}

func TestRegistryGetRulesForEntity(t *testing.T) {
	reg := NewRegistry()
	reg.LoadRules([]*Rule{
		{Entity: "user", Type: "min_length", Field: "username"},
		{Entity: "user", Type: "expression", Field: "email"},
		{Entity: "company", Type: "min_length", Field: "name"},
	})

	assert.Len(t, reg.GetRulesForEntity("user"), 2)
	assert.Len(t, reg.GetRulesForEntity("company"), 1)
	assert.Empty(t, reg.GetRulesForEntity("department"))
}

func TestLoadJSON(t *testing.T) {
	raw := `{
		"entities": [
			{"name": "team", "fields": [{"name": "id", "type": "uuid"}, {"name": "title", "type": "string", "required": true}],
			 "relationships": [
				{"name": "members", "kind": "to_many", "target": "member", "cascade_delete": true},
				{"name": "ghosts", "kind": "to_many", "target": "ghost"}
			 ]},
			{"name": "member", "fields": [{"name": "id", "type": "uuid"}],
			 "relationships": [{"name": "team", "kind": "to_one", "target": "team"}]}
		],
		"rules": [{"entity": "team", "type": "min_length", "field": "title", "value": 3}]
	}`

	reg := NewRegistry()
	require.NoError(t, LoadJSON(strings.NewReader(raw), reg))

	team := reg.GetEntity("team")
	require.NotNil(t, team)
	assert.Equal(t, "teams", team.Table)
	assert.Equal(t, "id", team.PrimaryKey.Field)
	require.Len(t, team.Relationships, 1, "relationship to unknown entity must be dropped")
	assert.Equal(t, "members", team.Relationships[0].Name)
	assert.Len(t, reg.GetRulesForEntity("team"), 1)
	assert.NotNil(t, reg.EntityForWireType("members"))
}

func TestLoadJSON_RejectsEmptySchema(t *testing.T) {
	err := LoadJSON(strings.NewReader(`{"entities": []}`), NewRegistry())
	require.Error(t, err)
}

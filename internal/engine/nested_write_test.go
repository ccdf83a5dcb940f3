package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
)

func parseResource(t *testing.T, raw string) jsonapi.Resource {
	t.Helper()
	var doc jsonapi.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.NotNil(t, doc.Data)
	return *doc.Data
}

func TestPlanWrite_BuildsTree(t *testing.T) {
	reg := metadata.NewDefaultRegistry()
	res := parseResource(t, acmeDoc)

	root, errs := PlanWrite(reg, reg.GetEntity("company"), res, "")
	require.Empty(t, errs)

	assert.True(t, root.IsRoot())
	assert.Equal(t, "c1", root.ID)
	assert.Equal(t, "Acme", root.Fields["name"])
	require.Len(t, root.Children, 2)

	d1 := root.Children[0]
	assert.Equal(t, "d1", d1.ID)
	assert.Equal(t, "departments", d1.Via.Name)
	assert.Equal(t, "/data/relationships/departments/data/0", d1.Pointer)
	require.Len(t, d1.Children, 2)
	assert.Equal(t, "Ann", d1.Children[0].Fields["firstName"])

	var visited []string
	root.Walk(func(n *WriteNode) { visited = append(visited, n.ID) })
	assert.Equal(t, []string{"c1", "d1", "u1", "u2", "d2"}, visited)

	assert.Equal(t, []string{"departments.users"}, root.IncludePaths(reg.Naming()))
}

func TestPlanWrite_GeneratesMissingIDs(t *testing.T) {
	reg := metadata.NewDefaultRegistry()
	res := parseResource(t, `{"data":{"type":"departments","attributes":{"name":"Ops"}}}`)

	root, errs := PlanWrite(reg, reg.GetEntity("department"), res, "")
	require.Empty(t, errs)
	assert.Len(t, root.ID, 36)
	assert.Empty(t, root.IncludePaths(reg.Naming()))
}

func TestPlanWrite_StructuralErrors(t *testing.T) {
	reg := metadata.NewDefaultRegistry()
	res := parseResource(t, `{"data":{"type":"companies","id":"c1",
		"relationships":{
		  "owners":{"data":[]},
		  "departments":{"data":[{"type":"users","id":"x1","attributes":{"name":"Ops","budget":3}}]}}}}`)

	_, errs := PlanWrite(reg, reg.GetEntity("company"), res, "")

	byRule := map[string]ErrorDetail{}
	for _, e := range errs {
		byRule[e.Rule+":"+e.Source.Pointer] = e
	}
	assert.Contains(t, byRule, "unknown:/data/relationships/owners")
	assert.Contains(t, byRule, "type:/data/relationships/departments/data/0/type")

	budget, ok := byRule["unknown:/data/relationships/departments/data/0/attributes/budget"]
	require.True(t, ok)
	assert.Equal(t, &jsonapi.Identifier{Type: "departments", ID: "x1"}, budget.Source.Identity)
}

func TestPlanWrite_IDMismatch(t *testing.T) {
	reg := metadata.NewDefaultRegistry()
	res := parseResource(t, `{"data":{"type":"companies","id":"c2","attributes":{"name":"Acme"}}}`)

	_, errs := PlanWrite(reg, reg.GetEntity("company"), res, "c1")
	require.Len(t, errs, 1)
	assert.Equal(t, "/data/id", errs[0].Source.Pointer)
}

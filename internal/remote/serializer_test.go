package remote

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

func TestSerializer_EmbedsCascadeGraph(t *testing.T) {
	rs := records.NewStore(metadata.NewDefaultRegistry())
	company, children := buildAcme(t, rs, "R&D")
	rnd, ann := children[0], children[2]

	res := NewSerializer(rs).Serialize(company)
	assert.Equal(t, "companies", res.Type)
	assert.Equal(t, company.ID, res.ID)
	assert.Equal(t, "Acme", res.Attributes["name"])

	depts, ok := res.Relationships["departments"].ToMany()
	require.True(t, ok)
	require.Len(t, depts, 2)
	assert.Equal(t, rnd.ID, depts[0].ID)
	assert.Equal(t, "R&D", depts[0].Attributes["name"])

	// the back reference to the company is linkage, not a second copy
	parent, ok := depts[0].Relationships["company"].ToOne()
	require.True(t, ok)
	require.NotNil(t, parent)
	assert.False(t, parent.IsEmbedded())
	assert.Equal(t, jsonapi.Identifier{Type: "companies", ID: company.ID}, jsonapi.Identifier{Type: parent.Type, ID: parent.ID})

	users, ok := depts[0].Relationships["users"].ToMany()
	require.True(t, ok)
	require.Len(t, users, 2)
	assert.Equal(t, ann.ID, users[0].ID)
	assert.Equal(t, "ann", users[0].Attributes["first-name"])

	empty, ok := depts[1].Relationships["users"].ToMany()
	require.True(t, ok)
	assert.Empty(t, empty)
}

func TestSerializer_LeafRecord(t *testing.T) {
	rs := records.NewStore(metadata.NewDefaultRegistry())
	u := records.NewRecord(records.Identity{Type: "user", ID: "u1"})
	u.Attrs["lastName"] = "Lee"
	rs.Push(u)

	res := NewSerializer(rs).Serialize(rs.Peek(u.Identity))
	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"users","id":"u1","attributes":{"last-name":"Lee"}}`, string(raw))
}

func TestDecoder_EmbeddedAndIncluded(t *testing.T) {
	reg := metadata.NewDefaultRegistry()
	d := decoder{schema: reg, naming: reg.Naming()}

	raw := `{"data":{"type":"companies","id":"c1","attributes":{"name":"Acme"},
	  "relationships":{"departments":{"data":[
	    {"type":"departments","id":"d1","attributes":{"name":"R&D"}},
	    {"type":"departments","id":"d2"}]}}},
	  "included":[{"type":"users","id":"u1","attributes":{"first-name":"Ann"},
	    "relationships":{"department":{"data":{"type":"departments","id":"d1"}}}}]}`
	var doc jsonapi.Document
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))

	root, extra := d.document(doc)
	require.NotNil(t, root)
	assert.Equal(t, records.Identity{Type: "company", ID: "c1"}, root.Identity)
	assert.Equal(t, []records.Identity{
		{Type: "department", ID: "d1"},
		{Type: "department", ID: "d2"},
	}, root.ToMany("departments"))

	var ids []records.Identity
	for _, rec := range extra {
		ids = append(ids, rec.Identity)
	}
	// d2 is bare linkage and is not materialized
	assert.Equal(t, []records.Identity{
		{Type: "department", ID: "d1"},
		{Type: "user", ID: "u1"},
	}, ids)
	assert.Equal(t, "Ann", extra[1].Attr("firstName"))
	assert.Equal(t, &records.Identity{Type: "department", ID: "d1"}, extra[1].ToOne("department"))
}

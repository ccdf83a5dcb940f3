package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

func TestRoute(t *testing.T) {
	r := NewRouter(metadata.JSONAPINaming{})
	root := id("company", "1")

	errs := []records.ValidationError{
		{Attribute: "name", Message: "is too short"},
		{Identity: &records.Identity{Type: "departments", ID: "2"}, Attribute: "name", Message: "can't be blank"},
		{Identity: &records.Identity{Type: "companies", ID: "1"}, Attribute: "name", Message: "is taken"},
		{Identity: &records.Identity{Type: "departments", ID: "2"}, Attribute: "code", Message: "is invalid"},
	}

	own, children := r.Route(errs, root)

	require.Len(t, own, 2)
	assert.Equal(t, "is too short", own[0].Message)
	assert.Equal(t, "is taken", own[1].Message)
	for _, e := range own {
		assert.Nil(t, e.Identity)
	}

	require.Len(t, children, 1)
	dept := children[id("department", "2")]
	require.Len(t, dept, 2)
	assert.Equal(t, "name", dept[0].Attribute)
	assert.Equal(t, "code", dept[1].Attribute)
	assert.Equal(t, &records.Identity{Type: "department", ID: "2"}, dept[0].Identity)
}

func TestRoute_Empty(t *testing.T) {
	own, children := NewRouter(metadata.JSONAPINaming{}).Route(nil, id("company", "1"))
	assert.Empty(t, own)
	assert.Empty(t, children)
}

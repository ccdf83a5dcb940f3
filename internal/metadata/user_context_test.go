package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserContext_Roles(t *testing.T) {
	admin := &UserContext{ID: "root", Roles: []string{"viewer", RoleAdmin}}
	viewer := &UserContext{ID: "u1", Roles: []string{"viewer"}}

	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.HasRole("viewer"))
	assert.False(t, viewer.IsAdmin())
	assert.False(t, (&UserContext{ID: "anon"}).IsAdmin())
}

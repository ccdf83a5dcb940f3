package metadata

import "slices"

// RoleAdmin is the token role that unlocks the /_admin schema endpoints.
// Record endpoints only need a valid token.
const RoleAdmin = "admin"

// UserContext is the caller decoded from a bearer token. The auth middleware
// stores it in the "user" local and the request span records its ID.
type UserContext struct {
	ID    string   `json:"id"`
	Roles []string `json:"roles"`
}

func (u *UserContext) HasRole(role string) bool {
	return slices.Contains(u.Roles, role)
}

// IsAdmin reports whether the caller may read and replace the schema.
func (u *UserContext) IsAdmin() bool {
	return u.HasRole(RoleAdmin)
}

package metadata

// DefaultSchema declares the company / department / user model.
//
// A company owns its departments and a department owns its users: both
// relationships cascade deletes and saves and are written embedded in the
// parent's payload. The back references carry no cascade flags.
func DefaultSchema() []*Entity {
	pk := PrimaryKey{Field: "id", Type: "uuid"}

	company := &Entity{
		Name:       "company",
		Table:      "companies",
		PrimaryKey: pk,
		Fields: []Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string", Required: true},
		},
		Relationships: []Relationship{
			{
				Name: "departments", Kind: ToMany, Target: "department", Inverse: "company",
				CascadeDelete: true, CascadeSave: true, Embedded: true, OnDelete: "cascade",
			},
		},
	}

	department := &Entity{
		Name:       "department",
		Table:      "departments",
		PrimaryKey: pk,
		Fields: []Field{
			{Name: "id", Type: "uuid"},
			{Name: "name", Type: "string", Required: true},
		},
		Relationships: []Relationship{
			{Name: "company", Kind: ToOne, Target: "company", Inverse: "departments"},
			{
				Name: "users", Kind: ToMany, Target: "user", Inverse: "department",
				CascadeDelete: true, CascadeSave: true, Embedded: true, OnDelete: "cascade",
			},
		},
	}

	user := &Entity{
		Name:       "user",
		Table:      "users",
		PrimaryKey: pk,
		Fields: []Field{
			{Name: "id", Type: "uuid"},
			{Name: "firstName", Type: "string", Required: true},
			{Name: "lastName", Type: "string", Required: true},
			{Name: "username", Type: "string", Required: true},
			{Name: "email", Type: "string"},
		},
		Relationships: []Relationship{
			{Name: "department", Kind: ToOne, Target: "department", Inverse: "users"},
		},
	}

	return []*Entity{company, department, user}
}

// DefaultRules returns the server-side validation rules for DefaultSchema.
func DefaultRules() []*Rule {
	return []*Rule{
		{Entity: "company", Type: "min_length", Field: "name", Value: 2, Message: "is too short (minimum is 2 characters)"},
		{Entity: "department", Type: "min_length", Field: "name", Value: 2, Message: "is too short (minimum is 2 characters)"},
		{Entity: "user", Type: "min_length", Field: "username", Value: 3, Message: "is too short (minimum is 3 characters)"},
		{
			Entity:     "user",
			Type:       "expression",
			Field:      "email",
			Expression: `record.email != nil && record.email != "" && !(record.email matches "^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$")`,
			Message:    "is not a valid email address",
		},
	}
}

// NewDefaultRegistry returns a registry loaded with DefaultSchema and DefaultRules.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	reg.Load(DefaultSchema())
	reg.LoadRules(DefaultRules())
	return reg
}

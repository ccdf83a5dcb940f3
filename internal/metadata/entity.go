package metadata

type Entity struct {
	Name          string         `json:"name"`
	Table         string         `json:"table"`
	PrimaryKey    PrimaryKey     `json:"primary_key"`
	Fields        []Field        `json:"fields"`
	Relationships []Relationship `json:"relationships"`
}

type PrimaryKey struct {
	Field string `json:"field"`
	Type  string `json:"type"` // uuid, string
}

type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// GetField returns a pointer to the field with the given name, or nil.
func (e *Entity) GetField(name string) *Field {
	for i := range e.Fields {
		if e.Fields[i].Name == name {
			return &e.Fields[i]
		}
	}
	return nil
}

// HasField returns true if the entity has a field with the given name.
func (e *Entity) HasField(name string) bool {
	return e.GetField(name) != nil
}

// FieldNames returns all field names.
func (e *Entity) FieldNames() []string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Name
	}
	return names
}

// Attributes returns the fields a client may write, i.e. everything but the PK.
func (e *Entity) Attributes() []Field {
	var fields []Field
	for _, f := range e.Fields {
		if f.Name == e.PrimaryKey.Field {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

// GetRelationship returns the relationship with the given name, or nil.
func (e *Entity) GetRelationship(name string) *Relationship {
	for i := range e.Relationships {
		if e.Relationships[i].Name == name {
			return &e.Relationships[i]
		}
	}
	return nil
}

// ForeignKeys returns the to-one relationships whose key lives on this entity's table.
func (e *Entity) ForeignKeys() []Relationship {
	var rels []Relationship
	for _, r := range e.Relationships {
		if r.IsToOne() {
			rels = append(rels, r)
		}
	}
	return rels
}

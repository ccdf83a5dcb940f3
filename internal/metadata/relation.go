package metadata

import "github.com/stoewer/go-strcase"

type RelationshipKind string

const (
	ToOne  RelationshipKind = "to_one"
	ToMany RelationshipKind = "to_many"
)

// Relationship is the static descriptor of one relationship field.
type Relationship struct {
	Name          string           `json:"name"`
	Kind          RelationshipKind `json:"kind"`
	Target        string           `json:"target"`
	Inverse       string           `json:"inverse,omitempty"`
	CascadeDelete bool             `json:"cascade_delete,omitempty"`
	CascadeSave   bool             `json:"cascade_save,omitempty"`
	Embedded      bool             `json:"embedded,omitempty"`  // serialize full child records in writes
	OnDelete      string           `json:"on_delete,omitempty"` // cascade, set_null, restrict, none (server side)
}

func (r *Relationship) IsToMany() bool {
	return r.Kind == ToMany
}

func (r *Relationship) IsToOne() bool {
	return r.Kind == ToOne
}

// ForeignKey returns the column holding a to-one link, e.g. "company_id".
func (r *Relationship) ForeignKey() string {
	return strcase.SnakeCase(r.Name) + "_id"
}

// DefaultOnDelete returns the delete policy, defaulting to "none".
func (r *Relationship) DefaultOnDelete() string {
	if r.OnDelete != "" {
		return r.OnDelete
	}
	return "none"
}

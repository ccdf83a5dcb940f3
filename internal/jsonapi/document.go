// Package jsonapi holds the wire documents exchanged between the orgchart
// API and its clients: JSON:API resources, with embedded resources allowed
// inside relationship data.
package jsonapi

import (
	"bytes"
	"encoding/json"
)

// Identifier names a resource by wire type and id.
type Identifier struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Resource is one resource object. Attribute keys and the type use the wire
// naming.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id,omitempty"`
	Attributes    map[string]any          `json:"attributes,omitempty"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship holds a single resource (or null) or a list of them. Entries
// are either linkage (type and id) or full embedded resources.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// Document is a single-resource request or response body.
type Document struct {
	Data     *Resource  `json:"data"`
	Included []Resource `json:"included,omitempty"`
}

// ListDocument is a collection response body.
type ListDocument struct {
	Data     []Resource     `json:"data"`
	Included []Resource     `json:"included,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// DeleteDocument reports the records a delete removed besides its target.
type DeleteDocument struct {
	Meta DeleteMeta `json:"meta"`
}

type DeleteMeta struct {
	Deleted []Identifier `json:"deleted"`
}

// ErrorSource locates a validation error: the JSON pointer into the request
// document and, for nested resources, the resource it belongs to.
type ErrorSource struct {
	Pointer  string      `json:"pointer,omitempty"`
	Identity *Identifier `json:"identity,omitempty"`
}

// ErrorObject is one entry of a validation failure.
type ErrorObject struct {
	Attribute string       `json:"attribute,omitempty"`
	Rule      string       `json:"rule,omitempty"`
	Message   string       `json:"message"`
	Source    *ErrorSource `json:"source,omitempty"`
}

// ErrorsDocument is the 422 body. Errors is a pointer so that a body
// without the key can be told apart from an empty list.
type ErrorsDocument struct {
	Errors *[]ErrorObject `json:"errors"`
}

// ErrorEnvelope is the body of every other failure.
type ErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewRelationship wraps v (a Resource, *Resource, []Resource, Identifier or
// nil) as relationship data.
func NewRelationship(v any) Relationship {
	raw, err := json.Marshal(v)
	if err != nil {
		raw = []byte("null")
	}
	return Relationship{Data: raw}
}

// ToOne returns the relationship's single resource, or nil for null. ok is
// false when the data is a list or malformed.
func (r Relationship) ToOne() (res *Resource, ok bool) {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, true
	}
	if data[0] != '{' {
		return nil, false
	}
	var one Resource
	if err := json.Unmarshal(data, &one); err != nil {
		return nil, false
	}
	return &one, true
}

// ToMany returns the relationship's resource list. ok is false when the
// data is not a list.
func (r Relationship) ToMany() ([]Resource, bool) {
	data := bytes.TrimSpace(r.Data)
	if len(data) == 0 || data[0] != '[' {
		return nil, false
	}
	var list []Resource
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, false
	}
	return list, true
}

// IsEmbedded reports whether the resource carries more than linkage.
func (r Resource) IsEmbedded() bool {
	return len(r.Attributes) > 0 || len(r.Relationships) > 0
}

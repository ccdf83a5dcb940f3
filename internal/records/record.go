package records

import "fmt"

// Identity addresses a record by model type and id.
type Identity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s:%s", i.Type, i.ID)
}

// State is the local lifecycle state of a record.
type State string

const (
	StateNew     State = "new"
	StateDirty   State = "dirty"
	StateSaved   State = "saved"
	StateInvalid State = "invalid"
	StateDeleted State = "deleted"
)

// ValidationError is one server-reported problem with a record attribute.
// Identity is nil when the error targets the record the write was issued for.
type ValidationError struct {
	Identity  *Identity `json:"identity,omitempty"`
	Attribute string    `json:"attribute"`
	Message   string    `json:"message"`
}

func (e ValidationError) String() string {
	if e.Attribute == "" {
		return e.Message
	}
	return e.Attribute + " " + e.Message
}

// Record is an in-memory entity. Its relationship fields hold identities;
// the Store resolves them.
type Record struct {
	Identity
	Attrs  map[string]any
	State  State
	Errors []ValidationError

	toOne     map[string]*Identity
	toMany    map[string][]Identity
	persisted bool
}

// NewRecord returns an empty record for id. It is not part of any store.
func NewRecord(id Identity) *Record {
	return &Record{
		Identity: id,
		Attrs:    make(map[string]any),
		State:    StateNew,
		toOne:    make(map[string]*Identity),
		toMany:   make(map[string][]Identity),
	}
}

// Attr returns the attribute value, or nil.
func (r *Record) Attr(name string) any {
	return r.Attrs[name]
}

// ToOne returns the linked identity of a to-one relationship, or nil.
func (r *Record) ToOne(name string) *Identity {
	id := r.toOne[name]
	if id == nil {
		return nil
	}
	cp := *id
	return &cp
}

// ToMany returns a copy of the linked identities of a to-many relationship.
func (r *Record) ToMany(name string) []Identity {
	return append([]Identity(nil), r.toMany[name]...)
}

// LinkOne sets a to-one link without store bookkeeping. Used to build
// records from server payloads before pushing them.
func (r *Record) LinkOne(name string, id *Identity) {
	if id == nil {
		r.toOne[name] = nil
		return
	}
	cp := *id
	r.toOne[name] = &cp
}

// LinkMany sets a to-many link without store bookkeeping.
func (r *Record) LinkMany(name string, ids []Identity) {
	r.toMany[name] = append([]Identity(nil), ids...)
}

// IsNew reports whether the record has never been persisted.
func (r *Record) IsNew() bool {
	return !r.persisted
}

func (r *Record) clone() *Record {
	cp := NewRecord(r.Identity)
	for k, v := range r.Attrs {
		cp.Attrs[k] = v
	}
	for k, v := range r.toOne {
		cp.LinkOne(k, v)
	}
	for k, v := range r.toMany {
		cp.LinkMany(k, v)
	}
	cp.State = r.State
	cp.Errors = append([]ValidationError(nil), r.Errors...)
	cp.persisted = r.persisted
	return cp
}

func (r *Record) hasToOne(name string) bool {
	_, ok := r.toOne[name]
	return ok
}

func (r *Record) hasToMany(name string) bool {
	_, ok := r.toMany[name]
	return ok
}

func indexOf(ids []Identity, id Identity) int {
	for i, x := range ids {
		if x == id {
			return i
		}
	}
	return -1
}

func without(ids []Identity, id Identity) []Identity {
	i := indexOf(ids, id)
	if i < 0 {
		return ids
	}
	out := make([]Identity, 0, len(ids)-1)
	out = append(out, ids[:i]...)
	return append(out, ids[i+1:]...)
}

package records

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"orgchart/internal/metadata"
)

var (
	ErrNotFound            = errors.New("record not found")
	ErrUnknownType         = errors.New("unknown record type")
	ErrUnknownRelationship = errors.New("unknown relationship")
)

// Store is an identity map of records keyed by (type, id). All mutations go
// through the store so that inverse relationships stay consistent. It is
// safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	schema  *metadata.Registry
	records map[Identity]*Record
	byType  map[string][]Identity
}

func NewStore(schema *metadata.Registry) *Store {
	return &Store{
		schema:  schema,
		records: make(map[Identity]*Record),
		byType:  make(map[string][]Identity),
	}
}

// Schema returns the relationship metadata the store was built with.
func (s *Store) Schema() *metadata.Registry {
	return s.schema
}

// CreateNew adds a new, never persisted record with a client-generated id.
func (s *Store) CreateNew(recordType string) (*Record, error) {
	if s.schema.GetEntity(recordType) == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, recordType)
	}
	rec := NewRecord(Identity{Type: recordType, ID: uuid.NewString()})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(rec)
	return rec, nil
}

// Push loads a server-provided record. An already loaded record keeps its
// pointer: attributes in rec are merged over the loaded ones, and the
// relationships present in rec replace the loaded links. The result is in
// the saved state.
func (s *Store) Push(rec *Record) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.records[rec.Identity]
	if existing == nil {
		existing = NewRecord(rec.Identity)
		s.insertLocked(existing)
	}
	for k, v := range rec.Attrs {
		existing.Attrs[k] = v
	}
	for _, rel := range s.schema.RelationshipsOf(rec.Type) {
		switch {
		case rel.IsToOne() && rec.hasToOne(rel.Name):
			s.setToOneLocked(existing, &rel, rec.toOne[rel.Name])
		case rel.IsToMany() && rec.hasToMany(rel.Name):
			s.setToManyLocked(existing, &rel, rec.toMany[rel.Name])
		}
	}
	existing.State = StateSaved
	existing.Errors = nil
	existing.persisted = true
	return existing
}

// Peek returns the loaded record or nil.
func (s *Store) Peek(id Identity) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[id]
}

// PeekAll returns the loaded records of a type in load order.
func (s *Store) PeekAll(recordType string) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.byType[recordType]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.records[id])
	}
	return out
}

// Len returns the number of loaded records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Snapshot returns a detached copy of a loaded record.
func (s *Store) Snapshot(id Identity) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec := s.records[id]
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.clone(), nil
}

// SetAttr changes an attribute locally and clears errors reported for it.
func (s *Store) SetAttr(id Identity, name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	if rec == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.Attrs[name] = value
	kept := rec.Errors[:0]
	for _, e := range rec.Errors {
		if e.Attribute != name {
			kept = append(kept, e)
		}
	}
	rec.Errors = kept
	s.touchLocked(rec)
	return nil
}

// SetToOne links (or, with a nil target, unlinks) a to-one relationship.
func (s *Store) SetToOne(id Identity, relName string, target *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, rel, err := s.resolveLocked(id, relName)
	if err != nil {
		return err
	}
	if !rel.IsToOne() {
		return fmt.Errorf("%s.%s is not a to-one relationship", id.Type, relName)
	}
	s.setToOneLocked(rec, rel, target)
	s.touchLocked(rec)
	return nil
}

// AddToMany appends target to a to-many relationship and links the inverse.
func (s *Store) AddToMany(id Identity, relName string, target Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, rel, err := s.resolveLocked(id, relName)
	if err != nil {
		return err
	}
	if !rel.IsToMany() {
		return fmt.Errorf("%s.%s is not a to-many relationship", id.Type, relName)
	}
	if indexOf(rec.toMany[rel.Name], target) >= 0 {
		return nil
	}
	rec.toMany[rel.Name] = append(rec.toMany[rel.Name], target)
	s.attachInverseLocked(rec.Identity, rel, target)
	return nil
}

// RemoveFromMany drops target from a to-many relationship and unlinks the inverse.
func (s *Store) RemoveFromMany(id Identity, relName string, target Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, rel, err := s.resolveLocked(id, relName)
	if err != nil {
		return err
	}
	if !rel.IsToMany() {
		return fmt.Errorf("%s.%s is not a to-many relationship", id.Type, relName)
	}
	rec.toMany[rel.Name] = without(rec.toMany[rel.Name], target)
	s.detachInverseLocked(rec.Identity, rel, target)
	return nil
}

// Related returns the loaded records currently linked through rel. Links to
// records that are no longer loaded are skipped.
func (s *Store) Related(rec *Record, rel metadata.Relationship) []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rel.IsToOne() {
		target := rec.toOne[rel.Name]
		if target == nil {
			return nil
		}
		if r := s.records[*target]; r != nil {
			return []*Record{r}
		}
		return nil
	}

	ids := rec.toMany[rel.Name]
	out := make([]*Record, 0, len(ids))
	for _, id := range ids {
		if r := s.records[id]; r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ClearRelationship empties a relationship field on rec: to-many becomes an
// empty list and to-one becomes nil. Inverses are left alone.
func (s *Store) ClearRelationship(rec *Record, rel metadata.Relationship) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rel.IsToMany() {
		rec.toMany[rel.Name] = []Identity{}
		return
	}
	rec.toOne[rel.Name] = nil
}

// Unload forgets a record locally without any network call. Inverse links
// held by other loaded records are dropped.
func (s *Store) Unload(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(id)
}

// MarkDeleted moves a record to the deleted state and removes it from the
// identity map. Absent records are ignored.
func (s *Store) MarkDeleted(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec := s.records[id]; rec != nil {
		rec.State = StateDeleted
		rec.Errors = nil
		s.removeLocked(id)
	}
}

// MarkSaved is a local-only pseudo-save: the record becomes clean as if the
// server had accepted it. No request is issued.
func (s *Store) MarkSaved(ctx context.Context, id Identity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	if rec == nil {
		return fmt.Errorf("mark saved: %w: %s", ErrNotFound, id)
	}
	rec.State = StateSaved
	rec.Errors = nil
	rec.persisted = true
	return nil
}

// MarkInvalid is a local-only pseudo-invalidate: the record keeps its local
// changes and carries errs.
func (s *Store) MarkInvalid(ctx context.Context, id Identity, errs []ValidationError) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := s.records[id]
	if rec == nil {
		return fmt.Errorf("mark invalid: %w: %s", ErrNotFound, id)
	}
	rec.State = StateInvalid
	rec.Errors = append([]ValidationError(nil), errs...)
	return nil
}

func (s *Store) insertLocked(rec *Record) {
	s.records[rec.Identity] = rec
	s.byType[rec.Type] = append(s.byType[rec.Type], rec.Identity)
}

func (s *Store) removeLocked(id Identity) {
	rec := s.records[id]
	if rec == nil {
		return
	}
	for _, rel := range s.schema.RelationshipsOf(id.Type) {
		if rel.IsToOne() {
			if target := rec.toOne[rel.Name]; target != nil {
				s.detachInverseLocked(id, &rel, *target)
			}
			continue
		}
		for _, target := range rec.toMany[rel.Name] {
			s.detachInverseLocked(id, &rel, target)
		}
	}
	delete(s.records, id)
	s.byType[id.Type] = without(s.byType[id.Type], id)
}

func (s *Store) resolveLocked(id Identity, relName string) (*Record, *metadata.Relationship, error) {
	rec := s.records[id]
	if rec == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rel := s.schema.GetRelationship(id.Type, relName)
	if rel == nil {
		return nil, nil, fmt.Errorf("%w: %s.%s", ErrUnknownRelationship, id.Type, relName)
	}
	return rec, rel, nil
}

// touchLocked moves a clean record to dirty, and an invalid record whose
// errors were all addressed back to new or dirty.
func (s *Store) touchLocked(rec *Record) {
	switch rec.State {
	case StateSaved:
		rec.State = StateDirty
	case StateInvalid:
		if len(rec.Errors) > 0 {
			return
		}
		if rec.persisted {
			rec.State = StateDirty
		} else {
			rec.State = StateNew
		}
	}
}

func (s *Store) setToOneLocked(rec *Record, rel *metadata.Relationship, target *Identity) {
	old := rec.toOne[rel.Name]
	if old != nil && (target == nil || *old != *target) {
		s.detachInverseLocked(rec.Identity, rel, *old)
	}
	rec.LinkOne(rel.Name, target)
	if target != nil {
		s.attachInverseLocked(rec.Identity, rel, *target)
	}
}

func (s *Store) setToManyLocked(rec *Record, rel *metadata.Relationship, targets []Identity) {
	for _, old := range rec.toMany[rel.Name] {
		if indexOf(targets, old) < 0 {
			s.detachInverseLocked(rec.Identity, rel, old)
		}
	}
	rec.LinkMany(rel.Name, targets)
	for _, target := range targets {
		s.attachInverseLocked(rec.Identity, rel, target)
	}
}

func (s *Store) inverseOf(rel *metadata.Relationship) *metadata.Relationship {
	if rel.Inverse == "" {
		return nil
	}
	return s.schema.GetRelationship(rel.Target, rel.Inverse)
}

// attachInverseLocked records owner on target's side of rel, one level deep.
func (s *Store) attachInverseLocked(owner Identity, rel *metadata.Relationship, target Identity) {
	inv := s.inverseOf(rel)
	if inv == nil {
		return
	}
	t := s.records[target]
	if t == nil {
		return
	}
	if inv.IsToMany() {
		if indexOf(t.toMany[inv.Name], owner) < 0 {
			t.toMany[inv.Name] = append(t.toMany[inv.Name], owner)
		}
		return
	}
	prev := t.toOne[inv.Name]
	if prev != nil && *prev != owner {
		if p := s.records[*prev]; p != nil {
			if rel.IsToMany() {
				p.toMany[rel.Name] = without(p.toMany[rel.Name], target)
			} else if cur := p.toOne[rel.Name]; cur != nil && *cur == target {
				p.toOne[rel.Name] = nil
			}
		}
	}
	t.LinkOne(inv.Name, &owner)
}

func (s *Store) detachInverseLocked(owner Identity, rel *metadata.Relationship, target Identity) {
	inv := s.inverseOf(rel)
	if inv == nil {
		return
	}
	t := s.records[target]
	if t == nil {
		return
	}
	if inv.IsToMany() {
		t.toMany[inv.Name] = without(t.toMany[inv.Name], owner)
		return
	}
	if cur := t.toOne[inv.Name]; cur != nil && *cur == owner {
		t.toOne[inv.Name] = nil
	}
}

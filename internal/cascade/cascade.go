// Package cascade propagates deletes and saves across flagged relationships
// of in-memory records and routes nested validation errors back onto the
// records they belong to.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

var (
	// ErrRemoteRejection marks a remote failure unrelated to validation.
	ErrRemoteRejection = errors.New("remote rejected request")
	// ErrUnknownErrorShape marks a failure payload without the expected structure.
	ErrUnknownErrorShape = errors.New("unrecognized error payload")
)

// Flag selects which cascade flag a traversal follows.
type Flag int

const (
	CascadeDelete Flag = iota + 1
	CascadeSave
)

func (f Flag) String() string {
	switch f {
	case CascadeDelete:
		return "cascade-delete"
	case CascadeSave:
		return "cascade-save"
	default:
		return fmt.Sprintf("flag(%d)", int(f))
	}
}

func (f Flag) selects(rel metadata.Relationship) bool {
	switch f {
	case CascadeDelete:
		return rel.CascadeDelete
	case CascadeSave:
		return rel.CascadeSave
	default:
		return false
	}
}

// Store is the record store the coordinators mutate.
type Store interface {
	Peek(id records.Identity) *records.Record
	Push(rec *records.Record) *records.Record
	Related(rec *records.Record, rel metadata.Relationship) []*records.Record
	ClearRelationship(rec *records.Record, rel metadata.Relationship)
	Unload(id records.Identity)
	MarkDeleted(id records.Identity)
	MarkSaved(ctx context.Context, id records.Identity) error
	MarkInvalid(ctx context.Context, id records.Identity, errs []records.ValidationError) error
}

// Schema enumerates relationship descriptors per record type.
type Schema interface {
	RelationshipsOf(recordType string) []metadata.Relationship
}

// Remote persists records. SaveRecord is expected to persist the record and
// its embedded children in one request.
type Remote interface {
	DeleteRecord(ctx context.Context, rec *records.Record) (*DeleteResponse, error)
	SaveRecord(ctx context.Context, rec *records.Record) (*SaveResponse, error)
}

// DeleteResponse lists the records the server removed along with the root,
// when it reports them.
type DeleteResponse struct {
	Deleted []records.Identity
}

// SaveResponse carries the persisted root as returned by the server and any
// records it echoed back alongside it. Record may be nil.
type SaveResponse struct {
	Record   *records.Record
	Included []*records.Record
}

// ValidationFailure is a rejected write with structured per-record errors.
// Error identities may still use wire type names until routed.
type ValidationFailure struct {
	Identity records.Identity
	Errors   []records.ValidationError
}

func (e *ValidationFailure) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("validation failed for %s", e.Identity)
	}
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Identity, strings.Join(msgs, "; "))
}

package cascade

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"orgchart/internal/instrument"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// DeleteMode selects how the coordinator learns which records went away
// with the root.
type DeleteMode string

const (
	// DeleteWalk unloads the delete-cascade set computed before the request.
	DeleteWalk DeleteMode = "walk"
	// DeleteReported deletes what the server reports as deleted.
	DeleteReported DeleteMode = "reported"
)

// ParseDeleteMode validates a configured delete mode.
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch DeleteMode(s) {
	case DeleteWalk, DeleteReported:
		return DeleteMode(s), nil
	default:
		return "", fmt.Errorf("unknown delete mode %q", s)
	}
}

// DeleteResult reports what a cascade delete removed locally.
type DeleteResult struct {
	Root    records.Identity
	Removed []records.Identity
}

// DeleteCoordinator deletes a root record remotely and removes its
// delete-cascade graph from the local store.
type DeleteCoordinator struct {
	store  Store
	remote Remote
	walker *Walker
	mode   DeleteMode
	opts   options
}

func NewDeleteCoordinator(store Store, schema Schema, remote Remote, mode DeleteMode, opts ...Option) *DeleteCoordinator {
	if mode == "" {
		mode = DeleteWalk
	}
	return &DeleteCoordinator{
		store:  store,
		remote: remote,
		walker: NewWalker(store, schema),
		mode:   mode,
		opts:   buildOptions(opts),
	}
}

// Delete runs the configured variant.
func (c *DeleteCoordinator) Delete(ctx context.Context, root *records.Record) (*DeleteResult, error) {
	if c.mode == DeleteReported {
		return c.DeleteReported(ctx, root)
	}
	return c.DeleteCascading(ctx, root)
}

// DeleteCascading issues exactly one remote delete for root. Only once it
// succeeds are the records of the pre-delete cascade set unloaded, the
// root's delete-cascade relationship fields cleared and the root marked
// deleted. A failed delete leaves the store untouched and returns the
// remote error unchanged.
func (c *DeleteCoordinator) DeleteCascading(ctx context.Context, root *records.Record) (*DeleteResult, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "cascade", "delete", "cascade.delete")
	defer span.End()
	span.SetEntity(root.Type, root.ID)

	cascaded := c.walker.Collect(root, CascadeDelete)
	rels := c.walker.Relationships(root, CascadeDelete)

	if _, err := c.remote.DeleteRecord(ctx, root); err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())
		c.opts.metrics.CascadeOperation("delete", "error")
		return nil, err
	}

	result := &DeleteResult{Root: root.Identity}
	for _, rec := range cascaded {
		c.store.Unload(rec.Identity)
		result.Removed = append(result.Removed, rec.Identity)
	}
	c.finish(root, rels)

	log.Debug().Str("root", root.Identity.String()).Int("unloaded", len(result.Removed)).Msg("cascade delete complete")
	span.SetMetadata("removed", len(result.Removed))
	span.SetStatus("ok")
	c.opts.metrics.CascadeOperation("delete", "ok")
	return result, nil
}

// DeleteReported issues the remote delete and then deletes locally every
// record the server reports, plus, one level down, each reported record's
// own delete-cascade children the server did not list. Reported records
// that are not loaded are skipped.
func (c *DeleteCoordinator) DeleteReported(ctx context.Context, root *records.Record) (*DeleteResult, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "cascade", "delete", "cascade.delete_reported")
	defer span.End()
	span.SetEntity(root.Type, root.ID)

	rels := c.walker.Relationships(root, CascadeDelete)

	resp, err := c.remote.DeleteRecord(ctx, root)
	if err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())
		c.opts.metrics.CascadeOperation("delete", "error")
		return nil, err
	}

	result := &DeleteResult{Root: root.Identity}
	if resp == nil {
		resp = &DeleteResponse{}
	}

	reported := make(map[records.Identity]bool, len(resp.Deleted))
	for _, id := range resp.Deleted {
		reported[id] = true
	}

	for _, id := range resp.Deleted {
		if id == root.Identity {
			continue
		}
		rec := c.store.Peek(id)
		if rec == nil {
			continue
		}

		var children []*records.Record
		for _, rel := range c.walker.Relationships(rec, CascadeDelete) {
			children = append(children, c.store.Related(rec, rel)...)
		}

		c.store.MarkDeleted(id)
		result.Removed = append(result.Removed, id)

		for _, child := range children {
			if reported[child.Identity] || c.store.Peek(child.Identity) == nil {
				continue
			}
			c.store.MarkDeleted(child.Identity)
			result.Removed = append(result.Removed, child.Identity)
		}
	}
	c.finish(root, rels)

	span.SetMetadata("removed", len(result.Removed))
	span.SetStatus("ok")
	c.opts.metrics.CascadeOperation("delete", "ok")
	return result, nil
}

func (c *DeleteCoordinator) finish(root *records.Record, rels []metadata.Relationship) {
	for _, rel := range rels {
		c.store.ClearRelationship(root, rel)
	}
	c.store.MarkDeleted(root.Identity)
}

package cascade

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"orgchart/internal/instrument"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// SaveResult reports the outcome of a successful cascade save.
type SaveResult struct {
	Root        *records.Record
	Applied     []records.Identity // records updated from the response payload
	PseudoSaved []records.Identity // records marked saved without a request
}

// SaveCoordinator persists a root record together with its save-cascade
// graph and reconciles the local state of every record in it.
type SaveCoordinator struct {
	store  Store
	remote Remote
	walker *Walker
	router *Router
	opts   options
}

func NewSaveCoordinator(store Store, schema Schema, remote Remote, naming metadata.Naming, opts ...Option) *SaveCoordinator {
	return &SaveCoordinator{
		store:  store,
		remote: remote,
		walker: NewWalker(store, schema),
		router: NewRouter(naming),
		opts:   buildOptions(opts),
	}
}

// SaveCascading issues one remote save for root. On success the returned
// payload is applied, and every other record of the save-cascade set that is
// not already clean is pseudo-saved concurrently. On a validation failure the
// errors are routed: nested records are pseudo-invalidated (failures there
// are suppressed) and the returned *ValidationFailure carries only the root's
// own errors. Any other error is returned unchanged without touching the
// store.
func (c *SaveCoordinator) SaveCascading(ctx context.Context, root *records.Record) (*SaveResult, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "cascade", "save", "cascade.save")
	defer span.End()
	span.SetEntity(root.Type, root.ID)

	cascaded := c.walker.Collect(root, CascadeSave)

	resp, err := c.remote.SaveRecord(ctx, root)
	if err != nil {
		span.SetStatus("error")
		span.SetMetadata("error", err.Error())

		var vf *ValidationFailure
		if !errors.As(err, &vf) {
			c.opts.metrics.CascadeOperation("save", "error")
			return nil, err
		}
		c.opts.metrics.CascadeOperation("save", "invalid")
		return nil, c.reject(ctx, root, vf)
	}

	result := &SaveResult{Root: root}
	applied := map[records.Identity]bool{root.Identity: true}

	if resp != nil && resp.Record != nil {
		c.store.Push(resp.Record)
	} else if err := c.store.MarkSaved(ctx, root.Identity); err != nil {
		return nil, err
	}
	result.Applied = append(result.Applied, root.Identity)

	if resp != nil {
		for _, inc := range resp.Included {
			c.store.Push(inc)
			applied[inc.Identity] = true
			result.Applied = append(result.Applied, inc.Identity)
		}
	}

	for _, rec := range cascaded {
		if applied[rec.Identity] || rec.State == records.StateSaved {
			continue
		}
		result.PseudoSaved = append(result.PseudoSaved, rec.Identity)
	}

	var g errgroup.Group
	for _, id := range result.PseudoSaved {
		g.Go(func() error {
			return c.store.MarkSaved(ctx, id)
		})
	}
	if err := g.Wait(); err != nil {
		span.SetStatus("error")
		return nil, fmt.Errorf("mark cascaded records saved: %w", err)
	}
	c.opts.metrics.PseudoTransition("saved", len(result.PseudoSaved))

	log.Debug().Str("root", root.Identity.String()).
		Int("applied", len(result.Applied)).
		Int("pseudo_saved", len(result.PseudoSaved)).
		Msg("cascade save complete")
	span.SetMetadata("pseudo_saved", len(result.PseudoSaved))
	span.SetStatus("ok")
	c.opts.metrics.CascadeOperation("save", "ok")
	return result, nil
}

func (c *SaveCoordinator) reject(ctx context.Context, root *records.Record, vf *ValidationFailure) error {
	own, children := c.router.Route(vf.Errors, root.Identity)

	var g errgroup.Group
	invalidated := 0
	for id, errs := range children {
		if c.store.Peek(id) == nil {
			log.Debug().Str("record", id.String()).Msg("validation errors for record not loaded; dropped")
			continue
		}
		invalidated++
		g.Go(func() error {
			return c.store.MarkInvalid(ctx, id, errs)
		})
	}
	if err := g.Wait(); err != nil {
		log.Debug().Err(err).Msg("pseudo-invalidate of nested record failed")
	}
	c.opts.metrics.PseudoTransition("invalid", invalidated)

	if len(own) > 0 {
		if err := c.store.MarkInvalid(ctx, root.Identity, own); err != nil {
			log.Debug().Err(err).Str("root", root.Identity.String()).Msg("mark root invalid failed")
		}
	}
	return &ValidationFailure{Identity: root.Identity, Errors: own}
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"orgchart/internal/instrument"
	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/metrics"
	"orgchart/internal/store"
)

// WriteNode is one record of a nested write: the resource the request was
// issued for, or a resource embedded in a to-many relationship of its parent.
type WriteNode struct {
	Entity *metadata.Entity
	ID     string
	Fields map[string]any     // attribute name -> value
	Links  map[string]*string // to-one relationship name -> target id, nil clears
	// Pointer locates the resource in the request document, e.g.
	// "/data/relationships/departments/data/0".
	Pointer  string
	Parent   *WriteNode
	Via      *metadata.Relationship // parent's relationship embedding this node
	Children []*WriteNode

	exists bool
	old    map[string]any
}

// IsRoot reports whether the node is the resource the request was issued for.
func (n *WriteNode) IsRoot() bool {
	return n.Parent == nil
}

// Walk visits the node and its descendants depth first, parents before
// children.
func (n *WriteNode) Walk(fn func(*WriteNode)) {
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// IncludePaths returns the dotted embedded relationship paths the plan
// wrote, in wire form.
func (n *WriteNode) IncludePaths(naming metadata.Naming) []string {
	var paths []string
	seen := make(map[string]bool)
	var visit func(node *WriteNode, prefix string)
	visit = func(node *WriteNode, prefix string) {
		for _, c := range node.Children {
			path := naming.WireAttr(c.Via.Name)
			if prefix != "" {
				path = prefix + "." + path
			}
			if !seen[path] {
				seen[path] = true
				paths = append(paths, path)
			}
			visit(c, path)
		}
	}
	visit(n, "")

	// Only leaf paths are needed; prefixes are loaded on the way.
	var leaves []string
	for _, p := range paths {
		leaf := true
		for _, q := range paths {
			if strings.HasPrefix(q, p+".") {
				leaf = false
				break
			}
		}
		if leaf {
			leaves = append(leaves, p)
		}
	}
	return leaves
}

// PlanWrite builds the write tree from a request resource without touching
// the database. pathID is the id from the URL for updates, empty for creates.
// Structural problems (unknown attributes or relationships, wrong types) are
// reported as error details in the same shape as validation errors.
func PlanWrite(reg *metadata.Registry, entity *metadata.Entity, res jsonapi.Resource, pathID string) (*WriteNode, []ErrorDetail) {
	if pathID != "" && res.ID != "" && res.ID != pathID {
		return nil, []ErrorDetail{{
			Rule:    "id",
			Message: fmt.Sprintf("id %s does not match the URL id %s", res.ID, pathID),
			Source:  &jsonapi.ErrorSource{Pointer: "/data/id"},
		}}
	}
	if pathID != "" {
		res.ID = pathID
	}

	p := &planner{reg: reg, naming: reg.Naming()}
	root := p.plan(entity, res, "/data", nil, nil)
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return root, nil
}

type planner struct {
	reg    *metadata.Registry
	naming metadata.Naming
	errs   []ErrorDetail
}

func (p *planner) fail(node *WriteNode, pointer, attr, rule, msg string) {
	detail := ErrorDetail{Attribute: attr, Rule: rule, Message: msg, Source: &jsonapi.ErrorSource{Pointer: pointer}}
	if !node.IsRoot() {
		id := identifier(p.reg, node.Entity.Name, node.ID)
		detail.Source.Identity = &id
	}
	p.errs = append(p.errs, detail)
}

func (p *planner) plan(entity *metadata.Entity, res jsonapi.Resource, pointer string, parent *WriteNode, via *metadata.Relationship) *WriteNode {
	node := &WriteNode{
		Entity:  entity,
		ID:      res.ID,
		Fields:  make(map[string]any),
		Links:   make(map[string]*string),
		Pointer: pointer,
		Parent:  parent,
		Via:     via,
	}
	if node.ID == "" {
		node.ID = uuid.NewString()
	}

	if want := p.naming.WireType(entity.Name); res.Type != want {
		p.fail(node, pointer+"/type", "", "type", fmt.Sprintf("expected type %s, got %q", want, res.Type))
	}

	for key, val := range res.Attributes {
		name := p.naming.AttrName(key)
		if f := entity.GetField(name); f == nil || name == entity.PrimaryKey.Field {
			p.fail(node, pointer+"/attributes/"+key, key, "unknown", fmt.Sprintf("Unknown attribute: %s", key))
			continue
		}
		node.Fields[name] = val
	}

	for key, payload := range res.Relationships {
		relPointer := pointer + "/relationships/" + key
		rel := entity.GetRelationship(p.naming.AttrName(key))
		if rel == nil {
			p.fail(node, relPointer, "", "unknown", fmt.Sprintf("Unknown relationship: %s", key))
			continue
		}

		if rel.IsToOne() {
			target, ok := payload.ToOne()
			if !ok {
				p.fail(node, relPointer+"/data", "", "linkage", fmt.Sprintf("%s must be a single resource or null", key))
				continue
			}
			if target == nil {
				node.Links[rel.Name] = nil
				continue
			}
			tid := target.ID
			node.Links[rel.Name] = &tid
			continue
		}

		list, ok := payload.ToMany()
		if !ok {
			p.fail(node, relPointer+"/data", "", "linkage", fmt.Sprintf("%s must be a list", key))
			continue
		}
		if !rel.Embedded {
			if len(list) > 0 {
				p.fail(node, relPointer, "", "readonly", fmt.Sprintf("%s cannot be written through %s", key, entity.Name))
			}
			continue
		}
		target := p.reg.GetEntity(rel.Target)
		for i, item := range list {
			child := p.plan(target, item, relPointer+"/data/"+strconv.Itoa(i), node, rel)
			node.Children = append(node.Children, child)
		}
	}
	return node
}

// ExecuteWritePlan validates every node of the plan against the stored state
// and, when all of them pass, inserts or updates them in a single
// transaction, parents first. Nested records get their foreign key to the
// parent set from the tree. Returns the root id.
func ExecuteWritePlan(ctx context.Context, s *store.Store, reg *metadata.Registry, m *metrics.Metrics, root *WriteNode, isCreate bool) (string, error) {
	ctx, span := instrument.GetInstrumenter(ctx).StartSpan(ctx, "engine", "nested_write", "nested_write.execute")
	defer span.End()
	span.SetEntity(root.Entity.Name, root.ID)

	tx, err := s.BeginTx(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var loadErr error
	root.Walk(func(n *WriteNode) {
		if loadErr != nil {
			return
		}
		if n.Via != nil && n.Via.Inverse != "" {
			parentID := n.Parent.ID
			n.Links[n.Via.Inverse] = &parentID
		}
		row, err := fetchRecord(ctx, tx, s.Dialect, reg, n.Entity, n.ID)
		switch {
		case err == nil:
			n.exists = true
			n.old = rowAttributes(reg, n.Entity, row)
		case errors.Is(err, store.ErrNotFound):
			n.old = map[string]any{}
		default:
			loadErr = fmt.Errorf("load %s/%s: %w", n.Entity.Name, n.ID, err)
		}
	})
	if loadErr != nil {
		span.SetStatus("error")
		return "", loadErr
	}

	if isCreate && root.exists {
		span.SetStatus("error")
		return "", ConflictError(fmt.Sprintf("%s with id %s already exists", root.Entity.Name, root.ID))
	}
	if !isCreate && !root.exists {
		span.SetStatus("error")
		return "", NotFoundError(root.Entity.Name, root.ID)
	}

	if details := validatePlan(ctx, reg, m, root); len(details) > 0 {
		span.SetStatus("invalid")
		span.SetMetadata("errors", len(details))
		return "", ValidationError(details)
	}

	var writeErr error
	root.Walk(func(n *WriteNode) {
		if writeErr != nil {
			return
		}
		action := "update"
		if n.exists {
			writeErr = updateNode(ctx, tx, s.Dialect, reg, n)
		} else {
			action = "create"
			writeErr = insertNode(ctx, tx, s.Dialect, reg, n)
		}
		if writeErr == nil {
			m.NestedWrite(n.Entity.Name, action)
		}
	})
	if writeErr != nil {
		span.SetStatus("error")
		return "", store.MapError(s.Dialect, writeErr)
	}

	if err := tx.Commit(); err != nil {
		span.SetStatus("error")
		return "", fmt.Errorf("commit: %w", err)
	}
	span.SetStatus("ok")
	return root.ID, nil
}

// validatePlan checks every node with its stored attributes overlaid by the
// submitted ones. Details of nested nodes carry the node's identity.
func validatePlan(ctx context.Context, reg *metadata.Registry, m *metrics.Metrics, root *WriteNode) []ErrorDetail {
	naming := reg.Naming()
	var all []ErrorDetail

	root.Walk(func(n *WriteNode) {
		merged := make(map[string]any, len(n.old)+len(n.Fields))
		for k, v := range n.old {
			merged[k] = v
		}
		for k, v := range n.Fields {
			merged[k] = v
		}

		details := ValidateRequired(n.Entity, merged)
		details = append(details, EvaluateRules(ctx, reg, n.Entity.Name, merged, !n.exists)...)
		if len(details) == 0 {
			return
		}
		m.ValidationFailure(n.Entity.Name)

		for _, d := range details {
			attr := naming.WireAttr(d.Attribute)
			d.Attribute = attr
			d.Source = &jsonapi.ErrorSource{Pointer: n.Pointer + "/attributes/" + attr}
			if !n.IsRoot() {
				id := identifier(reg, n.Entity.Name, n.ID)
				d.Source.Identity = &id
			}
			all = append(all, d)
		}
	})
	return all
}

func rowAttributes(reg *metadata.Registry, entity *metadata.Entity, row map[string]any) map[string]any {
	naming := reg.Naming()
	attrs := make(map[string]any, len(entity.Fields))
	for _, f := range entity.Attributes() {
		attrs[f.Name] = row[naming.Column(f.Name)]
	}
	return attrs
}

// nodeColumns returns the columns and values the node writes, in a stable
// order: attributes in declaration order, then foreign keys.
func nodeColumns(reg *metadata.Registry, n *WriteNode) ([]string, []any) {
	naming := reg.Naming()
	var cols []string
	var vals []any
	for _, f := range n.Entity.Attributes() {
		if v, ok := n.Fields[f.Name]; ok {
			cols = append(cols, naming.Column(f.Name))
			vals = append(vals, v)
		}
	}
	for _, rel := range n.Entity.ForeignKeys() {
		target, ok := n.Links[rel.Name]
		if !ok {
			continue
		}
		cols = append(cols, rel.ForeignKey())
		if target == nil {
			vals = append(vals, nil)
		} else {
			vals = append(vals, *target)
		}
	}
	return cols, vals
}

func insertNode(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, n *WriteNode) error {
	pb := dialect.NewParamBuilder()
	cols, vals := nodeColumns(reg, n)
	cols = append([]string{pkColumn(reg, n.Entity)}, cols...)
	vals = append([]any{n.ID}, vals...)

	phs := make([]string, len(vals))
	for i, v := range vals {
		phs[i] = pb.Add(v)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		n.Entity.Table, strings.Join(cols, ", "), strings.Join(phs, ", "))
	if _, err := store.Exec(ctx, q, sql, pb.Params()...); err != nil {
		return fmt.Errorf("insert %s: %w", n.Entity.Table, err)
	}
	return nil
}

func updateNode(ctx context.Context, q store.Querier, dialect store.Dialect, reg *metadata.Registry, n *WriteNode) error {
	cols, vals := nodeColumns(reg, n)
	if len(cols) == 0 {
		return nil
	}
	pb := dialect.NewParamBuilder()
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + pb.Add(vals[i])
	}
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		n.Entity.Table, strings.Join(sets, ", "), pkColumn(reg, n.Entity), pb.Add(n.ID))
	if _, err := store.Exec(ctx, q, sql, pb.Params()...); err != nil {
		return fmt.Errorf("update %s: %w", n.Entity.Table, err)
	}
	return nil
}

package cascade

import (
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// Walker collects the records reachable from a root through relationships
// carrying a given cascade flag.
type Walker struct {
	store  Store
	schema Schema
}

func NewWalker(store Store, schema Schema) *Walker {
	return &Walker{store: store, schema: schema}
}

// Relationships returns rec's relationship descriptors that carry flag, in
// declaration order.
func (w *Walker) Relationships(rec *records.Record, flag Flag) []metadata.Relationship {
	var rels []metadata.Relationship
	for _, rel := range w.schema.RelationshipsOf(rec.Type) {
		if flag.selects(rel) {
			rels = append(rels, rel)
		}
	}
	return rels
}

// Collect returns the cascade set of root for flag: every record reachable
// through flagged relationships, breadth first, each exactly once, root
// excluded. Cycles terminate on the visited set.
func (w *Walker) Collect(root *records.Record, flag Flag) []*records.Record {
	visited := map[records.Identity]bool{root.Identity: true}
	var out []*records.Record

	queue := []*records.Record{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, rel := range w.Relationships(cur, flag) {
			for _, rec := range w.store.Related(cur, rel) {
				if visited[rec.Identity] {
					continue
				}
				visited[rec.Identity] = true
				out = append(out, rec)
				queue = append(queue, rec)
			}
		}
	}
	return out
}

// IncludePaths returns the dotted wire include paths that load the whole
// flag-cascade graph of recordType, one per leaf. A type already on the
// current path ends it.
func IncludePaths(schema Schema, naming metadata.Naming, recordType string, flag Flag) []string {
	var paths []string
	var walk func(typ, prefix string, onPath map[string]bool)
	walk = func(typ, prefix string, onPath map[string]bool) {
		leaf := true
		for _, rel := range schema.RelationshipsOf(typ) {
			if !flag.selects(rel) || onPath[rel.Target] {
				continue
			}
			leaf = false
			path := naming.WireAttr(rel.Name)
			if prefix != "" {
				path = prefix + "." + path
			}
			onPath[rel.Target] = true
			walk(rel.Target, path, onPath)
			delete(onPath, rel.Target)
		}
		if leaf && prefix != "" {
			paths = append(paths, prefix)
		}
	}
	walk(recordType, "", map[string]bool{recordType: true})
	return paths
}

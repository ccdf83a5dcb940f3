package remote

import (
	"strings"

	"orgchart/internal/jsonapi"
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// decoder turns wire resources into records. Embedded resources found in
// relationship data come back as extra records.
type decoder struct {
	schema *metadata.Registry
	naming metadata.Naming
}

func (d decoder) identity(w jsonapi.Identifier) records.Identity {
	return records.Identity{Type: d.naming.ModelName(w.Type), ID: w.ID}
}

func (d decoder) record(res jsonapi.Resource) (*records.Record, []*records.Record) {
	rec := records.NewRecord(d.identity(jsonapi.Identifier{Type: res.Type, ID: res.ID}))
	for key, v := range res.Attributes {
		rec.Attrs[d.naming.AttrName(key)] = v
	}

	var nested []*records.Record
	embed := func(item jsonapi.Resource) {
		if !item.IsEmbedded() {
			return
		}
		child, more := d.record(item)
		nested = append(nested, child)
		nested = append(nested, more...)
	}

	for _, rel := range d.schema.RelationshipsOf(rec.Type) {
		payload, ok := res.Relationships[d.naming.WireAttr(rel.Name)]
		if !ok {
			continue
		}

		if rel.IsToOne() {
			target, ok := payload.ToOne()
			if !ok {
				continue
			}
			if target == nil {
				rec.LinkOne(rel.Name, nil)
				continue
			}
			tid := d.identity(jsonapi.Identifier{Type: target.Type, ID: target.ID})
			rec.LinkOne(rel.Name, &tid)
			embed(*target)
			continue
		}

		list, ok := payload.ToMany()
		if !ok {
			continue
		}
		ids := make([]records.Identity, 0, len(list))
		for _, item := range list {
			ids = append(ids, d.identity(jsonapi.Identifier{Type: item.Type, ID: item.ID}))
			embed(item)
		}
		rec.LinkMany(rel.Name, ids)
	}
	return rec, nested
}

func (d decoder) document(doc jsonapi.Document) (*records.Record, []*records.Record) {
	var root *records.Record
	var extra []*records.Record
	if doc.Data != nil {
		root, extra = d.record(*doc.Data)
	}
	for _, inc := range doc.Included {
		rec, more := d.record(inc)
		extra = append(extra, rec)
		extra = append(extra, more...)
	}
	return root, extra
}

// validationErrors converts wire error objects. A missing attribute is taken
// from the last segment of the source pointer. Identities keep the wire type.
func (d decoder) validationErrors(objs []jsonapi.ErrorObject) []records.ValidationError {
	out := make([]records.ValidationError, 0, len(objs))
	for _, o := range objs {
		ve := records.ValidationError{Message: o.Message}

		attr := o.Attribute
		if attr == "" && o.Source != nil && strings.Contains(o.Source.Pointer, "/attributes/") {
			attr = o.Source.Pointer[strings.LastIndex(o.Source.Pointer, "/")+1:]
		}
		if attr != "" {
			ve.Attribute = d.naming.AttrName(attr)
		}
		if o.Source != nil && o.Source.Identity != nil {
			ve.Identity = &records.Identity{Type: o.Source.Identity.Type, ID: o.Source.Identity.ID}
		}
		out = append(out, ve)
	}
	return out
}

package cascade

import (
	"orgchart/internal/metadata"
	"orgchart/internal/records"
)

// Router partitions a flat validation error list by target record.
type Router struct {
	naming metadata.Naming
}

func NewRouter(naming metadata.Naming) *Router {
	return &Router{naming: naming}
}

// Route splits errs into the root's own errors and errors filed under the
// nested records they name. An error without identity, or whose identity
// matches root once its type is converted from the wire form, belongs to the
// root; own errors come back without identity.
func (r *Router) Route(errs []records.ValidationError, root records.Identity) ([]records.ValidationError, map[records.Identity][]records.ValidationError) {
	var own []records.ValidationError
	children := make(map[records.Identity][]records.ValidationError)

	for _, e := range errs {
		if e.Identity == nil {
			own = append(own, e)
			continue
		}
		id := records.Identity{Type: r.naming.ModelName(e.Identity.Type), ID: e.Identity.ID}
		if id == root {
			e.Identity = nil
			own = append(own, e)
			continue
		}
		e.Identity = &id
		children[id] = append(children[id], e)
	}
	return own, children
}

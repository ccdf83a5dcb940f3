package metadata

import "sync"

type Registry struct {
	mu         sync.RWMutex
	naming     Naming
	entities   map[string]*Entity
	byWireType map[string]*Entity
	order      []string
	rules      map[string][]*Rule // keyed by entity name
}

func NewRegistry() *Registry {
	return &Registry{
		naming:     JSONAPINaming{},
		entities:   make(map[string]*Entity),
		byWireType: make(map[string]*Entity),
		rules:      make(map[string][]*Rule),
	}
}

// Naming returns the wire naming convention used by the registry.
func (r *Registry) Naming() Naming {
	return r.naming
}

// GetEntity returns the entity with the given model name, or nil.
func (r *Registry) GetEntity(name string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entities[name]
}

// EntityForWireType resolves a wire type such as "departments" to its entity.
func (r *Registry) EntityForWireType(wireType string) *Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byWireType[wireType]
}

// AllEntities returns all registered entities in declaration order.
func (r *Registry) AllEntities() []*Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entities := make([]*Entity, 0, len(r.order))
	for _, name := range r.order {
		entities = append(entities, r.entities[name])
	}
	return entities
}

// RelationshipsOf returns the relationship descriptors declared for a model
// type, in declaration order. Unknown types have none.
func (r *Registry) RelationshipsOf(recordType string) []Relationship {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e := r.entities[recordType]
	if e == nil {
		return nil
	}
	return e.Relationships
}

// GetRelationship returns the named relationship of a model type, or nil.
func (r *Registry) GetRelationship(recordType, name string) *Relationship {
	e := r.GetEntity(recordType)
	if e == nil {
		return nil
	}
	return e.GetRelationship(name)
}

// GetRulesForEntity returns the validation rules for an entity.
func (r *Registry) GetRulesForEntity(entityName string) []*Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[entityName]
}

// Load replaces all entities in the registry.
func (r *Registry) Load(entities []*Entity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entities = make(map[string]*Entity, len(entities))
	r.byWireType = make(map[string]*Entity, len(entities))
	r.order = r.order[:0]
	for _, e := range entities {
		r.entities[e.Name] = e
		r.byWireType[r.naming.WireType(e.Name)] = e
		r.order = append(r.order, e.Name)
	}
}

// LoadRules replaces all validation rules in the registry.
func (r *Registry) LoadRules(rules []*Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.rules = make(map[string][]*Rule)
	for _, rule := range rules {
		r.rules[rule.Entity] = append(r.rules[rule.Entity], rule)
	}
}

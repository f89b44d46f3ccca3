package bulkload

// Registry maps entity types to their known IDs. It is populated write-once
// per dependency level: a level's IDs are only added after the whole level
// passed schema and referential validation, and lookups within a level only
// ever see strictly lower levels.
type Registry struct {
	ids map[string]map[string]struct{}
}

// NewRegistry creates an empty FK registry.
func NewRegistry() *Registry {
	return &Registry{ids: make(map[string]map[string]struct{})}
}

// Add records IDs for an entity type.
func (r *Registry) Add(entityType string, ids ...string) {
	set, ok := r.ids[entityType]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		r.ids[entityType] = set
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
}

// Has reports whether an ID is known for an entity type.
func (r *Registry) Has(entityType, id string) bool {
	_, ok := r.ids[entityType][id]
	return ok
}

// Count returns the number of known IDs for an entity type.
func (r *Registry) Count(entityType string) int {
	return len(r.ids[entityType])
}

package engine

// HabitResolver maps habit names to ids. The habit subsystem owns habits;
// this package only holds weak id references, so implementations live at the
// integration boundary.
type HabitResolver interface {
	// ResolveHabitIDs returns ids for the names it recognizes. Unknown names
	// are silently omitted, not errors.
	ResolveHabitIDs(names []string) ([]string, error)
}

// StaticHabitResolver resolves from a fixed name→id map. Useful for tests and
// single-tenant deployments where the habit catalog is known up front.
type StaticHabitResolver map[string]string

func (r StaticHabitResolver) ResolveHabitIDs(names []string) ([]string, error) {
	var ids []string
	for _, name := range names {
		if id, ok := r[name]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// NopHabitResolver resolves nothing. Used when no habit subsystem is wired.
type NopHabitResolver struct{}

func (NopHabitResolver) ResolveHabitIDs(names []string) ([]string, error) {
	return nil, nil
}

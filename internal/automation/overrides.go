package automation

import "sort"

// OverrideTracker is the set of entities a user switched off by hand while
// the door was open. Marked entities are left alone by the door until the
// whole set is cleared.
type OverrideTracker struct {
	marked map[string]struct{}
}

// NewOverrideTracker creates an empty tracker.
func NewOverrideTracker() *OverrideTracker {
	return &OverrideTracker{marked: make(map[string]struct{})}
}

// Mark adds the entity. Marking twice is the same as marking once.
func (o *OverrideTracker) Mark(entityID string) {
	o.marked[entityID] = struct{}{}
}

// IsMarked reports whether the entity is overridden.
func (o *OverrideTracker) IsMarked(entityID string) bool {
	_, ok := o.marked[entityID]
	return ok
}

// ClearAll empties the set and returns what it held, sorted.
func (o *OverrideTracker) ClearAll() []string {
	cleared := o.List()
	o.marked = make(map[string]struct{})
	return cleared
}

// List returns the overridden entities, sorted.
func (o *OverrideTracker) List() []string {
	out := make([]string, 0, len(o.marked))
	for id := range o.marked {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of overridden entities.
func (o *OverrideTracker) Len() int {
	return len(o.marked)
}

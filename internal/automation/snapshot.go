package automation

// StateReader is the part of Actuator a SnapshotStore needs.
type StateReader interface {
	FullState(entityID string) (EntityState, bool)
}

// SnapshotStore holds at most one StoredState per entity.
//
// Snapshots are taken right before an entity is auto-activated and are
// consumed exactly once when the entity is restored.
type SnapshotStore struct {
	reader StateReader
	logger Logger
	states map[string]StoredState
}

// NewSnapshotStore creates an empty store reading entity state from reader.
func NewSnapshotStore(reader StateReader, logger Logger) *SnapshotStore {
	if logger == nil {
		logger = noopLogger{}
	}
	return &SnapshotStore{
		reader: reader,
		logger: logger,
		states: make(map[string]StoredState),
	}
}

// Take captures the entity's current state, overwriting any previous entry.
//
// Attributes are filtered to the restorable set. If the host cannot report
// a state for the entity nothing is stored, the failure is logged and Take
// returns false.
func (s *SnapshotStore) Take(entityID string) (StoredState, bool) {
	current, ok := s.reader.FullState(entityID)
	if !ok || current.State == "" {
		s.logger.Error("no state found for entity, snapshot skipped", "entity_id", entityID)
		return StoredState{}, false
	}

	stored := StoredState{
		EntityID:   entityID,
		State:      current.State,
		Attributes: current.Attributes.Restorable(),
	}
	s.states[entityID] = stored
	s.logger.Debug("storing state", "snapshot", stored.String())
	return stored, true
}

// Has reports whether a snapshot is held for the entity.
func (s *SnapshotStore) Has(entityID string) bool {
	_, ok := s.states[entityID]
	return ok
}

// Pop returns and removes the entity's snapshot.
// A second Pop for the same entity returns false.
func (s *SnapshotStore) Pop(entityID string) (StoredState, bool) {
	stored, ok := s.states[entityID]
	if !ok {
		return StoredState{}, false
	}
	delete(s.states, entityID)
	s.logger.Debug("popping state", "snapshot", stored.String())
	return stored, true
}

// Discard drops the entity's snapshot without returning it.
func (s *SnapshotStore) Discard(entityID string) {
	delete(s.states, entityID)
}

// Len returns the number of snapshots held.
func (s *SnapshotStore) Len() int {
	return len(s.states)
}

package prefs

import (
	"context"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
// Suitable for development and testing.
type MemoryStorage struct {
	mu          sync.RWMutex
	settings    []SettingRecord
	projections []ProviderProjection
	nextID      int64
}

// NewMemoryStorage creates a new in-memory settings storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{nextID: 1}
}

func recipientIDs(r Recipient) (userID, teamID *int64) {
	id := r.ID
	if r.Kind == KindTeam {
		return nil, &id
	}
	return &id, nil
}

func (s *MemoryStorage) Get(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient) (*SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The uniqueness invariant should guarantee 0 or 1 matches; scan for the
	// lowest id defensively rather than erroring on duplicates.
	var found *SettingRecord
	for i := range s.settings {
		rec := s.settings[i]
		if rec.Provider != provider || rec.Type != t || rec.Scope != scope || rec.Recipient() != recipient {
			continue
		}
		if found == nil || rec.ID < found.ID {
			match := rec
			found = &match
		}
	}
	return found, nil
}

func (s *MemoryStorage) Upsert(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.settings {
		rec := &s.settings[i]
		if rec.Provider != provider || rec.Type != t || rec.Scope != scope || rec.Recipient() != recipient {
			continue
		}
		if rec.Value == value {
			return false, nil
		}
		rec.Value = value
		return true, nil
	}

	userID, teamID := recipientIDs(recipient)
	s.settings = append(s.settings, SettingRecord{
		ID:       s.nextID,
		Provider: provider,
		Type:     t,
		Scope:    scope,
		UserID:   userID,
		TeamID:   teamID,
		Value:    value,
	})
	s.nextID++
	return true, nil
}

func (s *MemoryStorage) Query(ctx context.Context, f Filter) ([]SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []SettingRecord
	for _, rec := range s.settings {
		if f.matches(rec.Provider, rec.Type, rec.Scope, rec.Recipient()) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryStorage) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []SettingRecord
	var removed int64
	for _, rec := range s.settings {
		if f.matches(rec.Provider, rec.Type, rec.Scope, rec.Recipient()) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	s.settings = kept
	return removed, nil
}

func (s *MemoryStorage) ListForParent(ctx context.Context, t AlertType, parent Scope, recipients RecipientSet) ([]SettingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if recipients.IsEmpty() {
		return nil, nil
	}

	var out []SettingRecord
	for _, rec := range s.settings {
		if rec.Type != t || !recipients.Contains(rec.Recipient()) {
			continue
		}
		switch {
		case rec.Scope == parent:
		case rec.Scope.Type == ScopeUser && containsID(recipients.UserIDs, rec.Scope.ID):
		case rec.Scope.Type == ScopeTeam && containsID(recipients.TeamIDs, rec.Scope.ID):
		default:
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *MemoryStorage) UpsertProjection(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.projections {
		p := &s.projections[i]
		if p.Provider == provider && p.Type == t && p.Scope == scope && p.Recipient() == recipient {
			p.Value = value
			return nil
		}
	}

	userID, teamID := recipientIDs(recipient)
	s.projections = append(s.projections, ProviderProjection{
		ID:       s.nextID,
		Provider: provider,
		Type:     t,
		Scope:    scope,
		UserID:   userID,
		TeamID:   teamID,
		Value:    value,
	})
	s.nextID++
	return nil
}

func (s *MemoryStorage) QueryProjections(ctx context.Context, f Filter) ([]ProviderProjection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ProviderProjection
	for _, p := range s.projections {
		if f.matches(p.Provider, p.Type, p.Scope, p.Recipient()) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStorage) DeleteProjections(ctx context.Context, f Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var kept []ProviderProjection
	var removed int64
	for _, p := range s.projections {
		if f.matches(p.Provider, p.Type, p.Scope, p.Recipient()) {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	s.projections = kept
	return removed, nil
}

package prefs

import "context"

// RecipientSet is an explicit tagged filter over mixed recipients. Queries
// always express the user/team OR explicitly instead of reflecting over
// columns at runtime.
type RecipientSet struct {
	UserIDs []int64
	TeamIDs []int64
}

// NewRecipientSet partitions and deduplicates recipients into id sets.
func NewRecipientSet(recipients ...Recipient) RecipientSet {
	var set RecipientSet
	seenUsers := make(map[int64]struct{}, len(recipients))
	seenTeams := make(map[int64]struct{}, len(recipients))
	for _, r := range recipients {
		switch r.Kind {
		case KindUser:
			if _, ok := seenUsers[r.ID]; !ok {
				seenUsers[r.ID] = struct{}{}
				set.UserIDs = append(set.UserIDs, r.ID)
			}
		case KindTeam:
			if _, ok := seenTeams[r.ID]; !ok {
				seenTeams[r.ID] = struct{}{}
				set.TeamIDs = append(set.TeamIDs, r.ID)
			}
		}
	}
	return set
}

// IsEmpty reports whether the set matches no recipient at all.
func (s RecipientSet) IsEmpty() bool {
	return len(s.UserIDs) == 0 && len(s.TeamIDs) == 0
}

// Contains reports whether the recipient is a member of the set.
func (s RecipientSet) Contains(r Recipient) bool {
	ids := s.UserIDs
	if r.Kind == KindTeam {
		ids = s.TeamIDs
	}
	for _, id := range ids {
		if id == r.ID {
			return true
		}
	}
	return false
}

// Filter narrows setting or projection queries. Zero values mean "any".
// Recipients, when non-empty, matches rows whose user_id OR team_id is in the
// corresponding id set.
type Filter struct {
	Provider   Provider
	Type       AlertType
	Types      []AlertType
	ScopeType  ScopeType
	ScopeID    int64
	Recipients RecipientSet
}

// matches applies the filter in-process; shared by MemoryStorage and tests.
func (f Filter) matches(provider Provider, t AlertType, scope Scope, recipient Recipient) bool {
	if f.Provider != "" && provider != f.Provider {
		return false
	}
	if f.Type != "" && t != f.Type {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, ft := range f.Types {
			if t == ft {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.ScopeType != "" && scope.Type != f.ScopeType {
		return false
	}
	if f.ScopeID != 0 && scope.ID != f.ScopeID {
		return false
	}
	if !f.Recipients.IsEmpty() && !f.Recipients.Contains(recipient) {
		return false
	}
	return true
}

// Storage persists raw setting rows and the derived provider projection.
//
// Implementations must uphold the uniqueness invariant: at most one setting
// row per (provider, type, scope_type, scope_identifier, user_id, team_id).
type Storage interface {
	// Get returns the single setting row for the exact key, or nil if none
	// exists. If duplicates slipped in despite the constraint, the row with
	// the lowest id wins.
	Get(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient) (*SettingRecord, error)

	// Upsert writes the value for the exact key. It reports whether the
	// stored value actually changed; rewriting the same value is a no-op.
	Upsert(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) (bool, error)

	// Query returns all setting rows matching the filter.
	Query(ctx context.Context, f Filter) ([]SettingRecord, error)

	// DeleteMatching bulk-deletes setting rows matching the filter. It
	// reports the number of rows removed.
	DeleteMatching(ctx context.Context, f Filter) (int64, error)

	// ListForParent fetches, in one query, every setting row for the alert
	// type that is scoped either to the parent or to any recipient's own
	// global scope, restricted to the recipient set.
	ListForParent(ctx context.Context, t AlertType, parent Scope, recipients RecipientSet) ([]SettingRecord, error)

	// UpsertProjection writes one derived provider projection row.
	UpsertProjection(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) error

	// QueryProjections returns projection rows matching the filter.
	QueryProjections(ctx context.Context, f Filter) ([]ProviderProjection, error)

	// DeleteProjections bulk-deletes projection rows matching the filter.
	DeleteProjections(ctx context.Context, f Filter) (int64, error)
}

package prefs

// ResolveScope maps a recipient plus an optional parent to the storage scope
// a setting should be written under. Zero-valued projectID/organizationID
// mean "not supplied". Precedence when both parents are passed follows the
// most specific tier: project beats organization.
//
// With no parent the scope falls back to the recipient's own global tier.
// Pure function, no side effects.
func ResolveScope(recipient Recipient, projectID, organizationID int64) (Scope, error) {
	if recipient.ID == 0 || (recipient.Kind != KindUser && recipient.Kind != KindTeam) {
		return Scope{}, ErrInvalidScope
	}

	switch {
	case projectID != 0:
		return Scope{Type: ScopeProject, ID: projectID}, nil
	case organizationID != 0:
		return Scope{Type: ScopeOrganization, ID: organizationID}, nil
	default:
		return recipient.OwnScope(), nil
	}
}

// ResolveScopeIDs is the untagged form of ResolveScope for callers that carry
// raw id columns instead of a Recipient. Exactly one of userID/teamID must be
// non-zero or ErrInvalidScope is returned.
func ResolveScopeIDs(userID, teamID, projectID, organizationID int64) (Scope, error) {
	if (userID == 0) == (teamID == 0) {
		return Scope{}, ErrInvalidScope
	}
	recipient := UserRecipient(userID)
	if teamID != 0 {
		recipient = TeamRecipient(teamID)
	}
	return ResolveScope(recipient, projectID, organizationID)
}

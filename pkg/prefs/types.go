package prefs

// Provider identifies a notification delivery channel.
type Provider string

const (
	ProviderEmail   Provider = "email"
	ProviderSlack   Provider = "slack"
	ProviderMSTeams Provider = "msteams"
)

// PersonalProviders is the fixed catalog of providers that carry personal
// notifications. The projection rebuilder iterates exactly this set.
func PersonalProviders() []Provider {
	return []Provider{ProviderEmail, ProviderSlack, ProviderMSTeams}
}

// AlertType identifies a category of notifications a recipient can tune.
type AlertType string

const (
	AlertIssue           AlertType = "alerts"
	AlertWorkflow        AlertType = "workflow"
	AlertDeploy          AlertType = "deploy"
	AlertApproval        AlertType = "approval"
	AlertQuota           AlertType = "quota"
	AlertSpikeProtection AlertType = "spikeProtection"
)

// AlertTypes returns the closed set of alert types in a stable order.
func AlertTypes() []AlertType {
	return []AlertType{
		AlertIssue,
		AlertWorkflow,
		AlertDeploy,
		AlertApproval,
		AlertQuota,
		AlertSpikeProtection,
	}
}

// Value is a notification setting option value.
//
// ValueDefault is never persisted: a missing row is semantically equivalent
// to DEFAULT, and writing DEFAULT deletes the row.
type Value string

const (
	ValueDefault       Value = "default"
	ValueAlways        Value = "always"
	ValueNever         Value = "never"
	ValueSubscribeOnly Value = "subscribe_only"
	ValueCommittedOnly Value = "committed_only"
)

// validValuesForType restricts which values a caller may set per alert type.
// SUBSCRIBE_ONLY only makes sense for issue alerts and COMMITTED_ONLY only for
// deploy notifications.
var validValuesForType = map[AlertType][]Value{
	AlertIssue:           {ValueAlways, ValueSubscribeOnly, ValueNever},
	AlertWorkflow:        {ValueAlways, ValueSubscribeOnly, ValueNever},
	AlertDeploy:          {ValueAlways, ValueCommittedOnly, ValueNever},
	AlertApproval:        {ValueAlways, ValueNever},
	AlertQuota:           {ValueAlways, ValueNever},
	AlertSpikeProtection: {ValueAlways, ValueNever},
}

// ValidValue reports whether value may be written for the given alert type.
// ValueDefault is always valid since it maps to a delete.
func ValidValue(t AlertType, v Value) bool {
	if v == ValueDefault {
		return true
	}
	for _, valid := range validValuesForType[t] {
		if v == valid {
			return true
		}
	}
	return false
}

// ScopeType identifies the tier a setting applies to.
type ScopeType string

const (
	ScopeUser         ScopeType = "user"
	ScopeTeam         ScopeType = "team"
	ScopeProject      ScopeType = "project"
	ScopeOrganization ScopeType = "organization"
)

// Scope is a storage key component: the tier plus the identifier of the
// entity at that tier.
type Scope struct {
	Type ScopeType
	ID   int64
}

// RecipientKind tags a Recipient as a user or a team.
type RecipientKind string

const (
	KindUser RecipientKind = "user"
	KindTeam RecipientKind = "team"
)

// Recipient is a resolved notification target. Identity resolution happens
// upstream; this package only consumes the tagged form.
type Recipient struct {
	Kind RecipientKind
	ID   int64
}

// UserRecipient builds a user-kind recipient.
func UserRecipient(id int64) Recipient {
	return Recipient{Kind: KindUser, ID: id}
}

// TeamRecipient builds a team-kind recipient.
func TeamRecipient(id int64) Recipient {
	return Recipient{Kind: KindTeam, ID: id}
}

// OwnScope returns the recipient's global scope, used when no project or
// organization override applies.
func (r Recipient) OwnScope() Scope {
	if r.Kind == KindTeam {
		return Scope{Type: ScopeTeam, ID: r.ID}
	}
	return Scope{Type: ScopeUser, ID: r.ID}
}

// SettingRecord is one persisted notification preference row. Exactly one of
// UserID/TeamID is set, matching the Recipient tag.
type SettingRecord struct {
	ID       int64
	Provider Provider
	Type     AlertType
	Scope    Scope
	UserID   *int64
	TeamID   *int64
	Value    Value
}

// Recipient reconstructs the tagged recipient from the id columns.
func (s SettingRecord) Recipient() Recipient {
	if s.TeamID != nil {
		return TeamRecipient(*s.TeamID)
	}
	if s.UserID != nil {
		return UserRecipient(*s.UserID)
	}
	return Recipient{}
}

// ProviderProjection is one derived row summarizing whether a recipient has
// any standing opt-in for a (provider, alert type) pair. Value is restricted
// to ALWAYS or NEVER; ambiguous pairs have no row.
type ProviderProjection struct {
	ID       int64
	Provider Provider
	Type     AlertType
	Scope    Scope
	UserID   *int64
	TeamID   *int64
	Value    Value
}

// Recipient reconstructs the tagged recipient from the id columns.
func (p ProviderProjection) Recipient() Recipient {
	if p.TeamID != nil {
		return TeamRecipient(*p.TeamID)
	}
	if p.UserID != nil {
		return UserRecipient(*p.UserID)
	}
	return Recipient{}
}

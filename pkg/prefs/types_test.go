package prefs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidValue(t *testing.T) {
	tests := []struct {
		name  string
		t     AlertType
		v     Value
		valid bool
	}{
		{"always valid for issue alerts", AlertIssue, ValueAlways, true},
		{"subscribe_only valid for issue alerts", AlertIssue, ValueSubscribeOnly, true},
		{"committed_only invalid for issue alerts", AlertIssue, ValueCommittedOnly, false},
		{"committed_only valid for deploy", AlertDeploy, ValueCommittedOnly, true},
		{"subscribe_only invalid for deploy", AlertDeploy, ValueSubscribeOnly, false},
		{"never valid for quota", AlertQuota, ValueNever, true},
		{"subscribe_only invalid for approval", AlertApproval, ValueSubscribeOnly, false},
		{"default is valid everywhere", AlertApproval, ValueDefault, true},
		{"unknown type rejects non-default", AlertType("bogus"), ValueAlways, false},
		{"unknown type accepts default", AlertType("bogus"), ValueDefault, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ValidValue(tt.t, tt.v))
		})
	}
}

func TestRecipientOwnScope(t *testing.T) {
	assert.Equal(t, Scope{Type: ScopeUser, ID: 42}, UserRecipient(42).OwnScope())
	assert.Equal(t, Scope{Type: ScopeTeam, ID: 9}, TeamRecipient(9).OwnScope())
}

func TestSettingRecordRecipient(t *testing.T) {
	userID := int64(42)
	teamID := int64(9)

	assert.Equal(t, UserRecipient(42), SettingRecord{UserID: &userID}.Recipient())
	assert.Equal(t, TeamRecipient(9), SettingRecord{TeamID: &teamID}.Recipient())
	assert.Equal(t, Recipient{}, SettingRecord{}.Recipient())
}

func TestNewRecipientSet(t *testing.T) {
	set := NewRecipientSet(
		UserRecipient(1),
		TeamRecipient(2),
		UserRecipient(1), // duplicate
		UserRecipient(3),
	)

	assert.Equal(t, []int64{1, 3}, set.UserIDs)
	assert.Equal(t, []int64{2}, set.TeamIDs)
	assert.True(t, set.Contains(UserRecipient(3)))
	assert.False(t, set.Contains(TeamRecipient(3)))
	assert.False(t, set.IsEmpty())
	assert.True(t, RecipientSet{}.IsEmpty())
}

package prefs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStorage for testing Manager orchestration without a real store.
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Get(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient) (*SettingRecord, error) {
	args := m.Called(ctx, provider, t, scope, recipient)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SettingRecord), args.Error(1)
}

func (m *MockStorage) Upsert(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) (bool, error) {
	args := m.Called(ctx, provider, t, scope, recipient, value)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) Query(ctx context.Context, f Filter) ([]SettingRecord, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SettingRecord), args.Error(1)
}

func (m *MockStorage) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) ListForParent(ctx context.Context, t AlertType, parent Scope, recipients RecipientSet) ([]SettingRecord, error) {
	args := m.Called(ctx, t, parent, recipients)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]SettingRecord), args.Error(1)
}

func (m *MockStorage) UpsertProjection(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) error {
	args := m.Called(ctx, provider, t, scope, recipient, value)
	return args.Error(0)
}

func (m *MockStorage) QueryProjections(ctx context.Context, f Filter) ([]ProviderProjection, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ProviderProjection), args.Error(1)
}

func (m *MockStorage) DeleteProjections(ctx context.Context, f Filter) (int64, error) {
	args := m.Called(ctx, f)
	return args.Get(0).(int64), args.Error(1)
}

// recordingRecorder captures emitted events for assertions.
type recordingRecorder struct {
	events []Event
	err    error
}

func (r *recordingRecorder) Record(ctx context.Context, event Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

// fakeCache is a map-backed SettingCache for read-through tests.
type fakeCache struct {
	entries map[string]Value
	gets    int
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]Value)}
}

func (c *fakeCache) Get(ctx context.Context, key string) (Value, bool, error) {
	c.gets++
	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *fakeCache) Set(ctx context.Context, key string, value Value) error {
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Invalidate(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func TestManager_GetSetting(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()

	t.Run("missing row resolves to default", func(t *testing.T) {
		m := NewManager(NewMemoryStorage())

		value, err := m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
		require.NoError(t, err)
		assert.Equal(t, ValueDefault, value)
	})

	t.Run("existing row wins", func(t *testing.T) {
		storage := NewMemoryStorage()
		_, err := storage.Upsert(ctx, ProviderEmail, AlertIssue, scope, user, ValueNever)
		require.NoError(t, err)

		m := NewManager(storage)
		value, err := m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
		require.NoError(t, err)
		assert.Equal(t, ValueNever, value)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		m := NewManager(NewMemoryStorage())
		_, err := m.GetSetting(ctx, ProviderEmail, AlertIssue, Recipient{}, scope)
		require.ErrorIs(t, err, ErrInvalidScope)
	})
}

func TestManager_GetSetting_Cache(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()

	storage := NewMemoryStorage()
	_, err := storage.Upsert(ctx, ProviderEmail, AlertIssue, scope, user, ValueAlways)
	require.NoError(t, err)

	cache := newFakeCache()
	m := NewManager(storage, WithSettingCache(cache))

	value, err := m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
	require.NoError(t, err)
	assert.Equal(t, ValueAlways, value)
	assert.Equal(t, 0, cache.hits)

	// Second read is served from the cache.
	value, err = m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
	require.NoError(t, err)
	assert.Equal(t, ValueAlways, value)
	assert.Equal(t, 1, cache.hits)

	// A write invalidates the entry so the next read sees the new value.
	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueNever, user, scope))
	value, err = m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
	require.NoError(t, err)
	assert.Equal(t, ValueNever, value)
}

func TestManager_UpdateSetting_InvalidValueForType(t *testing.T) {
	ctx := context.Background()
	storage := new(MockStorage)
	m := NewManager(storage)

	err := m.UpdateSetting(ctx, ProviderEmail, AlertApproval, ValueSubscribeOnly, UserRecipient(42), Scope{Type: ScopeUser, ID: 42})
	require.ErrorIs(t, err, ErrInvalidValueForType)

	// Validation failures never touch storage.
	storage.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_UpdateSetting_EventFiredOncePerChange(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()
	recorder := &recordingRecorder{}
	m := NewManager(NewMemoryStorage(), WithRecorder(recorder))

	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, scope))
	require.Len(t, recorder.events, 1)
	assert.Equal(t, SettingsUpdatedEvent, recorder.events[0].Name)
	assert.Equal(t, KindUser, recorder.events[0].RecipientKind)
	assert.EqualValues(t, 42, recorder.events[0].RecipientID)
	assert.NotEmpty(t, recorder.events[0].ID)

	// Idempotent rewrite: same value, no second event, still one row.
	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, scope))
	assert.Len(t, recorder.events, 1)

	rows, err := m.Storage().Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestManager_UpdateSetting_DefaultDeletesRow(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()
	recorder := &recordingRecorder{}
	m := NewManager(NewMemoryStorage(), WithRecorder(recorder))

	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, scope))
	require.Len(t, recorder.events, 1)

	// Writing DEFAULT is the reset operation: the row is deleted.
	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueDefault, user, scope))
	require.Len(t, recorder.events, 2)

	value, err := m.GetSetting(ctx, ProviderEmail, AlertIssue, user, scope)
	require.NoError(t, err)
	assert.Equal(t, ValueDefault, value)

	rows, err := m.Storage().Query(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Resetting an already-absent setting changes nothing and stays silent.
	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueDefault, user, scope))
	assert.Len(t, recorder.events, 2)
}

func TestManager_UpdateSetting_RecorderFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	recorder := &recordingRecorder{err: errors.New("sink down")}
	m := NewManager(NewMemoryStorage(), WithRecorder(recorder))

	err := m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, user.OwnScope())
	require.NoError(t, err)

	rec, err := m.Storage().Get(ctx, ProviderEmail, AlertIssue, user.OwnScope(), user)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, ValueAlways, rec.Value)
}

func TestManager_UpdateSetting_RebuildFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()

	storage := new(MockStorage)
	storage.On("Upsert", mock.Anything, ProviderEmail, AlertIssue, scope, user, ValueAlways).Return(true, nil)
	// The projection rebuild read fails; the raw write already succeeded.
	storage.On("Query", mock.Anything, mock.Anything).Return(nil, errors.New("connection lost"))

	m := NewManager(storage)
	err := m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, scope)
	require.NoError(t, err)
	storage.AssertExpectations(t)
}

func TestManager_UpdateSetting_SkipProjectionRebuild(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	scope := user.OwnScope()

	storage := new(MockStorage)
	storage.On("Upsert", mock.Anything, ProviderEmail, AlertIssue, scope, user, ValueAlways).Return(true, nil)

	m := NewManager(storage)
	err := m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, scope, SkipProjectionRebuild())
	require.NoError(t, err)

	storage.AssertNotCalled(t, "Query", mock.Anything, mock.Anything)
	storage.AssertNotCalled(t, "UpsertProjection", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestManager_SubscribersByProvider_DefaultPolicy(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	org := Scope{Type: ScopeOrganization, ID: 3}
	m := NewManager(NewMemoryStorage())

	// No rows at all: the default policy decides per provider.
	subscribers, err := m.SubscribersByProvider(ctx, org, []Recipient{user}, AlertIssue)
	require.NoError(t, err)

	assert.Contains(t, subscribers[ProviderEmail], user)
	assert.Contains(t, subscribers[ProviderSlack], user)
	assert.NotContains(t, subscribers[ProviderMSTeams], user)
}

func TestManager_SubscribersByProvider_ProjectScopeWins(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	project := Scope{Type: ScopeProject, ID: 7}
	storage := NewMemoryStorage()

	// Global opt-in for email, muted for this one project.
	_, err := storage.Upsert(ctx, ProviderEmail, AlertIssue, user.OwnScope(), user, ValueAlways)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderEmail, AlertIssue, project, user, ValueNever)
	require.NoError(t, err)

	m := NewManager(storage)
	subscribers, err := m.SubscribersByProvider(ctx, project, []Recipient{user}, AlertIssue)
	require.NoError(t, err)

	assert.NotContains(t, subscribers[ProviderEmail], user)
	// Slack has no explicit rows, so the default policy still applies.
	assert.Contains(t, subscribers[ProviderSlack], user)
}

func TestManager_SubscribersByProvider_MixedRecipients(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	team := TeamRecipient(9)
	muted := UserRecipient(50)
	project := Scope{Type: ScopeProject, ID: 7}
	storage := NewMemoryStorage()

	// subscribe_only is a non-NEVER value and therefore counts as subscribed.
	_, err := storage.Upsert(ctx, ProviderEmail, AlertIssue, user.OwnScope(), user, ValueSubscribeOnly)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderSlack, AlertIssue, team.OwnScope(), team, ValueNever)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderEmail, AlertIssue, muted.OwnScope(), muted, ValueNever)
	require.NoError(t, err)

	m := NewManager(storage)
	subscribers, err := m.SubscribersByProvider(ctx, project, []Recipient{user, team, muted}, AlertIssue)
	require.NoError(t, err)

	assert.Contains(t, subscribers[ProviderEmail], user)
	assert.Contains(t, subscribers[ProviderEmail], team)
	assert.NotContains(t, subscribers[ProviderEmail], muted)

	assert.NotContains(t, subscribers[ProviderSlack], team)
	assert.Contains(t, subscribers[ProviderSlack], user)
	assert.Contains(t, subscribers[ProviderSlack], muted)
}

func TestManager_SubscribersByProvider_EmptyAndInvalid(t *testing.T) {
	ctx := context.Background()
	m := NewManager(NewMemoryStorage())

	t.Run("invalid parent tier", func(t *testing.T) {
		_, err := m.SubscribersByProvider(ctx, Scope{Type: ScopeUser, ID: 42}, []Recipient{UserRecipient(42)}, AlertIssue)
		require.ErrorIs(t, err, ErrInvalidScope)
	})

	t.Run("no recipients", func(t *testing.T) {
		subscribers, err := m.SubscribersByProvider(ctx, Scope{Type: ScopeProject, ID: 7}, nil, AlertIssue)
		require.NoError(t, err)
		// Every catalog provider is present, with nobody subscribed.
		assert.Len(t, subscribers, len(PersonalProviders()))
		for _, p := range PersonalProviders() {
			assert.Empty(t, subscribers[p])
		}
	})
}

func TestManager_RemoveForProject(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	project := Scope{Type: ScopeProject, ID: 7}
	storage := NewMemoryStorage()

	_, err := storage.Upsert(ctx, ProviderEmail, AlertIssue, project, user, ValueNever)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderEmail, AlertDeploy, project, user, ValueCommittedOnly)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderEmail, AlertIssue, user.OwnScope(), user, ValueAlways)
	require.NoError(t, err)

	m := NewManager(storage)
	require.NoError(t, m.RemoveForProject(ctx, 7, AlertIssue))

	// Only the PROJECT-scoped issue-alert row is gone; the deploy row for the
	// same project and the own-scope row survive.
	rows, err := storage.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.False(t, row.Scope == project && row.Type == AlertIssue)
	}

	require.NoError(t, m.RemoveForProject(ctx, 7))
	rows, err = storage.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, user.OwnScope(), rows[0].Scope)
}

func TestManager_RemoveForOrganization(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	org := Scope{Type: ScopeOrganization, ID: 3}
	storage := NewMemoryStorage()

	_, err := storage.Upsert(ctx, ProviderEmail, AlertDeploy, org, user, ValueNever)
	require.NoError(t, err)
	_, err = storage.Upsert(ctx, ProviderEmail, AlertDeploy, user.OwnScope(), user, ValueAlways)
	require.NoError(t, err)

	m := NewManager(storage)
	require.NoError(t, m.RemoveForOrganization(ctx, 3))

	rows, err := storage.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, user.OwnScope(), rows[0].Scope)
}

func TestManager_RemoveForRecipient(t *testing.T) {
	ctx := context.Background()
	user := UserRecipient(42)
	other := UserRecipient(43)
	storage := NewMemoryStorage()
	m := NewManager(storage)

	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, user, user.OwnScope()))
	require.NoError(t, m.UpdateSetting(ctx, ProviderEmail, AlertIssue, ValueAlways, other, other.OwnScope()))

	require.NoError(t, m.RemoveForRecipient(ctx, user))

	rows, err := storage.Query(ctx, Filter{Recipients: NewRecipientSet(user)})
	require.NoError(t, err)
	assert.Empty(t, rows)

	// The projection self-heals: no derived rows outlive the raw ones.
	projections, err := storage.QueryProjections(ctx, Filter{Recipients: NewRecipientSet(user)})
	require.NoError(t, err)
	assert.Empty(t, projections)

	// Other recipients are untouched.
	rows, err = storage.Query(ctx, Filter{Recipients: NewRecipientSet(other)})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

package prefs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/notifykit/notifykit/pkg/logger"
)

// Manager orchestrates notification preference reads and writes, and keeps
// the derived provider projection in sync with the raw setting rows.
type Manager struct {
	storage   Storage
	policy    DefaultPolicy
	providers []Provider
	types     []AlertType
	recorder  Recorder
	cache     SettingCache
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the logger for the Manager.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRecorder sets the analytics sink for settings-updated events.
func WithRecorder(recorder Recorder) ManagerOption {
	return func(m *Manager) {
		if recorder != nil {
			m.recorder = recorder
		}
	}
}

// WithDefaultPolicy sets the policy table consulted when a recipient has no
// explicit setting.
func WithDefaultPolicy(policy DefaultPolicy) ManagerOption {
	return func(m *Manager) {
		if policy != nil {
			m.policy = policy
		}
	}
}

// WithProviderCatalog overrides the fixed provider catalog. The slice is
// copied; the catalog is immutable after construction.
func WithProviderCatalog(providers []Provider) ManagerOption {
	return func(m *Manager) {
		if len(providers) > 0 {
			m.providers = append([]Provider(nil), providers...)
		}
	}
}

// WithAlertTypeCatalog overrides the fixed alert type catalog. The slice is
// copied; the catalog is immutable after construction.
func WithAlertTypeCatalog(types []AlertType) ManagerOption {
	return func(m *Manager) {
		if len(types) > 0 {
			m.types = append([]AlertType(nil), types...)
		}
	}
}

// WithSettingCache enables a read-through cache for single-setting lookups.
func WithSettingCache(cache SettingCache) ManagerOption {
	return func(m *Manager) {
		m.cache = cache
	}
}

// NewManager creates a new preference manager backed by the given storage.
func NewManager(storage Storage, opts ...ManagerOption) *Manager {
	m := &Manager{
		storage:   storage,
		policy:    DefaultPolicyTable(),
		providers: PersonalProviders(),
		types:     AlertTypes(),
		recorder:  NoOpRecorder{},
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// GetSetting returns the effective value for one exact (provider, type,
// scope, recipient) key. A missing row resolves to ValueDefault. Each call
// targets one scope tier; callers choose the tier via ResolveScope.
func (m *Manager) GetSetting(ctx context.Context, provider Provider, t AlertType, recipient Recipient, scope Scope) (Value, error) {
	if err := validRecipient(recipient); err != nil {
		return "", err
	}

	var cacheKey string
	if m.cache != nil {
		cacheKey = settingCacheKey(provider, t, scope, recipient)
		if value, ok, err := m.cache.Get(ctx, cacheKey); err == nil && ok {
			return value, nil
		} else if err != nil {
			// Cache failures degrade to a storage read.
			m.logger.LogAttrs(ctx, slog.LevelDebug, "Setting cache read failed",
				logger.Error(err),
			)
		}
	}

	rec, err := m.storage.Get(ctx, provider, t, scope, recipient)
	if err != nil {
		return "", fmt.Errorf("failed to load setting: %w", err)
	}

	value := ValueDefault
	if rec != nil {
		value = rec.Value
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, cacheKey, value); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelDebug, "Setting cache write failed",
				logger.Error(err),
			)
		}
	}

	return value, nil
}

// UpdateOption tweaks a single UpdateSetting call.
type UpdateOption func(*updateConfig)

type updateConfig struct {
	skipRebuild bool
}

// SkipProjectionRebuild defers the provider projection rebuild, for callers
// batching several writes for the same recipient before rebuilding once.
func SkipProjectionRebuild() UpdateOption {
	return func(c *updateConfig) {
		c.skipRebuild = true
	}
}

// UpdateSetting persists one preference write. Writing ValueDefault deletes
// the row (deletion is the reset operation); any other value is validated
// against the per-type compatibility table and upserted. When the stored
// state actually changes, a settings-updated event is recorded fire-and-forget
// and the recipient's provider projection is rebuilt.
func (m *Manager) UpdateSetting(ctx context.Context, provider Provider, t AlertType, value Value, recipient Recipient, scope Scope, opts ...UpdateOption) error {
	if err := validRecipient(recipient); err != nil {
		return err
	}

	var cfg updateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var changed bool
	if value == ValueDefault {
		removed, err := m.storage.DeleteMatching(ctx, exactFilter(provider, t, scope, recipient))
		if err != nil {
			return fmt.Errorf("failed to reset setting: %w", err)
		}
		changed = removed > 0
	} else {
		if !ValidValue(t, value) {
			return fmt.Errorf("%w: %q for %q", ErrInvalidValueForType, value, t)
		}
		var err error
		changed, err = m.storage.Upsert(ctx, provider, t, scope, recipient, value)
		if err != nil {
			return fmt.Errorf("failed to save setting: %w", err)
		}
	}

	if m.cache != nil {
		if err := m.cache.Invalidate(ctx, settingCacheKey(provider, t, scope, recipient)); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelDebug, "Setting cache invalidation failed",
				logger.Error(err),
			)
		}
	}

	if changed {
		m.record(ctx, newEvent(recipient, provider, t, value))
	}

	if changed && !cfg.skipRebuild {
		// The raw row is the source of truth; the projection is a derived
		// cache that self-heals on the next rebuild.
		if err := m.RebuildProjection(ctx, recipient); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to rebuild provider projection after setting write",
				logger.Recipient(string(recipient.Kind), recipient.ID),
				logger.Provider(string(provider)),
				logger.AlertType(string(t)),
				logger.Scope(string(scope.Type), scope.ID),
				logger.Error(err),
			)
		}
	}

	return nil
}

// RemoveSetting resets one exact setting to DEFAULT.
func (m *Manager) RemoveSetting(ctx context.Context, provider Provider, t AlertType, recipient Recipient, scope Scope, opts ...UpdateOption) error {
	return m.UpdateSetting(ctx, provider, t, ValueDefault, recipient, scope, opts...)
}

// RemoveForRecipient bulk-deletes every setting row for a user or team,
// optionally restricted to alert types, then rebuilds the projection so no
// derived rows outlive their source.
func (m *Manager) RemoveForRecipient(ctx context.Context, recipient Recipient, types ...AlertType) error {
	if err := validRecipient(recipient); err != nil {
		return err
	}

	if _, err := m.storage.DeleteMatching(ctx, Filter{
		Types:      types,
		Recipients: NewRecipientSet(recipient),
	}); err != nil {
		return fmt.Errorf("failed to remove settings for recipient: %w", err)
	}

	return m.RebuildProjection(ctx, recipient)
}

// RemoveForProject bulk-deletes all PROJECT-scoped rows for the project,
// optionally restricted to alert types. Own-scope rows are untouched and the
// global projection is unaffected since project overrides never feed it.
func (m *Manager) RemoveForProject(ctx context.Context, projectID int64, types ...AlertType) error {
	if _, err := m.storage.DeleteMatching(ctx, Filter{
		Types:     types,
		ScopeType: ScopeProject,
		ScopeID:   projectID,
	}); err != nil {
		return fmt.Errorf("failed to remove settings for project: %w", err)
	}
	return nil
}

// RemoveForOrganization bulk-deletes all ORGANIZATION-scoped rows for the
// organization, optionally restricted to alert types.
func (m *Manager) RemoveForOrganization(ctx context.Context, organizationID int64, types ...AlertType) error {
	if _, err := m.storage.DeleteMatching(ctx, Filter{
		Types:     types,
		ScopeType: ScopeOrganization,
		ScopeID:   organizationID,
	}); err != nil {
		return fmt.Errorf("failed to remove settings for organization: %w", err)
	}
	return nil
}

// SubscribersByProvider resolves, for a mixed set of users and teams under a
// project or organization parent, who receives alertType notifications per
// provider. A parent-scoped row wins over the recipient's own global row;
// with neither, the default policy decides. Recipients whose resolved value
// is NEVER are excluded.
func (m *Manager) SubscribersByProvider(ctx context.Context, parent Scope, recipients []Recipient, alertType AlertType) (map[Provider][]Recipient, error) {
	if parent.Type != ScopeProject && parent.Type != ScopeOrganization {
		return nil, fmt.Errorf("%w: parent must be a project or organization", ErrInvalidScope)
	}

	// Pre-size the result over the closed provider catalog so every provider
	// key exists even when nobody subscribes through it.
	result := make(map[Provider][]Recipient, len(m.providers))
	for _, p := range m.providers {
		result[p] = nil
	}

	set := NewRecipientSet(recipients...)
	if set.IsEmpty() {
		return result, nil
	}

	records, err := m.storage.ListForParent(ctx, alertType, parent, set)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings for parent: %w", err)
	}

	parentVals := make(map[Recipient]map[Provider]Value)
	ownVals := make(map[Recipient]map[Provider]Value)
	for _, rec := range records {
		target := ownVals
		if rec.Scope == parent {
			target = parentVals
		}
		r := rec.Recipient()
		if target[r] == nil {
			target[r] = make(map[Provider]Value, len(m.providers))
		}
		target[r][rec.Provider] = rec.Value
	}

	seen := make(map[Recipient]struct{}, len(recipients))
	for _, r := range recipients {
		if _, dup := seen[r]; dup || !set.Contains(r) {
			continue
		}
		seen[r] = struct{}{}

		for _, p := range m.providers {
			value, ok := parentVals[r][p]
			if !ok {
				value, ok = ownVals[r][p]
			}

			subscribed := false
			switch {
			case !ok || value == ValueDefault:
				subscribed = m.policy.EnabledByDefault(alertType, p)
			default:
				subscribed = value != ValueNever
			}

			if subscribed {
				result[p] = append(result[p], r)
			}
		}
	}

	return result, nil
}

// RebuildProjection recomputes the provider projection for one recipient from
// scratch, using the recipient's own-scope rows only. Project and
// organization overrides never feed the global projection. The rebuild is a
// full recompute and is idempotent, so callers can retry on failure without
// rollback.
func (m *Manager) RebuildProjection(ctx context.Context, recipient Recipient) error {
	if err := validRecipient(recipient); err != nil {
		return err
	}

	own := recipient.OwnScope()
	set := NewRecipientSet(recipient)

	records, err := m.storage.Query(ctx, Filter{
		ScopeType:  own.Type,
		ScopeID:    own.ID,
		Recipients: set,
	})
	if err != nil {
		return fmt.Errorf("failed to load settings for projection rebuild: %w", err)
	}

	// Classification tables sized over the closed catalogs, built explicitly
	// before the loop.
	enabled := make(map[AlertType]map[Provider]bool, len(m.types))
	disabled := make(map[AlertType]map[Provider]bool, len(m.types))
	for _, t := range m.types {
		enabled[t] = make(map[Provider]bool, len(m.providers))
		disabled[t] = make(map[Provider]bool, len(m.providers))
	}

	for _, rec := range records {
		if enabled[rec.Type] == nil {
			// Rows for types outside the catalog are ignored.
			continue
		}
		if rec.Value == ValueNever {
			disabled[rec.Type][rec.Provider] = true
		} else {
			// Any persisted value other than NEVER is an explicit opt-in.
			enabled[rec.Type][rec.Provider] = true
		}
	}

	for _, p := range m.providers {
		var untouched []AlertType
		for _, t := range m.types {
			switch {
			case enabled[t][p]:
				if err := m.storage.UpsertProjection(ctx, p, t, own, recipient, ValueAlways); err != nil {
					return fmt.Errorf("failed to upsert provider projection: %w", err)
				}
			case disabled[t][p]:
				if err := m.storage.UpsertProjection(ctx, p, t, own, recipient, ValueNever); err != nil {
					return fmt.Errorf("failed to upsert provider projection: %w", err)
				}
			default:
				untouched = append(untouched, t)
			}
		}

		if len(untouched) > 0 {
			if _, err := m.storage.DeleteProjections(ctx, Filter{
				Provider:   p,
				Types:      untouched,
				ScopeType:  own.Type,
				ScopeID:    own.ID,
				Recipients: set,
			}); err != nil {
				return fmt.Errorf("failed to prune provider projection: %w", err)
			}
		}
	}

	return nil
}

// Storage returns the underlying settings storage.
func (m *Manager) Storage() Storage {
	return m.storage
}

// record delivers an analytics event best-effort.
func (m *Manager) record(ctx context.Context, event Event) {
	if err := m.recorder.Record(ctx, event); err != nil {
		m.logger.LogAttrs(ctx, slog.LevelWarn, "Failed to record settings-updated event",
			slog.String("event_id", event.ID),
			logger.Recipient(string(event.RecipientKind), event.RecipientID),
			logger.Error(err),
		)
	}
}

func validRecipient(r Recipient) error {
	if r.ID == 0 || (r.Kind != KindUser && r.Kind != KindTeam) {
		return ErrInvalidScope
	}
	return nil
}

// exactFilter narrows to the single row identified by the full storage key.
func exactFilter(provider Provider, t AlertType, scope Scope, recipient Recipient) Filter {
	return Filter{
		Provider:   provider,
		Type:       t,
		ScopeType:  scope.Type,
		ScopeID:    scope.ID,
		Recipients: NewRecipientSet(recipient),
	}
}

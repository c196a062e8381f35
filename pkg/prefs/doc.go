// Package prefs resolves and persists per-recipient notification preferences:
// who gets notified, via which provider, for which alert type.
//
// The package is designed as a utility library embedded in a larger product.
// Identity resolution, delivery, and any HTTP surface live upstream and
// downstream of it; this package owns the preference rows and the logic that
// turns them into per-provider subscription decisions.
//
// # Architecture
//
// The package follows a layered architecture:
//
//   - Storage: persistence for raw setting rows and the derived projection
//   - Manager: orchestrates resolution, writes, events, and projection rebuilds
//   - DefaultPolicy: decides provider opt-in when no explicit row exists
//   - Recorder: fire-and-forget analytics sink for settings changes
//
// # Scope model
//
// A setting row is keyed by (provider, alert type, scope, recipient). The
// scope tiers, most to least specific, are PROJECT, ORGANIZATION, and the
// recipient's own USER/TEAM global tier. ResolveScope picks exactly one tier
// per call from the optional parent ids; resolution never walks the chain at
// runtime. A missing row means DEFAULT, and writing DEFAULT deletes the row.
//
// # Basic Usage
//
//	storage := prefs.NewMemoryStorage()
//	manager := prefs.NewManager(storage)
//
//	// A user mutes email issue alerts for one project.
//	scope, _ := prefs.ResolveScope(prefs.UserRecipient(42), projectID, 0)
//	err := manager.UpdateSetting(ctx,
//	    prefs.ProviderEmail, prefs.AlertIssue, prefs.ValueNever,
//	    prefs.UserRecipient(42), scope)
//
//	// Dispatch asks who still gets issue alerts for the project.
//	subscribers, err := manager.SubscribersByProvider(ctx,
//	    prefs.Scope{Type: prefs.ScopeProject, ID: projectID},
//	    recipients, prefs.AlertIssue)
//
// # Provider projection
//
// Every write triggers a full recompute of the recipient's provider
// projection: one ALWAYS/NEVER row per (provider, alert type) pair the
// recipient has explicitly touched at their own global tier. The projection
// is a derived cache for the dispatch path; the raw rows stay the source of
// truth and the rebuild is idempotent.
//
// # Storage Implementations
//
// MemoryStorage suits development and tests. PostgresStorage persists both
// tables via pgx; schema migrations live in the repository's migrations
// directory. An optional Redis-backed read-through cache can be attached
// with WithSettingCache.
package prefs

package prefs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notifykit/notifykit/pkg/pg"
)

const settingColumns = "id, provider, type, scope_type, scope_identifier, user_id, team_id, value"

// PostgresStorage is a pgx-backed implementation of the Storage interface.
// Transient connection errors are retried with a small fixed backoff before
// being surfaced wrapped in ErrStorage.
type PostgresStorage struct {
	pool          *pgxpool.Pool
	retryAttempts int
	retryInterval time.Duration
}

// PostgresStorageOption configures a PostgresStorage.
type PostgresStorageOption func(*PostgresStorage)

// WithRetry overrides the transient-error retry policy.
func WithRetry(attempts int, interval time.Duration) PostgresStorageOption {
	return func(s *PostgresStorage) {
		if attempts >= 0 {
			s.retryAttempts = attempts
		}
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

// NewPostgresStorage creates a settings storage backed by the given pool.
func NewPostgresStorage(pool *pgxpool.Pool, opts ...PostgresStorageOption) *PostgresStorage {
	s := &PostgresStorage{
		pool:          pool,
		retryAttempts: 2,
		retryInterval: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// withRetry runs op, retrying when pgx reports the failure as safe to retry.
func (s *PostgresStorage) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= s.retryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.Join(ErrStorage, ctx.Err())
			case <-time.After(s.retryInterval):
			}
		}
		if err = op(); err == nil {
			return nil
		}
		if !pgconn.SafeToRetry(err) {
			break
		}
	}
	return errors.Join(ErrStorage, err)
}

func (s *PostgresStorage) Get(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient) (*SettingRecord, error) {
	userID, teamID := recipientIDs(recipient)

	// ORDER BY id picks a deterministic winner if duplicates ever slip past
	// the unique constraint.
	query := `SELECT ` + settingColumns + `
		FROM notification_settings
		WHERE provider = $1 AND type = $2 AND scope_type = $3 AND scope_identifier = $4
			AND user_id IS NOT DISTINCT FROM $5 AND team_id IS NOT DISTINCT FROM $6
		ORDER BY id
		LIMIT 1`

	var rec *SettingRecord
	err := s.withRetry(ctx, func() error {
		row := s.pool.QueryRow(ctx, query, provider, t, scope.Type, scope.ID, userID, teamID)
		found, err := scanSetting(row)
		if pg.IsNotFoundError(err) {
			rec = nil
			return nil
		}
		if err != nil {
			return err
		}
		rec = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PostgresStorage) Upsert(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) (bool, error) {
	userID, teamID := recipientIDs(recipient)

	// Transactional get-then-write with a row lock so concurrent writers to
	// the same key serialize instead of clobbering each other. FOR UPDATE
	// cannot lock a row that does not exist yet, so two first-time writers
	// can both reach the INSERT; the loser aborts on the unique key and
	// re-runs the transaction, landing on the update path.
	var changed bool
	run := func() error {
		return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			var id int64
			var current Value
			err := tx.QueryRow(ctx, `SELECT id, value FROM notification_settings
				WHERE provider = $1 AND type = $2 AND scope_type = $3 AND scope_identifier = $4
					AND user_id IS NOT DISTINCT FROM $5 AND team_id IS NOT DISTINCT FROM $6
				ORDER BY id
				LIMIT 1
				FOR UPDATE`,
				provider, t, scope.Type, scope.ID, userID, teamID,
			).Scan(&id, &current)

			switch {
			case errors.Is(err, pgx.ErrNoRows):
				_, err = tx.Exec(ctx, `INSERT INTO notification_settings
					(provider, type, scope_type, scope_identifier, user_id, team_id, value)
					VALUES ($1, $2, $3, $4, $5, $6, $7)`,
					provider, t, scope.Type, scope.ID, userID, teamID, value)
				if err != nil {
					return err
				}
				changed = true
			case err != nil:
				return err
			case current == value:
				changed = false
			default:
				_, err = tx.Exec(ctx, `UPDATE notification_settings
					SET value = $1, updated_at = now() WHERE id = $2`, value, id)
				if err != nil {
					return err
				}
				changed = true
			}
			return nil
		})
	}

	err := s.withRetry(ctx, func() error {
		return retryOnDuplicate(run)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// retryOnDuplicate re-runs the transaction once when the first attempt loses
// an insert race on the unique settings key. The committed row is visible to
// the re-run, which takes the update path instead.
func retryOnDuplicate(run func() error) error {
	err := run()
	if pg.IsDuplicateKeyError(err) {
		err = run()
	}
	return err
}

func (s *PostgresStorage) Query(ctx context.Context, f Filter) ([]SettingRecord, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + settingColumns + ` FROM notification_settings` + where + ` ORDER BY id`

	var out []SettingRecord
	err := s.withRetry(ctx, func() error {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			rec, err := scanSetting(rows)
			if err != nil {
				return err
			}
			out = append(out, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStorage) DeleteMatching(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)

	var removed int64
	err := s.withRetry(ctx, func() error {
		tag, err := s.pool.Exec(ctx, `DELETE FROM notification_settings`+where, args...)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *PostgresStorage) ListForParent(ctx context.Context, t AlertType, parent Scope, recipients RecipientSet) ([]SettingRecord, error) {
	if recipients.IsEmpty() {
		return nil, nil
	}

	userIDs := nonNilIDs(recipients.UserIDs)
	teamIDs := nonNilIDs(recipients.TeamIDs)

	query := `SELECT ` + settingColumns + `
		FROM notification_settings
		WHERE type = $1
			AND (
				(scope_type = $2 AND scope_identifier = $3)
				OR (scope_type = $4 AND scope_identifier = ANY($5))
				OR (scope_type = $6 AND scope_identifier = ANY($7))
			)
			AND (user_id = ANY($5) OR team_id = ANY($7))
		ORDER BY id`

	var out []SettingRecord
	err := s.withRetry(ctx, func() error {
		rows, err := s.pool.Query(ctx, query,
			t, parent.Type, parent.ID, ScopeUser, userIDs, ScopeTeam, teamIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			rec, err := scanSetting(rows)
			if err != nil {
				return err
			}
			out = append(out, *rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStorage) UpsertProjection(ctx context.Context, provider Provider, t AlertType, scope Scope, recipient Recipient, value Value) error {
	userID, teamID := recipientIDs(recipient)

	// Each projection triple is independently idempotent; last write wins.
	return s.withRetry(ctx, func() error {
		_, err := s.pool.Exec(ctx, `INSERT INTO notification_providers
			(provider, type, scope_type, scope_identifier, user_id, team_id, value)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (provider, type, scope_type, scope_identifier, user_id, team_id)
			DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
			provider, t, scope.Type, scope.ID, userID, teamID, value)
		return err
	})
}

func (s *PostgresStorage) QueryProjections(ctx context.Context, f Filter) ([]ProviderProjection, error) {
	where, args := buildWhere(f)
	query := `SELECT ` + settingColumns + ` FROM notification_providers` + where + ` ORDER BY id`

	var out []ProviderProjection
	err := s.withRetry(ctx, func() error {
		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			var p ProviderProjection
			if err := rows.Scan(&p.ID, &p.Provider, &p.Type, &p.Scope.Type, &p.Scope.ID, &p.UserID, &p.TeamID, &p.Value); err != nil {
				return err
			}
			out = append(out, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStorage) DeleteProjections(ctx context.Context, f Filter) (int64, error) {
	where, args := buildWhere(f)

	var removed int64
	err := s.withRetry(ctx, func() error {
		tag, err := s.pool.Exec(ctx, `DELETE FROM notification_providers`+where, args...)
		if err != nil {
			return err
		}
		removed = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// scanSetting reads one settings row in settingColumns order.
func scanSetting(row pgx.Row) (*SettingRecord, error) {
	var rec SettingRecord
	if err := row.Scan(&rec.ID, &rec.Provider, &rec.Type, &rec.Scope.Type, &rec.Scope.ID, &rec.UserID, &rec.TeamID, &rec.Value); err != nil {
		return nil, err
	}
	return &rec, nil
}

// buildWhere renders a Filter as a WHERE clause with positional args. The
// recipient set is always an explicit OR across the two id columns.
func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, value any) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Provider != "" {
		add("provider = $%d", f.Provider)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("type = ANY($%d)", types)
	}
	if f.ScopeType != "" {
		add("scope_type = $%d", f.ScopeType)
	}
	if f.ScopeID != 0 {
		add("scope_identifier = $%d", f.ScopeID)
	}
	if !f.Recipients.IsEmpty() {
		args = append(args, nonNilIDs(f.Recipients.UserIDs))
		userArg := len(args)
		args = append(args, nonNilIDs(f.Recipients.TeamIDs))
		teamArg := len(args)
		conds = append(conds, fmt.Sprintf("(user_id = ANY($%d) OR team_id = ANY($%d))", userArg, teamArg))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// nonNilIDs guarantees a non-nil slice so pgx encodes an empty array rather
// than NULL.
func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

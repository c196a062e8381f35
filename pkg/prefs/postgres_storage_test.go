package prefs

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnDuplicate(t *testing.T) {
	t.Parallel()

	t.Run("first-time writers racing on the unique key", func(t *testing.T) {
		t.Parallel()

		// The losing writer sees a unique violation on its INSERT; the re-run
		// finds the winner's committed row and must succeed.
		calls := 0
		err := retryOnDuplicate(func() error {
			calls++
			if calls == 1 {
				return &pgconn.PgError{Code: "23505", ConstraintName: "notification_settings_unique_key"}
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("wrapped unique violation", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retryOnDuplicate(func() error {
			calls++
			if calls == 1 {
				return errors.Join(errors.New("exec failed"), &pgconn.PgError{Code: "23505"})
			}
			return nil
		})

		require.NoError(t, err)
		assert.Equal(t, 2, calls)
	})

	t.Run("no retry on success", func(t *testing.T) {
		t.Parallel()

		calls := 0
		require.NoError(t, retryOnDuplicate(func() error {
			calls++
			return nil
		}))
		assert.Equal(t, 1, calls)
	})

	t.Run("no retry on unrelated errors", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection reset")
		calls := 0
		err := retryOnDuplicate(func() error {
			calls++
			return boom
		})

		require.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})

	t.Run("persistent duplicate surfaces after one re-run", func(t *testing.T) {
		t.Parallel()

		calls := 0
		err := retryOnDuplicate(func() error {
			calls++
			return &pgconn.PgError{Code: "23505"}
		})

		var pgErr *pgconn.PgError
		require.ErrorAs(t, err, &pgErr)
		assert.Equal(t, "23505", pgErr.Code)
		assert.Equal(t, 2, calls)
	})
}

func TestBuildWhere(t *testing.T) {
	t.Parallel()

	t.Run("empty filter", func(t *testing.T) {
		t.Parallel()

		where, args := buildWhere(Filter{})
		assert.Empty(t, where)
		assert.Empty(t, args)
	})

	t.Run("exact key filter", func(t *testing.T) {
		t.Parallel()

		where, args := buildWhere(Filter{
			Provider:   ProviderEmail,
			Type:       AlertIssue,
			ScopeType:  ScopeProject,
			ScopeID:    7,
			Recipients: NewRecipientSet(UserRecipient(42)),
		})

		assert.Equal(t, " WHERE provider = $1 AND type = $2 AND scope_type = $3 AND scope_identifier = $4 AND (user_id = ANY($5) OR team_id = ANY($6))", where)
		require.Len(t, args, 6)
		assert.Equal(t, []int64{42}, args[4])
		assert.Equal(t, []int64{}, args[5], "empty recipient side must encode as an empty array, not NULL")
	})

	t.Run("type list", func(t *testing.T) {
		t.Parallel()

		where, args := buildWhere(Filter{Types: []AlertType{AlertDeploy, AlertWorkflow}})
		assert.Equal(t, " WHERE type = ANY($1)", where)
		require.Len(t, args, 1)
		assert.Equal(t, []string{"deploy", "workflow"}, args[0])
	})
}

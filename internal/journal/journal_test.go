package journal_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Ariequ/svn-auto-merge/internal/journal"
)

func openTestJournal(t *testing.T) *journal.Store {
	t.Helper()

	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	t.Run("records attempts and returns them newest first", func(t *testing.T) {
		store := openTestJournal(t)

		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 101,
			Outcome:  journal.OutcomeMerged,
			Author:   "alice",
			Message:  "fix login --bug=12345",
		}))
		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 102,
			Outcome:  journal.OutcomeSkipped,
			Detail:   "no pattern matched",
		}))

		attempts, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		require.Equal(t, int64(102), attempts[0].Revision)
		require.Equal(t, journal.OutcomeSkipped, attempts[0].Outcome)
		require.Equal(t, int64(101), attempts[1].Revision)
		require.Equal(t, "alice", attempts[1].Author)
		require.False(t, attempts[1].RecordedAt.IsZero())
	})

	t.Run("drops a second advancing outcome for the same revision", func(t *testing.T) {
		store := openTestJournal(t)

		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 200,
			Outcome:  journal.OutcomeMerged,
		}))
		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 200,
			Outcome:  journal.OutcomeConflicted,
		}))

		attempts, err := store.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		require.Equal(t, journal.OutcomeMerged, attempts[0].Outcome)
	})

	t.Run("keeps every failed attempt until the revision lands", func(t *testing.T) {
		store := openTestJournal(t)

		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 300,
			Outcome:  journal.OutcomeFailed,
			Detail:   "commit rejected",
		}))
		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 300,
			Outcome:  journal.OutcomeFailed,
			Detail:   "commit rejected again",
		}))
		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision: 300,
			Outcome:  journal.OutcomeMerged,
		}))

		history, err := store.History(ctx, 300)
		require.NoError(t, err)
		require.Len(t, history, 3)
		require.Equal(t, journal.OutcomeFailed, history[0].Outcome)
		require.Equal(t, journal.OutcomeFailed, history[1].Outcome)
		require.Equal(t, journal.OutcomeMerged, history[2].Outcome)
	})

	t.Run("limits recent results", func(t *testing.T) {
		store := openTestJournal(t)

		for rev := int64(1); rev <= 5; rev++ {
			require.NoError(t, store.Record(ctx, journal.Attempt{
				Revision: rev,
				Outcome:  journal.OutcomeMerged,
			}))
		}

		attempts, err := store.Recent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, attempts, 2)
		require.Equal(t, int64(5), attempts[0].Revision)
		require.Equal(t, int64(4), attempts[1].Revision)
	})

	t.Run("preserves rows across reopen", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "journal.db")

		store, err := journal.Open(path)
		require.NoError(t, err)
		require.NoError(t, store.Record(ctx, journal.Attempt{
			Revision:   400,
			Outcome:    journal.OutcomeMerged,
			RecordedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		}))
		require.NoError(t, store.Close())

		reopened, err := journal.Open(path)
		require.NoError(t, err)
		defer reopened.Close()

		attempts, err := reopened.Recent(ctx, 10)
		require.NoError(t, err)
		require.Len(t, attempts, 1)
		require.Equal(t, int64(400), attempts[0].Revision)
		require.Equal(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), attempts[0].RecordedAt)
	})
}

func TestOutcomeAdvances(t *testing.T) {
	t.Run("every outcome except failed advances the cursor", func(t *testing.T) {
		require.True(t, journal.OutcomeMerged.Advances())
		require.True(t, journal.OutcomeSkipped.Advances())
		require.True(t, journal.OutcomeConflicted.Advances())
		require.False(t, journal.OutcomeFailed.Advances())
	})
}

package cursor_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Ariequ/svn-auto-merge/internal/cursor"
	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
)

func cursorPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "logs", "last_revision.txt")
}

func TestFileCursorRead(t *testing.T) {
	t.Run("returns the start value when no file exists", func(t *testing.T) {
		c := cursor.NewFileCursor(cursorPath(t), 100)
		value, err := c.Read()
		require.NoError(t, err)
		require.Equal(t, int64(100), value)
	})

	t.Run("reads a previously committed value", func(t *testing.T) {
		path := cursorPath(t)
		require.NoError(t, cursor.NewFileCursor(path, 0).Advance(42))

		value, err := cursor.NewFileCursor(path, 0).Read()
		require.NoError(t, err)
		require.Equal(t, int64(42), value)
	})

	t.Run("tolerates a trailing newline", func(t *testing.T) {
		path := cursorPath(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte("17\n"), 0600))

		value, err := cursor.NewFileCursor(path, 0).Read()
		require.NoError(t, err)
		require.Equal(t, int64(17), value)
	})

	t.Run("fails on a corrupt file instead of resetting to zero", func(t *testing.T) {
		path := cursorPath(t)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte("not a number"), 0600))

		_, err := cursor.NewFileCursor(path, 0).Read()
		require.Error(t, err)
	})
}

func TestFileCursorAdvance(t *testing.T) {
	t.Run("persists the new value durably", func(t *testing.T) {
		path := cursorPath(t)
		c := cursor.NewFileCursor(path, 0)
		require.NoError(t, c.Advance(7))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.Equal(t, "7\n", string(data))
	})

	t.Run("advancing to the current value is a no-op", func(t *testing.T) {
		c := cursor.NewFileCursor(cursorPath(t), 0)
		require.NoError(t, c.Advance(7))
		require.NoError(t, c.Advance(7))

		value, err := c.Read()
		require.NoError(t, err)
		require.Equal(t, int64(7), value)
	})

	t.Run("refuses to move backward", func(t *testing.T) {
		c := cursor.NewFileCursor(cursorPath(t), 0)
		require.NoError(t, c.Advance(7))

		err := c.Advance(5)
		require.Error(t, err)
		require.True(t, errors.Is(err, svnmergeerrors.ErrCursorRegression))

		var regression *svnmergeerrors.RegressionError
		require.True(t, errors.As(err, &regression))
		require.Equal(t, int64(7), regression.Current)
		require.Equal(t, int64(5), regression.Requested)
	})

	t.Run("is non-decreasing under concurrent advances", func(t *testing.T) {
		path := cursorPath(t)
		c := cursor.NewFileCursor(path, 0)

		var wg sync.WaitGroup
		for i := int64(1); i <= 20; i++ {
			wg.Add(1)
			go func(n int64) {
				defer wg.Done()
				// Losers of the race see a regression, which callers ignore.
				_ = c.Advance(n)
			}(i)
		}
		wg.Wait()

		value, err := c.Read()
		require.NoError(t, err)
		require.Equal(t, int64(20), value)

		reread, err := cursor.NewFileCursor(path, 0).Read()
		require.NoError(t, err)
		require.Equal(t, int64(20), reread)
	})
}

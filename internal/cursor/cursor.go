// Package cursor persists the last processed revision watermark. The cursor
// is the only durable state the merge engine owns; it never moves backward.
package cursor

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	svnmergeerrors "github.com/Ariequ/svn-auto-merge/internal/errors"
)

// Cursor tracks the highest fully processed revision.
type Cursor interface {
	// Read returns the last committed watermark.
	Read() (int64, error)

	// Advance durably commits a new watermark. Advancing to the current
	// value is a no-op; advancing backward fails with a RegressionError.
	Advance(n int64) error
}

// FileCursor stores the watermark as a plain-text integer, rewritten
// atomically (temp file + rename) on every advance so a crash mid-write
// never corrupts the committed value.
type FileCursor struct {
	mu      sync.Mutex
	path    string
	start   int64
	current int64
	loaded  bool
}

// NewFileCursor creates a cursor backed by path. When the file does not
// exist yet, reads return start.
func NewFileCursor(path string, start int64) *FileCursor {
	return &FileCursor{path: path, start: start}
}

func (c *FileCursor) Read() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return 0, err
	}
	return c.current, nil
}

func (c *FileCursor) Advance(n int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(); err != nil {
		return err
	}

	if n < c.current {
		return svnmergeerrors.NewRegressionError(c.current, n)
	}
	if n == c.current {
		return nil
	}

	if err := c.write(n); err != nil {
		return fmt.Errorf("failed to persist cursor: %w", err)
	}
	c.current = n
	return nil
}

func (c *FileCursor) load() error {
	if c.loaded {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		c.current = c.start
		c.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read cursor file: %w", err)
	}

	// A corrupt cursor file must not silently reset the watermark to zero;
	// that would re-merge the whole history.
	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return fmt.Errorf("cursor file %s is corrupt: %w", c.path, err)
	}

	c.current = value
	c.loaded = true
	return nil
}

func (c *FileCursor) write(n int64) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(strconv.FormatInt(n, 10) + "\n"); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

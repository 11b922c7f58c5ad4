package trigger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Merge request statuses in the queue file.
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// MergeRequest is one hook delivery queued for the daemon. Post-commit
// hooks append pending entries; the watcher drains them into a cycle and
// marks them done.
type MergeRequest struct {
	Revision    int64      `json:"revision"`
	Author      string     `json:"author,omitempty"`
	Message     string     `json:"message,omitempty"`
	Status      string     `json:"status"`
	RequestedAt time.Time  `json:"requested_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Queue is a JSON file shared between short-lived hook processes and the
// daemon. Writes go through a temp file plus rename so readers never see a
// torn file. The queue is a latency optimization only: a lost entry is
// still caught by the next poll, and the cursor keeps the merge history
// consistent either way.
type Queue struct {
	mu   sync.Mutex
	path string
}

// NewQueue creates a queue backed by the file at path. The file is created
// on first enqueue.
func NewQueue(path string) *Queue {
	return &Queue{path: path}
}

// Enqueue appends a pending request for the revision. Author and message
// are informational; the cycle re-reads revision metadata from the log.
func (q *Queue) Enqueue(revision int64, author, message string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	requests, err := q.load()
	if err != nil {
		return err
	}

	requests = append(requests, MergeRequest{
		Revision:    revision,
		Author:      author,
		Message:     message,
		Status:      StatusPending,
		RequestedAt: time.Now().UTC(),
	})

	return q.save(requests)
}

// Pending returns the queued requests that have not been drained yet.
func (q *Queue) Pending() ([]MergeRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	requests, err := q.load()
	if err != nil {
		return nil, err
	}

	pending := []MergeRequest{}
	for _, request := range requests {
		if request.Status == StatusPending {
			pending = append(pending, request)
		}
	}
	return pending, nil
}

// Drain marks every pending request done and returns them. The caller runs
// one cycle covering all of them; per-revision outcomes land in the journal,
// not here.
func (q *Queue) Drain() ([]MergeRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	requests, err := q.load()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	drained := []MergeRequest{}
	for i := range requests {
		if requests[i].Status != StatusPending {
			continue
		}
		requests[i].Status = StatusDone
		requests[i].CompletedAt = &now
		drained = append(drained, requests[i])
	}

	if len(drained) == 0 {
		return nil, nil
	}

	if err := q.save(requests); err != nil {
		return nil, err
	}
	return drained, nil
}

func (q *Queue) load() ([]MergeRequest, error) {
	data, err := os.ReadFile(q.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading merge request queue: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var requests []MergeRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return nil, fmt.Errorf("parsing merge request queue %s: %w", q.path, err)
	}
	return requests, nil
}

func (q *Queue) save(requests []MergeRequest) error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating queue directory: %w", err)
	}

	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding merge request queue: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".merge_requests-*")
	if err != nil {
		return fmt.Errorf("creating queue temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing queue temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing queue temp file: %w", err)
	}

	if err := os.Rename(tmpName, q.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing queue file: %w", err)
	}
	return nil
}

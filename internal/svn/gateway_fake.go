package svn

import (
	"context"
	"sync"
)

// FakeGateway is an in-memory Gateway for testing the merge engine without
// an svn client. Revisions are seeded up front; merge behavior per revision
// is scripted. It tracks working copy state so tests can assert that a
// rollback restored the pre-merge state.
type FakeGateway struct {
	mu sync.Mutex

	revisions []Revision

	// scripted behavior, keyed by revision number
	conflicts   map[int64][]string
	mergeErrs   map[int64]error
	commitErr   error
	rollbackErr error
	prepareErr  error
	listErr     error
	healthy     bool

	// observable state
	workingCopyDirty bool
	mergeCalls       []int64
	rollbackCalls    int
	prepareCalls     int
	commitCalls      int
	commitMessages   []string
	nextCommitted    int64
}

// NewFakeGateway creates a healthy FakeGateway with no revisions.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		conflicts: make(map[int64][]string),
		mergeErrs: make(map[int64]error),
		healthy:   true,
	}
}

// AddRevision seeds a source-branch revision.
func (f *FakeGateway) AddRevision(rev Revision) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revisions = append(f.revisions, rev)
}

// SetConflict makes Merge report a conflict for the given revision.
func (f *FakeGateway) SetConflict(revision int64, paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(paths) == 0 {
		paths = []string{"src/conflicted.go"}
	}
	f.conflicts[revision] = paths
}

// SetMergeError makes Merge fail for the given revision.
func (f *FakeGateway) SetMergeError(revision int64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeErrs[revision] = err
}

// SetCommitError makes Commit fail.
func (f *FakeGateway) SetCommitError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErr = err
}

// SetRollbackError makes Rollback fail.
func (f *FakeGateway) SetRollbackError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbackErr = err
}

// SetPrepareError makes Prepare fail.
func (f *FakeGateway) SetPrepareError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareErr = err
}

// SetListError makes ListNewRevisions fail.
func (f *FakeGateway) SetListError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErr = err
}

// SetHealthy controls the IsHealthy probe.
func (f *FakeGateway) SetHealthy(healthy bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.healthy = healthy
}

func (f *FakeGateway) ListNewRevisions(_ context.Context, since int64) ([]Revision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Revision
	for _, rev := range f.revisions {
		if rev.Number > since {
			out = append(out, rev)
		}
	}
	return out, nil
}

func (f *FakeGateway) Merge(_ context.Context, rev Revision) (MergeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeCalls = append(f.mergeCalls, rev.Number)

	if err := f.mergeErrs[rev.Number]; err != nil {
		return MergeResult{}, err
	}

	f.workingCopyDirty = true
	if paths, ok := f.conflicts[rev.Number]; ok {
		return MergeResult{
			Conflicted:      true,
			ConflictedPaths: paths,
			Output:          "C    " + paths[0],
		}, nil
	}
	return MergeResult{
		ChangedPaths: []string{"src/changed.go"},
		Output:       "U    src/changed.go",
	}, nil
}

func (f *FakeGateway) Commit(_ context.Context, message string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitCalls++
	f.commitMessages = append(f.commitMessages, message)
	if f.commitErr != nil {
		return 0, f.commitErr
	}
	f.workingCopyDirty = false
	f.nextCommitted++
	return 10000 + f.nextCommitted, nil
}

func (f *FakeGateway) Rollback(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rollbackCalls++
	if f.rollbackErr != nil {
		return f.rollbackErr
	}
	f.workingCopyDirty = false
	return nil
}

func (f *FakeGateway) Prepare(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareCalls++
	if f.prepareErr != nil {
		return f.prepareErr
	}
	f.workingCopyDirty = false
	return nil
}

func (f *FakeGateway) IsHealthy(_ context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthy
}

func (f *FakeGateway) LatestRevision(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest int64
	for _, rev := range f.revisions {
		if rev.Number > latest {
			latest = rev.Number
		}
	}
	return latest, nil
}

// MergeCalls returns the revision numbers Merge was invoked for, in order.
func (f *FakeGateway) MergeCalls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.mergeCalls...)
}

// RollbackCalls returns the number of Rollback invocations.
func (f *FakeGateway) RollbackCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbackCalls
}

// PrepareCalls returns the number of Prepare invocations.
func (f *FakeGateway) PrepareCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prepareCalls
}

// CommitCalls returns the number of Commit invocations.
func (f *FakeGateway) CommitCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commitCalls
}

// CommitMessages returns the messages passed to Commit, in order.
func (f *FakeGateway) CommitMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commitMessages...)
}

// WorkingCopyDirty reports whether the fake working copy holds uncommitted
// merge state.
func (f *FakeGateway) WorkingCopyDirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.workingCopyDirty
}

package analysis

import (
	"context"
	"sync"
)

// MockClient is a mock implementation of Client for testing purposes.
// It allows setting a predefined result without making actual API calls.
type MockClient struct {
	mu          sync.Mutex
	explanation string
	unavailable bool
	reason      string
	callCount   int
	lastRequest Request
	requests    []Request
}

// NewMockClient creates a new MockClient that reports unavailable until a
// response is set.
func NewMockClient() *MockClient {
	return &MockClient{unavailable: true, reason: "no mock response set"}
}

// Analyze implements the Client interface.
func (m *MockClient) Analyze(_ context.Context, req Request) Result {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.callCount++
	m.lastRequest = req
	m.requests = append(m.requests, req)

	if m.unavailable {
		return Unavailable(req, m.reason)
	}
	return Result{
		Revision:        req.Revision.Number,
		Explanation:     m.explanation,
		ConflictedPaths: req.ConflictedPaths,
	}
}

// SetExplanation sets the explanation to return from Analyze.
func (m *MockClient) SetExplanation(explanation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.explanation = explanation
	m.unavailable = false
	m.reason = ""
}

// SetUnavailable makes Analyze return the unavailable sentinel with reason.
func (m *MockClient) SetUnavailable(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = true
	m.reason = reason
}

// CallCount returns the number of Analyze invocations.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastRequest returns the most recent request passed to Analyze.
func (m *MockClient) LastRequest() Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRequest
}

// Requests returns all requests passed to Analyze.
func (m *MockClient) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

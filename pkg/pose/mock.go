package pose

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector replays scripted results, for tests and for running
// the pipeline without a model. Results are returned in order; once
// exhausted it keeps returning the last one.
type MockDetector struct {
	mu      sync.Mutex
	results []Result
	errs    []error
	calls   int
	closed  bool
}

// NewMock creates a mock detector that returns the given results.
func NewMock(results ...Result) *MockDetector {
	return &MockDetector{results: results}
}

// Fail schedules an error for the call at index i (0-based).
func (m *MockDetector) Fail(i int, err error) *MockDetector {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.errs) <= i {
		m.errs = append(m.errs, nil)
	}
	m.errs[i] = err
	return m
}

// Detect returns the next scripted result.
func (m *MockDetector) Detect(_ gocv.Mat) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.calls
	m.calls++

	if i < len(m.errs) && m.errs[i] != nil {
		return Result{}, m.errs[i]
	}
	if len(m.results) == 0 {
		return Result{}, nil
	}
	if i >= len(m.results) {
		i = len(m.results) - 1
	}
	return m.results[i], nil
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the mock closed.
func (m *MockDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

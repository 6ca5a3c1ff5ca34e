package testutil

import "sync"

// ProgressUpdate records one Update call.
type ProgressUpdate struct {
	BytesTransferred int64
	TotalBytes       int64
}

// MockProgressTracker records progress callbacks for assertions. Safe for
// concurrent use.
type MockProgressTracker struct {
	mu        sync.Mutex
	updates   []ProgressUpdate
	completed bool
	err       error
}

// Update implements blobtypes.ProgressTracker.
func (m *MockProgressTracker) Update(bytesTransferred, totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, ProgressUpdate{
		BytesTransferred: bytesTransferred,
		TotalBytes:       totalBytes,
	})
}

// Complete implements blobtypes.ProgressTracker.
func (m *MockProgressTracker) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
}

// Error implements blobtypes.ProgressTracker.
func (m *MockProgressTracker) Error(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Updates returns the recorded updates in callback order.
func (m *MockProgressTracker) Updates() []ProgressUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ProgressUpdate(nil), m.updates...)
}

// Completed reports whether Complete was called.
func (m *MockProgressTracker) Completed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completed
}

// Err returns the error passed to Error, if any.
func (m *MockProgressTracker) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// LastUpdate returns the final recorded update and whether any update was
// recorded.
func (m *MockProgressTracker) LastUpdate() (ProgressUpdate, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.updates) == 0 {
		return ProgressUpdate{}, false
	}
	return m.updates[len(m.updates)-1], true
}

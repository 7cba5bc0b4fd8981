package resilience

import "sync"

// JobLock is a mutual-exclusion lock keyed on a job type. It keeps at most
// one catchment rebuild and one bulk upsert in flight per outlet universe.
type JobLock struct {
	mu   sync.Mutex
	held map[string]bool
}

// NewJobLock creates an empty JobLock.
func NewJobLock() *JobLock {
	return &JobLock{held: make(map[string]bool)}
}

// TryAcquire acquires the lock for the given job type. It returns false,
// without blocking, when a job of the same type already holds it.
func (l *JobLock) TryAcquire(job string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[job] {
		return false
	}
	l.held[job] = true
	return true
}

// Release releases the lock for the given job type.
func (l *JobLock) Release(job string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, job)
}

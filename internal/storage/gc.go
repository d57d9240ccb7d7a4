package storage

import "sync"

// GCPolicy decides when a store should reclaim space. It counts commits and
// fires once every threshold commits. A nil policy or a threshold of zero
// never fires.
type GCPolicy struct {
	mu        sync.Mutex
	threshold int
	commits   int
}

// NewGCPolicy creates a policy that triggers every threshold commits.
func NewGCPolicy(threshold int) *GCPolicy {
	return &GCPolicy{threshold: threshold}
}

// RecordCommit records a commit.
// Returns true if a collection should run.
func (p *GCPolicy) RecordCommit() bool {
	if p == nil || p.threshold <= 0 {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.commits++

	return p.commits >= p.threshold
}

// Reset resets the counter after a collection ran.
func (p *GCPolicy) Reset() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.commits = 0
}

// CommitsSinceGC returns the number of commits since the last collection.
func (p *GCPolicy) CommitsSinceGC() int {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.commits
}

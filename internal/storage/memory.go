package storage

import (
	"iter"
	"slices"
	"sync"

	"github.com/serroba/docstore/internal/changes"
	"github.com/serroba/docstore/internal/revtree"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Useful for testing and development.
type MemoryStore struct {
	mu     sync.RWMutex
	trees  map[string]*revtree.Tree
	log    *changes.Log
	closed bool
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		trees: make(map[string]*revtree.Tree),
		log:   changes.NewLog(),
	}
}

// LoadTree returns a copy of the stored tree.
func (m *MemoryStore) LoadTree(docID string) (*revtree.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	tree, exists := m.trees[docID]
	if !exists {
		return nil, ErrDocumentNotFound
	}

	return tree.Clone(), nil
}

// Commit stores a copy of tree and records a change when the winner moved.
func (m *MemoryStore) Commit(tree *revtree.Tree, winnerChanged bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrStoreClosed
	}

	m.trees[tree.ID()] = tree.Clone()

	if !winnerChanged {
		return 0, nil
	}

	return m.log.Append(tree.ID()).Seq, nil
}

// Changes yields the deduplicated change entries after since.
func (m *MemoryStore) Changes(since int64) iter.Seq2[changes.Entry, error] {
	entries := m.log.Since(since)

	return func(yield func(changes.Entry, error) bool) {
		if m.isClosed() {
			yield(changes.Entry{}, ErrStoreClosed)

			return
		}

		for e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}

// LastSeq returns the highest sequence assigned so far.
func (m *MemoryStore) LastSeq() (int64, error) {
	if m.isClosed() {
		return 0, ErrStoreClosed
	}

	return m.log.LastSeq(), nil
}

// DocIDs returns the stored document ids, sorted.
func (m *MemoryStore) DocIDs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	ids := make([]string, 0, len(m.trees))
	for id := range m.trees {
		ids = append(ids, id)
	}

	slices.Sort(ids)

	return ids, nil
}

// Close marks the store closed.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true

	return nil
}

func (m *MemoryStore) isClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.closed
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

package acl

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// permissionKey uniquely identifies a user-prefix grant.
type permissionKey struct {
	prefix string
	userID string
}

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	mu          sync.RWMutex
	permissions map[permissionKey]Role
}

// NewMemoryStore creates a new in-memory permission store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		permissions: make(map[permissionKey]Role),
	}
}

// Grant gives a user a role on a prefix.
func (m *MemoryStore) Grant(prefix, userID string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.permissions[permissionKey{prefix: prefix, userID: userID}] = role

	return nil
}

// Revoke removes a user's grant on a prefix.
func (m *MemoryStore) Revoke(prefix, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := permissionKey{prefix: prefix, userID: userID}

	if _, exists := m.permissions[key]; !exists {
		return ErrPermissionNotFound
	}

	delete(m.permissions, key)

	return nil
}

// GetRole resolves the most specific grant covering docID.
func (m *MemoryStore) GetRole(docID, userID string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var (
		best  Role
		found bool
		depth = -1
	)

	for key, role := range m.permissions {
		if key.userID != userID || !strings.HasPrefix(docID, key.prefix) {
			continue
		}

		if len(key.prefix) > depth {
			best, found, depth = role, true, len(key.prefix)
		}
	}

	if !found {
		return 0, ErrPermissionNotFound
	}

	return best, nil
}

// ListPermissions returns all grants of a user.
func (m *MemoryStore) ListPermissions(userID string) ([]Permission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []Permission

	for key, role := range m.permissions {
		if key.userID == userID {
			result = append(result, Permission{
				Prefix: key.prefix,
				UserID: key.userID,
				Role:   role,
			})
		}
	}

	slices.SortFunc(result, func(a, b Permission) int {
		if c := cmp.Compare(len(b.Prefix), len(a.Prefix)); c != 0 {
			return c
		}

		return strings.Compare(a.Prefix, b.Prefix)
	})

	return result, nil
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)

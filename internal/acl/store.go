package acl

import "errors"

// Common errors.
var (
	ErrPermissionNotFound = errors.New("permission not found")
	ErrAccessDenied       = errors.New("access denied")
)

// Store defines the interface for persisting permissions.
type Store interface {
	// Grant gives a user a role on every document under prefix.
	// If the user already has a permission on that prefix, it is replaced.
	Grant(prefix, userID string, role Role) error

	// Revoke removes a user's permission on prefix.
	// Returns ErrPermissionNotFound if no permission exists.
	Revoke(prefix, userID string) error

	// GetRole returns the user's role for a document, taken from the grant
	// with the longest prefix of docID.
	// Returns ErrPermissionNotFound if no grant matches.
	GetRole(docID, userID string) (Role, error)

	// ListPermissions returns all grants of a user, longest prefix first.
	ListPermissions(userID string) ([]Permission, error)
}

package acl

import (
	"fmt"
	"strings"
)

// Role represents a user's access level for a range of documents.
type Role int

const (
	// Reader can only read documents.
	Reader Role = iota
	// Writer can read, create and update documents.
	Writer
	// Admin can also delete documents and write design documents.
	Admin
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case Reader:
		return "reader"
	case Writer:
		return "writer"
	case Admin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseRole parses the string form of a role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "reader":
		return Reader, nil
	case "writer":
		return Writer, nil
	case "admin":
		return Admin, nil
	default:
		return 0, fmt.Errorf("unknown role %q", s)
	}
}

// CanRead returns true if the role allows reading.
func (r Role) CanRead() bool {
	return r >= Reader
}

// CanWrite returns true if the role allows writing.
func (r Role) CanWrite() bool {
	return r >= Writer
}

// CanDelete returns true if the role allows deletion.
func (r Role) CanDelete() bool {
	return r >= Admin
}

// CanWriteDesign returns true if the role allows writing design documents.
func (r Role) CanWriteDesign() bool {
	return r >= Admin
}

// Permission grants a user a role on every document whose id starts with
// Prefix. The empty prefix covers the whole database.
type Permission struct {
	Prefix string
	UserID string
	Role   Role
}

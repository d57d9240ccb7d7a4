package acl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
)

// Action represents an operation a user wants to perform.
type Action int

const (
	ActionRead Action = iota
	ActionWrite
	ActionDelete
	ActionDesign
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionDelete:
		return "delete"
	case ActionDesign:
		return "design"
	default:
		return "unknown"
	}
}

// Checker validates user permissions for document operations.
type Checker struct {
	store Store
}

// NewChecker creates a new permission checker.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// CanPerform checks if a user can perform an action on a document.
func (c *Checker) CanPerform(docID, userID string, action Action) (bool, error) {
	role, err := c.store.GetRole(docID, userID)
	if err != nil {
		if errors.Is(err, ErrPermissionNotFound) {
			return false, nil
		}

		return false, err
	}

	switch action {
	case ActionRead:
		return role.CanRead(), nil
	case ActionWrite:
		return role.CanWrite(), nil
	case ActionDelete:
		return role.CanDelete(), nil
	case ActionDesign:
		return role.CanWriteDesign(), nil
	default:
		return false, nil
	}
}

// RequirePermission checks permission and returns an error if denied.
func (c *Checker) RequirePermission(docID, userID string, action Action) error {
	allowed, err := c.CanPerform(docID, userID, action)
	if err != nil {
		return err
	}

	if !allowed {
		return ErrAccessDenied
	}

	return nil
}

// ValidateUpdate authorizes an incoming revision for the user carried by ctx.
// Anonymous updates are unauthorized; a missing grant is forbidden.
func (c *Checker) ValidateUpdate(ctx context.Context, newDoc, _ *db.Document) error {
	userID := UserFromContext(ctx)
	if userID == "" {
		return docerr.ErrUnauthorized.WithMessage("You are not a valid user.")
	}

	action := actionFor(newDoc)

	err := c.RequirePermission(newDoc.ID, userID, action)
	if errors.Is(err, ErrAccessDenied) {
		return docerr.ErrForbidden.WithMessage(fmt.Sprintf("user %s may not %s %s", userID, action, newDoc.ID))
	}

	return err
}

// Authorize checks a generated write to docID for the user carried by ctx,
// with the same rules ValidateUpdate applies to imports.
func (c *Checker) Authorize(ctx context.Context, docID string, deleted bool) error {
	return c.ValidateUpdate(ctx, &db.Document{ID: docID, Deleted: deleted}, nil)
}

func actionFor(doc *db.Document) Action {
	switch {
	case strings.HasPrefix(doc.ID, document.DesignPrefix):
		return ActionDesign
	case doc.Deleted:
		return ActionDelete
	default:
		return ActionWrite
	}
}

// Ensure Checker can serve as the validation hook.
var _ db.Validator = (*Checker)(nil)

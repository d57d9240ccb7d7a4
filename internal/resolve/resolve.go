// Package resolve decides what happens when one incoming change meets a
// document's revision tree.
//
// Resolution mutates the tree it is given. Callers hand in a private copy and
// persist it only when the outcome is Accepted.
package resolve

import (
	"fmt"

	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/revtree"
)

// Kind is the result of resolving one change.
type Kind int

const (
	// Accepted means a node was added (or a stub filled) and must be committed.
	Accepted Kind = iota
	// Conflict means the claimed prior state is not the current winner.
	Conflict
	// NoOp means the revision is already known; nothing changes.
	NoOp
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case Conflict:
		return "conflict"
	case NoOp:
		return "noop"
	default:
		return "unknown"
	}
}

// Outcome describes a resolution.
type Outcome struct {
	Kind Kind
	// Tree is the resulting tree. For a brand-new document it is freshly
	// created; otherwise it is the tree passed in.
	Tree *revtree.Tree
	// Rev is the revision written, or the already known one for NoOp.
	Rev revtree.Rev
	// WinnerChanged reports whether the document's winning leaf moved.
	WinnerChanged bool
}

// Generate resolves a write that asks the store to assign the next revision.
// tree is nil when the document has never been written. token is the content
// token for the new revision.
func Generate(tree *revtree.Tree, doc document.Doc, token string) (Outcome, error) {
	if tree == nil || tree.Len() == 0 {
		if !doc.Rev.IsZero() {
			return Outcome{Kind: Conflict, Tree: tree}, nil
		}

		tree = revtree.New(doc.ID)
		node := revtree.Node{
			Rev:     revtree.Rev{Gen: 1, Token: token},
			Deleted: doc.Deleted,
			Body:    doc.Body,
		}

		if err := tree.Add(node); err != nil {
			return Outcome{}, fmt.Errorf("create %s: %w", doc.ID, err)
		}

		return Outcome{Kind: Accepted, Tree: tree, Rev: node.Rev, WinnerChanged: true}, nil
	}

	winner, _ := tree.Winner()

	switch {
	case doc.Rev.IsZero(), doc.Rev != winner.Rev:
		return Outcome{Kind: Conflict, Tree: tree}, nil
	case doc.Deleted && winner.Deleted:
		return Outcome{Kind: Conflict, Tree: tree}, nil
	}

	node := revtree.Node{
		Rev:     revtree.Rev{Gen: winner.Rev.Gen + 1, Token: token},
		Parent:  winner.Rev,
		Deleted: doc.Deleted,
		Body:    doc.Body,
	}

	if err := tree.Add(node); err != nil {
		return Outcome{}, fmt.Errorf("update %s: %w", doc.ID, err)
	}

	return Outcome{
		Kind:          Accepted,
		Tree:          tree,
		Rev:           node.Rev,
		WinnerChanged: winnerMoved(tree, winner, true),
	}, nil
}

// Import stores a caller-supplied revision verbatim together with whatever
// part of its ancestry the tree does not know yet. It never conflicts.
func Import(tree *revtree.Tree, doc document.Doc) (Outcome, error) {
	if tree == nil {
		tree = revtree.New(doc.ID)
	}

	before, hadWinner := tree.Winner()

	if existing, ok := tree.Node(doc.Rev); ok {
		if !existing.Stub {
			return Outcome{Kind: NoOp, Tree: tree, Rev: doc.Rev}, nil
		}

		if err := tree.Fill(doc.Rev, doc.Body, doc.Deleted); err != nil {
			return Outcome{}, err
		}

		return Outcome{
			Kind:          Accepted,
			Tree:          tree,
			Rev:           doc.Rev,
			WinnerChanged: winnerMoved(tree, before, hadWinner),
		}, nil
	}

	if err := graft(tree, doc); err != nil {
		return Outcome{}, fmt.Errorf("import %s %s: %w", doc.ID, doc.Rev, err)
	}

	return Outcome{
		Kind:          Accepted,
		Tree:          tree,
		Rev:           doc.Rev,
		WinnerChanged: winnerMoved(tree, before, hadWinner),
	}, nil
}

// graft inserts doc.Rev and the unknown part of its chain. Ancestors older
// than the newest known one are left alone; missing intermediate ancestors
// become stubs.
func graft(tree *revtree.Tree, doc document.Doc) error {
	chain := doc.Ancestry()

	stop := len(chain)

	for i := 1; i < len(chain); i++ {
		if tree.Has(chain[i]) {
			stop = i

			break
		}
	}

	for i := stop - 1; i >= 0; i-- {
		node := revtree.Node{Rev: chain[i], Stub: true}
		if i+1 < len(chain) {
			node.Parent = chain[i+1]
		}

		if i == 0 {
			node.Stub = false
			node.Deleted = doc.Deleted
			node.Body = doc.Body
		}

		if err := tree.Add(node); err != nil {
			return err
		}
	}

	return nil
}

func winnerMoved(tree *revtree.Tree, before revtree.Node, hadWinner bool) bool {
	after, ok := tree.Winner()
	if !ok {
		return false
	}

	if !hadWinner {
		return true
	}

	return after.Rev != before.Rev || after.Deleted != before.Deleted
}

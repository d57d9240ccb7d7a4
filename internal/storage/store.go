// Package storage persists revision trees and the sequence log.
package storage

import (
	"errors"
	"iter"

	"github.com/serroba/docstore/internal/changes"
	"github.com/serroba/docstore/internal/revtree"
)

// Common errors.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrStoreClosed      = errors.New("store closed")
)

// Store defines the interface for persisting revision trees.
// Implementations can use in-memory storage, embedded databases, or other backends.
//
// Callers serialize access per document; a Store only has to keep commits to
// different documents from corrupting the sequence log.
type Store interface {
	// LoadTree returns a private copy of the document's revision tree.
	// Returns ErrDocumentNotFound if the document was never written.
	LoadTree(docID string) (*revtree.Tree, error)

	// Commit replaces the stored tree. When winnerChanged is true the document
	// also gets a new sequence number, which is returned; otherwise the
	// returned sequence is 0. The tree and its sequence become visible together.
	Commit(tree *revtree.Tree, winnerChanged bool) (int64, error)

	// Changes yields, in ascending order, each document changed after since
	// exactly once, at its latest sequence.
	Changes(since int64) iter.Seq2[changes.Entry, error]

	// LastSeq returns the highest sequence assigned so far.
	LastSeq() (int64, error)

	// DocIDs returns every stored document id in ascending byte order.
	DocIDs() ([]string, error)

	// Close releases the store. Further calls return ErrStoreClosed.
	Close() error
}

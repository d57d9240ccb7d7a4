// Package db is the document store's write coordinator and read surface.
//
// Every write goes through BulkDocs: items are processed in input order, each
// inside its document's critical section spanning load, conflict check, hook
// and commit. Writes to different documents never block each other.
package db

import (
	"context"
	"errors"
	"log/slog"

	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/metrics"
	"github.com/serroba/docstore/internal/revtree"
	"github.com/serroba/docstore/internal/storage"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/serroba/docstore/internal/db")

// Validator authorizes imported updates. Returning a non-nil error rejects
// the item; the batch carries on.
type Validator interface {
	ValidateUpdate(ctx context.Context, newDoc, oldDoc *Document) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, newDoc, oldDoc *Document) error

// ValidateUpdate calls f.
func (f ValidatorFunc) ValidateUpdate(ctx context.Context, newDoc, oldDoc *Document) error {
	return f(ctx, newDoc, oldDoc)
}

// Notifier receives every change after it is committed.
type Notifier interface {
	NotifyChange(change Change)
}

// Config holds configuration for creating a DB.
type Config struct {
	Store     storage.Store
	Validator Validator
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// NewToken derives revision tokens. Defaults to document.NewToken.
	NewToken func() string
}

// DB is a document database on top of a storage.Store.
type DB struct {
	store     storage.Store
	validator Validator
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	newToken  func() string
	locks     *lockTable
}

// New creates a DB. A nil Store gets a fresh MemoryStore.
func New(cfg Config) *DB {
	store := cfg.Store
	if store == nil {
		store = storage.NewMemoryStore()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newToken := cfg.NewToken
	if newToken == nil {
		newToken = document.NewToken
	}

	return &DB{
		store:     store,
		validator: cfg.Validator,
		notifier:  cfg.Notifier,
		metrics:   cfg.Metrics,
		logger:    logger,
		newToken:  newToken,
		locks:     newLockTable(),
	}
}

// Close closes the underlying store.
func (d *DB) Close() error {
	return d.store.Close()
}

// Info summarizes the database.
type Info struct {
	DocCount  int   `json:"doc_count"`
	UpdateSeq int64 `json:"update_seq"`
}

// Info counts documents whose winner is live and reports the newest sequence.
func (d *DB) Info(ctx context.Context) (Info, error) {
	seq, err := d.store.LastSeq()
	if err != nil {
		return Info{}, err
	}

	ids, err := d.store.DocIDs()
	if err != nil {
		return Info{}, err
	}

	info := Info{UpdateSeq: seq}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return Info{}, err
		}

		winner, _, err := d.winner(id)
		if err != nil {
			return Info{}, err
		}

		if !winner.Deleted {
			info.DocCount++
		}
	}

	return info, nil
}

// winner loads the tree for id and returns its winning node.
// Returns storage.ErrDocumentNotFound if the document was never written.
func (d *DB) winner(id string) (revtree.Node, *revtree.Tree, error) {
	tree, err := d.store.LoadTree(id)
	if err != nil {
		return revtree.Node{}, nil, err
	}

	node, ok := tree.Winner()
	if !ok {
		return revtree.Node{}, nil, storage.ErrDocumentNotFound
	}

	return node, tree, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrDocumentNotFound)
}

package db

import (
	"context"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/revtree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GetOptions configures Get.
type GetOptions struct {
	// Rev fetches a specific revision instead of the winner. A deleted or
	// losing revision can be fetched this way.
	Rev revtree.Rev
	// Conflicts lists the live leaves that lost to the winner.
	Conflicts bool
	// Revisions includes the known ancestry of the returned revision.
	Revisions bool
}

// Get returns the winning revision of id, or the one named in opts.
// A document that never existed yields docerr.ErrMissingDoc; one whose
// winner is deleted yields docerr.ErrDeletedDoc.
func (d *DB) Get(ctx context.Context, id string, opts GetOptions) (*Document, error) {
	_, span := tracer.Start(ctx, "DB.Get", trace.WithAttributes(attribute.String("docstore.id", id)))
	defer span.End()

	winner, tree, err := d.winner(id)

	switch {
	case isNotFound(err):
		return nil, docerr.ErrMissingDoc
	case err != nil:
		return nil, err
	}

	node := winner

	if !opts.Rev.IsZero() {
		n, ok := tree.Node(opts.Rev)
		if !ok || n.Stub {
			return nil, docerr.ErrMissingDoc
		}

		node = n
	} else if winner.Deleted {
		return nil, docerr.ErrDeletedDoc
	}

	doc := fromNode(id, node)

	if opts.Conflicts && node.Rev == winner.Rev {
		doc.Conflicts = tree.Conflicts()
	}

	if opts.Revisions {
		doc.Revisions = revisionsOf(tree, node.Rev)
	}

	return doc, nil
}

// OpenRevs returns every leaf of id, deleted ones included, best ranked
// first.
func (d *DB) OpenRevs(ctx context.Context, id string) ([]*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tree, err := d.store.LoadTree(id)

	switch {
	case isNotFound(err):
		return nil, docerr.ErrMissingDoc
	case err != nil:
		return nil, err
	}

	leaves := tree.Leaves()
	docs := make([]*Document, 0, len(leaves))

	for _, leaf := range leaves {
		docs = append(docs, fromNode(id, leaf))
	}

	return docs, nil
}

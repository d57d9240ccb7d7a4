package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/resolve"
	"github.com/serroba/docstore/internal/revtree"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Options configures a write.
type Options struct {
	// Mode selects generate (the default) or import (new_edits=false).
	Mode document.Mode
}

// Result is the outcome of one bulk item.
type Result struct {
	ID  string
	Rev revtree.Rev
	Err *docerr.Error
}

// OK reports whether the item was accepted.
func (r Result) OK() bool {
	return r.Err == nil
}

type okResult struct {
	OK  bool   `json:"ok"`
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

type errResult struct {
	ID     string `json:"id"`
	Error  string `json:"error"`
	Reason string `json:"reason"`
	Status int    `json:"status"`
}

// MarshalJSON renders {"ok":true,"id","rev"} or {"id","error","reason","status"}.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Err != nil {
		return json.Marshal(errResult{
			ID:     r.ID,
			Error:  r.Err.Name,
			Reason: r.Err.Message,
			Status: r.Err.Status,
		})
	}

	return json.Marshal(okResult{OK: true, ID: r.ID, Rev: r.Rev.String()})
}

// BulkWrite validates a raw request (decoded JSON: an object with "docs" or
// a bare array) and writes it. A batch-level error is returned before any
// document is touched; per-item problems are reported in the results.
func (d *DB) BulkWrite(ctx context.Context, raw any, opts Options) ([]Result, error) {
	batch, err := document.ParseBatch(raw, opts.Mode)
	if err != nil {
		d.metrics.RecordBatch(opts.Mode.String(), 0, 0, err)

		return nil, err
	}

	return d.BulkDocs(ctx, batch.Docs, Options{Mode: batch.Mode})
}

// BulkDocs writes already parsed documents in order. Results line up with
// docs, except that imports of already known revisions produce no entry.
//
// Items committed before a storage failure or cancellation stay committed;
// the call then returns the error and no results.
func (d *DB) BulkDocs(ctx context.Context, docs []document.Doc, opts Options) ([]Result, error) {
	mode := opts.Mode.String()

	ctx, span := tracer.Start(ctx, "DB.BulkDocs", trace.WithAttributes(
		attribute.String("docstore.mode", mode),
		attribute.Int("docstore.docs", len(docs)),
	))
	defer span.End()

	start := time.Now()

	results, err := d.bulkDocs(ctx, docs, opts.Mode)

	d.metrics.RecordBatch(mode, len(docs), time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulk write failed")

		return nil, err
	}

	d.logger.DebugContext(ctx, "bulk write",
		slog.String("mode", mode),
		slog.Int("docs", len(docs)),
		slog.Int("results", len(results)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return results, nil
}

func (d *DB) bulkDocs(ctx context.Context, docs []document.Doc, mode document.Mode) ([]Result, error) {
	if mode == document.ModeImport {
		for _, doc := range docs {
			if doc.Err == nil && doc.Rev.IsZero() {
				return nil, docerr.ErrInvalidRev.WithReason("_rev is required when new_edits is false")
			}
		}
	}

	results := make([]Result, 0, len(docs))

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, emit, err := d.writeOne(ctx, doc, mode)
		if err != nil {
			d.logger.WarnContext(ctx, "bulk write aborted",
				slog.String("id", doc.ID),
				slog.String("error", err.Error()),
			)

			return nil, err
		}

		d.metrics.RecordItem(mode.String(), resultLabel(res, emit))

		if emit {
			results = append(results, res)
		}
	}

	return results, nil
}

// writeOne resolves and commits one item. emit is false for imports of
// already known revisions. Listeners are notified after the document's
// lock is released.
func (d *DB) writeOne(ctx context.Context, doc document.Doc, mode document.Mode) (Result, bool, error) {
	if doc.Err != nil {
		return Result{ID: doc.ID, Err: doc.Err}, true, nil
	}

	res, emit, change, err := d.commitOne(ctx, doc, mode)
	if change != nil && d.notifier != nil {
		d.notifier.NotifyChange(*change)
	}

	return res, emit, err
}

// commitOne runs inside doc's critical section. change is set when the
// commit moved the winner.
func (d *DB) commitOne(ctx context.Context, doc document.Doc, mode document.Mode) (Result, bool, *Change, error) {
	release := d.locks.acquire(doc.ID)
	defer release()

	tree, err := d.store.LoadTree(doc.ID)

	switch {
	case isNotFound(err):
		tree = nil
	case err != nil:
		return Result{}, false, nil, fmt.Errorf("load %s: %w", doc.ID, err)
	}

	doc.Body = document.CloneBody(doc.Body)

	var out resolve.Outcome

	switch mode {
	case document.ModeImport:
		var old *Document
		if tree != nil {
			if w, ok := tree.Winner(); ok {
				old = fromNode(doc.ID, w)
			}
		}

		out, err = resolve.Import(tree, doc)
		if err != nil {
			return Result{}, false, nil, err
		}

		if out.Kind == resolve.NoOp {
			return Result{ID: doc.ID, Rev: out.Rev}, false, nil, nil
		}

		if rejection := d.validate(ctx, fromDoc(doc), old); rejection != nil {
			return Result{ID: doc.ID, Err: rejection}, true, nil, nil
		}
	default:
		out, err = resolve.Generate(tree, doc, d.newToken())
		if err != nil {
			return Result{}, false, nil, err
		}

		if out.Kind == resolve.Conflict {
			return Result{ID: doc.ID, Err: docerr.ErrConflict}, true, nil, nil
		}
	}

	seq, err := d.store.Commit(out.Tree, out.WinnerChanged)
	if err != nil {
		return Result{}, false, nil, err
	}

	var change *Change

	if seq > 0 {
		d.metrics.SetLastSeq(seq)
		change = changeFor(seq, out.Tree)
	}

	return Result{ID: doc.ID, Rev: out.Rev}, true, change, nil
}

// validate runs the hook. A *docerr.Error passes through; anything else is
// reported as forbidden with the hook's message.
func (d *DB) validate(ctx context.Context, newDoc, oldDoc *Document) *docerr.Error {
	if d.validator == nil {
		return nil
	}

	err := d.validator.ValidateUpdate(ctx, newDoc, oldDoc)
	if err == nil {
		return nil
	}

	d.logger.DebugContext(ctx, "update rejected",
		slog.String("id", newDoc.ID),
		slog.String("rev", newDoc.Rev.String()),
		slog.String("error", err.Error()),
	)

	var derr *docerr.Error
	if errors.As(err, &derr) {
		return derr
	}

	return docerr.ErrForbidden.WithMessage(err.Error())
}

func changeFor(seq int64, tree *revtree.Tree) *Change {
	winner, ok := tree.Winner()
	if !ok {
		return nil
	}

	change := newChange(seq, tree.ID(), winner)

	return &change
}

func resultLabel(res Result, emit bool) string {
	switch {
	case !emit:
		return "noop"
	case res.Err != nil:
		return res.Err.Name
	default:
		return "ok"
	}
}

// Put writes a single document given as a decoded JSON object. A per-item
// rejection is returned as the error. Importing an already known revision
// succeeds with that revision.
func (d *DB) Put(ctx context.Context, obj map[string]any, opts Options) (Result, error) {
	doc, err := document.ParseDoc(obj, opts.Mode)
	if err != nil {
		return Result{}, err
	}

	results, err := d.BulkDocs(ctx, []document.Doc{doc}, opts)
	if err != nil {
		return Result{}, err
	}

	if len(results) == 0 {
		return Result{ID: doc.ID, Rev: doc.Rev}, nil
	}

	res := results[0]
	if res.Err != nil {
		return res, res.Err
	}

	return res, nil
}

// Delete marks the winning revision rev of id as deleted.
func (d *DB) Delete(ctx context.Context, id string, rev revtree.Rev) (Result, error) {
	obj := map[string]any{"_id": id, "_deleted": true}
	if !rev.IsZero() {
		obj["_rev"] = rev.String()
	}

	return d.Put(ctx, obj, Options{})
}

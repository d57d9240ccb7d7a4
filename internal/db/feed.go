package db

import (
	"context"
	"iter"

	"github.com/serroba/docstore/internal/revtree"
)

// ChangesOptions configures a changes feed.
type ChangesOptions struct {
	// Since is an exclusive lower bound; 0 starts from the beginning.
	Since       int64
	Limit       int
	IncludeDocs bool
}

// ChangeRev names a revision inside a change.
type ChangeRev struct {
	Rev string `json:"rev"`
}

// Change reports a document's winner at the sequence it last changed.
type Change struct {
	Seq     int64       `json:"seq"`
	ID      string      `json:"id"`
	Changes []ChangeRev `json:"changes"`
	Deleted bool        `json:"deleted,omitempty"`
	Doc     *Document   `json:"doc,omitempty"`
}

func newChange(seq int64, id string, winner revtree.Node) Change {
	return Change{
		Seq:     seq,
		ID:      id,
		Changes: []ChangeRev{{Rev: winner.Rev.String()}},
		Deleted: winner.Deleted,
	}
}

// Feed is a finite changes feed. Its upper bound is the last sequence at the
// time it was opened. A Feed is not safe for concurrent use.
type Feed struct {
	db    *DB
	opts  ChangesOptions
	upper int64
	last  int64
}

// Changes opens a feed of the documents changed after opts.Since.
func (d *DB) Changes(ctx context.Context, opts ChangesOptions) (*Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	upper, err := d.store.LastSeq()
	if err != nil {
		return nil, err
	}

	return &Feed{db: d, opts: opts, upper: upper, last: upper}, nil
}

// All yields the changes in sequence order. Each document appears once, at
// its latest sequence. All may be ranged over again to restart the feed.
// Iteration stops with ctx's error once ctx is done.
func (f *Feed) All(ctx context.Context) iter.Seq2[Change, error] {
	return func(yield func(Change, error) bool) {
		f.last = f.upper
		delivered := max(f.opts.Since, 0)
		emitted := 0

		fail := func(err error) {
			f.last = delivered
			yield(Change{}, err)
		}

		for entry, err := range f.db.store.Changes(f.opts.Since) {
			if err != nil {
				fail(err)

				return
			}

			if entry.Seq > f.upper {
				return
			}

			if err := ctx.Err(); err != nil {
				fail(err)

				return
			}

			winner, tree, err := f.db.winner(entry.ID)
			if err != nil {
				fail(err)

				return
			}

			change := newChange(entry.Seq, entry.ID, winner)
			if f.opts.IncludeDocs {
				change.Doc = fromNode(tree.ID(), winner)
			}

			delivered = entry.Seq

			if !yield(change, nil) {
				f.last = delivered

				return
			}

			emitted++
			if f.opts.Limit > 0 && emitted >= f.opts.Limit {
				f.last = delivered

				return
			}
		}
	}
}

// LastSeq reports where a follow-up feed should resume: the bound captured
// at open, or the last change delivered when iteration stopped early.
func (f *Feed) LastSeq() int64 {
	return f.last
}

package db

import (
	"context"
	"slices"
)

// AllDocsOptions configures AllDocs. Key bounds are inclusive; with
// Descending set, StartKey is the upper bound.
type AllDocsOptions struct {
	Keys        []string
	StartKey    string
	EndKey      string
	Limit       int
	Skip        int
	Descending  bool
	IncludeDocs bool
	Conflicts   bool
}

// RowValue is the value of an all-docs row.
type RowValue struct {
	Rev     string `json:"rev"`
	Deleted bool   `json:"deleted,omitempty"`
}

// Row is one all-docs row. Rows for unknown keys carry only Key and Error.
type Row struct {
	ID    string    `json:"id,omitempty"`
	Key   string    `json:"key"`
	Value *RowValue `json:"value,omitempty"`
	Doc   *Document `json:"doc,omitempty"`
	Error string    `json:"error,omitempty"`
}

// AllDocsResult is the all-docs listing.
type AllDocsResult struct {
	TotalRows int   `json:"total_rows"`
	Offset    int   `json:"offset"`
	Rows      []Row `json:"rows"`
}

// AllDocs lists documents by id. Without Keys, only documents whose winner
// is live are listed. With Keys, rows follow key order: deleted documents are
// flagged and unknown ids get a not_found row.
func (d *DB) AllDocs(ctx context.Context, opts AllDocsOptions) (AllDocsResult, error) {
	ctx, span := tracer.Start(ctx, "DB.AllDocs")
	defer span.End()

	ids, err := d.store.DocIDs()
	if err != nil {
		return AllDocsResult{}, err
	}

	var (
		live []Row
		byID = make(map[string]Row, len(ids))
	)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return AllDocsResult{}, err
		}

		row, err := d.row(id, opts)
		if err != nil {
			return AllDocsResult{}, err
		}

		byID[id] = row

		if !row.Value.Deleted {
			live = append(live, row)
		}
	}

	result := AllDocsResult{TotalRows: len(live), Rows: []Row{}}

	if opts.Keys != nil {
		rows := make([]Row, 0, len(opts.Keys))

		for _, key := range opts.Keys {
			row, ok := byID[key]
			if !ok {
				row = Row{Key: key, Error: "not_found"}
			}

			rows = append(rows, row)
		}

		if opts.Descending {
			slices.Reverse(rows)
		}

		result.Rows = page(rows, opts.Skip, opts.Limit)

		return result, nil
	}

	if opts.Descending {
		slices.Reverse(live)
	}

	first := 0
	for first < len(live) && !afterStart(live[first].ID, opts) {
		first++
	}

	last := first
	for last < len(live) && beforeEnd(live[last].ID, opts) {
		last++
	}

	result.Offset = min(first+max(opts.Skip, 0), len(live))
	result.Rows = page(live[first:last], opts.Skip, opts.Limit)

	return result, nil
}

func (d *DB) row(id string, opts AllDocsOptions) (Row, error) {
	winner, tree, err := d.winner(id)
	if err != nil {
		return Row{}, err
	}

	row := Row{
		ID:    id,
		Key:   id,
		Value: &RowValue{Rev: winner.Rev.String(), Deleted: winner.Deleted},
	}

	if opts.IncludeDocs && !winner.Deleted {
		row.Doc = fromNode(id, winner)
		if opts.Conflicts {
			row.Doc.Conflicts = tree.Conflicts()
		}
	}

	return row, nil
}

func afterStart(id string, opts AllDocsOptions) bool {
	if opts.StartKey == "" {
		return true
	}

	if opts.Descending {
		return id <= opts.StartKey
	}

	return id >= opts.StartKey
}

func beforeEnd(id string, opts AllDocsOptions) bool {
	if opts.EndKey == "" {
		return true
	}

	if opts.Descending {
		return id >= opts.EndKey
	}

	return id <= opts.EndKey
}

func page(rows []Row, skip, limit int) []Row {
	skip = max(skip, 0)
	if skip >= len(rows) {
		return []Row{}
	}

	rows = rows[skip:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}

	return rows
}

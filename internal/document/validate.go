package document

import (
	"math"
	"strings"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/revtree"
)

// Batch is a validated bulk request.
type Batch struct {
	Docs []Doc
	Mode Mode
}

// ignoredFields are reserved members accepted on input and dropped.
var ignoredFields = map[string]struct{}{
	"_conflicts":         {},
	"_deleted_conflicts": {},
	"_local_seq":         {},
	"_revs_info":         {},
	"_attachments":       {},
}

// ParseBatch validates a raw bulk request. v is either an object holding a
// "docs" array (and optionally "new_edits") or the array itself.
func ParseBatch(v any, mode Mode) (Batch, error) {
	entries, mode, err := extractEntries(v, mode)
	if err != nil {
		return Batch{}, err
	}

	objects := make([]map[string]any, len(entries))

	for i, entry := range entries {
		obj, ok := entry.(map[string]any)
		if !ok {
			return Batch{}, docerr.ErrNotAnObject
		}

		objects[i] = obj
	}

	batch := Batch{Docs: make([]Doc, 0, len(objects)), Mode: mode}

	for _, obj := range objects {
		doc, err := ParseDoc(obj, mode)
		if err != nil {
			return Batch{}, err
		}

		batch.Docs = append(batch.Docs, doc)
	}

	return batch, nil
}

func extractEntries(v any, mode Mode) ([]any, Mode, error) {
	switch val := v.(type) {
	case []any:
		return val, mode, nil
	case []map[string]any:
		entries := make([]any, len(val))
		for i, m := range val {
			entries[i] = m
		}

		return entries, mode, nil
	case map[string]any:
		if newEdits, ok := val["new_edits"].(bool); ok {
			mode = ModeGenerate
			if !newEdits {
				mode = ModeImport
			}
		}

		return extractEntries(val["docs"], mode)
	default:
		return nil, mode, docerr.ErrMissingBulkDocs
	}
}

// ParseDoc turns one object into a Doc. The returned error is non-nil only
// for problems that fail the whole batch; per-entry problems land in Doc.Err.
func ParseDoc(obj map[string]any, mode Mode) (Doc, error) {
	doc := Doc{Body: make(map[string]any, len(obj))}

	parseID(&doc, obj, mode)

	if err := parseRev(&doc, obj, mode); err != nil {
		return Doc{}, err
	}

	if deleted, ok := obj["_deleted"].(bool); ok {
		doc.Deleted = deleted
	}

	for key, value := range obj {
		switch key {
		case "_id", "_rev", "_deleted", "_revisions":
			continue
		}

		if !strings.HasPrefix(key, "_") {
			doc.Body[key] = value

			continue
		}

		if _, ignored := ignoredFields[key]; ignored {
			continue
		}

		if doc.Err == nil {
			doc.Err = docerr.ErrDocValidation.WithReason(key)
		}
	}

	return doc, nil
}

func parseID(doc *Doc, obj map[string]any, mode Mode) {
	raw, present := obj["_id"]

	id, isString := raw.(string)

	switch {
	case present && !isString:
		doc.Err = docerr.ErrReservedID
	case id == "" && mode == ModeImport:
		doc.Err = docerr.ErrMissingID
	case id == "":
		doc.ID = NewID()
	case IsReservedID(id):
		doc.ID = id
		doc.Err = docerr.ErrReservedID
	default:
		doc.ID = id
	}
}

func parseRev(doc *Doc, obj map[string]any, mode Mode) error {
	raw, present := obj["_rev"]
	if !present || raw == nil {
		if mode == ModeImport {
			return docerr.ErrInvalidRev.WithReason("_rev is required when new_edits is false")
		}

		return nil
	}

	s, _ := raw.(string)

	r, err := revtree.ParseRev(s)
	if err != nil {
		if mode == ModeImport {
			return err
		}

		if doc.Err == nil {
			doc.Err = docerr.From(err)
		}

		return nil
	}

	doc.Rev = r

	if mode != ModeImport {
		return nil
	}

	revs, present := obj["_revisions"]
	if !present {
		return nil
	}

	chain, ok := parseRevisions(revs)
	if !ok || chain.Start != r.Gen || chain.IDs[0] != r.Token || chain.Start-len(chain.IDs) < 0 {
		return docerr.ErrInvalidRev.WithReason("_revisions does not match _rev " + r.String())
	}

	doc.Revisions = &chain

	return nil
}

func parseRevisions(v any) (Revisions, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return Revisions{}, false
	}

	start, ok := toInt(obj["start"])
	if !ok {
		return Revisions{}, false
	}

	var ids []string

	switch raw := obj["ids"].(type) {
	case []string:
		ids = raw
	case []any:
		for _, item := range raw {
			s, ok := item.(string)
			if !ok || s == "" {
				return Revisions{}, false
			}

			ids = append(ids, s)
		}
	default:
		return Revisions{}, false
	}

	if len(ids) == 0 {
		return Revisions{}, false
	}

	return Revisions{Start: start, IDs: ids}, true
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}

		return int(n), true
	default:
		return 0, false
	}
}

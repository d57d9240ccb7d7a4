package db

import (
	"encoding/json"
	"maps"

	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/revtree"
)

// Document is one revision of a document as seen by readers and by the
// validation hook.
type Document struct {
	ID        string
	Rev       revtree.Rev
	Deleted   bool
	Body      map[string]any
	Conflicts []revtree.Rev
	Revisions *document.Revisions
}

// MarshalJSON flattens the document into a single object with the reserved
// members alongside the body.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := maps.Clone(d.Body)
	if out == nil {
		out = make(map[string]any, 4)
	}

	out["_id"] = d.ID
	out["_rev"] = d.Rev.String()

	if d.Deleted {
		out["_deleted"] = true
	}

	if len(d.Conflicts) > 0 {
		conflicts := make([]string, len(d.Conflicts))
		for i, r := range d.Conflicts {
			conflicts[i] = r.String()
		}

		out["_conflicts"] = conflicts
	}

	if d.Revisions != nil {
		out["_revisions"] = d.Revisions
	}

	return json.Marshal(out)
}

// fromNode builds a reader copy of node. The body is deep-copied.
func fromNode(id string, node revtree.Node) *Document {
	return &Document{
		ID:      id,
		Rev:     node.Rev,
		Deleted: node.Deleted,
		Body:    document.CloneBody(node.Body),
	}
}

// fromDoc builds the hook's view of an incoming entry.
func fromDoc(doc document.Doc) *Document {
	return &Document{
		ID:        doc.ID,
		Rev:       doc.Rev,
		Deleted:   doc.Deleted,
		Body:      doc.Body,
		Revisions: doc.Revisions,
	}
}

// revisionsOf returns the known ancestry of r in the form used by _revisions.
func revisionsOf(tree *revtree.Tree, r revtree.Rev) *document.Revisions {
	path := tree.Path(r)
	if len(path) == 0 {
		return nil
	}

	ids := make([]string, len(path))
	for i, p := range path {
		ids[i] = p.Token
	}

	return &document.Revisions{Start: path[0].Gen, IDs: ids}
}

// Package document validates and parses incoming bulk write requests.
//
// Parsing never touches stored state. Shape problems that make iteration
// unsafe fail the whole batch; problems confined to one entry are recorded on
// that entry and reported when the batch is committed.
package document

import (
	"strings"

	"github.com/google/uuid"
	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/revtree"
)

// DesignPrefix is the only reserved id namespace clients may write to.
const DesignPrefix = "_design/"

// Mode selects how revisions are assigned.
type Mode int

const (
	// ModeGenerate assigns new revisions on top of a claimed current one.
	ModeGenerate Mode = iota
	// ModeImport stores caller-supplied revisions verbatim (new_edits=false).
	ModeImport
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeGenerate:
		return "generate"
	case ModeImport:
		return "import"
	default:
		return "unknown"
	}
}

// Revisions is an explicit ancestry chain: tokens newest first, the first
// one at generation Start.
type Revisions struct {
	Start int      `json:"start"`
	IDs   []string `json:"ids"`
}

// Revs expands the chain into revision ids, newest first.
func (r Revisions) Revs() []revtree.Rev {
	revs := make([]revtree.Rev, 0, len(r.IDs))
	for i, token := range r.IDs {
		revs = append(revs, revtree.Rev{Gen: r.Start - i, Token: token})
	}

	return revs
}

// Doc is one parsed entry of a bulk request.
type Doc struct {
	ID        string
	Rev       revtree.Rev
	Deleted   bool
	Revisions *Revisions
	Body      map[string]any

	// Err is set when the entry is invalid on its own. The coordinator
	// reports it in place of a write.
	Err *docerr.Error
}

// Ancestry returns the doc's revision chain, newest first, always starting
// with Rev. Without explicit Revisions it is just Rev.
func (d Doc) Ancestry() []revtree.Rev {
	if d.Revisions == nil || len(d.Revisions.IDs) == 0 {
		if d.Rev.IsZero() {
			return nil
		}

		return []revtree.Rev{d.Rev}
	}

	return d.Revisions.Revs()
}

// NewID returns a fresh document id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewToken returns a fresh revision token.
func NewToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// IsReservedID reports whether id uses the underscore namespace outside of
// design documents.
func IsReservedID(id string) bool {
	return strings.HasPrefix(id, "_") && !strings.HasPrefix(id, DesignPrefix)
}

// CloneBody deep-copies a decoded JSON object.
func CloneBody(body map[string]any) map[string]any {
	if body == nil {
		return nil
	}

	out := make(map[string]any, len(body))
	for k, v := range body {
		out[k] = cloneValue(v)
	}

	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneBody(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}

		return out
	default:
		return val
	}
}

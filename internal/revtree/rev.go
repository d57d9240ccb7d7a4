// Package revtree holds the per-document revision history.
//
// A Tree is an arena of nodes keyed by revision id. Parents are referenced by
// id rather than by pointer, so branches can share ancestry without cycles.
package revtree

import (
	"strconv"
	"strings"

	"github.com/serroba/docstore/internal/docerr"
)

// Rev identifies one revision of a document: "<generation>-<token>".
type Rev struct {
	Gen   int
	Token string
}

// ParseRev parses "<generation>-<token>".
func ParseRev(s string) (Rev, error) {
	genPart, token, ok := strings.Cut(s, "-")
	if !ok || token == "" {
		return Rev{}, docerr.ErrInvalidRev.WithReason(s)
	}

	gen, err := strconv.Atoi(genPart)
	if err != nil || gen < 1 {
		return Rev{}, docerr.ErrInvalidRev.WithReason(s)
	}

	return Rev{Gen: gen, Token: token}, nil
}

// MustParseRev is ParseRev for literals known to be valid.
func MustParseRev(s string) Rev {
	r, err := ParseRev(s)
	if err != nil {
		panic(err)
	}

	return r
}

// String returns the wire form of the revision.
func (r Rev) String() string {
	if r.IsZero() {
		return ""
	}

	return strconv.Itoa(r.Gen) + "-" + r.Token
}

// IsZero reports whether r is the absent revision.
func (r Rev) IsZero() bool {
	return r.Gen == 0 && r.Token == ""
}

// Compare orders revisions of the same document: higher generation ranks
// higher, equal generations fall back to byte-wise token order.
// It returns -1, 0 or +1.
func Compare(a, b Rev) int {
	switch {
	case a.Gen < b.Gen:
		return -1
	case a.Gen > b.Gen:
		return 1
	}

	return strings.Compare(a.Token, b.Token)
}

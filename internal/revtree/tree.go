package revtree

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Common errors.
var (
	ErrDuplicateRev  = errors.New("revision already in tree")
	ErrUnknownParent = errors.New("parent revision not in tree")
	ErrBadGeneration = errors.New("child generation must follow its parent")
	ErrNotStub       = errors.New("revision is not a stub")
)

// Node is one revision of a document.
type Node struct {
	Rev     Rev
	Parent  Rev // zero for roots
	Deleted bool
	// Stub marks an ancestor known only by id, imported as part of a
	// revision chain without its content.
	Stub bool
	Body map[string]any
}

// Tree is the revision forest of a single document. It is not safe for
// concurrent use; callers serialize access per document.
type Tree struct {
	id       string
	nodes    map[string]*Node
	children map[string]int
}

// New creates an empty tree for docID.
func New(docID string) *Tree {
	return &Tree{
		id:       docID,
		nodes:    make(map[string]*Node),
		children: make(map[string]int),
	}
}

// ID returns the document id the tree belongs to.
func (t *Tree) ID() string {
	return t.id
}

// Len returns the number of nodes, stubs included.
func (t *Tree) Len() int {
	return len(t.nodes)
}

// Has reports whether r is in the tree.
func (t *Tree) Has(r Rev) bool {
	_, ok := t.nodes[r.String()]

	return ok
}

// Node returns a copy of the node for r.
func (t *Tree) Node(r Rev) (Node, bool) {
	n, ok := t.nodes[r.String()]
	if !ok {
		return Node{}, false
	}

	return *n, true
}

// Add appends a node. Its parent, if any, must already be present and one
// generation older.
func (t *Tree) Add(n Node) error {
	key := n.Rev.String()
	if _, exists := t.nodes[key]; exists {
		return fmt.Errorf("%s %s: %w", t.id, key, ErrDuplicateRev)
	}

	if !n.Parent.IsZero() {
		parent, ok := t.nodes[n.Parent.String()]
		if !ok {
			return fmt.Errorf("%s %s: %w", t.id, n.Parent, ErrUnknownParent)
		}

		if parent.Rev.Gen+1 != n.Rev.Gen {
			return fmt.Errorf("%s %s after %s: %w", t.id, key, n.Parent, ErrBadGeneration)
		}

		t.children[n.Parent.String()]++
	}

	node := n
	t.nodes[key] = &node

	return nil
}

// Fill gives a stub its content. The node's position in the tree is unchanged.
func (t *Tree) Fill(r Rev, body map[string]any, deleted bool) error {
	n, ok := t.nodes[r.String()]
	if !ok || !n.Stub {
		return fmt.Errorf("%s %s: %w", t.id, r, ErrNotStub)
	}

	n.Stub = false
	n.Body = body
	n.Deleted = deleted

	return nil
}

// Leaves returns every node without children, best ranked first.
func (t *Tree) Leaves() []Node {
	var leaves []Node

	for key, n := range t.nodes {
		if t.children[key] == 0 {
			leaves = append(leaves, *n)
		}
	}

	slices.SortFunc(leaves, func(a, b Node) int {
		return CompareLeaves(b, a)
	})

	return leaves
}

// Winner returns the leaf that currently represents the document.
func (t *Tree) Winner() (Node, bool) {
	var (
		best  *Node
		found bool
	)

	for key, n := range t.nodes {
		if t.children[key] != 0 {
			continue
		}

		if !found || CompareLeaves(*n, *best) > 0 {
			best = n
			found = true
		}
	}

	if !found {
		return Node{}, false
	}

	return *best, true
}

// CompareLeaves ranks two leaves. A live leaf outranks a deleted one;
// otherwise Compare decides. Equal revisions compare equal.
func CompareLeaves(a, b Node) int {
	if a.Deleted != b.Deleted {
		if a.Deleted {
			return -1
		}

		return 1
	}

	return Compare(a.Rev, b.Rev)
}

// Conflicts returns the live leaves that lost to the winner.
func (t *Tree) Conflicts() []Rev {
	winner, ok := t.Winner()
	if !ok {
		return nil
	}

	var revs []Rev

	for _, leaf := range t.Leaves() {
		if leaf.Rev != winner.Rev && !leaf.Deleted {
			revs = append(revs, leaf.Rev)
		}
	}

	return revs
}

// Path returns r and its known ancestors, newest first.
func (t *Tree) Path(r Rev) []Rev {
	var path []Rev

	for cur := r; !cur.IsZero(); {
		n, ok := t.nodes[cur.String()]
		if !ok {
			break
		}

		path = append(path, n.Rev)
		cur = n.Parent
	}

	return path
}

// Clone returns a tree that shares no node structs with t.
// Bodies are shared; they are never modified in place.
func (t *Tree) Clone() *Tree {
	c := &Tree{
		id:       t.id,
		nodes:    make(map[string]*Node, len(t.nodes)),
		children: maps.Clone(t.children),
	}

	for key, n := range t.nodes {
		node := *n
		c.nodes[key] = &node
	}

	return c
}

// ordered returns every node, parents before children.
func (t *Tree) ordered() []Node {
	nodes := make([]Node, 0, len(t.nodes))
	for _, n := range t.nodes {
		nodes = append(nodes, *n)
	}

	slices.SortFunc(nodes, func(a, b Node) int {
		return Compare(a.Rev, b.Rev)
	})

	return nodes
}

type jsonNode struct {
	Rev     string         `json:"rev"`
	Parent  string         `json:"parent,omitempty"`
	Deleted bool           `json:"deleted,omitempty"`
	Stub    bool           `json:"stub,omitempty"`
	Body    map[string]any `json:"body,omitempty"`
}

type jsonTree struct {
	ID    string     `json:"id"`
	Nodes []jsonNode `json:"nodes"`
}

// MarshalJSON encodes the tree with parents listed before their children.
func (t *Tree) MarshalJSON() ([]byte, error) {
	out := jsonTree{ID: t.id, Nodes: make([]jsonNode, 0, len(t.nodes))}

	for _, n := range t.ordered() {
		out.Nodes = append(out.Nodes, jsonNode{
			Rev:     n.Rev.String(),
			Parent:  n.Parent.String(),
			Deleted: n.Deleted,
			Stub:    n.Stub,
			Body:    n.Body,
		})
	}

	return json.Marshal(out)
}

// UnmarshalJSON rebuilds a tree encoded by MarshalJSON.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var in jsonTree
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*t = *New(in.ID)

	for _, jn := range in.Nodes {
		r, err := ParseRev(jn.Rev)
		if err != nil {
			return err
		}

		var parent Rev
		if jn.Parent != "" {
			if parent, err = ParseRev(jn.Parent); err != nil {
				return err
			}
		}

		if err := t.Add(Node{
			Rev:     r,
			Parent:  parent,
			Deleted: jn.Deleted,
			Stub:    jn.Stub,
			Body:    jn.Body,
		}); err != nil {
			return err
		}
	}

	return nil
}

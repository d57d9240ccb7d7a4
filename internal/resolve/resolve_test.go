package resolve_test

import (
	"testing"

	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/resolve"
	"github.com/serroba/docstore/internal/revtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rev(s string) revtree.Rev {
	return revtree.MustParseRev(s)
}

func imported(id, r string, deleted bool, start int, ids ...string) document.Doc {
	doc := document.Doc{ID: id, Rev: rev(r), Deleted: deleted, Body: map[string]any{}}
	if len(ids) > 0 {
		doc.Revisions = &document.Revisions{Start: start, IDs: ids}
	}

	return doc
}

func mustImport(t *testing.T, tree *revtree.Tree, doc document.Doc) resolve.Outcome {
	t.Helper()

	out, err := resolve.Import(tree, doc)
	require.NoError(t, err)

	return out
}

func TestGenerate_NewDocument(t *testing.T) {
	t.Parallel()

	out, err := resolve.Generate(nil, document.Doc{ID: "foo", Body: map[string]any{"a": 1}}, "tok")
	require.NoError(t, err)

	assert.Equal(t, resolve.Accepted, out.Kind)
	assert.Equal(t, rev("1-tok"), out.Rev)
	assert.True(t, out.WinnerChanged)

	winner, ok := out.Tree.Winner()
	require.True(t, ok)
	assert.Equal(t, rev("1-tok"), winner.Rev)
	assert.Equal(t, 1, winner.Body["a"])
}

func TestGenerate_NewDocumentWithRevConflicts(t *testing.T) {
	t.Parallel()

	out, err := resolve.Generate(nil, document.Doc{ID: "foo", Rev: rev("1-a")}, "tok")
	require.NoError(t, err)
	assert.Equal(t, resolve.Conflict, out.Kind)
}

func TestGenerate_Update(t *testing.T) {
	t.Parallel()

	first, err := resolve.Generate(nil, document.Doc{ID: "foo"}, "a")
	require.NoError(t, err)

	out, err := resolve.Generate(first.Tree, document.Doc{ID: "foo", Rev: first.Rev}, "b")
	require.NoError(t, err)

	assert.Equal(t, resolve.Accepted, out.Kind)
	assert.Equal(t, rev("2-b"), out.Rev)
	assert.True(t, out.WinnerChanged)
	assert.Equal(t, []revtree.Rev{rev("2-b"), rev("1-a")}, out.Tree.Path(out.Rev))
}

func TestGenerate_Conflicts(t *testing.T) {
	t.Parallel()

	base := func(t *testing.T) *revtree.Tree {
		t.Helper()

		first, err := resolve.Generate(nil, document.Doc{ID: "foo"}, "a")
		require.NoError(t, err)

		second, err := resolve.Generate(first.Tree, document.Doc{ID: "foo", Rev: rev("1-a")}, "b")
		require.NoError(t, err)

		return second.Tree
	}

	tests := []struct {
		name string
		doc  document.Doc
	}{
		{"no rev on existing doc", document.Doc{ID: "foo"}},
		{"stale rev", document.Doc{ID: "foo", Rev: rev("1-a")}},
		{"unknown rev", document.Doc{ID: "foo", Rev: rev("2-zzz")}},
		{"stale delete", document.Doc{ID: "foo", Rev: rev("1-a"), Deleted: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tree := base(t)

			out, err := resolve.Generate(tree, tt.doc, "c")
			require.NoError(t, err)
			assert.Equal(t, resolve.Conflict, out.Kind)
			assert.Equal(t, 2, tree.Len(), "conflict must not touch the tree")
		})
	}
}

func TestGenerate_DeleteTwiceConflicts(t *testing.T) {
	t.Parallel()

	first, err := resolve.Generate(nil, document.Doc{ID: "foo"}, "a")
	require.NoError(t, err)

	del, err := resolve.Generate(first.Tree, document.Doc{ID: "foo", Rev: first.Rev, Deleted: true}, "b")
	require.NoError(t, err)
	require.Equal(t, resolve.Accepted, del.Kind)

	winner, _ := del.Tree.Winner()
	assert.True(t, winner.Deleted)

	again, err := resolve.Generate(del.Tree, document.Doc{ID: "foo", Rev: del.Rev, Deleted: true}, "c")
	require.NoError(t, err)
	assert.Equal(t, resolve.Conflict, again.Kind)
}

func TestGenerate_RecreateOnDeletedWinner(t *testing.T) {
	t.Parallel()

	first, err := resolve.Generate(nil, document.Doc{ID: "foo"}, "a")
	require.NoError(t, err)

	del, err := resolve.Generate(first.Tree, document.Doc{ID: "foo", Rev: first.Rev, Deleted: true}, "b")
	require.NoError(t, err)

	back, err := resolve.Generate(del.Tree, document.Doc{ID: "foo", Rev: del.Rev}, "c")
	require.NoError(t, err)
	assert.Equal(t, resolve.Accepted, back.Kind)
	assert.Equal(t, rev("3-c"), back.Rev)
}

func TestImport_KnownRevisionIsNoOp(t *testing.T) {
	t.Parallel()

	doc := imported("foo", "1-x", false, 1, "x")
	doc.Body = map[string]any{"bar": "baz"}

	first := mustImport(t, nil, doc)
	require.Equal(t, resolve.Accepted, first.Kind)
	assert.True(t, first.WinnerChanged)

	changed := imported("foo", "1-x", false, 1, "x")
	changed.Body = map[string]any{"bar": "zam"}

	second := mustImport(t, first.Tree, changed)
	assert.Equal(t, resolve.NoOp, second.Kind)
	assert.False(t, second.WinnerChanged)

	winner, _ := second.Tree.Winner()
	assert.Equal(t, "baz", winner.Body["bar"])
}

func TestImport_DeletedLeafThenLiveLeafIsOrderIndependent(t *testing.T) {
	t.Parallel()

	deleted := imported("EE35E", "4-70b26", true, 4, "70b26", "9f454", "914bf", "7fdf8")
	live := imported("EE35E", "3-f6d28", false, 3, "f6d28", "914bf", "7fdf8")

	orders := [][]document.Doc{{deleted, live}, {live, deleted}}

	for _, order := range orders {
		var tree *revtree.Tree
		for _, doc := range order {
			out := mustImport(t, tree, doc)
			require.Equal(t, resolve.Accepted, out.Kind)
			tree = out.Tree
		}

		winner, ok := tree.Winner()
		require.True(t, ok)
		assert.Equal(t, rev("3-f6d28"), winner.Rev)
		assert.False(t, winner.Deleted)
		assert.Equal(t, 5, tree.Len())
		assert.Len(t, tree.Leaves(), 2)
	}
}

func TestImport_DeletionWithHistory(t *testing.T) {
	t.Parallel()

	first := mustImport(t, nil, imported("foo", "1-x", false, 1, "x"))
	second := mustImport(t, first.Tree, imported("foo", "2-y", true, 2, "y", "x"))

	assert.True(t, second.WinnerChanged)

	winner, _ := second.Tree.Winner()
	assert.Equal(t, rev("2-y"), winner.Rev)
	assert.True(t, winner.Deleted)
}

func TestImport_DeletionWithoutHistory(t *testing.T) {
	t.Parallel()

	first := mustImport(t, nil, imported("foo", "1-x", false, 1, "x"))
	second := mustImport(t, first.Tree, imported("foo", "2-y", true, 0))

	assert.Equal(t, resolve.Accepted, second.Kind)
	assert.False(t, second.WinnerChanged)

	winner, _ := second.Tree.Winner()
	assert.Equal(t, rev("1-x"), winner.Rev)
	assert.False(t, winner.Deleted)
}

func TestImport_ModificationWithoutHistory(t *testing.T) {
	t.Parallel()

	first := mustImport(t, nil, imported("foo", "1-x", false, 1, "x"))
	second := mustImport(t, first.Tree, imported("foo", "2-y", false, 0))

	assert.True(t, second.WinnerChanged)

	winner, _ := second.Tree.Winner()
	assert.Equal(t, rev("2-y"), winner.Rev)
}

func TestImport_DeletedOnlyRevision(t *testing.T) {
	t.Parallel()

	out := mustImport(t, nil, imported("foo", "2-y", true, 0))

	winner, ok := out.Tree.Winner()
	require.True(t, ok)
	assert.Equal(t, rev("2-y"), winner.Rev)
	assert.True(t, winner.Deleted)
}

func TestImport_StubsAreFilledLater(t *testing.T) {
	t.Parallel()

	first := mustImport(t, nil, imported("foo", "3-c", false, 3, "c", "b", "a"))

	stub, ok := first.Tree.Node(rev("2-b"))
	require.True(t, ok)
	assert.True(t, stub.Stub)

	filled := imported("foo", "2-b", false, 2, "b", "a")
	filled.Body = map[string]any{"v": "two"}

	second := mustImport(t, first.Tree, filled)
	assert.Equal(t, resolve.Accepted, second.Kind)
	assert.False(t, second.WinnerChanged)

	node, _ := second.Tree.Node(rev("2-b"))
	assert.False(t, node.Stub)
	assert.Equal(t, "two", node.Body["v"])
}

func TestImport_DoesNotMaterializeBelowKnownAncestor(t *testing.T) {
	t.Parallel()

	root := mustImport(t, nil, imported("foo", "2-b", false, 0))
	out := mustImport(t, root.Tree, imported("foo", "3-c", true, 3, "c", "b", "a"))

	assert.False(t, out.Tree.Has(rev("1-a")))
	assert.Equal(t, []revtree.Rev{rev("3-c"), rev("2-b")}, out.Tree.Path(rev("3-c")))
}

func TestImport_BranchesOffSharedAncestor(t *testing.T) {
	t.Parallel()

	a := mustImport(t, nil, imported("mydoc", "3-aaa", false, 3, "aaa", "u2", "u1"))
	b := mustImport(t, a.Tree, imported("mydoc", "3-bbb", false, 3, "bbb", "u2", "u1"))

	assert.True(t, b.WinnerChanged)
	assert.Len(t, b.Tree.Leaves(), 2)

	winner, _ := b.Tree.Winner()
	assert.Equal(t, rev("3-bbb"), winner.Rev)
	assert.Equal(t, []revtree.Rev{rev("3-aaa")}, b.Tree.Conflicts())
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "accepted", resolve.Accepted.String())
	assert.Equal(t, "conflict", resolve.Conflict.String())
	assert.Equal(t, "noop", resolve.NoOp.String())
	assert.Equal(t, "unknown", resolve.Kind(42).String())
}

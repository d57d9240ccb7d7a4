package document_test

import (
	"encoding/json"
	"testing"

	"github.com/serroba/docstore/internal/docerr"
	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/revtree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()

	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))

	return v
}

func TestParseBatch_ObjectAndArrayForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"object", `{"docs":[{"_id":"0","integer":0},{"_id":"1","integer":1}]}`},
		{"array", `[{"_id":"0","integer":0},{"_id":"1","integer":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			batch, err := document.ParseBatch(decode(t, tt.raw), document.ModeGenerate)
			require.NoError(t, err)
			require.Len(t, batch.Docs, 2)
			assert.Equal(t, "0", batch.Docs[0].ID)
			assert.Equal(t, "1", batch.Docs[1].ID)
			assert.InDelta(t, 1.0, batch.Docs[1].Body["integer"], 0)
			assert.Nil(t, batch.Docs[0].Err)
		})
	}
}

func TestParseBatch_Empty(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{`[]`, `{"docs":[]}`} {
		batch, err := document.ParseBatch(decode(t, raw), document.ModeGenerate)
		require.NoError(t, err)
		assert.Empty(t, batch.Docs)
	}
}

func TestParseBatch_BatchLevelErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		mode document.Mode
		want *docerr.Error
	}{
		{"wrong key", `{"doc":[{"foo":"bar"}]}`, document.ModeGenerate, docerr.ErrMissingBulkDocs},
		{"docs not an array", `{"docs":"foo"}`, document.ModeGenerate, docerr.ErrMissingBulkDocs},
		{"scalar body", `"foo"`, document.ModeGenerate, docerr.ErrMissingBulkDocs},
		{"string entry", `{"docs":["foo"]}`, document.ModeGenerate, docerr.ErrNotAnObject},
		{"array entry", `{"docs":[[]]}`, document.ModeGenerate, docerr.ErrNotAnObject},
		{"late bad entry", `[{"_id":"a"},{"_id":"b"},7]`, document.ModeGenerate, docerr.ErrNotAnObject},
		{"import without rev", `[{"_id":"foo","integer":1}]`, document.ModeImport, docerr.ErrInvalidRev},
		{"import with bad rev", `[{"_id":"foo","_rev":"nope"}]`, document.ModeImport, docerr.ErrInvalidRev},
		{
			"import chain mismatch",
			`[{"_id":"foo","_rev":"2-y","_revisions":{"start":3,"ids":["y","x"]}}]`,
			document.ModeImport, docerr.ErrInvalidRev,
		},
		{
			"import chain too long",
			`[{"_id":"foo","_rev":"2-y","_revisions":{"start":2,"ids":["y","x","w"]}}]`,
			document.ModeImport, docerr.ErrInvalidRev,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := document.ParseBatch(decode(t, tt.raw), tt.mode)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParseBatch_NilInput(t *testing.T) {
	t.Parallel()

	_, err := document.ParseBatch(nil, document.ModeGenerate)
	require.ErrorIs(t, err, docerr.ErrMissingBulkDocs)
}

func TestParseBatch_NewEditsInBody(t *testing.T) {
	t.Parallel()

	raw := `{"new_edits":false,"docs":[{"_id":"foo","_rev":"1-x","_revisions":{"start":1,"ids":["x"]}}]}`

	batch, err := document.ParseBatch(decode(t, raw), document.ModeGenerate)
	require.NoError(t, err)
	assert.Equal(t, document.ModeImport, batch.Mode)
	require.NotNil(t, batch.Docs[0].Revisions)
	assert.Equal(t, []revtree.Rev{revtree.MustParseRev("1-x")}, batch.Docs[0].Ancestry())
}

func TestParseBatch_PerItemErrors(t *testing.T) {
	t.Parallel()

	raw := `[
		{"_id":"_invalid","foo":"bar"},
		{"_id":123,"foo":"bar"},
		{"_id":"_design/ok"},
		{"_id":"weird","_zzz":1},
		{"_id":"badrev","_rev":"abc"},
		{"_id":"fine","_conflicts":["2-x"]}
	]`

	batch, err := document.ParseBatch(decode(t, raw), document.ModeGenerate)
	require.NoError(t, err)
	require.Len(t, batch.Docs, 6)

	assert.ErrorIs(t, batch.Docs[0].Err, docerr.ErrReservedID)
	assert.ErrorIs(t, batch.Docs[1].Err, docerr.ErrReservedID)
	assert.Nil(t, batch.Docs[2].Err)
	assert.ErrorIs(t, batch.Docs[3].Err, docerr.ErrDocValidation)
	assert.ErrorIs(t, batch.Docs[4].Err, docerr.ErrInvalidRev)
	assert.Nil(t, batch.Docs[5].Err)
	assert.NotContains(t, batch.Docs[5].Body, "_conflicts")
}

func TestParseBatch_GeneratesMissingIDs(t *testing.T) {
	t.Parallel()

	raw := `[{"name":"Dale Harvey"},{"name":"Mikeal Rogers"}]`

	batch, err := document.ParseBatch(decode(t, raw), document.ModeGenerate)
	require.NoError(t, err)

	assert.NotEmpty(t, batch.Docs[0].ID)
	assert.NotEqual(t, batch.Docs[0].ID, batch.Docs[1].ID)
}

func TestParseBatch_ImportRequiresID(t *testing.T) {
	t.Parallel()

	raw := `[{"_rev":"1-x"}]`

	batch, err := document.ParseBatch(decode(t, raw), document.ModeImport)
	require.NoError(t, err)
	assert.ErrorIs(t, batch.Docs[0].Err, docerr.ErrMissingID)
}

func TestParseDoc_Fields(t *testing.T) {
	t.Parallel()

	doc, err := document.ParseDoc(map[string]any{
		"_id":      "foo",
		"_rev":     "4-70b26",
		"_deleted": true,
		"_revisions": map[string]any{
			"start": 4,
			"ids":   []any{"70b26", "9f454", "914bf", "7fdf8"},
		},
		"bar": "baz",
	}, document.ModeImport)
	require.NoError(t, err)

	assert.Equal(t, "foo", doc.ID)
	assert.True(t, doc.Deleted)
	assert.Equal(t, map[string]any{"bar": "baz"}, doc.Body)
	assert.Equal(t, []revtree.Rev{
		revtree.MustParseRev("4-70b26"),
		revtree.MustParseRev("3-9f454"),
		revtree.MustParseRev("2-914bf"),
		revtree.MustParseRev("1-7fdf8"),
	}, doc.Ancestry())
}

func TestCloneBody(t *testing.T) {
	t.Parallel()

	orig := map[string]any{"nested": map[string]any{"list": []any{"a"}}}
	clone := document.CloneBody(orig)

	clone["nested"].(map[string]any)["list"].([]any)[0] = "b"

	assert.Equal(t, "a", orig["nested"].(map[string]any)["list"].([]any)[0])
	assert.Nil(t, document.CloneBody(nil))
}

func TestIsReservedID(t *testing.T) {
	t.Parallel()

	assert.True(t, document.IsReservedID("_invalid"))
	assert.True(t, document.IsReservedID("_design"))
	assert.False(t, document.IsReservedID("_design/validate"))
	assert.False(t, document.IsReservedID("'your_sql_injection_script_here'"))
}

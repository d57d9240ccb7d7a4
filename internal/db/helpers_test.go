package db_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/document"
	"github.com/serroba/docstore/internal/revtree"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T, cfg db.Config) *db.DB {
	t.Helper()

	d := db.New(cfg)
	t.Cleanup(func() { _ = d.Close() })

	return d
}

func decode(t *testing.T, raw string) any {
	t.Helper()

	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))

	return v
}

func bulk(t *testing.T, d *db.DB, raw string, mode document.Mode) []db.Result {
	t.Helper()

	results, err := d.BulkWrite(context.Background(), decode(t, raw), db.Options{Mode: mode})
	require.NoError(t, err)

	return results
}

func put(t *testing.T, d *db.DB, raw string, mode document.Mode) db.Result {
	t.Helper()

	obj, ok := decode(t, raw).(map[string]any)
	require.True(t, ok)

	res, err := d.Put(context.Background(), obj, db.Options{Mode: mode})
	require.NoError(t, err)

	return res
}

func rev(s string) revtree.Rev {
	return revtree.MustParseRev(s)
}

func lastSeq(t *testing.T, d *db.DB) int64 {
	t.Helper()

	info, err := d.Info(context.Background())
	require.NoError(t, err)

	return info.UpdateSeq
}

func changeIDs(t *testing.T, d *db.DB, since int64) ([]string, int64) {
	t.Helper()

	feed, err := d.Changes(context.Background(), db.ChangesOptions{Since: since})
	require.NoError(t, err)

	var ids []string

	for change, err := range feed.All(context.Background()) {
		require.NoError(t, err)

		ids = append(ids, change.ID)
	}

	return ids, feed.LastSeq()
}

package cli_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/serroba/docstore/internal/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := cli.NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)

	err := cmd.ExecuteContext(ctx)

	return out.String(), err
}

func badgerConfig(t *testing.T, dir string, extra string) string {
	t.Helper()

	return writeFile(t, dir, "docstore.yaml", `
storage:
  backend: badger
  path: `+filepath.Join(dir, "data")+`
  sync_writes: false
log:
  level: error
`+extra)
}

func TestLoadThenChanges(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := badgerConfig(t, dir, "")
	docs := writeFile(t, dir, "docs.json", `{"docs":[{"_id":"a","n":1},{"_id":"b","n":2},{"_id":"_bad"}]}`)

	out, err := run(t, context.Background(), "load", docs, "--config", cfg, "--batch-size", "2", "--workers", "2")
	require.NoError(t, err)

	var summary map[string]int
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, map[string]int{"docs": 3, "ok": 2, "rejected": 1}, summary)

	out, err = run(t, context.Background(), "changes", "--config", cfg, "--include-docs")
	require.NoError(t, err)

	var lines []map[string]any

	scanner := bufio.NewScanner(bytes.NewBufferString(out))
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))

		lines = append(lines, line)
	}

	require.Len(t, lines, 3)

	ids := []any{lines[0]["id"], lines[1]["id"]}
	assert.ElementsMatch(t, []any{"a", "b"}, ids)
	assert.NotNil(t, lines[0]["doc"])
	assert.InDelta(t, 2, lines[2]["last_seq"], 0)
}

func TestLoad_Import(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := badgerConfig(t, dir, "")
	docs := writeFile(t, dir, "docs.json", `[
		{"_id":"a","_rev":"2-y","_revisions":{"start":2,"ids":["y","x"]}},
		{"_id":"a","_rev":"2-y"}
	]`)

	out, err := run(t, context.Background(), "load", docs, "--config", cfg, "--new-edits=false")
	require.NoError(t, err)
	assert.JSONEq(t, `{"docs":2,"ok":1,"rejected":0}`, out)
}

func TestLoad_ACLRejectsAnonymousImports(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := badgerConfig(t, dir, `
acl:
  enabled: true
  grants:
    - prefix: ""
      user: admin
      role: admin
`)
	docs := writeFile(t, dir, "docs.json", `[{"_id":"a","_rev":"1-x"}]`)

	out, err := run(t, context.Background(), "load", docs, "--config", cfg, "--new-edits=false")
	require.NoError(t, err)
	assert.JSONEq(t, `{"docs":1,"ok":0,"rejected":1}`, out)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := badgerConfig(t, dir, "")

	tests := []struct {
		name string
		args []string
	}{
		{"missing file", []string{"load", filepath.Join(dir, "nope.json"), "--config", cfg}},
		{"bad batch size", []string{"load", writeFile(t, dir, "ok.json", `[]`), "--config", cfg, "--batch-size", "0"}},
		{"not json", []string{"load", writeFile(t, dir, "bad.json", `{`), "--config", cfg}},
		{"no docs", []string{"load", writeFile(t, dir, "nodocs.json", `{"rows":[]}`), "--config", cfg}},
		{"bad config", []string{"load", "x.json", "--config", filepath.Join(dir, "missing.yaml")}},
		{"no file arg", []string{"load", "--config", cfg}},
	}

	for _, tt := range tests {
		_, err := run(t, context.Background(), tt.args...)
		assert.Error(t, err, tt.name)
	}
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "docstore.yaml", "addr: \"127.0.0.1:0\"\nlog:\n  level: error\n")

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)

	go func() {
		_, err := run(t, ctx, "serve", "--config", cfg)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServe_InvalidConfig(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := writeFile(t, dir, "docstore.yaml", "storage:\n  backend: sqlite\n")

	_, err := run(t, context.Background(), "serve", "--config", cfg)
	require.Error(t, err)
}

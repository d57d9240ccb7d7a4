package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"

	"github.com/serroba/docstore/internal/db"
	"github.com/serroba/docstore/internal/document"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type loadOptions struct {
	newEdits  bool
	batchSize int
	workers   int
}

// loadSummary counts the outcome of a load.
type loadSummary struct {
	Docs     int `json:"docs"`
	OK       int `json:"ok"`
	Rejected int `json:"rejected"`
}

func newLoadCommand(configPath *string) *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Bulk-load a JSON file of documents into the configured store",
		Long: `Load reads a JSON array of documents, or an object with a "docs" array,
and writes it in batches. Batches run concurrently when --workers > 1, so
documents that update each other should share a batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { _ = a.Close() }()

			summary, err := a.load(cmd, args[0], opts)
			if err != nil {
				return err
			}

			return json.NewEncoder(cmd.OutOrStdout()).Encode(summary)
		},
	}

	cmd.Flags().BoolVar(&opts.newEdits, "new-edits", true, "assign new revisions; false imports revisions verbatim")
	cmd.Flags().IntVar(&opts.batchSize, "batch-size", 500, "documents per bulk write")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "concurrent bulk writes")

	return cmd
}

func (a *app) load(cmd *cobra.Command, path string, opts loadOptions) (loadSummary, error) {
	if opts.batchSize <= 0 || opts.workers <= 0 {
		return loadSummary{}, fmt.Errorf("batch-size and workers must be positive")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return loadSummary{}, fmt.Errorf("read %s: %w", path, err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return loadSummary{}, fmt.Errorf("parse %s: %w", path, err)
	}

	mode := document.ModeGenerate
	if !opts.newEdits {
		mode = document.ModeImport
	}

	batch, err := document.ParseBatch(raw, mode)
	if err != nil {
		return loadSummary{}, err
	}

	var (
		mu      sync.Mutex
		summary = loadSummary{Docs: len(batch.Docs)}
	)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(opts.workers)

	for chunk := range slices.Chunk(batch.Docs, opts.batchSize) {
		g.Go(func() error {
			results, err := a.db.BulkDocs(ctx, chunk, db.Options{Mode: batch.Mode})
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			for _, res := range results {
				if res.OK() {
					summary.OK++

					continue
				}

				summary.Rejected++
				a.log.Warn("document rejected", "id", res.ID, "error", res.Err.Name, "reason", res.Err.Message)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return loadSummary{}, err
	}

	a.log.Info("load finished", "docs", summary.Docs, "ok", summary.OK, "rejected", summary.Rejected)

	return summary, nil
}

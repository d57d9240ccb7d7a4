// Package cli wires the docstore commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand builds the docstore command tree.
func NewRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "docstore",
		Short:         "A document store with CouchDB-style revision trees",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(&configPath),
		newLoadCommand(&configPath),
		newChangesCommand(&configPath),
	)

	return root
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

package cli

import (
	"encoding/json"

	"github.com/serroba/docstore/internal/db"
	"github.com/spf13/cobra"
)

func newChangesCommand(configPath *string) *cobra.Command {
	var opts db.ChangesOptions

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "Print the changes feed of the configured store as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(*configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			defer func() { _ = a.Close() }()

			feed, err := a.db.Changes(cmd.Context(), opts)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())

			for change, err := range feed.All(cmd.Context()) {
				if err != nil {
					return err
				}

				if err := enc.Encode(change); err != nil {
					return err
				}
			}

			return enc.Encode(map[string]int64{"last_seq": feed.LastSeq()})
		},
	}

	cmd.Flags().Int64Var(&opts.Since, "since", 0, "only changes after this sequence")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of changes; 0 means all")
	cmd.Flags().BoolVar(&opts.IncludeDocs, "include-docs", false, "include the winning revision body")

	return cmd
}

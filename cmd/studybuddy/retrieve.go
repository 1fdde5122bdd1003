package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
)

// joinArgs joins positional args so multi-word input works with or without quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func newRetrieveCmd(g *globals) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Print the indexed passages closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			components, err := initializeComponents(cmd.Context(), e.cfg, e.logger, e.debug)
			if err != nil {
				return err
			}
			defer components.Close()

			if topK <= 0 {
				topK = e.cfg.Retrieval.TopK
			}
			query := joinArgs(args)
			blob := components.Retriever.Retrieve(cmd.Context(), query, topK)
			return cli.WriteRetrieval(cmd.OutOrStdout(), query, blob, e.format)
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of passages (default from config)")
	return cmd
}

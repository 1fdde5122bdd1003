package main

import (
	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/vector"
)

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show catalog, index and disk usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.resolve()
			if err != nil {
				return err
			}
			defer e.logger.Sync()

			ctx := cmd.Context()
			components, err := initializeComponents(ctx, e.cfg, e.logger, e.debug)
			if err != nil {
				return err
			}
			defer components.Close()

			st := cli.Status{
				VectorIndexSize: components.VectorIndex.Size(),
				VectorIndexType: components.VectorIndex.Type(),
				FAISSAvailable:  vector.IsFAISSAvailable(),
			}
			if st.Documents, err = components.Storage.CountDocuments(ctx); err != nil {
				return err
			}
			if st.Chunks, err = components.Storage.CountChunks(ctx); err != nil {
				return err
			}
			if st.Disk, err = storage.MeasureFootprint(e.cfg.Storage.DatabasePath, e.cfg.Storage.IndexSnapshotPath); err != nil {
				return err
			}
			return cli.WriteStatus(cmd.OutOrStdout(), st, e.format)
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hyperjump/studybuddy/internal/cli"
)

func newIngestCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file|dir>...",
		Short: "Index documents into the local catalog",
		Long: `Extracts, chunks and embeds each file. Directories are walked recursively and
filtered by the configured watch extensions. Re-ingesting identical content is a no-op.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			reports := make([]cli.IngestReport, 0, len(args))
			failed := 0
			for _, path := range args {
				report := cli.IngestReport{Path: path}
				info, statErr := os.Stat(path)
				switch {
				case statErr != nil:
					report.Error = statErr.Error()
				case info.IsDir():
					n, dirErr := components.Indexer.IngestDirectory(ctx, path, e.cfg.Watch.Extensions)
					report.Files = n
					if dirErr != nil {
						report.Error = fmt.Sprintf("after %d files: %v", n, dirErr)
					}
				default:
					res, fileErr := components.Indexer.IngestFile(ctx, path)
					if fileErr != nil {
						report.Error = fileErr.Error()
					}
					report.Result = res
				}
				if report.Error != "" {
					failed++
				}
				reports = append(reports, report)
			}

			if e.cfg.Storage.IndexSnapshotPath != "" {
				if err := components.VectorIndex.Save(e.cfg.Storage.IndexSnapshotPath); err != nil {
					return fmt.Errorf("save index snapshot: %w", err)
				}
			}
			if err := cli.WriteIngestReports(cmd.OutOrStdout(), reports, e.format); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d paths failed", failed, len(args))
			}
			return nil
		},
	}
}

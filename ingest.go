package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yumyai/rrna16s/internal/util"
	"github.com/yumyai/rrna16s/logger"
	"github.com/yumyai/rrna16s/pkg/analysis"
	"github.com/yumyai/rrna16s/pkg/model"
	"github.com/yumyai/rrna16s/pkg/pipeline"
)

// ingest completes a submission that the pipeline finished without leaving a
// results file where we looked for it.
var ingestCmd = &cobra.Command{
	Use:   "ingest <analysis-uuid> [results.csv]",
	Short: "Store a results file for a submission left in SUCCESS",
	Long: "Parses a BLAST results CSV and stores it for a submission whose pipeline run " +
		"succeeded but whose results were never stored. Without a path the file is " +
		"looked up in the submission's usual output directory.",
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		id := args[0]
		invoker := pipeline.NewInvoker(cfg.Pipeline)
		path := invoker.Layout(id).ResultsFile
		if len(args) == 2 {
			path = args[1]
		}
		if !util.FileExists(path) {
			return fmt.Errorf("ingest %s: %w: %s", id, model.ErrResultsFileMissing, path)
		}

		orch := analysis.New(store, invoker, analysis.Options{ReferenceDB: referenceDatabase(cfg.Pipeline)})
		n, err := orch.IngestResults(ctx, id, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", id, err)
		}
		logger.Info("Stored blast results", zap.String("analysis_uuid", id), zap.String("path", path), zap.Int("records", n))
		fmt.Fprintf(cmd.OutOrStdout(), "%s: stored %d records\n", id, n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

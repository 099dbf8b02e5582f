package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/nearby-events/internal/importer"
)

var importFlags struct {
	path      string
	sheet     string
	batchSize int
	workers   int
	dryRun    bool
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load events from a CSV, XLSX or JSON file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if importFlags.path == "" {
			return eris.New("import file is required (--file)")
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		im := importer.New(env.Events, env.Store, importer.Options{
			BatchSize: importFlags.batchSize,
			Workers:   importFlags.workers,
			Sheet:     importFlags.sheet,
			DryRun:    importFlags.dryRun,
		})
		res, err := im.ImportFile(ctx, importFlags.path)
		if err != nil {
			return eris.Wrap(err, "import events")
		}

		for _, f := range res.Failed {
			zap.L().Warn("row skipped", zap.Int("row", f.Row), zap.Error(f.Err))
		}
		zap.L().Info("import complete",
			zap.String("file", importFlags.path),
			zap.Int("rows", res.Rows),
			zap.Int64("imported", res.Imported),
			zap.Int("failed", len(res.Failed)),
			zap.Bool("dry_run", importFlags.dryRun),
		)
		return nil
	},
}

func init() {
	fl := importCmd.Flags()
	fl.StringVar(&importFlags.path, "file", "", "path to a .csv, .xlsx or .json file (required)")
	fl.StringVar(&importFlags.sheet, "sheet", "", "XLSX worksheet name (default first sheet)")
	fl.IntVar(&importFlags.batchSize, "batch-size", 500, "events written per transaction")
	fl.IntVar(&importFlags.workers, "workers", 4, "rows built concurrently")
	fl.BoolVar(&importFlags.dryRun, "dry-run", false, "validate and geocode without writing")
	rootCmd.AddCommand(importCmd)
}

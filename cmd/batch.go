package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zoomtier/internal/batch"
	"github.com/sells-group/zoomtier/internal/store"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Label every layer listed in a manifest",
	Long:  "Runs zoom assignment for each layer of a YAML manifest, several at a time, writing labeled files and storing layers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		path, _ := cmd.Flags().GetString("manifest")
		if path == "" {
			path = cfg.Batch.Manifest
		}
		m, err := batch.LoadManifest(path)
		if err != nil {
			return err
		}

		var st store.Store
		noStore, _ := cmd.Flags().GetBool("no-store")
		if !noStore {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		runner := batch.NewRunner(cfg, st)
		if n, _ := cmd.Flags().GetInt("concurrency"); n > 0 {
			runner.SetConcurrency(n)
		}

		zap.L().Info("batch: starting", zap.String("manifest", path), zap.Int("layers", len(m.Layers)))
		sums, err := runner.Run(ctx, m)
		formatSummaries(os.Stdout, sums)
		if err != nil {
			return eris.Wrap(err, "batch")
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().String("manifest", "", "manifest YAML (default from config)")
	batchCmd.Flags().Int("concurrency", 0, "layers processed at once (default from config)")
	batchCmd.Flags().Bool("no-store", false, "write output files only")
	rootCmd.AddCommand(batchCmd)
}

package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoomtier/internal/batch"
	"github.com/sells-group/zoomtier/internal/config"
	"github.com/sells-group/zoomtier/internal/store"
)

var decimateCmd = &cobra.Command{
	Use:   "decimate",
	Short: "Assign zoom labels to a point file",
	Long: "Reads a CSV, TSV, XLSX, shapefile or GeoJSON point file, labels every point with the " +
		"coarsest zoom at which it is drawn, and writes the labeled file. With --layer the result " +
		"is also stored for serving.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		input, _ := cmd.Flags().GetString("input")
		output, _ := cmd.Flags().GetString("output")
		layer, _ := cmd.Flags().GetString("layer")
		if output == "" && layer == "" {
			return eris.New("decimate: one of --output or --layer is required")
		}

		job := batch.Job{Name: layer, Input: input, Output: output}
		job.XColumn, _ = cmd.Flags().GetString("x-col")
		job.YColumn, _ = cmd.Flags().GetString("y-col")
		job.Column, _ = cmd.Flags().GetString("column")
		job.Carry, _ = cmd.Flags().GetString("carry")

		if cmd.Flags().Changed("tiers") {
			raw, _ := cmd.Flags().GetString("tiers")
			tiers, err := config.ParseTiers(raw)
			if err != nil {
				return err
			}
			job.Tiers = tiers
		}
		if job.Name == "" {
			job.Name = input
		}

		var st store.Store
		if layer != "" {
			s, err := initStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close() //nolint:errcheck
			st = s
		}

		sum, err := batch.NewRunner(cfg, st).RunJob(ctx, job)
		if err != nil {
			return eris.Wrap(err, "decimate")
		}

		formatSummaries(os.Stdout, []batch.Summary{*sum})
		return nil
	},
}

func init() {
	f := decimateCmd.Flags()
	f.String("input", "", "input point file (required)")
	f.String("output", "", "labeled output file; format follows the extension")
	f.String("tiers", "", "tier list as zoom:radius pairs, e.g. 1:0.16,2:0.08 (default from config)")
	f.String("x-col", "", "x / longitude column (default from config)")
	f.String("y-col", "", "y / latitude column (default from config)")
	f.String("column", "", "name of the label column (default from config)")
	f.String("carry", "", "carry policy: release or retain (default from config)")
	f.String("layer", "", "store the result under this layer name")
	_ = decimateCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(decimateCmd)
}

// formatSummaries writes a tabular summary of job results to out.
func formatSummaries(out io.Writer, sums []batch.Summary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "LAYER\tPOINTS\tLABELED\tUNASSIGNED\tSTORED\tDURATION\tERROR")
	_, _ = fmt.Fprintln(w, "-----\t------\t-------\t----------\t------\t--------\t-----")

	for _, s := range sums {
		if s.Err != nil {
			_, _ = fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\t%s\n", s.Layer, truncate(s.Err.Error(), 60))
			continue
		}
		stored := "no"
		if s.Stored {
			stored = "yes"
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t\n",
			s.Layer,
			s.Points,
			s.Points-s.Counts[0],
			s.Counts[0],
			stored,
			s.Duration.Round(time.Millisecond),
		)
	}
	_ = w.Flush()
}

// truncate shortens s to n runes, appending "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

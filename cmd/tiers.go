package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/zoomtier/internal/config"
	"github.com/sells-group/zoomtier/internal/decimate"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Print the effective tier table",
	RunE: func(cmd *cobra.Command, args []string) error {
		tiers := cfg.Tiers
		if cmd.Flags().Changed("tiers") {
			raw, _ := cmd.Flags().GetString("tiers")
			parsed, err := config.ParseTiers(raw)
			if err != nil {
				return err
			}
			if err := decimate.ValidateTiers(parsed); err != nil {
				return err
			}
			tiers = parsed
		}
		formatTiers(os.Stdout, tiers)
		return nil
	},
}

func init() {
	tiersCmd.Flags().String("tiers", "", "tier list to check instead of the configured one")
	rootCmd.AddCommand(tiersCmd)
}

// formatTiers writes the tier table and the flag-ready tier string to out.
func formatTiers(out io.Writer, tiers []decimate.Tier) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ZOOM\tRADIUS")
	_, _ = fmt.Fprintln(w, "----\t------")
	for _, t := range tiers {
		_, _ = fmt.Fprintf(w, "%d\t%g\n", t.Zoom, t.Radius)
	}
	_ = w.Flush()

	_, _ = fmt.Fprintf(out, "\nmax zoom: %d\n", decimate.MaxZoom(tiers))
	_, _ = fmt.Fprintf(out, "flag: --tiers %s\n", config.FormatTiers(tiers))
}

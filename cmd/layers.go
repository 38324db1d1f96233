package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zoomtier/internal/model"
)

var layersCmd = &cobra.Command{
	Use:   "layers",
	Short: "List stored layers",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		layers, err := st.ListLayers(ctx)
		if err != nil {
			return eris.Wrap(err, "layers list")
		}
		if len(layers) == 0 {
			fmt.Fprintln(os.Stderr, "No layers found.")
			return nil
		}

		formatLayers(os.Stdout, layers)
		return nil
	},
}

var layersDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored layer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.DeleteLayer(ctx, args[0]); err != nil {
			return eris.Wrapf(err, "layers delete %s", args[0])
		}
		fmt.Fprintf(os.Stderr, "Deleted layer %s.\n", args[0])
		return nil
	},
}

func init() {
	layersCmd.AddCommand(layersDeleteCmd)
	rootCmd.AddCommand(layersCmd)
}

// formatLayers writes a tabular representation of layers to out.
func formatLayers(out io.Writer, layers []model.Layer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tPOINTS\tMAX ZOOM\tCARRY\tPER ZOOM\tUNASSIGNED\tCREATED\tRUN")
	_, _ = fmt.Fprintln(w, "----\t------\t--------\t-----\t--------\t----------\t-------\t---")

	for _, l := range layers {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%d\t%s\t%s\n",
			l.Name,
			l.PointCount,
			l.MaxZoom,
			l.Carry,
			zoomCounts(l),
			l.Unassigned(),
			l.CreatedAt.Format("2006-01-02 15:04"),
			l.RunID.String()[:8],
		)
	}
	_ = w.Flush()
}

// zoomCounts renders per-zoom counts as "1:120 2:340".
func zoomCounts(l model.Layer) string {
	zooms := l.Zooms()
	if len(zooms) == 0 {
		return "-"
	}
	parts := make([]string, len(zooms))
	for i, z := range zooms {
		parts[i] = fmt.Sprintf("%d:%d", z, l.Counts[z])
	}
	return strings.Join(parts, " ")
}

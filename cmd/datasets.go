package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retifica-cli/internal/reconcile"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List the loaded fiscal year tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, cfg, "datasets", false)
		if err != nil {
			return err
		}
		defer env.Close()

		years, err := env.Service.Years(ctx)
		if err != nil {
			return eris.Wrap(err, "datasets")
		}
		if len(years) == 0 {
			fmt.Fprintf(os.Stderr, "No expense tables found in %s.\n", cfg.Datasets.Dir)
			return nil
		}

		formatYears(os.Stdout, years)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}

// formatYears writes a tabular list of loaded years to w.
func formatYears(out io.Writer, years []reconcile.YearSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "YEAR\tFILE\tROWS\tENTITIES\tDUPLICATES")
	_, _ = fmt.Fprintln(w, "----\t----\t----\t--------\t----------")
	for _, y := range years {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\n", y.Year, filepath.Base(y.Source), y.Rows, y.Entities, y.Duplicates)
	}
	_ = w.Flush()
}

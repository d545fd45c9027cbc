package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List emitted declarations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("history"); err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entity, _ := cmd.Flags().GetString("entity")
		limit, _ := cmd.Flags().GetInt("limit")

		decls, err := st.ListDeclarations(ctx, store.DeclarationFilter{Entity: entity, Limit: limit})
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if len(decls) == 0 {
			fmt.Fprintln(os.Stderr, "No declarations found.")
			return nil
		}

		formatDeclarations(os.Stdout, decls)
		return nil
	},
}

func init() {
	historyCmd.Flags().String("entity", "", "filter by entity name")
	historyCmd.Flags().Int("limit", 50, "max number of declarations to display")
	rootCmd.AddCommand(historyCmd)
}

// formatDeclarations writes a tabular list of declarations to w.
func formatDeclarations(out io.Writer, decls []model.Declaration) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tENTITY\tFROM\tTO\tNATURE\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t------\t----\t--\t------\t-------")

	for _, d := range decls {
		entity := d.Entity
		if r := []rune(entity); len(r) > 30 {
			entity = string(r[:27]) + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s/%s\t%s/%s\t%s\t%s\n",
			truncateID(d.ID),
			entity,
			d.SourceYear, d.SourceNumber,
			d.TargetYear, d.TargetNumber,
			d.NatureCode,
			d.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

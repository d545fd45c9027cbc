package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/retifica-cli/internal/model"
	"github.com/sells-group/retifica-cli/internal/normalize"
	"github.com/sells-group/retifica-cli/internal/reconcile"
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Compare an expense number across two fiscal years",
	Long:  "Looks up the expense in the prior year, finds its counterpart in the current year and optionally writes the declaration PDF.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		entity, _ := cmd.Flags().GetString("entity")
		from, _ := cmd.Flags().GetString("from")
		to, _ := cmd.Flags().GetString("to")
		number, _ := cmd.Flags().GetString("number")
		out, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")

		if format != "text" && format != "json" && format != "yaml" {
			return eris.Errorf("unknown format %q (text, json, yaml)", format)
		}

		env, err := initApp(ctx, cfg, "match", out != "")
		if err != nil {
			return err
		}
		defer env.Close()

		q := reconcile.Query{Entity: entity, SourceYear: from, TargetYear: to, ExpenseNumber: number}

		var res *model.MatchResult
		if out != "" {
			var doc *reconcile.Document
			doc, res, err = env.Service.Declaration(ctx, q)
			if err != nil && !errors.Is(err, reconcile.ErrNotMatched) {
				return err
			}
			if doc != nil {
				if werr := os.WriteFile(out, doc.Data, 0o644); werr != nil {
					return eris.Wrapf(werr, "write %s", out)
				}
				fmt.Fprintf(os.Stderr, "Declaration written to %s\n", out)
			}
		} else {
			res, err = env.Service.Compare(ctx, q)
			if err != nil {
				return err
			}
		}

		if err := writeMatch(os.Stdout, res, format); err != nil {
			return err
		}
		if !res.Matched() {
			return eris.Errorf("no declaration: %s", res.Outcome)
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().String("entity", "", "entity name as it appears in the first column")
	matchCmd.Flags().String("from", "", "prior fiscal year (e.g. 2023)")
	matchCmd.Flags().String("to", "", "current fiscal year (e.g. 2024)")
	matchCmd.Flags().String("number", "", "expense number in the prior year")
	matchCmd.Flags().String("out", "", "write the declaration PDF to this path when matched")
	matchCmd.Flags().String("format", "text", "output format: text, json or yaml")
	_ = matchCmd.MarkFlagRequired("entity")
	_ = matchCmd.MarkFlagRequired("from")
	_ = matchCmd.MarkFlagRequired("to")
	_ = matchCmd.MarkFlagRequired("number")
	rootCmd.AddCommand(matchCmd)
}

// writeMatch renders a match result in the requested format.
func writeMatch(out io.Writer, res *model.MatchResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		formatMatch(out, res)
		return nil
	}
}

// formatMatch writes a human-readable comparison to w.
func formatMatch(out io.Writer, res *model.MatchResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Entidade:\t%s\n", res.Entity)

	if res.Source == nil {
		_, _ = fmt.Fprintf(w, "Despesa %s não encontrada no exercício %s.\n", res.ExpenseNumber, res.SourceYear)
		_ = w.Flush()
		return
	}

	formatRecord(w, "Origem", res.SourceYear, res.Source)
	if res.Target == nil {
		_, _ = fmt.Fprintf(w, "\nNenhuma despesa correspondente encontrada no exercício %s.\n", res.TargetYear)
	} else {
		formatRecord(w, "Atualização", res.TargetYear, res.Target)
	}
	_ = w.Flush()
}

func formatRecord(w io.Writer, heading, year string, r *model.ExpenseRecord) {
	_, _ = fmt.Fprintf(w, "\n%s\n", heading)
	_, _ = fmt.Fprintf(w, "  Exercício:\t%s\n", year)
	_, _ = fmt.Fprintf(w, "  Número da despesa:\t%s\n", r.ExpenseNumber)
	_, _ = fmt.Fprintf(w, "  Dotação:\t%s - %s\n", r.ClassificationPath(), r.ActionDescription)
	_, _ = fmt.Fprintf(w, "  Natureza:\t%s - %s\n", normalize.NatureCode(r.NatureCode), r.NatureDescription)
}

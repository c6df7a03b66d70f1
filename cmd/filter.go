package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/filter"
	"github.com/KaramelBytes/chartloom-cli/internal/session"
	"github.com/KaramelBytes/chartloom-cli/internal/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	filterData     datasetFlags
	filterHead     int
	filterDistinct string
	filterDefaults bool
	filterOutput   string
)

var filterCmd = &cobra.Command{
	Use:   "filter <file>",
	Short: "Apply category filters and preview or export the remaining rows",
	Example: `  chartloom filter exports.csv --filter "Kategori=Batubara,Semen"
  chartloom filter exports.csv --distinct Pelabuhan
  chartloom filter exports.csv --defaults > session.yaml
  chartloom filter exports.csv --filter "Pelabuhan=Priok" --output priok.csv`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := filterData.open(args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()

		if filterDistinct != "" {
			vals, err := filter.Distinct(sess.Table(), filterDistinct)
			if err != nil {
				return err
			}
			for _, v := range vals {
				if v == "" {
					v = "(missing)"
				}
				fmt.Fprintln(out, v)
			}
			return nil
		}
		if filterDefaults {
			b, err := yaml.Marshal(session.Spec{Filters: filter.Defaults(sess.Table())})
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			fmt.Fprint(out, string(b))
			return nil
		}

		t := sess.Filtered()
		if filterOutput != "" {
			if err := writeCSV(filterOutput, t); err != nil {
				return err
			}
			fmt.Fprintf(out, "✓ Wrote %d rows to %s\n", t.NumRows(), filterOutput)
			return nil
		}
		fmt.Fprintf(out, "Rows: %d of %d\n", t.NumRows(), sess.Table().NumRows())
		for _, f := range sess.Filters() {
			fmt.Fprintf(out, "Filter: %s in [%s]\n", f.Column, strings.Join(f.Allowed, ", "))
		}
		n := filterHead
		if n <= 0 {
			n = 20
		}
		fmt.Fprintln(out)
		fmt.Fprint(out, analysis.SampleTable(t.Head(n)))
		return nil
	},
}

func writeCSV(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	w := csv.NewWriter(f)
	g := t.Grid()
	if err := w.Write(g.Header); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	if err := w.WriteAll(g.Rows); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

func init() {
	rootCmd.AddCommand(filterCmd)
	filterData.register(filterCmd)
	filterCmd.Flags().IntVar(&filterHead, "head", 20, "rows to preview")
	filterCmd.Flags().StringVar(&filterDistinct, "distinct", "", "list the distinct values of a categorical column")
	filterCmd.Flags().BoolVar(&filterDefaults, "defaults", false, "print the all-values filter list as a session spec")
	filterCmd.Flags().StringVarP(&filterOutput, "output", "o", "", "write the filtered rows as CSV")
}

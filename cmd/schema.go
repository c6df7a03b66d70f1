package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/analysis"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	schemaData    datasetFlags
	schemaSummary bool
	schemaJSON    bool
)

type schemaColumn struct {
	Name     string `json:"name"`
	Role     string `json:"role"`
	NonNull  int    `json:"non_null"`
	Missing  int    `json:"missing"`
	Distinct int    `json:"distinct,omitempty"`
}

var schemaCmd = &cobra.Command{
	Use:   "schema <file>",
	Short: "Show the inferred numeric and categorical columns",
	Example: `  chartloom schema exports.csv
  chartloom schema workbook.xlsx --sheet Data --summary
  chartloom schema exports.parquet --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, _, err := schemaData.open(args[0])
		if err != nil {
			return err
		}
		t := sess.Filtered()
		out := cmd.OutOrStdout()
		prof := analysis.Summarize(sess.Name, t)

		if schemaJSON {
			cols := make([]schemaColumn, len(prof.Cols))
			for i, c := range prof.Cols {
				cols[i] = schemaColumn{Name: c.Name, Role: c.Role.String(), NonNull: c.NonNull, Missing: c.Missing, Distinct: c.Unique}
			}
			b, err := utils.PrettyJSON(map[string]any{
				"file":        sess.Name,
				"rows":        t.NumRows(),
				"numeric":     t.NumericColumns(),
				"categorical": t.CategoricalColumns(),
				"columns":     cols,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}

		fmt.Fprintf(out, "File: %s\n", sess.Name)
		fmt.Fprintf(out, "Rows: %d\n", t.NumRows())
		fmt.Fprintf(out, "Numeric (%d): %s\n", len(t.NumericColumns()), strings.Join(t.NumericColumns(), ", "))
		fmt.Fprintf(out, "Categorical (%d): %s\n", len(t.CategoricalColumns()), strings.Join(t.CategoricalColumns(), ", "))
		if schemaSummary {
			fmt.Fprintln(out)
			fmt.Fprint(out, prof.Markdown())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaData.register(schemaCmd)
	schemaCmd.Flags().BoolVar(&schemaSummary, "summary", false, "include per-column statistics and top correlations")
	schemaCmd.Flags().BoolVar(&schemaJSON, "json", false, "print the schema as JSON")
}

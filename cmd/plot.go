package cmd

import (
	"fmt"
	"strings"

	"github.com/KaramelBytes/chartloom-cli/internal/chart"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	plotData        datasetFlags
	plotReq         chart.Request
	plotKind        string
	plotOutput      string
	plotSaveSession string
	plotListKinds   bool
)

var plotCmd = &cobra.Command{
	Use:   "plot <file>",
	Short: "Resolve a chart request into a rendering plan and figure data",
	Long: `plot validates a chart request against the (filtered) table and writes the
figure data an external renderer needs as JSON. A request never falls back to
other columns: a missing field or a column with the wrong role is an error.`,
	Example: `  chartloom plot exports.csv --kind bar --x Pelabuhan --y Ekspor2023 --y Ekspor2022
  chartloom plot exports.csv --kind pie --names Kategori --values Ekspor2023
  chartloom plot exports.csv --kind heatmap --output corr.json
  chartloom plot exports.csv --kind heatmap --row-axis Pelabuhan --column-axis Kategori --values Ekspor2023
  chartloom plot exports.csv --session session.yaml --output fig.json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if plotListKinds {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if plotListKinds {
			fmt.Fprintln(out, strings.Join(chart.Kinds(), "\n"))
			return nil
		}
		sess, spec, err := plotData.open(args[0])
		if err != nil {
			return err
		}

		req := plotReq
		req.Kind = chart.Kind(plotKind)
		if req.Kind == "" && spec.Chart != nil {
			req = *spec.Chart
		}
		if req.Kind == "" {
			return fmt.Errorf("--kind is required (one of: %s)", strings.Join(chart.Kinds(), ", "))
		}
		plan, err := sess.Resolve(req)
		if err != nil {
			return err
		}
		fig, err := sess.Figure()
		if err != nil {
			return err
		}
		b, err := utils.PrettyJSON(fig)
		if err != nil {
			return err
		}

		if plotSaveSession != "" {
			y, err := yaml.Marshal(sess.Spec())
			if err != nil {
				return fmt.Errorf("marshal yaml: %w", err)
			}
			if err := utils.SafeWriteFile(plotSaveSession, y); err != nil {
				return err
			}
		}
		if plotOutput == "" || plotOutput == "-" {
			fmt.Fprintln(out, string(b))
			return nil
		}
		if err := utils.SafeWriteFile(plotOutput, b); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ %s plan over %d rows written to %s\n", plan.Kind, fig.Rows, plotOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(plotCmd)
	plotData.register(plotCmd)
	f := plotCmd.Flags()
	f.StringVar(&plotKind, "kind", "", "chart kind (see --list-kinds)")
	f.StringVar(&plotReq.X, "x", "", "x column")
	f.StringArrayVar(&plotReq.Y, "y", nil, "y column (repeatable where the kind allows several)")
	f.StringVar(&plotReq.Color, "color", "", "categorical color column")
	f.StringVar(&plotReq.Size, "size", "", "numeric size column (bubble)")
	f.StringVar(&plotReq.Names, "names", "", "slice label column (pie)")
	f.StringVar(&plotReq.Values, "values", "", "numeric values column (pie, treemap, sunburst, pivot heatmap)")
	f.StringArrayVar(&plotReq.Path, "path", nil, "categorical hierarchy level, outermost first (repeatable)")
	f.StringArrayVar(&plotReq.Dimensions, "dimensions", nil, "numeric dimension (repeatable, scatter_matrix)")
	f.StringVar(&plotReq.RowAxis, "row-axis", "", "categorical row axis (pivot heatmap)")
	f.StringVar(&plotReq.ColumnAxis, "column-axis", "", "categorical column axis (pivot heatmap)")
	f.StringVarP(&plotOutput, "output", "o", "", "write figure JSON to a file instead of stdout")
	f.StringVar(&plotSaveSession, "save-session", "", "write the filters and resolved chart as a session spec")
	f.BoolVar(&plotListKinds, "list-kinds", false, "list supported chart kinds")
}

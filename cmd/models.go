package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/KaramelBytes/chartloom-cli/internal/ai"
	"github.com/KaramelBytes/chartloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var modelsJSON bool

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Show providers, their default models, and the pricing catalog",
	Example: `  chartloom models
  chartloom models --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		defaults := map[string]string{}
		for _, p := range ai.Providers() {
			m, _ := ai.DefaultModel(p)
			defaults[p] = m
		}
		if modelsJSON {
			b, err := utils.PrettyJSON(map[string]any{"providers": defaults, "models": ai.Catalog()})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(b))
			return nil
		}
		fmt.Fprintln(out, "Providers:")
		for _, p := range ai.Providers() {
			fmt.Fprintf(out, "  %-11s default model: %s\n", p, defaults[p])
		}
		fmt.Fprintln(out)
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tCONTEXT\tIN $/1K\tOUT $/1K")
		for _, mi := range ai.Catalog() {
			in, outp := "-", "-"
			if mi.InputPerK > 0 || mi.OutputPerK > 0 {
				in, outp = fmt.Sprintf("%.5f", mi.InputPerK), fmt.Sprintf("%.5f", mi.OutputPerK)
			}
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", mi.Name, mi.ContextTokens, in, outp)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&modelsJSON, "json", false, "print as JSON")
}

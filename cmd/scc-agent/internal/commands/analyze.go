package commands

import (
	"github.com/spf13/cobra"

	"github.com/kube-scc/scc-agent/cmd/scc-agent/internal/output"
	"github.com/kube-scc/scc-agent/pkg/manifest"
	"github.com/kube-scc/scc-agent/pkg/scc"
)

func NewAnalyzeCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "analyze MANIFEST_PATH",
		Short: "Analyze manifests for security requirements",
		Long: `Scans a manifest file or directory and reports the privilege requirements
its workloads declare, with the baseline SCC that would cover them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := manifest.NewParser()
			set, err := parser.ParsePath(args[0])
			if err != nil {
				return err
			}

			printer := output.NewPrinter(output.ParseFormat(outputFormat))
			if err := printer.PrintRequirements(set); err != nil {
				return err
			}
			if printer.Format() == output.FormatTable {
				cmd.Printf("\nSuggested baseline SCC: %s\n", scc.SuggestTemplate(set))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "Output format (table, json, yaml)")
	return cmd
}

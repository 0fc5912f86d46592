package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/kube-scc/scc-agent/cmd/scc-agent/internal/output"
	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/config"
)

func NewGetCommand() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "get SCC_NAME",
		Short: "Fetch an SCC from the cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromContext(cmd.Context())

			cfg, err := config.LoadConfig(opts.Kubeconfig)
			if err != nil {
				return fmt.Errorf("connecting to cluster: %w", err)
			}
			client := cluster.NewClient(cfg.DynamicClient)

			sccObj, err := client.GetSCC(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sccObj == nil {
				return fmt.Errorf("SCC %q not found", args[0])
			}

			if output.ParseFormat(outputFormat) == output.FormatJSON {
				return output.NewPrinter(output.FormatJSON).Print(sccObj.Object)
			}
			data, err := sigsyaml.Marshal(sccObj.Object)
			if err != nil {
				return err
			}
			cmd.Print(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "yaml", "Output format (yaml, json)")
	return cmd
}

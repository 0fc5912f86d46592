package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/config"
	"github.com/kube-scc/scc-agent/pkg/manifest"
)

func NewDeployCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy MANIFEST_PATH",
		Short: "Deploy manifests in dependency order",
		Long: `Deploys every resource in the manifest set, ordered so namespaces, policy
and identity land before workloads. Failures are reported per resource and
never stop the batch; SCC admission denials are flagged.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromContext(cmd.Context())

			parser := manifest.NewParser()
			set, err := parser.ParsePath(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.LoadConfig(opts.Kubeconfig)
			if err != nil {
				return fmt.Errorf("connecting to cluster: %w", err)
			}
			client := cluster.NewClient(cfg.DynamicClient)

			outcomes := client.DeployAll(cmd.Context(), set.Resources, opts.Namespace, dryRun)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KIND\tNAME\tNAMESPACE\tSTATUS\tSCC")
			failed := 0
			for _, outcome := range outcomes {
				status := "ok"
				sccFlag := ""
				if !outcome.Success {
					failed++
					status = "failed"
					if outcome.SCCAttributable() {
						sccFlag = "denied"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					outcome.ResourceKind, outcome.ResourceName, outcome.Namespace, status, sccFlag)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d resources failed to deploy", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate against the API server without persisting")
	return cmd
}

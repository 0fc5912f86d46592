package commands

import (
	"context"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/config"
	"github.com/kube-scc/scc-agent/pkg/controller"
	"github.com/kube-scc/scc-agent/pkg/manifest"
	"github.com/kube-scc/scc-agent/pkg/oracle"
	"github.com/kube-scc/scc-agent/pkg/scc"
	"github.com/kube-scc/scc-agent/pkg/server"
)

func NewAutoDeployCommand() *cobra.Command {
	var (
		sccName       string
		forceNew      bool
		maxIterations int
		metricsAddr   string
	)

	cmd := &cobra.Command{
		Use:   "autodeploy MANIFEST_PATH",
		Short: "Deploy manifests and iteratively adjust the SCC on failures",
		Long: `Generates (or updates) the SCC for the manifest set, grants it to the
referenced service accounts, then deploys the manifests. When a deployment
fails on an SCC admission denial, the failure is sent to the oracle and
high-confidence adjustments are applied to the SCC before the next attempt,
up to the iteration cap.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromContext(cmd.Context())
			ctx := cmd.Context()

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

			addr := metricsAddr
			if addr == "" {
				addr = cfg.MetricsAddr
			}
			var wg sync.WaitGroup
			serverCtx, stopServer := context.WithCancel(ctx)
			srv := server.NewServer(addr)
			srv.Start(serverCtx, &wg)
			srv.SetReady(true)
			defer wg.Wait()
			defer stopServer()

			sccObj, err := scc.GenerateOrUpdate(ctx, set, scc.GenerateOptions{
				Name:     sccName,
				ForceNew: forceNew,
			}, client)
			if err != nil {
				return err
			}

			persisted, err := client.CreateSCC(ctx, sccObj)
			if err != nil {
				return err
			}
			if err := client.GrantSCCToServiceAccounts(ctx, persisted.GetName(), set.ServiceAccounts); err != nil {
				return err
			}

			iterations := maxIterations
			if iterations <= 0 {
				iterations = cfg.MaxIterations
			}

			ctrl := controller.New(client, oracle.NewOpenAIOracle(cfg.Oracle),
				controller.WithMaxIterations(iterations),
				controller.WithNamespace(opts.Namespace),
			)
			result, err := ctrl.Run(ctx, set, persisted)
			if err != nil {
				return err
			}

			cmd.Printf("Run finished: %s after %d iteration(s) (%s)\n",
				result.State, result.Iterations, result.Reason)
			cmd.Printf("SCC: %s, adjustments applied: %d\n",
				result.WorkingSCC.GetName(), len(result.Applied))
			for _, adj := range result.Applied {
				cmd.Printf("  %s -> %v (confidence %.2f): %s\n",
					adj.Field, adj.SuggestedValue, adj.Confidence, adj.Reason)
			}

			if result.State != controller.StateConverged {
				return fmt.Errorf("deployment did not converge: %s", result.Reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&sccName, "scc-name", "s", "", "Name for the SCC (default: derived from manifests)")
	cmd.Flags().BoolVar(&forceNew, "force-new", false, "Always generate a new SCC, ignoring existing ones")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", 0, "Maximum deploy iterations (default: SCC_AGENT_MAX_ITERATIONS or 3)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for metrics and health endpoints (default: SCC_AGENT_METRICS_ADDR or :8080)")
	return cmd
}

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kube-scc/scc-agent/cmd/scc-agent/internal/commands"
	"github.com/kube-scc/scc-agent/pkg/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "scc-agent",
		Short: "Synthesize and reconcile OpenShift SecurityContextConstraints",
		Long: `scc-agent analyzes Kubernetes manifests for the privileges their workloads
request, synthesizes a matching SecurityContextConstraints object, and can
iteratively adjust the SCC against real deployment failures.`,
	}

	// Add global flags
	var kubeconfig string
	var namespace string
	var logLevel string

	rootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file (default: $KUBECONFIG or ~/.kube/config)")
	rootCmd.PersistentFlags().StringVarP(&namespace, "namespace", "n", "", "Target namespace override")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")

	// Store global options in command context
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if level == "" {
			level = os.Getenv("SCC_AGENT_LOG_LEVEL")
		}
		if level == "" {
			level = "INFO"
		}
		if err := logger.Init(level, false); err != nil {
			return err
		}
		cmd.SetContext(commands.WithOptions(cmd.Context(), commands.Options{
			Kubeconfig: kubeconfig,
			Namespace:  namespace,
		}))
		return nil
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewAnalyzeCommand())
	rootCmd.AddCommand(commands.NewGenerateCommand())
	rootCmd.AddCommand(commands.NewDeployCommand())
	rootCmd.AddCommand(commands.NewAutoDeployCommand())
	rootCmd.AddCommand(commands.NewGetCommand())
	rootCmd.AddCommand(commands.NewListCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Add completion command
	rootCmd.AddCommand(commands.NewCompletionCommand(rootCmd))

	if err := rootCmd.Execute(); err != nil {
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

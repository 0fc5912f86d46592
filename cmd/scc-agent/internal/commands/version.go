package commands

import (
	"github.com/spf13/cobra"

	"github.com/kube-scc/scc-agent/cmd/scc-agent/internal/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show scc-agent version information",
		Long:  "Displays the version, git commit SHA, and build time of scc-agent",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Info())
		},
	}
}

package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/config"
)

func NewListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List SCCs in the cluster",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromContext(cmd.Context())

			cfg, err := config.LoadConfig(opts.Kubeconfig)
			if err != nil {
				return fmt.Errorf("connecting to cluster: %w", err)
			}
			client := cluster.NewClient(cfg.DynamicClient)

			sccs, err := client.ListSCCs(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPRIORITY\tPRIVILEGED\tHOST-NETWORK\tRUN-AS-USER")
			for i := range sccs {
				item := &sccs[i]
				priority, _, _ := unstructured.NestedInt64(item.Object, "priority")
				privileged, _, _ := unstructured.NestedBool(item.Object, "allowPrivilegedContainer")
				hostNetwork, _, _ := unstructured.NestedBool(item.Object, "allowHostNetwork")
				runAsUser, _, _ := unstructured.NestedString(item.Object, "runAsUser", "type")
				fmt.Fprintf(w, "%s\t%d\t%t\t%t\t%s\n",
					item.GetName(), priority, privileged, hostNetwork, runAsUser)
			}
			return w.Flush()
		},
	}
}

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/config"
	"github.com/kube-scc/scc-agent/pkg/manifest"
	"github.com/kube-scc/scc-agent/pkg/requirements"
	"github.com/kube-scc/scc-agent/pkg/scc"
)

func NewGenerateCommand() *cobra.Command {
	var (
		sccName         string
		forceNew        bool
		optimize        bool
		suggestExisting bool
		outputDir       string
		singleFile      bool
	)

	cmd := &cobra.Command{
		Use:   "generate MANIFEST_PATH",
		Short: "Generate an SCC and RBAC grants from manifests",
		Long: `Synthesizes a SecurityContextConstraints object from the privileges the
manifests request, together with the ClusterRole and RoleBindings that let
the referenced service accounts use it.

When a cluster is reachable and an SCC is already bound to one of the
service accounts, that SCC is updated instead of creating a new one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := OptionsFromContext(cmd.Context())

			parser := manifest.NewParser()
			set, err := parser.ParsePath(args[0])
			if err != nil {
				return err
			}

			if suggestExisting {
				cmd.Printf("Suggested baseline SCC: %s\n", scc.SuggestTemplate(set))
				return nil
			}

			// Discovery is best-effort: offline generation still works
			var discoverer scc.Discoverer
			if !forceNew {
				if cfg, err := config.LoadConfig(opts.Kubeconfig); err == nil {
					discoverer = cluster.NewClient(cfg.DynamicClient)
				}
			}

			sccObj, err := scc.GenerateOrUpdate(cmd.Context(), set, scc.GenerateOptions{
				Name:     sccName,
				ForceNew: forceNew,
			}, discoverer)
			if err != nil {
				return err
			}

			if optimize {
				sccObj = scc.Optimize(sccObj, set)
			}

			objects, err := withRBAC(sccObj, set.ServiceAccounts)
			if err != nil {
				return err
			}

			if outputDir == "" {
				return printObjects(cmd, objects)
			}
			return writeObjects(cmd, outputDir, singleFile, objects)
		},
	}

	cmd.Flags().StringVarP(&sccName, "scc-name", "s", "", "Name for the generated SCC (default: derived from manifests)")
	cmd.Flags().BoolVar(&forceNew, "force-new", false, "Always generate a new SCC, ignoring existing ones")
	cmd.Flags().BoolVar(&optimize, "optimize", false, "Shrink capability and volume grants to the current requirements")
	cmd.Flags().BoolVar(&suggestExisting, "suggest-existing", false, "Only suggest a built-in baseline SCC and exit")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to write the generated YAML into (default: stdout)")
	cmd.Flags().BoolVar(&singleFile, "single-file", false, "Write all objects into one multi-document file")
	return cmd
}

// withRBAC prepends the SCC to its use-ClusterRole and per-account bindings
func withRBAC(sccObj *unstructured.Unstructured, accounts []requirements.ServiceAccountBinding) ([]*unstructured.Unstructured, error) {
	objects := []*unstructured.Unstructured{sccObj}

	role, err := scc.ToUnstructuredObject(scc.NewUseClusterRole(sccObj.GetName()))
	if err != nil {
		return nil, err
	}
	objects = append(objects, role)

	for _, account := range accounts {
		binding, err := scc.ToUnstructuredObject(scc.NewRoleBinding(sccObj.GetName(), account.Name, account.Namespace))
		if err != nil {
			return nil, err
		}
		objects = append(objects, binding)
	}
	return objects, nil
}

func printObjects(cmd *cobra.Command, objects []*unstructured.Unstructured) error {
	for i, obj := range objects {
		data, err := sigsyaml.Marshal(obj.Object)
		if err != nil {
			return err
		}
		if i > 0 {
			cmd.Println("---")
		}
		cmd.Print(string(data))
	}
	return nil
}

func writeObjects(cmd *cobra.Command, dir string, singleFile bool, objects []*unstructured.Unstructured) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if singleFile {
		var combined []byte
		for i, obj := range objects {
			data, err := sigsyaml.Marshal(obj.Object)
			if err != nil {
				return err
			}
			if i > 0 {
				combined = append(combined, []byte("---\n")...)
			}
			combined = append(combined, data...)
		}
		path := filepath.Join(dir, objects[0].GetName()+".yaml")
		if err := os.WriteFile(path, combined, 0o644); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", path)
		return nil
	}

	for _, obj := range objects {
		data, err := sigsyaml.Marshal(obj.Object)
		if err != nil {
			return err
		}
		name := fmt.Sprintf("%s-%s.yaml", kindSlug(obj.GetKind()), obj.GetName())
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
		cmd.Printf("Wrote %s\n", path)
	}
	return nil
}

func kindSlug(kind string) string {
	switch kind {
	case scc.Kind:
		return "scc"
	case "ClusterRole":
		return "clusterrole"
	case "RoleBinding":
		return "rolebinding"
	case "ClusterRoleBinding":
		return "clusterrolebinding"
	}
	return "resource"
}

// Copyright 2025 The SCC Agent Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kube-scc/scc-agent/pkg/requirements"
)

const multiDocManifest = `apiVersion: v1
kind: Namespace
metadata:
  name: demo
---
apiVersion: apps/v1
kind: Deployment
metadata:
  name: web
  namespace: demo
spec:
  template:
    spec:
      serviceAccountName: web-sa
      hostNetwork: true
      containers:
        - name: app
          securityContext:
            privileged: true
            capabilities:
              add: ["NET_BIND_SERVICE"]
---
apiVersion: v1
kind: Service
metadata:
  name: web
  namespace: demo
`

func writeManifest(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return path
}

func TestParseFileMultiDocument(t *testing.T) {
	path := writeManifest(t, t.TempDir(), "app.yaml", multiDocManifest)

	parser := NewParser()
	set, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	if len(set.Resources) != 3 {
		t.Fatalf("resources = %d, want 3", len(set.Resources))
	}
	if len(set.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", set.Errors)
	}

	kinds := set.Kinds()
	for _, want := range []requirements.Kind{
		requirements.KindPrivileged,
		requirements.KindCapabilities,
		requirements.KindHostNetwork,
	} {
		if !kinds[want] {
			t.Errorf("missing requirement kind %s, have %v", want, kinds)
		}
	}

	if len(set.ServiceAccounts) != 1 {
		t.Fatalf("service accounts = %v", set.ServiceAccounts)
	}
	sa := set.ServiceAccounts[0]
	if sa.Name != "web-sa" || sa.Namespace != "demo" {
		t.Errorf("service account = %+v", sa)
	}
	if len(sa.Resources) != 1 || sa.Resources[0] != "Deployment/web" {
		t.Errorf("service account resources = %v", sa.Resources)
	}
}

func TestParseFileMalformedDocumentDegrades(t *testing.T) {
	content := "apiVersion: v1\nkind: Pod\nmetadata:\n  name: ok\nspec:\n  containers: []\n---\n: not yaml at all: [\n"
	path := writeManifest(t, t.TempDir(), "broken.yaml", content)

	parser := NewParser()
	set, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile should degrade, not fail: %v", err)
	}
	if len(set.Resources) != 1 {
		t.Errorf("resources = %d, want the valid document", len(set.Resources))
	}
	if len(set.Errors) == 0 {
		t.Error("expected a recorded parse error")
	}
}

func TestParseFileUnsupportedKindWarns(t *testing.T) {
	content := "apiVersion: example.io/v1\nkind: Widget\nmetadata:\n  name: w\n"
	path := writeManifest(t, t.TempDir(), "widget.yaml", content)

	parser := NewParser()
	set, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if len(set.Warnings) != 1 {
		t.Fatalf("warnings = %v", set.Warnings)
	}
	// The resource is still kept for deployment
	if len(set.Resources) != 1 {
		t.Errorf("resources = %d", len(set.Resources))
	}
}

func TestParseDirectory(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "b.yaml", "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: b\n")
	writeManifest(t, dir, "a.yml", "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: a\n")
	writeManifest(t, dir, "ignored.txt", "not yaml")

	parser := NewParser()
	set, err := parser.ParseDirectory(dir)
	if err != nil {
		t.Fatalf("ParseDirectory: %v", err)
	}
	if len(set.Resources) != 2 {
		t.Fatalf("resources = %d, want 2", len(set.Resources))
	}
	// Files are processed in sorted order
	if set.Resources[0].GetName() != "a" {
		t.Errorf("first resource = %s", set.Resources[0].GetName())
	}
}

func TestParseDirectoryEmpty(t *testing.T) {
	parser := NewParser()
	if _, err := parser.ParseDirectory(t.TempDir()); err == nil {
		t.Error("expected error for directory without manifests")
	}
}

func TestExtractPolicy(t *testing.T) {
	content := `apiVersion: security.openshift.io/v1
kind: SecurityContextConstraints
metadata:
  name: web-app-scc
allowPrivilegedContainer: false
---
apiVersion: rbac.authorization.k8s.io/v1
kind: ClusterRole
metadata:
  name: system:openshift:scc:web-app-scc
---
apiVersion: rbac.authorization.k8s.io/v1
kind: RoleBinding
metadata:
  name: scc-web-app-scc-web-sa
  namespace: demo
`
	path := writeManifest(t, t.TempDir(), "policy.yaml", content)

	parser := NewParser()
	set, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}

	policy := ExtractPolicy(set)
	if len(policy.SCCs) != 1 || policy.SCCs[0].GetName() != "web-app-scc" {
		t.Errorf("SCCs = %v", policy.SCCs)
	}
	if len(policy.ClusterRoles) != 1 || len(policy.RoleBindings) != 1 {
		t.Errorf("roles = %d, bindings = %d", len(policy.ClusterRoles), len(policy.RoleBindings))
	}
}

func TestCombine(t *testing.T) {
	a := requirements.NewSet("a")
	a.Requirements = append(a.Requirements, requirements.Requirement{Kind: requirements.KindPrivileged, Value: true})
	b := requirements.NewSet("b")
	b.Requirements = append(b.Requirements, requirements.Requirement{Kind: requirements.KindHostPath, Value: "/data"})

	combined := Combine(a, b)
	if combined.Source != "combined" {
		t.Errorf("source = %s", combined.Source)
	}
	if len(combined.Requirements) != 2 {
		t.Errorf("requirements = %d", len(combined.Requirements))
	}
}

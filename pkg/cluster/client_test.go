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

package cluster

import (
	"context"
	"errors"
	"testing"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/kube-scc/scc-agent/pkg/requirements"
)

var configMapResource = schema.GroupVersionResource{Version: "v1", Resource: "configmaps"}

func newFakeClient() (*Client, *dynamicfake.FakeDynamicClient) {
	scheme := runtime.NewScheme()
	dyn := dynamicfake.NewSimpleDynamicClientWithCustomListKinds(scheme, map[schema.GroupVersionResource]string{
		SCCResource:         "SecurityContextConstraintsList",
		roleBindingResource: "RoleBindingList",
	})
	return NewClient(dyn), dyn
}

func sccObject(name string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "security.openshift.io/v1",
		"kind":       "SecurityContextConstraints",
		"metadata":   map[string]interface{}{"name": name},
		"priority":   int64(10),
	}}
}

func namespacedObject(kind, apiVersion, name, namespace string) *unstructured.Unstructured {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": apiVersion,
		"kind":       kind,
		"metadata":   map[string]interface{}{"name": name},
	}}
	if namespace != "" {
		obj.SetNamespace(namespace)
	}
	return obj
}

func TestCreateSCCFallsBackToUpdate(t *testing.T) {
	client, _ := newFakeClient()
	ctx := context.Background()

	if _, err := client.CreateSCC(ctx, sccObject("test-scc")); err != nil {
		t.Fatalf("first create: %v", err)
	}

	changed := sccObject("test-scc")
	changed.Object["priority"] = int64(5)
	if _, err := client.CreateSCC(ctx, changed); err != nil {
		t.Fatalf("second create should fall back to update: %v", err)
	}

	got, err := client.GetSCC(ctx, "test-scc")
	if err != nil {
		t.Fatalf("GetSCC: %v", err)
	}
	if priority, _, _ := unstructured.NestedInt64(got.Object, "priority"); priority != 5 {
		t.Errorf("priority = %d, want updated value 5", priority)
	}
}

func TestUpdateSCCCreatesWhenMissing(t *testing.T) {
	client, _ := newFakeClient()

	if _, err := client.UpdateSCC(context.Background(), sccObject("missing-scc")); err != nil {
		t.Fatalf("UpdateSCC should create a missing SCC: %v", err)
	}
	got, err := client.GetSCC(context.Background(), "missing-scc")
	if err != nil || got == nil {
		t.Fatalf("SCC not created: obj=%v err=%v", got, err)
	}
}

func TestGetSCCMissingReturnsNil(t *testing.T) {
	client, _ := newFakeClient()

	got, err := client.GetSCC(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSCC: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing SCC, got %v", got)
	}
}

func TestDeleteSCCMissingTolerated(t *testing.T) {
	client, _ := newFakeClient()
	if err := client.DeleteSCC(context.Background(), "nope"); err != nil {
		t.Errorf("deleting a missing SCC should not error: %v", err)
	}
}

func TestListSCCs(t *testing.T) {
	client, _ := newFakeClient()
	ctx := context.Background()
	for _, name := range []string{"a-scc", "b-scc"} {
		if _, err := client.CreateSCC(ctx, sccObject(name)); err != nil {
			t.Fatalf("CreateSCC %s: %v", name, err)
		}
	}

	sccs, err := client.ListSCCs(ctx)
	if err != nil {
		t.Fatalf("ListSCCs: %v", err)
	}
	if len(sccs) != 2 {
		t.Errorf("sccs = %d, want 2", len(sccs))
	}
}

func TestDeployAllOrdersAndContinuesPastFailures(t *testing.T) {
	client, dyn := newFakeClient()
	dyn.PrependReactor("create", "pods", func(action k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New(`pods "app" is forbidden: unable to validate against any security context constraint`)
	})

	resources := []*unstructured.Unstructured{
		namespacedObject("Pod", "v1", "app", "demo"),
		namespacedObject("Ingress", "networking.k8s.io/v1", "edge", "demo"),
		resource("Namespace", "demo"),
		namespacedObject("ConfigMap", "v1", "cfg", "demo"),
	}

	outcomes := client.DeployAll(context.Background(), resources, "", false)
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}

	wantKinds := []string{"Namespace", "ConfigMap", "Pod", "Ingress"}
	for i, want := range wantKinds {
		if outcomes[i].ResourceKind != want {
			t.Errorf("outcomes[%d].ResourceKind = %s, want %s", i, outcomes[i].ResourceKind, want)
		}
	}

	pod := outcomes[2]
	if pod.Success {
		t.Error("pod deploy should have failed")
	}
	if !pod.SCCAttributable() {
		t.Errorf("pod failure not SCC-attributable: %+v", pod)
	}

	// The failure did not stop the batch
	if !outcomes[3].Success {
		t.Errorf("ingress should deploy after the pod failure: %+v", outcomes[3])
	}
}

func TestDeployNamespaceOverride(t *testing.T) {
	client, dyn := newFakeClient()

	outcome := client.Deploy(context.Background(), namespacedObject("ConfigMap", "v1", "cfg", "original"), "override")
	if !outcome.Success {
		t.Fatalf("deploy failed: %+v", outcome)
	}
	if outcome.Namespace != "override" {
		t.Errorf("outcome namespace = %s", outcome.Namespace)
	}

	if _, err := dyn.Resource(configMapResource).Namespace("override").Get(context.Background(), "cfg", metav1.GetOptions{}); err != nil {
		t.Errorf("config map not in override namespace: %v", err)
	}
}

func TestFindSCCForServiceAccounts(t *testing.T) {
	client, dyn := newFakeClient()
	ctx := context.Background()

	if _, err := client.CreateSCC(ctx, sccObject("web-scc")); err != nil {
		t.Fatalf("CreateSCC: %v", err)
	}

	binding := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "rbac.authorization.k8s.io/v1",
		"kind":       "RoleBinding",
		"metadata": map[string]interface{}{
			"name":      "scc-web-scc-web-sa",
			"namespace": "demo",
		},
		"roleRef": map[string]interface{}{
			"apiGroup": "rbac.authorization.k8s.io",
			"kind":     "ClusterRole",
			"name":     "system:openshift:scc:web-scc",
		},
		"subjects": []interface{}{
			map[string]interface{}{
				"kind":      "ServiceAccount",
				"name":      "web-sa",
				"namespace": "demo",
			},
		},
	}}
	if _, err := dyn.Resource(roleBindingResource).Namespace("demo").Create(ctx, binding, metav1.CreateOptions{}); err != nil {
		t.Fatalf("seeding role binding: %v", err)
	}

	found, err := client.FindSCCForServiceAccounts(ctx, []requirements.ServiceAccountBinding{
		{Name: "web-sa", Namespace: "demo"},
	})
	if err != nil {
		t.Fatalf("FindSCCForServiceAccounts: %v", err)
	}
	if found == nil || found.GetName() != "web-scc" {
		t.Errorf("found = %v, want web-scc", found)
	}

	none, err := client.FindSCCForServiceAccounts(ctx, []requirements.ServiceAccountBinding{
		{Name: "other-sa", Namespace: "demo"},
	})
	if err != nil {
		t.Fatalf("FindSCCForServiceAccounts: %v", err)
	}
	if none != nil {
		t.Errorf("unbound account matched SCC %s", none.GetName())
	}
}

func TestGrantSCCToServiceAccounts(t *testing.T) {
	client, dyn := newFakeClient()
	ctx := context.Background()

	accounts := []requirements.ServiceAccountBinding{{Name: "web-sa", Namespace: "demo"}}
	if err := client.GrantSCCToServiceAccounts(ctx, "web-scc", accounts); err != nil {
		t.Fatalf("GrantSCCToServiceAccounts: %v", err)
	}

	clusterRoles := schema.GroupVersionResource{Group: "rbac.authorization.k8s.io", Version: "v1", Resource: "clusterroles"}
	if _, err := dyn.Resource(clusterRoles).Get(ctx, "system:openshift:scc:web-scc", metav1.GetOptions{}); err != nil {
		t.Errorf("use cluster role not created: %v", err)
	}
	if _, err := dyn.Resource(roleBindingResource).Namespace("demo").Get(ctx, "scc-web-scc-web-sa", metav1.GetOptions{}); err != nil {
		t.Errorf("role binding not created: %v", err)
	}

	// Idempotent: a second grant tolerates AlreadyExists
	if err := client.GrantSCCToServiceAccounts(ctx, "web-scc", accounts); err != nil {
		t.Errorf("second grant: %v", err)
	}
}

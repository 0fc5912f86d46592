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

// Package cluster wraps the dynamic Kubernetes client with the operations the
// SCC workflow needs: SCC CRUD with create/update fallbacks, RBAC grants, and
// ordered manifest deployment that reports per-resource outcomes instead of
// errors.
package cluster

import (
	"context"
	"fmt"
	"strings"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"

	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/requirements"
	"github.com/kube-scc/scc-agent/pkg/scc"
)

// SCCResource is the GroupVersionResource for SecurityContextConstraints
var SCCResource = schema.GroupVersionResource{
	Group:    "security.openshift.io",
	Version:  "v1",
	Resource: "securitycontextconstraints",
}

var roleBindingResource = schema.GroupVersionResource{
	Group:    "rbac.authorization.k8s.io",
	Version:  "v1",
	Resource: "rolebindings",
}

// Outcome is the result of attempting to realize one resource against the
// cluster. Failures are values, not errors, so the adjustment controller can
// reason over the full outcome set of an iteration.
type Outcome struct {
	Success       bool     `json:"success"`
	ResourceName  string   `json:"resourceName"`
	ResourceKind  string   `json:"resourceKind"`
	Namespace     string   `json:"namespace"`
	Error         string   `json:"error,omitempty"`
	SCCSignatures []string `json:"sccSignatures,omitempty"`
}

// SCCAttributable reports whether the failure matched an SCC denial signature
func (o Outcome) SCCAttributable() bool {
	return !o.Success && len(o.SCCSignatures) > 0
}

// kindResources maps resource kinds to their plural resource names for kinds
// whose plural is not just a lowercased kind + "s"
var kindResources = map[string]string{
	"Ingress":                    "ingresses",
	"NetworkPolicy":              "networkpolicies",
	"SecurityContextConstraints": "securitycontextconstraints",
}

// Client performs cluster operations for the SCC workflow
type Client struct {
	dyn dynamic.Interface
	log *logger.Logger
}

// NewClient wraps a dynamic client
func NewClient(dyn dynamic.Interface) *Client {
	return &Client{
		dyn: dyn,
		log: logger.GetLogger().WithFields(logger.Fields{Component: "cluster-client"}),
	}
}

// CreateSCC creates the SCC, falling back to update when it already exists
func (c *Client) CreateSCC(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	defer c.observe("create_scc")()

	created, err := c.dyn.Resource(SCCResource).Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		c.log.Info("SCC already exists, updating", logger.Fields{SCCName: obj.GetName()})
		return c.UpdateSCC(ctx, obj)
	}
	if err != nil {
		metrics.ClusterOperations.WithLabelValues("create_scc", "error").Inc()
		return nil, fmt.Errorf("creating SCC %s: %w", obj.GetName(), err)
	}
	metrics.ClusterOperations.WithLabelValues("create_scc", "success").Inc()
	c.log.Info("Created SCC", logger.Fields{SCCName: created.GetName()})
	return created, nil
}

// UpdateSCC replaces the SCC, carrying over the live resourceVersion. A
// missing SCC falls back to create.
func (c *Client) UpdateSCC(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	defer c.observe("update_scc")()

	name := obj.GetName()
	existing, err := c.dyn.Resource(SCCResource).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		c.log.Info("SCC not found, creating", logger.Fields{SCCName: name})
		return c.CreateSCC(ctx, obj)
	}
	if err != nil {
		metrics.ClusterOperations.WithLabelValues("update_scc", "error").Inc()
		return nil, fmt.Errorf("fetching SCC %s: %w", name, err)
	}

	obj = obj.DeepCopy()
	obj.SetResourceVersion(existing.GetResourceVersion())
	updated, err := c.dyn.Resource(SCCResource).Update(ctx, obj, metav1.UpdateOptions{})
	if err != nil {
		metrics.ClusterOperations.WithLabelValues("update_scc", "error").Inc()
		return nil, fmt.Errorf("updating SCC %s: %w", name, err)
	}
	metrics.ClusterOperations.WithLabelValues("update_scc", "success").Inc()
	c.log.Info("Updated SCC", logger.Fields{SCCName: name})
	return updated, nil
}

// GetSCC fetches an SCC by name. A missing SCC returns (nil, nil).
func (c *Client) GetSCC(ctx context.Context, name string) (*unstructured.Unstructured, error) {
	defer c.observe("get_scc")()

	obj, err := c.dyn.Resource(SCCResource).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetching SCC %s: %w", name, err)
	}
	return obj, nil
}

// ListSCCs returns every SCC in the cluster
func (c *Client) ListSCCs(ctx context.Context) ([]unstructured.Unstructured, error) {
	defer c.observe("list_sccs")()

	list, err := c.dyn.Resource(SCCResource).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("listing SCCs: %w", err)
	}
	return list.Items, nil
}

// DeleteSCC removes an SCC; deleting a missing SCC is not an error
func (c *Client) DeleteSCC(ctx context.Context, name string) error {
	defer c.observe("delete_scc")()

	err := c.dyn.Resource(SCCResource).Delete(ctx, name, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting SCC %s: %w", name, err)
	}
	c.log.Info("Deleted SCC", logger.Fields{SCCName: name})
	return nil
}

// EnsureResource creates an arbitrary object, tolerating AlreadyExists. Used
// for the RBAC grants, which are stable once created.
func (c *Client) EnsureResource(ctx context.Context, obj *unstructured.Unstructured) error {
	gvr, err := resourceFor(obj)
	if err != nil {
		return err
	}
	iface := c.resourceInterface(gvr, obj)
	_, err = iface.Create(ctx, obj, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		c.log.Debug("Resource already exists", logger.Fields{
			ResourceKind: obj.GetKind(),
			ResourceName: obj.GetName(),
		})
		return nil
	}
	if err != nil {
		return fmt.Errorf("creating %s/%s: %w", obj.GetKind(), obj.GetName(), err)
	}
	return nil
}

// Deploy attempts to create one resource and reports the outcome. The
// namespace override, when non-empty, replaces the manifest's namespace for
// namespaced kinds.
func (c *Client) Deploy(ctx context.Context, obj *unstructured.Unstructured, namespace string) Outcome {
	return c.deploy(ctx, obj, namespace, false)
}

// DryRunDeploy validates one resource against the API server without
// persisting it.
func (c *Client) DryRunDeploy(ctx context.Context, obj *unstructured.Unstructured, namespace string) Outcome {
	return c.deploy(ctx, obj, namespace, true)
}

// DeployAll deploys the resources in dependency order, one outcome per
// resource. A failure never stops the batch; the caller decides what the
// failures mean.
func (c *Client) DeployAll(ctx context.Context, resources []*unstructured.Unstructured, namespace string, dryRun bool) []Outcome {
	sorted := SortByDeployOrder(resources)
	outcomes := make([]Outcome, 0, len(sorted))
	for _, obj := range sorted {
		outcome := c.deploy(ctx, obj, namespace, dryRun)
		outcomes = append(outcomes, outcome)
		if !outcome.Success {
			c.log.Warn("Deployment failed, continuing with next resource", logger.Fields{
				ResourceKind: outcome.ResourceKind,
				ResourceName: outcome.ResourceName,
				Reason:       outcome.Error,
			})
		}
	}
	return outcomes
}

func (c *Client) deploy(ctx context.Context, obj *unstructured.Unstructured, namespace string, dryRun bool) Outcome {
	kind := obj.GetKind()
	name := obj.GetName()
	if name == "" {
		name = "unknown"
	}

	targetNamespace := namespace
	if targetNamespace == "" {
		targetNamespace = obj.GetNamespace()
	}
	if targetNamespace == "" {
		targetNamespace = "default"
	}

	outcome := Outcome{
		ResourceName: name,
		ResourceKind: kind,
		Namespace:    targetNamespace,
	}

	gvr, err := resourceFor(obj)
	if err != nil {
		outcome.Error = err.Error()
		metrics.DeployAttempts.WithLabelValues(kind, "error").Inc()
		return outcome
	}

	if !IsClusterScoped(kind) && namespace != "" {
		obj = obj.DeepCopy()
		obj.SetNamespace(namespace)
	}

	opts := metav1.CreateOptions{}
	if dryRun {
		opts.DryRun = []string{metav1.DryRunAll}
	}

	_, err = c.resourceInterface(gvr, obj).Create(ctx, obj, opts)
	if err != nil {
		outcome.Error = err.Error()
		outcome.SCCSignatures = MatchSCCSignatures(err.Error())
		if outcome.SCCAttributable() {
			metrics.SCCFailures.Inc()
		}
		metrics.DeployAttempts.WithLabelValues(kind, "failure").Inc()
		c.log.Error("Failed to deploy resource", logger.Fields{
			ResourceKind: kind,
			ResourceName: name,
			Namespace:    targetNamespace,
			Error:        err,
		})
		return outcome
	}

	outcome.Success = true
	metrics.DeployAttempts.WithLabelValues(kind, "success").Inc()
	c.log.Info("Deployed resource", logger.Fields{
		ResourceKind: kind,
		ResourceName: name,
		Namespace:    targetNamespace,
	})
	return outcome
}

// FindSCCForServiceAccounts looks up whether any of the service accounts is
// already bound to an SCC through a "use" RoleBinding, and returns that SCC.
// Implements scc.Discoverer.
func (c *Client) FindSCCForServiceAccounts(ctx context.Context, accounts []requirements.ServiceAccountBinding) (*unstructured.Unstructured, error) {
	defer c.observe("find_scc_for_sa")()

	for _, account := range accounts {
		bindings, err := c.dyn.Resource(roleBindingResource).Namespace(account.Namespace).List(ctx, metav1.ListOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) || apierrors.IsForbidden(err) {
				continue
			}
			return nil, fmt.Errorf("listing role bindings in %s: %w", account.Namespace, err)
		}
		for i := range bindings.Items {
			sccName, ok := boundSCCName(&bindings.Items[i], account)
			if !ok {
				continue
			}
			existing, err := c.GetSCC(ctx, sccName)
			if err != nil {
				return nil, err
			}
			if existing != nil {
				c.log.Info("Found SCC bound to service account", logger.Fields{
					SCCName:   sccName,
					Namespace: account.Namespace,
					Additional: map[string]interface{}{
						"serviceAccount": account.Name,
					},
				})
				return existing, nil
			}
		}
	}
	return nil, nil
}

// boundSCCName extracts the SCC name from a RoleBinding that grants SCC use
// to the given service account.
func boundSCCName(binding *unstructured.Unstructured, account requirements.ServiceAccountBinding) (string, bool) {
	roleName, _, _ := unstructured.NestedString(binding.Object, "roleRef", "name")
	const prefix = "system:openshift:scc:"
	if !strings.HasPrefix(roleName, prefix) {
		return "", false
	}

	subjects, _, _ := unstructured.NestedSlice(binding.Object, "subjects")
	for _, s := range subjects {
		subject, ok := s.(map[string]interface{})
		if !ok {
			continue
		}
		kind, _ := subject["kind"].(string)
		name, _ := subject["name"].(string)
		ns, _ := subject["namespace"].(string)
		if ns == "" {
			ns = binding.GetNamespace()
		}
		if kind == "ServiceAccount" && name == account.Name && ns == account.Namespace {
			return strings.TrimPrefix(roleName, prefix), true
		}
	}
	return "", false
}

// GrantSCCToServiceAccounts ensures the use-ClusterRole for the SCC exists
// and binds each service account to it.
func (c *Client) GrantSCCToServiceAccounts(ctx context.Context, sccName string, accounts []requirements.ServiceAccountBinding) error {
	role, err := scc.ToUnstructuredObject(scc.NewUseClusterRole(sccName))
	if err != nil {
		return err
	}
	if err := c.EnsureResource(ctx, role); err != nil {
		return err
	}

	for _, account := range accounts {
		binding, err := scc.ToUnstructuredObject(scc.NewRoleBinding(sccName, account.Name, account.Namespace))
		if err != nil {
			return err
		}
		if err := c.EnsureResource(ctx, binding); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) resourceInterface(gvr schema.GroupVersionResource, obj *unstructured.Unstructured) dynamic.ResourceInterface {
	if IsClusterScoped(obj.GetKind()) {
		return c.dyn.Resource(gvr)
	}
	ns := obj.GetNamespace()
	if ns == "" {
		ns = "default"
	}
	return c.dyn.Resource(gvr).Namespace(ns)
}

func (c *Client) observe(operation string) func() {
	start := time.Now()
	return func() {
		metrics.ClusterOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}

// resourceFor derives the GroupVersionResource from the object's apiVersion
// and kind. Irregular plurals come from a small table; everything else is the
// lowercased kind with an "s".
func resourceFor(obj *unstructured.Unstructured) (schema.GroupVersionResource, error) {
	gv, err := schema.ParseGroupVersion(obj.GetAPIVersion())
	if err != nil {
		return schema.GroupVersionResource{}, fmt.Errorf("parsing apiVersion %q: %w", obj.GetAPIVersion(), err)
	}
	kind := obj.GetKind()
	if kind == "" {
		return schema.GroupVersionResource{}, fmt.Errorf("object %q has no kind", obj.GetName())
	}
	resource, ok := kindResources[kind]
	if !ok {
		resource = strings.ToLower(kind) + "s"
	}
	return gv.WithResource(resource), nil
}

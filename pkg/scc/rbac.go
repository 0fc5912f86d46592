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

package scc

import (
	"fmt"
	"time"

	rbacv1 "k8s.io/api/rbac/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// UseRoleName returns the ClusterRole name granting "use" of the named SCC,
// matching the convention OpenShift itself uses for its built-in SCCs.
func UseRoleName(sccName string) string {
	return "system:openshift:scc:" + sccName
}

// NewUseClusterRole builds the ClusterRole that permits using the named SCC
func NewUseClusterRole(sccName string) *rbacv1.ClusterRole {
	return &rbacv1.ClusterRole{
		TypeMeta: metav1.TypeMeta{
			APIVersion: rbacv1.SchemeGroupVersion.String(),
			Kind:       "ClusterRole",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        UseRoleName(sccName),
			Annotations: provenanceAnnotations(),
		},
		Rules: []rbacv1.PolicyRule{{
			APIGroups:     []string{"security.openshift.io"},
			Resources:     []string{"securitycontextconstraints"},
			ResourceNames: []string{sccName},
			Verbs:         []string{"use"},
		}},
	}
}

// NewRoleBinding binds one service account to the SCC-use ClusterRole within
// the account's namespace.
func NewRoleBinding(sccName, serviceAccount, namespace string) *rbacv1.RoleBinding {
	return &rbacv1.RoleBinding{
		TypeMeta: metav1.TypeMeta{
			APIVersion: rbacv1.SchemeGroupVersion.String(),
			Kind:       "RoleBinding",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        fmt.Sprintf("scc-%s-%s", sccName, serviceAccount),
			Namespace:   namespace,
			Annotations: provenanceAnnotations(),
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      serviceAccount,
			Namespace: namespace,
		}},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     UseRoleName(sccName),
		},
	}
}

// NewClusterRoleBinding binds one service account to the SCC-use ClusterRole
// cluster-wide. The namespace is folded into the binding name so the same
// account name in two namespaces yields two bindings.
func NewClusterRoleBinding(sccName, serviceAccount, namespace string) *rbacv1.ClusterRoleBinding {
	return &rbacv1.ClusterRoleBinding{
		TypeMeta: metav1.TypeMeta{
			APIVersion: rbacv1.SchemeGroupVersion.String(),
			Kind:       "ClusterRoleBinding",
		},
		ObjectMeta: metav1.ObjectMeta{
			Name:        fmt.Sprintf("scc-%s-%s-%s", sccName, serviceAccount, namespace),
			Annotations: provenanceAnnotations(),
		},
		Subjects: []rbacv1.Subject{{
			Kind:      rbacv1.ServiceAccountKind,
			Name:      serviceAccount,
			Namespace: namespace,
		}},
		RoleRef: rbacv1.RoleRef{
			APIGroup: rbacv1.GroupName,
			Kind:     "ClusterRole",
			Name:     UseRoleName(sccName),
		},
	}
}

// ToUnstructuredObject converts a typed RBAC object into the unstructured
// form the dynamic client deploys.
func ToUnstructuredObject(obj runtime.Object) (*unstructured.Unstructured, error) {
	content, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("converting %T to unstructured: %w", obj, err)
	}
	return &unstructured.Unstructured{Object: content}, nil
}

func provenanceAnnotations() map[string]string {
	return map[string]string{
		"generated-by": GeneratedBy,
		"generated-at": now().UTC().Format(time.RFC3339),
	}
}

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
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// deployOrder ranks resource kinds so dependencies land before dependents:
// namespaces and policy first, then identity and config, then workloads, then
// routing. Unknown kinds sort last.
var deployOrder = map[string]int{
	"Namespace":                  0,
	"SecurityContextConstraints": 1,
	"ServiceAccount":             2,
	"Secret":                     3,
	"ConfigMap":                  4,
	"PersistentVolumeClaim":      5,
	"Role":                       6,
	"ClusterRole":                7,
	"RoleBinding":                8,
	"ClusterRoleBinding":         9,
	"Service":                    10,
	"Deployment":                 11,
	"StatefulSet":                12,
	"DaemonSet":                  13,
	"Job":                        14,
	"CronJob":                    15,
	"Pod":                        16,
	"Route":                      17,
	"Ingress":                    18,
}

const unknownKindPriority = 100

// clusterScoped lists the kinds deployed without a namespace
var clusterScoped = map[string]bool{
	"Namespace":                  true,
	"ClusterRole":                true,
	"ClusterRoleBinding":         true,
	"SecurityContextConstraints": true,
	"PersistentVolume":           true,
}

// KindPriority returns the deploy rank for a resource kind
func KindPriority(kind string) int {
	if p, ok := deployOrder[kind]; ok {
		return p
	}
	return unknownKindPriority
}

// IsClusterScoped reports whether the kind deploys without a namespace
func IsClusterScoped(kind string) bool {
	return clusterScoped[kind]
}

// SortByDeployOrder returns the resources sorted by kind priority. The sort
// is stable so resources of the same kind keep their manifest order.
func SortByDeployOrder(resources []*unstructured.Unstructured) []*unstructured.Unstructured {
	sorted := append([]*unstructured.Unstructured(nil), resources...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return KindPriority(sorted[i].GetKind()) < KindPriority(sorted[j].GetKind())
	})
	return sorted
}

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
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// Optimize shrinks an SCC's capability and volume grants to exactly what the
// requirement set currently justifies, plus the restrictive base set. This is
// the only operation allowed to remove permissions; it never runs implicitly
// during synthesis or update.
func Optimize(obj *unstructured.Unstructured, set *requirements.Set) *unstructured.Unstructured {
	out := obj.DeepCopy()

	requiredCaps := map[string]bool{}
	requiredVolumes := map[string]bool{}
	for _, v := range baseVolumes {
		requiredVolumes[v] = true
	}

	for _, req := range set.Requirements {
		switch req.Kind {
		case requirements.KindCapabilities:
			for _, cap := range stringValues(req.Value) {
				requiredCaps[cap] = true
			}
		case requirements.KindHostPath:
			requiredVolumes["hostPath"] = true
		case requirements.KindVolumes:
			for _, vol := range stringValues(req.Value) {
				requiredVolumes[vol] = true
			}
		}
	}

	if _, found, _ := unstructured.NestedSlice(out.Object, "allowedCapabilities"); found || len(requiredCaps) > 0 {
		replaceList(out, "allowedCapabilities", sortedKeys(requiredCaps))
	}
	replaceList(out, "volumes", sortedKeys(requiredVolumes))

	metrics.SCCGenerated.WithLabelValues("optimize").Inc()
	return out
}

func replaceList(obj *unstructured.Unstructured, field string, values []string) {
	if len(values) == 0 {
		unstructured.RemoveNestedField(obj.Object, field)
		return
	}
	list := make([]interface{}, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}
	obj.Object[field] = list
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

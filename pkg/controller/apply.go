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

package controller

import (
	"strings"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/oracle"
)

// ApplyAdjustments folds the adjustments at or above the confidence threshold
// into the SCC, mutating it in place. The field path is dot-separated;
// missing intermediate maps are created. Below-threshold adjustments are
// dropped, not deferred. Returns the adjustments actually applied.
func ApplyAdjustments(obj *unstructured.Unstructured, adjustments []oracle.Adjustment, threshold float64) []oracle.Adjustment {
	var applied []oracle.Adjustment
	for _, adj := range adjustments {
		if adj.Confidence < threshold {
			metrics.AdjustmentsDropped.Inc()
			continue
		}
		if setPath(obj.Object, adj.Field, adj.SuggestedValue) {
			metrics.AdjustmentsApplied.Inc()
			applied = append(applied, adj)
		}
	}
	return applied
}

// setPath writes value at the dot-separated path, creating intermediate maps
// as needed. A path segment that exists but is not a map blocks the write.
func setPath(root map[string]interface{}, path string, value interface{}) bool {
	if path == "" {
		return false
	}
	segments := strings.Split(path, ".")
	current := root
	for _, segment := range segments[:len(segments)-1] {
		next, ok := current[segment]
		if !ok {
			child := map[string]interface{}{}
			current[segment] = child
			current = child
			continue
		}
		child, ok := next.(map[string]interface{})
		if !ok {
			return false
		}
		current = child
	}
	current[segments[len(segments)-1]] = value
	return true
}

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
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/oracle"
)

func workingSCC() *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "security.openshift.io/v1",
		"kind":       "SecurityContextConstraints",
		"metadata":   map[string]interface{}{"name": "test-scc"},
		"runAsUser":  map[string]interface{}{"type": "MustRunAsNonRoot"},
		"priority":   int64(10),
	}}
}

func TestApplyAdjustmentsSetsNestedField(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "runAsUser.type", SuggestedValue: "RunAsAny", Confidence: 0.9},
	}, 0.7)

	if len(applied) != 1 {
		t.Fatalf("applied = %d", len(applied))
	}
	got, _, _ := unstructured.NestedString(obj.Object, "runAsUser", "type")
	if got != "RunAsAny" {
		t.Errorf("runAsUser.type = %q", got)
	}
}

func TestApplyAdjustmentsDropsBelowThreshold(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "allowHostNetwork", SuggestedValue: true, Confidence: 0.5},
		{Field: "allowHostPID", SuggestedValue: true, Confidence: 0.69},
	}, 0.7)

	if len(applied) != 0 {
		t.Fatalf("applied = %v", applied)
	}
	if _, present := obj.Object["allowHostNetwork"]; present {
		t.Error("low-confidence adjustment was applied")
	}
}

func TestApplyAdjustmentsThresholdIsInclusive(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "allowHostNetwork", SuggestedValue: true, Confidence: 0.7},
	}, 0.7)
	if len(applied) != 1 {
		t.Errorf("adjustment at exactly the threshold should apply")
	}
}

func TestApplyAdjustmentsCreatesIntermediateMaps(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "seLinuxContext.seLinuxOptions.level", SuggestedValue: "s0:c1,c2", Confidence: 0.8},
	}, 0.7)

	if len(applied) != 1 {
		t.Fatalf("applied = %d", len(applied))
	}
	got, _, _ := unstructured.NestedString(obj.Object, "seLinuxContext", "seLinuxOptions", "level")
	if got != "s0:c1,c2" {
		t.Errorf("nested write = %q", got)
	}
}

func TestApplyAdjustmentsNonMapSegmentBlocksWrite(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "priority.value", SuggestedValue: int64(5), Confidence: 0.9},
	}, 0.7)

	if len(applied) != 0 {
		t.Errorf("write through a scalar segment should be blocked, applied %v", applied)
	}
	if priority, _, _ := unstructured.NestedInt64(obj.Object, "priority"); priority != 10 {
		t.Errorf("priority clobbered: %d", priority)
	}
}

func TestApplyAdjustmentsEmptyPath(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "", SuggestedValue: true, Confidence: 0.9},
	}, 0.7)
	if len(applied) != 0 {
		t.Errorf("empty field path applied: %v", applied)
	}
}

func TestApplyAdjustmentsMixedBatch(t *testing.T) {
	obj := workingSCC()
	applied := ApplyAdjustments(obj, []oracle.Adjustment{
		{Field: "allowPrivilegedContainer", SuggestedValue: true, Confidence: 0.95},
		{Field: "allowHostIPC", SuggestedValue: true, Confidence: 0.3},
		{Field: "runAsUser.type", SuggestedValue: "RunAsAny", Confidence: 0.85},
	}, 0.7)

	if len(applied) != 2 {
		t.Fatalf("applied = %d, want 2", len(applied))
	}
	if obj.Object["allowPrivilegedContainer"] != true {
		t.Error("high-confidence boolean not applied")
	}
	if _, present := obj.Object["allowHostIPC"]; present {
		t.Error("low-confidence adjustment leaked into the batch")
	}
}

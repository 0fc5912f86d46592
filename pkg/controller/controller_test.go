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
	"context"
	"errors"
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/oracle"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// stubCluster replays a scripted outcome batch per iteration; the last batch
// repeats once the script runs out.
type stubCluster struct {
	script     [][]cluster.Outcome
	deploys    int
	persisted  []*unstructured.Unstructured
	persistErr error
}

func (s *stubCluster) DeployAll(ctx context.Context, resources []*unstructured.Unstructured, namespace string, dryRun bool) []cluster.Outcome {
	i := s.deploys
	s.deploys++
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	return s.script[i]
}

func (s *stubCluster) CreateSCC(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if s.persistErr != nil {
		return nil, s.persistErr
	}
	s.persisted = append(s.persisted, obj.DeepCopy())
	return obj, nil
}

type stubOracle struct {
	analyses []*oracle.Analysis
	err      error
	calls    int
	lastCtx  oracle.FailureContext
}

func (s *stubOracle) Analyze(ctx context.Context, fc oracle.FailureContext) (*oracle.Analysis, error) {
	s.lastCtx = fc
	i := s.calls
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if i >= len(s.analyses) {
		i = len(s.analyses) - 1
	}
	return s.analyses[i], nil
}

func success(kind, name string) cluster.Outcome {
	return cluster.Outcome{Success: true, ResourceKind: kind, ResourceName: name, Namespace: "demo"}
}

func sccDenied(kind, name string) cluster.Outcome {
	return cluster.Outcome{
		ResourceKind:  kind,
		ResourceName:  name,
		Namespace:     "demo",
		Error:         "unable to validate against any security context constraint",
		SCCSignatures: []string{"unable to validate against any security context constraint"},
	}
}

func plainFailure(kind, name string) cluster.Outcome {
	return cluster.Outcome{
		ResourceKind: kind,
		ResourceName: name,
		Namespace:    "demo",
		Error:        "exceeded quota",
	}
}

func adjustment(field string, confidence float64) oracle.Adjustment {
	return oracle.Adjustment{
		Field:          field,
		SuggestedValue: true,
		Reason:         "test",
		Confidence:     confidence,
	}
}

func analysisWith(adjustments ...oracle.Adjustment) *oracle.Analysis {
	return &oracle.Analysis{
		Success:              true,
		RootCause:            "scc denial",
		SuggestedAdjustments: adjustments,
		ConfidenceScore:      0.9,
	}
}

func runSet() *requirements.Set {
	set := requirements.NewSet("test")
	set.Resources = append(set.Resources, &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata":   map[string]interface{}{"name": "app", "namespace": "demo"},
	}})
	return set
}

func TestRunConvergesFirstIteration(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{success("Pod", "app")}}}
	oracleStub := &stubOracle{}
	ctrl := New(clusterStub, oracleStub)

	result, err := ctrl.Run(context.Background(), runSet(), workingSCC())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateConverged {
		t.Errorf("state = %s", result.State)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if oracleStub.calls != 0 {
		t.Error("oracle consulted despite convergence")
	}
}

func TestRunAbortsOnNonSCCFailure(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{plainFailure("Pod", "app")}}}
	oracleStub := &stubOracle{}
	ctrl := New(clusterStub, oracleStub)

	result, err := ctrl.Run(context.Background(), runSet(), workingSCC())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateAborted {
		t.Errorf("state = %s", result.State)
	}
	if oracleStub.calls != 0 {
		t.Error("oracle consulted for a failure outside its authority")
	}
}

func TestRunAbortsOnOracleError(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{sccDenied("Pod", "app")}}}
	oracleStub := &stubOracle{err: errors.New("api unreachable")}
	ctrl := New(clusterStub, oracleStub)

	result, _ := ctrl.Run(context.Background(), runSet(), workingSCC())
	if result.State != StateAborted {
		t.Errorf("state = %s", result.State)
	}
}

func TestRunAbortsWhenOracleHasNoAdjustments(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{sccDenied("Pod", "app")}}}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{{Success: false}}}
	ctrl := New(clusterStub, oracleStub)

	result, _ := ctrl.Run(context.Background(), runSet(), workingSCC())
	if result.State != StateAborted {
		t.Errorf("state = %s", result.State)
	}
	if len(clusterStub.persisted) != 0 {
		t.Error("SCC persisted without adjustments")
	}
}

func TestRunAdjustsThenConverges(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{
		{sccDenied("Pod", "app")},
		{success("Pod", "app")},
	}}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{
		analysisWith(adjustment("allowHostNetwork", 0.9)),
	}}
	ctrl := New(clusterStub, oracleStub)

	result, err := ctrl.Run(context.Background(), runSet(), workingSCC())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateConverged {
		t.Errorf("state = %s, reason = %s", result.State, result.Reason)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if len(result.Applied) != 1 {
		t.Errorf("applied = %v", result.Applied)
	}
	if result.WorkingSCC.Object["allowHostNetwork"] != true {
		t.Error("adjustment not folded into working SCC")
	}
	if len(clusterStub.persisted) != 1 {
		t.Errorf("persisted = %d", len(clusterStub.persisted))
	}
	if oracleStub.lastCtx.Failure.ResourceName != "app" {
		t.Errorf("oracle saw failure %+v", oracleStub.lastCtx.Failure)
	}
}

func TestRunExhaustsAtIterationCap(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{sccDenied("Pod", "app")}}}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{
		analysisWith(adjustment("allowHostNetwork", 0.9)),
	}}
	ctrl := New(clusterStub, oracleStub, WithMaxIterations(2))

	result, _ := ctrl.Run(context.Background(), runSet(), workingSCC())
	if result.State != StateExhausted {
		t.Errorf("state = %s", result.State)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d", result.Iterations)
	}
	if clusterStub.deploys != 2 {
		t.Errorf("deploys = %d", clusterStub.deploys)
	}
}

func TestRunBelowThresholdAdjustmentsDoNotAbort(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{{sccDenied("Pod", "app")}}}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{
		analysisWith(adjustment("allowHostNetwork", 0.4)),
	}}
	ctrl := New(clusterStub, oracleStub, WithMaxIterations(2))

	result, _ := ctrl.Run(context.Background(), runSet(), workingSCC())
	if result.State != StateExhausted {
		t.Errorf("state = %s, want the loop to continue past a dropped batch", result.State)
	}
	if len(result.Applied) != 0 {
		t.Errorf("applied = %v", result.Applied)
	}
	if _, present := result.WorkingSCC.Object["allowHostNetwork"]; present {
		t.Error("low-confidence adjustment changed the SCC")
	}
}

func TestRunAbortsOnPersistFailure(t *testing.T) {
	clusterStub := &stubCluster{
		script:     [][]cluster.Outcome{{sccDenied("Pod", "app")}},
		persistErr: errors.New("forbidden"),
	}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{
		analysisWith(adjustment("allowHostNetwork", 0.9)),
	}}
	ctrl := New(clusterStub, oracleStub)

	result, _ := ctrl.Run(context.Background(), runSet(), workingSCC())
	if result.State != StateAborted {
		t.Errorf("state = %s", result.State)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d", result.Iterations)
	}
}

func TestRunCumulativeAdjustments(t *testing.T) {
	clusterStub := &stubCluster{script: [][]cluster.Outcome{
		{sccDenied("Pod", "app")},
		{sccDenied("Pod", "app")},
		{success("Pod", "app")},
	}}
	oracleStub := &stubOracle{analyses: []*oracle.Analysis{
		analysisWith(adjustment("allowHostNetwork", 0.9)),
		analysisWith(adjustment("allowHostPID", 0.9)),
	}}
	ctrl := New(clusterStub, oracleStub)

	result, err := ctrl.Run(context.Background(), runSet(), workingSCC())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.State != StateConverged {
		t.Errorf("state = %s", result.State)
	}
	if len(result.Applied) != 2 {
		t.Errorf("applied = %v", result.Applied)
	}
	if result.WorkingSCC.Object["allowHostNetwork"] != true || result.WorkingSCC.Object["allowHostPID"] != true {
		t.Error("adjustments not cumulative across iterations")
	}
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateConverged, StateAborted, StateExhausted} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []State{StateIdle, StateDeploying, StateEvaluating, StateAdjusting} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

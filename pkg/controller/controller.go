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

// Package controller drives the deploy, diagnose, adjust loop: deploy every
// resource, classify failures against the SCC denial signatures, consult the
// oracle, fold high-confidence adjustments into the working SCC, persist, and
// try again until convergence or the iteration cap.
package controller

import (
	"context"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/oracle"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// State of an adjustment run
type State string

const (
	StateIdle       State = "Idle"
	StateDeploying  State = "Deploying"
	StateEvaluating State = "Evaluating"
	StateAdjusting  State = "Adjusting"

	// Terminal states. Converged means every resource deployed; Aborted
	// means the run hit a failure outside its authority to fix; Exhausted
	// means the iteration cap was reached with failures remaining.
	StateConverged State = "Converged"
	StateAborted   State = "Aborted"
	StateExhausted State = "Exhausted"
)

// Terminal reports whether the state ends a run
func (s State) Terminal() bool {
	return s == StateConverged || s == StateAborted || s == StateExhausted
}

// ConfidenceThreshold is the minimum oracle confidence for an adjustment to
// be applied. Adjustments below it are dropped, not queued.
const ConfidenceThreshold = 0.7

// DefaultMaxIterations bounds the loop when the caller gives no cap
const DefaultMaxIterations = 3

// ClusterAPI is the slice of the cluster client the controller needs. Narrow
// by design so tests drive the state machine with deterministic stubs.
type ClusterAPI interface {
	DeployAll(ctx context.Context, resources []*unstructured.Unstructured, namespace string, dryRun bool) []cluster.Outcome
	CreateSCC(ctx context.Context, obj *unstructured.Unstructured) (*unstructured.Unstructured, error)
}

// Result describes how a run ended
type Result struct {
	State      State
	Iterations int
	// Outcomes from the final deploy attempt
	Outcomes []cluster.Outcome
	// WorkingSCC is the SCC as of the last persisted adjustment
	WorkingSCC *unstructured.Unstructured
	// Applied lists every adjustment that changed the working SCC
	Applied []oracle.Adjustment
	Reason  string
}

// Controller owns one adjustment run at a time. The working SCC is never
// shared across concurrent runs for the same SCC name.
type Controller struct {
	cluster       ClusterAPI
	oracle        oracle.Oracle
	maxIterations int
	namespace     string
	log           *logger.Logger
}

// Option configures a Controller
type Option func(*Controller)

// WithMaxIterations caps the number of deploy attempts per run
func WithMaxIterations(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.maxIterations = n
		}
	}
}

// WithNamespace overrides the target namespace for every namespaced resource
func WithNamespace(ns string) Option {
	return func(c *Controller) { c.namespace = ns }
}

// New builds a controller
func New(clusterAPI ClusterAPI, o oracle.Oracle, opts ...Option) *Controller {
	c := &Controller{
		cluster:       clusterAPI,
		oracle:        o,
		maxIterations: DefaultMaxIterations,
		log:           logger.GetLogger().WithFields(logger.Fields{Component: "adjustment-controller"}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes the adjustment loop for the requirement set, starting from the
// given SCC. The set's resources are deployed each iteration; the SCC evolves
// between iterations as oracle adjustments are accepted and persisted.
func (c *Controller) Run(ctx context.Context, set *requirements.Set, initialSCC *unstructured.Unstructured) (*Result, error) {
	result := &Result{
		State:      StateIdle,
		WorkingSCC: initialSCC.DeepCopy(),
	}

	for iteration := 1; iteration <= c.maxIterations; iteration++ {
		result.Iterations = iteration
		result.State = StateDeploying
		c.log.Info("Starting deploy iteration", logger.Fields{
			Iteration: iteration,
			SCCName:   result.WorkingSCC.GetName(),
		})

		result.Outcomes = c.cluster.DeployAll(ctx, set.Resources, c.namespace, false)

		result.State = StateEvaluating
		failure, verdict := evaluate(result.Outcomes)
		switch verdict {
		case verdictConverged:
			c.finish(result, StateConverged, "all resources deployed")
			return result, nil
		case verdictNotOurs:
			c.finish(result, StateAborted, "failures are not SCC-attributable")
			return result, nil
		}

		result.State = StateAdjusting
		analysis, err := c.oracle.Analyze(ctx, oracle.FailureContext{
			Failure:         failure,
			CurrentSCC:      result.WorkingSCC.Object,
			Requirements:    set.Requirements,
			ServiceAccounts: set.ServiceAccounts,
			Namespaces:      set.NamespaceList(),
			Summary:         set.Summarize(),
		})
		if err != nil || analysis == nil || !analysis.Success || len(analysis.SuggestedAdjustments) == 0 {
			if err != nil {
				c.log.Error("Oracle analysis failed", logger.Fields{Error: err})
			}
			c.finish(result, StateAborted, "oracle produced no adjustments")
			return result, nil
		}

		applied := ApplyAdjustments(result.WorkingSCC, analysis.SuggestedAdjustments, ConfidenceThreshold)
		result.Applied = append(result.Applied, applied...)
		c.log.Info("Applied oracle adjustments", logger.Fields{
			Iteration: iteration,
			Count:     len(applied),
			SCCName:   result.WorkingSCC.GetName(),
		})

		persisted, err := c.cluster.CreateSCC(ctx, result.WorkingSCC)
		if err != nil {
			c.log.Error("Failed to persist adjusted SCC", logger.Fields{
				SCCName: result.WorkingSCC.GetName(),
				Error:   err,
			})
			c.finish(result, StateAborted, "persisting adjusted SCC failed")
			return result, nil
		}
		result.WorkingSCC = persisted
	}

	c.finish(result, StateExhausted, "iteration cap reached without convergence")
	return result, nil
}

type verdict int

const (
	verdictConverged verdict = iota
	verdictAdjust
	verdictNotOurs
)

// evaluate partitions the outcome set. It returns the first SCC-attributable
// failure when adjustment should proceed.
func evaluate(outcomes []cluster.Outcome) (cluster.Outcome, verdict) {
	anyFailure := false
	for _, outcome := range outcomes {
		if outcome.Success {
			continue
		}
		anyFailure = true
		if outcome.SCCAttributable() {
			return outcome, verdictAdjust
		}
	}
	if !anyFailure {
		return cluster.Outcome{}, verdictConverged
	}
	return cluster.Outcome{}, verdictNotOurs
}

func (c *Controller) finish(result *Result, state State, reason string) {
	result.State = state
	result.Reason = reason
	metrics.ControllerIterations.Observe(float64(result.Iterations))
	metrics.ControllerRuns.WithLabelValues(string(state)).Inc()
	c.log.Info("Adjustment run finished", logger.Fields{
		Iteration: result.Iterations,
		Reason:    reason,
		Additional: map[string]interface{}{
			"state": string(state),
		},
	})
}

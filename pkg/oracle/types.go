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

// Package oracle defines the advisory interface the adjustment controller
// consults after an SCC-attributable deployment failure. The oracle is
// untrusted and non-deterministic: its output is structured advice with
// confidence scores, and the controller decides what to apply.
package oracle

import (
	"context"

	"github.com/kube-scc/scc-agent/pkg/cluster"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// Adjustment is one proposed SCC edit
type Adjustment struct {
	// Field is the dot-separated path into the SCC wire object
	Field          string      `json:"field"`
	CurrentValue   interface{} `json:"current_value"`
	SuggestedValue interface{} `json:"suggested_value"`
	Reason         string      `json:"reason"`
	Confidence     float64     `json:"confidence"`
	// Impact is one of low, medium, high
	Impact string `json:"impact"`
}

// Analysis is the oracle's structured response to a failure
type Analysis struct {
	Success               bool         `json:"success"`
	ErrorAnalysis         string       `json:"error_analysis"`
	RootCause             string       `json:"root_cause"`
	SuggestedAdjustments  []Adjustment `json:"suggested_adjustments"`
	AlternativeApproaches []string     `json:"alternative_approaches"`
	SecurityImplications  []string     `json:"security_implications"`
	ConfidenceScore       float64      `json:"confidence_score"`
}

// FailureContext is everything the oracle sees about one failed iteration
type FailureContext struct {
	Failure         cluster.Outcome                      `json:"deployment_failure"`
	CurrentSCC      map[string]interface{}               `json:"current_scc"`
	Requirements    []requirements.Requirement           `json:"security_requirements"`
	ServiceAccounts []requirements.ServiceAccountBinding `json:"service_accounts"`
	Namespaces      []string                             `json:"namespaces"`
	Summary         requirements.Summary                 `json:"manifest_summary"`
}

// Oracle proposes SCC adjustments for a deployment failure. Implementations
// must convert their own failures (network, parse, timeout) into an Analysis
// with Success=false and no adjustments rather than returning an error, so
// the controller's state machine only sees errors it cannot classify at all.
type Oracle interface {
	Analyze(ctx context.Context, fc FailureContext) (*Analysis, error)
}

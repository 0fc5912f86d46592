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

package oracle

import (
	"encoding/json"
	"fmt"
)

const systemPrompt = `You are an expert OpenShift Security Context Constraints (SCC) specialist. Your role is to analyze deployment failures and provide precise, actionable recommendations for SCC adjustments.

Key responsibilities:
1. Analyze deployment failures and identify root causes
2. Suggest minimal, secure SCC adjustments
3. Explain security implications of suggested changes
4. Provide alternative approaches when possible
5. Maintain principle of least privilege

Guidelines:
- Always prioritize security over convenience
- Suggest the most restrictive SCC that will allow deployment
- Explain the reasoning behind each suggestion
- Highlight potential security risks
- Provide confidence levels for recommendations`

const responseFormat = `{
  "error_analysis": "Detailed analysis of what went wrong",
  "root_cause": "Primary cause of the failure",
  "suggested_adjustments": [
    {
      "field": "SCC field to adjust",
      "current_value": "current value",
      "suggested_value": "suggested value",
      "reason": "why this change is needed",
      "confidence": 0.9,
      "impact": "high/medium/low"
    }
  ],
  "alternative_approaches": ["Alternative solution 1"],
  "security_implications": ["Security implication 1"],
  "confidence_score": 0.85
}`

// buildFailurePrompt renders the failure context as the user message
func buildFailurePrompt(fc FailureContext) (string, error) {
	currentSCC, err := json.MarshalIndent(fc.CurrentSCC, "", "  ")
	if err != nil {
		return "", err
	}
	reqs, err := json.MarshalIndent(fc.Requirements, "", "  ")
	if err != nil {
		return "", err
	}
	accounts, err := json.MarshalIndent(fc.ServiceAccounts, "", "  ")
	if err != nil {
		return "", err
	}
	summary, err := json.MarshalIndent(fc.Summary, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Analyze the following OpenShift deployment failure and provide recommendations:

DEPLOYMENT FAILURE:
- Resource: %s/%s
- Namespace: %s
- Error: %s
- SCC Issues: %v

CURRENT SCC:
%s

SECURITY REQUIREMENTS:
%s

SERVICE ACCOUNTS:
%s

MANIFEST SUMMARY:
%s

Please provide a detailed analysis in the following JSON format:
%s`,
		fc.Failure.ResourceKind, fc.Failure.ResourceName,
		fc.Failure.Namespace,
		fc.Failure.Error,
		fc.Failure.SCCSignatures,
		currentSCC, reqs, accounts, summary, responseFormat), nil
}

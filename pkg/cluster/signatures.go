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

import "regexp"

// sccSignatures is the catalog of admission-denial phrases that mark a deploy
// failure as SCC-attributable. The patterns are matched case-insensitively
// against the raw API error text; the matched pattern strings travel with the
// Outcome so the oracle sees which denials fired.
var sccSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)unable to validate against any security context constraint`),
	regexp.MustCompile(`(?i)unable to validate against any pod security policy`),
	regexp.MustCompile(`(?i)pods.*forbidden.*securitycontextconstraints`),
	regexp.MustCompile(`(?i)securitycontextconstraints.*not allowed`),
	regexp.MustCompile(`(?i)runAsUser.*not allowed`),
	regexp.MustCompile(`(?i)runAsGroup.*not allowed`),
	regexp.MustCompile(`(?i)privileged.*not allowed`),
	regexp.MustCompile(`(?i)hostNetwork.*not allowed`),
	regexp.MustCompile(`(?i)hostPID.*not allowed`),
	regexp.MustCompile(`(?i)hostIPC.*not allowed`),
	regexp.MustCompile(`(?i)capabilities.*not allowed`),
	regexp.MustCompile(`(?i)volume.*not allowed`),
}

// MatchSCCSignatures returns the signature patterns the error text matches.
// An empty result means the failure is not SCC-attributable.
func MatchSCCSignatures(errorText string) []string {
	if errorText == "" {
		return nil
	}
	var matched []string
	for _, sig := range sccSignatures {
		if sig.MatchString(errorText) {
			matched = append(matched, sig.String())
		}
	}
	return matched
}

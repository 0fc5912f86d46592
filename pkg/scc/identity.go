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
	"context"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// Discoverer traces a requirement set's service-account bindings to an SCC
// already granted in the cluster. A nil result with nil error means no SCC is
// bound to any of the accounts.
type Discoverer interface {
	FindSCCForServiceAccounts(ctx context.Context, accounts []requirements.ServiceAccountBinding) (*unstructured.Unstructured, error)
}

// GenerateOptions controls identity resolution for GenerateOrUpdate
type GenerateOptions struct {
	// Name is the operator-supplied SCC name. When set it always means a
	// fresh target, unless discovery finds an SCC already bound to the
	// workload's service accounts.
	Name string
	// ForceNew skips discovery and the embedded-manifest name, always
	// producing a fresh SCC.
	ForceNew bool
}

// GenerateName returns a fresh fallback SCC name. The original scheme derived
// the suffix from a path hash, which risks collisions; a random UUID fragment
// keeps the "generated-" naming contract without that hazard.
func GenerateName() string {
	return "generated-" + uuid.NewString()[:8]
}

// EmbeddedSCC returns the first SCC object found in the analyzed manifests,
// or nil.
func EmbeddedSCC(set *requirements.Set) *unstructured.Unstructured {
	for _, obj := range set.Resources {
		if obj.GetKind() == Kind {
			return obj
		}
	}
	return nil
}

// GenerateOrUpdate resolves the target SCC identity and produces the wire
// object. Identity precedence, strongest first:
//
//  1. An SCC discovered in the cluster via service-account bindings: its name
//     wins even over an explicit name, because identity continuity during
//     update beats operator intent expressed only as a label.
//  2. The explicit name: a fresh SCC with that name.
//  3. An SCC embedded in the manifest set: becomes the update target.
//  4. A generated fallback name.
//
// ForceNew short-circuits discovery and the embedded object, leaving only the
// explicit or generated name. The discoverer may be nil for offline runs.
func GenerateOrUpdate(ctx context.Context, set *requirements.Set, opts GenerateOptions, discoverer Discoverer) (*unstructured.Unstructured, error) {
	log := logger.GetLogger().WithFields(logger.Fields{Component: "scc-engine"})

	if !opts.ForceNew && discoverer != nil && len(set.ServiceAccounts) > 0 {
		existing, err := discoverer.FindSCCForServiceAccounts(ctx, set.ServiceAccounts)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			log.Info("Updating SCC discovered via service-account bindings", logger.Fields{
				SCCName: existing.GetName(),
			})
			metrics.SCCGenerated.WithLabelValues("update").Inc()
			return Update(FromUnstructured(existing), set).ToUnstructured(), nil
		}
	}

	if opts.Name != "" {
		log.Info("Generating SCC with explicit name", logger.Fields{SCCName: opts.Name})
		metrics.SCCGenerated.WithLabelValues("synthesize").Inc()
		return Synthesize(opts.Name, set).ToUnstructured(), nil
	}

	if !opts.ForceNew {
		if embedded := EmbeddedSCC(set); embedded != nil {
			log.Info("Updating SCC embedded in manifest set", logger.Fields{
				SCCName: embedded.GetName(),
			})
			metrics.SCCGenerated.WithLabelValues("update").Inc()
			return Update(FromUnstructured(embedded), set).ToUnstructured(), nil
		}
	}

	name := GenerateName()
	log.Info("Generating SCC with fallback name", logger.Fields{SCCName: name})
	metrics.SCCGenerated.WithLabelValues("synthesize").Inc()
	return Synthesize(name, set).ToUnstructured(), nil
}

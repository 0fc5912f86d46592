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

// Package manifest reads Kubernetes manifest files and turns them into
// requirement sets. Parsing degrades per document: a malformed document is
// recorded as an error on the set while the remaining documents are still
// analyzed.
package manifest

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// supportedKinds is the allowlist of resource kinds the analyzer understands.
// Documents of other kinds are kept in the set (they still deploy) but produce
// a warning so the operator knows they were not analyzed for privileges.
var supportedKinds = map[string]bool{
	"Pod":                        true,
	"Deployment":                 true,
	"ReplicaSet":                 true,
	"StatefulSet":                true,
	"DaemonSet":                  true,
	"Job":                        true,
	"CronJob":                    true,
	"DeploymentConfig":           true,
	"Service":                    true,
	"ConfigMap":                  true,
	"Secret":                     true,
	"ServiceAccount":             true,
	"Namespace":                  true,
	"Role":                       true,
	"RoleBinding":                true,
	"ClusterRole":                true,
	"ClusterRoleBinding":         true,
	"PersistentVolume":           true,
	"PersistentVolumeClaim":      true,
	"Ingress":                    true,
	"NetworkPolicy":              true,
	"Route":                      true,
	"SecurityContextConstraints": true,
}

// Parser turns manifest files into requirement sets
type Parser struct {
	log *logger.Logger
}

// NewParser returns a manifest parser
func NewParser() *Parser {
	return &Parser{
		log: logger.GetLogger().WithFields(logger.Fields{Component: "manifest-parser"}),
	}
}

// ParseFile analyzes a single manifest file, which may contain multiple YAML
// documents separated by "---".
func (p *Parser) ParseFile(path string) (*requirements.Set, error) {
	f, err := os.Open(path)
	if err != nil {
		metrics.ManifestsParsed.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	defer f.Close()

	set := p.parseStream(path, f)
	metrics.ManifestsParsed.WithLabelValues("success").Inc()
	return set, nil
}

// ParseDirectory analyzes every .yaml/.yml file directly under dir, in sorted
// order, and combines the results into one set.
func (p *Parser) ParseDirectory(dir string) (*requirements.Set, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading manifest directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no YAML manifests found in %s", dir)
	}

	combined := requirements.NewSet(dir)
	for _, file := range files {
		set, err := p.ParseFile(file)
		if err != nil {
			combined.Errors = append(combined.Errors, err.Error())
			continue
		}
		combined.Merge(set)
	}
	return combined, nil
}

// ParsePath analyzes a file or a directory of manifests
func (p *Parser) ParsePath(path string) (*requirements.Set, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return p.ParseDirectory(path)
	}
	return p.ParseFile(path)
}

// Combine merges multiple sets into one, preserving input order
func Combine(sets ...*requirements.Set) *requirements.Set {
	combined := requirements.NewSet("combined")
	for _, set := range sets {
		combined.Merge(set)
	}
	return combined
}

func (p *Parser) parseStream(source string, r io.Reader) *requirements.Set {
	set := requirements.NewSet(source)
	decoder := yaml.NewDecoder(r)

	for docIndex := 0; ; docIndex++ {
		var raw map[string]interface{}
		err := decoder.Decode(&raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			msg := fmt.Sprintf("%s: document %d: %v", source, docIndex, err)
			set.Errors = append(set.Errors, msg)
			p.log.Warn("Skipping malformed YAML document", logger.Fields{
				Path:  source,
				Error: err,
			})
			// yaml.Decoder cannot resume after a syntax error
			break
		}
		if len(raw) == 0 {
			continue
		}
		p.analyzeDocument(set, source, docIndex, normalizeMap(raw))
	}
	return set
}

func (p *Parser) analyzeDocument(set *requirements.Set, source string, docIndex int, doc map[string]interface{}) {
	obj := &unstructured.Unstructured{Object: doc}
	kind := obj.GetKind()
	if kind == "" {
		set.Warnings = append(set.Warnings, fmt.Sprintf("%s: document %d has no kind, skipping", source, docIndex))
		return
	}

	set.Resources = append(set.Resources, obj)
	set.AddNamespace(obj.GetNamespace())

	if !supportedKinds[kind] {
		set.Warnings = append(set.Warnings, fmt.Sprintf("%s: unsupported kind %s (%s), not analyzed", source, kind, obj.GetName()))
		return
	}

	if !requirements.IsWorkloadKind(kind) {
		return
	}

	reqs, err := requirements.Extract(obj)
	if err != nil {
		set.Warnings = append(set.Warnings, err.Error())
		return
	}
	set.Requirements = append(set.Requirements, reqs...)
	for _, req := range reqs {
		metrics.RequirementsExtracted.WithLabelValues(string(req.Kind), string(req.Severity())).Inc()
	}

	if sa := requirements.ServiceAccountName(obj); sa != "" {
		set.AddServiceAccount(sa, obj.GetNamespace(), kind+"/"+obj.GetName())
	}

	p.log.Debug("Analyzed workload", logger.Fields{
		ResourceKind: kind,
		ResourceName: obj.GetName(),
		Namespace:    obj.GetNamespace(),
		Count:        len(reqs),
	})
}

// EmbeddedPolicy holds the policy resources found inside a manifest set:
// pre-authored SCCs and the RBAC objects that grant their use.
type EmbeddedPolicy struct {
	SCCs                []*unstructured.Unstructured
	ClusterRoles        []*unstructured.Unstructured
	RoleBindings        []*unstructured.Unstructured
	ClusterRoleBindings []*unstructured.Unstructured
}

// ExtractPolicy pulls SCCs and RBAC objects out of a parsed set. The synthesis
// engine uses an embedded SCC's name as the target identity when the operator
// supplies none.
func ExtractPolicy(set *requirements.Set) EmbeddedPolicy {
	var policy EmbeddedPolicy
	for _, obj := range set.Resources {
		switch obj.GetKind() {
		case "SecurityContextConstraints":
			policy.SCCs = append(policy.SCCs, obj)
		case "ClusterRole":
			policy.ClusterRoles = append(policy.ClusterRoles, obj)
		case "RoleBinding":
			policy.RoleBindings = append(policy.RoleBindings, obj)
		case "ClusterRoleBinding":
			policy.ClusterRoleBindings = append(policy.ClusterRoleBindings, obj)
		}
	}
	return policy
}

// normalizeMap converts yaml.v3's map[string]interface{} trees into the shape
// unstructured helpers expect: nested maps keyed by string and numbers as
// int64 where they are integral.
func normalizeMap(in map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return normalizeMap(val)
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[fmt.Sprintf("%v", k)] = normalizeValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = normalizeValue(item)
		}
		return out
	case int:
		return int64(val)
	default:
		return v
	}
}

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

package requirements

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// Kind identifies the type of privilege a workload was observed to need.
type Kind string

const (
	KindPrivileged         Kind = "privileged"
	KindRootUser           Kind = "root_user"
	KindHostNetwork        Kind = "host_network"
	KindHostPID            Kind = "host_pid"
	KindHostIPC            Kind = "host_ipc"
	KindHostPath           Kind = "host_path"
	KindCapabilities       Kind = "capabilities"
	KindSELinux            Kind = "selinux"
	KindFSGroup            Kind = "fs_group"
	KindSupplementalGroups Kind = "supplemental_groups"
	KindSeccomp            Kind = "seccomp"
	KindAppArmor           Kind = "apparmor"
	KindVolumes            Kind = "volumes"
	KindPorts              Kind = "ports"
	KindResourceLimits     Kind = "resource_limits"
)

// Severity classifies how much privilege a requirement represents.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
)

var kindSeverity = map[Kind]Severity{
	KindPrivileged:   SeverityCritical,
	KindHostNetwork:  SeverityCritical,
	KindHostPID:      SeverityCritical,
	KindHostIPC:      SeverityCritical,
	KindRootUser:     SeverityHigh,
	KindHostPath:     SeverityHigh,
	KindCapabilities: SeverityHigh,
}

// Severity returns the severity for this requirement kind. Severity is a
// function of the kind alone and cannot be set per requirement.
func (k Kind) Severity() Severity {
	if s, ok := kindSeverity[k]; ok {
		return s
	}
	return SeverityMedium
}

// Origin records where in a manifest a requirement was observed.
type Origin struct {
	ResourceKind string `json:"resourceKind"`
	ResourceName string `json:"resourceName"`
	Namespace    string `json:"namespace"`
	// Context narrows the origin within the resource, e.g. "container/app",
	// "volume/data" or "pod".
	Context string `json:"context"`
}

func (o Origin) String() string {
	return fmt.Sprintf("%s/%s %s", o.ResourceKind, o.ResourceName, o.Context)
}

// Requirement is one extracted privilege signal.
type Requirement struct {
	Kind   Kind        `json:"kind"`
	Value  interface{} `json:"value"`
	Origin Origin      `json:"origin"`
}

// Severity returns the derived severity of the requirement.
func (r Requirement) Severity() Severity {
	return r.Kind.Severity()
}

// ServiceAccountBinding records a service account and the workloads that
// reference it. Identity is (name, namespace); Resources holds entries of the
// form "Kind/name".
type ServiceAccountBinding struct {
	Name      string   `json:"name"`
	Namespace string   `json:"namespace"`
	Resources []string `json:"resources"`
}

// Set is the result of analyzing one or more manifest sources. It is built
// once per analysis run and treated as immutable afterwards.
type Set struct {
	// Source identifies the manifest file or directory the set came from,
	// or "combined" for a merged set.
	Source string

	Resources       []*unstructured.Unstructured
	Requirements    []Requirement
	ServiceAccounts []ServiceAccountBinding
	Namespaces      map[string]struct{}

	Errors   []string
	Warnings []string
}

// NewSet returns an empty requirement set for the given source
func NewSet(source string) *Set {
	return &Set{
		Source:     source,
		Namespaces: map[string]struct{}{},
	}
}

// AddNamespace records a namespace seen in the manifest set
func (s *Set) AddNamespace(ns string) {
	if ns == "" {
		ns = "default"
	}
	s.Namespaces[ns] = struct{}{}
}

// NamespaceList returns the distinct namespaces in sorted order
func (s *Set) NamespaceList() []string {
	out := make([]string, 0, len(s.Namespaces))
	for ns := range s.Namespaces {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// AddServiceAccount records a service account reference, deduplicating by
// (name, namespace) and unioning the referencing resource lists.
func (s *Set) AddServiceAccount(name, namespace string, resources ...string) {
	if namespace == "" {
		namespace = "default"
	}
	for i := range s.ServiceAccounts {
		sa := &s.ServiceAccounts[i]
		if sa.Name == name && sa.Namespace == namespace {
			for _, res := range resources {
				if !containsString(sa.Resources, res) {
					sa.Resources = append(sa.Resources, res)
				}
			}
			return
		}
	}
	s.ServiceAccounts = append(s.ServiceAccounts, ServiceAccountBinding{
		Name:      name,
		Namespace: namespace,
		Resources: append([]string(nil), resources...),
	})
}

// Kinds returns the distinct requirement kinds present in the set
func (s *Set) Kinds() map[Kind]bool {
	out := map[Kind]bool{}
	for _, req := range s.Requirements {
		out[req.Kind] = true
	}
	return out
}

// SeverityCounts returns a histogram of requirement severities
func (s *Set) SeverityCounts() map[Severity]int {
	out := map[Severity]int{}
	for _, req := range s.Requirements {
		out[req.Severity()]++
	}
	return out
}

// Merge folds another set into this one. Namespaces and service-account
// bindings are unioned; requirements, resources, errors and warnings are
// appended in order.
func (s *Set) Merge(other *Set) {
	if other == nil {
		return
	}
	s.Resources = append(s.Resources, other.Resources...)
	s.Requirements = append(s.Requirements, other.Requirements...)
	for ns := range other.Namespaces {
		s.AddNamespace(ns)
	}
	for _, sa := range other.ServiceAccounts {
		s.AddServiceAccount(sa.Name, sa.Namespace, sa.Resources...)
	}
	s.Errors = append(s.Errors, other.Errors...)
	s.Warnings = append(s.Warnings, other.Warnings...)
}

// Summary holds aggregate counts for reporting and for the oracle context
type Summary struct {
	TotalResources    int              `json:"totalResources"`
	TotalRequirements int              `json:"totalRequirements"`
	ServiceAccounts   int              `json:"serviceAccounts"`
	Namespaces        []string         `json:"namespaces"`
	RequirementCounts map[Kind]int     `json:"requirementCounts"`
	SeverityCounts    map[Severity]int `json:"severityCounts"`
	Errors            int              `json:"errors"`
	Warnings          int              `json:"warnings"`
}

// Summarize computes aggregate counts over the set
func (s *Set) Summarize() Summary {
	reqCounts := map[Kind]int{}
	for _, req := range s.Requirements {
		reqCounts[req.Kind]++
	}
	return Summary{
		TotalResources:    len(s.Resources),
		TotalRequirements: len(s.Requirements),
		ServiceAccounts:   len(s.ServiceAccounts),
		Namespaces:        s.NamespaceList(),
		RequirementCounts: reqCounts,
		SeverityCounts:    s.SeverityCounts(),
		Errors:            len(s.Errors),
		Warnings:          len(s.Warnings),
	}
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

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
	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// rule folds one requirement into the model. Every rule must be idempotent
// and commutative with the other rules: applying the same requirement twice,
// or a set in any order, yields the same model. Set fields therefore only
// ever union, and policy fields only ever widen to RunAsAny.
type rule func(*Model, requirements.Requirement)

var rules = map[requirements.Kind]rule{
	requirements.KindPrivileged: func(m *Model, _ requirements.Requirement) {
		m.AllowPrivilegedContainer = true
		m.RunAsUser = RunAsAny
		m.AllowHostDirVolumePlugin = true
		m.addVolumes("hostPath", "flexVolume")
	},
	requirements.KindRootUser: func(m *Model, _ requirements.Requirement) {
		m.RunAsUser = RunAsAny
	},
	requirements.KindHostNetwork: func(m *Model, _ requirements.Requirement) {
		m.AllowHostNetwork = true
		m.AllowHostPorts = true
	},
	requirements.KindHostPID: func(m *Model, _ requirements.Requirement) {
		m.AllowHostPID = true
	},
	requirements.KindHostIPC: func(m *Model, _ requirements.Requirement) {
		m.AllowHostIPC = true
	},
	requirements.KindHostPath: func(m *Model, req requirements.Requirement) {
		m.addVolumes("hostPath")
		m.AllowHostDirVolumePlugin = true
		if path, ok := req.Value.(string); ok && path != "" {
			m.addHostPath(HostPath{PathPrefix: path})
		}
	},
	requirements.KindCapabilities: func(m *Model, req requirements.Requirement) {
		for _, cap := range stringValues(req.Value) {
			m.allowCapability(cap)
		}
	},
	requirements.KindFSGroup: func(m *Model, _ requirements.Requirement) {
		m.FSGroup = RunAsAny
	},
	requirements.KindSupplementalGroups: func(m *Model, _ requirements.Requirement) {
		m.SupplementalGroups = RunAsAny
	},
	requirements.KindSELinux: func(m *Model, _ requirements.Requirement) {
		m.SELinuxContext = RunAsAny
	},
	requirements.KindVolumes: func(m *Model, req requirements.Requirement) {
		m.addVolumes(stringValues(req.Value)...)
	},
	// seccomp, apparmor, ports and resource_limits carry no SCC field today;
	// they still feed severity reporting and the oracle context.
}

// Apply folds one requirement into the model. Unknown kinds are a no-op.
func (m *Model) Apply(req requirements.Requirement) {
	if r, ok := rules[req.Kind]; ok {
		r(m, req)
	}
}

// ApplyAll folds a whole requirement set into the model
func (m *Model) ApplyAll(set *requirements.Set) {
	for _, req := range set.Requirements {
		m.Apply(req)
	}
}

// Synthesize builds a fresh SCC model for the requirement set, starting from
// the all-restrictive defaults.
func Synthesize(name string, set *requirements.Set) *Model {
	m := New(name)
	m.Description = "Generated SCC for manifests from " + set.Source
	m.ApplyAll(set)
	return m
}

// Update folds a requirement set into an existing SCC. Previously granted
// permissions are never revoked, only added to.
func Update(existing *Model, set *requirements.Set) *Model {
	existing.ApplyAll(set)
	return existing
}

// allowCapability adds a capability to the allowed set and drops it from the
// required-drop set, keeping the two disjoint.
func (m *Model) allowCapability(cap string) {
	if cap == "" {
		return
	}
	if !contains(m.AllowedCapabilities, cap) {
		m.AllowedCapabilities = append(m.AllowedCapabilities, cap)
	}
	m.RequiredDropCapabilities = remove(m.RequiredDropCapabilities, cap)
}

func (m *Model) addVolumes(types ...string) {
	for _, t := range types {
		if t != "" && !contains(m.Volumes, t) {
			m.Volumes = append(m.Volumes, t)
		}
	}
}

func (m *Model) addHostPath(hp HostPath) {
	for _, existing := range m.AllowedHostPaths {
		if existing == hp {
			return
		}
	}
	m.AllowedHostPaths = append(m.AllowedHostPaths, hp)
}

// stringValues normalizes a requirement payload that may be a string, a
// []string, or a YAML-decoded []interface{}.
func stringValues(v interface{}) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, item := range list {
		if item != s {
			out = append(out, item)
		}
	}
	return out
}

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

// Package scc synthesizes OpenShift SecurityContextConstraints from extracted
// privilege requirements. The Model is richer than the wire object: it holds
// every field with its synthesis default so requirement folding and updates of
// existing SCCs go through the same rule table.
package scc

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	// APIVersion is the SCC API group/version
	APIVersion = "security.openshift.io/v1"
	// Kind is the SCC resource kind
	Kind = "SecurityContextConstraints"

	// GeneratedBy is stamped into the generated-by annotation of every
	// object this package produces
	GeneratedBy = "scc-agent"
)

// Policy is a strategy for a typed SCC field (runAsUser, fsGroup, ...)
type Policy string

const (
	MustRunAs        Policy = "MustRunAs"
	MustRunAsNonRoot Policy = "MustRunAsNonRoot"
	MustRunAsRange   Policy = "MustRunAsRange"
	RunAsAny         Policy = "RunAsAny"
)

// HostPath is one allowed host-path prefix entry
type HostPath struct {
	PathPrefix string
	ReadOnly   bool
}

// Model is the mutable SCC configuration under synthesis. It is created once
// per synthesis or update call, mutated while requirements fold in, then
// frozen into the wire form by ToUnstructured.
type Model struct {
	Name        string
	Description string
	Priority    int64

	AllowPrivilegedContainer bool
	AllowHostNetwork         bool
	AllowHostPID             bool
	AllowHostIPC             bool
	AllowHostPorts           bool
	AllowHostDirVolumePlugin bool
	ReadOnlyRootFilesystem   bool

	RunAsUser          Policy
	RunAsGroup         Policy
	SELinuxContext     Policy
	FSGroup            Policy
	SupplementalGroups Policy

	AllowedCapabilities      []string
	RequiredDropCapabilities []string
	DefaultAddCapabilities   []string
	AllowedUnsafeSysctls     []string
	ForbiddenSysctls         []string
	Volumes                  []string
	AllowedFlexVolumes       []string
	AllowedHostPaths         []HostPath
	SeccompProfiles          []string
	Users                    []string
	Groups                   []string

	// Preserved identifiers when the model was built from an existing SCC.
	// They pass through serialization unchanged so an update targets the
	// same object the API server already knows.
	ResourceVersion   string
	UID               string
	CreationTimestamp string
	// Annotations carried over from an existing SCC; provenance stamps are
	// layered on top at serialization time.
	Annotations map[string]string
}

// baseVolumes is the restrictive default volume set
var baseVolumes = []string{
	"configMap", "downwardAPI", "emptyDir",
	"persistentVolumeClaim", "projected", "secret",
}

// New returns an all-restrictive default model: non-root users, all
// capabilities dropped, no host access, base volume set only.
func New(name string) *Model {
	return &Model{
		Name:     name,
		Priority: 10,

		RunAsUser:          MustRunAsNonRoot,
		RunAsGroup:         MustRunAs,
		SELinuxContext:     MustRunAs,
		FSGroup:            MustRunAs,
		SupplementalGroups: MustRunAs,

		RequiredDropCapabilities: []string{"ALL"},
		Volumes:                  append([]string(nil), baseVolumes...),
		SeccompProfiles:          []string{"runtime/default"},
	}
}

// FromUnstructured rebuilds a model from an existing SCC's wire form. Missing
// fields take the synthesis defaults so an update against a sparse object is
// still total. Immutable identifiers and annotations are preserved.
func FromUnstructured(obj *unstructured.Unstructured) *Model {
	m := New(obj.GetName())

	if desc, found, _ := unstructured.NestedString(obj.Object, "metadata", "annotations", "kubernetes.io/description"); found {
		m.Description = desc
	}
	if priority, found, _ := unstructured.NestedInt64(obj.Object, "priority"); found {
		m.Priority = priority
	}

	m.AllowPrivilegedContainer = nestedBool(obj, "allowPrivilegedContainer")
	m.AllowHostNetwork = nestedBool(obj, "allowHostNetwork")
	m.AllowHostPID = nestedBool(obj, "allowHostPID")
	m.AllowHostIPC = nestedBool(obj, "allowHostIPC")
	m.AllowHostPorts = nestedBool(obj, "allowHostPorts")
	m.AllowHostDirVolumePlugin = nestedBool(obj, "allowHostDirVolumePlugin")
	m.ReadOnlyRootFilesystem = nestedBool(obj, "readOnlyRootFilesystem")

	m.RunAsUser = nestedPolicy(obj, "runAsUser", m.RunAsUser)
	m.RunAsGroup = nestedPolicy(obj, "runAsGroup", m.RunAsGroup)
	m.SELinuxContext = nestedPolicy(obj, "seLinuxContext", m.SELinuxContext)
	m.FSGroup = nestedPolicy(obj, "fsGroup", m.FSGroup)
	m.SupplementalGroups = nestedPolicy(obj, "supplementalGroups", m.SupplementalGroups)

	if caps, found, _ := unstructured.NestedStringSlice(obj.Object, "allowedCapabilities"); found {
		m.AllowedCapabilities = caps
	}
	if drops, found, _ := unstructured.NestedStringSlice(obj.Object, "requiredDropCapabilities"); found {
		m.RequiredDropCapabilities = drops
	}
	if adds, found, _ := unstructured.NestedStringSlice(obj.Object, "defaultAddCapabilities"); found {
		m.DefaultAddCapabilities = adds
	}
	if sysctls, found, _ := unstructured.NestedStringSlice(obj.Object, "allowedUnsafeSysctls"); found {
		m.AllowedUnsafeSysctls = sysctls
	}
	if sysctls, found, _ := unstructured.NestedStringSlice(obj.Object, "forbiddenSysctls"); found {
		m.ForbiddenSysctls = sysctls
	}
	if volumes, found, _ := unstructured.NestedStringSlice(obj.Object, "volumes"); found {
		m.Volumes = volumes
	}
	if profiles, found, _ := unstructured.NestedStringSlice(obj.Object, "seccompProfiles"); found {
		m.SeccompProfiles = profiles
	}
	if users, found, _ := unstructured.NestedStringSlice(obj.Object, "users"); found {
		m.Users = users
	}
	if groups, found, _ := unstructured.NestedStringSlice(obj.Object, "groups"); found {
		m.Groups = groups
	}

	if flex, found, _ := unstructured.NestedSlice(obj.Object, "allowedFlexVolumes"); found {
		for _, f := range flex {
			entry, ok := f.(map[string]interface{})
			if !ok {
				continue
			}
			if driver, ok := entry["driver"].(string); ok {
				m.AllowedFlexVolumes = append(m.AllowedFlexVolumes, driver)
			}
		}
	}
	if paths, found, _ := unstructured.NestedSlice(obj.Object, "allowedHostPaths"); found {
		for _, p := range paths {
			entry, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			hp := HostPath{}
			hp.PathPrefix, _ = entry["pathPrefix"].(string)
			hp.ReadOnly, _ = entry["readOnly"].(bool)
			m.AllowedHostPaths = append(m.AllowedHostPaths, hp)
		}
	}

	m.ResourceVersion = obj.GetResourceVersion()
	m.UID = string(obj.GetUID())
	if ts, found, _ := unstructured.NestedString(obj.Object, "metadata", "creationTimestamp"); found {
		m.CreationTimestamp = ts
	}
	if annotations := obj.GetAnnotations(); len(annotations) > 0 {
		m.Annotations = annotations
	}

	return m
}

// IsUpdate reports whether the model was built from an existing SCC
func (m *Model) IsUpdate() bool {
	return m.ResourceVersion != "" || m.UID != ""
}

func nestedBool(obj *unstructured.Unstructured, field string) bool {
	v, _, _ := unstructured.NestedBool(obj.Object, field)
	return v
}

func nestedPolicy(obj *unstructured.Unstructured, field string, def Policy) Policy {
	if t, found, _ := unstructured.NestedString(obj.Object, field, "type"); found && t != "" {
		return Policy(t)
	}
	return def
}

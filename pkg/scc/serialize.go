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
	"time"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// now is swapped in tests for deterministic annotations
var now = time.Now

// ToUnstructured freezes the model into the SCC wire form. Empty list fields
// are omitted; boolean flags are always present. Preserved identifiers from an
// update pass through unchanged, and provenance annotations record whether the
// object was generated fresh or updated.
func (m *Model) ToUnstructured() *unstructured.Unstructured {
	annotations := map[string]interface{}{}
	for k, v := range m.Annotations {
		annotations[k] = v
	}
	if m.Description != "" {
		annotations["kubernetes.io/description"] = m.Description
	}
	timestamp := now().UTC().Format(time.RFC3339)
	if m.IsUpdate() {
		annotations["updated-by"] = GeneratedBy
		annotations["updated-at"] = timestamp
	} else {
		annotations["generated-by"] = GeneratedBy
		annotations["generated-at"] = timestamp
	}

	metadata := map[string]interface{}{
		"name":        m.Name,
		"annotations": annotations,
	}
	if m.ResourceVersion != "" {
		metadata["resourceVersion"] = m.ResourceVersion
	}
	if m.UID != "" {
		metadata["uid"] = m.UID
	}
	if m.CreationTimestamp != "" {
		metadata["creationTimestamp"] = m.CreationTimestamp
	}

	obj := map[string]interface{}{
		"apiVersion": APIVersion,
		"kind":       Kind,
		"metadata":   metadata,

		"priority": m.Priority,

		"allowPrivilegedContainer": m.AllowPrivilegedContainer,
		"allowHostNetwork":         m.AllowHostNetwork,
		"allowHostPID":             m.AllowHostPID,
		"allowHostIPC":             m.AllowHostIPC,
		"allowHostPorts":           m.AllowHostPorts,
		"allowHostDirVolumePlugin": m.AllowHostDirVolumePlugin,
		"readOnlyRootFilesystem":   m.ReadOnlyRootFilesystem,

		"runAsUser":          map[string]interface{}{"type": string(m.RunAsUser)},
		"runAsGroup":         map[string]interface{}{"type": string(m.RunAsGroup)},
		"seLinuxContext":     map[string]interface{}{"type": string(m.SELinuxContext)},
		"fsGroup":            map[string]interface{}{"type": string(m.FSGroup)},
		"supplementalGroups": map[string]interface{}{"type": string(m.SupplementalGroups)},
	}

	setStringList(obj, "allowedCapabilities", m.AllowedCapabilities)
	setStringList(obj, "requiredDropCapabilities", m.RequiredDropCapabilities)
	setStringList(obj, "defaultAddCapabilities", m.DefaultAddCapabilities)
	setStringList(obj, "allowedUnsafeSysctls", m.AllowedUnsafeSysctls)
	setStringList(obj, "forbiddenSysctls", m.ForbiddenSysctls)
	setStringList(obj, "volumes", m.Volumes)
	setStringList(obj, "seccompProfiles", m.SeccompProfiles)
	setStringList(obj, "users", m.Users)
	setStringList(obj, "groups", m.Groups)

	if len(m.AllowedFlexVolumes) > 0 {
		flex := make([]interface{}, 0, len(m.AllowedFlexVolumes))
		for _, driver := range m.AllowedFlexVolumes {
			flex = append(flex, map[string]interface{}{"driver": driver})
		}
		obj["allowedFlexVolumes"] = flex
	}
	if len(m.AllowedHostPaths) > 0 {
		paths := make([]interface{}, 0, len(m.AllowedHostPaths))
		for _, hp := range m.AllowedHostPaths {
			paths = append(paths, map[string]interface{}{
				"pathPrefix": hp.PathPrefix,
				"readOnly":   hp.ReadOnly,
			})
		}
		obj["allowedHostPaths"] = paths
	}

	return &unstructured.Unstructured{Object: obj}
}

func setStringList(obj map[string]interface{}, field string, values []string) {
	if len(values) == 0 {
		return
	}
	list := make([]interface{}, 0, len(values))
	for _, v := range values {
		list = append(list, v)
	}
	obj[field] = list
}

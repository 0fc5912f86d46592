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
	"sort"

	"github.com/kube-scc/scc-agent/pkg/requirements"
)

// templates is the catalog of built-in OpenShift SCC baselines, keyed by
// name. The bodies mirror the cluster defaults; immutable after init.
var templates = map[string]map[string]interface{}{
	"privileged": {
		"allowHostDirVolumePlugin": true,
		"allowHostIPC":             true,
		"allowHostNetwork":         true,
		"allowHostPID":             true,
		"allowHostPorts":           true,
		"allowPrivilegedContainer": true,
		"allowedCapabilities":      []interface{}{"*"},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "RunAsAny"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{},
		"runAsUser":                map[string]interface{}{"type": "RunAsAny"},
		"seLinuxContext":           map[string]interface{}{"type": "RunAsAny"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes":                  []interface{}{"*"},
	},
	"hostaccess": {
		"allowHostDirVolumePlugin": true,
		"allowHostIPC":             true,
		"allowHostNetwork":         true,
		"allowHostPID":             true,
		"allowHostPorts":           true,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "MustRunAs"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"KILL", "MKNOD", "SETUID", "SETGID"},
		"runAsUser":                map[string]interface{}{"type": "MustRunAsRange"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir", "hostPath",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
	"hostmount-anyuid": {
		"allowHostDirVolumePlugin": true,
		"allowHostIPC":             false,
		"allowHostNetwork":         false,
		"allowHostPID":             false,
		"allowHostPorts":           false,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "RunAsAny"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"MKNOD"},
		"runAsUser":                map[string]interface{}{"type": "RunAsAny"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir", "hostPath",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
	"hostnetwork": {
		"allowHostDirVolumePlugin": false,
		"allowHostIPC":             false,
		"allowHostNetwork":         true,
		"allowHostPID":             false,
		"allowHostPorts":           true,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "MustRunAs"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"KILL", "MKNOD", "SETUID", "SETGID"},
		"runAsUser":                map[string]interface{}{"type": "MustRunAsRange"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "MustRunAs"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
	"anyuid": {
		"allowHostDirVolumePlugin": false,
		"allowHostIPC":             false,
		"allowHostNetwork":         false,
		"allowHostPID":             false,
		"allowHostPorts":           false,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "RunAsAny"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"MKNOD"},
		"runAsUser":                map[string]interface{}{"type": "RunAsAny"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
	"nonroot": {
		"allowHostDirVolumePlugin": false,
		"allowHostIPC":             false,
		"allowHostNetwork":         false,
		"allowHostPID":             false,
		"allowHostPorts":           false,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "RunAsAny"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"KILL", "MKNOD", "SETUID", "SETGID"},
		"runAsUser":                map[string]interface{}{"type": "MustRunAsNonRoot"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
	"restricted": {
		"allowHostDirVolumePlugin": false,
		"allowHostIPC":             false,
		"allowHostNetwork":         false,
		"allowHostPID":             false,
		"allowHostPorts":           false,
		"allowPrivilegedContainer": false,
		"allowedCapabilities":      []interface{}{},
		"defaultAddCapabilities":   []interface{}{},
		"fsGroup":                  map[string]interface{}{"type": "MustRunAs"},
		"priority":                 int64(10),
		"readOnlyRootFilesystem":   false,
		"requiredDropCapabilities": []interface{}{"KILL", "MKNOD", "SETUID", "SETGID"},
		"runAsUser":                map[string]interface{}{"type": "MustRunAsRange"},
		"seLinuxContext":           map[string]interface{}{"type": "MustRunAs"},
		"supplementalGroups":       map[string]interface{}{"type": "RunAsAny"},
		"volumes": []interface{}{
			"configMap", "downwardAPI", "emptyDir",
			"persistentVolumeClaim", "projected", "secret",
		},
	},
}

// Template returns a copy of the named baseline template body, or nil
func Template(name string) map[string]interface{} {
	body, ok := templates[name]
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(body))
	for k, v := range body {
		out[k] = v
	}
	return out
}

// TemplateNames returns the catalog names in sorted order
func TemplateNames() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SuggestTemplate maps a requirement set to the least permissive baseline SCC
// that still covers it. First match wins, most permissive predicates first.
func SuggestTemplate(set *requirements.Set) string {
	if len(set.Requirements) == 0 {
		return "restricted"
	}

	kinds := set.Kinds()
	severities := set.SeverityCounts()

	switch {
	case kinds[requirements.KindPrivileged] ||
		kinds[requirements.KindHostNetwork] ||
		kinds[requirements.KindHostPID] ||
		kinds[requirements.KindHostIPC]:
		return "privileged"
	case kinds[requirements.KindHostPath] && kinds[requirements.KindRootUser]:
		return "hostmount-anyuid"
	case kinds[requirements.KindHostPath]:
		return "hostaccess"
	case kinds[requirements.KindRootUser]:
		return "anyuid"
	case severities[requirements.SeverityHigh] > 0 || severities[requirements.SeverityCritical] > 0:
		return "nonroot"
	}
	return "restricted"
}

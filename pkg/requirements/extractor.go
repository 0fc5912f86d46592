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

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// workloadKinds are the resource kinds that embed a pod template
var workloadKinds = map[string]bool{
	"Pod":              true,
	"Deployment":       true,
	"ReplicaSet":       true,
	"StatefulSet":      true,
	"DaemonSet":        true,
	"Job":              true,
	"CronJob":          true,
	"DeploymentConfig": true,
}

// IsWorkloadKind reports whether the kind embeds a pod template
func IsWorkloadKind(kind string) bool {
	return workloadKinds[kind]
}

// Extract scans a workload resource's pod template and returns the privilege
// requirements it declares. Extraction is a pure function of the object: it
// never deduplicates (that is the merge engine's job) and never mutates its
// input. Non-workload kinds return a warning error the caller records without
// aborting the batch.
func Extract(obj *unstructured.Unstructured) ([]Requirement, error) {
	kind := obj.GetKind()
	if !IsWorkloadKind(kind) {
		return nil, fmt.Errorf("unsupported workload kind: %s", kind)
	}

	origin := Origin{
		ResourceKind: kind,
		ResourceName: obj.GetName(),
		Namespace:    obj.GetNamespace(),
	}
	if origin.ResourceName == "" {
		origin.ResourceName = "unknown"
	}
	if origin.Namespace == "" {
		origin.Namespace = "default"
	}

	podSpec, found := podSpec(obj)
	if !found {
		return nil, nil
	}

	var reqs []Requirement

	podSecCtx, _, _ := unstructured.NestedMap(podSpec, "securityContext")

	// Container-level signals: regular containers first, then init containers
	containers := containerList(podSpec, "containers")
	containers = append(containers, containerList(podSpec, "initContainers")...)
	for _, container := range containers {
		name, _, _ := unstructured.NestedString(container, "name")
		if name == "" {
			name = "unknown"
		}
		containerOrigin := origin
		containerOrigin.Context = "container/" + name

		secCtx, _, _ := unstructured.NestedMap(container, "securityContext")

		if privileged, _, _ := unstructured.NestedBool(secCtx, "privileged"); privileged {
			reqs = append(reqs, Requirement{Kind: KindPrivileged, Value: true, Origin: containerOrigin})
		}

		// Container-level runAsUser overrides the pod-level setting
		runAsUser, found := nestedInt(secCtx, "runAsUser")
		if !found {
			runAsUser, found = nestedInt(podSecCtx, "runAsUser")
		}
		if found && runAsUser == 0 {
			reqs = append(reqs, Requirement{Kind: KindRootUser, Value: int64(0), Origin: containerOrigin})
		}

		if added, _, _ := unstructured.NestedStringSlice(secCtx, "capabilities", "add"); len(added) > 0 {
			reqs = append(reqs, Requirement{Kind: KindCapabilities, Value: added, Origin: containerOrigin})
		}
	}

	// Pod-level signals
	podOrigin := origin
	podOrigin.Context = "pod"

	if hostNetwork, _, _ := unstructured.NestedBool(podSpec, "hostNetwork"); hostNetwork {
		reqs = append(reqs, Requirement{Kind: KindHostNetwork, Value: true, Origin: podOrigin})
	}
	if hostPID, _, _ := unstructured.NestedBool(podSpec, "hostPID"); hostPID {
		reqs = append(reqs, Requirement{Kind: KindHostPID, Value: true, Origin: podOrigin})
	}
	if hostIPC, _, _ := unstructured.NestedBool(podSpec, "hostIPC"); hostIPC {
		reqs = append(reqs, Requirement{Kind: KindHostIPC, Value: true, Origin: podOrigin})
	}

	volumes, _, _ := unstructured.NestedSlice(podSpec, "volumes")
	for _, v := range volumes {
		volume, ok := v.(map[string]interface{})
		if !ok {
			continue
		}
		hostPath, found, _ := unstructured.NestedMap(volume, "hostPath")
		if !found {
			continue
		}
		volumeName, _ := volume["name"].(string)
		if volumeName == "" {
			volumeName = "unknown"
		}
		volumeOrigin := origin
		volumeOrigin.Context = "volume/" + volumeName
		path, _ := hostPath["path"].(string)
		reqs = append(reqs, Requirement{Kind: KindHostPath, Value: path, Origin: volumeOrigin})
	}

	if fsGroup, found := nestedInt(podSecCtx, "fsGroup"); found {
		reqs = append(reqs, Requirement{Kind: KindFSGroup, Value: fsGroup, Origin: podOrigin})
	}
	if groups, found, _ := unstructured.NestedSlice(podSecCtx, "supplementalGroups"); found && len(groups) > 0 {
		reqs = append(reqs, Requirement{Kind: KindSupplementalGroups, Value: groups, Origin: podOrigin})
	}
	if seLinux, found, _ := unstructured.NestedMap(podSecCtx, "seLinuxOptions"); found && len(seLinux) > 0 {
		reqs = append(reqs, Requirement{Kind: KindSELinux, Value: seLinux, Origin: podOrigin})
	}

	return reqs, nil
}

// ServiceAccountName returns the service account referenced by the workload's
// pod template, or "" when none is set.
func ServiceAccountName(obj *unstructured.Unstructured) string {
	podSpec, found := podSpec(obj)
	if !found {
		return ""
	}
	if name, _, _ := unstructured.NestedString(podSpec, "serviceAccountName"); name != "" {
		return name
	}
	// Deprecated alias still seen in older manifests
	name, _, _ := unstructured.NestedString(podSpec, "serviceAccount")
	return name
}

// podSpec locates the pod template spec for a workload kind. Pods carry it
// directly, most controllers nest it under spec.template.spec, and CronJobs
// nest it one level further under the job template.
func podSpec(obj *unstructured.Unstructured) (map[string]interface{}, bool) {
	var path []string
	switch obj.GetKind() {
	case "Pod":
		path = []string{"spec"}
	case "CronJob":
		path = []string{"spec", "jobTemplate", "spec", "template", "spec"}
	case "Deployment", "ReplicaSet", "StatefulSet", "DaemonSet", "Job", "DeploymentConfig":
		path = []string{"spec", "template", "spec"}
	default:
		return nil, false
	}
	spec, found, err := unstructured.NestedMap(obj.Object, path...)
	if err != nil || !found {
		return nil, false
	}
	return spec, true
}

func containerList(podSpec map[string]interface{}, field string) []map[string]interface{} {
	items, _, _ := unstructured.NestedSlice(podSpec, field)
	out := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		if container, ok := item.(map[string]interface{}); ok {
			out = append(out, container)
		}
	}
	return out
}

// nestedInt reads an integer field that YAML decoding may have produced as
// int64 or float64
func nestedInt(m map[string]interface{}, field string) (int64, bool) {
	if m == nil {
		return 0, false
	}
	switch v := m[field].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	}
	return 0, false
}

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
	"testing"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

func podObject(spec map[string]interface{}) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Pod",
		"metadata": map[string]interface{}{
			"name":      "test-pod",
			"namespace": "test-ns",
		},
		"spec": spec,
	}}
}

func kindsOf(reqs []Requirement) []Kind {
	out := make([]Kind, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Kind)
	}
	return out
}

func TestExtractPrivilegedContainer(t *testing.T) {
	obj := podObject(map[string]interface{}{
		"containers": []interface{}{
			map[string]interface{}{
				"name": "app",
				"securityContext": map[string]interface{}{
					"privileged": true,
				},
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Kind != KindPrivileged {
		t.Fatalf("expected one privileged requirement, got %v", kindsOf(reqs))
	}
	if reqs[0].Origin.Context != "container/app" {
		t.Errorf("origin context = %q", reqs[0].Origin.Context)
	}
}

func TestExtractRootUserContainerOverridesPod(t *testing.T) {
	// Pod level says root, container overrides to non-root: no requirement
	obj := podObject(map[string]interface{}{
		"securityContext": map[string]interface{}{
			"runAsUser": int64(0),
		},
		"containers": []interface{}{
			map[string]interface{}{
				"name": "nonroot",
				"securityContext": map[string]interface{}{
					"runAsUser": int64(1000),
				},
			},
			map[string]interface{}{
				"name": "inherits",
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Kind != KindRootUser {
		t.Fatalf("expected one root_user requirement, got %v", kindsOf(reqs))
	}
	if reqs[0].Origin.Context != "container/inherits" {
		t.Errorf("root_user attributed to %q", reqs[0].Origin.Context)
	}
}

func TestExtractCapabilities(t *testing.T) {
	obj := podObject(map[string]interface{}{
		"containers": []interface{}{
			map[string]interface{}{
				"name": "app",
				"securityContext": map[string]interface{}{
					"capabilities": map[string]interface{}{
						"add": []interface{}{"NET_ADMIN", "SYS_TIME"},
					},
				},
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Kind != KindCapabilities {
		t.Fatalf("got %v", kindsOf(reqs))
	}
	caps, ok := reqs[0].Value.([]string)
	if !ok || len(caps) != 2 || caps[0] != "NET_ADMIN" {
		t.Errorf("value = %v", reqs[0].Value)
	}
}

func TestExtractPodLevelSignals(t *testing.T) {
	obj := podObject(map[string]interface{}{
		"hostNetwork": true,
		"hostPID":     true,
		"hostIPC":     true,
		"securityContext": map[string]interface{}{
			"fsGroup":            int64(2000),
			"supplementalGroups": []interface{}{int64(3000)},
			"seLinuxOptions":     map[string]interface{}{"level": "s0:c123,c456"},
		},
		"containers": []interface{}{
			map[string]interface{}{"name": "app"},
		},
		"volumes": []interface{}{
			map[string]interface{}{
				"name":     "host-data",
				"hostPath": map[string]interface{}{"path": "/var/lib/data"},
			},
			map[string]interface{}{
				"name":      "cfg",
				"configMap": map[string]interface{}{"name": "cfg"},
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := []Kind{KindHostNetwork, KindHostPID, KindHostIPC, KindHostPath, KindFSGroup, KindSupplementalGroups, KindSELinux}
	got := kindsOf(reqs)
	if len(got) != len(want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	for _, req := range reqs {
		if req.Kind == KindHostPath {
			if req.Value != "/var/lib/data" {
				t.Errorf("host_path value = %v", req.Value)
			}
			if req.Origin.Context != "volume/host-data" {
				t.Errorf("host_path origin = %q", req.Origin.Context)
			}
		}
	}
}

func TestExtractInitContainersAfterContainers(t *testing.T) {
	obj := podObject(map[string]interface{}{
		"containers": []interface{}{
			map[string]interface{}{
				"name":            "main",
				"securityContext": map[string]interface{}{"privileged": true},
			},
		},
		"initContainers": []interface{}{
			map[string]interface{}{
				"name":            "init",
				"securityContext": map[string]interface{}{"runAsUser": int64(0)},
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	got := kindsOf(reqs)
	if len(got) != 2 || got[0] != KindPrivileged || got[1] != KindRootUser {
		t.Errorf("kinds = %v", got)
	}
}

func TestExtractCronJobPodSpecPath(t *testing.T) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "batch/v1",
		"kind":       "CronJob",
		"metadata":   map[string]interface{}{"name": "backup"},
		"spec": map[string]interface{}{
			"jobTemplate": map[string]interface{}{
				"spec": map[string]interface{}{
					"template": map[string]interface{}{
						"spec": map[string]interface{}{
							"hostNetwork": true,
							"containers": []interface{}{
								map[string]interface{}{"name": "job"},
							},
						},
					},
				},
			},
		},
	}}

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reqs) != 1 || reqs[0].Kind != KindHostNetwork {
		t.Errorf("kinds = %v", kindsOf(reqs))
	}
}

func TestExtractUnsupportedKind(t *testing.T) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "Service",
		"metadata":   map[string]interface{}{"name": "svc"},
	}}
	if _, err := Extract(obj); err == nil {
		t.Error("expected error for non-workload kind")
	}
}

func TestExtractNoDeduplication(t *testing.T) {
	// Two privileged containers emit two requirements; dedup is the
	// synthesis engine's job
	obj := podObject(map[string]interface{}{
		"containers": []interface{}{
			map[string]interface{}{
				"name":            "a",
				"securityContext": map[string]interface{}{"privileged": true},
			},
			map[string]interface{}{
				"name":            "b",
				"securityContext": map[string]interface{}{"privileged": true},
			},
		},
	})

	reqs, err := Extract(obj)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(reqs) != 2 {
		t.Errorf("expected 2 requirements, got %d", len(reqs))
	}
}

func TestServiceAccountName(t *testing.T) {
	obj := podObject(map[string]interface{}{
		"serviceAccountName": "runner",
		"containers": []interface{}{
			map[string]interface{}{"name": "app"},
		},
	})
	if got := ServiceAccountName(obj); got != "runner" {
		t.Errorf("ServiceAccountName = %q", got)
	}

	legacy := podObject(map[string]interface{}{
		"serviceAccount": "legacy-runner",
	})
	if got := ServiceAccountName(legacy); got != "legacy-runner" {
		t.Errorf("ServiceAccountName legacy = %q", got)
	}
}

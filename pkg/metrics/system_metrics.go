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

package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemMetrics tracks resource usage of the agent process. The autodeploy
// loop reports these alongside iteration counters so long runs against large
// manifest sets can be sized.
type SystemMetrics struct {
	lastCPUStats  *cpu.TimesStat
	lastCheckTime time.Time
	mu            sync.Mutex
}

// NewSystemMetrics creates a new system metrics tracker
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		lastCheckTime: time.Now(),
	}
}

// GetCPUUsagePercent returns current CPU usage percentage
func (sm *SystemMetrics) GetCPUUsagePercent() float64 {
	now := time.Now()

	current, err := cpu.Times(false)
	if err != nil || len(current) == 0 {
		percentages, err := cpu.Percent(1*time.Second, false)
		if err == nil && len(percentages) > 0 {
			return percentages[0]
		}
		return 0.0
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.lastCPUStats != nil {
		timeDiff := now.Sub(sm.lastCheckTime).Seconds()
		if timeDiff > 0 {
			totalBefore := sm.lastCPUStats.User + sm.lastCPUStats.System + sm.lastCPUStats.Idle
			totalCurrent := current[0].User + current[0].System + current[0].Idle

			totalDiff := totalCurrent - totalBefore
			idleDiff := current[0].Idle - sm.lastCPUStats.Idle

			if totalDiff > 0 {
				usage := (1 - idleDiff/totalDiff) * 100
				if usage < 0 {
					usage = 0
				}
				if usage > 100 {
					usage = 100
				}
				sm.lastCPUStats = &current[0]
				sm.lastCheckTime = now
				return usage
			}
		}
	}

	// First time or error - initialize
	sm.lastCPUStats = &current[0]
	sm.lastCheckTime = now
	return 0.0
}

// GetMemoryUsage returns current heap usage in bytes
func (sm *SystemMetrics) GetMemoryUsage() uint64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return m.Alloc
}

// GetMemoryUsagePercent returns heap usage as percentage of system memory
func (sm *SystemMetrics) GetMemoryUsagePercent() float64 {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	vmStat, err := mem.VirtualMemory()
	if err != nil {
		return 0.0
	}

	if vmStat.Total == 0 {
		return 0.0
	}

	percent := (float64(m.Alloc) / float64(vmStat.Total)) * 100
	if percent > 100 {
		percent = 100
	}
	return percent
}

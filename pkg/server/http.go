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

// Package server exposes the agent's observability endpoints: Prometheus
// metrics, health and readiness probes, and a process status snapshot. It runs
// alongside the adjustment loop in autodeploy mode.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kube-scc/scc-agent/pkg/logger"
	"github.com/kube-scc/scc-agent/pkg/metrics"
)

// Server wraps the HTTP server and handlers
type Server struct {
	server  *http.Server
	ready   bool
	readyMu sync.RWMutex
	system  *metrics.SystemMetrics
	log     *logger.Logger
}

// NewServer builds the observability server listening on addr
func NewServer(addr string) *Server {
	mux := http.NewServeMux()
	s := &Server{
		server: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		system: metrics.NewSystemMetrics(),
		log:    logger.GetLogger().WithFields(logger.Fields{Component: "http-server"}),
	}

	s.registerHandlers(mux)
	return s
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		s.readyMu.RLock()
		ready := s.ready
		s.readyMu.RUnlock()

		if ready {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("not ready"))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/status", s.handleStatus)
}

// handleStatus reports process resource usage for sizing long autodeploy runs
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := map[string]interface{}{
		"cpuPercent":    s.system.GetCPUUsagePercent(),
		"memoryBytes":   s.system.GetMemoryUsage(),
		"memoryPercent": s.system.GetMemoryUsagePercent(),
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		s.log.Warn("Failed to write status response", logger.Fields{Error: err})
	}
}

// Start runs the server in a goroutine and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.log.Info("HTTP server starting", logger.Fields{
			Additional: map[string]interface{}{"addr": s.server.Addr},
		})
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("HTTP server error", logger.Fields{Error: err})
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownTimeout := 10 * time.Second
		if timeoutStr := os.Getenv("HTTP_SHUTDOWN_TIMEOUT"); timeoutStr != "" {
			if parsed, err := time.ParseDuration(timeoutStr); err == nil {
				shutdownTimeout = parsed
			} else {
				s.log.Warn("Invalid HTTP_SHUTDOWN_TIMEOUT, using default", logger.Fields{
					Reason: timeoutStr,
				})
			}
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("HTTP server shutdown error", logger.Fields{Error: err})
		}
	}()
}

// SetReady sets the readiness status
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready
}

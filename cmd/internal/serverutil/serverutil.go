// Copyright 2026 Google LLC. All Rights Reserved.
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

// Package serverutil holds the HTTP plumbing shared by the binaries.
package serverutil

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"
)

// MetricsServer serves Prometheus metrics on /metrics and a health check on /healthz.
// It uses its own mux, so handlers registered on http.DefaultServeMux are not exposed.
type MetricsServer struct {
	// Endpoint is the host:port to listen on.
	Endpoint string
	// Gatherer provides the metrics. prometheus.DefaultGatherer is used if nil.
	Gatherer prometheus.Gatherer
	// IsHealthy is called on every /healthz request. A nil error, or a nil IsHealthy, results in
	// a 200-OK response.
	IsHealthy func(context.Context) error
	// HealthyDeadline bounds each IsHealthy call. Defaults to 5s.
	HealthyDeadline time.Duration
}

func (m *MetricsServer) healthz(rw http.ResponseWriter, req *http.Request) {
	if m.IsHealthy != nil {
		ctx, cancel := context.WithTimeout(req.Context(), m.HealthyDeadline)
		defer cancel()
		if err := m.IsHealthy(ctx); err != nil {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte(err.Error()))
			return
		}
	}
	rw.Write([]byte("ok"))
}

// Handler returns the mux served by Run.
func (m *MetricsServer) Handler() http.Handler {
	if m.HealthyDeadline == 0 {
		m.HealthyDeadline = 5 * time.Second
	}
	g := m.Gatherer
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", m.healthz)
	return mux
}

// Run serves until ctx is cancelled, then shuts the server down.
func (m *MetricsServer) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", m.Endpoint)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: m.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			klog.Warningf("HTTP server shutdown: %v", err)
		}
	}()

	klog.Infof("HTTP server starting on %v", lis.Addr())
	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

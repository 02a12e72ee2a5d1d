// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/internal/info"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/tools"
)

// HTTPServer serves the MCP endpoint next to probes, build info, engine
// counters and Prometheus metrics.
type HTTPServer struct {
	mcpServer  *server.MCPServer
	httpServer *http.Server
	addr       string
	version    string
	ready      chan struct{}

	readiness func() bool
	engine    tools.EngineStats
	gatherer  prometheus.Gatherer
}

// HTTPOption configures an HTTPServer.
type HTTPOption func(*HTTPServer)

// WithReadiness makes /readyz report the result of check.
func WithReadiness(check func() bool) HTTPOption {
	return func(h *HTTPServer) { h.readiness = check }
}

// WithEngineStats serves the engine counters on /stats.
func WithEngineStats(engine tools.EngineStats) HTTPOption {
	return func(h *HTTPServer) { h.engine = engine }
}

// WithGatherer serves /metrics from g instead of the default registry.
func WithGatherer(g prometheus.Gatherer) HTTPOption {
	return func(h *HTTPServer) { h.gatherer = g }
}

// NewHTTPServer creates an HTTP transport server.
func NewHTTPServer(mcpServer *server.MCPServer, addr, version string, opts ...HTTPOption) *HTTPServer {
	h := &HTTPServer{
		mcpServer: mcpServer,
		addr:      addr,
		version:   version,
		ready:     make(chan struct{}),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *HTTPServer) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Tool calls are independent; no session tracking.
	mux.Handle("/mcp", server.NewStreamableHTTPServer(h.mcpServer, server.WithStateLess(true)))

	mux.HandleFunc("/healthz", getJSON(h.healthz))
	mux.HandleFunc("/readyz", getJSON(h.readyz))
	mux.HandleFunc("/version", getJSON(h.versionInfo))
	mux.HandleFunc("/stats", getJSON(h.stats))
	mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// ListenAndServe serves until ctx is cancelled.
func (h *HTTPServer) ListenAndServe(ctx context.Context) error {
	// analyze_ih_log may read the whole kernel log; WriteTimeout covers it.
	h.httpServer = &http.Server{
		Addr:              h.addr,
		Handler:           h.routes(),
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Bind before signaling ready.
	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return err
	}
	klog.InfoS("HTTP server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		close(h.ready)
		if err := h.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return h.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Ready returns a channel closed once the listener is bound.
func (h *HTTPServer) Ready() <-chan struct{} {
	return h.ready
}

// Shutdown gracefully shuts down the HTTP server.
func (h *HTTPServer) Shutdown() error {
	if h.httpServer == nil {
		return nil
	}

	klog.InfoS("HTTP server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return h.httpServer.Shutdown(ctx)
}

// getJSON adapts a body producer to a GET-only JSON handler.
func getJSON(body func() (int, any)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
			return
		}
		code, v := body()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(v); err != nil {
			klog.ErrorS(err, "failed to encode response", "path", r.URL.Path)
		}
	}
}

func (h *HTTPServer) healthz() (int, any) {
	return http.StatusOK, map[string]string{"status": "healthy"}
}

func (h *HTTPServer) readyz() (int, any) {
	if h.readiness != nil && !h.readiness() {
		return http.StatusServiceUnavailable, map[string]string{"status": "not ready"}
	}
	return http.StatusOK, map[string]string{"status": "ready"}
}

func (h *HTTPServer) versionInfo() (int, any) {
	return http.StatusOK, map[string]string{
		"server":    ServerName,
		"version":   h.version,
		"commit":    info.GitCommit(),
		"goVersion": info.GetInfo().GoVersion,
	}
}

func (h *HTTPServer) stats() (int, any) {
	if h.engine == nil {
		return http.StatusServiceUnavailable, map[string]string{"error": "interrupt engine not running"}
	}
	return http.StatusOK, h.engine.Stats()
}

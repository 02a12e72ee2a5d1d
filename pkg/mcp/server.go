// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package mcp exposes the interrupt engine over the Model Context Protocol
// on stdio and HTTP transports.
package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/prompts"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/tools"
)

// ServerName is reported to MCP clients and by /version.
const ServerName = "gpu-irq-agent"

// TransportType defines the transport mode for the MCP server.
type TransportType string

const (
	// TransportStdio uses stdin/stdout for communication (default).
	TransportStdio TransportType = "stdio"
	// TransportHTTP uses streamable HTTP for communication.
	TransportHTTP TransportType = "http"
)

// Server wraps the MCP server with configurable transport.
type Server struct {
	mcpServer *server.MCPServer
	transport TransportType
	httpAddr  string
	version   string
	engine    tools.EngineStats
	toolNames []string
	prompts   []string
}

// Config holds server configuration.
type Config struct {
	// Version is the agent version
	Version string
	// GitCommit is the git commit hash
	GitCommit string
	// Transport is the transport mode: "stdio" or "http"
	Transport TransportType
	// HTTPAddr is the HTTP listen address (e.g., "0.0.0.0:8080")
	HTTPAddr string
	// Device describes the GPU entries are decoded and replayed against.
	Device kfd.Config
	// VMIDs resolves PASIDs when decoding entries without the hardware
	// scheduler. Optional.
	VMIDs device.VMIDPASIDTable
	// Engine is the live interrupt engine. Without it get_interrupt_stats
	// is not offered and /readyz reports not ready.
	Engine tools.EngineStats
	// Events is the node event reporter. Optional.
	Events tools.EventStats
}

// New creates a new MCP server instance.
func New(cfg Config) (*Server, error) {
	if err := cfg.Device.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device config: %w", err)
	}

	// Default to stdio transport
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	// Validate HTTPAddr is set when using HTTP transport
	if cfg.Transport == TransportHTTP && cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("HTTPAddr is required for HTTP transport")
	}

	s := &Server{
		transport: cfg.Transport,
		httpAddr:  cfg.HTTPAddr,
		version:   cfg.Version,
		engine:    cfg.Engine,
	}

	s.mcpServer = server.NewMCPServer(
		ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
	)

	decodeHandler := tools.NewDecodeIHEntryHandler(cfg.Device, cfg.VMIDs)
	s.addTool(tools.GetDecodeIHEntryTool(), decodeHandler.Handle)

	analyzeHandler := tools.NewAnalyzeIHLogHandler(cfg.Device)
	s.addTool(tools.GetAnalyzeIHLogTool(), analyzeHandler.Handle)

	if cfg.Engine != nil {
		statsHandler := tools.NewInterruptStatsHandler(cfg.Engine, cfg.Events)
		s.addTool(tools.GetInterruptStatsTool(), statsHandler.Handle)
	}

	s.prompts = prompts.Register(s.mcpServer)

	klog.InfoS("MCP server initialized",
		"transport", cfg.Transport,
		"tools", s.toolNames,
		"prompts", s.prompts,
		"gpuID", cfg.Device.GPUID,
		"version", cfg.Version,
		"commit", cfg.GitCommit)

	return s, nil
}

func (s *Server) addTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcpServer.AddTool(tool, instrument(tool.Name, handler))
	s.toolNames = append(s.toolNames, tool.Name)
}

// Tools returns the names of the registered tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.toolNames...)
}

// Prompts returns the names of the registered prompts.
func (s *Server) Prompts() []string {
	return append([]string(nil), s.prompts...)
}

// Run starts the MCP server with the configured transport.
func (s *Server) Run(ctx context.Context) error {
	switch s.transport {
	case TransportHTTP:
		return s.runHTTP(ctx)
	default:
		return s.runStdio(ctx)
	}
}

// runStdio runs the server with stdio transport.
func (s *Server) runStdio(ctx context.Context) error {
	klog.InfoS("MCP server starting", "transport", "stdio")

	errCh := make(chan error, 1)
	go func() {
		if err := server.ServeStdio(s.mcpServer); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
	}()

	// Wait for context cancellation or server error
	select {
	case <-ctx.Done():
		klog.InfoS("MCP server stopping", "reason", "context cancelled")
		return s.Shutdown()
	case err := <-errCh:
		klog.ErrorS(err, "MCP server error")
		return err
	}
}

// runHTTP runs the server with HTTP transport.
func (s *Server) runHTTP(ctx context.Context) error {
	klog.InfoS("MCP server starting", "transport", "http", "addr", s.httpAddr)

	httpServer := NewHTTPServer(s.mcpServer, s.httpAddr, s.version,
		WithReadiness(s.ready), WithEngineStats(s.engine))
	return httpServer.ListenAndServe(ctx)
}

// ready reports whether a live engine is attached.
func (s *Server) ready() bool {
	return s.engine != nil
}

// Shutdown gracefully shuts down the MCP server.
func (s *Server) Shutdown() error {
	klog.InfoS("MCP server shutdown initiated")

	// The mcp-go library doesn't expose a shutdown method,
	// so we just log the shutdown

	klog.InfoS("MCP server shutdown complete")
	return nil
}

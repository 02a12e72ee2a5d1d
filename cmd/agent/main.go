// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

// Package main is the entry point for the gpu-irq-agent.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/internal/info"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/config"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/k8s"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/mcp"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/metrics"
)

func main() {
	klog.InitFlags(nil)

	var (
		configPath  = flag.String("config", "", "Device profile (YAML); the built-in MI300 profile when empty")
		replay      = flag.String("replay", "", "Replay ring entries from a log file, or \"kmsg\" for the kernel log")
		replayRate  = flag.Float64("replay-rate", 0, "Replayed records per second (0: as fast as the queue accepts)")
		transport   = flag.String("transport", string(mcp.TransportStdio), "MCP transport: stdio or http")
		httpAddr    = flag.String("http-addr", "0.0.0.0:8080", "HTTP listen address (http transport)")
		nodeName    = flag.String("node-name", os.Getenv("NODE_NAME"), "Node to record GPU events on (disabled when empty)")
		namespace   = flag.String("namespace", "default", "Namespace for node events")
		dedupWindow = flag.Duration("event-dedup-window", k8s.DefaultDedupWindow, "Suppress repeated node events within this window")
		showVer     = flag.Bool("version", false, "Show version information and exit")
	)
	flag.Parse()
	defer klog.Flush()

	// Show version and exit if requested
	if *showVer {
		buildInfo := info.GetInfo()
		fmt.Fprintf(os.Stderr, "%s version %s (commit %s)\n",
			mcp.ServerName, buildInfo.Version, buildInfo.GitCommit)
		os.Exit(0)
	}

	if err := run(runConfig{
		configPath:  *configPath,
		replay:      *replay,
		replayRate:  *replayRate,
		transport:   mcp.TransportType(*transport),
		httpAddr:    *httpAddr,
		nodeName:    *nodeName,
		namespace:   *namespace,
		dedupWindow: *dedupWindow,
	}); err != nil {
		klog.ErrorS(err, "agent failed")
		klog.Flush()
		os.Exit(1)
	}
	klog.InfoS("shutdown complete")
}

type runConfig struct {
	configPath  string
	replay      string
	replayRate  float64
	transport   mcp.TransportType
	httpAddr    string
	nodeName    string
	namespace   string
	dedupWindow time.Duration
}

func run(rc runConfig) error {
	if rc.transport != mcp.TransportStdio && rc.transport != mcp.TransportHTTP {
		return fmt.Errorf("invalid transport %q: want stdio or http", rc.transport)
	}

	profile := config.Default()
	if rc.configPath != "" {
		var err error
		if profile, err = config.Load(rc.configPath); err != nil {
			return err
		}
	}
	devCfg := profile.Engine()

	klog.InfoS("starting gpu-irq-agent",
		"version", info.Version(),
		"commit", info.GitCommit(),
		"config", rc.configPath,
		"replay", rc.replay,
		"transport", rc.transport)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Driver state is simulated; processes attach on first use.
	sim := device.NewMock()
	sim.SetAutoAttach(true)
	collab := sim.Collaborators()

	var reporter *k8s.NodeEventReporter
	if rc.nodeName != "" {
		if err := k8s.ValidateNodeName(rc.nodeName); err != nil {
			return err
		}
		client, err := k8s.NewClient(rc.namespace)
		if err != nil {
			return err
		}
		reporter = k8s.NewNodeEventReporter(client, rc.nodeName, k8s.WithDedupWindow(rc.dedupWindow))
		collab.RAS = k8s.RASReporter{RAS: collab.RAS, Reporter: reporter}
		collab.Telemetry = k8s.FaultTelemetryChain{collab.Telemetry, reporter}
		klog.InfoS("node events enabled", "node", rc.nodeName, "namespace", client.Namespace())
	}

	engine, err := kfd.NewEngine(devCfg, collab, kfd.WithObserver(metrics.DispatchObserver{}))
	if err != nil {
		return err
	}
	prometheus.MustRegister(metrics.NewEngineCollector(engine))

	serverCfg := mcp.Config{
		Version:   info.Version(),
		GitCommit: info.GitCommit(),
		Transport: rc.transport,
		HTTPAddr:  rc.httpAddr,
		Device:    devCfg,
		VMIDs:     sim,
		Engine:    engine,
	}
	if reporter != nil {
		serverCfg.Events = reporter
	}
	mcpServer, err := mcp.New(serverCfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return engine.Run(gctx) })
	if reporter != nil {
		g.Go(func() error { return reporter.Run(gctx) })
	}
	if rc.replay != "" {
		g.Go(func() error {
			return replayLog(gctx, engine, newEntrySource(), rc.replay, rc.replayRate)
		})
	}
	g.Go(func() error { return mcpServer.Run(gctx) })

	return g.Wait()
}

// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package kfd

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/ih"
)

// Observer is told about every dispatched record.
type Observer interface {
	ObserveDispatch(out Outcome, elapsed time.Duration)
}

// Stats is a snapshot of the engine counters.
type Stats struct {
	Received uint64 `json:"received"`
	Admitted uint64 `json:"admitted"`
	Patched  uint64 `json:"patched"`
	// QueueFull counts admitted records dropped because the worker fell
	// behind.
	QueueFull  uint64            `json:"queue_full"`
	Rejected   map[string]uint64 `json:"rejected"`
	Dispatched map[string]uint64 `json:"dispatched"`
	// NoPASID counts records dropped at dispatch for lack of a PASID.
	NoPASID    uint64 `json:"no_pasid"`
	QueueDepth int    `json:"queue_depth"`
	QueueSize  int    `json:"queue_size"`
}

// Engine is the per-device interrupt pipeline. Submit is called from the
// interrupt producer; a single Run loop dispatches in arrival order.
type Engine struct {
	filter     *Filter
	dispatcher *Dispatcher
	queue      chan ih.Record
	observer   Observer

	received   atomic.Uint64
	admitted   atomic.Uint64
	patched    atomic.Uint64
	queueFull  atomic.Uint64
	noPASID    atomic.Uint64
	rejected   [numRejectReasons]atomic.Uint64
	dispatched [numRoutes]atomic.Uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver reports every dispatch outcome to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observer = o
	}
}

// NewEngine validates cfg and the collaborators and builds the pipeline.
func NewEngine(cfg Config, collab device.Collaborators, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device config: %w", err)
	}
	if err := collab.Validate(); err != nil {
		return nil, err
	}

	size := cfg.QueueSize
	if size == 0 {
		size = DefaultQueueSize
	}

	e := &Engine{
		filter:     NewFilter(cfg, collab.VMIDs),
		dispatcher: NewDispatcher(cfg, collab),
		queue:      make(chan ih.Record, size),
	}
	for _, opt := range opts {
		opt(e)
	}

	klog.InfoS("interrupt engine created",
		"gpuID", cfg.GPUID,
		"gc", cfg.GC,
		"vmids", fmt.Sprintf("%d-%d", cfg.FirstVMID, cfg.LastVMID),
		"sched", cfg.SchedPolicy,
		"contextIDExpected", e.filter.ContextIDExpected(),
		"partitioned", cfg.Partitioned,
		"queueSize", size)
	return e, nil
}

// Submit filters rec and queues it for dispatch. It never blocks and
// does not retain rec. It reports whether the record was queued.
func (e *Engine) Submit(rec *ih.Record) bool {
	e.received.Add(1)

	var scratch ih.Record
	v := e.filter.Admit(rec, &scratch)
	if !v.Admit {
		e.rejected[v.Reason].Add(1)
		return false
	}

	entry := *rec
	if v.Patched {
		entry = scratch
		e.patched.Add(1)
	}

	select {
	case e.queue <- entry:
		e.admitted.Add(1)
		return true
	default:
		e.queueFull.Add(1)
		return false
	}
}

// Run dispatches queued records until ctx is done. Records still queued
// at that point are dispatched before Run returns.
func (e *Engine) Run(ctx context.Context) error {
	klog.V(2).InfoS("interrupt worker started")
	// Collaborator calls for admitted records must complete.
	dctx := context.WithoutCancel(ctx)
	for {
		select {
		case rec := <-e.queue:
			e.dispatch(dctx, &rec)
		case <-ctx.Done():
			e.drain(dctx)
			klog.V(2).InfoS("interrupt worker stopped")
			return nil
		}
	}
}

func (e *Engine) drain(ctx context.Context) {
	for {
		select {
		case rec := <-e.queue:
			e.dispatch(ctx, &rec)
		default:
			return
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, rec *ih.Record) {
	start := time.Now()
	out := e.dispatcher.Dispatch(ctx, rec)
	if out.Dropped {
		e.noPASID.Add(1)
	} else {
		e.dispatched[out.Route].Add(1)
	}
	if e.observer != nil {
		e.observer.ObserveDispatch(out, time.Since(start))
	}
}

// Dispatcher returns the engine's dispatcher.
func (e *Engine) Dispatcher() *Dispatcher {
	return e.dispatcher
}

// Filter returns the engine's admission filter.
func (e *Engine) Filter() *Filter {
	return e.filter
}

// Stats returns a snapshot of the counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Received:   e.received.Load(),
		Admitted:   e.admitted.Load(),
		Patched:    e.patched.Load(),
		QueueFull:  e.queueFull.Load(),
		NoPASID:    e.noPASID.Load(),
		Rejected:   make(map[string]uint64, numRejectReasons),
		Dispatched: make(map[string]uint64, numRoutes),
		QueueDepth: len(e.queue),
		QueueSize:  cap(e.queue),
	}
	for r := RejectNone + 1; r < numRejectReasons; r++ {
		s.Rejected[r.String()] = e.rejected[r].Load()
	}
	for r := RouteNone; r < numRoutes; r++ {
		s.Dispatched[r.String()] = e.dispatched[r].Load()
	}
	return s
}

// RejectReasons returns every reject reason in declaration order.
func RejectReasons() []RejectReason {
	reasons := make([]RejectReason, 0, numRejectReasons-1)
	for r := RejectNone + 1; r < numRejectReasons; r++ {
		reasons = append(reasons, r)
	}
	return reasons
}

// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package k8s

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/klog/v2"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/metrics"
)

// Event reasons recorded on the Node.
const (
	ReasonPoisonConsumed = "GPUPoisonConsumed"
	ReasonVMFault        = "GPUVMFault"
)

// Component is the event source component.
const Component = "gpu-irq-agent"

const (
	// DefaultDedupWindow suppresses repeated events for the same process.
	DefaultDedupWindow = time.Minute
	defaultEventQueue  = 128
)

type dedupKey struct {
	reason string
	pasid  uint16
}

// NodeEventReporter records GPU faults as Events on the Node the agent
// runs on. Callers never wait for the API server: events are queued and
// posted by Run.
type NodeEventReporter struct {
	client *Client
	node   string
	window time.Duration
	now    func() time.Time

	queue chan *corev1.Event
	seq   atomic.Uint64

	mu   sync.Mutex
	seen map[dedupKey]time.Time

	posted     atomic.Uint64
	suppressed atomic.Uint64
	dropped    atomic.Uint64
}

var _ device.FaultTelemetry = (*NodeEventReporter)(nil)

// ReporterOption configures a NodeEventReporter.
type ReporterOption func(*NodeEventReporter)

// WithDedupWindow sets how long repeated events for one process are
// suppressed. Zero disables suppression.
func WithDedupWindow(d time.Duration) ReporterOption {
	return func(r *NodeEventReporter) {
		r.window = d
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) ReporterOption {
	return func(r *NodeEventReporter) {
		r.now = now
	}
}

// NewNodeEventReporter creates a reporter for node.
func NewNodeEventReporter(client *Client, node string, opts ...ReporterOption) *NodeEventReporter {
	r := &NodeEventReporter{
		client: client,
		node:   node,
		window: DefaultDedupWindow,
		now:    time.Now,
		queue:  make(chan *corev1.Event, defaultEventQueue),
		seen:   make(map[dedupKey]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// UpdateVMFault records a GPU page fault.
func (r *NodeEventReporter) UpdateVMFault(_ context.Context, pasid uint16, info device.FaultInfo) {
	access := "read"
	if info.ProtWrite {
		access = "write"
	}
	r.enqueue(ReasonVMFault, pasid, fmt.Sprintf(
		"GPU page fault: pasid %d vmid %d client %#x page 0x%x (%s, valid=%t)",
		pasid, info.VMID, info.MCID, info.PageAddr, access, info.ProtValid))
}

// PoisonConsumed records a poison consumption escalation.
func (r *NodeEventReporter) PoisonConsumed(pasid uint16, block device.RASBlock, reset device.ResetMode) {
	r.enqueue(ReasonPoisonConsumed, pasid, fmt.Sprintf(
		"GPU poison consumed: pasid %d block %s, requesting %s reset", pasid, block, reset))
}

func (r *NodeEventReporter) enqueue(reason string, pasid uint16, message string) {
	now := r.now()
	if r.window > 0 {
		key := dedupKey{reason: reason, pasid: pasid}
		r.mu.Lock()
		last, ok := r.seen[key]
		if ok && now.Sub(last) < r.window {
			r.mu.Unlock()
			r.suppressed.Add(1)
			return
		}
		r.seen[key] = now
		r.mu.Unlock()
	}

	ts := metav1.NewTime(now)
	ev := &corev1.Event{
		ObjectMeta: metav1.ObjectMeta{
			Name:      fmt.Sprintf("%s.%x.%d", r.node, now.UnixNano(), r.seq.Add(1)),
			Namespace: r.client.Namespace(),
		},
		InvolvedObject: corev1.ObjectReference{
			Kind: "Node",
			Name: r.node,
			UID:  types.UID(r.node),
		},
		Reason:              reason,
		Message:             message,
		Type:                corev1.EventTypeWarning,
		Source:              corev1.EventSource{Component: Component, Host: r.node},
		FirstTimestamp:      ts,
		LastTimestamp:       ts,
		Count:               1,
		ReportingController: Component,
		ReportingInstance:   r.node,
	}

	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		klog.V(2).InfoS("event queue full, dropping event", "reason", reason, "pasid", pasid)
	}
}

// Run posts queued events until ctx is done, then posts whatever is
// still queued.
func (r *NodeEventReporter) Run(ctx context.Context) error {
	for {
		select {
		case ev := <-r.queue:
			r.post(ctx, ev)
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			return nil
		}
	}
}

func (r *NodeEventReporter) flush(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-r.queue:
			r.post(ctx, ev)
		default:
			return
		}
	}
}

func (r *NodeEventReporter) post(ctx context.Context, ev *corev1.Event) {
	_, err := r.client.Clientset().CoreV1().Events(ev.Namespace).Create(ctx, ev, metav1.CreateOptions{})
	if err != nil {
		metrics.RecordCollaboratorError("k8s_events")
		klog.ErrorS(err, "failed to record node event", "node", r.node, "reason", ev.Reason)
		return
	}
	r.posted.Add(1)
	klog.V(2).InfoS("recorded node event", "node", r.node, "reason", ev.Reason)
}

// ReporterStats are the reporter counters.
type ReporterStats struct {
	Posted     uint64 `json:"posted"`
	Suppressed uint64 `json:"suppressed"`
	Dropped    uint64 `json:"dropped"`
}

// Stats returns the reporter counters.
func (r *NodeEventReporter) Stats() ReporterStats {
	return ReporterStats{
		Posted:     r.posted.Load(),
		Suppressed: r.suppressed.Load(),
		Dropped:    r.dropped.Load(),
	}
}

// RASReporter records poison consumption on the Node before handing the
// request to the wrapped RAS collaborator.
type RASReporter struct {
	device.RAS
	Reporter *NodeEventReporter
}

// HandlePoisonConsumption implements device.RAS.
func (r RASReporter) HandlePoisonConsumption(ctx context.Context, block device.RASBlock,
	pasid uint16, reset device.ResetMode) error {
	r.Reporter.PoisonConsumed(pasid, block, reset)
	return r.RAS.HandlePoisonConsumption(ctx, block, pasid, reset)
}

// FaultTelemetryChain fans a fault out to several telemetry sinks.
type FaultTelemetryChain []device.FaultTelemetry

// UpdateVMFault implements device.FaultTelemetry.
func (c FaultTelemetryChain) UpdateVMFault(ctx context.Context, pasid uint16, info device.FaultInfo) {
	for _, t := range c {
		t.UpdateVMFault(ctx, pasid, info)
	}
}

// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package k8s

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/device"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestReporter(t *testing.T, opts ...ReporterOption) (*NodeEventReporter, *fake.Clientset, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	clientset := fake.NewSimpleClientset()
	opts = append([]ReporterOption{WithClock(clock.now)}, opts...)
	r := NewNodeEventReporter(NewClientWithConfig(clientset, "gpu-diagnostics"), "mi300-node-1", opts...)
	return r, clientset, clock
}

// flush posts everything queued so far.
func flush(t *testing.T, r *NodeEventReporter) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, r.Run(ctx))
}

func listEvents(t *testing.T, clientset *fake.Clientset) []corev1.Event {
	t.Helper()
	list, err := clientset.CoreV1().Events("gpu-diagnostics").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	return list.Items
}

func TestNodeEventReporter_VMFault(t *testing.T) {
	r, clientset, _ := newTestReporter(t)

	r.UpdateVMFault(context.Background(), 0x8001, device.FaultInfo{
		VMID:      8,
		MCID:      0x12,
		PageAddr:  0x3_0001_2345,
		ProtValid: true,
		ProtWrite: true,
	})
	flush(t, r)

	events := listEvents(t, clientset)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, ReasonVMFault, ev.Reason)
	assert.Equal(t, corev1.EventTypeWarning, ev.Type)
	assert.Equal(t, "Node", ev.InvolvedObject.Kind)
	assert.Equal(t, "mi300-node-1", ev.InvolvedObject.Name)
	assert.Equal(t, Component, ev.Source.Component)
	assert.Contains(t, ev.Message, "pasid 32769")
	assert.Contains(t, ev.Message, "page 0x300012345")
	assert.Contains(t, ev.Message, "write")
	assert.Equal(t, uint64(1), r.Stats().Posted)
}

func TestNodeEventReporter_Dedup(t *testing.T) {
	r, clientset, clock := newTestReporter(t)
	ctx := context.Background()

	r.UpdateVMFault(ctx, 7, device.FaultInfo{})
	r.UpdateVMFault(ctx, 7, device.FaultInfo{})
	r.UpdateVMFault(ctx, 8, device.FaultInfo{})
	r.PoisonConsumed(7, device.RASBlockGFX, device.ResetMode2)
	clock.advance(DefaultDedupWindow)
	r.UpdateVMFault(ctx, 7, device.FaultInfo{})
	flush(t, r)

	assert.Len(t, listEvents(t, clientset), 4)
	assert.Equal(t, ReporterStats{Posted: 4, Suppressed: 1}, r.Stats())
}

func TestNodeEventReporter_NoDedup(t *testing.T) {
	r, clientset, _ := newTestReporter(t, WithDedupWindow(0))

	for range 3 {
		r.UpdateVMFault(context.Background(), 7, device.FaultInfo{})
	}
	flush(t, r)

	assert.Len(t, listEvents(t, clientset), 3)
}

func TestNodeEventReporter_QueueFull(t *testing.T) {
	r, _, _ := newTestReporter(t, WithDedupWindow(0))

	for range defaultEventQueue + 3 {
		r.UpdateVMFault(context.Background(), 7, device.FaultInfo{})
	}

	assert.Equal(t, uint64(3), r.Stats().Dropped)
}

func TestNodeEventReporter_CreateError(t *testing.T) {
	r, clientset, _ := newTestReporter(t)
	clientset.PrependReactor("create", "events", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, errors.New("apiserver unavailable")
	})

	r.UpdateVMFault(context.Background(), 7, device.FaultInfo{})
	flush(t, r)

	assert.Zero(t, r.Stats().Posted)
}

func TestRASReporter(t *testing.T) {
	r, clientset, _ := newTestReporter(t)
	m := device.NewMock()
	ras := RASReporter{RAS: m, Reporter: r}

	err := ras.HandlePoisonConsumption(context.Background(), device.RASBlockSDMA, 9, device.ResetMode1)
	require.NoError(t, err)
	flush(t, r)

	assert.Equal(t, []device.RecoveryCall{
		{Block: device.RASBlockSDMA, PASID: 9, Reset: device.ResetMode1},
	}, m.Recoveries())
	events := listEvents(t, clientset)
	require.Len(t, events, 1)
	assert.Equal(t, ReasonPoisonConsumed, events[0].Reason)
	assert.Contains(t, events[0].Message, "block sdma")
	assert.Contains(t, events[0].Message, "mode1 reset")

	m.SetRecoveryError(errors.New("reset in progress"))
	assert.Error(t, ras.HandlePoisonConsumption(context.Background(), device.RASBlockSDMA, 10, device.ResetMode1))
}

func TestFaultTelemetryChain(t *testing.T) {
	a, b := device.NewMock(), device.NewMock()
	chain := FaultTelemetryChain{a, b}

	chain.UpdateVMFault(context.Background(), 3, device.FaultInfo{VMID: 9})

	want := []device.FaultCall{{PASID: 3, Info: device.FaultInfo{VMID: 9}}}
	assert.Equal(t, want, a.Faults())
	assert.Equal(t, want, b.Faults())
}

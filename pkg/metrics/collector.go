// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ArangoGutierrez/gpu-irq-agent/pkg/kfd"
)

// StatsSource provides engine counters.
type StatsSource interface {
	Stats() kfd.Stats
}

// EngineCollector exports the engine counters at scrape time, so the
// interrupt path only touches atomics.
type EngineCollector struct {
	source StatsSource

	records    *prometheus.Desc
	queueDepth *prometheus.Desc
	queueSize  *prometheus.Desc
}

// NewEngineCollector creates a collector over source.
func NewEngineCollector(source StatsSource) *EngineCollector {
	return &EngineCollector{
		source: source,
		records: prometheus.NewDesc(
			"gpu_irq_records_total",
			"Interrupt records seen by the admission filter, by verdict and reason",
			[]string{"verdict", "reason"}, nil,
		),
		queueDepth: prometheus.NewDesc(
			"gpu_irq_queue_depth",
			"Admitted records waiting for dispatch",
			nil, nil,
		),
		queueSize: prometheus.NewDesc(
			"gpu_irq_queue_size",
			"Capacity of the dispatch queue",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *EngineCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.records
	ch <- c.queueDepth
	ch <- c.queueSize
}

// Collect implements prometheus.Collector.
func (c *EngineCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()

	ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue,
		float64(s.Admitted), "admitted", "none")
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue,
		float64(s.QueueFull), "dropped", "queue_full")
	ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue,
		float64(s.NoPASID), "dropped", "no_pasid_at_dispatch")
	for _, r := range kfd.RejectReasons() {
		ch <- prometheus.MustNewConstMetric(c.records, prometheus.CounterValue,
			float64(s.Rejected[r.String()]), "rejected", r.String())
	}

	ch <- prometheus.MustNewConstMetric(c.queueDepth, prometheus.GaugeValue, float64(s.QueueDepth))
	ch <- prometheus.MustNewConstMetric(c.queueSize, prometheus.GaugeValue, float64(s.QueueSize))
}

// Copyright 2026 gpu-irq-agent contributors
// SPDX-License-Identifier: Apache-2.0

//go:build e2e

package e2e

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTP_HealthzEndpoint(t *testing.T) {
	resp, err := http.Get(agentURL + "/healthz")
	require.NoError(t, err, "Failed to call /healthz")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHTTP_ReadyzEndpoint(t *testing.T) {
	resp, err := http.Get(agentURL + "/readyz")
	require.NoError(t, err, "Failed to call /readyz")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode, "agent runs an engine")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ready", body["status"])
}

func scrapeMetrics(t *testing.T) string {
	t.Helper()
	resp, err := http.Get(agentURL + "/metrics")
	require.NoError(t, err, "Failed to call /metrics")
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHTTP_MetricsEndpoint(t *testing.T) {
	body := scrapeMetrics(t)

	assert.Contains(t, body, "# HELP")
	assert.Contains(t, body, "# TYPE")
	assert.Contains(t, body, "go_goroutines")
	assert.Contains(t, body, "gpu_irq_queue_size")
}

func TestHTTP_MetricsReflectReplay(t *testing.T) {
	want := []string{
		`gpu_irq_records_total{reason="none",verdict="admitted"} 3`,
		`gpu_irq_dispatch_total{route="event_wake"} 1`,
		`gpu_irq_dispatch_total{route="vm_fault"} 1`,
		`gpu_irq_dispatch_total{route="poison"} 1`,
	}

	assert.Eventually(t, func() bool {
		body := scrapeMetrics(t)
		for _, line := range want {
			if !strings.Contains(body, line) {
				return false
			}
		}
		return true
	}, 10*time.Second, 200*time.Millisecond, "replayed records should be counted")
}

func TestHTTP_StatsEndpoint(t *testing.T) {
	assert.Eventually(t, func() bool {
		resp, err := http.Get(agentURL + "/stats")
		if err != nil {
			return false
		}
		defer func() { _ = resp.Body.Close() }()

		var stats struct {
			Received uint64 `json:"received"`
		}
		if resp.StatusCode != http.StatusOK || json.NewDecoder(resp.Body).Decode(&stats) != nil {
			return false
		}
		return stats.Received == uint64(len(replayRecords()))
	}, 10*time.Second, 200*time.Millisecond)
}

func TestHTTP_VersionEndpoint(t *testing.T) {
	resp, err := http.Get(agentURL + "/version")
	require.NoError(t, err, "Failed to call /version")
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body, "version")
	assert.Equal(t, "gpu-irq-agent", body["server"])
}

func TestHTTP_ContentTypeHeaders(t *testing.T) {
	testCases := []struct {
		name     string
		endpoint string
		expected string
	}{
		{"healthz", "/healthz", "application/json"},
		{"readyz", "/readyz", "application/json"},
		{"version", "/version", "application/json"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(agentURL + tc.endpoint)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Contains(t, resp.Header.Get("Content-Type"), tc.expected)
		})
	}
}

func TestHTTP_MethodNotAllowed(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Second}

	testCases := []struct {
		endpoint string
		method   string
	}{
		{"/healthz", http.MethodPost},
		{"/readyz", http.MethodPost},
		{"/version", http.MethodPost},
		{"/healthz", http.MethodPut},
		{"/readyz", http.MethodDelete},
		{"/stats", http.MethodPost},
	}

	for _, tc := range testCases {
		t.Run(tc.method+"_"+tc.endpoint, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, agentURL+tc.endpoint, nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
		})
	}
}

package exec_test

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dshills/nodeflow-go/graph/exec"
)

func TestMetricsLifecycle(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := exec.NewMetrics(registry)

	m.SessionStarted("full")
	m.NodeDispatched()
	m.NodeExecuted("image-gen", "success", 250*time.Millisecond)
	m.NodeResolved()
	m.CacheHit()
	m.SessionFinished("completed")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"nodeflow_inflight_nodes",
		"nodeflow_active_sessions",
		"nodeflow_node_latency_ms",
		"nodeflow_node_executions_total",
		"nodeflow_sessions_total",
		"nodeflow_sessions_finished_total",
		"nodeflow_cache_hits_total",
	} {
		if !names[want] {
			t.Errorf("expected metric %q registered, got %v", want, names)
		}
	}
}

func TestMetricsGaugesReturnToZero(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := exec.NewMetrics(registry)

	m.SessionStarted("single_node")
	m.NodeDispatched()
	m.NodeResolved()
	m.SessionFinished("cancelled")

	count, err := testutil.GatherAndCount(registry, "nodeflow_inflight_nodes", "nodeflow_active_sessions")
	if err != nil {
		t.Fatalf("GatherAndCount failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected both gauges present, got %d", count)
	}
}

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRecording("stopped")
	m.ObserveTranscription("success")
	m.ObserveModelRequest("success", time.Second)
	m.ConversationStarted()
}

func TestObserve_RecordsSamples(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveRecording("stopped")
	m.ObserveModelRequest("failure", 300*time.Millisecond)
	m.ConversationStarted()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range families {
		seen[f.GetName()] = true
	}
	for _, name := range []string{
		"chumon_recordings_total",
		"chumon_model_requests_total",
		"chumon_model_request_duration_seconds",
		"chumon_conversations_started_total",
	} {
		if !seen[name] {
			t.Fatalf("expected metric family %s, got %v", name, seen)
		}
	}
}

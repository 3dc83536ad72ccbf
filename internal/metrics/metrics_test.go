package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestInitializeMetricsRegistry(t *testing.T) {
	t.Parallel()

	reg := InitializeMetricsRegistry()
	if reg == nil {
		t.Fatal("Expected registry to be created")
	}

	metricChecks := []struct {
		name   string
		metric interface{}
	}{
		{"ConnectionsTotal", reg.ConnectionsTotal},
		{"ConnectionsActive", reg.ConnectionsActive},
		{"ConnectionsRejected", reg.ConnectionsRejected},
		{"MessagesTotal", reg.MessagesTotal},
		{"BytesTotal", reg.BytesTotal},
		{"DecodeErrors", reg.DecodeErrors},
		{"DispatchDuration", reg.DispatchDuration},
		{"RegistryFailures", reg.RegistryFailures},
		{"SendsDropped", reg.SendsDropped},
		{"BufferedBytes", reg.BufferedBytes},
		{"BindFailures", reg.BindFailures},
	}

	for _, check := range metricChecks {
		if check.metric == nil {
			t.Errorf("%s not initialized", check.name)
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	t.Parallel()

	first := InitializeMetricsRegistry()
	second := InitializeMetricsRegistry()

	first.IncrementConnections()

	if got := testutil.ToFloat64(second.ConnectionsActive); got != 0 {
		t.Errorf("Expected independent registries, second has %f active", got)
	}
}

func TestRegistry_ConnectionMetrics(t *testing.T) {
	t.Parallel()

	reg := InitializeMetricsRegistry()

	reg.IncrementConnections()
	reg.IncrementConnections()
	reg.DecrementConnections()
	reg.IncrementConnectionsRejected()

	if got := testutil.ToFloat64(reg.ConnectionsTotal); got != 2 {
		t.Errorf("Expected ConnectionsTotal to be 2, got %f", got)
	}

	if got := testutil.ToFloat64(reg.ConnectionsActive); got != 1 {
		t.Errorf("Expected ConnectionsActive to be 1, got %f", got)
	}

	if got := testutil.ToFloat64(reg.ConnectionsRejected); got != 1 {
		t.Errorf("Expected ConnectionsRejected to be 1, got %f", got)
	}
}

func TestRegistry_MessageMetrics(t *testing.T) {
	t.Parallel()

	reg := InitializeMetricsRegistry()

	reg.IncrementMessages(DirectionInbound, "ok")
	reg.AddBytes(DirectionInbound, 128)
	reg.AddBytes(DirectionInbound, 64)
	reg.IncrementDecodeErrors()
	reg.IncrementRegistryFailures("")
	reg.IncrementRegistryFailures("rejection")
	reg.RecordDispatchDuration("ok", 5*time.Millisecond)

	if got := testutil.ToFloat64(reg.MessagesTotal.WithLabelValues(DirectionInbound, "ok")); got != 1 {
		t.Errorf("Expected 1 inbound message, got %f", got)
	}

	if got := testutil.ToFloat64(reg.BytesTotal.WithLabelValues(DirectionInbound)); got != 192 {
		t.Errorf("Expected 192 inbound bytes, got %f", got)
	}

	if got := testutil.ToFloat64(reg.DecodeErrors); got != 1 {
		t.Errorf("Expected 1 decode error, got %f", got)
	}

	if got := testutil.ToFloat64(reg.RegistryFailures.WithLabelValues(unknownValue)); got != 1 {
		t.Errorf("Expected empty kind to be recorded as unknown, got %f", got)
	}

	if got := testutil.CollectAndCount(reg.DispatchDuration); got != 1 {
		t.Errorf("Expected one dispatch duration series, got %d", got)
	}
}

func TestRegistry_Gatherer(t *testing.T) {
	t.Parallel()

	reg := InitializeMetricsRegistry()
	reg.IncrementSendsDropped()
	reg.ObserveBufferedBytes(4096)

	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}

	for _, want := range []string{"socket_gateway_sends_dropped_total", "socket_gateway_buffered_bytes"} {
		if !names[want] {
			t.Errorf("Expected metric family %s to be gathered", want)
		}
	}
}

func TestRegistry_BufferedBytesHistogram(t *testing.T) {
	t.Parallel()

	reg := InitializeMetricsRegistry()
	reg.ObserveBufferedBytes(100)
	reg.ObserveBufferedBytes(70000)

	metric := histogramMetric(t, reg.BufferedBytes)

	if got := metric.GetSampleCount(); got != 2 {
		t.Errorf("Expected 2 observations, got %d", got)
	}

	if got := metric.GetSampleSum(); got != 70100 {
		t.Errorf("Expected sum 70100, got %f", got)
	}

	// 100 B falls into the 256 B bucket, 70000 B does not
	for _, bucket := range metric.GetBucket() {
		if bucket.GetUpperBound() == 256 && bucket.GetCumulativeCount() != 1 {
			t.Errorf("Expected one observation up to 256 B, got %d", bucket.GetCumulativeCount())
		}
	}
}

func histogramMetric(t *testing.T, h prometheus.Histogram) *dto.Histogram {
	t.Helper()

	metric := &dto.Metric{}
	if err := h.Write(metric); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if metric.Histogram == nil {
		t.Fatal("Expected histogram data")
	}

	return metric.Histogram
}

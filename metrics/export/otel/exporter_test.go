package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot goAuthClient.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() goAuthClient.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := goAuthClient.MetricsSnapshot{
		Counters:   make(map[goAuthClient.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[goAuthClient.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

// point returns the value of the data point of name whose attributes carry
// every key=value pair in attrs.
func point(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...string) (float64, bool) {
	t.Helper()
	match := func(set attribute.Set) bool {
		for i := 0; i+1 < len(attrs); i += 2 {
			v, ok := set.Value(attribute.Key(attrs[i]))
			if !ok || v.AsString() != attrs[i+1] {
				return false
			}
		}
		return true
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return float64(dp.Value), true
					}
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return float64(dp.Value), true
					}
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					if match(dp.Attributes) {
						return dp.Value, true
					}
				}
			}
		}
	}
	return 0, false
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	return rm
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricRefreshStarted:   3,
				goAuthClient.MetricRefreshCoalesced: 12,
				goAuthClient.MetricGateRetried:      5,
				goAuthClient.MetricLoginSuccess:     2,
			},
			Histograms: map[goAuthClient.MetricID][]uint64{
				goAuthClient.MetricRefreshLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("authclient-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	rm := collect(t, reader)

	checks := []struct {
		name  string
		attrs []string
		want  float64
	}{
		{"authclient_refresh_total", []string{"outcome", "started"}, 3},
		{"authclient_refresh_total", []string{"outcome", "coalesced"}, 12},
		{"authclient_refresh_total", []string{"outcome", "rejected"}, 0},
		{"authclient_gate_total", []string{"result", "retried"}, 5},
		{"authclient_login_total", []string{"outcome", "success"}, 2},
		{"authclient_refresh_callers_per_call", nil, 5},
		{"authclient_refresh_latency_seconds_bucket", []string{"le", "0.025"}, 1},
		{"authclient_refresh_latency_seconds_bucket", []string{"le", "+Inf"}, 8},
		{"authclient_refresh_latency_seconds_count", nil, 8},
		{"authclient_audit_dropped_total", nil, 1},
	}
	for _, c := range checks {
		got, ok := point(t, rm, c.name, c.attrs...)
		if !ok {
			t.Fatalf("metric %s%v not collected", c.name, c.attrs)
		}
		if got != c.want {
			t.Fatalf("%s%v = %v, want %v", c.name, c.attrs, got, c.want)
		}
	}
}

func TestExporterCoversEveryClientCounter(t *testing.T) {
	seen := map[goAuthClient.MetricID]bool{}
	for _, f := range families {
		for _, m := range f.members {
			if seen[m.id] {
				t.Fatalf("metric %d exported twice", m.id)
			}
			seen[m.id] = true
		}
	}
	for _, def := range internaldefs.CounterDefs {
		if !seen[def.ID] {
			t.Fatalf("counter %s has no OTel family", def.Name)
		}
	}
}

func TestExporterOmitsCallersPerCallBeforeFirstRefresh(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{snapshot: goAuthClient.MetricsSnapshot{
		Counters: map[goAuthClient.MetricID]uint64{goAuthClient.MetricRefreshCoalesced: 4},
	}}
	exp, err := NewOTelExporterFromSource(provider.Meter("authclient-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer exp.Close()

	rm := collect(t, reader)
	if _, ok := point(t, rm, "authclient_refresh_callers_per_call"); ok {
		t.Fatal("expected no ratio without a refresh call")
	}
	if got, ok := point(t, rm, "authclient_refresh_total", "outcome", "coalesced"); !ok || got != 4 {
		t.Fatalf("coalesced = %v ok=%v, want 4", got, ok)
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	if _, err := NewOTelExporterFromSource(provider.Meter("authclient-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: goAuthClient.MetricsSnapshot{
			Counters: map[goAuthClient.MetricID]uint64{
				goAuthClient.MetricLoginSuccess: 1,
			},
		},
	}

	exp, err := NewOTelExporterFromSource(provider.Meter("authclient-test"), src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[goAuthClient.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}

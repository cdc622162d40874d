package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledNoIncrement(t *testing.T) {
	m := New(Config{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot when disabled")
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricRefreshStarted)
	m.Observe(MetricRefreshLatency, time.Second)
	if m.Value(MetricRefreshStarted) != 0 || m.Enabled() {
		t.Fatal("nil metrics must record nothing")
	}
}

func TestConcurrentIncrementSafe(t *testing.T) {
	m := New(Config{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRefreshCoalesced)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshCoalesced); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestHistogramBucketCorrectness(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	observations := []time.Duration{
		10 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricRefreshLatency, d)
	}

	buckets := m.Snapshot().Histograms[MetricRefreshLatency]
	if len(buckets) != HistBucketCount {
		t.Fatalf("expected %d buckets, got %d", HistBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestObserveIgnoresCounterIDsAndDisabledLatency(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Observe(MetricRefreshLatency, time.Millisecond)
	if _, ok := m.Snapshot().Histograms[MetricRefreshLatency]; ok {
		t.Fatal("histogram must be absent when latency is disabled")
	}

	m = New(Config{Enabled: true, EnableLatency: true})
	m.Observe(MetricLoginSuccess, time.Millisecond)
	m.Inc(MetricRefreshLatency)
	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 0 {
		t.Fatal("Observe must not touch counters")
	}
	if _, ok := snap.Counters[MetricRefreshLatency]; ok {
		t.Fatal("histogram id must not appear among counters")
	}
}

func TestSnapshotConsistency(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricGateRetried)
	m.Inc(MetricGateRetried)
	m.Observe(MetricRefreshLatency, 2*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricGateRetried] != 2 {
		t.Fatalf("expected MetricGateRetried=2 got %d", snap.Counters[MetricGateRetried])
	}
	if snap.Histograms[MetricRefreshLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricRefreshLatency][0])
	}
}

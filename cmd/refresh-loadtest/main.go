// Command refresh-loadtest drives refresh storms against an in-process fake
// auth API: every round expires all access tokens, then fires concurrent
// business calls through one client and checks they shared a single refresh.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/fakeapi"
	promexport "github.com/MrEthical07/goAuthClient/metrics/export/prometheus"
)

const (
	loadEmail    = "load@example.com"
	loadPassword = "load-password"
)

type options struct {
	rounds       int
	concurrency  int
	refreshDelay time.Duration
	redisAddr    string
	metricsAddr  string
}

func main() {
	var o options
	fs := pflag.NewFlagSet("refresh-loadtest", pflag.ExitOnError)
	fs.IntVarP(&o.rounds, "rounds", "r", 200, "number of refresh storms")
	fs.IntVarP(&o.concurrency, "concurrency", "c", 256, "concurrent requests per storm")
	fs.DurationVar(&o.refreshDelay, "refresh-delay", 20*time.Millisecond, "artificial latency of the refresh endpoint")
	fs.StringVar(&o.redisAddr, "redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	_ = fs.Parse(os.Args[1:])

	if o.rounds <= 0 || o.concurrency <= 0 {
		fmt.Fprintln(os.Stderr, "rounds and concurrency must be > 0")
		os.Exit(2)
	}
	if err := run(context.Background(), o); err != nil {
		fmt.Fprintf(os.Stderr, "refresh-loadtest: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	addr := o.redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return fmt.Errorf("start miniredis: %w", err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		fmt.Printf("using redis at %s\n", addr)
	}
	rdb := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	defer rdb.Close()

	fake, err := fakeapi.New(fakeapi.Options{AccessTTL: time.Hour})
	if err != nil {
		return err
	}
	fake.AddAccount(fakeapi.Account{Email: loadEmail, Password: loadPassword, CompanyID: "load"})
	fake.SetRefreshDelay(o.refreshDelay)
	srv := httptest.NewServer(fake.Handler())
	defer srv.Close()

	cfg := goAuthClient.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Storage.Backend = goAuthClient.StorageRedis
	cfg.Storage.Redis.Namespace = "loadtest"
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = o.concurrency
	client, err := goAuthClient.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithHTTPClient(&http.Client{Transport: transport}).
		Build()
	if err != nil {
		return err
	}
	defer client.Close()

	if o.metricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              o.metricsAddr,
			Handler:           promexport.NewCollector(client).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() { _ = metricsSrv.ListenAndServe() }()
		defer metricsSrv.Close()
		fmt.Printf("serving metrics on %s\n", o.metricsAddr)
	}

	res, err := client.Login(ctx, loadEmail, loadPassword)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if res.State != goAuthClient.StateAuthenticated {
		return fmt.Errorf("login: unexpected state %s", res.State)
	}

	url := srv.URL + "/business/ping"
	stats := runStorms(ctx, client.HTTPClient(), fake, url, o.rounds, o.concurrency)

	fmt.Println("---- results ----")
	printStats("requests", stats)
	snap := client.MetricsSnapshot()
	fmt.Printf("refresh: server_calls=%d started=%d coalesced=%d retried=%d\n",
		fake.RefreshCalls(),
		snap.Counters[goAuthClient.MetricRefreshStarted],
		snap.Counters[goAuthClient.MetricRefreshCoalesced],
		snap.Counters[goAuthClient.MetricGateRetried],
	)
	if calls := fake.RefreshCalls(); calls != int64(o.rounds) {
		return fmt.Errorf("expected %d refresh calls, got %d", o.rounds, calls)
	}
	return nil
}

func runStorms(ctx context.Context, hc *http.Client, fake *fakeapi.Server, url string, rounds, concurrency int) phaseStats {
	var (
		failures  int64
		latencies = make([]time.Duration, 0, rounds*concurrency)
		mu        sync.Mutex
	)

	start := time.Now()
	for r := 0; r < rounds; r++ {
		fake.ExpireAccessTokens()

		var wg sync.WaitGroup
		gate := make(chan struct{})
		for w := 0; w < concurrency; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				t0 := time.Now()
				err := ping(ctx, hc, url)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}()
		}
		close(gate)
		wg.Wait()
	}
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func ping(ctx context.Context, hc *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}

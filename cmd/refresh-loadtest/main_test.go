package main

import (
	"context"
	"testing"
	"time"
)

func TestRunSharesOneRefreshPerStorm(t *testing.T) {
	err := run(context.Background(), options{
		rounds:       3,
		concurrency:  16,
		refreshDelay: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
}

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	if got := percentile(samples, 50); got != 5 {
		t.Fatalf("p50 = %v", got)
	}
	if got := percentile(samples, 100); got != 10 {
		t.Fatalf("p100 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty = %v", got)
	}
}

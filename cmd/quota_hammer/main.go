// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// The quota_hammer binary drives concurrent Acquire calls against a bucket store and checks that
// no principal is ever granted more slots than its capacity.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/slotquota/cmd"
	"github.com/google/slotquota/cmd/internal/provider"
	"github.com/google/slotquota/cmd/internal/serverutil"
	"github.com/google/slotquota/monitoring/prometheus"
	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/config"
	"github.com/google/slotquota/util"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

var (
	quotaStore   = flag.String("quota_store", provider.DefaultQuotaStore, fmt.Sprintf("Bucket store to use. One of: %v", quota.StoreProviders()))
	httpEndpoint = flag.String("http_endpoint", "", "Endpoint for the metrics and healthz HTTP server (host:port, empty means disabled)")
	workers      = flag.Int("workers", 16, "Number of concurrent workers")
	requests     = flag.Int("requests", 1000, "Number of Acquire calls per worker")
	contexts     = flag.Int("contexts", 1, "Number of distinct contexts to spread requests over")
	users        = flag.Int("users", 4, "Number of distinct users per context")
	resetFirst   = flag.Bool("reset_first", true, "Reset every bucket before hammering")
	maxAttempts  = flag.Int("max_attempts", quota.DefaultMaxAttempts, "Maximum compare-and-replace attempts per Acquire")

	configFile = flag.String("config", "", "Config file containing flags, file contents can be overridden by command line flags")
)

// tally counts outcomes per principal.
type tally struct {
	mu          sync.Mutex
	granted     map[quota.Key]int
	exceeded    int
	unavailable int
}

func (t *tally) record(key quota.Key, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var qe *quota.QuotaExceededError
	switch {
	case err == nil:
		t.granted[key]++
	case errors.As(err, &qe):
		t.exceeded++
	default:
		t.unavailable++
	}
}

// principals returns the keys of users 1..users in contexts 1..contexts.
func principals(contexts, users int) ([]quota.Key, error) {
	if contexts <= 0 || users <= 0 {
		return nil, fmt.Errorf("--contexts and --users must be positive, got %d and %d", contexts, users)
	}
	keys := make([]quota.Key, 0, contexts*users)
	for c := 1; c <= contexts; c++ {
		for u := 1; u <= users; u++ {
			keys = append(keys, quota.Key{ContextID: int64(c), UserID: int64(u)})
		}
	}
	return keys, nil
}

func main() {
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	if *configFile != "" {
		if err := cmd.ParseFlagFile(*configFile); err != nil {
			klog.Exitf("Failed to load flags from config file %q: %s", *configFile, err)
		}
	}

	keys, err := principals(*contexts, *users)
	if err != nil {
		klog.Exitf("Invalid flags: %v", err)
	}

	mf := prometheus.MetricFactory{}
	quota.InitMetrics(mf)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go util.AwaitSignal(ctx, cancel)

	store, err := quota.NewStore(*quotaStore)
	if err != nil {
		klog.Exitf("Failed to create bucket store: %v", err)
	}
	cfg := config.StaticFromFlags()
	opts := quota.DefaultOptions()
	opts.MaxAttempts = *maxAttempts
	l := quota.NewLimiter(store, cfg, opts)

	if *httpEndpoint != "" {
		m := &serverutil.MetricsServer{
			Endpoint: *httpEndpoint,
			IsHealthy: func(ctx context.Context) error {
				_, err := l.Peek(ctx, quota.Key{})
				return err
			},
		}
		go func() {
			if err := m.Run(ctx); err != nil {
				klog.Errorf("HTTP server exited: %v", err)
			}
		}()
	}

	if *resetFirst {
		for _, k := range keys {
			if err := l.Reset(ctx, k); err != nil {
				klog.Exitf("Failed to reset %v: %v", k, err)
			}
		}
	}

	t := &tally{granted: make(map[quota.Key]int)}
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < *workers; w++ {
		g.Go(func() error {
			for i := 0; i < *requests; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				k := keys[rand.IntN(len(keys))]
				_, err := l.Acquire(gctx, k)
				t.record(k, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		klog.Warningf("Hammer interrupted: %v", err)
	}
	elapsed := time.Since(start)

	total, overGranted := 0, 0
	for _, k := range keys {
		n := t.granted[k]
		total += n
		klog.Infof("%v: %d granted", k, n)
		// Slots consumed before the run may still be held, so only an upper bound holds.
		if !cfg.Disabled && elapsed < time.Duration(cfg.IntervalMinutes)*time.Minute && n > cfg.Tokens {
			klog.Errorf("%v: %d grants exceed capacity %d", k, n, cfg.Tokens)
			overGranted++
		}
	}
	klog.Infof("%d granted, %d exceeded, %d unavailable in %v", total, t.exceeded, t.unavailable, elapsed)
	klog.Infof("%d compare-and-replace conflicts", int(quota.Metrics.CASConflicts.Value()))
	if overGranted > 0 {
		klog.Exitf("%d principal(s) were granted more than their capacity", overGranted)
	}
}

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

package quota_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/slotquota/monitoring"
	mtestonly "github.com/google/slotquota/monitoring/testonly"
	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/config"
	"github.com/google/slotquota/quota/memstore"
	"github.com/google/slotquota/util/clock"
)

var (
	t0  = time.UnixMilli(1700000000000)
	key = quota.Key{ContextID: 7, UserID: 3}
)

func init() {
	quota.InitMetrics(monitoring.InertMetricFactory{})
}

func intp(i int) *int { return &i }

func layered(capacity, intervalMinutes int) *config.Layered {
	return config.NewLayered(&config.File{Defaults: config.Params{
		Capacity:               intp(capacity),
		RefreshIntervalMinutes: intp(intervalMinutes),
	}})
}

func newLimiter(store quota.BucketStore, cfg quota.ConfigSource, ts clock.TimeSource) *quota.Limiter {
	return quota.NewLimiter(store, cfg, quota.Options{TimeSource: ts})
}

func mustGet(t *testing.T, s *memstore.Store) quota.Bucket {
	t.Helper()
	b, ok, err := s.Get(context.Background(), key)
	if err != nil || !ok {
		t.Fatalf("Get(%v) = (_, %v, %v), want (_, true, nil)", key, ok, err)
	}
	return b
}

func TestAcquireUntilExhausted(t *testing.T) {
	for _, tc := range []struct {
		capacity, intervalMinutes, wantHours int
	}{
		{capacity: 1, intervalMinutes: 1, wantHours: 1},
		{capacity: 3, intervalMinutes: 60, wantHours: 1},
		{capacity: 5, intervalMinutes: 90, wantHours: 2},
		{capacity: 10, intervalMinutes: 1440, wantHours: 24},
	} {
		ctx := context.Background()
		l := newLimiter(memstore.New(), config.Static{Tokens: tc.capacity, IntervalMinutes: tc.intervalMinutes}, clock.NewFake(t0))
		for want := tc.capacity; want > 0; want-- {
			got, err := l.Acquire(ctx, key)
			if err != nil || got != want {
				t.Fatalf("capacity %d: Acquire() = (%d, %v), want (%d, nil)", tc.capacity, got, err, want)
			}
		}
		_, err := l.Acquire(ctx, key)
		var qe *quota.QuotaExceededError
		if !errors.As(err, &qe) {
			t.Fatalf("capacity %d: Acquire() on exhausted bucket err = %v, want *QuotaExceededError", tc.capacity, err)
		}
		if qe.HoursUntilReset != tc.wantHours || qe.Key != key {
			t.Errorf("capacity %d: Acquire() err = %+v, want HoursUntilReset %d for %v", tc.capacity, qe, tc.wantHours, key)
		}
	}
}

func TestAcquireAfterRefresh(t *testing.T) {
	ctx := context.Background()
	ts := clock.NewFake(t0)
	s := memstore.New()
	l := newLimiter(s, config.Static{Tokens: 3, IntervalMinutes: 60}, ts)
	for i := 0; i < 3; i++ {
		if _, err := l.Acquire(ctx, key); err != nil {
			t.Fatalf("Acquire(): %v", err)
		}
	}

	ts.Advance(61 * time.Minute)
	if got, err := l.Peek(ctx, key); err != nil || got != 3 {
		t.Errorf("Peek() = (%d, %v), want (3, nil)", got, err)
	}
	if got, err := l.Acquire(ctx, key); err != nil || got != 3 {
		t.Fatalf("Acquire() = (%d, %v), want (3, nil)", got, err)
	}
	want := []int64{ts.Now().UnixMilli(), t0.UnixMilli(), t0.UnixMilli()}
	if diff := cmp.Diff(want, mustGet(t, s).Slots()); diff != "" {
		t.Errorf("slots diff (-want +got):\n%s", diff)
	}
}

func TestAcquireResize(t *testing.T) {
	ctx := context.Background()
	ts := clock.NewFake(t0)
	s := memstore.New()
	cfg := layered(3, 60)
	l := newLimiter(s, cfg, ts)

	resets := mtestonly.NewCounterSnapshot(quota.Metrics.BucketResets)
	resets.Record("resized")
	for i := 0; i < 2; i++ {
		if _, err := l.Acquire(ctx, key); err != nil {
			t.Fatalf("Acquire(): %v", err)
		}
	}

	cfg.Set(&config.File{Defaults: config.Params{Capacity: intp(5), RefreshIntervalMinutes: intp(60)}})
	if got, err := l.Peek(ctx, key); err != nil || got != 5 {
		t.Errorf("Peek() after resize = (%d, %v), want (5, nil)", got, err)
	}
	if got, err := l.Acquire(ctx, key); err != nil || got != 5 {
		t.Fatalf("Acquire() after resize = (%d, %v), want (5, nil)", got, err)
	}
	want := []int64{t0.UnixMilli(), 0, 0, 0, 0}
	if diff := cmp.Diff(want, mustGet(t, s).Slots()); diff != "" {
		t.Errorf("slots diff (-want +got):\n%s", diff)
	}
	if got := resets.Delta("resized"); got != 1 {
		t.Errorf("resized resets delta = %v, want 1", got)
	}
}

func TestDisabled(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLimiter(s, config.Static{Disabled: true}, clock.NewFake(t0))
	for i := 0; i < 3; i++ {
		if got, err := l.Acquire(ctx, key); err != nil || got != quota.MaxTokens {
			t.Errorf("Acquire() = (%d, %v), want (MaxTokens, nil)", got, err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("store holds %d buckets, want 0", s.Len())
	}
}

func TestMissingConfig(t *testing.T) {
	cfg := config.NewLayered(&config.File{})
	_, err := newLimiter(memstore.New(), cfg, clock.NewFake(t0)).Acquire(context.Background(), key)
	var ce *quota.ConfigError
	if !errors.As(err, &ce) || ce.Field != "capacity" {
		t.Errorf("Acquire() err = %v, want *ConfigError for capacity", err)
	}
}

func TestHugeIntervalIsConfigError(t *testing.T) {
	l := newLimiter(memstore.New(), config.Static{Tokens: 2, IntervalMinutes: 200_000_000}, clock.NewFake(t0))
	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), key)
		var ce *quota.ConfigError
		if !errors.As(err, &ce) || ce.Field != "refresh interval" {
			t.Fatalf("Acquire() #%d err = %v, want *ConfigError for refresh interval", i, err)
		}
	}
}

// reloadingSource swaps in next as soon as Enabled is called on the live configuration.
type reloadingSource struct {
	*config.Layered
	next *config.File
}

func (r reloadingSource) Enabled(ctx context.Context, key quota.Key) (bool, error) {
	r.Set(r.next)
	return r.Layered.Enabled(ctx, key)
}

func TestAcquireReadsOneConfigSnapshot(t *testing.T) {
	cfg := reloadingSource{
		Layered: layered(3, 60),
		next:    &config.File{Defaults: config.Params{Capacity: intp(5), RefreshIntervalMinutes: intp(1)}},
	}
	l := newLimiter(memstore.New(), cfg, clock.NewFake(t0))
	// Without a snapshot the reload would land between Enabled and Capacity.
	if got, err := l.Acquire(context.Background(), key); err != nil || got != 3 {
		t.Errorf("Acquire() = (%d, %v), want (3, nil)", got, err)
	}
}

func TestPeekDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLimiter(s, config.Static{Tokens: 2, IntervalMinutes: 60}, clock.NewFake(t0))

	if got, err := l.Peek(ctx, key); err != nil || got != 2 {
		t.Errorf("Peek() of missing bucket = (%d, %v), want (2, nil)", got, err)
	}
	if s.Len() != 0 {
		t.Errorf("Peek() created a bucket")
	}
	if _, err := l.Acquire(ctx, key); err != nil {
		t.Fatalf("Acquire(): %v", err)
	}
	for i := 0; i < 2; i++ {
		if got, err := l.Peek(ctx, key); err != nil || got != 1 {
			t.Errorf("Peek() = (%d, %v), want (1, nil)", got, err)
		}
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	l := newLimiter(s, config.Static{Tokens: 2, IntervalMinutes: 60}, clock.NewFake(t0))
	resets := mtestonly.NewCounterSnapshot(quota.Metrics.BucketResets)
	resets.Record("admin")

	// Resetting a missing bucket creates it.
	if err := l.Reset(ctx, key); err != nil {
		t.Fatalf("Reset(): %v", err)
	}
	if !mustGet(t, s).Equal(quota.NewBucket(2)) {
		t.Errorf("bucket after Reset = %v, want fresh", mustGet(t, s))
	}

	for i := 0; i < 2; i++ {
		if _, err := l.Acquire(ctx, key); err != nil {
			t.Fatalf("Acquire(): %v", err)
		}
	}
	if err := l.Reset(ctx, key); err != nil {
		t.Fatalf("Reset(): %v", err)
	}
	if got, err := l.Acquire(ctx, key); err != nil || got != 2 {
		t.Errorf("Acquire() after Reset = (%d, %v), want (2, nil)", got, err)
	}
	if got := resets.Delta("admin"); got != 2 {
		t.Errorf("admin resets delta = %v, want 2", got)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newLimiter(memstore.New(), config.Static{Tokens: 2, IntervalMinutes: 60}, clock.NewFake(t0)).Acquire(ctx, key)
	if !errors.Is(err, quota.ErrServiceUnavailable) || !errors.Is(err, context.Canceled) {
		t.Errorf("Acquire() err = %v, want ErrServiceUnavailable wrapping context.Canceled", err)
	}
}

func TestAcquireMetrics(t *testing.T) {
	ctx := context.Background()
	requests := mtestonly.NewCounterSnapshot(quota.Metrics.AcquireRequests)
	for _, r := range []string{"granted", "exceeded", "bypassed"} {
		requests.Record(r)
	}
	attempts, _ := quota.Metrics.AcquireAttempts.Info()

	l := newLimiter(memstore.New(), config.Static{Tokens: 1, IntervalMinutes: 60}, clock.NewFake(t0))
	l.Acquire(ctx, key)
	l.Acquire(ctx, key)
	newLimiter(memstore.New(), config.Static{Disabled: true}, clock.NewFake(t0)).Acquire(ctx, key)

	for r, want := range map[string]float64{"granted": 1, "exceeded": 1, "bypassed": 1} {
		if got := requests.Delta(r); got != want {
			t.Errorf("%s requests delta = %v, want %v", r, got, want)
		}
	}
	// Bypassed calls don't run the update loop.
	if got, _ := quota.Metrics.AcquireAttempts.Info(); got-attempts != 2 {
		t.Errorf("attempts observations delta = %d, want 2", got-attempts)
	}
}

// flakyStore fails every third compare-and-replace without applying it, as if another writer had
// won the race.
type flakyStore struct {
	*memstore.Store
	calls, injected atomic.Int64
}

func (f *flakyStore) CompareAndReplace(ctx context.Context, k quota.Key, old, next quota.Bucket) (bool, error) {
	if f.calls.Add(1)%3 == 0 {
		f.injected.Add(1)
		return false, nil
	}
	return f.Store.CompareAndReplace(ctx, k, old, next)
}

func TestConcurrentAcquire(t *testing.T) {
	for _, tc := range []struct {
		callers, capacity int
	}{
		{callers: 50, capacity: 10},
		{callers: 8, capacity: 20},
		{callers: 32, capacity: 32},
	} {
		ctx := context.Background()
		store := &flakyStore{Store: memstore.New()}
		l := quota.NewLimiter(store, config.Static{Tokens: tc.capacity, IntervalMinutes: 60},
			quota.Options{MaxAttempts: 10000, TimeSource: clock.NewFake(t0)})

		var (
			mu      sync.Mutex
			granted []int
			wg      sync.WaitGroup
		)
		for i := 0; i < tc.callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := l.Acquire(ctx, key)
				var qe *quota.QuotaExceededError
				switch {
				case err == nil:
					mu.Lock()
					granted = append(granted, got)
					mu.Unlock()
				case !errors.As(err, &qe):
					t.Errorf("Acquire() err = %v", err)
				}
			}()
		}
		wg.Wait()

		want := min(tc.callers, tc.capacity)
		if len(granted) != want {
			t.Errorf("%d callers, capacity %d: %d grants, want %d", tc.callers, tc.capacity, len(granted), want)
		}
		// Grants return the count before consumption, so each value from capacity down is seen once.
		sort.Sort(sort.Reverse(sort.IntSlice(granted)))
		var wantGranted []int
		for g := tc.capacity; g > tc.capacity-want; g-- {
			wantGranted = append(wantGranted, g)
		}
		if diff := cmp.Diff(wantGranted, granted); diff != "" {
			t.Errorf("%d callers, capacity %d: granted values diff (-want +got):\n%s", tc.callers, tc.capacity, diff)
		}

		b := mustGet(t, store.Store)
		used := 0
		for _, ts := range b.Slots() {
			if ts == t0.UnixMilli() {
				used++
			} else if ts != 0 {
				t.Errorf("slot holds %d, want 0 or %d", ts, t0.UnixMilli())
			}
		}
		if used != want {
			t.Errorf("%d slots used, want %d", used, want)
		}
		if store.injected.Load() == 0 {
			t.Error("no compare-and-replace failures were injected")
		}
	}
}

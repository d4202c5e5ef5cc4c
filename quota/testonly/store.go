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

// Package testonly contains conformance tests shared by quota.BucketStore implementations.
package testonly

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/config"
	"github.com/google/slotquota/util/clock"
)

// UniqueKey returns a key unlikely to exist in a shared backend from an earlier test run.
func UniqueKey(userID int64) quota.Key {
	return quota.Key{ContextID: time.Now().UnixNano(), UserID: userID}
}

// bucketWith returns a bucket of capacity whose first slot was used at ts.
func bucketWith(capacity int, ts time.Time) quota.Bucket {
	b, _, _ := quota.NewBucket(capacity).RefreshAndAcquire(ts, time.Hour)
	return b
}

// RunBucketStoreTests runs the BucketStore conformance tests against s.
func RunBucketStoreTests(t *testing.T, s quota.BucketStore) {
	t.Helper()
	t.Run("GetAbsent", func(t *testing.T) { testGetAbsent(t, s) })
	t.Run("PutIfAbsent", func(t *testing.T) { testPutIfAbsent(t, s) })
	t.Run("CompareAndReplace", func(t *testing.T) { testCompareAndReplace(t, s) })
	t.Run("CompareAndReplaceAbsent", func(t *testing.T) { testCompareAndReplaceAbsent(t, s) })
	t.Run("KeysIndependent", func(t *testing.T) { testKeysIndependent(t, s) })
	t.Run("ConcurrentCompareAndReplace", func(t *testing.T) { testConcurrentCompareAndReplace(t, s) })
}

func testGetAbsent(t *testing.T, s quota.BucketStore) {
	_, ok, err := s.Get(context.Background(), UniqueKey(1))
	if err != nil {
		t.Fatalf("Get() returned err = %v", err)
	}
	if ok {
		t.Error("Get() of unknown key returned ok = true")
	}
}

func testPutIfAbsent(t *testing.T, s quota.BucketStore) {
	ctx := context.Background()
	key := UniqueKey(2)
	first := quota.NewBucket(3)
	second := quota.NewBucket(5)

	if put, err := s.PutIfAbsent(ctx, key, first); err != nil || !put {
		t.Fatalf("PutIfAbsent(first) = (%v, %v), want (true, nil)", put, err)
	}
	if put, err := s.PutIfAbsent(ctx, key, second); err != nil || put {
		t.Fatalf("PutIfAbsent(second) = (%v, %v), want (false, nil)", put, err)
	}
	got, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get() = (_, %v, %v), want (_, true, nil)", ok, err)
	}
	if !got.Equal(first) {
		t.Errorf("Get() = %v, want %v", got, first)
	}
}

func testCompareAndReplace(t *testing.T, s quota.BucketStore) {
	ctx := context.Background()
	key := UniqueKey(3)
	now := time.UnixMilli(1700000000000)
	initial := quota.NewBucket(2)
	next := bucketWith(2, now)
	stale := bucketWith(2, now.Add(-time.Minute))

	if _, err := s.PutIfAbsent(ctx, key, initial); err != nil {
		t.Fatalf("PutIfAbsent() returned err = %v", err)
	}
	if swapped, err := s.CompareAndReplace(ctx, key, stale, next); err != nil || swapped {
		t.Fatalf("CompareAndReplace(stale) = (%v, %v), want (false, nil)", swapped, err)
	}
	if swapped, err := s.CompareAndReplace(ctx, key, initial, next); err != nil || !swapped {
		t.Fatalf("CompareAndReplace(initial) = (%v, %v), want (true, nil)", swapped, err)
	}
	if swapped, err := s.CompareAndReplace(ctx, key, initial, stale); err != nil || swapped {
		t.Fatalf("second CompareAndReplace(initial) = (%v, %v), want (false, nil)", swapped, err)
	}

	got, _, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get() returned err = %v", err)
	}
	if diff := cmp.Diff(next.Slots(), got.Slots()); diff != "" {
		t.Errorf("Get() slots diff (-want +got):\n%s", diff)
	}
}

func testCompareAndReplaceAbsent(t *testing.T, s quota.BucketStore) {
	ctx := context.Background()
	key := UniqueKey(4)
	if swapped, err := s.CompareAndReplace(ctx, key, quota.NewBucket(1), quota.NewBucket(2)); err != nil || swapped {
		t.Fatalf("CompareAndReplace() = (%v, %v), want (false, nil)", swapped, err)
	}
	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Errorf("Get() = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func testKeysIndependent(t *testing.T, s quota.BucketStore) {
	ctx := context.Background()
	a, b := UniqueKey(5), UniqueKey(6)
	if _, err := s.PutIfAbsent(ctx, a, quota.NewBucket(1)); err != nil {
		t.Fatalf("PutIfAbsent(a) returned err = %v", err)
	}
	if put, err := s.PutIfAbsent(ctx, b, quota.NewBucket(4)); err != nil || !put {
		t.Fatalf("PutIfAbsent(b) = (%v, %v), want (true, nil)", put, err)
	}
	got, _, err := s.Get(ctx, b)
	if err != nil {
		t.Fatalf("Get(b) returned err = %v", err)
	}
	if got.Capacity() != 4 {
		t.Errorf("Get(b).Capacity() = %v, want 4", got.Capacity())
	}
}

func testConcurrentCompareAndReplace(t *testing.T, s quota.BucketStore) {
	ctx := context.Background()
	key := UniqueKey(7)
	initial := quota.NewBucket(4)
	if _, err := s.PutIfAbsent(ctx, key, initial); err != nil {
		t.Fatalf("PutIfAbsent() returned err = %v", err)
	}

	const writers = 16
	base := time.UnixMilli(1700000000000)
	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			next := bucketWith(4, base.Add(time.Duration(i+1)*time.Millisecond))
			swapped, err := s.CompareAndReplace(ctx, key, initial, next)
			if err != nil {
				t.Errorf("CompareAndReplace() returned err = %v", err)
				return
			}
			if swapped {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if got := wins.Load(); got != 1 {
		t.Errorf("%d concurrent CompareAndReplace calls won, want exactly 1", got)
	}
}

// RunLimiterTests exercises a quota.Limiter end to end on top of s.
func RunLimiterTests(t *testing.T, s quota.BucketStore) {
	t.Helper()
	ctx := context.Background()
	key := UniqueKey(8)
	ts := clock.NewFake(time.UnixMilli(1700000000000))
	l := quota.NewLimiter(s, config.Static{Tokens: 3, IntervalMinutes: 60}, quota.Options{MaxAttempts: 1000, TimeSource: ts})

	for want := 3; want > 0; want-- {
		got, err := l.Acquire(ctx, key)
		if err != nil {
			t.Fatalf("Acquire() returned err = %v", err)
		}
		if got != want {
			t.Errorf("Acquire() = %d, want %d", got, want)
		}
		ts.Advance(time.Minute)
	}
	_, err := l.Acquire(ctx, key)
	var qe *quota.QuotaExceededError
	if !errors.As(err, &qe) || qe.HoursUntilReset != 1 {
		t.Fatalf("Acquire() on empty bucket err = %v, want *quota.QuotaExceededError with 1 hour", err)
	}

	ts.Advance(57 * time.Minute)
	if got, err := l.Acquire(ctx, key); err != nil || got != 1 {
		t.Errorf("Acquire() after first slot refreshed = (%d, %v), want (1, nil)", got, err)
	}
	if err := l.Reset(ctx, key); err != nil {
		t.Fatalf("Reset() returned err = %v", err)
	}
	if got, err := l.Peek(ctx, key); err != nil || got != 3 {
		t.Errorf("Peek() after Reset = (%d, %v), want (3, nil)", got, err)
	}
}

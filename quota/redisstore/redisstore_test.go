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

package redisstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/testonly"
)

// newClient connects to the server named by TEST_REDIS_ADDR, or localhost, skipping the test if
// none is reachable.
func newClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping().Err(); err != nil {
		rdb.Close()
		t.Skipf("Redis not available at %v: %v", addr, err)
	}
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func newStore(t *testing.T, rdb *redis.Client, ttl time.Duration) *Store {
	t.Helper()
	s := New(rdb, Options{Prefix: fmt.Sprintf("test/%d/", time.Now().UnixNano()), TTL: ttl})
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("failed to load script: %v", err)
	}
	return s
}

func TestStore(t *testing.T) {
	testonly.RunBucketStoreTests(t, newStore(t, newClient(t), 0))
}

func TestStoreWithTTL(t *testing.T) {
	testonly.RunBucketStoreTests(t, newStore(t, newClient(t), time.Hour))
}

func TestLimiter(t *testing.T) {
	testonly.RunLimiterTests(t, newStore(t, newClient(t), 0))
}

func TestTTL(t *testing.T) {
	ctx := context.Background()
	rdb := newClient(t)
	s := newStore(t, rdb, time.Hour)
	key := quota.Key{ContextID: 1, UserID: 1}
	b := quota.NewBucket(2)

	if _, err := s.PutIfAbsent(ctx, key, b); err != nil {
		t.Fatalf("PutIfAbsent(): %v", err)
	}
	ttl, err := rdb.PTTL(s.redisKey(key)).Result()
	if err != nil {
		t.Fatalf("PTTL(): %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("PTTL() after PutIfAbsent = %v, want (0, 1h]", ttl)
	}

	// Shorten the expiry so the swap below visibly renews it.
	if err := rdb.PExpire(s.redisKey(key), time.Minute).Err(); err != nil {
		t.Fatalf("PExpire(): %v", err)
	}
	next, _, _ := b.RefreshAndAcquire(time.UnixMilli(1700000000000), time.Hour)
	if swapped, err := s.CompareAndReplace(ctx, key, b, next); err != nil || !swapped {
		t.Fatalf("CompareAndReplace() = (%v, %v), want (true, nil)", swapped, err)
	}
	if ttl, err = rdb.PTTL(s.redisKey(key)).Result(); err != nil {
		t.Fatalf("PTTL(): %v", err)
	}
	if ttl <= time.Minute {
		t.Errorf("PTTL() after CompareAndReplace = %v, want > 1m", ttl)
	}
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	rdb := newClient(t)
	s := newStore(t, rdb, 0)
	key := quota.Key{ContextID: 2, UserID: 2}
	if err := rdb.Set(s.redisKey(key), "\xff\xff", 0).Err(); err != nil {
		t.Fatalf("Set(): %v", err)
	}
	if _, _, err := s.Get(ctx, key); !errors.Is(err, quota.ErrServiceUnavailable) {
		t.Errorf("Get() of corrupt value err = %v, want ErrServiceUnavailable", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, newClient(t), 0)
	key := quota.Key{ContextID: 3, UserID: 3}
	if _, err := s.PutIfAbsent(ctx, key, quota.NewBucket(1)); err != nil {
		t.Fatalf("PutIfAbsent(): %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Errorf("Get() after Delete = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestUnreachable(t *testing.T) {
	// Nothing listens on port 1.
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:1", DialTimeout: 100 * time.Millisecond})
	defer rdb.Close()
	s := New(rdb, Options{})
	_, _, err := s.Get(context.Background(), quota.Key{ContextID: 1, UserID: 1})
	if !errors.Is(err, quota.ErrServiceUnavailable) {
		t.Errorf("Get() err = %v, want ErrServiceUnavailable", err)
	}
}

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
	"flag"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/slotquota/quota"
	"k8s.io/klog/v2"
)

// StoreName identifies the Redis store provider.
const StoreName = "redis"

var (
	redisAddr   = flag.String("redis_addr", "", "Address (host:port) of the Redis server holding quota buckets")
	redisDB     = flag.Int("redis_db", 0, "Redis database number")
	redisPrefix = flag.String("redis_bucket_prefix", "slotquota/", "Key prefix for quota buckets stored in Redis")
	redisTTL    = flag.Duration("redis_bucket_ttl", 0, "Expire buckets not written for this long; 0 disables expiry. Must be at least the longest refresh interval")
)

func init() {
	if err := quota.RegisterStoreProvider(StoreName, newRedisStore); err != nil {
		klog.Fatalf("Failed to register bucket store %v: %v", StoreName, err)
	}
}

func newRedisStore() (quota.BucketStore, error) {
	if *redisAddr == "" {
		return nil, fmt.Errorf("can't create redis bucket store - redis_addr flag is unset")
	}
	client := redis.NewClient(&redis.Options{Addr: *redisAddr, DB: *redisDB})
	s := New(client, Options{Prefix: *redisPrefix, TTL: *redisTTL})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Load(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to load script into redis at %v: %v", *redisAddr, err)
	}
	klog.Infof("Using Redis BucketStore at %v", *redisAddr)
	return s, nil
}

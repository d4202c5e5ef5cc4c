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

// Package redisstore contains a quota.BucketStore backed by Redis.
//
// Each bucket is a single Redis string holding the encoded bucket. Creation uses SETNX and
// replacement runs a Lua script that compares the stored bytes before writing, so both are atomic
// on a single Redis node or Redis Cluster shard.
package redisstore

import (
	"context"
	"time"

	"github.com/go-redis/redis"
	"github.com/google/slotquota/quota"
)

// RedisClient is the subset of the Redis client API used by Store. It is satisfied by
// *redis.Client, *redis.ClusterClient and *redis.Ring.
type RedisClient interface {
	Get(key string) *redis.StringCmd
	SetNX(key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(keys ...string) *redis.IntCmd

	// Required to load and execute scripts
	Eval(script string, keys []string, args ...interface{}) *redis.Cmd
	EvalSha(sha1 string, keys []string, args ...interface{}) *redis.Cmd
	ScriptExists(hashes ...string) *redis.BoolSliceCmd
	ScriptLoad(script string) *redis.StringCmd
}

// KEYS[1]: bucket key. ARGV[1]: expected value. ARGV[2]: new value. ARGV[3]: TTL in ms, or 0.
var compareAndSetScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current ~= ARGV[1] then
  return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
else
  redis.call("SET", KEYS[1], ARGV[2])
end
return 1
`)

// Options configure a Store.
type Options struct {
	// Prefix is prepended to every bucket key.
	Prefix string
	// TTL expires buckets that haven't been written for this long. Zero disables expiry.
	// It must be at least the longest refresh interval in use: an expired bucket is recreated
	// with every slot free.
	TTL time.Duration
}

// Store is a quota.BucketStore backed by Redis.
type Store struct {
	c    RedisClient
	opts Options
}

var _ quota.BucketStore = &Store{}

// New returns a Store that uses the provided Redis client.
func New(client RedisClient, opts Options) *Store {
	return &Store{c: client, opts: opts}
}

// Load preloads the compare-and-set script, so later calls only send its hash.
// Calling it is optional.
func (s *Store) Load(ctx context.Context) error {
	return compareAndSetScript.Load(withClientContext(ctx, s.c)).Err()
}

func (s *Store) redisKey(key quota.Key) string {
	return s.opts.Prefix + key.Name()
}

// Get implements quota.BucketStore.
func (s *Store) Get(ctx context.Context, key quota.Key) (quota.Bucket, bool, error) {
	data, err := withClientContext(ctx, s.c).Get(s.redisKey(key)).Bytes()
	if err == redis.Nil {
		return quota.Bucket{}, false, nil
	}
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("redis get", err)
	}
	b, err := quota.ParseBucket(data)
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("redis decode "+key.Name(), err)
	}
	return b, true, nil
}

// PutIfAbsent implements quota.BucketStore.
func (s *Store) PutIfAbsent(ctx context.Context, key quota.Key, b quota.Bucket) (bool, error) {
	val, err := b.MarshalBinary()
	if err != nil {
		return false, err
	}
	created, err := withClientContext(ctx, s.c).SetNX(s.redisKey(key), val, s.opts.TTL).Result()
	if err != nil {
		return false, quota.Unavailable("redis setnx", err)
	}
	return created, nil
}

// CompareAndReplace implements quota.BucketStore.
func (s *Store) CompareAndReplace(ctx context.Context, key quota.Key, old, next quota.Bucket) (bool, error) {
	oldVal, err := old.MarshalBinary()
	if err != nil {
		return false, err
	}
	nextVal, err := next.MarshalBinary()
	if err != nil {
		return false, err
	}
	swapped, err := compareAndSetScript.Run(
		withClientContext(ctx, s.c),
		[]string{s.redisKey(key)},
		oldVal,
		nextVal,
		s.opts.TTL.Milliseconds(),
	).Int64()
	if err != nil {
		return false, quota.Unavailable("redis compare-and-set", err)
	}
	return swapped == 1, nil
}

// Delete removes the bucket for key, if any.
func (s *Store) Delete(ctx context.Context, key quota.Key) error {
	if err := withClientContext(ctx, s.c).Del(s.redisKey(key)).Err(); err != nil {
		return quota.Unavailable("redis del", err)
	}
	return nil
}

// Because each Redis client type has a WithContext method returning its own concrete type, it
// can't be part of RedisClient. This performs type assertions to call the right one.
func withClientContext(ctx context.Context, client RedisClient) RedisClient {
	type withContextable interface {
		WithContext(context.Context) RedisClient
	}

	switch c := client.(type) {
	case *redis.Client:
		return c.WithContext(ctx)
	case *redis.ClusterClient:
		return c.WithContext(ctx)
	case *redis.Ring:
		return c.WithContext(ctx)
	case withContextable:
		return c.WithContext(ctx)
	}
	return client
}

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

// Package etcdstore contains a quota.BucketStore backed by etcd. Buckets are stored under
// <prefix>contexts/<id>/users/<id> and swapped with single-key transactions.
package etcdstore

import (
	"context"

	"github.com/google/slotquota/quota"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultPrefix is prepended to every bucket key unless configured otherwise.
const DefaultPrefix = "slotquota/"

// Store is a quota.BucketStore backed by etcd.
type Store struct {
	client *clientv3.Client
	prefix string
}

var _ quota.BucketStore = &Store{}

// New returns a Store that keeps buckets under prefix.
func New(client *clientv3.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix}
}

func (s *Store) path(key quota.Key) string {
	return s.prefix + key.Name()
}

// Get implements quota.BucketStore.
func (s *Store) Get(ctx context.Context, key quota.Key) (quota.Bucket, bool, error) {
	resp, err := s.client.Get(ctx, s.path(key))
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("etcd get", err)
	}
	if len(resp.Kvs) == 0 {
		return quota.Bucket{}, false, nil
	}
	b, err := quota.ParseBucket(resp.Kvs[0].Value)
	if err != nil {
		return quota.Bucket{}, false, quota.Unavailable("etcd decode "+key.Name(), err)
	}
	return b, true, nil
}

// PutIfAbsent implements quota.BucketStore.
func (s *Store) PutIfAbsent(ctx context.Context, key quota.Key, b quota.Bucket) (bool, error) {
	val, err := b.MarshalBinary()
	if err != nil {
		return false, err
	}
	path := s.path(key)
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.CreateRevision(path), "=", 0)).
		Then(clientv3.OpPut(path, string(val))).
		Commit()
	if err != nil {
		return false, quota.Unavailable("etcd create", err)
	}
	return resp.Succeeded, nil
}

// CompareAndReplace implements quota.BucketStore.
// Bucket encoding is deterministic, so comparing stored bytes compares bucket contents.
func (s *Store) CompareAndReplace(ctx context.Context, key quota.Key, old, next quota.Bucket) (bool, error) {
	oldVal, err := old.MarshalBinary()
	if err != nil {
		return false, err
	}
	nextVal, err := next.MarshalBinary()
	if err != nil {
		return false, err
	}
	path := s.path(key)
	// A value comparison against a missing key never succeeds.
	resp, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.Value(path), "=", string(oldVal))).
		Then(clientv3.OpPut(path, string(nextVal))).
		Commit()
	if err != nil {
		return false, quota.Unavailable("etcd swap", err)
	}
	return resp.Succeeded, nil
}

// Delete removes the bucket for key, if any.
func (s *Store) Delete(ctx context.Context, key quota.Key) error {
	if _, err := s.client.Delete(ctx, s.path(key)); err != nil {
		return quota.Unavailable("etcd delete", err)
	}
	return nil
}

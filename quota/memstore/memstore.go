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

// Package memstore contains an in-memory quota.BucketStore, for single-process deployments and
// tests.
package memstore

import (
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/google/slotquota/quota"
	"k8s.io/klog/v2"
)

// StoreName identifies the in-memory store provider.
const StoreName = "memory"

var (
	instanceOnce sync.Once
	instance     *Store
)

func init() {
	if err := quota.RegisterStoreProvider(StoreName, func() (quota.BucketStore, error) {
		instanceOnce.Do(func() { instance = New() })
		klog.Info("Using in-memory BucketStore")
		return instance, nil
	}); err != nil {
		klog.Fatalf("Failed to register bucket store %v: %v", StoreName, err)
	}
}

type entry struct {
	key    quota.Key
	bucket quota.Bucket
}

func less(a, b entry) bool {
	if a.key.ContextID != b.key.ContextID {
		return a.key.ContextID < b.key.ContextID
	}
	return a.key.UserID < b.key.UserID
}

// Store is a quota.BucketStore backed by a B-tree ordered by (ContextID, UserID).
// A single mutex makes every operation linearizable.
type Store struct {
	mu   sync.Mutex
	tree *btree.BTreeG[entry]
}

var _ quota.BucketStore = &Store{}

// New returns an empty Store.
func New() *Store {
	return &Store{tree: btree.NewG(32, less)}
}

// Get implements quota.BucketStore.
func (s *Store) Get(ctx context.Context, key quota.Key) (quota.Bucket, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tree.Get(entry{key: key})
	return e.bucket, ok, nil
}

// PutIfAbsent implements quota.BucketStore.
func (s *Store) PutIfAbsent(ctx context.Context, key quota.Key, b quota.Bucket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree.Has(entry{key: key}) {
		return false, nil
	}
	s.tree.ReplaceOrInsert(entry{key: key, bucket: b})
	return true, nil
}

// CompareAndReplace implements quota.BucketStore.
func (s *Store) CompareAndReplace(ctx context.Context, key quota.Key, old, next quota.Bucket) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tree.Get(entry{key: key})
	if !ok || !e.bucket.Equal(old) {
		return false, nil
	}
	s.tree.ReplaceOrInsert(entry{key: key, bucket: next})
	return true, nil
}

// Delete removes key's bucket, if any.
func (s *Store) Delete(ctx context.Context, key quota.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Delete(entry{key: key})
	return nil
}

// Len returns the number of buckets held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.Len()
}

// Ascend calls fn for every bucket in key order, until fn returns false.
// fn must not call back into s.
func (s *Store) Ascend(fn func(quota.Key, quota.Bucket) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Ascend(func(e entry) bool {
		return fn(e.key, e.bucket)
	})
}

// AscendContext is like Ascend, restricted to the buckets of a single context.
func (s *Store) AscendContext(contextID int64, fn func(quota.Key, quota.Bucket) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.AscendGreaterOrEqual(entry{key: quota.Key{ContextID: contextID, UserID: minInt64}}, func(e entry) bool {
		if e.key.ContextID != contextID {
			return false
		}
		return fn(e.key, e.bucket)
	})
}

const minInt64 = -1 << 63

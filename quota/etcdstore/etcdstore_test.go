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

package etcdstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/testonly"
	"github.com/google/slotquota/testonly/integration/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var client *clientv3.Client

func newStore(t *testing.T) *Store {
	return New(client, fmt.Sprintf("test/%s/%d/", t.Name(), time.Now().UnixNano()))
}

func TestStore(t *testing.T) {
	testonly.RunBucketStoreTests(t, newStore(t))
}

func TestLimiter(t *testing.T) {
	testonly.RunLimiterTests(t, newStore(t))
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	key := quota.Key{ContextID: 1, UserID: 2}
	if _, err := client.Put(ctx, s.path(key), "\xff\xff"); err != nil {
		t.Fatalf("Put(): %v", err)
	}
	_, _, err := s.Get(ctx, key)
	if !errors.Is(err, quota.ErrServiceUnavailable) {
		t.Errorf("Get() of corrupt value err = %v, want ErrServiceUnavailable", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	key := quota.Key{ContextID: 3, UserID: 4}
	if _, err := s.PutIfAbsent(ctx, key, quota.NewBucket(2)); err != nil {
		t.Fatalf("PutIfAbsent(): %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete(): %v", err)
	}
	if _, ok, err := s.Get(ctx, key); err != nil || ok {
		t.Errorf("Get() after Delete = (_, %v, %v), want (_, false, nil)", ok, err)
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := newStore(t).Get(ctx, quota.Key{ContextID: 1, UserID: 1})
	if !errors.Is(err, quota.ErrServiceUnavailable) {
		t.Errorf("Get() with cancelled context err = %v, want ErrServiceUnavailable", err)
	}
}

func TestMain(m *testing.M) {
	_, c, cleanup, err := etcd.StartEtcd()
	if err != nil {
		panic(fmt.Sprintf("StartEtcd(): %v", err))
	}
	client = c
	exitCode := m.Run()
	cleanup()
	os.Exit(exitCode)
}

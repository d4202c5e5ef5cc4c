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
	"flag"
	"fmt"

	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/util/etcd"
	"k8s.io/klog/v2"
)

// StoreName identifies the etcd store provider.
const StoreName = "etcd"

var (
	// Servers is a flag containing the address(es) of etcd servers.
	Servers      = flag.String("etcd_servers", "", "A comma-separated list of etcd servers holding quota buckets")
	bucketPrefix = flag.String("etcd_bucket_prefix", DefaultPrefix, "Key prefix for quota buckets stored in etcd")
)

func init() {
	if err := quota.RegisterStoreProvider(StoreName, newEtcdStore); err != nil {
		klog.Fatalf("Failed to register bucket store %v: %v", StoreName, err)
	}
}

func newEtcdStore() (quota.BucketStore, error) {
	if *Servers == "" {
		return nil, fmt.Errorf("can't create etcd bucket store - etcd_servers flag is unset")
	}
	client, err := etcd.NewClient(*Servers, etcd.DefaultDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd at %v: %v", *Servers, err)
	}
	klog.Infof("Using etcd BucketStore at %v", *Servers)
	return New(client, *bucketPrefix), nil
}

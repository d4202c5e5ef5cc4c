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

// Package etcd holds helpers for connecting to etcd clusters.
package etcd

import (
	"errors"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultDialTimeout bounds the initial connection to the cluster.
const DefaultDialTimeout = 5 * time.Second

// NewClient returns an etcd client for servers, a comma-separated list of etcd endpoint URIs.
// Empty entries are ignored.
func NewClient(servers string, dialTimeout time.Duration) (*clientv3.Client, error) {
	endpoints := Endpoints(servers)
	if len(endpoints) == 0 {
		return nil, errors.New("no etcd servers given")
	}
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
}

// Endpoints splits a comma-separated server list, dropping blanks.
func Endpoints(servers string) []string {
	var out []string
	for _, s := range strings.Split(servers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

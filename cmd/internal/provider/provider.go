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

// Package provider links in every bucket store and picks the default one.
package provider

import (
	"slices"

	"github.com/google/slotquota/quota"
	"github.com/google/slotquota/quota/memstore"

	// Register supported bucket stores.
	_ "github.com/google/slotquota/quota/etcdstore"
	_ "github.com/google/slotquota/quota/mysqlstore"
	_ "github.com/google/slotquota/quota/postgresqlstore"
	_ "github.com/google/slotquota/quota/redisstore"
)

// DefaultQuotaStore is the store used when --quota_store isn't given.
var DefaultQuotaStore string

func init() {
	DefaultQuotaStore = memstore.StoreName
	providers := quota.StoreProviders()
	if len(providers) > 0 && !slices.Contains(providers, DefaultQuotaStore) {
		DefaultQuotaStore = providers[0]
	}
}

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

// Package config contains quota.ConfigSource implementations: Static, which applies the same
// parameters to every principal, and Layered, which resolves per-user and per-context overrides
// from a YAML file.
package config

import (
	"context"
	"flag"

	"github.com/google/slotquota/quota"
)

var (
	quotaCapacity = flag.Int("quota_capacity", 100, "Number of permits each principal may consume per refresh interval")
	quotaInterval = flag.Int("quota_refresh_interval_minutes", 60, "Minutes before a consumed permit becomes available again")
	quotaEnabled  = flag.Bool("quota_enabled", true, "If false, no principal is subject to quotas")
)

// Static is a quota.ConfigSource that returns the same parameters for every key.
type Static struct {
	Tokens          int
	IntervalMinutes int
	Disabled        bool
}

var _ quota.ConfigSource = Static{}

// StaticFromFlags returns a Static populated from the --quota_capacity,
// --quota_refresh_interval_minutes and --quota_enabled flags.
func StaticFromFlags() Static {
	return Static{
		Tokens:          *quotaCapacity,
		IntervalMinutes: *quotaInterval,
		Disabled:        !*quotaEnabled,
	}
}

// Capacity implements quota.ConfigSource.
func (s Static) Capacity(ctx context.Context, key quota.Key) (int, error) {
	return s.Tokens, nil
}

// RefreshIntervalMinutes implements quota.ConfigSource.
func (s Static) RefreshIntervalMinutes(ctx context.Context, key quota.Key) (int, error) {
	return s.IntervalMinutes, nil
}

// Enabled implements quota.ConfigSource.
func (s Static) Enabled(ctx context.Context, key quota.Key) (bool, error) {
	return !s.Disabled, nil
}

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

// Package quota enforces cluster-wide send quotas, e.g. how many SMS a user may send per day.
//
// Each principal (a user within a context) owns a token bucket of a configured number of slots.
// A slot records when its token was last consumed and becomes available again once the refresh
// interval has passed since then. Acquiring a permit consumes the lowest-indexed available slot;
// if none is available the request is denied with a *QuotaExceededError.
//
// Buckets live in a replicated BucketStore shared by every server instance. There are no locks:
// a Limiter reads the current bucket, computes its successor and installs it with a
// compare-and-replace, starting over if another writer got there first. Correctness therefore
// depends only on the store's compare-and-replace being linearizable per key.
//
// Quota parameters (capacity, refresh interval and whether quotas apply at all) are read from a
// ConfigSource on every call, so changes made by administrators take effect immediately. A
// capacity change replaces the principal's bucket with a fresh one, discarding its usage history.
package quota

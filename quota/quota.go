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

package quota

import (
	"context"
	"fmt"
	"math"
	"time"
)

// MaxTokens is the number of tokens reported for principals whose quota is disabled.
const MaxTokens = int(^uint(0) >> 1) // MaxInt

// MaxCapacity is the largest bucket capacity that can be stored.
const MaxCapacity = math.MaxInt32

// MaxRefreshIntervalMinutes is the longest refresh interval that fits in a time.Duration.
const MaxRefreshIntervalMinutes = math.MaxInt64 / int64(time.Minute)

// Key identifies the principal a bucket is tracked for. Buckets of different keys are fully
// independent.
type Key struct {
	// ContextID identifies the tenant (context) the user belongs to.
	ContextID int64

	// UserID identifies the user within ContextID.
	UserID int64
}

// Name returns a textual representation of the Key. Names are constant and may be relied upon to
// not change in the future, stores use them as storage keys.
//
// E.g., Key{ContextID: 1, UserID: 3} is mapped to "contexts/1/users/3".
func (k Key) Name() string {
	return fmt.Sprintf("contexts/%d/users/%d", k.ContextID, k.UserID)
}

// String returns a description of Key.
func (k Key) String() string {
	return k.Name()
}

// ConfigSource supplies the per-principal quota parameters.
//
// Implementations should return a *ConfigError for malformed or missing values. Any other error is
// treated as the source being unreachable.
type ConfigSource interface {
	// Capacity returns the number of slots in key's bucket.
	Capacity(ctx context.Context, key Key) (int, error)

	// RefreshIntervalMinutes returns how long a consumed slot stays unavailable.
	RefreshIntervalMinutes(ctx context.Context, key Key) (int, error)

	// Enabled returns false if key is not subject to quota enforcement.
	Enabled(ctx context.Context, key Key) (bool, error)
}

// SnapshotConfigSource is implemented by ConfigSources whose configuration can change between
// lookups. The Limiter reads all parameters of a call from a single snapshot.
type SnapshotConfigSource interface {
	ConfigSource

	// Snapshot returns a ConfigSource answering from the configuration current at the time of
	// the call.
	Snapshot() ConfigSource
}

// BucketStore is a replicated, keyed store of buckets.
//
// CompareAndReplace must be linearizable per key: of several concurrent calls against the same
// prior value, exactly one may succeed. No ordering is required across keys.
// Infrastructure failures should be reported as *UnavailableError.
type BucketStore interface {
	// Get returns the bucket stored for key. ok is false if there is none.
	Get(ctx context.Context, key Key) (b Bucket, ok bool, err error)

	// PutIfAbsent stores b for key unless a bucket already exists. Returns true if b was stored.
	PutIfAbsent(ctx context.Context, key Key, b Bucket) (bool, error)

	// CompareAndReplace replaces the bucket stored for key with next, provided the stored
	// bucket is still equal to old. Returns true if the replacement happened.
	CompareAndReplace(ctx context.Context, key Key, old, next Bucket) (bool, error)
}

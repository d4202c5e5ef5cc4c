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
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/slotquota/util/clock"
	"k8s.io/klog/v2"
)

const (
	// DefaultMaxAttempts is the suggested value for Options.MaxAttempts.
	DefaultMaxAttempts = 100

	// DefaultMinBackoff is the suggested value for Options.MinBackoff.
	DefaultMinBackoff = 2 * time.Millisecond

	// DefaultMaxBackoff is the suggested value for Options.MaxBackoff.
	DefaultMaxBackoff = 100 * time.Millisecond
)

// Options tune the optimistic update loop of a Limiter.
type Options struct {
	// MaxAttempts bounds the iterations of the update loop for a single call. Bucket creation,
	// capacity changes and lost compare-and-replace races each use up an attempt.
	// DefaultMaxAttempts is used if <= 0.
	MaxAttempts int

	// After a lost race the limiter sleeps a random duration below
	// min(MaxBackoff, MinBackoff * 2^(races lost - 1)). Sleeping is disabled if MaxBackoff <= 0.
	MinBackoff, MaxBackoff time.Duration

	// TimeSource provides the time stamped into buckets and drives backoff sleeps.
	// clock.System is used if nil.
	TimeSource clock.TimeSource
}

// DefaultOptions returns the suggested Options for production use.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: DefaultMaxAttempts,
		MinBackoff:  DefaultMinBackoff,
		MaxBackoff:  DefaultMaxBackoff,
		TimeSource:  clock.System,
	}
}

// Limiter grants or denies permits against per-principal buckets held in a BucketStore.
// It owns no goroutines and is safe for concurrent use; all coordination with other callers and
// other processes goes through the store's compare-and-replace.
type Limiter struct {
	store BucketStore
	cfg   ConfigSource
	opts  Options
}

// NewLimiter returns a Limiter reading buckets from store and parameters from cfg.
func NewLimiter(store BucketStore, cfg ConfigSource, opts Options) *Limiter {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = DefaultMinBackoff
	}
	if opts.TimeSource == nil {
		opts.TimeSource = clock.System
	}
	return &Limiter{store: store, cfg: cfg, opts: opts}
}

// params are the quota parameters of a single key.
type params struct {
	capacity        int
	intervalMinutes int
}

func (p params) interval() time.Duration {
	return time.Duration(p.intervalMinutes) * time.Minute
}

// params reads the parameters of key. Capacity and interval are only read if key is enabled.
func (l *Limiter) params(ctx context.Context, key Key) (params, bool, error) {
	cfg := l.cfg
	if s, ok := cfg.(SnapshotConfigSource); ok {
		cfg = s.Snapshot()
	}
	enabled, err := cfg.Enabled(ctx, key)
	if err != nil {
		return params{}, false, sourceErr(key, "enabled", err)
	}
	if !enabled {
		return params{}, false, nil
	}

	var p params
	if p.capacity, err = cfg.Capacity(ctx, key); err != nil {
		return params{}, false, sourceErr(key, "capacity", err)
	}
	if p.capacity <= 0 || p.capacity > MaxCapacity {
		return params{}, false, &ConfigError{Key: key, Field: "capacity", Err: fmt.Errorf("must be in [1, %d], got %d", MaxCapacity, p.capacity)}
	}
	if p.intervalMinutes, err = cfg.RefreshIntervalMinutes(ctx, key); err != nil {
		return params{}, false, sourceErr(key, "refresh interval", err)
	}
	if p.intervalMinutes <= 0 || int64(p.intervalMinutes) > MaxRefreshIntervalMinutes {
		return params{}, false, &ConfigError{Key: key, Field: "refresh interval", Err: fmt.Errorf("must be in [1, %d] minutes, got %d", MaxRefreshIntervalMinutes, p.intervalMinutes)}
	}
	return p, true, nil
}

// sourceErr passes config errors through and treats everything else as an unreachable source.
func sourceErr(key Key, field string, err error) error {
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return Unavailable(fmt.Sprintf("read %s of %v", field, key), err)
}

// Acquire consumes one slot of key's bucket.
//
// It returns the number of slots that were available before the call, or MaxTokens if key is not
// subject to quotas. Errors are *QuotaExceededError, *UnavailableError or *ConfigError.
func (l *Limiter) Acquire(ctx context.Context, key Key) (int, error) {
	remaining, attempts, err := l.acquire(ctx, key)
	Metrics.incRequests(resultFor(err, remaining))
	if attempts > 0 {
		Metrics.observeAttempts(attempts)
	}
	return remaining, err
}

func (l *Limiter) acquire(ctx context.Context, key Key) (int, int, error) {
	p, enabled, err := l.params(ctx, key)
	if err != nil {
		return 0, 0, err
	}
	if !enabled {
		return MaxTokens, 0, nil
	}

	interval := p.interval()
	var granted int
	attempts, err := l.update(ctx, key, p.capacity, func(old Bucket) (Bucket, error) {
		next, g, ok := old.RefreshAndAcquire(l.opts.TimeSource.Now(), interval)
		if !ok {
			return Bucket{}, &QuotaExceededError{Key: key, HoursUntilReset: hoursUntilReset(p.intervalMinutes)}
		}
		granted = g
		return next, nil
	})
	if err != nil {
		return 0, attempts, err
	}
	return granted, attempts, nil
}

// Peek returns the number of slots of key's bucket that are currently available, without
// consuming any. Buckets that don't exist yet, or whose capacity is about to be reset, report the
// configured capacity.
func (l *Limiter) Peek(ctx context.Context, key Key) (int, error) {
	p, enabled, err := l.params(ctx, key)
	if err != nil {
		return 0, err
	}
	if !enabled {
		return MaxTokens, nil
	}
	b, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, Unavailable("get "+key.Name(), err)
	}
	if !ok || b.Capacity() != p.capacity {
		return p.capacity, nil
	}
	return b.Remaining(l.opts.TimeSource.Now(), p.interval()), nil
}

// Reset replaces key's bucket with a fresh one of the configured capacity, discarding its usage
// history. It's a noop for keys that aren't subject to quotas.
func (l *Limiter) Reset(ctx context.Context, key Key) error {
	p, enabled, err := l.params(ctx, key)
	if err != nil || !enabled {
		return err
	}
	if _, err := l.update(ctx, key, p.capacity, func(Bucket) (Bucket, error) {
		return NewBucket(p.capacity), nil
	}); err != nil {
		return err
	}
	Metrics.incResets(reasonAdmin)
	klog.Infof("%v: bucket reset to capacity %d", key, p.capacity)
	return nil
}

// update runs the optimistic read-modify-write loop on key's bucket.
//
// Missing buckets are created and buckets of the wrong capacity replaced before mutate is called;
// mutate therefore always sees a bucket of the given capacity. Errors from mutate end the loop
// and are returned as is. It returns the number of iterations used.
func (l *Limiter) update(ctx context.Context, key Key, capacity int, mutate func(old Bucket) (Bucket, error)) (int, error) {
	lost := 0
	for attempt := 1; attempt <= l.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt, Unavailable("update "+key.Name(), err)
		}

		old, ok, err := l.store.Get(ctx, key)
		if err != nil {
			return attempt, Unavailable("get "+key.Name(), err)
		}

		if !ok {
			// Another writer may win; re-read either way.
			created, err := l.store.PutIfAbsent(ctx, key, NewBucket(capacity))
			if err != nil {
				return attempt, Unavailable("create "+key.Name(), err)
			}
			if created {
				Metrics.incResets(reasonCreated)
				klog.V(2).Infof("%v: created bucket of capacity %d", key, capacity)
			}
			continue
		}

		if old.Capacity() != capacity {
			replaced, err := l.store.CompareAndReplace(ctx, key, old, NewBucket(capacity))
			if err != nil {
				return attempt, Unavailable("resize "+key.Name(), err)
			}
			if replaced {
				Metrics.incResets(reasonResized)
				klog.V(1).Infof("%v: capacity changed from %d to %d, usage history discarded", key, old.Capacity(), capacity)
			}
			continue
		}

		next, err := mutate(old)
		if err != nil {
			return attempt, err
		}
		swapped, err := l.store.CompareAndReplace(ctx, key, old, next)
		if err != nil {
			return attempt, Unavailable("replace "+key.Name(), err)
		}
		if swapped {
			return attempt, nil
		}

		lost++
		Metrics.incConflicts()
		klog.V(2).Infof("%v: lost compare-and-replace race %d", key, lost)
		if err := l.backoff(ctx, lost); err != nil {
			return attempt, Unavailable("update "+key.Name(), err)
		}
	}
	klog.Warningf("%v: giving up after %d attempts", key, l.opts.MaxAttempts)
	return l.opts.MaxAttempts, Unavailable("update "+key.Name(), ErrTooMuchContention)
}

// backoff sleeps a random duration below the backoff ceiling for the nth lost race.
func (l *Limiter) backoff(ctx context.Context, n int) error {
	if l.opts.MaxBackoff <= 0 {
		return nil
	}
	return clock.SleepSource(ctx, time.Duration(rand.Int64N(int64(l.backoffCeiling(n)))), l.opts.TimeSource)
}

// backoffCeiling returns min(MaxBackoff, MinBackoff * 2^(n-1)).
func (l *Limiter) backoffCeiling(n int) time.Duration {
	ceiling := l.opts.MinBackoff
	for i := 1; i < n && ceiling < l.opts.MaxBackoff; i++ {
		ceiling *= 2
	}
	return min(ceiling, l.opts.MaxBackoff)
}

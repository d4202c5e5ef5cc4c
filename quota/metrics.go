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
	"errors"
	"sync"

	"github.com/google/slotquota/monitoring"
)

// Values of the "result" label of quota_acquire_requests.
const (
	resultGranted       = "granted"
	resultBypassed      = "bypassed"
	resultExceeded      = "exceeded"
	resultUnavailable   = "unavailable"
	resultMisconfigured = "misconfigured"
)

// Values of the "reason" label of quota_bucket_resets.
const (
	reasonCreated = "created"
	reasonResized = "resized"
	reasonAdmin   = "admin"
)

var (
	// Metrics groups all limiter metrics. Recording is a noop until InitMetrics is called.
	Metrics     = &m{}
	metricsOnce = sync.Once{}
)

type m struct {
	AcquireRequests monitoring.Counter
	CASConflicts    monitoring.Counter
	BucketResets    monitoring.Counter
	AcquireAttempts monitoring.Histogram
}

func (m *m) incRequests(result string) {
	if m.AcquireRequests != nil {
		m.AcquireRequests.Inc(result)
	}
}

func (m *m) incConflicts() {
	if m.CASConflicts != nil {
		m.CASConflicts.Inc()
	}
}

func (m *m) incResets(reason string) {
	if m.BucketResets != nil {
		m.BucketResets.Inc(reason)
	}
}

func (m *m) observeAttempts(attempts int) {
	if m.AcquireAttempts != nil {
		m.AcquireAttempts.Observe(float64(attempts))
	}
}

// resultFor classifies the outcome of Acquire for metrics.
func resultFor(err error, remaining int) string {
	var qe *QuotaExceededError
	switch {
	case err == nil && remaining == MaxTokens:
		return resultBypassed
	case err == nil:
		return resultGranted
	case errors.As(err, &qe):
		return resultExceeded
	case errors.Is(err, ErrConfiguration):
		return resultMisconfigured
	default:
		return resultUnavailable
	}
}

// InitMetrics initializes Metrics using mf to create the monitoring objects.
// May be called multiple times. If so, the first call is the one that counts.
func InitMetrics(mf monitoring.MetricFactory) {
	metricsOnce.Do(func() {
		Metrics.AcquireRequests = mf.NewCounter("quota_acquire_requests", "Number of Acquire calls by result", "result")
		Metrics.CASConflicts = mf.NewCounter("quota_cas_conflicts", "Number of compare-and-replace races lost to concurrent writers")
		Metrics.BucketResets = mf.NewCounter("quota_bucket_resets", "Number of buckets replaced by a fresh one", "reason")
		Metrics.AcquireAttempts = mf.NewHistogram("quota_acquire_attempts", "Update loop iterations per Acquire call",
			monitoring.ExpBuckets(1, 2, 8), /* 1 to 128 */
		)
	})
}

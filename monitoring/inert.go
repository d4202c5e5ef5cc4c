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

package monitoring

import (
	"fmt"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

// InertMetricFactory creates metrics that live in memory only. Useful for tests and for binaries
// that don't export metrics.
type InertMetricFactory struct{}

// NewCounter creates a new inert Counter.
func (InertMetricFactory) NewCounter(name, help string, labelNames ...string) Counter {
	return &inertCounter{labelCount: len(labelNames), vals: make(map[string]float64)}
}

// NewHistogram creates a new inert Histogram. The buckets are not used.
func (InertMetricFactory) NewHistogram(name, help string, _ []float64, labelNames ...string) Histogram {
	return &inertHistogram{
		labelCount: len(labelNames),
		counts:     make(map[string]uint64),
		sums:       make(map[string]float64),
	}
}

type inertCounter struct {
	labelCount int
	mu         sync.Mutex
	vals       map[string]float64
}

func (c *inertCounter) Inc(labelVals ...string) {
	c.Add(1, labelVals...)
}

func (c *inertCounter) Add(val float64, labelVals ...string) {
	key, err := keyForLabels(labelVals, c.labelCount)
	if err != nil {
		klog.Error(err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals[key] += val
}

func (c *inertCounter) Value(labelVals ...string) float64 {
	key, err := keyForLabels(labelVals, c.labelCount)
	if err != nil {
		klog.Error(err)
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vals[key]
}

type inertHistogram struct {
	labelCount int
	mu         sync.Mutex
	counts     map[string]uint64
	sums       map[string]float64
}

func (h *inertHistogram) Observe(val float64, labelVals ...string) {
	key, err := keyForLabels(labelVals, h.labelCount)
	if err != nil {
		klog.Error(err)
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.counts[key]++
	h.sums[key] += val
}

func (h *inertHistogram) Info(labelVals ...string) (uint64, float64) {
	key, err := keyForLabels(labelVals, h.labelCount)
	if err != nil {
		klog.Error(err)
		return 0, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.counts[key], h.sums[key]
}

func keyForLabels(labelVals []string, count int) (string, error) {
	if len(labelVals) != count {
		return "", fmt.Errorf("invalid label count %d; want %d", len(labelVals), count)
	}
	return strings.Join(labelVals, "|"), nil
}

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

// Package testonly contains shared tests for MetricFactory implementations.
package testonly

import (
	"testing"

	"github.com/google/slotquota/monitoring"
)

var labelCases = []struct {
	name       string
	labelNames []string
	labelVals  []string
}{
	{name: "0", labelNames: nil, labelVals: nil},
	{name: "1", labelNames: []string{"key1"}, labelVals: []string{"val1"}},
	{name: "2", labelNames: []string{"key1", "key2"}, labelVals: []string{"val1", "val2"}},
}

// TestCounter runs a test on a Counter produced from the provided MetricFactory.
func TestCounter(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, lc := range labelCases {
		name := "test_counter" + lc.name
		counter := factory.NewCounter(name, "Test only", lc.labelNames...)
		if got, want := counter.Value(lc.labelVals...), 0.0; got != want {
			t.Errorf("Counter(%s)[%v].Value()=%v; want %v", name, lc.labelVals, got, want)
		}
		counter.Inc(lc.labelVals...)
		if got, want := counter.Value(lc.labelVals...), 1.0; got != want {
			t.Errorf("Counter(%s)[%v].Value()=%v; want %v", name, lc.labelVals, got, want)
		}
		counter.Add(2.5, lc.labelVals...)
		if got, want := counter.Value(lc.labelVals...), 3.5; got != want {
			t.Errorf("Counter(%s)[%v].Value()=%v; want %v", name, lc.labelVals, got, want)
		}

		bogus := append(append([]string(nil), lc.labelVals...), "bogus")
		counter.Add(10.0, bogus...)
		counter.Inc(bogus...)
		if got, want := counter.Value(bogus...), 0.0; got != want {
			t.Errorf("Counter(%s)[%v].Value()=%v; want %v", name, bogus, got, want)
		}
		if got, want := counter.Value(lc.labelVals...), 3.5; got != want {
			t.Errorf("Counter(%s)[%v].Value() after bad labels=%v; want %v", name, lc.labelVals, got, want)
		}
	}
}

// TestHistogram runs a test on a Histogram produced from the provided MetricFactory.
func TestHistogram(t *testing.T, factory monitoring.MetricFactory) {
	t.Helper()
	for _, lc := range labelCases {
		name := "test_histogram" + lc.name
		histogram := factory.NewHistogram(name, "Test only", []float64{1, 2, 4}, lc.labelNames...)
		if gotCount, gotSum := histogram.Info(lc.labelVals...); gotCount != 0 || gotSum != 0 {
			t.Errorf("Histogram(%s)[%v].Info()=%v,%v; want 0,0", name, lc.labelVals, gotCount, gotSum)
		}
		for _, v := range []float64{1, 2, 3} {
			histogram.Observe(v, lc.labelVals...)
		}
		if gotCount, gotSum := histogram.Info(lc.labelVals...); gotCount != 3 || gotSum != 6 {
			t.Errorf("Histogram(%s)[%v].Info()=%v,%v; want 3,6", name, lc.labelVals, gotCount, gotSum)
		}

		bogus := append(append([]string(nil), lc.labelVals...), "bogus")
		histogram.Observe(100.0, bogus...)
		if gotCount, gotSum := histogram.Info(bogus...); gotCount != 0 || gotSum != 0 {
			t.Errorf("Histogram(%s)[%v].Info()=%v,%v; want 0,0", name, bogus, gotCount, gotSum)
		}
	}
}

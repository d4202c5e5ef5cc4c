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

// Package prometheus provides a Prometheus-based implementation of the
// MetricFactory abstraction.
package prometheus

import (
	"fmt"

	"github.com/google/slotquota/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"k8s.io/klog/v2"
)

// MetricFactory allows the creation of Prometheus-based metrics.
type MetricFactory struct {
	// Prefix is prepended to every metric name.
	Prefix string

	// Registerer receives the created collectors. prometheus.DefaultRegisterer is used if nil.
	Registerer prometheus.Registerer
}

func (pmf MetricFactory) register(c prometheus.Collector) {
	r := pmf.Registerer
	if r == nil {
		r = prometheus.DefaultRegisterer
	}
	r.MustRegister(c)
}

// NewCounter creates a new Counter object backed by Prometheus.
func (pmf MetricFactory) NewCounter(name, help string, labelNames ...string) monitoring.Counter {
	opts := prometheus.CounterOpts{Name: pmf.Prefix + name, Help: help}
	if len(labelNames) == 0 {
		c := prometheus.NewCounter(opts)
		pmf.register(c)
		return &Counter{single: c}
	}
	vec := prometheus.NewCounterVec(opts, labelNames)
	pmf.register(vec)
	return &Counter{labelNames: labelNames, vec: vec}
}

// NewHistogram creates a new Histogram object backed by Prometheus. Prometheus' default buckets
// are used if buckets is empty.
func (pmf MetricFactory) NewHistogram(name, help string, buckets []float64, labelNames ...string) monitoring.Histogram {
	opts := prometheus.HistogramOpts{Name: pmf.Prefix + name, Help: help, Buckets: buckets}
	if len(labelNames) == 0 {
		h := prometheus.NewHistogram(opts)
		pmf.register(h)
		return &Histogram{single: h}
	}
	vec := prometheus.NewHistogramVec(opts, labelNames)
	pmf.register(vec)
	return &Histogram{labelNames: labelNames, vec: vec}
}

// Counter is a wrapper around a Prometheus Counter or CounterVec object.
type Counter struct {
	labelNames []string
	single     prometheus.Counter
	vec        *prometheus.CounterVec
}

func (m *Counter) counter(labelVals []string) (prometheus.Counter, error) {
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		return nil, err
	}
	if m.vec != nil {
		return m.vec.With(labels), nil
	}
	return m.single, nil
}

// Inc adds 1 to a counter.
func (m *Counter) Inc(labelVals ...string) {
	m.Add(1, labelVals...)
}

// Add adds the given amount to a counter.
func (m *Counter) Add(val float64, labelVals ...string) {
	c, err := m.counter(labelVals)
	if err != nil {
		klog.Error(err)
		return
	}
	c.Add(val)
}

// Value returns the current amount of a counter.
func (m *Counter) Value(labelVals ...string) float64 {
	c, err := m.counter(labelVals)
	if err != nil {
		klog.Error(err)
		return 0
	}
	var metricpb dto.Metric
	if err := c.Write(&metricpb); err != nil {
		klog.Errorf("failed to Write metric: %v", err)
		return 0
	}
	return metricpb.GetCounter().GetValue()
}

// Histogram is a wrapper around a Prometheus Histogram or HistogramVec object.
type Histogram struct {
	labelNames []string
	single     prometheus.Histogram
	vec        *prometheus.HistogramVec
}

func (m *Histogram) observer(labelVals []string) (prometheus.Observer, error) {
	labels, err := labelsFor(m.labelNames, labelVals)
	if err != nil {
		return nil, err
	}
	if m.vec != nil {
		return m.vec.With(labels), nil
	}
	return m.single, nil
}

// Observe adds a single observation to the histogram.
func (m *Histogram) Observe(val float64, labelVals ...string) {
	o, err := m.observer(labelVals)
	if err != nil {
		klog.Error(err)
		return
	}
	o.Observe(val)
}

// Info returns the count and sum of observations for the histogram.
func (m *Histogram) Info(labelVals ...string) (uint64, float64) {
	o, err := m.observer(labelVals)
	if err != nil {
		klog.Error(err)
		return 0, 0
	}
	metric, ok := o.(prometheus.Metric)
	if !ok {
		klog.Errorf("observer %T is not a metric", o)
		return 0, 0
	}
	var metricpb dto.Metric
	if err := metric.Write(&metricpb); err != nil {
		klog.Errorf("failed to Write metric: %v", err)
		return 0, 0
	}
	h := metricpb.GetHistogram()
	return h.GetSampleCount(), h.GetSampleSum()
}

func labelsFor(names, values []string) (prometheus.Labels, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("got %d (%v) values for %d labels (%v)", len(values), values, len(names), names)
	}
	if len(names) == 0 {
		return nil, nil
	}
	labels := make(prometheus.Labels, len(names))
	for i, name := range names {
		labels[name] = values[i]
	}
	return labels, nil
}

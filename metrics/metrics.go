// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package metrics contains helpers for performance metric management
// inside the policy engine.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	go_metrics "github.com/rcrowley/go-metrics"
)

// Well-known metric names.
const (
	TheoryUpdate     = "theory_update"
	TheoryValidate   = "theory_validate"
	TheoryInitTables = "theory_init_tables"
	GraphCertify     = "graph_certify"
	QueryParse       = "query_parse"
	QueryEval        = "query_eval"
	QueryCacheHit    = "query_cache_hit"
	LoadFiles        = "load_files"
)

// Metrics defines the interface for a collection of performance
// metrics in the policy engine.
type Metrics interface {
	Timer(name string) Timer
	Histogram(name string) Histogram
	Counter(name string) Counter
	All() map[string]interface{}
	Clear()
	json.Marshaler
}

type metrics struct {
	mtx        sync.Mutex
	timers     map[string]Timer
	histograms map[string]Histogram
	counters   map[string]Counter
}

// New returns a new Metrics object.
func New() Metrics {
	m := &metrics{}
	m.Clear()
	return m
}

func (m *metrics) String() string {
	all := m.All()
	buf := make([]string, 0, len(all))
	for key, value := range all {
		buf = append(buf, fmt.Sprintf("%v:%v", key, value))
	}
	sort.Strings(buf)
	return strings.Join(buf, " ")
}

func (m *metrics) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.All())
}

func (m *metrics) Timer(name string) Timer {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	t, ok := m.timers[name]
	if !ok {
		t = &timer{}
		m.timers[name] = t
	}
	return t
}

func (m *metrics) Histogram(name string) Histogram {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	h, ok := m.histograms[name]
	if !ok {
		h = newHistogram()
		m.histograms[name] = h
	}
	return h
}

func (m *metrics) Counter(name string) Counter {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	c, ok := m.counters[name]
	if !ok {
		c = &counter{}
		m.counters[name] = c
	}
	return c
}

func (m *metrics) All() map[string]interface{} {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	result := make(map[string]interface{}, len(m.timers)+len(m.histograms)+len(m.counters))
	for name, timer := range m.timers {
		result[formatKey(name, timer)] = timer.Value()
	}
	for name, hist := range m.histograms {
		result[formatKey(name, hist)] = hist.Value()
	}
	for name, cntr := range m.counters {
		result[formatKey(name, cntr)] = cntr.Value()
	}
	return result
}

func (m *metrics) Clear() {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.timers = map[string]Timer{}
	m.histograms = map[string]Histogram{}
	m.counters = map[string]Counter{}
}

func formatKey(name string, metric interface{}) string {
	switch metric.(type) {
	case Timer:
		return "timer_" + name + "_ns"
	case Histogram:
		return "histogram_" + name
	case Counter:
		return "counter_" + name
	default:
		return name
	}
}

// Timer defines the interface for a restartable timer that
// accumulates elapsed time.
type Timer interface {
	Value() interface{}
	Int64() int64
	Start()
	Stop() int64
}

type timer struct {
	mtx   sync.Mutex
	start time.Time
	value int64
}

func (t *timer) Start() {
	t.mtx.Lock()
	t.start = time.Now()
	t.mtx.Unlock()
}

// Stop stops the timer and accumulates the delta (in nanoseconds)
// since it was last started.
func (t *timer) Stop() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()

	var delta int64
	if !t.start.IsZero() {
		delta = time.Since(t.start).Nanoseconds()
		t.value += delta
		t.start = time.Time{}
	}
	return delta
}

func (t *timer) Value() interface{} {
	return t.Int64()
}

func (t *timer) Int64() int64 {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	return t.value
}

// Histogram defines the interface for a histogram with hardcoded
// percentiles.
type Histogram interface {
	Value() interface{}
	Update(int64)
}

type histogram struct {
	hist go_metrics.Histogram // thread-safe because of the underlying ExpDecaySample
}

func newHistogram() Histogram {
	// Reservoir size and alpha factor are taken from
	// https://github.com/rcrowley/go-metrics.
	sample := go_metrics.NewExpDecaySample(1028, 0.015)
	return &histogram{go_metrics.NewHistogram(sample)}
}

func (h *histogram) Update(v int64) {
	h.hist.Update(v)
}

func (h *histogram) Value() interface{} {
	values := make(map[string]interface{}, 12)
	snap := h.hist.Snapshot()
	percentiles := snap.Percentiles([]float64{
		0.5,
		0.75,
		0.9,
		0.95,
		0.99,
		0.999,
		0.9999,
	})
	values["count"] = snap.Count()
	values["min"] = snap.Min()
	values["max"] = snap.Max()
	values["mean"] = snap.Mean()
	values["stddev"] = snap.StdDev()
	values["median"] = percentiles[0]
	values["75%"] = percentiles[1]
	values["90%"] = percentiles[2]
	values["95%"] = percentiles[3]
	values["99%"] = percentiles[4]
	values["99.9%"] = percentiles[5]
	values["99.99%"] = percentiles[6]
	return values
}

// Counter defines the interface for a monotonic increasing counter.
type Counter interface {
	Value() interface{}
	Incr()
	Add(n uint64)
}

type counter struct {
	c uint64
}

func (c *counter) Incr() {
	atomic.AddUint64(&c.c, 1)
}

func (c *counter) Add(n uint64) {
	atomic.AddUint64(&c.c, n)
}

func (c *counter) Value() interface{} {
	return atomic.LoadUint64(&c.c)
}

type noOpMetrics struct{}
type noOpTimer struct{}
type noOpHistogram struct{}
type noOpCounter struct{}

var (
	noOpMetricsInstance   = &noOpMetrics{}
	noOpTimerInstance     = &noOpTimer{}
	noOpHistogramInstance = &noOpHistogram{}
	noOpCounterInstance   = &noOpCounter{}
)

// NoOp returns a Metrics implementation that does nothing and costs
// nothing. Used when metrics are expected, but not of interest.
func NoOp() Metrics {
	return noOpMetricsInstance
}

func (*noOpMetrics) Timer(string) Timer         { return noOpTimerInstance }
func (*noOpMetrics) Histogram(string) Histogram { return noOpHistogramInstance }
func (*noOpMetrics) Counter(string) Counter     { return noOpCounterInstance }
func (*noOpMetrics) All() map[string]interface{} {
	return map[string]interface{}{}
}
func (*noOpMetrics) Clear() {}
func (*noOpMetrics) MarshalJSON() ([]byte, error) {
	return []byte(`{}`), nil
}

func (*noOpTimer) Start()             {}
func (*noOpTimer) Stop() int64        { return 0 }
func (*noOpTimer) Value() interface{} { return 0 }
func (*noOpTimer) Int64() int64       { return 0 }

func (*noOpHistogram) Update(int64)       {}
func (*noOpHistogram) Value() interface{} { return nil }

func (*noOpCounter) Incr()              {}
func (*noOpCounter) Add(uint64)         {}
func (*noOpCounter) Value() interface{} { return 0 }

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "disruptor"

// Collector exports pipeline sequences as Prometheus metrics.
//
// Values are read on scrape: cursors with acquire loads, nothing is
// sampled on the hot path.
type Collector[T any] struct {
	p *Pipeline[T]

	producerCursor    *prometheus.Desc
	processorCursor   *prometheus.Desc
	processorLag      *prometheus.Desc
	processorRunning  *prometheus.Desc
	remainingCapacity *prometheus.Desc
	capacity          *prometheus.Desc
	failures          *prometheus.Desc
}

// Collector returns a prometheus.Collector for the pipeline.
// Register it once per pipeline; the pipeline name is a constant label.
func (p *Pipeline[T]) Collector() *Collector[T] {
	labels := prometheus.Labels{"pipeline": p.opts.Name}
	return &Collector[T]{
		p: p,
		producerCursor: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "producer", "cursor"),
			"Highest sequence claimed by publishers.",
			nil, labels),
		processorCursor: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "processor", "cursor"),
			"Highest sequence the processor has finished with.",
			[]string{"processor"}, labels),
		processorLag: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "processor", "lag"),
			"Sequences published but not yet processed by the processor.",
			[]string{"processor"}, labels),
		processorRunning: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "processor", "running"),
			"1 while the processor is in its run loop.",
			[]string{"processor"}, labels),
		remainingCapacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", "remaining_capacity"),
			"Slots the producer may claim without waiting.",
			nil, labels),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "ring", "capacity"),
			"Number of slots in the ring.",
			nil, labels),
		failures: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "processor", "failures_total"),
			"Processors halted by a handler error or panic.",
			nil, labels),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector[T]) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.producerCursor
	ch <- c.processorCursor
	ch <- c.processorLag
	ch <- c.processorRunning
	ch <- c.remainingCapacity
	ch <- c.capacity
	ch <- c.failures
}

// Collect implements prometheus.Collector.
func (c *Collector[T]) Collect(ch chan<- prometheus.Metric) {
	s := c.p.sequencer
	cursor := s.Cursor().Load()

	ch <- prometheus.MustNewConstMetric(c.producerCursor, prometheus.GaugeValue, float64(cursor))
	ch <- prometheus.MustNewConstMetric(c.remainingCapacity, prometheus.GaugeValue, float64(s.RemainingCapacity()))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Cap()))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(c.p.failures.Load()))

	c.p.mu.Lock()
	procs := c.p.processors
	c.p.mu.Unlock()

	for _, proc := range procs {
		seq := proc.bep.Cursor().Load()
		running := 0.0
		if proc.bep.IsRunning() {
			running = 1
		}
		ch <- prometheus.MustNewConstMetric(c.processorCursor, prometheus.GaugeValue, float64(seq), proc.name)
		ch <- prometheus.MustNewConstMetric(c.processorLag, prometheus.GaugeValue, float64(cursor-seq), proc.name)
		ch <- prometheus.MustNewConstMetric(c.processorRunning, prometheus.GaugeValue, running, proc.name)
	}
}

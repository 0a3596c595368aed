// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package pipeline wires disruptor processors into a dependency graph.
//
// A Pipeline owns one ring buffer and its sequencer. Stages are declared
// before Start; each handler becomes a [disruptor.BatchEventProcessor]
// behind a barrier over its upstream stage:
//
//	p, _ := pipeline.New[Event](1024, pipeline.WithLogger(logger))
//	p.HandleEventsWith(decode).Then(enrich, index).ThenReadOnly(audit)
//	_ = p.Start()
//
//	_ = pipeline.Publish(p, batch, func(ev *Event, seq int64, in *Input) {
//	    ev.Reset(*in)
//	})
//
//	err := p.Shutdown() // lossless: waits for audit to reach the cursor
//
// Processors with no downstream stage gate the producer. Start runs each
// processor on an ants pool worker, creating one when [WithPool] is not
// given.
//
// # Failures
//
// A handler error or panic halts that processor. Its cursor stays at the
// last completed sequence, so stages behind it and eventually the producer
// stall instead of skipping the event. The first failure is delivered on
// Err; Shutdown then halts the remaining processors and returns every
// failure joined.
//
// # Metrics
//
// Collector returns a prometheus.Collector exporting the producer cursor,
// each processor's cursor, lag and run state, the ring's remaining
// capacity, and the failure count.
package pipeline

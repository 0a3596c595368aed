// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package disruptor provides a lock-free inter-goroutine event exchange
// based on the Disruptor pattern.
//
// A fixed-capacity ring of preallocated events is shared by producers and a
// directed graph of consumer stages. Nothing is enqueued or dequeued:
// coordination happens entirely through monotonically increasing sequence
// counters, and every actor works on ring slots in place.
//
// The building blocks are:
//
//   - [Sequence]: a padded int64 cursor with acquire/release ordering
//   - [RingBuffer]: power-of-2 array of events, slot = sequence & (cap-1)
//   - [WaitStrategy]: how a consumer waits (Blocking, BusySpin, Yielding, Backoff)
//   - [SequenceBarrier]: waits until upstream cursors reach a sequence
//   - [Sequencer]: claims and publishes sequences, gated by consumer cursors
//   - [BatchEventProcessor]: a consumer run loop that handles events in batches
//
// # Quick Start
//
// A two-stage pipeline: stage 1 doubles each value in place, stage 2 reads
// the result.
//
//	rb, seq, _ := disruptor.Build[int64](disruptor.New(1024))
//
//	double := disruptor.NewBatchEventProcessor(func(v *int64, s int64, eob bool) error {
//	    *v *= 2
//	    return nil
//	})
//	check := disruptor.NewReadOnlyProcessor(func(v int64, s int64, eob bool) error {
//	    fmt.Println(s, v)
//	    return nil
//	})
//
//	b1 := seq.NewBarrier()                // behind the producer
//	b2 := seq.NewBarrier(double.Cursor()) // behind stage 1
//	seq.AddGatingSequences(check.Cursor()) // producer stays behind stage 2
//
//	go double.Run(b1, rb)
//	go check.Run(b2, rb)
//
//	items := []int64{1, 2, 3}
//	disruptor.Write(seq, rb, items, func(ev *int64, s int64, v *int64) { *ev = *v })
//
//	seq.Drain() // wait until stage 2 has seen everything, then stop both
//
// The [code.hybscloud.com/disruptor/pipeline] package wraps this wiring in a
// small DSL.
//
// # Sequencing Protocol
//
// A slot is owned by exactly one actor at a time:
//
//	producer       between Next and Publish
//	stage 1        once its barrier admits the sequence, until it stores its cursor
//	stage 2        once stage 1's cursor passes the sequence
//	...
//	producer again once every gating cursor passes sequence (one lap later)
//
// The protocol, not a lock, guarantees exclusive access. Every consumer that
// reads a slot must be gated behind whoever last wrote it, and the final
// consumers must be registered as gating sequences. Only the last stages
// need registering: intermediate cursors are always ahead of the stages that
// depend on them.
//
// # Producers
//
// [SingleProducerSequencer] is for exactly one producer goroutine; claiming
// is a plain increment. [MultiProducerSequencer] claims by CAS and tracks
// publication per slot. Builder selects between them:
//
//	disruptor.New(1024).BuildSequencer()                  // → SingleProducerSequencer
//	disruptor.New(1024).MultiProducer().BuildSequencer()  // → MultiProducerSequencer
//
// [Write] claims a batch, fills it with a [Translator] and publishes it with
// one cursor advance. [Sequencer.Next] blocks while the ring is full
// relative to the slowest gating sequence; [Sequencer.TryNext] and
// [TryWrite] return [ErrWouldBlock] instead.
//
// # Wait Strategies
//
//	Blocking  mutex + condition variable; lowest CPU, scheduler wake-up latency
//	BusySpin  tight loop with CPU pause; lowest latency, one core per waiter
//	Yielding  spins, then yields the processor between polls
//	Backoff   adaptive backoff via iox.Backoff; no signalling cost for the producer
//
// All strategies deliver the same events in the same order.
//
// # Shutdown
//
// [Sequencer.Drain] waits until every gating cursor has caught up with the
// producer cursor, then alerts every barrier the sequencer created. Blocked
// [SequenceBarrier.WaitFor] calls return [ErrAlerted] and each
// [BatchEventProcessor.Run] returns nil. No published event is lost. Drain is
// idempotent.
//
// [BatchEventProcessor.Halt] stops a single processor without draining.
//
// # Error Handling
//
// Invalid capacities, empty batches and oversize claims return a
// [ConfigurationError] synchronously (errors.Is(err, ErrConfiguration)).
//
// A handler that returns an error or panics halts only its own processor:
// Run returns a [*ProcessingError] and the processor cursor stays at the last
// completed sequence. Downstream stages and, through gating, the producer
// stall behind it; the owner decides whether to halt the rest.
//
// [ErrAlerted] and [ErrWouldBlock] are control flow signals; [IsSemantic]
// and [IsNonFailure] classify them (delegating to [code.hybscloud.com/iox]).
//
// # Race Detection
//
// Slot contents are plain memory ordered by release stores and acquire
// loads on separate Sequence variables. Go's race detector cannot observe
// that happens-before relationship and reports false positives for
// concurrent pipelines. Tests that exercise concurrent slot access skip
// themselves when [RaceEnabled] is true.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomic primitives with
// explicit memory ordering, [code.hybscloud.com/spin] for CPU pause
// instructions, and [code.hybscloud.com/iox] for semantic errors and
// backoff.
package disruptor

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"fmt"
	"sync/atomic"

	"code.hybscloud.com/atomix"
)

// EventHandler processes one event in place.
//
// endOfBatch is true for the last event the processor will handle before it
// publishes its cursor; handlers use it to flush buffered side effects.
// A non-nil error halts the processor.
type EventHandler[T any] func(event *T, sequence int64, endOfBatch bool) error

// ReadOnlyHandler processes one event without modifying the slot.
// Used for validating and terminal stages.
type ReadOnlyHandler[T any] func(event T, sequence int64, endOfBatch bool) error

// ProcessorState is the lifecycle state of a [BatchEventProcessor].
type ProcessorState int32

const (
	// StateIdle is the state of a created processor that has not run.
	StateIdle ProcessorState = iota
	// StateRunning is the state of a processor inside Run.
	StateRunning
	// StateHalted is terminal.
	StateHalted
)

func (s ProcessorState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateHalted:
		return "halted"
	}
	return fmt.Sprintf("ProcessorState(%d)", int32(s))
}

// BatchEventProcessor drives one consumer's run loop.
//
// Each iteration waits on its barrier for the next sequence, hands every
// newly available event to the handler in sequence order, then publishes its
// own cursor once for the whole batch. Downstream barriers and the producer
// (when the cursor is registered as a gating sequence) observe that cursor.
//
// Lifecycle: Idle → Running → Halted. A processor runs at most once.
type BatchEventProcessor[T any] struct {
	_        pad
	sequence *Sequence
	state    atomix.Int32
	_        pad
	barrier  atomic.Pointer[SequenceBarrier]
	handler  EventHandler[T]
}

// NewBatchEventProcessor creates a processor whose handler may mutate
// events in place.
func NewBatchEventProcessor[T any](handler EventHandler[T]) *BatchEventProcessor[T] {
	return &BatchEventProcessor[T]{
		sequence: NewSequence(InitialSequenceValue),
		handler:  handler,
	}
}

// NewReadOnlyProcessor creates a processor whose handler receives a copy of
// each event and cannot modify the slot.
func NewReadOnlyProcessor[T any](handler ReadOnlyHandler[T]) *BatchEventProcessor[T] {
	return NewBatchEventProcessor(func(event *T, sequence int64, endOfBatch bool) error {
		return handler(*event, sequence, endOfBatch)
	})
}

// Cursor returns the processor's sequence: the highest sequence it has
// completely processed. Pass it to [Sequencer.NewBarrier] for downstream
// stages and to [Sequencer.AddGatingSequences] for final stages.
func (p *BatchEventProcessor[T]) Cursor() *Sequence {
	return p.sequence
}

// State returns the current lifecycle state.
func (p *BatchEventProcessor[T]) State() ProcessorState {
	return ProcessorState(p.state.LoadAcquire())
}

// IsRunning reports whether the processor is inside Run.
func (p *BatchEventProcessor[T]) IsRunning() bool {
	return p.State() == StateRunning
}

// Halt stops the processor after its current batch and makes Run return
// nil. Events published but not yet processed are abandoned; use
// [Sequencer.Drain] for a lossless shutdown.
//
// Halt alerts the barrier the processor runs on; other processors sharing
// that barrier halt too.
func (p *BatchEventProcessor[T]) Halt() {
	// Read-modify-write so Run's barrier store and this load cannot both
	// miss each other.
	for {
		cur := p.state.LoadAcquire()
		if p.state.CompareAndSwapAcqRel(cur, int32(StateHalted)) {
			break
		}
	}
	if b := p.barrier.Load(); b != nil {
		b.Alert()
	}
}

// Run processes events from rb admitted by barrier until the barrier is
// alerted or the handler fails. Run it on its own goroutine.
//
// Returns nil on shutdown (drain or Halt), a [*ProcessingError] when the
// handler returns an error or panics, and ErrAlreadyRunning or ErrHalted
// when the processor is not idle. After a handler failure at sequence k the
// cursor is left at k-1.
func (p *BatchEventProcessor[T]) Run(barrier *SequenceBarrier, rb *RingBuffer[T]) error {
	if !p.state.CompareAndSwapAcqRel(int32(StateIdle), int32(StateRunning)) {
		if p.State() == StateRunning {
			return ErrAlreadyRunning
		}
		return ErrHalted
	}
	defer p.state.StoreRelease(int32(StateHalted))

	p.barrier.Store(barrier)
	// Halt between the CAS and the store found no barrier to alert.
	if p.State() == StateHalted {
		barrier.Alert()
	}

	next := p.sequence.LoadRelaxed() + 1
	for {
		available, err := barrier.WaitFor(next)
		if err != nil {
			if IsAlerted(err) {
				return nil
			}
			return err
		}
		if available < next {
			continue
		}

		for seq := next; seq <= available; seq++ {
			if err := p.handle(rb.Get(seq), seq, seq == available); err != nil {
				p.sequence.Store(seq - 1)
				return err
			}
		}
		p.sequence.Store(available)
		next = available + 1
	}
}

// handle invokes the handler, converting a panic into a ProcessingError.
func (p *BatchEventProcessor[T]) handle(event *T, seq int64, endOfBatch bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			cause, ok := r.(error)
			if ok {
				cause = fmt.Errorf("panic: %w", cause)
			} else {
				cause = fmt.Errorf("panic: %v", r)
			}
			err = &ProcessingError{Sequence: seq, Err: cause, Recovered: r}
		}
	}()
	if herr := p.handler(event, seq, endOfBatch); herr != nil {
		return &ProcessingError{Sequence: seq, Err: herr}
	}
	return nil
}

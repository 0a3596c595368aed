// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import "unsafe"

// RingBuffer is a fixed-capacity circular array of events.
//
// The slot for sequence s is s&(capacity-1). Slots are accessed in place
// through [RingBuffer.Get]; the buffer itself performs no synchronization.
// Exclusive or shared access to a slot is granted only by the sequencing
// protocol: the producer owns a slot between [Sequencer.Next] and
// [Sequencer.Publish], then each consumer stage owns it in turn once its
// [SequenceBarrier] admits the sequence. Reading or writing a slot outside
// that window is a programming error and yields stale or torn data.
//
// Slots are never cleared; a slot keeps the last value written to it
// (possibly mutated in place by upstream stages) until it is overwritten.
type RingBuffer[T any] struct {
	buffer []T
	mask   int64
}

// NewRingBuffer creates a ring buffer of zero-valued events.
// Returns a [ConfigurationError] if capacity is not a power of 2.
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if !isPow2(capacity) {
		return nil, capacityError("capacity", capacity)
	}
	return &RingBuffer[T]{
		buffer: make([]T, capacity),
		mask:   int64(capacity - 1),
	}, nil
}

// NewRingBufferFunc creates a ring buffer whose slots are preallocated by
// factory. Use it when events hold buffers or maps that handlers reuse in
// place instead of allocating per event.
func NewRingBufferFunc[T any](capacity int, factory func() T) (*RingBuffer[T], error) {
	rb, err := NewRingBuffer[T](capacity)
	if err != nil {
		return nil, err
	}
	for i := range rb.buffer {
		rb.buffer[i] = factory()
	}
	return rb, nil
}

// Get returns a pointer to the slot for sequence.
//
// The caller must own sequence under the sequencing protocol.
func (r *RingBuffer[T]) Get(sequence int64) *T {
	// Pointer arithmetic avoids slice bounds checking in hot path.
	// Equivalent to &r.buffer[sequence&r.mask]
	var zero T
	return (*T)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(r.buffer)), uintptr(sequence&r.mask)*unsafe.Sizeof(zero)))
}

// Cap returns the ring capacity.
func (r *RingBuffer[T]) Cap() int {
	return int(r.mask + 1)
}

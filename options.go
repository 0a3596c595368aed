// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

// Options configures sequencer creation and strategy selection.
type Options struct {
	// Producer constraint (determines sequencer type)
	multiProducer bool

	// Consumer wait policy; nil selects Blocking
	waitStrategy WaitStrategy

	// Ring capacity (must be a power of 2)
	capacity int
}

// Builder creates sequencers and ring buffers with fluent configuration.
//
// Unlike the queue constructors of a FIFO, the capacity is not rounded:
// a sequence maps to slot sequence&(capacity-1), so the requested capacity
// must already be a power of 2. Build reports a [ConfigurationError]
// otherwise.
//
// Example:
//
//	// Single producer, blocking consumers (default)
//	rb, seq, err := disruptor.Build[Event](disruptor.New(1024))
//
//	// Several producer goroutines, busy-spinning consumers
//	rb, seq, err := disruptor.Build[Event](disruptor.New(4096).MultiProducer().BusySpin())
type Builder struct {
	opts Options
}

// New creates a builder with the given capacity.
//
// The capacity is validated by the Build methods, not here, so that
// configuration errors are returned rather than raised.
func New(capacity int) *Builder {
	return &Builder{opts: Options{capacity: capacity}}
}

// MultiProducer declares that more than one goroutine will claim sequences.
// Selects the CAS-based [MultiProducerSequencer].
func (b *Builder) MultiProducer() *Builder {
	b.opts.multiProducer = true
	return b
}

// WaitStrategy sets the consumer wait strategy.
func (b *Builder) WaitStrategy(ws WaitStrategy) *Builder {
	b.opts.waitStrategy = ws
	return b
}

// Blocking selects [BlockingWaitStrategy]: low CPU, higher wake-up latency.
func (b *Builder) Blocking() *Builder {
	return b.WaitStrategy(NewBlockingWaitStrategy())
}

// BusySpin selects [BusySpinWaitStrategy]: lowest latency, burns a core per waiter.
func (b *Builder) BusySpin() *Builder {
	return b.WaitStrategy(NewBusySpinWaitStrategy())
}

// Yielding selects [YieldingWaitStrategy]: spins, then yields the processor.
func (b *Builder) Yielding() *Builder {
	return b.WaitStrategy(NewYieldingWaitStrategy())
}

// Backoff selects [BackoffWaitStrategy]: adaptive backoff, no signalling.
func (b *Builder) Backoff() *Builder {
	return b.WaitStrategy(NewBackoffWaitStrategy())
}

// BuildSequencer creates a Sequencer with automatic variant selection.
//
//	default         → SingleProducerSequencer
//	MultiProducer() → MultiProducerSequencer
func (b *Builder) BuildSequencer() (Sequencer, error) {
	ws := b.opts.waitStrategy
	if ws == nil {
		ws = NewBlockingWaitStrategy()
	}
	if b.opts.multiProducer {
		return NewMultiProducerSequencer(b.opts.capacity, ws)
	}
	return NewSingleProducerSequencer(b.opts.capacity, ws)
}

// Build creates a ring buffer and a matching sequencer of the same capacity.
func Build[T any](b *Builder) (*RingBuffer[T], Sequencer, error) {
	rb, err := NewRingBuffer[T](b.opts.capacity)
	if err != nil {
		return nil, nil, err
	}
	s, err := b.BuildSequencer()
	if err != nil {
		return nil, nil, err
	}
	return rb, s, nil
}

// isPow2 reports whether n is a positive power of 2.
func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// log2 returns the base-2 logarithm of a power of 2.
func log2(n int) uint {
	var r uint
	for n > 1 {
		n >>= 1
		r++
	}
	return r
}

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill cache line after 8-byte field.
type padShort [64 - 8]byte

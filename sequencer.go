// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"slices"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/iox"
)

// Sequencer grants producers write access to ring slots and keeps them from
// overwriting slots that gating consumers still need.
//
// Producing is a claim/fill/publish cycle:
//
//	hi, _ := seq.Next(n)          // claim [hi-n+1, hi]
//	for s := hi - n + 1; s <= hi; s++ {
//	    *rb.Get(s) = ...            // fill
//	}
//	seq.Publish(hi-n+1, hi)       // make visible
//
// or simply [Write]. Consumers are wired with [Sequencer.NewBarrier]; the
// cursors of the last consumers of the pipeline are registered with
// [Sequencer.AddGatingSequences].
type Sequencer interface {
	// Cap returns the ring capacity the sequencer was created for.
	Cap() int

	// Cursor returns the producer cursor. Consumers depend on it; only the
	// sequencer writes it.
	Cursor() *Sequence

	// Next claims the next n sequences and returns the highest one.
	// Blocks while the claim would wrap onto a slot that the slowest gating
	// sequence has not consumed yet.
	// Returns a ConfigurationError if n < 1 or n > Cap().
	Next(n int) (int64, error)

	// TryNext is Next without blocking. Returns ErrWouldBlock when there is
	// not enough free capacity.
	TryNext(n int) (int64, error)

	// Publish makes the claimed range [lo, hi] visible to consumers and
	// wakes blocked waiters.
	Publish(lo, hi int64)

	// IsAvailable reports whether sequence has been published and not yet
	// wrapped.
	IsAvailable(sequence int64) bool

	// HighestPublished returns the highest sequence in [lo, available] such
	// that every sequence from lo up to it has been published, or lo-1.
	HighestPublished(lo, available int64) int64

	// RemainingCapacity returns the number of slots that can be claimed
	// without blocking, as seen from the published cursor.
	RemainingCapacity() int64

	// AddGatingSequences registers consumer cursors the producer must not
	// overtake by more than Cap() slots.
	AddGatingSequences(seqs ...*Sequence)

	// RemoveGatingSequence unregisters a gating sequence.
	// Reports whether it was registered.
	RemoveGatingSequence(seq *Sequence) bool

	// MinimumSequence returns the minimum of the gating sequences and the
	// producer cursor.
	MinimumSequence() int64

	// NewBarrier creates a barrier waiting on the producer cursor and on
	// every sequence in deps.
	NewBarrier(deps ...*Sequence) *SequenceBarrier

	// Drain blocks until every gating sequence has caught up with the
	// producer cursor, then alerts every barrier created by this sequencer.
	// No published event is abandoned. Calling Drain again returns at once.
	Drain()
}

// Translator fills the claimed slot event for sequence from item.
type Translator[T, E any] func(event *T, sequence int64, item *E)

// Write claims len(items) sequences, translates every item into its slot in
// order, then publishes the whole batch with a single cursor advance, so
// consumers never observe a partial batch.
//
// Returns a ConfigurationError for an empty batch or one larger than the
// ring. If translate panics the claimed range is still published, since an
// unpublished claim would stall every consumer.
func Write[T, E any](s Sequencer, rb *RingBuffer[T], items []E, translate Translator[T, E]) error {
	n := len(items)
	if n == 0 {
		return &ConfigurationError{Param: "batch size", Value: 0, Reason: "must be >= 1"}
	}
	hi, err := s.Next(n)
	if err != nil {
		return err
	}
	translateAndPublish(s, rb, items, translate, hi-int64(n)+1, hi)
	return nil
}

// TryWrite is Write without blocking. Returns ErrWouldBlock if the ring has
// fewer than len(items) free slots.
func TryWrite[T, E any](s Sequencer, rb *RingBuffer[T], items []E, translate Translator[T, E]) error {
	n := len(items)
	if n == 0 {
		return &ConfigurationError{Param: "batch size", Value: 0, Reason: "must be >= 1"}
	}
	hi, err := s.TryNext(n)
	if err != nil {
		return err
	}
	translateAndPublish(s, rb, items, translate, hi-int64(n)+1, hi)
	return nil
}

// WriteOne claims, translates and publishes a single item.
func WriteOne[T, E any](s Sequencer, rb *RingBuffer[T], item E, translate Translator[T, E]) error {
	hi, err := s.Next(1)
	if err != nil {
		return err
	}
	defer s.Publish(hi, hi)
	translate(rb.Get(hi), hi, &item)
	return nil
}

func translateAndPublish[T, E any](s Sequencer, rb *RingBuffer[T], items []E, translate Translator[T, E], lo, hi int64) {
	defer s.Publish(lo, hi)
	for i := range items {
		seq := lo + int64(i)
		translate(rb.Get(seq), seq, &items[i])
	}
}

// sequencerBase holds the state shared by both sequencer variants: the
// producer cursor, the gating set and the barriers to alert on drain.
type sequencerBase struct {
	capacity     int64
	waitStrategy WaitStrategy
	cursor       *Sequence

	// Copy-on-write; the producer reads it on every wrap check.
	gating atomic.Pointer[[]*Sequence]

	mu       sync.Mutex // guards gating writes and barriers
	barriers []*SequenceBarrier
}

func (b *sequencerBase) init(capacity int, ws WaitStrategy) error {
	if !isPow2(capacity) {
		return capacityError("capacity", capacity)
	}
	if ws == nil {
		ws = NewBlockingWaitStrategy()
	}
	b.capacity = int64(capacity)
	b.waitStrategy = ws
	b.cursor = NewSequence(InitialSequenceValue)
	return nil
}

func (b *sequencerBase) Cap() int {
	return int(b.capacity)
}

func (b *sequencerBase) Cursor() *Sequence {
	return b.cursor
}

func (b *sequencerBase) gatingSequences() []*Sequence {
	if p := b.gating.Load(); p != nil {
		return *p
	}
	return nil
}

func (b *sequencerBase) AddGatingSequences(seqs ...*Sequence) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := slices.Clone(b.gatingSequences())
	next = append(next, seqs...)
	b.gating.Store(&next)
}

func (b *sequencerBase) RemoveGatingSequence(seq *Sequence) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur := b.gatingSequences()
	i := slices.Index(cur, seq)
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	b.gating.Store(&next)
	return true
}

func (b *sequencerBase) MinimumSequence() int64 {
	return minimumSequence(b.gatingSequences(), b.cursor.Load())
}

func (b *sequencerBase) RemainingCapacity() int64 {
	produced := b.cursor.Load()
	consumed := minimumSequence(b.gatingSequences(), produced)
	return b.capacity - (produced - consumed)
}

func (b *sequencerBase) newBarrier(s Sequencer, deps []*Sequence) *SequenceBarrier {
	barrier := newSequenceBarrier(s, b.waitStrategy, b.cursor, deps)
	b.mu.Lock()
	b.barriers = append(b.barriers, barrier)
	b.mu.Unlock()
	return barrier
}

func (b *sequencerBase) Drain() {
	backoff := iox.Backoff{}
	for {
		cursor := b.cursor.Load()
		if minimumSequence(b.gatingSequences(), cursor) >= cursor {
			break
		}
		backoff.Wait()
	}

	b.mu.Lock()
	barriers := slices.Clone(b.barriers)
	b.mu.Unlock()
	for _, barrier := range barriers {
		barrier.Alert()
	}
}

func (b *sequencerBase) checkClaim(n int) error {
	if n < 1 || int64(n) > b.capacity {
		return &ConfigurationError{Param: "claim size", Value: n, Reason: "must be in [1, capacity]"}
	}
	return nil
}

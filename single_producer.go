// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import "code.hybscloud.com/iox"

// SingleProducerSequencer is a Sequencer for exactly one producer goroutine.
//
// The claim position and the cached minimum gating sequence are producer
// local, so claiming needs no atomic read-modify-write. Only the cursor is
// shared, and only Publish writes it.
//
// Next, TryNext, Publish and Write must all be called from the same
// goroutine. The remaining methods are safe from any goroutine.
type SingleProducerSequencer struct {
	sequencerBase
	_           pad
	nextValue   int64 // Producer-local: highest claimed sequence
	cachedValue int64 // Producer-local: last observed minimum gating sequence
	_           pad
}

// NewSingleProducerSequencer creates a single-producer sequencer.
// A nil ws selects [BlockingWaitStrategy].
// Returns a [ConfigurationError] if capacity is not a power of 2.
func NewSingleProducerSequencer(capacity int, ws WaitStrategy) (*SingleProducerSequencer, error) {
	s := &SingleProducerSequencer{
		nextValue:   InitialSequenceValue,
		cachedValue: InitialSequenceValue,
	}
	if err := s.init(capacity, ws); err != nil {
		return nil, err
	}
	return s, nil
}

// Next implements [Sequencer].
func (s *SingleProducerSequencer) Next(n int) (int64, error) {
	if err := s.checkClaim(n); err != nil {
		return 0, err
	}

	next := s.nextValue + int64(n)
	wrapPoint := next - s.capacity

	if wrapPoint > s.cachedValue || s.cachedValue > s.nextValue {
		backoff := iox.Backoff{}
		for {
			minSeq := minimumSequence(s.gatingSequences(), s.nextValue)
			if wrapPoint <= minSeq {
				s.cachedValue = minSeq
				break
			}
			backoff.Wait()
		}
	}

	s.nextValue = next
	return next, nil
}

// TryNext implements [Sequencer].
func (s *SingleProducerSequencer) TryNext(n int) (int64, error) {
	if err := s.checkClaim(n); err != nil {
		return 0, err
	}

	next := s.nextValue + int64(n)
	wrapPoint := next - s.capacity

	if wrapPoint > s.cachedValue || s.cachedValue > s.nextValue {
		minSeq := minimumSequence(s.gatingSequences(), s.nextValue)
		if wrapPoint > minSeq {
			return 0, ErrWouldBlock
		}
		s.cachedValue = minSeq
	}

	s.nextValue = next
	return next, nil
}

// Publish implements [Sequencer]. lo is implied by the previous cursor.
func (s *SingleProducerSequencer) Publish(lo, hi int64) {
	s.cursor.Store(hi)
	s.waitStrategy.SignalAllWhenBlocking()
}

// IsAvailable implements [Sequencer].
func (s *SingleProducerSequencer) IsAvailable(sequence int64) bool {
	cursor := s.cursor.Load()
	return sequence <= cursor && sequence > cursor-s.capacity
}

// HighestPublished implements [Sequencer]. With a single producer every
// sequence up to the cursor is published.
func (s *SingleProducerSequencer) HighestPublished(lo, available int64) int64 {
	return available
}

// NewBarrier implements [Sequencer].
func (s *SingleProducerSequencer) NewBarrier(deps ...*Sequence) *SequenceBarrier {
	return s.newBarrier(s, deps)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// MultiProducerSequencer is a Sequencer safe for concurrent producers.
//
// Producers claim ranges by CAS on the cursor, so the cursor tracks claims,
// not publication. Publication is tracked per slot: each slot records the
// lap (sequence >> log2(capacity)) of the last sequence published into it.
// Barriers clamp what the wait strategy reports to the highest contiguous
// published sequence ([MultiProducerSequencer.HighestPublished]).
//
// Publish marks a range from high to low, so once the lowest sequence of a
// batch is visible the whole batch is.
type MultiProducerSequencer struct {
	sequencerBase
	_           pad
	gatingCache atomix.Int64 // Last observed minimum gating sequence
	_           padShort
	available   []atomix.Int64
	mask        int64
	shift       uint
}

// NewMultiProducerSequencer creates a multi-producer sequencer.
// A nil ws selects [BlockingWaitStrategy].
// Returns a [ConfigurationError] if capacity is not a power of 2.
func NewMultiProducerSequencer(capacity int, ws WaitStrategy) (*MultiProducerSequencer, error) {
	s := &MultiProducerSequencer{}
	if err := s.init(capacity, ws); err != nil {
		return nil, err
	}
	s.gatingCache.StoreRelaxed(InitialSequenceValue)
	s.available = make([]atomix.Int64, capacity)
	s.mask = int64(capacity - 1)
	s.shift = log2(capacity)
	for i := range s.available {
		s.available[i].StoreRelaxed(-1)
	}
	return s, nil
}

// Next implements [Sequencer].
func (s *MultiProducerSequencer) Next(n int) (int64, error) {
	if err := s.checkClaim(n); err != nil {
		return 0, err
	}

	sw := spin.Wait{}
	backoff := iox.Backoff{}
	for {
		current := s.cursor.Load()
		next := current + int64(n)
		wrapPoint := next - s.capacity
		cached := s.gatingCache.LoadAcquire()

		if wrapPoint > cached || cached > current {
			gating := minimumSequence(s.gatingSequences(), current)
			if wrapPoint > gating {
				backoff.Wait()
				continue
			}
			s.gatingCache.StoreRelease(gating)
			backoff.Reset()
		} else if s.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
		sw.Once()
	}
}

// TryNext implements [Sequencer].
func (s *MultiProducerSequencer) TryNext(n int) (int64, error) {
	if err := s.checkClaim(n); err != nil {
		return 0, err
	}

	sw := spin.Wait{}
	for {
		current := s.cursor.Load()
		next := current + int64(n)
		if s.capacity-(current-minimumSequence(s.gatingSequences(), current)) < int64(n) {
			return 0, ErrWouldBlock
		}
		if s.cursor.CompareAndSwap(current, next) {
			return next, nil
		}
		sw.Once()
	}
}

// Publish implements [Sequencer].
func (s *MultiProducerSequencer) Publish(lo, hi int64) {
	for seq := hi; seq >= lo; seq-- {
		s.available[seq&s.mask].StoreRelease(seq >> s.shift)
	}
	s.waitStrategy.SignalAllWhenBlocking()
}

// IsAvailable implements [Sequencer].
func (s *MultiProducerSequencer) IsAvailable(sequence int64) bool {
	return s.available[sequence&s.mask].LoadAcquire() == sequence>>s.shift
}

// HighestPublished implements [Sequencer].
func (s *MultiProducerSequencer) HighestPublished(lo, available int64) int64 {
	for seq := lo; seq <= available; seq++ {
		if !s.IsAvailable(seq) {
			return seq - 1
		}
	}
	return available
}

// NewBarrier implements [Sequencer].
func (s *MultiProducerSequencer) NewBarrier(deps ...*Sequence) *SequenceBarrier {
	return s.newBarrier(s, deps)
}

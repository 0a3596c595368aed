// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"math"

	"code.hybscloud.com/atomix"
)

// InitialSequenceValue is the value of a fresh cursor: one below the first
// valid sequence.
const InitialSequenceValue int64 = -1

// Sequence is a monotonic counter shared between goroutines.
//
// A Sequence marks the highest sequence fully produced or processed by its
// owner. The owner publishes with [Sequence.Store] (release); observers read
// with [Sequence.Load] (acquire), so every write the owner made before the
// store is visible to an observer that sees the new value.
//
// The value never decreases. Monotonicity is the caller's invariant and is
// not checked.
//
// Each Sequence occupies its own cache line.
type Sequence struct {
	_     pad
	value atomix.Int64
	_     padShort
}

// NewSequence creates a Sequence holding initial.
func NewSequence(initial int64) *Sequence {
	s := &Sequence{}
	s.value.StoreRelaxed(initial)
	return s
}

// Load returns the current value with acquire ordering.
func (s *Sequence) Load() int64 {
	return s.value.LoadAcquire()
}

// LoadRelaxed returns the current value without ordering.
// Only the owner may rely on it.
func (s *Sequence) LoadRelaxed() int64 {
	return s.value.LoadRelaxed()
}

// Store sets the value with release ordering.
func (s *Sequence) Store(v int64) {
	s.value.StoreRelease(v)
}

// CompareAndSwap sets the value to new if it equals old.
func (s *Sequence) CompareAndSwap(old, new int64) bool {
	return s.value.CompareAndSwapAcqRel(old, new)
}

// minimumSequence returns the smallest value in seqs, or fallback when
// seqs is empty or every value is larger.
func minimumSequence(seqs []*Sequence, fallback int64) int64 {
	m := fallback
	for _, s := range seqs {
		if v := s.Load(); v < m {
			m = v
		}
	}
	return m
}

// minimumOf returns the smallest value in seqs; seqs must not be empty.
func minimumOf(seqs []*Sequence) int64 {
	return minimumSequence(seqs, math.MaxInt64)
}

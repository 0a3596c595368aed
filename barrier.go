// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import "code.hybscloud.com/atomix"

// SequenceBarrier gates a consumer behind the producer cursor and any
// upstream consumer cursors.
//
// The dependency set is fixed at construction. A barrier always waits on
// the producer cursor and additionally on any upstream consumer cursors it
// was built with; it admits their minimum.
//
// Create barriers with [Sequencer.NewBarrier].
type SequenceBarrier struct {
	_            pad
	alerted      atomix.Bool
	_            pad
	sequencer    Sequencer
	waitStrategy WaitStrategy
	cursor       *Sequence
	dependents   []*Sequence
}

func newSequenceBarrier(s Sequencer, ws WaitStrategy, cursor *Sequence, deps []*Sequence) *SequenceBarrier {
	dependents := make([]*Sequence, 0, len(deps)+1)
	dependents = append(dependents, cursor)
	dependents = append(dependents, deps...)
	return &SequenceBarrier{
		sequencer:    s,
		waitStrategy: ws,
		cursor:       cursor,
		dependents:   dependents,
	}
}

// WaitFor blocks until sequence is available to this consumer and returns
// the highest sequence that is safe to consume, which may exceed sequence.
//
// A result below sequence is possible with a multi-producer sequencer when
// a lower slot is claimed but not yet published; the caller retries.
//
// Returns ErrAlerted once the barrier has been alerted.
func (b *SequenceBarrier) WaitFor(sequence int64) (int64, error) {
	if err := b.CheckAlert(); err != nil {
		return InitialSequenceValue, err
	}

	available, err := b.waitStrategy.WaitFor(sequence, b.cursor, b.dependents, b)
	if err != nil {
		return available, err
	}
	if available < sequence {
		return available, nil
	}
	return b.sequencer.HighestPublished(sequence, available), nil
}

// Cursor returns the minimum of the dependency sequences: the highest
// sequence this barrier would admit right now.
func (b *SequenceBarrier) Cursor() int64 {
	return minimumOf(b.dependents)
}

// Alert makes current and future WaitFor calls return ErrAlerted and wakes
// blocked waiters.
func (b *SequenceBarrier) Alert() {
	b.alerted.StoreRelease(true)
	b.waitStrategy.SignalAllWhenBlocking()
}

// ClearAlert re-arms the barrier.
func (b *SequenceBarrier) ClearAlert() {
	b.alerted.StoreRelease(false)
}

// IsAlerted reports whether the barrier has been alerted.
func (b *SequenceBarrier) IsAlerted() bool {
	return b.alerted.LoadAcquire()
}

// CheckAlert returns ErrAlerted if the barrier has been alerted.
func (b *SequenceBarrier) CheckAlert() error {
	if b.alerted.LoadAcquire() {
		return ErrAlerted
	}
	return nil
}

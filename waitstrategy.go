// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"runtime"
	"sync"

	"code.hybscloud.com/iox"
	"code.hybscloud.com/spin"
)

// WaitStrategy decides how a consumer waits for a sequence to become
// available.
//
// Strategies differ only in latency and CPU usage; every strategy yields
// the same data in the same order. A single strategy instance is shared by
// the producer and all barriers of one sequencer, so implementations must be
// safe for concurrent use.
type WaitStrategy interface {
	// WaitFor blocks until cursor and every dependent sequence is at least
	// sequence, then returns the smallest dependent value (or the cursor when
	// dependents is empty). The result may exceed sequence.
	//
	// WaitFor returns ErrAlerted as soon as alert reports it, instead of
	// waiting forever.
	WaitFor(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error)

	// SignalAllWhenBlocking wakes goroutines blocked in WaitFor.
	// Called by the producer after every publish and by barriers on alert.
	SignalAllWhenBlocking()
}

// Alerter reports whether a wait must be abandoned.
// [SequenceBarrier] implements it.
type Alerter interface {
	// CheckAlert returns ErrAlerted if the wait must stop, nil otherwise.
	CheckAlert() error
}

// BlockingWaitStrategy parks waiters on a condition variable until the
// producer publishes.
//
// Lowest CPU usage; wake-up latency includes scheduler jitter. The producer
// pays a mutex acquisition per publish. Waiting behind an upstream consumer
// (rather than the producer cursor) spins, as consumers do not signal.
type BlockingWaitStrategy struct {
	mu   sync.Mutex
	cond sync.Cond
}

// NewBlockingWaitStrategy creates a BlockingWaitStrategy.
func NewBlockingWaitStrategy() *BlockingWaitStrategy {
	w := &BlockingWaitStrategy{}
	w.cond.L = &w.mu
	return w
}

// WaitFor implements [WaitStrategy].
func (w *BlockingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error) {
	if cursor.Load() < sequence {
		w.mu.Lock()
		for cursor.Load() < sequence {
			if err := alert.CheckAlert(); err != nil {
				w.mu.Unlock()
				return InitialSequenceValue, err
			}
			w.cond.Wait()
		}
		w.mu.Unlock()
	}
	return spinOnDependents(sequence, cursor, dependents, alert)
}

// SignalAllWhenBlocking implements [WaitStrategy].
//
// The broadcast happens under the mutex: a waiter that checked the cursor
// before the publish is already parked in Wait, so it cannot miss it.
func (w *BlockingWaitStrategy) SignalAllWhenBlocking() {
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

// BusySpinWaitStrategy re-reads the dependent sequences in a tight loop.
//
// Near-zero wake-up latency; each waiter consumes a full core. Use only when
// consumers can be given dedicated cores.
type BusySpinWaitStrategy struct{}

// NewBusySpinWaitStrategy creates a BusySpinWaitStrategy.
func NewBusySpinWaitStrategy() *BusySpinWaitStrategy {
	return &BusySpinWaitStrategy{}
}

// WaitFor implements [WaitStrategy].
func (*BusySpinWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error) {
	return spinOnDependents(sequence, cursor, dependents, alert)
}

// SignalAllWhenBlocking is a no-op.
func (*BusySpinWaitStrategy) SignalAllWhenBlocking() {}

// yieldingSpinTries is the number of spins before YieldingWaitStrategy
// starts yielding the processor.
const yieldingSpinTries = 100

// YieldingWaitStrategy spins for a bounded number of attempts, then yields
// the processor between attempts.
//
// A compromise for consumers that must react quickly but may share cores
// with other goroutines.
type YieldingWaitStrategy struct{}

// NewYieldingWaitStrategy creates a YieldingWaitStrategy.
func NewYieldingWaitStrategy() *YieldingWaitStrategy {
	return &YieldingWaitStrategy{}
}

// WaitFor implements [WaitStrategy].
func (*YieldingWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error) {
	deps := dependentsOrCursor(cursor, dependents)
	counter := yieldingSpinTries
	for {
		available := minimumOf(deps)
		if available >= sequence {
			return available, nil
		}
		if err := alert.CheckAlert(); err != nil {
			return InitialSequenceValue, err
		}
		if counter > 0 {
			counter--
			continue
		}
		runtime.Gosched()
	}
}

// SignalAllWhenBlocking is a no-op.
func (*YieldingWaitStrategy) SignalAllWhenBlocking() {}

// BackoffWaitStrategy polls the dependent sequences with adaptive backoff.
//
// CPU usage drops the longer a consumer stays idle; latency grows with it.
// Suited to background stages where throughput matters more than latency.
type BackoffWaitStrategy struct{}

// NewBackoffWaitStrategy creates a BackoffWaitStrategy.
func NewBackoffWaitStrategy() *BackoffWaitStrategy {
	return &BackoffWaitStrategy{}
}

// WaitFor implements [WaitStrategy].
func (*BackoffWaitStrategy) WaitFor(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error) {
	deps := dependentsOrCursor(cursor, dependents)
	backoff := iox.Backoff{}
	for {
		available := minimumOf(deps)
		if available >= sequence {
			return available, nil
		}
		if err := alert.CheckAlert(); err != nil {
			return InitialSequenceValue, err
		}
		backoff.Wait()
	}
}

// SignalAllWhenBlocking is a no-op.
func (*BackoffWaitStrategy) SignalAllWhenBlocking() {}

// spinOnDependents busy-waits until every dependent reaches sequence.
func spinOnDependents(sequence int64, cursor *Sequence, dependents []*Sequence, alert Alerter) (int64, error) {
	deps := dependentsOrCursor(cursor, dependents)
	sw := spin.Wait{}
	for {
		available := minimumOf(deps)
		if available >= sequence {
			return available, nil
		}
		if err := alert.CheckAlert(); err != nil {
			return InitialSequenceValue, err
		}
		sw.Once()
	}
}

func dependentsOrCursor(cursor *Sequence, dependents []*Sequence) []*Sequence {
	if len(dependents) == 0 {
		return []*Sequence{cursor}
	}
	return dependents
}

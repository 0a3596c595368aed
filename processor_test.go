// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor_test

import (
	"errors"
	"testing"
	"time"

	"code.hybscloud.com/disruptor"
)

func skipIfRace(t *testing.T) {
	t.Helper()
	if disruptor.RaceEnabled {
		t.Skip("skip: slot access is ordered by atomix sequences")
	}
}

// runAsync runs p on its own goroutine and returns its outcome channel.
func runAsync[T any](p *disruptor.BatchEventProcessor[T], b *disruptor.SequenceBarrier, rb *disruptor.RingBuffer[T]) <-chan error {
	done := make(chan error, 1)
	go func() { done <- p.Run(b, rb) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(10 * time.Second):
		t.Fatalf("processor did not return")
		return nil
	}
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestProcessorLifecycle(t *testing.T) {
	skipIfRace(t)

	s, _ := disruptor.NewSingleProducerSequencer(8, nil)
	rb, _ := disruptor.NewRingBuffer[int64](8)
	p := disruptor.NewBatchEventProcessor(func(*int64, int64, bool) error { return nil })

	if p.State() != disruptor.StateIdle {
		t.Fatalf("State: got %v, want idle", p.State())
	}
	if got := p.Cursor().Load(); got != -1 {
		t.Fatalf("Cursor: got %d, want -1", got)
	}

	b := s.NewBarrier()
	done := runAsync(p, b, rb)
	deadline := time.Now().Add(5 * time.Second)
	for !p.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatalf("processor never entered running")
		}
		time.Sleep(time.Millisecond)
	}

	if err := p.Run(b, rb); !errors.Is(err, disruptor.ErrAlreadyRunning) {
		t.Fatalf("second Run: got %v, want ErrAlreadyRunning", err)
	}

	s.Drain()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run after Drain: got %v, want nil", err)
	}
	if p.State() != disruptor.StateHalted {
		t.Fatalf("State after Drain: got %v, want halted", p.State())
	}
	if err := p.Run(b, rb); !errors.Is(err, disruptor.ErrHalted) {
		t.Fatalf("Run after halt: got %v, want ErrHalted", err)
	}
}

func TestProcessorHaltBeforeRun(t *testing.T) {
	s, _ := disruptor.NewSingleProducerSequencer(8, nil)
	rb, _ := disruptor.NewRingBuffer[int64](8)
	p := disruptor.NewBatchEventProcessor(func(*int64, int64, bool) error { return nil })

	p.Halt()
	if err := p.Run(s.NewBarrier(), rb); !errors.Is(err, disruptor.ErrHalted) {
		t.Fatalf("Run after Halt: got %v, want ErrHalted", err)
	}
	if got := disruptor.StateHalted.String(); got != "halted" {
		t.Fatalf("String: got %q, want halted", got)
	}
}

func TestProcessorHaltWhileWaiting(t *testing.T) {
	skipIfRace(t)

	for name, newWS := range waitStrategies() {
		s, _ := disruptor.NewSingleProducerSequencer(8, newWS())
		rb, _ := disruptor.NewRingBuffer[int64](8)
		p := disruptor.NewBatchEventProcessor(func(*int64, int64, bool) error { return nil })

		done := runAsync(p, s.NewBarrier(), rb)
		time.Sleep(10 * time.Millisecond)
		p.Halt()
		if err := waitRun(t, done); err != nil {
			t.Fatalf("%s: Run after Halt: got %v, want nil", name, err)
		}
	}
}

// TestProcessorRejectedRunKeepsBarrier checks that a rejected Run does not
// replace the barrier Halt alerts.
func TestProcessorRejectedRunKeepsBarrier(t *testing.T) {
	skipIfRace(t)

	s, _ := disruptor.NewSingleProducerSequencer(8, nil)
	rb, _ := disruptor.NewRingBuffer[int64](8)
	p := disruptor.NewBatchEventProcessor(func(*int64, int64, bool) error { return nil })

	running := s.NewBarrier()
	done := runAsync(p, running, rb)
	deadline := time.Now().Add(5 * time.Second)
	for !p.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatalf("processor never entered running")
		}
		time.Sleep(time.Millisecond)
	}

	other := s.NewBarrier()
	if err := p.Run(other, rb); !errors.Is(err, disruptor.ErrAlreadyRunning) {
		t.Fatalf("second Run: got %v, want ErrAlreadyRunning", err)
	}
	if other.IsAlerted() {
		t.Fatalf("rejected barrier alerted before Halt")
	}

	p.Halt()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run after Halt: got %v, want nil", err)
	}
	if !running.IsAlerted() {
		t.Fatalf("running barrier not alerted")
	}
	if other.IsAlerted() {
		t.Fatalf("Halt alerted the rejected barrier")
	}
}

// TestProcessorPanicWithErrorKeepsCause checks that an error panic value
// stays reachable through errors.Is.
func TestProcessorPanicWithErrorKeepsCause(t *testing.T) {
	s, _ := disruptor.NewSingleProducerSequencer(8, nil)
	rb, _ := disruptor.NewRingBuffer[int64](8)
	boom := errors.New("boom")
	p := disruptor.NewBatchEventProcessor(func(*int64, int64, bool) error {
		panic(boom)
	})

	if err := disruptor.WriteOne(s, rb, int64(1), copyItem); err != nil {
		t.Fatalf("WriteOne: %v", err)
	}
	err := p.Run(s.NewBarrier(), rb)
	var perr *disruptor.ProcessingError
	if !errors.As(err, &perr) {
		t.Fatalf("Run: got %v, want ProcessingError", err)
	}
	if !errors.Is(err, boom) {
		t.Fatalf("Run: cause lost: %v", err)
	}
	if perr.Recovered != boom {
		t.Fatalf("Recovered: got %v, want %v", perr.Recovered, boom)
	}
	if got := p.Cursor().Load(); got != -1 {
		t.Fatalf("Cursor: got %d, want -1", got)
	}
}

// =============================================================================
// Batching
// =============================================================================

func TestProcessorBatchEndFlag(t *testing.T) {
	skipIfRace(t)

	s, _ := disruptor.NewSingleProducerSequencer(16, nil)
	rb, _ := disruptor.NewRingBuffer[int64](16)

	var ends []int64
	var seqs []int64
	p := disruptor.NewBatchEventProcessor(func(_ *int64, seq int64, endOfBatch bool) error {
		seqs = append(seqs, seq)
		if endOfBatch {
			ends = append(ends, seq)
		}
		return nil
	})
	s.AddGatingSequences(p.Cursor())

	// Publish before the processor starts: one batch covers all of it.
	if err := disruptor.Write(s, rb, []int64{1, 2, 3, 4, 5}, copyItem); err != nil {
		t.Fatalf("Write: %v", err)
	}
	done := runAsync(p, s.NewBarrier(), rb)
	s.Drain()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(seqs) != 5 {
		t.Fatalf("handled %d events, want 5", len(seqs))
	}
	for i, seq := range seqs {
		if seq != int64(i) {
			t.Fatalf("order[%d]: got %d, want %d", i, seq, i)
		}
	}
	if len(ends) != 1 || ends[0] != 4 {
		t.Fatalf("end of batch flags: got %v, want [4]", ends)
	}
	if got := p.Cursor().Load(); got != 4 {
		t.Fatalf("Cursor: got %d, want 4", got)
	}
}

func TestReadOnlyProcessorCannotMutate(t *testing.T) {
	skipIfRace(t)

	s, _ := disruptor.NewSingleProducerSequencer(8, nil)
	rb, _ := disruptor.NewRingBuffer[int64](8)

	var negated []int64
	p := disruptor.NewReadOnlyProcessor(func(v int64, _ int64, _ bool) error {
		v = -v
		negated = append(negated, v)
		return nil
	})
	s.AddGatingSequences(p.Cursor())
	if err := disruptor.Write(s, rb, []int64{3, 4}, copyItem); err != nil {
		t.Fatalf("Write: %v", err)
	}
	done := runAsync(p, s.NewBarrier(), rb)
	s.Drain()
	if err := waitRun(t, done); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(negated) != 2 || negated[0] != -3 || negated[1] != -4 {
		t.Fatalf("handler saw %v, want [-3 -4]", negated)
	}
	if *rb.Get(0) != 3 || *rb.Get(1) != 4 {
		t.Fatalf("slots modified by read-only handler: %d, %d", *rb.Get(0), *rb.Get(1))
	}
}

// =============================================================================
// Failure isolation
// =============================================================================

func TestProcessorFailureIsolation(t *testing.T) {
	skipIfRace(t)

	const (
		capacity = 8
		failAt   = 5
	)
	for _, mode := range []string{"error", "panic"} {
		s, _ := disruptor.NewSingleProducerSequencer(capacity, nil)
		rb, _ := disruptor.NewRingBuffer[int64](capacity)
		boom := errors.New("boom")

		p1 := disruptor.NewBatchEventProcessor(func(v *int64, seq int64, _ bool) error {
			if seq == failAt {
				if mode == "panic" {
					panic("bad event")
				}
				return boom
			}
			*v *= 2
			return nil
		})
		var p2Max int64 = -1
		p2 := disruptor.NewReadOnlyProcessor(func(_ int64, seq int64, _ bool) error {
			p2Max = seq
			return nil
		})

		b1 := s.NewBarrier()
		b2 := s.NewBarrier(p1.Cursor())
		s.AddGatingSequences(p1.Cursor(), p2.Cursor())

		done1 := runAsync(p1, b1, rb)
		done2 := runAsync(p2, b2, rb)

		items := make([]int64, capacity)
		for i := range items {
			items[i] = int64(i)
		}
		if err := disruptor.Write(s, rb, items, copyItem); err != nil {
			t.Fatalf("%s: Write: %v", mode, err)
		}

		err := waitRun(t, done1)
		var perr *disruptor.ProcessingError
		if !errors.As(err, &perr) {
			t.Fatalf("%s: p1 Run: got %v, want ProcessingError", mode, err)
		}
		if perr.Sequence != failAt {
			t.Fatalf("%s: failed sequence: got %d, want %d", mode, perr.Sequence, failAt)
		}
		switch mode {
		case "error":
			if !errors.Is(err, boom) {
				t.Fatalf("error: cause not preserved: %v", err)
			}
		case "panic":
			if perr.Recovered != "bad event" {
				t.Fatalf("panic: Recovered: got %v", perr.Recovered)
			}
		}
		if got := p1.Cursor().Load(); got != failAt-1 {
			t.Fatalf("%s: p1 cursor: got %d, want %d", mode, got, failAt-1)
		}

		// p2 sees everything before the failure and nothing after.
		deadline := time.Now().Add(5 * time.Second)
		for p2.Cursor().Load() < failAt-1 {
			if time.Now().After(deadline) {
				t.Fatalf("%s: p2 stuck at %d", mode, p2.Cursor().Load())
			}
			time.Sleep(time.Millisecond)
		}
		time.Sleep(20 * time.Millisecond)
		if got := p2.Cursor().Load(); got != failAt-1 {
			t.Fatalf("%s: p2 cursor: got %d, want %d", mode, got, failAt-1)
		}

		// The producer stalls once the ring wraps onto the failed sequence.
		if _, err := s.TryNext(failAt + 1); !errors.Is(err, disruptor.ErrWouldBlock) {
			t.Fatalf("%s: TryNext past stalled gate: got %v, want ErrWouldBlock", mode, err)
		}

		p2.Halt()
		if err := waitRun(t, done2); err != nil {
			t.Fatalf("%s: p2 Run: got %v, want nil", mode, err)
		}
		if p2Max != failAt-1 {
			t.Fatalf("%s: p2 last handled: got %d, want %d", mode, p2Max, failAt-1)
		}
	}
}

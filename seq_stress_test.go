// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor_test

import (
	"fmt"
	"sync"
	"testing"

	"code.hybscloud.com/disruptor"
	"github.com/valyala/fastrand"
)

// =============================================================================
// Multi-producer stress: no loss, no duplication, per-producer order
// =============================================================================

func TestMultiProducerStress(t *testing.T) {
	skipIfRace(t)

	const (
		producers   = 4
		perProducer = 20000
		capacity    = 256
	)
	type event struct {
		producer int
		value    int
	}

	for name, newWS := range waitStrategies() {
		t.Run(name, func(t *testing.T) {
			s, err := disruptor.NewMultiProducerSequencer(capacity, newWS())
			if err != nil {
				t.Fatalf("NewMultiProducerSequencer: %v", err)
			}
			rb, _ := disruptor.NewRingBuffer[event](capacity)

			next := make([]int, producers)
			var count int
			consumer := disruptor.NewReadOnlyProcessor(func(ev event, _ int64, _ bool) error {
				if ev.value != next[ev.producer] {
					return fmt.Errorf("producer %d: got %d, want %d", ev.producer, ev.value, next[ev.producer])
				}
				next[ev.producer]++
				count++
				return nil
			})
			s.AddGatingSequences(consumer.Cursor())
			done := runAsync(consumer, s.NewBarrier(), rb)

			var wg sync.WaitGroup
			for p := range producers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for v := 0; v < perProducer; {
						// Random batch sizes exercise gaps between concurrent claims.
						n := min(int(fastrand.Uint32n(16))+1, perProducer-v)
						items := make([]event, n)
						for i := range items {
							items[i] = event{producer: p, value: v + i}
						}
						if err := disruptor.Write(s, rb, items, func(ev *event, _ int64, item *event) {
							*ev = *item
						}); err != nil {
							panic(err)
						}
						v += n
					}
				}()
			}
			wg.Wait()
			s.Drain()

			if err := waitRun(t, done); err != nil {
				t.Fatalf("consumer: %v", err)
			}
			if count != producers*perProducer {
				t.Fatalf("consumed %d, want %d", count, producers*perProducer)
			}
			if got := s.Cursor().Load(); got != producers*perProducer-1 {
				t.Fatalf("cursor: got %d, want %d", got, producers*perProducer-1)
			}
		})
	}
}

// TestSingleProducerRandomBatches drives a three-stage chain with random
// batch sizes and checks that every stage sees every sequence exactly once.
func TestSingleProducerRandomBatches(t *testing.T) {
	skipIfRace(t)

	const (
		total    = 50000
		capacity = 64
	)
	type event struct {
		seq    int64
		visits int
	}

	s, _ := disruptor.NewSingleProducerSequencer(capacity, disruptor.NewBusySpinWaitStrategy())
	rb, _ := disruptor.NewRingBuffer[event](capacity)

	visit := func(stage int) disruptor.EventHandler[event] {
		return func(ev *event, seq int64, _ bool) error {
			if ev.seq != seq || ev.visits != stage {
				return fmt.Errorf("stage %d at %d: got %+v", stage, seq, *ev)
			}
			ev.visits++
			return nil
		}
	}
	stages := []*disruptor.BatchEventProcessor[event]{
		disruptor.NewBatchEventProcessor(visit(0)),
		disruptor.NewBatchEventProcessor(visit(1)),
		disruptor.NewBatchEventProcessor(visit(2)),
	}
	dones := make([]<-chan error, len(stages))
	barrier := s.NewBarrier()
	for i, p := range stages {
		dones[i] = runAsync(p, barrier, rb)
		barrier = s.NewBarrier(p.Cursor())
	}
	s.AddGatingSequences(stages[len(stages)-1].Cursor())

	for written := 0; written < total; {
		n := min(int(fastrand.Uint32n(capacity))+1, total-written)
		items := make([]int, n)
		if err := disruptor.Write(s, rb, items, func(ev *event, seq int64, _ *int) {
			*ev = event{seq: seq}
		}); err != nil {
			t.Fatalf("Write: %v", err)
		}
		written += n
	}
	s.Drain()

	for i, done := range dones {
		if err := waitRun(t, done); err != nil {
			t.Fatalf("stage %d: %v", i, err)
		}
		if got := stages[i].Cursor().Load(); got != total-1 {
			t.Fatalf("stage %d cursor: got %d, want %d", i, got, total-1)
		}
	}
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"fmt"

	"code.hybscloud.com/disruptor"
)

// Stage is a set of processors that consume in parallel behind the same
// barrier.
type Stage[T any] struct {
	p          *Pipeline[T]
	processors []*processor[T]
}

// Then adds a stage behind this one: its handlers see each event only after
// every processor of this stage has finished with it.
func (s *Stage[T]) Then(handlers ...disruptor.EventHandler[T]) *Stage[T] {
	return s.p.addStage(s, processorsOf(handlers, disruptor.NewBatchEventProcessor[T]))
}

// ThenReadOnly is Then for read-only handlers.
func (s *Stage[T]) ThenReadOnly(handlers ...disruptor.ReadOnlyHandler[T]) *Stage[T] {
	return s.p.addStage(s, processorsOf(handlers, disruptor.NewReadOnlyProcessor[T]))
}

// Cursors returns the cursors of the stage's processors.
func (s *Stage[T]) Cursors() []*disruptor.Sequence {
	cursors := make([]*disruptor.Sequence, len(s.processors))
	for i, proc := range s.processors {
		cursors[i] = proc.bep.Cursor()
	}
	return cursors
}

func processorsOf[T any, H any](handlers []H, build func(H) *disruptor.BatchEventProcessor[T]) []*disruptor.BatchEventProcessor[T] {
	beps := make([]*disruptor.BatchEventProcessor[T], len(handlers))
	for i, h := range handlers {
		beps[i] = build(h)
	}
	return beps
}

// addStage wires beps behind upstream (or behind the producer when
// upstream is nil). Panics once the pipeline has started.
func (p *Pipeline[T]) addStage(upstream *Stage[T], beps []*disruptor.BatchEventProcessor[T]) *Stage[T] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		panic("pipeline: stages must be added before Start")
	}

	var deps []*disruptor.Sequence
	if upstream != nil {
		deps = upstream.Cursors()
		for _, proc := range upstream.processors {
			proc.downstream = true
		}
	}
	barrier := p.sequencer.NewBarrier(deps...)

	stage := &Stage[T]{p: p}
	for _, bep := range beps {
		proc := &processor[T]{
			name:    fmt.Sprintf("p%d", len(p.processors)),
			bep:     bep,
			barrier: barrier,
		}
		p.processors = append(p.processors, proc)
		stage.processors = append(stage.processors, proc)
	}
	return stage
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/disruptor"
	"code.hybscloud.com/iox"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	// ErrAlreadyStarted is returned by Start on a started pipeline.
	ErrAlreadyStarted = errors.New("pipeline: already started")

	// ErrNotStarted is returned by Shutdown on a pipeline that never started.
	ErrNotStarted = errors.New("pipeline: not started")

	// ErrNoHandlers is returned by Start when no stage has been added.
	ErrNoHandlers = errors.New("pipeline: no event handlers")

	// ErrPoolTooSmall is returned by Start when the pool has fewer free
	// workers than the pipeline has processors.
	ErrPoolTooSmall = errors.New("pipeline: pool has fewer free workers than processors")
)

// Pipeline owns a ring buffer, its sequencer and a graph of processor
// stages.
//
// Wire stages with HandleEventsWith and Then before Start; publish with
// Publish; stop with Shutdown (lossless) or Halt (immediate).
type Pipeline[T any] struct {
	opts      *Options
	logger    *zap.Logger
	ring      *disruptor.RingBuffer[T]
	sequencer disruptor.Sequencer

	mu         sync.Mutex
	started    bool
	processors []*processor[T]

	errMu sync.Mutex
	errs  []error

	pool     *ants.Pool
	ownsPool bool
	wg       sync.WaitGroup
	stopOnce sync.Once

	failed   atomix.Bool
	failures atomix.Int64
	firstErr chan error
}

// processor is a BatchEventProcessor bound to its barrier.
type processor[T any] struct {
	name       string
	bep        *disruptor.BatchEventProcessor[T]
	barrier    *disruptor.SequenceBarrier
	downstream bool // Another stage depends on this cursor
}

// New creates a pipeline over a ring of zero-valued events.
// capacity must be a power of 2.
func New[T any](capacity int, options ...Option) (*Pipeline[T], error) {
	rb, err := disruptor.NewRingBuffer[T](capacity)
	if err != nil {
		return nil, err
	}
	return newPipeline(rb, options...)
}

// NewFunc creates a pipeline over a ring preallocated by factory.
func NewFunc[T any](capacity int, factory func() T, options ...Option) (*Pipeline[T], error) {
	rb, err := disruptor.NewRingBufferFunc(capacity, factory)
	if err != nil {
		return nil, err
	}
	return newPipeline(rb, options...)
}

func newPipeline[T any](rb *disruptor.RingBuffer[T], options ...Option) (*Pipeline[T], error) {
	opts := loadOptions(options...)
	b := disruptor.New(rb.Cap()).WaitStrategy(opts.WaitStrategy)
	if opts.MultiProducer {
		b.MultiProducer()
	}
	s, err := b.BuildSequencer()
	if err != nil {
		return nil, err
	}
	return &Pipeline[T]{
		opts:      opts,
		logger:    opts.Logger.With(zap.String("pipeline", opts.Name)),
		ring:      rb,
		sequencer: s,
		firstErr:  make(chan error, 1),
	}, nil
}

// RingBuffer returns the pipeline's ring.
func (p *Pipeline[T]) RingBuffer() *disruptor.RingBuffer[T] {
	return p.ring
}

// Sequencer returns the pipeline's sequencer.
func (p *Pipeline[T]) Sequencer() disruptor.Sequencer {
	return p.sequencer
}

// HandleEventsWith adds a stage of handlers that consume directly behind
// the producer. Handlers in one stage run in parallel, each on its own
// processor.
func (p *Pipeline[T]) HandleEventsWith(handlers ...disruptor.EventHandler[T]) *Stage[T] {
	return p.addStage(nil, processorsOf(handlers, disruptor.NewBatchEventProcessor[T]))
}

// HandleEventsWithReadOnly is HandleEventsWith for read-only handlers.
func (p *Pipeline[T]) HandleEventsWithReadOnly(handlers ...disruptor.ReadOnlyHandler[T]) *Stage[T] {
	return p.addStage(nil, processorsOf(handlers, disruptor.NewReadOnlyProcessor[T]))
}

// After returns a stage that completes when every given stage has; handlers
// added with Then run behind all of them.
func (p *Pipeline[T]) After(stages ...*Stage[T]) *Stage[T] {
	merged := &Stage[T]{p: p}
	for _, s := range stages {
		merged.processors = append(merged.processors, s.processors...)
	}
	return merged
}

// Start registers the final stages as gating sequences and runs every
// processor on the pool.
func (p *Pipeline[T]) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrAlreadyStarted
	}
	if len(p.processors) == 0 {
		return ErrNoHandlers
	}

	pool := p.opts.Pool
	if pool == nil {
		var err error
		pool, err = ants.NewPool(len(p.processors))
		if err != nil {
			return fmt.Errorf("pipeline: create pool: %w", err)
		}
		p.ownsPool = true
	} else if free := pool.Free(); free >= 0 && free < len(p.processors) {
		return ErrPoolTooSmall
	}
	p.pool = pool

	for _, proc := range p.processors {
		if !proc.downstream {
			p.sequencer.AddGatingSequences(proc.bep.Cursor())
		}
	}

	for i, proc := range p.processors {
		p.wg.Add(1)
		if err := pool.Submit(func() {
			defer p.wg.Done()
			p.run(proc)
		}); err != nil {
			p.wg.Done()
			for _, started := range p.processors[:i] {
				started.bep.Halt()
			}
			p.wg.Wait()
			for _, gate := range p.processors {
				if !gate.downstream {
					p.sequencer.RemoveGatingSequence(gate.bep.Cursor())
				}
			}
			p.releasePool()
			return fmt.Errorf("pipeline: submit %s: %w", proc.name, err)
		}
	}

	p.started = true
	p.logger.Info("pipeline started",
		zap.Int("capacity", p.ring.Cap()),
		zap.Int("processors", len(p.processors)),
		zap.Bool("multi_producer", p.opts.MultiProducer))
	return nil
}

func (p *Pipeline[T]) run(proc *processor[T]) {
	p.logger.Debug("processor running", zap.String("processor", proc.name))
	err := proc.bep.Run(proc.barrier, p.ring)
	// ErrHalted: halted before the worker reached Run.
	if err == nil || errors.Is(err, disruptor.ErrHalted) {
		p.logger.Debug("processor halted",
			zap.String("processor", proc.name),
			zap.Int64("cursor", proc.bep.Cursor().Load()))
		return
	}

	fields := []zap.Field{zap.String("processor", proc.name), zap.Error(err)}
	var perr *disruptor.ProcessingError
	if errors.As(err, &perr) {
		fields = append(fields, zap.Int64("sequence", perr.Sequence))
	}
	p.logger.Error("processor failed", fields...)
	p.fail(fmt.Errorf("%s: %w", proc.name, err))
}

func (p *Pipeline[T]) fail(err error) {
	p.errMu.Lock()
	p.errs = append(p.errs, err)
	p.errMu.Unlock()
	p.failures.Add(1)
	p.failed.StoreRelease(true)
	select {
	case p.firstErr <- err:
	default:
	}
}

// Err returns a channel that receives the first processing failure.
// A failed processor stalls the stages behind it and, through gating, the
// producer; the owner typically stops publishing and calls Shutdown.
func (p *Pipeline[T]) Err() <-chan error {
	return p.firstErr
}

// Shutdown stops the pipeline without losing events.
//
// Shutdown waits until every final stage has processed everything
// published, then drains the sequencer so that every processor returns. If
// a processor has failed, the pipeline can never catch up: Shutdown halts
// the remaining processors instead. Returns the joined processing failures.
//
// Publishers must have stopped before Shutdown is called.
func (p *Pipeline[T]) Shutdown() error {
	return p.stop(true)
}

// Halt stops every processor after its current batch, abandoning events
// not yet processed. Returns the joined processing failures.
func (p *Pipeline[T]) Halt() error {
	return p.stop(false)
}

func (p *Pipeline[T]) stop(drain bool) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	p.stopOnce.Do(func() {
		if drain && p.waitCaughtUp() {
			p.sequencer.Drain()
			p.logger.Info("pipeline drained", zap.Int64("cursor", p.sequencer.Cursor().Load()))
		} else {
			for _, proc := range p.processors {
				proc.bep.Halt()
			}
			p.logger.Warn("pipeline halted",
				zap.Int64("cursor", p.sequencer.Cursor().Load()),
				zap.Int64("minimum", p.sequencer.MinimumSequence()))
		}
		p.wg.Wait()
		p.releasePool()
	})

	p.errMu.Lock()
	defer p.errMu.Unlock()
	return errors.Join(p.errs...)
}

// waitCaughtUp blocks until the gating sequences reach the cursor.
// Returns false if a processor fails first.
func (p *Pipeline[T]) waitCaughtUp() bool {
	backoff := iox.Backoff{}
	for !p.failed.LoadAcquire() {
		if p.sequencer.MinimumSequence() >= p.sequencer.Cursor().Load() {
			return true
		}
		backoff.Wait()
	}
	return false
}

func (p *Pipeline[T]) releasePool() {
	if p.ownsPool && p.pool != nil {
		p.pool.Release()
		p.pool = nil
	}
}

// Publish writes items as one batch. See [disruptor.Write].
func Publish[T, E any](p *Pipeline[T], items []E, translate disruptor.Translator[T, E]) error {
	return disruptor.Write(p.sequencer, p.ring, items, translate)
}

// TryPublish is Publish without blocking. See [disruptor.TryWrite].
func TryPublish[T, E any](p *Pipeline[T], items []E, translate disruptor.Translator[T, E]) error {
	return disruptor.TryWrite(p.sequencer, p.ring, items, translate)
}

// PublishOne writes a single item. See [disruptor.WriteOne].
func PublishOne[T, E any](p *Pipeline[T], item E, translate disruptor.Translator[T, E]) error {
	return disruptor.WriteOne(p.sequencer, p.ring, item, translate)
}

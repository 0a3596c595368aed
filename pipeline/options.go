// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"code.hybscloud.com/disruptor"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// DefaultName labels logs and metrics of a pipeline created without WithName.
const DefaultName = "disruptor"

// Option is a function that will set up option.
type Option func(opts *Options)

func loadOptions(options ...Option) *Options {
	opts := new(Options)
	for _, option := range options {
		option(opts)
	}
	if opts.Name == "" {
		opts.Name = DefaultName
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.WaitStrategy == nil {
		opts.WaitStrategy = disruptor.NewBlockingWaitStrategy()
	}
	return opts
}

// Options are set when the pipeline is created.
type Options struct {
	// Name labels the pipeline in logs and metrics.
	Name string

	// WaitStrategy is shared by every stage; Blocking when nil.
	WaitStrategy disruptor.WaitStrategy

	// MultiProducer selects the CAS-based sequencer so that several
	// goroutines may publish concurrently.
	MultiProducer bool

	// Logger receives lifecycle and failure logs; a no-op logger when nil.
	Logger *zap.Logger

	// Pool runs the processor loops. Each processor occupies a worker for
	// its whole lifetime, so the pool needs at least one free worker per
	// processor. When nil, Start creates a pool sized to the processors and
	// releases it on shutdown.
	Pool *ants.Pool
}

// WithOptions sets up all options.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

// WithName sets the pipeline name used in logs and metric labels.
func WithName(name string) Option {
	return func(opts *Options) {
		opts.Name = name
	}
}

// WithWaitStrategy sets the consumer wait strategy.
func WithWaitStrategy(ws disruptor.WaitStrategy) Option {
	return func(opts *Options) {
		opts.WaitStrategy = ws
	}
}

// WithMultiProducer allows concurrent publishers.
func WithMultiProducer(multiProducer bool) Option {
	return func(opts *Options) {
		opts.MultiProducer = multiProducer
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithPool runs processors on a caller-owned goroutine pool.
func WithPool(pool *ants.Pool) Option {
	return func(opts *Options) {
		opts.Pool = pool
	}
}

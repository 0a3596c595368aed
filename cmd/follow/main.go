// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command follow runs a two-stage pipeline in which the second stage
// verifies the first stage's update to every event.
//
// Stage 1 checks that each event holds its own sequence and doubles it;
// stage 2 checks that it sees the doubled value. The run repeats once per
// configured wait strategy. Configuration comes from FOLLOW_* environment
// variables; logs go to stdout and FOLLOW_LOG_FILE.
package main

import (
	"errors"
	"fmt"
	"os"

	"code.hybscloud.com/disruptor"
	"code.hybscloud.com/disruptor/pipeline"
	"code.hybscloud.com/iox"
	"go.uber.org/zap"
)

func main() {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger, flush, err := newLogger(os.Stdout, cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	err = run(cfg, logger)
	if err != nil {
		logger.Error("follow failed", zap.Error(err))
	}
	_ = flush()
	if err != nil {
		os.Exit(1)
	}
}

// run executes the follow pipeline once per strategy and returns every
// strategy's failure joined.
func run(cfg *Config, logger *zap.Logger) error {
	var errs []error
	for _, name := range cfg.Strategies {
		if err := follow(cfg, name, logger); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func follow(cfg *Config, strategy string, logger *zap.Logger) error {
	ws, err := newWaitStrategy(strategy)
	if err != nil {
		return err
	}
	p, err := pipeline.New[int64](cfg.Capacity,
		pipeline.WithName(strategy),
		pipeline.WithWaitStrategy(ws),
		pipeline.WithMultiProducer(cfg.Multi),
		pipeline.WithLogger(logger))
	if err != nil {
		return err
	}
	log := logger.With(zap.String("pipeline", strategy))

	p.HandleEventsWith(func(v *int64, seq int64, _ bool) error {
		if *v != seq {
			return fmt.Errorf("stage 1: got %d, want %d", *v, seq)
		}
		*v *= 2
		log.Debug("updated", zap.Int64("sequence", seq), zap.Int64("value", *v))
		return nil
	}).ThenReadOnly(func(v int64, seq int64, _ bool) error {
		if v != 2*seq {
			return fmt.Errorf("stage 2: got %d, want %d", v, 2*seq)
		}
		log.Debug("followed", zap.Int64("sequence", seq), zap.Int64("value", v))
		return nil
	})
	if err := p.Start(); err != nil {
		return err
	}

	batch := make([]int64, 0, cfg.BatchSize)
	for i := range int64(cfg.Items) {
		batch = append(batch, i)
		if len(batch) == cfg.BatchSize || i == int64(cfg.Items)-1 {
			if err := publish(p, batch); err != nil {
				return errors.Join(err, p.Halt())
			}
			batch = batch[:0]
		}
	}

	if err := p.Shutdown(); err != nil {
		return err
	}
	log.Info("follow complete",
		zap.Int("items", cfg.Items),
		zap.Int64("cursor", p.Sequencer().Cursor().Load()))
	return nil
}

func store(ev *int64, _ int64, v *int64) {
	*ev = *v
}

// errStalled reports that a processor failed while the producer was
// waiting for ring capacity.
var errStalled = errors.New("pipeline stalled by a failed processor")

// publish retries a full ring until a processor failure makes waiting
// pointless.
func publish(p *pipeline.Pipeline[int64], batch []int64) error {
	backoff := iox.Backoff{}
	for {
		err := pipeline.TryPublish(p, batch, store)
		if !disruptor.IsWouldBlock(err) {
			return err
		}
		select {
		case <-p.Err():
			return errStalled
		default:
		}
		backoff.Wait()
	}
}

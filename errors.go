// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package disruptor

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates the operation cannot proceed immediately.
//
// Returned by [Sequencer.TryNext] when claiming the requested number of
// slots would overwrite events that a gating consumer has not processed yet.
// It is a control flow signal, not a failure.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrConfiguration is the sentinel matched by every [ConfigurationError].
var ErrConfiguration = errors.New("disruptor: invalid configuration")

// ErrAlerted is returned by [SequenceBarrier.WaitFor] once the barrier has
// been alerted, either by [Sequencer.Drain] or by halting the processor that
// owns it. It is the normal shutdown signal of a run loop, not a failure.
var ErrAlerted = errors.New("disruptor: barrier alerted")

// ErrAlreadyRunning is returned by Run on a processor that is already running.
var ErrAlreadyRunning = errors.New("disruptor: processor already running")

// ErrHalted is returned by Run on a processor that has already halted.
// Halted is terminal; create a new processor instead.
var ErrHalted = errors.New("disruptor: processor halted")

// ConfigurationError reports an invalid construction or call parameter.
// It is detected synchronously, before anything blocks.
type ConfigurationError struct {
	Param  string
	Value  int
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("disruptor: invalid %s %d: %s", e.Param, e.Value, e.Reason)
}

// Is reports whether target is [ErrConfiguration].
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// ProcessingError reports a failed event handler.
//
// Sequence is the sequence whose handler failed; the processor cursor was
// left at Sequence-1. Recovered holds the panic value when the handler
// panicked instead of returning an error.
type ProcessingError struct {
	Sequence  int64
	Err       error
	Recovered any
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("disruptor: handler failed at sequence %d: %v", e.Sequence, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// IsAlerted reports whether err is the barrier shutdown signal.
func IsAlerted(err error) bool {
	return errors.Is(err, ErrAlerted)
}

// IsConfiguration reports whether err is a [ConfigurationError].
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsWouldBlock reports whether err indicates the operation would block.
// Delegates to [iox.IsWouldBlock] for wrapped error support.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control flow signal (not a failure).
// The barrier shutdown signal counts as semantic.
func IsSemantic(err error) bool {
	return IsAlerted(err) || iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
// Returns true for nil, ErrWouldBlock, iox.ErrMore, or ErrAlerted.
func IsNonFailure(err error) bool {
	return IsAlerted(err) || iox.IsNonFailure(err)
}

func capacityError(param string, value int) error {
	return &ConfigurationError{Param: param, Value: value, Reason: "must be a power of 2 and >= 1"}
}

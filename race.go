// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build race

package disruptor

// RaceEnabled is true when the race detector is active.
// Used by tests to skip concurrent pipeline tests, whose slot accesses are
// ordered by atomix sequences the detector cannot observe.
const RaceEnabled = true

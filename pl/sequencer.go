// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

// sequencer generates the per-point time base: the two stimulus trigger
// gates and the accumulation gate, all derived from a free-running tick
// counter in [0, PointTime).
//
// The accumulation gate opens at tick DeadTime+1, not DeadTime: the extra
// idle tick keeps the last stimulus pulse and the gate assertion from racing
// in the downstream latch.
type sequencer struct {
	deadTime  uint32
	pointTime uint32
	trigLen   uint32
	trig0     TrigConfig
	trig1     TrigConfig

	tick  uint32 // current position inside the point period
	first bool   // true until the counter wraps for the first time

	// committed outputs
	genGate bool // stimulus generation window
	accGate bool // accumulation window request
	out0    bool // trigger line 0
	out1    bool // trigger line 1

	// next state
	nxtTick  uint32
	nxtFirst bool
}

func newSequencer(cfg Config) sequencer {
	seq := sequencer{
		deadTime:  cfg.DeadTime,
		pointTime: cfg.PointTime,
		trigLen:   cfg.TrigLen,
		trig0:     cfg.Trig0,
		trig1:     cfg.Trig1,
		first:     true,
	}
	// outputs for tick 0, before the first step
	seq.genGate = seq.tick < seq.trigLen
	seq.accGate = seq.tick > seq.deadTime
	seq.out0 = trigOut(seq.trig0, seq.genGate, seq.first)
	seq.out1 = trigOut(seq.trig1, seq.genGate, seq.first)
	return seq
}

func (seq *sequencer) step() {
	seq.nxtTick = seq.tick + 1
	seq.nxtFirst = seq.first
	if seq.nxtTick >= seq.pointTime {
		seq.nxtTick = 0
		seq.nxtFirst = false
	}
}

func (seq *sequencer) commit() {
	seq.tick = seq.nxtTick
	seq.first = seq.nxtFirst

	seq.genGate = seq.tick < seq.trigLen
	seq.accGate = seq.tick > seq.deadTime
	seq.out0 = trigOut(seq.trig0, seq.genGate, seq.first)
	seq.out1 = trigOut(seq.trig1, seq.genGate, seq.first)
}

// trigOut computes one stimulus trigger line: the gate is enabled by the
// first-point or rest-of-sweep policy bit, then optionally inverted.
func trigOut(cfg TrigConfig, gate, first bool) bool {
	policy := cfg.Rest
	if first {
		policy = cfg.First
	}
	v := gate && policy
	if cfg.Invert {
		v = !v
	}
	return v
}

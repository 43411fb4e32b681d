// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"fmt"
)

// TickInput carries the external signals sampled by the pipeline on one
// tick: the four channel samples and the downstream ready of the word
// stream.
type TickInput struct {
	Samples [NumChans]int32
	Ready   bool
}

// TickOutput carries the registered outputs of the pipeline for one tick.
// Word is only meaningful while Valid is true; Last marks the final word of
// a coalesced transfer. A word presented with Valid is consumed on a tick
// where Ready was asserted, and held otherwise.
type TickOutput struct {
	Trig0 bool
	Trig1 bool

	Word  uint32
	Valid bool
	Last  bool
}

// Option configures an Engine.
type Option func(*engineCfg)

type engineCfg struct {
	phase PhaseCounter
}

// WithPhaseCounter injects an externally owned phase counter. The caller
// is then responsible for advancing it once per tick; by default the engine
// steps its own NCO derived from the IF multiplier.
func WithPhaseCounter(pc PhaseCounter) Option {
	return func(cfg *engineCfg) {
		cfg.phase = pc
	}
}

// Engine advances the whole acquisition pipeline one tick at a time.
//
// Each tick runs in two phases: every state machine first computes its next
// state from the outputs the others committed on the previous tick, then all
// commit together. Outputs therefore never reflect a same-tick recomputation
// and the step order of the components is immaterial.
type Engine struct {
	cfg Config

	seq  sequencer
	trg  pointTrigger
	acc  [NumChans]accumulator
	pkt  packetiser
	str  stretcher
	nco  *NCO // nil when the phase counter is injected
	clk  PhaseCounter
	tick uint64
}

// NewEngine returns an engine for the given (validated) configuration.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("pl: invalid configuration: %w", err)
	}

	var ecfg engineCfg
	for _, opt := range opts {
		opt(&ecfg)
	}

	eng := &Engine{
		cfg: cfg,
		seq: newSequencer(cfg),
		str: newStretcher(cfg.PointsPerTransfer),
	}
	switch {
	case ecfg.phase != nil:
		eng.clk = ecfg.phase
	default:
		eng.nco = NewNCO(cfg.IFMult)
		eng.clk = eng.nco
	}
	return eng, nil
}

// Config returns the configuration the engine was latched with.
func (eng *Engine) Config() Config { return eng.cfg }

// Tick advances the pipeline by one tick of the sample clock. The returned
// outputs are the registered signals present on the buses during that tick,
// the ones in.Ready applied to.
func (eng *Engine) Tick(in TickInput) TickOutput {
	var (
		phase = eng.clk.Phase()
		// start holds for the full accumulation gate; the idle check
		// only delays a fresh capture, it never deasserts a window in
		// progress.
		start = eng.seq.accGate && (eng.trg.state != trigStopped || !eng.busy())
		trig0 = eng.seq.out0
		trig1 = eng.seq.out1
		eop   bool
	)

	// phase 1: compute next states from last tick's committed outputs.
	eng.seq.step()
	eng.trg.step(start, phase)
	for i := range eng.acc {
		eng.acc[i].step(eng.trg.enable, in.Samples[i])
	}
	word, last := eng.pkt.out()
	valid := eng.pkt.valid()
	eop = eng.str.last(last)
	accepted := valid && in.Ready
	eng.pkt.step(eng.trg.done, eng.acc, in.Ready)
	eng.str.step(last, accepted)

	// phase 2: commit all state machines atomically.
	eng.seq.commit()
	eng.trg.commit()
	for i := range eng.acc {
		eng.acc[i].commit()
	}
	eng.pkt.commit()
	eng.str.commit()
	if eng.nco != nil {
		eng.nco.Step()
	}
	eng.tick++

	return TickOutput{
		Trig0: trig0,
		Trig1: trig1,
		Word:  word,
		Valid: valid,
		Last:  eop,
	}
}

// Dropped returns the number of point-complete pulses that arrived while a
// packet was still in flight and were discarded.
func (eng *Engine) Dropped() uint64 { return eng.pkt.dropped }

// TriggerState returns the current state of the point trigger, for
// diagnosing a pipeline stalled on a phase counter that never revisits its
// captured target.
func (eng *Engine) TriggerState() string { return eng.trg.state.String() }

// Ticks returns the number of ticks elapsed since reset.
func (eng *Engine) Ticks() uint64 { return eng.tick }

// busy reports whether any accumulator is still working on a point.
// A new accumulation window may not start before all four are idle again.
func (eng *Engine) busy() bool {
	for i := range eng.acc {
		if !eng.acc[i].idle() {
			return true
		}
	}
	return false
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

// PhaseCounter is the repeating phase counter the point trigger compares
// against to align accumulation windows with whole cycles of the
// intermediate frequency.
//
// The counter is owned outside the pipeline and is read-only here; whoever
// provides it is responsible for advancing it once per tick.
type PhaseCounter interface {
	Phase() uint32
}

// NCO is the default phase counter: an 8-bit accumulator incremented by the
// IF multiplier every tick, so that IF = mult*FClk/256.
type NCO struct {
	mult uint8
	acc  uint8
}

// NewNCO returns a numerically controlled oscillator phase counter for the
// given IF multiplier.
func NewNCO(mult uint8) *NCO {
	return &NCO{mult: mult}
}

// Phase returns the current phase accumulator value.
func (nco *NCO) Phase() uint32 { return uint32(nco.acc) }

// Step advances the oscillator by one tick.
func (nco *NCO) Step() { nco.acc += nco.mult }

type trigState uint8

const (
	trigStopped trigState = iota
	trigStarting
	trigRunning
	trigWaiting
	trigEnding
)

func (st trigState) String() string {
	switch st {
	case trigStopped:
		return "stopped"
	case trigStarting:
		return "starting"
	case trigRunning:
		return "running"
	case trigWaiting:
		return "waiting"
	case trigEnding:
		return "ending"
	}
	return "invalid"
}

// pointTrigger bridges the sequencer's accumulation gate with the phase
// counter: the enable window it produces always spans a whole number of
// phase-counter cycles, whatever the length of the incoming gate, so the
// accumulated sum carries no phase-dependent bias.
//
// If the phase counter never revisits the captured target value the machine
// stays in the waiting state until reset. There is no timeout: the only exit
// is the phase counter completing a cycle.
type pointTrigger struct {
	state  trigState
	target uint32 // phase value captured on start

	enable bool // accumulation enable, registered
	done   bool // one-tick point-complete pulse

	nxtState  trigState
	nxtTarget uint32
}

func (trg *pointTrigger) step(start bool, phase uint32) {
	trg.nxtState = trg.state
	trg.nxtTarget = trg.target

	switch trg.state {
	case trigStopped:
		if start {
			trg.nxtState = trigStarting
			trg.nxtTarget = phase
		}
	case trigStarting:
		trg.nxtState = trigRunning
	case trigRunning:
		if !start {
			trg.nxtState = trigWaiting
			if phase == trg.target {
				trg.nxtState = trigEnding
			}
		}
	case trigWaiting:
		if phase == trg.target {
			trg.nxtState = trigEnding
		}
	case trigEnding:
		trg.nxtState = trigStopped
	}
}

func (trg *pointTrigger) commit() {
	trg.state = trg.nxtState
	trg.target = trg.nxtTarget

	switch trg.state {
	case trigStarting, trigRunning, trigWaiting:
		trg.enable = true
	default:
		trg.enable = false
	}
	trg.done = trg.state == trigEnding
}

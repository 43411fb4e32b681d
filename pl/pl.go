// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pl models the SLVNA programmable-logic acquisition pipeline.
//
// The pipeline is a set of tick-synchronous state machines clocked by the
// 125 MHz sample clock of the front end:
//
//	Sequencer -> point trigger -> Accumulator (x4) -> Packetiser -> Stretcher
//
// The Sequencer derives the per-point time base (stimulus trigger gates and
// the accumulation gate) from a free-running tick counter. The point trigger
// aligns the accumulation window to whole cycles of the intermediate
// frequency. Each Accumulator integrates signed samples into a 64-bit sum
// with a 32-bit sample count. The Packetiser serialises the four (sum, count)
// pairs of a completed point as 12 ordered 32-bit words on a ready/valid
// stream, and the Stretcher coalesces several point packets into one transfer.
//
// All state machines advance in lock-step, one step per Engine tick, with a
// two-phase update: next states are computed from the previous tick's
// committed outputs, then committed together. There is no combinational
// feedback across components within a tick.
package pl // import "github.com/go-vna/slvna/pl"

const (
	// FClk is the nominal frequency (Hz) of the sample clock driving
	// the pipeline.
	FClk = 125_000_000

	// NumChans is the number of accumulation channels per point
	// (I and Q for the DUT and reference receivers).
	NumChans = 4

	// PacketWords is the number of 32-bit words in one point packet:
	// (sumLo, sumHi, count) per channel.
	PacketWords = 3 * NumChans
)

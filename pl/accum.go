// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

type accState uint8

const (
	accIdle accState = iota
	accRunning
	accDraining
)

// accumulator integrates a stream of signed samples into a wide running
// sum and sample count, one instance per channel.
//
// The drain state adds the sample present on the tick the gate deasserts,
// so no sample is lost at the deassertion edge: a gate held for L-1 ticks
// yields count L.
type accumulator struct {
	state accState
	sum   int64 // wrapping two's-complement sum
	count uint32

	nxtState accState
	nxtSum   int64
	nxtCount uint32
}

func (acc *accumulator) step(gate bool, sample int32) {
	acc.nxtState = acc.state
	acc.nxtSum = acc.sum
	acc.nxtCount = acc.count

	switch acc.state {
	case accIdle:
		if gate {
			acc.nxtState = accRunning
			acc.nxtSum = int64(sample)
			acc.nxtCount = 1
		}
	case accRunning:
		acc.nxtSum += int64(sample)
		acc.nxtCount++
		if !gate {
			acc.nxtState = accDraining
		}
	case accDraining:
		acc.nxtState = accIdle
		acc.nxtSum = 0
		acc.nxtCount = 0
	}
}

func (acc *accumulator) commit() {
	acc.state = acc.nxtState
	acc.sum = acc.nxtSum
	acc.count = acc.nxtCount
}

func (acc *accumulator) idle() bool { return acc.state == accIdle }

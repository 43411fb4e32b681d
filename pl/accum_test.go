// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"math"
	"testing"
)

func TestAccumulator(t *testing.T) {
	for _, tc := range []struct {
		name    string
		idle    int     // leading idle ticks
		gated   []int32 // samples while the gate is high
		drain   int32   // sample on the tick the gate falls
		wantSum int64
		wantCnt uint32
	}{
		{
			name:    "short-window",
			idle:    3,
			gated:   []int32{1, 2, 3, 4, 5},
			drain:   6,
			wantSum: 21,
			wantCnt: 6,
		},
		{
			name:    "negative-samples",
			idle:    1,
			gated:   []int32{-10, 20, -30},
			drain:   -40,
			wantSum: -60,
			wantCnt: 4,
		},
		{
			name:    "single-gated-tick",
			idle:    0,
			gated:   []int32{7},
			drain:   -7,
			wantSum: 0,
			wantCnt: 2,
		},
		{
			name:    "sign-extension",
			idle:    2,
			gated:   []int32{math.MinInt32, math.MinInt32},
			drain:   math.MinInt32,
			wantSum: 3 * math.MinInt32,
			wantCnt: 3,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var acc accumulator

			run := func(gate bool, sample int32) {
				acc.step(gate, sample)
				acc.commit()
			}

			for i := 0; i < tc.idle; i++ {
				run(false, 999) // idle samples must not contribute
			}
			if acc.sum != 0 || acc.count != 0 {
				t.Fatalf("accumulator not zero while idle: sum=%d count=%d", acc.sum, acc.count)
			}
			for _, s := range tc.gated {
				run(true, s)
			}
			run(false, tc.drain)

			if acc.state != accDraining {
				t.Fatalf("accumulator not draining after gate fall: state=%d", acc.state)
			}
			if acc.sum != tc.wantSum {
				t.Errorf("sum=%d, want %d", acc.sum, tc.wantSum)
			}
			if acc.count != tc.wantCnt {
				t.Errorf("count=%d, want %d", acc.count, tc.wantCnt)
			}

			// one more tick: back to idle, outputs cleared.
			run(false, 999)
			if !acc.idle() || acc.sum != 0 || acc.count != 0 {
				t.Errorf("accumulator did not reset after drain: state=%d sum=%d count=%d",
					acc.state, acc.sum, acc.count,
				)
			}
		})
	}
}

func TestAccumulatorWraps(t *testing.T) {
	var acc accumulator

	acc.step(true, math.MaxInt32)
	acc.commit()
	for i := 0; i < 5; i++ {
		// keep adding the maximum positive sample: the 64-bit sum must
		// wrap, not saturate or panic.
		acc.sum = math.MaxInt64 - 1
		acc.step(true, math.MaxInt32)
		acc.commit()
		if acc.sum >= math.MaxInt64-1 {
			t.Fatalf("sum did not wrap: %d", acc.sum)
		}
	}
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"testing"
)

func TestSequencerGates(t *testing.T) {
	cfg := Config{
		DeadTime:          4,
		PointTime:         10,
		TrigLen:           2,
		PointsPerTransfer: 1,
		IFMult:            1,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test configuration: %+v", err)
	}

	seq := newSequencer(cfg)

	const periods = 3
	var (
		gen [periods]int
		acc [periods]int
	)
	for p := 0; p < periods; p++ {
		for i := uint32(0); i < cfg.PointTime; i++ {
			if seq.genGate {
				gen[p]++
			}
			if seq.accGate {
				acc[p]++
			}
			seq.step()
			seq.commit()
		}
	}

	for p := 0; p < periods; p++ {
		if got, want := gen[p], int(cfg.TrigLen); got != want {
			t.Errorf("period %d: generator gate high %d ticks, want %d", p, got, want)
		}
		if got, want := acc[p], int(cfg.PointTime-cfg.DeadTime-1); got != want {
			t.Errorf("period %d: accumulation gate high %d ticks, want %d", p, got, want)
		}
	}
}

func TestSequencerFirstPoint(t *testing.T) {
	cfg := Config{
		DeadTime:          2,
		PointTime:         5,
		TrigLen:           1,
		Trig0:             TrigConfig{First: true},
		Trig1:             TrigConfig{Rest: true},
		PointsPerTransfer: 1,
		IFMult:            1,
	}

	seq := newSequencer(cfg)

	// first period: trig0 fires, trig1 does not.
	var fired0, fired1 bool
	for i := uint32(0); i < cfg.PointTime; i++ {
		fired0 = fired0 || seq.out0
		fired1 = fired1 || seq.out1
		seq.step()
		seq.commit()
	}
	if !fired0 {
		t.Errorf("trig0 (first-point policy) did not fire on first point")
	}
	if fired1 {
		t.Errorf("trig1 (rest policy) fired on first point")
	}

	// second period: roles swap.
	fired0, fired1 = false, false
	for i := uint32(0); i < cfg.PointTime; i++ {
		fired0 = fired0 || seq.out0
		fired1 = fired1 || seq.out1
		seq.step()
		seq.commit()
	}
	if fired0 {
		t.Errorf("trig0 (first-point policy) fired after first point")
	}
	if !fired1 {
		t.Errorf("trig1 (rest policy) did not fire after first point")
	}
}

func TestTrigOut(t *testing.T) {
	for _, tc := range []struct {
		name  string
		cfg   TrigConfig
		gate  bool
		first bool
		want  bool
	}{
		{name: "off", cfg: TrigConfig{}, gate: true, first: true, want: false},
		{name: "off-inverted", cfg: TrigConfig{Invert: true}, gate: true, first: true, want: true},
		{name: "first-on-first", cfg: TrigConfig{First: true}, gate: true, first: true, want: true},
		{name: "first-on-rest", cfg: TrigConfig{First: true}, gate: true, first: false, want: false},
		{name: "rest-on-first", cfg: TrigConfig{Rest: true}, gate: true, first: true, want: false},
		{name: "rest-on-rest", cfg: TrigConfig{Rest: true}, gate: true, first: false, want: true},
		{name: "gated-off", cfg: TrigConfig{First: true, Rest: true}, gate: false, first: true, want: false},
		{name: "inverted-idle", cfg: TrigConfig{Rest: true, Invert: true}, gate: false, first: false, want: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got := trigOut(tc.cfg, tc.gate, tc.first)
			if got != tc.want {
				t.Fatalf("trigOut(%+v, gate=%v, first=%v)=%v, want %v",
					tc.cfg, tc.gate, tc.first, got, tc.want,
				)
			}
		})
	}
}

func TestTrigConfigBits(t *testing.T) {
	for v := uint32(0); v < 8; v++ {
		if got := TrigConfigFrom(v).Bits(); got != v {
			t.Errorf("TrigConfigFrom(%d).Bits()=%d", v, got)
		}
	}
}

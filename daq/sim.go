// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"sync"

	"github.com/go-vna/slvna/internal/regs"
	"github.com/go-vna/slvna/pl"
)

// SampleFunc feeds ADC samples to a simulated fabric, one quadruple
// per fabric clock tick.
type SampleFunc func(tick uint64) [pl.NumChans]int32

// simFabric is a software model of the acquisition fabric built around
// pl.Engine. It reproduces the DMA quirk of the real hardware: the
// first transfer after a reset carries staleWords of junk up front.
type simFabric struct {
	mu      sync.Mutex
	regv    map[uint32]uint32
	samples SampleFunc
	eng     *pl.Engine
	tick    uint64
	first   bool
}

func newSimFabric(samples SampleFunc) *simFabric {
	if samples == nil {
		samples = func(uint64) [pl.NumChans]int32 { return [pl.NumChans]int32{} }
	}
	return &simFabric{
		regv: map[uint32]uint32{
			regs.ADDR_TRIG:       0,
			regs.ADDR_GENERAL:    0,
			regs.ADDR_DEAD_TIME:  0,
			regs.ADDR_POINT_TIME: 0,
		},
		samples: samples,
		first:   true,
	}
}

func (fab *simFabric) readReg(addr uint32) (uint32, error) {
	fab.mu.Lock()
	defer fab.mu.Unlock()
	v, ok := fab.regv[addr]
	if !ok {
		return 0, fmt.Errorf("daq: unmapped register 0x%x", addr)
	}
	return v, nil
}

func (fab *simFabric) writeReg(addr, v uint32) error {
	fab.mu.Lock()
	defer fab.mu.Unlock()
	old, ok := fab.regv[addr]
	if !ok {
		return fmt.Errorf("daq: unmapped register 0x%x", addr)
	}
	fab.regv[addr] = v

	// clearing the run bit resets the pipeline
	if addr == regs.ADDR_GENERAL && regs.Run.Get(old) == 1 && regs.Run.Get(v) == 0 {
		fab.eng = nil
		fab.tick = 0
		fab.first = true
	}
	return nil
}

func (fab *simFabric) transfer(dst []uint32) error {
	fab.mu.Lock()
	defer fab.mu.Unlock()

	if regs.Run.Get(fab.regv[regs.ADDR_GENERAL]) == 0 {
		return fmt.Errorf("daq: fabric is in reset, cannot transfer")
	}
	if fab.eng == nil {
		cfg := fab.configLocked()
		eng, err := pl.NewEngine(cfg)
		if err != nil {
			return fmt.Errorf("daq: could not model fabric: %w", err)
		}
		fab.eng = eng
	}

	var (
		i   int
		end = len(dst) - staleWords
	)
	if fab.first {
		for ; i < staleWords; i++ {
			dst[i] = 0xdeadbeef
		}
		end = len(dst)
		fab.first = false
	}

	for i < end {
		out := fab.eng.Tick(pl.TickInput{
			Samples: fab.samples(fab.tick),
			Ready:   true,
		})
		fab.tick++
		if out.Valid {
			dst[i] = out.Word
			i++
		}
	}
	return nil
}

func (fab *simFabric) configLocked() pl.Config {
	trig := fab.regv[regs.ADDR_TRIG]
	gen := fab.regv[regs.ADDR_GENERAL]
	return pl.Config{
		DeadTime:          fab.regv[regs.ADDR_DEAD_TIME],
		PointTime:         fab.regv[regs.ADDR_POINT_TIME],
		TrigLen:           regs.TrigLen.Get(trig),
		Trig0:             pl.TrigConfigFrom(regs.Trig0.Get(trig)),
		Trig1:             pl.TrigConfigFrom(regs.Trig1.Get(trig)),
		PointsPerTransfer: uint16(regs.PointsPerTransfer.Get(gen)),
		IFMult:            uint8(regs.IFMult.Get(gen)),
	}
}

func (fab *simFabric) close() error { return nil }

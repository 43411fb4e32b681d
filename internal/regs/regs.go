// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the memory map of the acquisition fabric
// configuration registers, as exposed over AXI GPIO.
package regs

import "math/bits"

// Physical base addresses of the configuration registers.
const (
	ADDR_TRIG       = 0x41200000 // trigger pulse length and output policies
	ADDR_GENERAL    = 0x41200008 // run flag, IF multiplier, points per transfer
	ADDR_DEAD_TIME  = 0x42000000 // generator dead time, in clock cycles
	ADDR_POINT_TIME = 0x42000008 // time per point, in clock cycles
)

// Field is a bit field inside a 32-bit configuration register.
type Field struct {
	Addr  uint32 // register physical address
	Mask  uint32
	Shift uint32
}

// Get extracts the field value from the raw register word.
func (f Field) Get(reg uint32) uint32 {
	return (reg & f.Mask) >> f.Shift
}

// Set merges v into the raw register word, leaving the other fields alone.
func (f Field) Set(reg, v uint32) uint32 {
	return (reg &^ f.Mask) | (v << f.Shift & f.Mask)
}

// Max returns the largest value the field can hold.
func (f Field) Max() uint32 {
	return f.Mask >> f.Shift
}

func field(addr, mask uint32) Field {
	return Field{
		Addr:  addr,
		Mask:  mask,
		Shift: uint32(bits.TrailingZeros32(mask)),
	}
}

var (
	PointTime         = field(ADDR_POINT_TIME, 0xFFFFFFFF)
	DeadTime          = field(ADDR_DEAD_TIME, 0xFFFFFFFF)
	TrigLen           = field(ADDR_TRIG, 0x00FFFFFF)
	Trig0             = field(ADDR_TRIG, 0x0F000000)
	Trig1             = field(ADDR_TRIG, 0xF0000000)
	PointsPerTransfer = field(ADDR_GENERAL, 0xFFFF0000)
	IFMult            = field(ADDR_GENERAL, 0x0000FF00)
	Run               = field(ADDR_GENERAL, 0x00000001)
)

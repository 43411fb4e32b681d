// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"errors"
	"fmt"
)

var (
	// ErrDeadTime is returned when the generator dead time does not fit
	// inside the point period.
	ErrDeadTime = errors.New("pl: dead time not shorter than point time")

	// ErrTrigLen is returned when the trigger pulse does not fit inside
	// the generator dead time.
	ErrTrigLen = errors.New("pl: trigger length longer than dead time")

	// ErrTrigLenWidth is returned when the trigger length overflows its
	// 24-bit register field.
	ErrTrigLenWidth = errors.New("pl: trigger length overflows 24 bits")

	// ErrPointsPerTransfer is returned for a zero points-per-transfer.
	ErrPointsPerTransfer = errors.New("pl: points per transfer must be at least 1")

	// ErrIFMult is returned for a zero IF multiplier.
	ErrIFMult = errors.New("pl: IF multiplier must be at least 1")
)

// TrigConfig configures one stimulus trigger output.
type TrigConfig struct {
	Invert bool // invert the output line
	First  bool // fire on the first point of a sweep
	Rest   bool // fire on every point but the first
}

// TrigConfigFrom decodes the 4-bit wire form of a trigger configuration:
// bit 0 invert, bit 1 first, bit 2 rest, bit 3 reserved.
func TrigConfigFrom(v uint32) TrigConfig {
	return TrigConfig{
		Invert: v&0x1 != 0,
		First:  v&0x2 != 0,
		Rest:   v&0x4 != 0,
	}
}

// Bits returns the 4-bit wire form of cfg.
func (cfg TrigConfig) Bits() uint32 {
	var v uint32
	if cfg.Invert {
		v |= 0x1
	}
	if cfg.First {
		v |= 0x2
	}
	if cfg.Rest {
		v |= 0x4
	}
	return v
}

// Config holds the per-sweep configuration of the acquisition pipeline.
// All durations are in cycles of the 125 MHz sample clock.
// The configuration is latched once, when the pipeline leaves reset.
type Config struct {
	DeadTime  uint32 // generator settle time at the start of each point
	PointTime uint32 // total duration of one point
	TrigLen   uint32 // stimulus trigger pulse length (24-bit field)

	Trig0 TrigConfig // trigger output 0
	Trig1 TrigConfig // trigger output 1

	PointsPerTransfer uint16 // points coalesced into one transfer
	IFMult            uint8  // intermediate frequency, IF = IFMult*FClk/256
}

// Validate checks the timing ordering required for a well-formed point:
//
//	TrigLen <= DeadTime < PointTime
//
// The hardware does not enforce this ordering; an out-of-order configuration
// yields an accumulation gate that never deasserts and a pipeline that never
// produces a point. Rejecting it here, before the configuration is latched,
// keeps the pipeline from wedging.
func (cfg Config) Validate() error {
	if cfg.TrigLen >= 1<<24 {
		return fmt.Errorf("%w (got=%d)", ErrTrigLenWidth, cfg.TrigLen)
	}
	if cfg.TrigLen > cfg.DeadTime {
		return fmt.Errorf("%w (trig=%d, dead=%d)", ErrTrigLen, cfg.TrigLen, cfg.DeadTime)
	}
	if cfg.DeadTime >= cfg.PointTime {
		return fmt.Errorf("%w (dead=%d, point=%d)", ErrDeadTime, cfg.DeadTime, cfg.PointTime)
	}
	if cfg.PointsPerTransfer == 0 {
		return ErrPointsPerTransfer
	}
	if cfg.IFMult == 0 {
		return ErrIFMult
	}
	return nil
}

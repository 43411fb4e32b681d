// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package daq implements the host side of the slvna acquisition chain:
// configuration of the fabric registers, DMA transfers, conversion of the
// raw accumulations to voltages and the TCP command/data server.
package daq // import "github.com/go-vna/slvna/daq"

import (
	"github.com/go-vna/slvna/internal/regs"
	"github.com/go-vna/slvna/pl"
)

const (
	// Port is the default TCP port of the data server.
	Port = 2024

	// PointsPerReply is the number of points grouped into one reply to a
	// data request, a compromise between throughput and interactivity.
	PointsPerReply = 45

	// RawToVolts converts a raw averaged accumulation to volts.
	RawToVolts = 1.0 / (1 << 25)

	// cycles of the fabric clock per microsecond, the unit the wire
	// protocol uses for all time fields.
	cyclesPerMicrosecond = pl.FClk / 1_000_000

	// staleWords is the number of words stuck in the DMA engine across a
	// fabric reset. The first transfer of a run carries them up front,
	// later ones leave that many words untouched at the tail.
	staleWords = 4

	queueDepth = 1<<16 - 1
)

// Wire protocol commands. Configuration commands carry an ASCII decimal
// argument, request commands stand alone.
const (
	cmdRun               = 'r' // enable or disable acquisition
	cmdDeadTime          = 'g' // generator dead time, microseconds
	cmdPointTime         = 'p' // time per point, microseconds
	cmdTrigLen           = 't' // trigger pulse length, microseconds
	cmdTrig0             = 'c' // trigger output 0 policy bits
	cmdTrig1             = 'o' // trigger output 1 policy bits
	cmdPointsPerTransfer = 'a' // points per DMA transfer
	cmdIFMult            = 'i' // IF multiplier, IF = v*FClk/256

	cmdData      = 'd' // request IQ data, volts
	cmdTemp      = 'T' // request SoC temperature, Celsius
	cmdQueueSize = 'q' // request data queue size
	cmdStop      = '!' // stop the server
)

var (
	respOK  = []byte("*")
	respErr = []byte("?")
)

type fieldSpec struct {
	fld   regs.Field
	scale float64 // wire units to register units
}

// fields maps configuration commands to their register bit fields.
var fields = map[byte]fieldSpec{
	cmdPointTime:         {regs.PointTime, cyclesPerMicrosecond},
	cmdDeadTime:          {regs.DeadTime, cyclesPerMicrosecond},
	cmdTrigLen:           {regs.TrigLen, cyclesPerMicrosecond},
	cmdTrig0:             {regs.Trig0, 1},
	cmdTrig1:             {regs.Trig1, 1},
	cmdPointsPerTransfer: {regs.PointsPerTransfer, 1},
	cmdIFMult:            {regs.IFMult, 256.0 / cyclesPerMicrosecond},
	cmdRun:               {regs.Run, 1},
}

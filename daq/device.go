// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"log"
	"math"
	"os"
	"sync"

	"github.com/go-vna/slvna/internal/regs"
	"github.com/go-vna/slvna/pl"
)

// fabric is the low-level access to the acquisition fabric: the
// configuration registers and the DMA word stream.
type fabric interface {
	readReg(addr uint32) (uint32, error)
	writeReg(addr, v uint32) error
	transfer(dst []uint32) error
	close() error
}

var (
	_ fabric = (*memFabric)(nil)
	_ fabric = (*simFabric)(nil)
)

// Device drives one acquisition fabric. It owns the register
// configuration, the run state and the DMA transfer bookkeeping.
type Device struct {
	msg *log.Logger
	fab fabric

	mu      sync.Mutex
	enabled bool
	first   bool // next transfer is the first since a reset
	ppt     int  // points per transfer, mirrors the register field
}

// NewDevice opens the memory-mapped fabric registers through devmem
// (usually /dev/mem) and the DMA stream through dma.
func NewDevice(devmem, dma string) (*Device, error) {
	fab, err := newMemFabric(devmem, dma)
	if err != nil {
		return nil, fmt.Errorf("daq: could not open fabric: %w", err)
	}
	return newDevice(fab), nil
}

// NewSimDevice creates a device backed by a software model of the
// fabric, fed by samples. A nil samples function yields zero samples.
func NewSimDevice(samples SampleFunc) *Device {
	return newDevice(newSimFabric(samples))
}

func newDevice(fab fabric) *Device {
	return &Device{
		msg:   log.New(os.Stdout, "daq: ", 0),
		fab:   fab,
		first: true,
		ppt:   1,
	}
}

// Close releases the fabric. The device must be disabled first.
func (dev *Device) Close() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	if dev.enabled {
		if err := dev.disable(); err != nil {
			return err
		}
	}
	return dev.fab.close()
}

// Enabled reports whether acquisition is running.
func (dev *Device) Enabled() bool {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.enabled
}

// WriteField scales v to register units and merges it into the register
// bit field of the configuration command cmd. Rejected while enabled.
func (dev *Device) WriteField(cmd byte, v float64) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.enabled {
		return fmt.Errorf("daq: cannot change configuration while acquisition is enabled")
	}
	spec, ok := fields[cmd]
	if !ok {
		return fmt.Errorf("daq: unknown configuration command %q", cmd)
	}

	raw := math.Round(v * spec.scale)
	if raw != v*spec.scale {
		dev.msg.Printf("rounding non-integer value %.2f for field %q", v*spec.scale, cmd)
	}
	if raw < 0 || raw > float64(spec.fld.Max()) {
		return fmt.Errorf("daq: value %v out of range for field %q", v, cmd)
	}

	if cmd == cmdPointsPerTransfer {
		if raw < 1 {
			raw = 1
		}
		dev.ppt = int(raw)
	}

	reg, err := dev.fab.readReg(spec.fld.Addr)
	if err != nil {
		return fmt.Errorf("daq: could not read register 0x%x: %w", spec.fld.Addr, err)
	}
	reg = spec.fld.Set(reg, uint32(raw))
	if err := dev.fab.writeReg(spec.fld.Addr, reg); err != nil {
		return fmt.Errorf("daq: could not write register 0x%x: %w", spec.fld.Addr, err)
	}
	return nil
}

// ReadField reads the register bit field of cmd back in wire units.
func (dev *Device) ReadField(cmd byte) (float64, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	spec, ok := fields[cmd]
	if !ok {
		return 0, fmt.Errorf("daq: unknown configuration command %q", cmd)
	}
	reg, err := dev.fab.readReg(spec.fld.Addr)
	if err != nil {
		return 0, fmt.Errorf("daq: could not read register 0x%x: %w", spec.fld.Addr, err)
	}
	return float64(spec.fld.Get(reg)) / spec.scale, nil
}

// Config reads the whole register file back as a fabric configuration.
func (dev *Device) Config() (pl.Config, error) {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.config()
}

func (dev *Device) config() (pl.Config, error) {
	var err error
	read := func(addr uint32) uint32 {
		if err != nil {
			return 0
		}
		var v uint32
		v, err = dev.fab.readReg(addr)
		if err != nil {
			err = fmt.Errorf("daq: could not read register 0x%x: %w", addr, err)
		}
		return v
	}

	trig := read(regs.ADDR_TRIG)
	gen := read(regs.ADDR_GENERAL)
	cfg := pl.Config{
		DeadTime:          read(regs.ADDR_DEAD_TIME),
		PointTime:         read(regs.ADDR_POINT_TIME),
		TrigLen:           regs.TrigLen.Get(trig),
		Trig0:             pl.TrigConfigFrom(regs.Trig0.Get(trig)),
		Trig1:             pl.TrigConfigFrom(regs.Trig1.Get(trig)),
		PointsPerTransfer: uint16(regs.PointsPerTransfer.Get(gen)),
		IFMult:            uint8(regs.IFMult.Get(gen)),
	}
	if err != nil {
		return pl.Config{}, err
	}
	return cfg, nil
}

// Enable validates the current register configuration and starts the
// fabric acquisition.
func (dev *Device) Enable() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()

	if dev.enabled {
		return nil
	}
	cfg, err := dev.config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("daq: invalid fabric configuration: %w", err)
	}

	if err := dev.writeRun(1); err != nil {
		return err
	}
	dev.enabled = true
	dev.msg.Printf("started fabric acquisition")
	return nil
}

// Disable stops the fabric acquisition. The next transfer after a
// re-enable will carry stale words again.
func (dev *Device) Disable() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.disable()
}

func (dev *Device) disable() error {
	if !dev.enabled {
		return nil
	}
	if err := dev.writeRun(0); err != nil {
		return err
	}
	dev.enabled = false
	dev.first = true
	dev.msg.Printf("stopped fabric acquisition")
	return nil
}

func (dev *Device) writeRun(v uint32) error {
	reg, err := dev.fab.readReg(regs.ADDR_GENERAL)
	if err != nil {
		return fmt.Errorf("daq: could not read register 0x%x: %w", regs.ADDR_GENERAL, err)
	}
	reg = regs.Run.Set(reg, v)
	if err := dev.fab.writeReg(regs.ADDR_GENERAL, reg); err != nil {
		return fmt.Errorf("daq: could not write register 0x%x: %w", regs.ADDR_GENERAL, err)
	}
	return nil
}

// Points performs one DMA transfer and converts it to voltages, one
// [Idut, Qdut, Iref, Qref] quadruple per point.
func (dev *Device) Points() ([][4]float64, error) {
	dev.mu.Lock()
	if !dev.enabled {
		dev.mu.Unlock()
		return nil, fmt.Errorf("daq: cannot transfer while acquisition is disabled")
	}
	var (
		ppt   = dev.ppt
		first = dev.first
	)
	dev.first = false
	dev.mu.Unlock()

	// room for the stale words the DMA engine keeps across a reset
	buf := make([]uint32, ppt*pl.PacketWords+staleWords)
	if err := dev.fab.transfer(buf); err != nil {
		return nil, fmt.Errorf("daq: could not transfer: %w", err)
	}

	words := buf[:len(buf)-staleWords]
	if first {
		words = buf[staleWords:]
	}

	pts := make([][4]float64, ppt)
	for i := range pts {
		pt, err := pointVolts(words[i*pl.PacketWords : (i+1)*pl.PacketWords])
		if err != nil {
			return nil, err
		}
		pts[i] = pt
	}
	return pts, nil
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-vna/slvna/internal/mmap"
	"github.com/go-vna/slvna/internal/regs"
)

// memFabric talks to the real acquisition fabric: configuration
// registers through /dev/mem and point data through the DMA stream
// character device.
type memFabric struct {
	mem   *os.File
	dma   *os.File
	pages map[uint32]*mmap.Handle // register page base to mapping
	psize uint32
	buf   []byte
}

func newMemFabric(devmem, dma string) (*memFabric, error) {
	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("daq: could not open %q: %w", devmem, err)
	}

	fab := &memFabric{
		mem:   mem,
		pages: make(map[uint32]*mmap.Handle),
		psize: uint32(os.Getpagesize()),
	}

	for _, addr := range []uint32{
		regs.ADDR_TRIG,
		regs.ADDR_GENERAL,
		regs.ADDR_DEAD_TIME,
		regs.ADDR_POINT_TIME,
	} {
		base := addr &^ (fab.psize - 1)
		if _, dup := fab.pages[base]; dup {
			continue
		}
		h, err := mmap.Map(mem, base, int(fab.psize))
		if err != nil {
			_ = fab.close()
			return nil, fmt.Errorf("daq: could not map register page 0x%x: %w", base, err)
		}
		fab.pages[base] = h
	}

	fab.dma, err = os.OpenFile(dma, os.O_RDWR, 0666)
	if err != nil {
		_ = fab.close()
		return nil, fmt.Errorf("daq: could not open %q: %w", dma, err)
	}
	return fab, nil
}

func (fab *memFabric) page(addr uint32) (*mmap.Handle, int64, error) {
	h, ok := fab.pages[addr&^(fab.psize-1)]
	if !ok {
		return nil, 0, fmt.Errorf("daq: unmapped register 0x%x", addr)
	}
	return h, int64(addr & (fab.psize - 1)), nil
}

func (fab *memFabric) readReg(addr uint32) (uint32, error) {
	h, off, err := fab.page(addr)
	if err != nil {
		return 0, err
	}
	var raw [4]byte
	if _, err := h.ReadAt(raw[:], off); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(raw[:]), nil
}

func (fab *memFabric) writeReg(addr, v uint32) error {
	h, off, err := fab.page(addr)
	if err != nil {
		return err
	}
	var raw [4]byte
	binary.LittleEndian.PutUint32(raw[:], v)
	_, err = h.WriteAt(raw[:], off)
	return err
}

func (fab *memFabric) transfer(dst []uint32) error {
	if n := 4 * len(dst); cap(fab.buf) < n {
		fab.buf = make([]byte, n)
	}
	buf := fab.buf[:4*len(dst)]
	if _, err := io.ReadFull(fab.dma, buf); err != nil {
		return err
	}
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint32(buf[4*i:])
	}
	return nil
}

func (fab *memFabric) close() error {
	var err error
	for _, h := range fab.pages {
		if e := h.Close(); e != nil && err == nil {
			err = e
		}
	}
	if fab.dma != nil {
		if e := fab.dma.Close(); e != nil && err == nil {
			err = e
		}
	}
	if e := fab.mem.Close(); e != nil && err == nil {
		err = e
	}
	return err
}

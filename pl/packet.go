// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ChanAccum is the accumulation result of one channel for one point.
type ChanAccum struct {
	Sum   int64  // wrapping two's-complement sum of the gated samples
	Count uint32 // number of samples in the sum
}

// Point is one measurement point: the four channel accumulations,
// in channel order Idut, Qdut, Iref, Qref.
type Point struct {
	Chans [NumChans]ChanAccum
}

// Words returns the wire form of the point: (sumLo, sumHi, count) per
// channel, raw and unscaled.
func (pt Point) Words() [PacketWords]uint32 {
	var w [PacketWords]uint32
	for i, ch := range pt.Chans {
		w[3*i+0] = uint32(uint64(ch.Sum) & 0xffff_ffff)
		w[3*i+1] = uint32(uint64(ch.Sum) >> 32)
		w[3*i+2] = ch.Count
	}
	return w
}

// PointFromWords rebuilds a point from its wire form.
func PointFromWords(w [PacketWords]uint32) Point {
	var pt Point
	for i := range pt.Chans {
		pt.Chans[i] = ChanAccum{
			Sum:   int64(uint64(w[3*i+0]) | uint64(w[3*i+1])<<32),
			Count: w[3*i+2],
		}
	}
	return pt
}

// Decoder reads point packets from a raw little-endian 32-bit word stream,
// the byte order the DMA transport delivers.
type Decoder struct {
	r   io.Reader
	buf []byte
	err error
}

// NewDecoder creates a decoder reading points from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{
		r:   r,
		buf: make([]byte, 4*PacketWords),
	}
}

// Decode reads the next point from the stream.
func (dec *Decoder) Decode(pt *Point) error {
	dec.read(dec.buf)
	if dec.err != nil {
		if dec.err == io.EOF {
			return dec.err
		}
		return fmt.Errorf("pl: could not read point packet: %w", dec.err)
	}

	var w [PacketWords]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(dec.buf[4*i:])
	}
	*pt = PointFromWords(w)
	return nil
}

func (dec *Decoder) read(p []byte) {
	if dec.err != nil {
		return
	}
	_, dec.err = io.ReadFull(dec.r, p)
}

// Encoder writes point packets as a raw little-endian 32-bit word stream.
type Encoder struct {
	w   io.Writer
	buf []byte
	err error
}

// NewEncoder creates an encoder writing points to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{
		w:   w,
		buf: make([]byte, 4*PacketWords),
	}
}

// Encode appends the wire form of pt to the stream.
func (enc *Encoder) Encode(pt Point) error {
	if enc.err != nil {
		return enc.err
	}
	for i, w := range pt.Words() {
		binary.LittleEndian.PutUint32(enc.buf[4*i:], w)
	}
	_, enc.err = enc.w.Write(enc.buf)
	if enc.err != nil {
		return fmt.Errorf("pl: could not write point packet: %w", enc.err)
	}
	return nil
}

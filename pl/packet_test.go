// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestCodec(t *testing.T) {
	pts := []Point{
		{},
		{Chans: [NumChans]ChanAccum{
			{Sum: 1_000_000, Count: 700},
			{Sum: -700_000, Count: 700},
			{Sum: 1 << 40, Count: 1},
			{Sum: -1, Count: 0xffff_ffff},
		}},
	}

	buf := new(bytes.Buffer)
	enc := NewEncoder(buf)
	for i, pt := range pts {
		if err := enc.Encode(pt); err != nil {
			t.Fatalf("could not encode point %d: %+v", i, err)
		}
	}
	if got, want := buf.Len(), len(pts)*PacketWords*4; got != want {
		t.Fatalf("stream length=%d, want %d", got, want)
	}

	dec := NewDecoder(buf)
	for i, want := range pts {
		var got Point
		if err := dec.Decode(&got); err != nil {
			t.Fatalf("could not decode point %d: %+v", i, err)
		}
		if got != want {
			t.Fatalf("point %d:\ngot = %+v\nwant= %+v", i, got, want)
		}
	}

	var pt Point
	if err := dec.Decode(&pt); err != io.EOF {
		t.Fatalf("decode past end: err=%v, want io.EOF", err)
	}
}

func TestDecoderShortStream(t *testing.T) {
	raw := make([]byte, PacketWords*4)
	dec := NewDecoder(bytes.NewReader(raw[:10]))

	var pt Point
	if err := dec.Decode(&pt); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("decode short stream: err=%v, want %v", err, io.ErrUnexpectedEOF)
	}

	// decoder errors are sticky.
	if err := dec.Decode(&pt); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("sticky error: got %v, want %v", err, io.ErrUnexpectedEOF)
	}
}

func TestPointWords(t *testing.T) {
	pt := Point{Chans: [NumChans]ChanAccum{
		{Sum: -2, Count: 3},
		{Sum: 0x1_0000_0001, Count: 4},
	}}
	w := pt.Words()
	if w[0] != 0xffff_fffe || w[1] != 0xffff_ffff {
		t.Errorf("negative sum words: lo=%#x hi=%#x", w[0], w[1])
	}
	if w[3] != 1 || w[4] != 1 {
		t.Errorf("wide sum words: lo=%#x hi=%#x", w[3], w[4])
	}
	if got := PointFromWords(w); got != pt {
		t.Errorf("roundtrip:\ngot = %+v\nwant= %+v", got, pt)
	}
}

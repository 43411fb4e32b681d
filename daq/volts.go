// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"

	"github.com/go-vna/slvna/pl"
)

// pointVolts converts the 12 raw words of one point to the averaged
// voltages of the four channels.
func pointVolts(words []uint32) ([4]float64, error) {
	if len(words) != pl.PacketWords {
		return [4]float64{}, fmt.Errorf("daq: invalid point length %d", len(words))
	}

	var w [pl.PacketWords]uint32
	copy(w[:], words)
	pt := pl.PointFromWords(w)

	var volts [4]float64
	for i, ch := range pt.Chans {
		if ch.Count == 0 {
			return [4]float64{}, fmt.Errorf("daq: zero sample count for channel %d", i)
		}
		volts[i] = float64(ch.Sum) / float64(ch.Count) * RawToVolts
	}
	return volts, nil
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

// stretcher coalesces n consecutive point packets into one logical packet
// of 12*n words: data passes through untouched, but only every n-th
// end-of-packet marker is propagated downstream.
//
// The repeat counter is registered; the marker rewrite is combinational on
// the handshake, so ready/valid timing is unchanged.
type stretcher struct {
	n   uint32
	cnt uint32

	nxtCnt uint32
}

func newStretcher(n uint16) stretcher {
	return stretcher{n: uint32(n)}
}

// last rewrites the incoming end-of-packet marker for the word presently
// on the stream.
func (str *stretcher) last(eop bool) bool {
	return eop && str.cnt == str.n-1
}

// step advances the repeat counter when a word is accepted downstream.
func (str *stretcher) step(eop, accepted bool) {
	str.nxtCnt = str.cnt
	if accepted && eop {
		str.nxtCnt++
		if str.nxtCnt == str.n {
			str.nxtCnt = 0
		}
	}
}

func (str *stretcher) commit() {
	str.cnt = str.nxtCnt
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

type pktState uint8

const (
	pktIdle pktState = iota
	pktSending
)

// packetiser snapshots the four channel accumulations of a completed point
// and serialises them as 12 ordered words, (sumLo, sumHi, count) per channel,
// on a ready/valid stream. The snapshot is taken one tick after the
// point-complete pulse, once the accumulator drain has committed, and is
// immune to later accumulator activity.
//
// A point completing while a previous packet is still in flight is dropped;
// the drop is counted and observable through Dropped.
type packetiser struct {
	state   pktState
	pending bool // registered point-complete pulse
	shadow  Point
	word    int // index of the word currently presented

	dropped uint64

	nxtState   pktState
	nxtPending bool
	nxtShadow  Point
	nxtWord    int
	nxtDropped uint64
}

func (pkt *packetiser) step(done bool, chans [NumChans]accumulator, ready bool) {
	pkt.nxtState = pkt.state
	pkt.nxtPending = pkt.pending
	pkt.nxtShadow = pkt.shadow
	pkt.nxtWord = pkt.word
	pkt.nxtDropped = pkt.dropped

	switch pkt.state {
	case pktIdle:
		if pkt.pending {
			for i, acc := range chans {
				pkt.nxtShadow.Chans[i] = ChanAccum{Sum: acc.sum, Count: acc.count}
			}
			pkt.nxtState = pktSending
			pkt.nxtWord = 0
		}
		pkt.nxtPending = done

	case pktSending:
		pkt.nxtPending = false
		if done {
			// point completed mid-send: silently lossy in the
			// reference hardware, surfaced as a counter here.
			pkt.nxtDropped++
		}
		if ready {
			pkt.nxtWord++
			if pkt.nxtWord == PacketWords {
				pkt.nxtState = pktIdle
				pkt.nxtWord = 0
			}
		}
	}
}

func (pkt *packetiser) commit() {
	pkt.state = pkt.nxtState
	pkt.pending = pkt.nxtPending
	pkt.shadow = pkt.nxtShadow
	pkt.word = pkt.nxtWord
	pkt.dropped = pkt.nxtDropped
}

// valid reports whether a word is presented on the stream.
func (pkt *packetiser) valid() bool { return pkt.state == pktSending }

// out returns the currently presented word and whether it is the last
// word of the packet.
func (pkt *packetiser) out() (uint32, bool) {
	var (
		ch   = pkt.word / 3
		chd  = pkt.shadow.Chans[ch]
		last = pkt.word == PacketWords-1
	)
	switch pkt.word % 3 {
	case 0:
		return uint32(uint64(chd.Sum) & 0xffff_ffff), last
	case 1:
		return uint32(uint64(chd.Sum) >> 32), last
	default:
		return chd.Count, last
	}
}

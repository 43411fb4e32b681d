// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import "time"

// pqueue is the FIFO of acquired points between the fetch loop and the
// TCP data path.
type pqueue struct {
	ch chan [4]float64
}

func newQueue(depth int) *pqueue {
	return &pqueue{ch: make(chan [4]float64, depth)}
}

// put enqueues pt. It reports false when the queue is full; the fetch
// loop pauses acquisition in that case.
func (q *pqueue) put(pt [4]float64) bool {
	select {
	case q.ch <- pt:
		return true
	default:
		return false
	}
}

// get dequeues one point, waiting at most timeout.
func (q *pqueue) get(timeout time.Duration) ([4]float64, bool) {
	select {
	case pt := <-q.ch:
		return pt, true
	case <-time.After(timeout):
		return [4]float64{}, false
	}
}

func (q *pqueue) size() int { return len(q.ch) }

// flush drops everything currently queued.
func (q *pqueue) flush() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}

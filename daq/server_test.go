// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-vna/slvna/pl"
)

type client struct {
	t    *testing.T
	conn net.Conn
}

func dialServer(t *testing.T, addr string) *client {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("could not dial server: %+v", err)
	}
	return &client{t: t, conn: conn}
}

func (c *client) send(req string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(req)); err != nil {
		c.t.Fatalf("could not send %q: %+v", req, err)
	}
}

func (c *client) recv(n int) []byte {
	c.t.Helper()
	buf := make([]byte, n)
	_ = c.conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		c.t.Fatalf("could not read %d bytes: %+v", n, err)
	}
	return buf
}

func (c *client) cmd(req, want string) {
	c.t.Helper()
	c.send(req)
	if got := string(c.recv(len(want))); got != want {
		c.t.Fatalf("command %q: got reply %q, want %q", req, got, want)
	}
}

func TestServer(t *testing.T) {
	const sample = 1 << 20
	dev := NewSimDevice(func(uint64) [pl.NumChans]int32 {
		return [pl.NumChans]int32{sample, sample, sample, sample}
	})

	tmp := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(tmp, []byte("45500\n"), 0644); err != nil {
		t.Fatalf("could not create temperature file: %+v", err)
	}

	srv, err := NewServer("127.0.0.1:0", dev, WithTempFile(tmp))
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}

	done := make(chan error)
	go func() { done <- srv.Serve(context.Background()) }()

	c := dialServer(t, srv.Addr().String())
	defer c.conn.Close()

	// data requests are rejected while acquisition is disabled
	c.cmd("d", "?")

	// configuration
	c.cmd("p0.4", "*")  // 50 cycles per point
	c.cmd("g0.16", "*") // 20 cycles dead time
	c.cmd("t0.08", "*") // 10 cycles trigger pulse
	c.cmd("c6", "*")
	c.cmd("o0", "*")
	c.cmd("a45", "*")
	c.cmd("i7.8125", "*")

	// requests with missing or bad arguments
	c.cmd("p", "?")
	c.cmd("pabc", "?")
	c.cmd("x1", "?")

	// temperature, millidegrees on disk
	c.send("T")
	temp := math.Float64frombits(binary.LittleEndian.Uint64(c.recv(8)))
	if temp != 45.5 {
		t.Fatalf("invalid temperature: got=%v, want=45.5", temp)
	}

	// start acquisition and fetch one full reply of 45 points
	c.cmd("r1", "*")
	c.send("d")
	raw := c.recv(PointsPerReply * 4 * 8)
	want := sample * RawToVolts
	for i := 0; i < len(raw); i += 8 {
		v := math.Float64frombits(binary.LittleEndian.Uint64(raw[i:]))
		if math.Abs(v-want) > 1e-12 {
			t.Fatalf("voltage %d: got=%v, want=%v", i/8, v, want)
		}
	}

	// queue size is a 16-bit big-endian counter
	c.send("q")
	_ = binary.BigEndian.Uint16(c.recv(2))

	// reconfiguring while running must fail
	c.cmd("p1", "?")

	c.cmd("r0", "*")
	c.cmd("r2", "?")

	// remote stop shuts the server down
	c.cmd("!", "*")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server failed: %+v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("server did not stop")
	}
}

func TestServerClientDisconnectPausesDAQ(t *testing.T) {
	dev := NewSimDevice(nil)

	srv, err := NewServer("127.0.0.1:0", dev)
	if err != nil {
		t.Fatalf("could not create server: %+v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- srv.Serve(ctx) }()

	c := dialServer(t, srv.Addr().String())
	c.cmd("p0.4", "*")
	c.cmd("g0.16", "*")
	c.cmd("t0.08", "*")
	c.cmd("a1", "*")
	c.cmd("i7.8125", "*")
	c.cmd("r1", "*")

	if !dev.Enabled() {
		t.Fatalf("device should be enabled after r1")
	}
	_ = c.conn.Close()

	// the server notices the disconnect and pauses acquisition
	deadline := time.Now().Add(10 * time.Second)
	for dev.Enabled() {
		if time.Now().After(deadline) {
			t.Fatalf("device still enabled after client disconnect")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("server failed: %+v", err)
	}
}

func TestQueue(t *testing.T) {
	q := newQueue(2)

	if !q.put([4]float64{1}) || !q.put([4]float64{2}) {
		t.Fatalf("could not fill queue")
	}
	if q.put([4]float64{3}) {
		t.Fatalf("put on a full queue should fail")
	}
	if got, want := q.size(), 2; got != want {
		t.Fatalf("invalid size: got=%d, want=%d", got, want)
	}

	pt, ok := q.get(time.Second)
	if !ok || pt != ([4]float64{1}) {
		t.Fatalf("invalid point: got=%v ok=%v", pt, ok)
	}

	q.flush()
	if got, want := q.size(), 0; got != want {
		t.Fatalf("invalid size after flush: got=%d, want=%d", got, want)
	}
	if _, ok := q.get(time.Millisecond); ok {
		t.Fatalf("get on an empty queue should time out")
	}
}

func TestReadTemp(t *testing.T) {
	tmp := filepath.Join(t.TempDir(), "temp")
	if err := os.WriteFile(tmp, []byte("51234\n"), 0644); err != nil {
		t.Fatalf("could not create temperature file: %+v", err)
	}

	v, err := readTemp(tmp)
	if err != nil {
		t.Fatalf("could not read temperature: %+v", err)
	}
	if v != 51.234 {
		t.Fatalf("invalid temperature: got=%v, want=51.234", v)
	}

	if _, err := readTemp(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command slvna-daq exposes a simulated VNA front-end as a TDAQ node,
// streaming IQ points on its /iq output so the instrument can take
// part in a larger run-controlled data taking.
package main // import "github.com/go-vna/slvna/cmd/slvna-daq"

import (
	"context"
	"encoding/binary"
	"log"
	"math"
	"os"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/go-vna/slvna/daq"
	"github.com/go-vna/slvna/pl"
)

func main() {
	cmd := flags.New()

	vna := &vnaNode{name: cmd.Args[0]}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", vna.OnConfig)
	srv.CmdHandle("/init", vna.OnInit)
	srv.CmdHandle("/reset", vna.OnReset)
	srv.CmdHandle("/start", vna.OnStart)
	srv.CmdHandle("/stop", vna.OnStop)
	srv.CmdHandle("/quit", vna.OnQuit)

	srv.OutputHandle("/iq", vna.iq)

	srv.RunHandle(vna.run)

	err := srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type vnaNode struct {
	name string

	dev  *daq.Device
	n    int
	data chan []byte
}

func (vna *vnaNode) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")
	return nil
}

func (vna *vnaNode) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")
	return vna.reset()
}

func (vna *vnaNode) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	return vna.reset()
}

func (vna *vnaNode) reset() error {
	if vna.dev != nil {
		_ = vna.dev.Close()
	}
	vna.dev = daq.NewSimDevice(tone)
	vna.data = make(chan []byte, 1024)
	vna.n = 0

	for _, c := range []struct {
		cmd byte
		v   float64
	}{
		{'p', 1000}, // 1 ms per point
		{'g', 300},
		{'t', 10},
		{'c', 6},
		{'a', 1},
		{'i', 7.8125},
	} {
		if err := vna.dev.WriteField(c.cmd, c.v); err != nil {
			return err
		}
	}
	return nil
}

func (vna *vnaNode) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")
	return vna.dev.Enable()
}

func (vna *vnaNode) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command... -> n=%d", vna.n)
	return vna.dev.Disable()
}

func (vna *vnaNode) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")
	if vna.dev == nil {
		return nil
	}
	return vna.dev.Close()
}

func (vna *vnaNode) iq(ctx tdaq.Context, dst *tdaq.Frame) error {
	select {
	case <-ctx.Ctx.Done():
		dst.Body = nil
		return nil
	case data := <-vna.data:
		dst.Body = data
	}
	return nil
}

// tone synthesizes an IF tone on the DUT channels and a reference at
// half amplitude, matching the default front-end multiplier.
func tone(tick uint64) [pl.NumChans]int32 {
	const (
		amp = 1 << 24
		ifq = 16.0 / 256
	)
	var (
		ph = 2 * math.Pi * ifq * float64(tick)
		i  = int32(amp * math.Cos(ph))
		q  = int32(amp * math.Sin(ph))
	)
	return [pl.NumChans]int32{i, q, i / 2, q / 2}
}

func (vna *vnaNode) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		default:
		}

		if vna.dev == nil || !vna.dev.Enabled() {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		pts, err := vna.dev.Points()
		if err != nil {
			ctx.Msg.Errorf("could not fetch points: %+v", err)
			continue
		}

		for _, pt := range pts {
			raw := make([]byte, 4*8)
			for i, v := range pt {
				binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
			}
			select {
			case vna.data <- raw:
				vna.n++
			default:
			}
		}
	}
}

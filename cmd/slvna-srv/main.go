// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command slvna-srv serves the VNA acquisition fabric over TCP: it
// accepts configuration and run-control commands and streams the
// averaged IQ voltages back to the client.
package main // import "github.com/go-vna/slvna/cmd/slvna-srv"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"

	"github.com/go-vna/slvna/daq"
	"github.com/go-vna/slvna/pl"
	"github.com/go-vna/slvna/rundb"
)

func main() {
	log.SetPrefix("slvna-srv: ")
	log.SetFlags(0)

	var (
		addr   = flag.String("addr", fmt.Sprintf(":%d", daq.Port), "[ip]:[port] to listen on")
		devmem = flag.String("devmem", "/dev/mem", "device file for fabric register access")
		dma    = flag.String("dma", "/dev/slvna-dma", "device file of the DMA stream")
		sim    = flag.Bool("sim", false, "simulate the acquisition fabric")
		dbDSN  = flag.String("db", "", "DSN of the run database (empty: no run log)")
	)

	flag.Parse()

	err := run(*addr, *devmem, *dma, *dbDSN, *sim)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

func run(addr, devmem, dma, dbDSN string, sim bool) error {
	var (
		dev *daq.Device
		err error
	)
	switch {
	case sim:
		dev = daq.NewSimDevice(simSamples)
	default:
		dev, err = daq.NewDevice(devmem, dma)
		if err != nil {
			return fmt.Errorf("could not open acquisition device: %w", err)
		}
	}
	defer dev.Close()

	var opts []daq.Option
	if dbDSN != "" {
		db, err := rundb.Open(dbDSN)
		if err != nil {
			return fmt.Errorf("could not open run database: %w", err)
		}
		defer db.Close()
		opts = append(opts, daq.WithRunDB(db))
	}

	srv, err := daq.NewServer(addr, dev, opts...)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}
	return srv.Serve(context.Background())
}

// simSamples synthesizes a pure IF tone on the DUT channels and a
// reference tone at half amplitude, so a simulated sweep produces a
// plausible S21 of about +6 dB.
func simSamples(tick uint64) [pl.NumChans]int32 {
	const (
		amp = 1 << 24
		ifq = 16.0 / 256 // IF in cycles per tick, for the default multiplier
	)
	var (
		ph = 2 * math.Pi * ifq * float64(tick)
		i  = int32(amp * math.Cos(ph))
		q  = int32(amp * math.Sin(ph))
	)
	return [pl.NumChans]int32{i, q, i / 2, q / 2}
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// slvna-plot plots the S21 magnitude of a raw point packet file.
//
// Usage: slvna-plot [OPTIONS] FILE
//
// Example:
//
//	$> slvna-plot -o sweep.png ./testdata/sweep.raw
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/cmplx"
	"os"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/vg"

	"github.com/go-vna/slvna/pl"
)

func main() {
	log.SetPrefix("slvna-plot: ")
	log.SetFlags(0)

	oname := flag.String("o", "s21.png", "path to output plot file")

	flag.Usage = func() {
		fmt.Printf(`slvna-plot plots the S21 magnitude of a raw point packet file.

Usage: slvna-plot [OPTIONS] FILE

Example:

 $> slvna-plot -o sweep.png ./testdata/sweep.raw

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		log.Fatalf("missing path to input raw point file")
	}

	err := process(*oname, flag.Arg(0))
	if err != nil {
		log.Fatalf("could not plot file %q: %+v", flag.Arg(0), err)
	}
}

func process(oname, fname string) error {
	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	s21, err := magnitudes(f)
	if err != nil {
		return fmt.Errorf("could not compute S21 from %q: %w", fname, err)
	}
	if s21.Len() == 0 {
		return fmt.Errorf("no point in %q", fname)
	}

	p := hplot.New()
	p.Title.Text = "S21"
	p.X.Label.Text = "point"
	p.Y.Label.Text = "|S21| (dB)"
	p.Add(hplot.NewS2D(s21, hplot.WithStepsKind(hplot.HiSteps)))
	p.Add(hplot.NewGrid())

	err = p.Save(20*vg.Centimeter, 10*vg.Centimeter, oname)
	if err != nil {
		return fmt.Errorf("could not save plot to %q: %w", oname, err)
	}
	return nil
}

// magnitudes decodes points from r and returns the per point ratio of
// the DUT and reference phasors, in dB.
func magnitudes(r io.Reader) (*hbook.S2D, error) {
	s2d := hbook.NewS2D()
	dec := pl.NewDecoder(r)
	for i := 0; ; i++ {
		var pt pl.Point
		err := dec.Decode(&pt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return s2d, nil
			}
			return nil, fmt.Errorf("could not decode point %d: %w", i, err)
		}
		dut, err := phasor(pt.Chans[0], pt.Chans[1])
		if err != nil {
			return nil, fmt.Errorf("invalid DUT channels for point %d: %w", i, err)
		}
		ref, err := phasor(pt.Chans[2], pt.Chans[3])
		if err != nil {
			return nil, fmt.Errorf("invalid reference channels for point %d: %w", i, err)
		}
		db := 20 * math.Log10(cmplx.Abs(dut)/cmplx.Abs(ref))
		s2d.Fill(hbook.Point2D{X: float64(i), Y: db})
	}
}

func phasor(i, q pl.ChanAccum) (complex128, error) {
	if i.Count == 0 || q.Count == 0 {
		return 0, fmt.Errorf("empty accumulation")
	}
	return complex(
		float64(i.Sum)/float64(i.Count),
		float64(q.Sum)/float64(q.Count),
	), nil
}

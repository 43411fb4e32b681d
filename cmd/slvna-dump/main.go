// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// slvna-dump decodes and displays raw point packet files.
//
// Usage: slvna-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> slvna-dump ./testdata/sweep.raw
//	=== point 0 ===
//	Idut: sum=    1000000 count=  700 mean=  0.0000426
//	Qdut: sum=    -700000 count=  700 mean= -0.0000298
//	Iref: sum=     500000 count=  700 mean=  0.0000213
//	Qref: sum=    -350000 count=  700 mean= -0.0000149
//	[...]
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/go-vna/slvna/pl"
)

func main() {
	log.SetPrefix("slvna-dump: ")
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Printf(`slvna-dump decodes and displays raw point packet files.

Usage: slvna-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> slvna-dump ./testdata/sweep.raw
 === point 0 ===
 Idut: sum=    1000000 count=  700 mean=  0.0000426
 Qdut: sum=    -700000 count=  700 mean= -0.0000298
 Iref: sum=     500000 count=  700 mean=  0.0000213
 Qref: sum=    -350000 count=  700 mean= -0.0000149
 [...]

`)
		flag.PrintDefaults()
	}

	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		log.Fatalf("missing path to input raw point file")
	}

	for _, fname := range flag.Args() {
		err := process(os.Stdout, fname)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

var chanNames = [pl.NumChans]string{"Idut", "Qdut", "Iref", "Qref"}

func process(w io.Writer, fname string) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	dec := pl.NewDecoder(f)
loop:
	for i := 0; ; i++ {
		var pt pl.Point
		err := dec.Decode(&pt)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break loop
			}
			return fmt.Errorf("could not decode point: %w", err)
		}
		fmt.Fprintf(wbuf, "=== point %d ===\n", i)
		for j, ch := range pt.Chans {
			var mean float64
			if ch.Count > 0 {
				mean = float64(ch.Sum) / float64(ch.Count) / (1 << 25)
			}
			fmt.Fprintf(wbuf, "%s: sum=% 11d count=% 5d mean=% 10.7f\n",
				chanNames[j], ch.Sum, ch.Count, mean,
			)
		}
	}

	return nil
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command slvna-shell is an interactive debug console for slvna-srv.
// It speaks the single-letter wire protocol so one can poke at the
// instrument without the measurement client.
package main // import "github.com/go-vna/slvna/cmd/slvna-shell"

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/go-vna/slvna/daq"
)

func main() {
	log.SetPrefix("slvna-shell: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", fmt.Sprintf("localhost:%d", daq.Port), "address of the slvna data server")
	)

	flag.Parse()

	err := run(*addr)
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

var fields = map[string]byte{
	"dead-time":  'g',
	"point-time": 'p',
	"trig-len":   't',
	"trig0":      'c',
	"trig1":      'o',
	"ppt":        'a',
	"if-mult":    'i',
}

func run(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return fmt.Errorf("could not dial %q: %w", addr, err)
	}
	defer conn.Close()

	term := liner.NewLiner()
	defer term.Close()
	term.SetCtrlCAborts(true)

	history := filepath.Join(os.TempDir(), ".slvna_history")
	if f, err := os.Open(history); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(history)
		if err != nil {
			log.Printf("could not save history: %+v", err)
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

	sh := &shell{conn: conn}
	for {
		line, err := term.Prompt("slvna> ")
		if err != nil {
			if err == io.EOF || err == liner.ErrPromptAborted {
				return nil
			}
			return fmt.Errorf("could not read line: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		term.AppendHistory(line)

		quit, err := sh.exec(line)
		if err != nil {
			log.Printf("%+v", err)
		}
		if quit {
			return nil
		}
	}
}

type shell struct {
	conn net.Conn
}

func (sh *shell) exec(line string) (bool, error) {
	args := strings.Fields(line)
	switch args[0] {
	case "quit", "exit":
		return true, nil

	case "help":
		fmt.Println(`commands:
  set <field> <value>  configure (fields: dead-time, point-time, trig-len [us],
                       trig0, trig1 [bits], ppt, if-mult)
  get-config           not supported by the wire protocol, use the run log
  start | stop         enable or disable acquisition
  data                 request one batch of IQ points
  temp                 read the SoC temperature
  qsize                read the server queue size
  kill                 stop the remote server
  quit                 leave the shell`)
		return false, nil

	case "set":
		if len(args) != 3 {
			return false, fmt.Errorf("usage: set <field> <value>")
		}
		cmd, ok := fields[args[1]]
		if !ok {
			return false, fmt.Errorf("unknown field %q", args[1])
		}
		return false, sh.command(string(cmd) + args[2])

	case "start":
		return false, sh.command("r1")
	case "stop":
		return false, sh.command("r0")
	case "kill":
		err := sh.command("!")
		return true, err

	case "data":
		raw, err := sh.request("d")
		if err != nil {
			return false, err
		}
		if len(raw)%32 != 0 {
			return false, fmt.Errorf("invalid data reply length %d", len(raw))
		}
		for i := 0; i < len(raw); i += 32 {
			var v [4]float64
			for j := range v {
				v[j] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i+8*j:]))
			}
			fmt.Printf("point[%02d]: dut=(%+.6e, %+.6e) ref=(%+.6e, %+.6e)\n",
				i/32, v[0], v[1], v[2], v[3],
			)
		}
		return false, nil

	case "temp":
		raw, err := sh.request("T")
		if err != nil {
			return false, err
		}
		if len(raw) != 8 {
			return false, fmt.Errorf("invalid temperature reply length %d", len(raw))
		}
		fmt.Printf("temp: %.1f C\n", math.Float64frombits(binary.LittleEndian.Uint64(raw)))
		return false, nil

	case "qsize":
		raw, err := sh.request("q")
		if err != nil {
			return false, err
		}
		if len(raw) != 2 {
			return false, fmt.Errorf("invalid queue-size reply length %d", len(raw))
		}
		fmt.Printf("queue: %d points\n", binary.BigEndian.Uint16(raw))
		return false, nil

	default:
		return false, fmt.Errorf("unknown command %q (try help)", args[0])
	}
}

// command sends a configuration or control request and checks for the
// ok reply.
func (sh *shell) command(req string) error {
	raw, err := sh.request(req)
	if err != nil {
		return err
	}
	if string(raw) != "*" {
		return fmt.Errorf("server refused %q (reply %q)", req, raw)
	}
	return nil
}

// request sends req and collects the reply until the server goes idle.
// The wire protocol has no framing, so the end of a reply is detected
// with a read timeout.
func (sh *shell) request(req string) ([]byte, error) {
	if _, err := sh.conn.Write([]byte(req)); err != nil {
		return nil, fmt.Errorf("could not send %q: %w", req, err)
	}

	var (
		reply []byte
		buf   = make([]byte, 4096)
	)
	for {
		timeout := 250 * time.Millisecond
		if len(reply) == 0 {
			timeout = 10 * time.Second
		}
		_ = sh.conn.SetReadDeadline(time.Now().Add(timeout))
		n, err := sh.conn.Read(buf)
		reply = append(reply, buf[:n]...)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() && len(reply) > 0 {
				break
			}
			return nil, fmt.Errorf("could not read reply to %q: %w", req, err)
		}
	}

	if string(reply) == "?" {
		return nil, fmt.Errorf("server error for request %q", req)
	}
	return reply, nil
}

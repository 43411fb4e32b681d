// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-vna/slvna/rundb"
)

// Server is the TCP command and data server of the slvna acquisition
// chain. It serves one client at a time, as the instrument has a single
// operator.
type Server struct {
	lis net.Listener
	msg *log.Logger

	dev *Device
	q   *pqueue
	ctl *fetchCtl

	db    *rundb.DB
	runID int64

	tempFile string
	timeout  time.Duration

	cancel context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithRunDB records run starts and stops in db.
func WithRunDB(db *rundb.DB) Option {
	return func(srv *Server) { srv.db = db }
}

// WithTempFile overrides the sysfs file the temperature is read from.
func WithTempFile(fname string) Option {
	return func(srv *Server) { srv.tempFile = fname }
}

// NewServer creates a data server for dev, listening on addr.
func NewServer(addr string, dev *Device, opts ...Option) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("daq: could not listen on %q: %w", addr, err)
	}

	srv := &Server{
		lis:      lis,
		msg:      log.New(os.Stdout, "slvna-srv: ", 0),
		dev:      dev,
		q:        newQueue(queueDepth),
		ctl:      newFetchCtl(),
		tempFile: defaultTempFile,
		timeout:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(srv)
	}
	return srv, nil
}

// Addr returns the address the server listens on.
func (srv *Server) Addr() net.Addr { return srv.lis.Addr() }

// Serve serves clients until the context is cancelled or a client
// sends the stop command.
func (srv *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	srv.cancel = cancel

	lis := srv.lis
	srv.msg.Printf("serving on %q...", lis.Addr())

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		<-ctx.Done()
		srv.ctl.stop()
		return lis.Close()
	})
	grp.Go(func() error {
		srv.fetchLoop()
		return nil
	})
	grp.Go(func() error {
		for {
			conn, err := lis.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("daq: could not accept connection: %w", err)
			}
			srv.handle(conn)
			if ctx.Err() != nil {
				return nil
			}
		}
	})

	err := grp.Wait()
	srv.pauseDMA()
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (srv *Server) handle(conn net.Conn) {
	defer conn.Close()
	srv.msg.Printf("serving %v...", conn.RemoteAddr())
	defer srv.msg.Printf("serving %v... [done]", conn.RemoteAddr())

	buf := make([]byte, 16)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				srv.msg.Printf("could not read from %v: %+v", conn.RemoteAddr(), err)
			}
			break
		}
		if n == 0 {
			continue
		}

		resp, stop := srv.respond(strings.TrimSpace(string(buf[:n])))
		if _, err := conn.Write(resp); err != nil {
			srv.msg.Printf("could not reply to %v: %+v", conn.RemoteAddr(), err)
		}
		if stop {
			srv.msg.Printf("stop requested by %v", conn.RemoteAddr())
			srv.cancel()
			return
		}
	}

	// a client going away should not leave the fabric free-running
	srv.pauseDMA()
}

// respond implements the wire protocol. The second return value asks
// the caller to stop the server.
func (srv *Server) respond(req string) ([]byte, bool) {
	if req == "" {
		return respErr, false
	}

	switch cmd := req[0]; cmd {
	case cmdData:
		return srv.dataReply(), false

	case cmdQueueSize:
		var resp [2]byte
		binary.BigEndian.PutUint16(resp[:], uint16(srv.q.size()))
		return resp[:], false

	case cmdTemp:
		temp, err := readTemp(srv.tempFile)
		if err != nil {
			srv.msg.Printf("could not read temperature: %+v", err)
			return respErr, false
		}
		var resp [8]byte
		binary.LittleEndian.PutUint64(resp[:], math.Float64bits(temp))
		return resp[:], false

	case cmdStop:
		return respOK, true

	case cmdRun:
		switch req[1:] {
		case "1":
			if err := srv.startDMA(); err != nil {
				srv.msg.Printf("could not start acquisition: %+v", err)
				return respErr, false
			}
		case "0":
			srv.pauseDMA()
		default:
			srv.msg.Printf("invalid run argument %q", req[1:])
			return respErr, false
		}
		return respOK, false

	default:
		if _, ok := fields[cmd]; !ok {
			srv.msg.Printf("unknown command %q", req)
			return respErr, false
		}
		if len(req) < 2 {
			srv.msg.Printf("command %q without argument", cmd)
			return respErr, false
		}
		v, err := strconv.ParseFloat(req[1:], 64)
		if err != nil {
			srv.msg.Printf("invalid argument for command %q: %+v", cmd, err)
			return respErr, false
		}
		if err := srv.dev.WriteField(cmd, v); err != nil {
			srv.msg.Printf("could not configure: %+v", err)
			return respErr, false
		}
		return respOK, false
	}
}

// dataReply groups up to PointsPerReply points into one reply, each
// point four little-endian float64 voltages.
func (srv *Server) dataReply() []byte {
	if !srv.dev.Enabled() {
		return respErr
	}

	var pts [][4]float64
	for len(pts) < PointsPerReply {
		pt, ok := srv.q.get(srv.timeout)
		if !ok {
			if len(pts) > 0 {
				break
			}
			if srv.ctl.isParked() {
				// fetching stalled, probably a full queue
				return respErr
			}
			continue
		}
		pts = append(pts, pt)
	}

	resp := make([]byte, 0, len(pts)*4*8)
	var word [8]byte
	for _, pt := range pts {
		for _, v := range pt {
			binary.LittleEndian.PutUint64(word[:], math.Float64bits(v))
			resp = append(resp, word[:]...)
		}
	}
	return resp
}

// startDMA validates the configuration, restarts the fabric from a
// clean queue and resumes the fetch loop.
func (srv *Server) startDMA() error {
	srv.pauseDMA()
	srv.q.flush()

	if err := srv.dev.Enable(); err != nil {
		return err
	}

	if srv.db != nil {
		cfg, err := srv.dev.Config()
		if err == nil {
			srv.runID, err = srv.db.InsertRun(context.Background(), cfg)
		}
		if err != nil {
			srv.msg.Printf("could not record run start: %+v", err)
			srv.runID = 0
		}
	}

	srv.ctl.start()
	return nil
}

// pauseDMA parks the fetch loop and disables the fabric.
//
// TODO: abort an in-flight DMA transfer; until then a pause can take up
// to one full transfer to take effect.
func (srv *Server) pauseDMA() {
	srv.ctl.pause()
	if err := srv.dev.Disable(); err != nil {
		srv.msg.Printf("could not disable fabric: %+v", err)
	}

	if srv.db != nil && srv.runID != 0 {
		if err := srv.db.CloseRun(context.Background(), srv.runID); err != nil {
			srv.msg.Printf("could not record run stop: %+v", err)
		}
		srv.runID = 0
	}
}

// fetchLoop drains the device into the queue while fetching is wanted.
func (srv *Server) fetchLoop() {
	for srv.ctl.await() {
	burst:
		for srv.ctl.running() {
			pts, err := srv.dev.Points()
			if err != nil {
				srv.msg.Printf("could not fetch points: %+v", err)
				srv.ctl.park()
				break burst
			}
			for _, pt := range pts {
				if !srv.q.put(pt) {
					srv.msg.Printf("queue full, pausing acquisition")
					srv.ctl.park()
					break burst
				}
			}
		}
	}
}

// fetchCtl coordinates the fetch loop with the command path: commands
// ask to start or pause fetching and can wait for the loop to actually
// park between two transfers.
type fetchCtl struct {
	mu     sync.Mutex
	cond   *sync.Cond
	want   bool
	parked bool
	exit   bool
}

func newFetchCtl() *fetchCtl {
	ctl := &fetchCtl{parked: true}
	ctl.cond = sync.NewCond(&ctl.mu)
	return ctl
}

// start resumes fetching.
func (ctl *fetchCtl) start() {
	ctl.mu.Lock()
	ctl.want = true
	ctl.cond.Broadcast()
	ctl.mu.Unlock()
}

// pause asks the loop to stop and waits until it is parked.
func (ctl *fetchCtl) pause() {
	ctl.mu.Lock()
	ctl.want = false
	for !ctl.parked {
		ctl.cond.Wait()
	}
	ctl.mu.Unlock()
}

// stop makes the loop exit and waits until it has.
func (ctl *fetchCtl) stop() {
	ctl.mu.Lock()
	ctl.want = false
	ctl.exit = true
	ctl.cond.Broadcast()
	for !ctl.parked {
		ctl.cond.Wait()
	}
	ctl.mu.Unlock()
}

// park is the loop side of pause: the loop stops wanting to fetch.
func (ctl *fetchCtl) park() {
	ctl.mu.Lock()
	ctl.want = false
	ctl.mu.Unlock()
}

func (ctl *fetchCtl) isParked() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.parked
}

func (ctl *fetchCtl) running() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()
	return ctl.want && !ctl.exit
}

// await parks the loop until fetching is wanted. It reports false when
// the loop should exit.
func (ctl *fetchCtl) await() bool {
	ctl.mu.Lock()
	defer ctl.mu.Unlock()

	ctl.parked = true
	ctl.cond.Broadcast()
	for !ctl.want && !ctl.exit {
		ctl.cond.Wait()
	}
	if ctl.exit {
		return false
	}
	ctl.parked = false
	return true
}

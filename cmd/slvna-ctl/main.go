// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command slvna-ctl is a watchdog for a running slvna-srv: it polls the
// server queue size and mails an alert when the server stops answering
// or the data queue stalls, which usually means the measurement client
// died mid-sweep and left the fabric filling the queue.
package main // import "github.com/go-vna/slvna/cmd/slvna-ctl"

import (
	"crypto/tls"
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/go-vna/slvna/daq"
)

func main() {
	log.SetPrefix("slvna-ctl: ")
	log.SetFlags(0)

	var (
		addr = flag.String("addr", fmt.Sprintf("localhost:%d", daq.Port), "address of the slvna data server")
		freq = flag.Duration("freq", 30*time.Second, "probing interval")
		nbad = flag.Int("stall", 3, "number of identical saturated probes before a stall alert")
	)

	flag.Parse()

	run(*addr, *freq, *nbad)
}

func run(addr string, freq time.Duration, nbad int) {
	mon := &monitor{
		addr:   addr,
		freq:   freq,
		nbad:   nbad,
		alerts: make(map[string]int),
	}
	log.Printf("monitoring %q every %v...", addr, freq)
	mon.run()
}

type monitor struct {
	addr string
	freq time.Duration
	nbad int

	last   uint16
	stuck  int
	alerts map[string]int // number of alerts sent per reason
}

func (mon *monitor) run() {
	tick := time.NewTicker(mon.freq)
	defer tick.Stop()

	for range tick.C {
		mon.probe()
	}
}

func (mon *monitor) probe() {
	size, err := mon.queueSize()
	if err != nil {
		log.Printf("could not probe %q: %+v", mon.addr, err)
		mon.alert("down", fmt.Sprintf("server %q not answering: %+v", mon.addr, err))
		return
	}
	delete(mon.alerts, "down")

	// a full queue pauses acquisition on the server side; a queue that
	// stays full means nobody is draining it.
	const full = 1<<16 - 1
	switch {
	case size == full && size == mon.last:
		mon.stuck++
	default:
		mon.stuck = 0
		delete(mon.alerts, "stall")
	}
	mon.last = size

	if mon.stuck >= mon.nbad {
		mon.alert("stall", fmt.Sprintf(
			"queue on %q stuck at %d points for %v",
			mon.addr, size, time.Duration(mon.stuck)*mon.freq,
		))
	}
}

func (mon *monitor) queueSize() (uint16, error) {
	conn, err := net.DialTimeout("tcp", mon.addr, mon.freq/2)
	if err != nil {
		return 0, fmt.Errorf("could not dial: %w", err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(mon.freq / 2))

	if _, err := conn.Write([]byte("q")); err != nil {
		return 0, fmt.Errorf("could not send queue-size request: %w", err)
	}
	var raw [2]byte
	if _, err := conn.Read(raw[:]); err != nil {
		return 0, fmt.Errorf("could not read queue-size reply: %w", err)
	}
	return binary.BigEndian.Uint16(raw[:]), nil
}

func (mon *monitor) alert(reason, body string) {
	log.Printf("alert (%s): %s", reason, body)
	mon.alerts[reason]++

	const maxAlerts = 5
	if mon.alerts[reason] < maxAlerts {
		mon.alertMail(reason, body)
	}
}

var (
	alertMailUsr  = os.Getenv("MAIL_USERNAME")
	alertMailPwd  = os.Getenv("MAIL_PASSWORD")
	alertMailSrv  = os.Getenv("MAIL_SERVER")
	alertMailPort = atoi(os.Getenv("MAIL_PORT"))
	alertMailTgts = strings.Split(os.Getenv("MAIL_TGTS"), ",")
)

func (mon *monitor) alertMail(reason, body string) {
	if alertMailUsr == "" || alertMailPwd == "" ||
		alertMailSrv == "" || alertMailPort == 0 ||
		len(alertMailTgts) == 0 {
		log.Printf("could not send mail alert: missing credentials")
		return
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", alertMailUsr)
	msg.SetHeader("Bcc", alertMailTgts...)
	msg.SetHeader("Subject", fmt.Sprintf("[slvna-ctl] %s alert: %q", reason, mon.addr))
	msg.SetBody("text/plain", body)

	dial := mail.NewDialer(alertMailSrv, alertMailPort, alertMailUsr, alertMailPwd)
	dial.TLSConfig = &tls.Config{
		InsecureSkipVerify: true,
	}
	err := dial.DialAndSend(msg)
	if err != nil {
		log.Printf("could not send mail alert: %+v", err)
	}
}

func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

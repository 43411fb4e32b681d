// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package rundb

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/go-vna/slvna/internal/fakedb"
	"github.com/go-vna/slvna/pl"
)

func init() {
	drvName = "fakedb"
}

func TestOpen(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()
}

func TestInsertRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	cfg := pl.Config{
		DeadTime:          37500,
		PointTime:         125000,
		TrigLen:           1250,
		Trig0:             pl.TrigConfig{First: true, Rest: true},
		PointsPerTransfer: 45,
		IFMult:            16,
	}

	_ = fakedb.RunExec(context.Background(), fakedb.Result{InsertID: 42, Affected: 1}, func(ctx context.Context) error {
		id, err := db.InsertRun(ctx, cfg)
		if err != nil {
			t.Fatalf("could not insert run: %+v", err)
		}
		if got, want := id, int64(42); got != want {
			t.Fatalf("invalid run number: got=%d, want=%d", got, want)
		}
		return nil
	})
}

func TestCloseRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	_ = fakedb.RunExec(context.Background(), fakedb.Result{Affected: 1}, func(ctx context.Context) error {
		if err := db.CloseRun(ctx, 42); err != nil {
			t.Fatalf("could not close run: %+v", err)
		}
		return nil
	})
}

func TestLastRun(t *testing.T) {
	db, err := Open("fakedb")
	if err != nil {
		t.Fatalf("could not open rundb: %+v", err)
	}
	defer db.Close()

	started := time.Date(2023, 5, 16, 10, 30, 0, 0, time.UTC)

	_ = fakedb.Run(context.Background(), fakedb.Rows{
		Names: []string{
			"id", "dead_time", "point_time", "trig_len",
			"trig0", "trig1", "ppt", "if_mult", "started", "stopped",
		},
		Values: [][]driver.Value{
			{int64(42), uint32(37500), uint32(125000), uint32(1250),
				uint32(6), uint32(0), uint16(45), uint8(16), started, nil},
		},
	}, func(ctx context.Context) error {
		run, err := db.LastRun(ctx)
		if err != nil {
			t.Fatalf("could not retrieve last run: %+v", err)
		}

		if got, want := run.ID, int64(42); got != want {
			t.Fatalf("invalid run number: got=%d, want=%d", got, want)
		}
		want := pl.Config{
			DeadTime:          37500,
			PointTime:         125000,
			TrigLen:           1250,
			Trig0:             pl.TrigConfig{First: true, Rest: true},
			PointsPerTransfer: 45,
			IFMult:            16,
		}
		if run.Config != want {
			t.Fatalf("invalid run config:\ngot = %+v\nwant= %+v", run.Config, want)
		}
		if !run.Started.Equal(started) {
			t.Fatalf("invalid start time: got=%v, want=%v", run.Started, started)
		}
		if run.Stopped.Valid {
			t.Fatalf("run should still be open, got stop time %v", run.Stopped.Time)
		}
		return nil
	})
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package rundb records acquisition runs of the slvna data server in a
// MySQL database: the fabric configuration of each run and its start
// and stop times.
package rundb // import "github.com/go-vna/slvna/rundb"

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/go-vna/slvna/pl"
)

var (
	drvName = "mysql"
)

// Run is one acquisition run, as recorded in the runs table.
type Run struct {
	ID      int64
	Config  pl.Config
	Started time.Time
	Stopped sql.NullTime // zero while the run is still going
}

// DB exposes convenience methods to record and retrieve acquisition
// runs.
type DB struct {
	db *sql.DB
}

// Open opens a connection to the run database described by dsn.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, fmt.Errorf("rundb: could not open run db: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rundb: could not ping run db: %w", err)
	}

	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// InsertRun records the start of a run with the given fabric
// configuration and returns its run number.
func (db *DB) InsertRun(ctx context.Context, cfg pl.Config) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := db.db.ExecContext(
		ctx,
		`
INSERT INTO runs (dead_time, point_time, trig_len, trig0, trig1, ppt, if_mult, started)
VALUES (?, ?, ?, ?, ?, ?, ?, NOW())
`,
		cfg.DeadTime, cfg.PointTime, cfg.TrigLen,
		cfg.Trig0.Bits(), cfg.Trig1.Bits(),
		cfg.PointsPerTransfer, cfg.IFMult,
	)
	if err != nil {
		return 0, fmt.Errorf("rundb: could not insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("rundb: could not get run number: %w", err)
	}
	return id, nil
}

// CloseRun records the stop time of the run id.
func (db *DB) CloseRun(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := db.db.ExecContext(
		ctx,
		"UPDATE runs SET stopped=NOW() WHERE id=?",
		id,
	)
	if err != nil {
		return fmt.Errorf("rundb: could not close run %d: %w", id, err)
	}
	return nil
}

// LastRun retrieves the most recent run.
func (db *DB) LastRun(ctx context.Context) (Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run Run
	rows, err := db.db.QueryContext(
		ctx,
		`
SELECT id, dead_time, point_time, trig_len, trig0, trig1, ppt, if_mult, started, stopped
FROM runs ORDER BY id DESC LIMIT 1
`,
	)
	if err != nil {
		return run, fmt.Errorf("rundb: could not query last run: %w", err)
	}
	defer rows.Close()

	ok := false
	for rows.Next() {
		var (
			trig0, trig1 uint32
		)
		err = rows.Scan(
			&run.ID,
			&run.Config.DeadTime, &run.Config.PointTime, &run.Config.TrigLen,
			&trig0, &trig1,
			&run.Config.PointsPerTransfer, &run.Config.IFMult,
			&run.Started, &run.Stopped,
		)
		if err != nil {
			return run, fmt.Errorf("rundb: could not scan last run: %w", err)
		}
		run.Config.Trig0 = pl.TrigConfigFrom(trig0)
		run.Config.Trig1 = pl.TrigConfigFrom(trig1)
		ok = true
	}

	if err := rows.Err(); err != nil {
		return run, fmt.Errorf("rundb: could not scan db for last run: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return run, fmt.Errorf("rundb: context error while retrieving last run: %w", err)
	}
	if !ok {
		return run, fmt.Errorf("rundb: no run recorded")
	}
	return run, nil
}

// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pl

import (
	"errors"
	"testing"
)

func TestConfigValidate(t *testing.T) {
	valid := Config{
		DeadTime:          300,
		PointTime:         1000,
		TrigLen:           10,
		PointsPerTransfer: 45,
		IFMult:            16,
	}

	for _, tc := range []struct {
		name string
		cfg  func(Config) Config
		want error
	}{
		{
			name: "valid",
			cfg:  func(c Config) Config { return c },
		},
		{
			name: "triglen-equal-deadtime",
			cfg:  func(c Config) Config { c.TrigLen = c.DeadTime; return c },
		},
		{
			name: "triglen-too-wide",
			cfg: func(c Config) Config {
				c.TrigLen = 1 << 24
				c.DeadTime = 1 << 25
				c.PointTime = 1 << 26
				return c
			},
			want: ErrTrigLenWidth,
		},
		{
			name: "triglen-exceeds-deadtime",
			cfg:  func(c Config) Config { c.TrigLen = c.DeadTime + 1; return c },
			want: ErrTrigLen,
		},
		{
			name: "deadtime-equal-pointtime",
			cfg:  func(c Config) Config { c.DeadTime = c.PointTime; return c },
			want: ErrDeadTime,
		},
		{
			name: "deadtime-exceeds-pointtime",
			cfg:  func(c Config) Config { c.DeadTime = c.PointTime + 1; return c },
			want: ErrDeadTime,
		},
		{
			name: "zero-points-per-transfer",
			cfg:  func(c Config) Config { c.PointsPerTransfer = 0; return c },
			want: ErrPointsPerTransfer,
		},
		{
			name: "zero-if-mult",
			cfg:  func(c Config) Config { c.IFMult = 0; return c },
			want: ErrIFMult,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg(valid).Validate()
			switch {
			case tc.want == nil && err != nil:
				t.Fatalf("unexpected error: %+v", err)
			case tc.want != nil && !errors.Is(err, tc.want):
				t.Fatalf("got err=%v, want %v", err, tc.want)
			}
		})
	}
}

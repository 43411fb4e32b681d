// Copyright 2023 The go-vna Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package daq

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// defaultTempFile is the sysfs thermal zone of the SoC, in millidegrees
// Celsius.
const defaultTempFile = "/sys/class/thermal/thermal_zone0/temp"

func readTemp(fname string) (float64, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return 0, fmt.Errorf("daq: could not read temperature: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, fmt.Errorf("daq: could not parse temperature %q: %w", raw, err)
	}
	return float64(v) / 1000, nil
}

// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"fmt"
	"os"
)

// Clock models the controller input clock, as provided by the
// platform. The rate is read once at Open and assumed immutable for
// the lifetime of the device.
type Clock interface {
	Enable() error
	Disable() error
	Rate() (int64, error) // Hz
}

// FixedClock is an always-on input clock with a known rate, for
// integrations where firmware already set the clock tree up.
type FixedClock int64

func (c FixedClock) Enable() error  { return nil }
func (c FixedClock) Disable() error { return nil }

func (c FixedClock) Rate() (int64, error) { return int64(c), nil }

// FileClock is an always-on input clock whose rate is read from a
// sysfs-style attribute file.
type FileClock string

func (c FileClock) Enable() error  { return nil }
func (c FileClock) Disable() error { return nil }

func (c FileClock) Rate() (int64, error) {
	f, err := os.Open(string(c))
	if err != nil {
		return 0, fmt.Errorf("pwm: could not open clock rate file: %w", err)
	}
	defer f.Close()

	var rate int64
	_, err = fmt.Fscanf(f, "%d", &rate)
	if err != nil {
		return 0, fmt.Errorf("pwm: could not read clock rate from %q: %w", string(c), err)
	}
	return rate, nil
}

// Reset models the controller reset line. The line is optional: a nil
// Reset means the integration has none, which is not an error.
type Reset interface {
	Assert() error
	Deassert() error
}

// FileReset drives a reset line through a sysfs-style attribute file,
// writing "1" to assert and "0" to deassert.
type FileReset string

func (r FileReset) Assert() error   { return r.write("1") }
func (r FileReset) Deassert() error { return r.write("0") }

func (r FileReset) write(v string) error {
	err := os.WriteFile(string(r), []byte(v), 0644)
	if err != nil {
		return fmt.Errorf("pwm: could not drive reset line %q: %w", string(r), err)
	}
	return nil
}

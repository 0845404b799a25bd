// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pwm drives the OpenCores PTC timer/counter IP block as a
// multi-channel PWM controller.
//
// A controller owns a memory-mapped register window and exposes eight
// channels. Each channel is a 16-byte register block (counter,
// high-reference count, low-reference count, control) addressed through
// a variant-specific layout. Register access is a short synchronous
// sequence of 32-bit reads and writes; the package performs no locking,
// callers are expected to serialize access per channel.
package pwm // import "github.com/ocores/ptc/pwm"

import (
	"errors"
)

const (
	// NumChans is the number of channels of the known PTC integrations.
	NumChans = 8

	// PWMCells is the number of cells encoding a channel reference in
	// platform configuration data (channel index, period, flags).
	PWMCells = 3
)

var (
	// ErrInvalidClockRate is returned by Open when the platform reports
	// a non-positive input clock rate. The controller must not be
	// brought into service.
	ErrInvalidClockRate = errors.New("pwm: invalid clock rate")

	// ErrUnsupportedPolarity is returned by Apply when the requested
	// state carries any polarity but PolarityInversed. The PTC block
	// has no polarity register bit, inversion is fixed in wiring.
	ErrUnsupportedPolarity = errors.New("pwm: unsupported polarity")
)

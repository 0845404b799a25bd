// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package regs holds the register map of the OpenCores PTC block.
package regs // import "github.com/ocores/ptc/pwm/internal/regs"

// Register offsets within one channel block.
const (
	PTC_CNTR = 0x00 // free-running counter
	PTC_HRC  = 0x04 // high reference count (duty ticks)
	PTC_LRC  = 0x08 // low reference count (period ticks)
	PTC_CTRL = 0x0c // control and status
)

// PTC_CTRL register bits.
const (
	CTRL_EN      = 1 << 0 // counter enable
	CTRL_ECLK    = 1 << 1 // external clock select
	CTRL_NEC     = 1 << 2 // invert external clock
	CTRL_OE      = 1 << 3 // PWM output enable
	CTRL_SINGLE  = 1 << 4 // single-shot mode
	CTRL_INTE    = 1 << 5 // interrupt enable
	CTRL_INT     = 1 << 6 // interrupt status
	CTRL_CNTRRST = 1 << 7 // counter reset
	CTRL_CAPTE   = 1 << 8 // capture enable
)

// Channel addressing.
const (
	CHAN_STRIDE = 0x10    // register block size per channel
	BANK_OFFSET = 1 << 15 // secondary register bank (JH71x0)

	FLAT_SPAN   = 8 * CHAN_STRIDE
	BANKED_SPAN = BANK_OFFSET + 4*CHAN_STRIDE
)

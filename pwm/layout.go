// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"github.com/ocores/ptc/pwm/internal/regs"
)

// Layout resolves a channel index to the offset of its register block
// within the controller window. A layout is pure address arithmetic
// with no side effects; it is selected once, when the device is opened.
type Layout interface {
	ChanBase(ch int) int64
}

// flatLayout is the stock OpenCores integration: eight consecutive
// register blocks from the controller base.
type flatLayout struct{}

func (flatLayout) ChanBase(ch int) int64 {
	return int64(ch) * regs.CHAN_STRIDE
}

// bankedLayout is the StarFive JH71x0 integration: the primary bank
// only has four register slots, channels 4-7 live in a secondary bank
// at a fixed offset. Channels k and k+4 alias the same slot index, so
// a caller must not drive both concurrently.
type bankedLayout struct{}

func (bankedLayout) ChanBase(ch int) int64 {
	if ch > 3 {
		return int64(ch%4)*regs.CHAN_STRIDE + regs.BANK_OFFSET
	}
	return int64(ch) * regs.CHAN_STRIDE
}

// Known hardware-compatibility identifiers.
const (
	CompatOpenCores = "opencores,pwm-ocores"
	CompatJH71x0    = "starfive,jh71x0-pwm"
)

// Variant describes one supported PTC integration.
type Variant struct {
	Compatible string
	Layout     Layout
	Span       int // size of the register window
}

var variants = []Variant{
	{Compatible: CompatOpenCores, Layout: flatLayout{}, Span: regs.FLAT_SPAN},
	{Compatible: CompatJH71x0, Layout: bankedLayout{}, Span: regs.BANKED_SPAN},
}

// VariantOf returns the variant matching the given compatible
// identifier.
func VariantOf(compatible string) (Variant, bool) {
	for _, v := range variants {
		if v.Compatible == compatible {
			return v, true
		}
	}
	return Variant{}, false
}

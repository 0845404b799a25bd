// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"io"

	"github.com/ocores/ptc/pwm/internal/regs"
)

// rwer is the register window capability a device is driven through.
// The production implementation is an iomem.Window over /dev/mem;
// tests substitute a file-backed window.
type rwer interface {
	io.ReaderAt
	io.WriterAt
}

type reg32 struct {
	r func() uint32
	w func(v uint32)
}

func newReg32(dev *Device, rw rwer, offset int64) reg32 {
	return reg32{
		r: func() uint32 {
			return dev.readU32(rw, offset)
		},
		w: func(v uint32) {
			dev.writeU32(rw, offset, v)
		},
	}
}

// chanRegs is the register block of one PWM channel.
type chanRegs struct {
	cntr reg32 // free-running counter
	hrc  reg32 // duty tick count
	lrc  reg32 // period tick count
	ctrl reg32
}

func newChanRegs(dev *Device, rw rwer, base int64) chanRegs {
	return chanRegs{
		cntr: newReg32(dev, rw, base+regs.PTC_CNTR),
		hrc:  newReg32(dev, rw, base+regs.PTC_HRC),
		lrc:  newReg32(dev, rw, base+regs.PTC_LRC),
		ctrl: newReg32(dev, rw, base+regs.PTC_CTRL),
	}
}

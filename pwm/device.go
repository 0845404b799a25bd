// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"math"
	"os"

	"github.com/ocores/ptc/internal/iomem"
	"github.com/ocores/ptc/pwm/internal/regs"
)

// Option configures a Device at Open time.
type Option func(cfg *config)

type config struct {
	msg *log.Logger
	clk Clock
	rst Reset
}

// WithLogger sets the logger used by the device.
func WithLogger(msg *log.Logger) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}

// WithClock provides the controller input clock.
func WithClock(clk Clock) Option {
	return func(cfg *config) {
		cfg.clk = clk
	}
}

// WithReset provides the reset line control of the controller.
func WithReset(rst Reset) Option {
	return func(cfg *config) {
		cfg.rst = rst
	}
}

// Device represents one PTC controller instance. It owns the
// controller register window exclusively for its lifetime.
type Device struct {
	msg *log.Logger

	mem struct {
		fd  *os.File
		win *iomem.Window
	}

	clk    Clock
	rst    Reset
	rate   uint32 // input clock frequency in Hz
	layout Layout
	regs   [NumChans]chanRegs

	err error
	buf [4]byte
}

// Open maps the controller register window found at base inside the
// devmem device file and brings the controller into service.
//
// The register layout is selected by the compatible identifier (see
// VariantOf). The input clock must be provided with WithClock; a reset
// line is optional. Open releases every resource it already acquired
// when a later step fails.
func Open(devmem string, base int64, compatible string, opts ...Option) (*Device, error) {
	variant, ok := VariantOf(compatible)
	if !ok {
		return nil, fmt.Errorf("pwm: unknown compatible %q", compatible)
	}

	cfg := config{
		msg: log.New(os.Stdout, "ptc: ", 0),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.clk == nil {
		return nil, fmt.Errorf("pwm: no input clock provided")
	}

	mem, err := os.OpenFile(devmem, os.O_RDWR|os.O_SYNC, 0666)
	if err != nil {
		return nil, fmt.Errorf("pwm: could not open %q: %w", devmem, err)
	}
	defer func() {
		if err != nil {
			_ = mem.Close()
		}
	}()

	err = cfg.clk.Enable()
	if err != nil {
		return nil, fmt.Errorf("pwm: could not enable input clock: %w", err)
	}
	defer func() {
		if err != nil {
			_ = cfg.clk.Disable()
		}
	}()

	if cfg.rst != nil {
		err = cfg.rst.Deassert()
		if err != nil {
			return nil, fmt.Errorf("pwm: could not deassert reset line: %w", err)
		}
	}
	defer func() {
		if err != nil && cfg.rst != nil {
			_ = cfg.rst.Assert()
		}
	}()

	rate, err := cfg.clk.Rate()
	if err != nil {
		return nil, fmt.Errorf("pwm: could not get input clock rate: %w", err)
	}
	if rate <= 0 || rate > math.MaxUint32 {
		err = fmt.Errorf("pwm: input clock rate %d Hz: %w", rate, ErrInvalidClockRate)
		return nil, err
	}

	win, err := iomem.Map(mem, base, variant.Span)
	if err != nil {
		return nil, fmt.Errorf("pwm: could not map register window: %w", err)
	}

	dev := &Device{
		msg:    cfg.msg,
		clk:    cfg.clk,
		rst:    cfg.rst,
		rate:   uint32(rate),
		layout: variant.Layout,
	}
	dev.mem.fd = mem
	dev.mem.win = win
	dev.bindRegs(win)

	dev.msg.Printf("mapped %q register window at 0x%x (%d bytes, clock %d Hz)",
		compatible, base, variant.Span, dev.rate,
	)
	return dev, nil
}

func (dev *Device) bindRegs(rw rwer) {
	for ch := range dev.regs {
		dev.regs[ch] = newChanRegs(dev, rw, dev.layout.ChanBase(ch))
	}
}

// ClockRate returns the controller input clock frequency in Hz.
func (dev *Device) ClockRate() uint32 { return dev.rate }

// NumChannels returns the number of channels of the controller.
func (dev *Device) NumChannels() int { return NumChans }

// State reads the current state of the given channel from hardware.
// Nothing is cached: every call reads the channel registers.
func (dev *Device) State(ch int) (State, error) {
	if ch < 0 || ch >= NumChans {
		return State{}, fmt.Errorf("pwm: invalid channel %d", ch)
	}

	var (
		period = dev.regs[ch].lrc.r()
		duty   = dev.regs[ch].hrc.r()
		ctrl   = dev.regs[ch].ctrl.r()
	)
	if dev.err != nil {
		return State{}, fmt.Errorf("pwm: could not read channel %d state: %w", ch, dev.err)
	}

	return State{
		Period:   durationOf(period, dev.rate),
		Duty:     durationOf(duty, dev.rate),
		Enabled:  ctrl&regs.CTRL_EN != 0,
		Polarity: PolarityInversed,
	}, nil
}

// Apply programs the given channel with the requested state.
//
// The requested polarity must be PolarityInversed; any other value is
// rejected with ErrUnsupportedPolarity before touching hardware.
// Period and duty magnitudes are the caller's responsibility. The
// free-running counter is reset so the new period and duty take effect
// from a known phase, and only the enable and output-enable control
// bits are modified.
func (dev *Device) Apply(ch int, state State) error {
	if ch < 0 || ch >= NumChans {
		return fmt.Errorf("pwm: invalid channel %d", ch)
	}
	if state.Polarity != PolarityInversed {
		return fmt.Errorf("pwm: channel %d: polarity %v: %w",
			ch, state.Polarity, ErrUnsupportedPolarity,
		)
	}

	dev.regs[ch].lrc.w(ticksOf(state.Period, dev.rate))
	dev.regs[ch].hrc.w(ticksOf(state.Duty, dev.rate))
	dev.regs[ch].cntr.w(0)

	ctrl := dev.regs[ch].ctrl.r()
	switch {
	case state.Enabled:
		ctrl |= regs.CTRL_EN | regs.CTRL_OE
	default:
		ctrl &^= regs.CTRL_EN | regs.CTRL_OE
	}
	dev.regs[ch].ctrl.w(ctrl)

	if dev.err != nil {
		return fmt.Errorf("pwm: could not apply channel %d state: %w", ch, dev.err)
	}
	return nil
}

// Close takes the controller out of service: the reset line (if any)
// is asserted, the input clock released and the register window
// unmapped. No register state survives Close.
func (dev *Device) Close() error {
	if dev.mem.fd == nil {
		return nil
	}

	var errRst error
	if dev.rst != nil {
		errRst = dev.rst.Assert()
	}
	var (
		errClk = dev.clk.Disable()
		errWin = dev.mem.win.Close()
		errMem = dev.mem.fd.Close()
	)

	dev.mem.fd = nil
	dev.mem.win = nil

	if errRst != nil {
		return fmt.Errorf("pwm: could not assert reset line: %w", errRst)
	}
	if errClk != nil {
		return fmt.Errorf("pwm: could not disable input clock: %w", errClk)
	}
	if errWin != nil {
		return fmt.Errorf("pwm: could not unmap register window: %w", errWin)
	}
	if errMem != nil {
		return fmt.Errorf("pwm: could not close device mem file: %w", errMem)
	}
	return nil
}

// DumpRegisters writes a human readable view of all channel register
// blocks to w.
func (dev *Device) DumpRegisters(w io.Writer) error {
	var (
		buf    = bufio.NewWriter(w)
		err    error
		printf = func(format string, args ...interface{}) {
			_, e := fmt.Fprintf(buf, format, args...)
			if err == nil {
				err = e
			}
		}
	)

	for ch := 0; ch < NumChans; ch++ {
		var (
			cntr = dev.regs[ch].cntr.r()
			hrc  = dev.regs[ch].hrc.r()
			lrc  = dev.regs[ch].lrc.r()
			ctrl = dev.regs[ch].ctrl.r()
		)
		if dev.err != nil {
			return fmt.Errorf("pwm: could not dump channel %d registers: %w", ch, dev.err)
		}

		printf("---- channel %d (base 0x%04x) ----\n", ch, dev.layout.ChanBase(ch))
		printf("cntr:\t0x%08x\n", cntr)
		printf("hrc:\t0x%08x\t(duty   %v)\n", hrc, durationOf(hrc, dev.rate))
		printf("lrc:\t0x%08x\t(period %v)\n", lrc, durationOf(lrc, dev.rate))
		printf("ctrl:\t0x%08x", ctrl)
		printf("\t en:%d", bit32(ctrl, 0))
		printf(" eclk:%d", bit32(ctrl, 1))
		printf(" nec:%d", bit32(ctrl, 2))
		printf(" oe:%d", bit32(ctrl, 3))
		printf(" single:%d", bit32(ctrl, 4))
		printf(" inte:%d", bit32(ctrl, 5))
		printf(" int:%d", bit32(ctrl, 6))
		printf(" cntrrst:%d", bit32(ctrl, 7))
		printf(" capte:%d\n", bit32(ctrl, 8))
	}

	if err != nil {
		return fmt.Errorf("pwm: could not dump registers: %w", err)
	}

	err = buf.Flush()
	if err != nil {
		return fmt.Errorf("pwm: could not dump registers: %w", err)
	}
	return nil
}

func bit32(v uint32, n int) uint32 {
	return (v >> uint(n)) & 1
}

func (dev *Device) readU32(r io.ReaderAt, off int64) uint32 {
	if dev.err != nil {
		return 0
	}
	_, dev.err = r.ReadAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("pwm: could not read register 0x%x: %w", off, dev.err)
		return 0
	}
	return binary.LittleEndian.Uint32(dev.buf[:4])
}

func (dev *Device) writeU32(w io.WriterAt, off int64, v uint32) {
	if dev.err != nil {
		return
	}
	binary.LittleEndian.PutUint32(dev.buf[:4], v)
	_, dev.err = w.WriteAt(dev.buf[:4], off)
	if dev.err != nil {
		dev.err = fmt.Errorf("pwm: could not write register 0x%x: %w", off, dev.err)
		return
	}
}

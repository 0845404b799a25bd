// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ocores/ptc/pwm/internal/regs"
)

const testClkRate = 24_000_000 // Hz

// newFakeDev opens a device over a file-backed register window, all
// registers zeroed.
func newFakeDev(t *testing.T, compatible string, opts ...Option) *Device {
	t.Helper()

	fname := filepath.Join(t.TempDir(), "dev.mem")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create fake dev-mem: %+v", err)
	}
	err = f.Truncate(regs.BANKED_SPAN)
	if err != nil {
		t.Fatalf("could not resize fake dev-mem: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close fake dev-mem: %+v", err)
	}

	xopts := []Option{
		WithClock(FixedClock(testClkRate)),
		WithLogger(log.New(io.Discard, "ptc: ", 0)),
	}
	xopts = append(xopts, opts...)

	dev, err := Open(fname, 0, compatible, xopts...)
	if err != nil {
		t.Fatalf("could not open fake device: %+v", err)
	}
	t.Cleanup(func() { _ = dev.Close() })
	return dev
}

type fakeClock struct {
	rate     int64
	rateErr  error
	enabled  bool
	disabled bool
}

func (c *fakeClock) Enable() error  { c.enabled = true; return nil }
func (c *fakeClock) Disable() error { c.disabled = true; return nil }

func (c *fakeClock) Rate() (int64, error) { return c.rate, c.rateErr }

type fakeReset struct {
	err        error
	asserted   bool
	deasserted bool
}

func (r *fakeReset) Assert() error   { r.asserted = true; return nil }
func (r *fakeReset) Deassert() error { r.deasserted = true; return r.err }

func TestApplyState(t *testing.T) {
	for _, compat := range []string{CompatOpenCores, CompatJH71x0} {
		t.Run(compat, func(t *testing.T) {
			dev := newFakeDev(t, compat)

			want := State{
				Period:   1 * time.Millisecond,
				Duty:     250 * time.Microsecond,
				Enabled:  true,
				Polarity: PolarityInversed,
			}

			// On the banked layout channels k and k+4 alias the same
			// register block, so check each channel before programming
			// the next one.
			for ch := 0; ch < NumChans; ch++ {
				err := dev.Apply(ch, want)
				if err != nil {
					t.Fatalf("could not apply channel %d state: %+v", ch, err)
				}

				got, err := dev.State(ch)
				if err != nil {
					t.Fatalf("could not read channel %d state: %+v", ch, err)
				}

				unit := time.Duration((nsecPerSec + testClkRate - 1) / testClkRate)
				if diff := got.Period - want.Period; diff < -unit || diff > unit {
					t.Fatalf("channel %d: invalid period: got=%v, want=%v", ch, got.Period, want.Period)
				}
				if diff := got.Duty - want.Duty; diff < -unit || diff > unit {
					t.Fatalf("channel %d: invalid duty: got=%v, want=%v", ch, got.Duty, want.Duty)
				}
				if got, want := got.Enabled, true; got != want {
					t.Fatalf("channel %d: invalid enabled: got=%v, want=%v", ch, got, want)
				}
				if got, want := got.Polarity, PolarityInversed; got != want {
					t.Fatalf("channel %d: invalid polarity: got=%v, want=%v", ch, got, want)
				}

				if got, want := dev.regs[ch].lrc.r(), uint32(24000); got != want {
					t.Fatalf("channel %d: invalid period ticks: got=%d, want=%d", ch, got, want)
				}
				if got, want := dev.regs[ch].hrc.r(), uint32(6000); got != want {
					t.Fatalf("channel %d: invalid duty ticks: got=%d, want=%d", ch, got, want)
				}
				if got, want := dev.regs[ch].cntr.r(), uint32(0); got != want {
					t.Fatalf("channel %d: invalid counter: got=%d, want=%d", ch, got, want)
				}
			}
		})
	}
}

func TestCtrlBitsPreserved(t *testing.T) {
	dev := newFakeDev(t, CompatOpenCores)

	const ch = 3
	// Interrupt enable was set by somebody else.
	dev.regs[ch].ctrl.w(regs.CTRL_INTE)

	st := State{
		Period:   500 * time.Microsecond,
		Duty:     100 * time.Microsecond,
		Enabled:  true,
		Polarity: PolarityInversed,
	}
	err := dev.Apply(ch, st)
	if err != nil {
		t.Fatalf("could not apply state: %+v", err)
	}

	if got, want := dev.regs[ch].ctrl.r(), uint32(regs.CTRL_INTE|regs.CTRL_EN|regs.CTRL_OE); got != want {
		t.Fatalf("invalid ctrl after enable: got=0b%b, want=0b%b", got, want)
	}

	st.Enabled = false
	err = dev.Apply(ch, st)
	if err != nil {
		t.Fatalf("could not apply state: %+v", err)
	}

	if got, want := dev.regs[ch].ctrl.r(), uint32(regs.CTRL_INTE); got != want {
		t.Fatalf("invalid ctrl after disable: got=0b%b, want=0b%b", got, want)
	}

	got, err := dev.State(ch)
	if err != nil {
		t.Fatalf("could not read state: %+v", err)
	}
	if got.Enabled {
		t.Fatalf("channel still reported enabled")
	}
}

func TestApplyPolarity(t *testing.T) {
	dev := newFakeDev(t, CompatJH71x0)

	const ch = 1
	err := dev.Apply(ch, State{
		Period:   1 * time.Millisecond,
		Duty:     500 * time.Microsecond,
		Enabled:  true,
		Polarity: PolarityInversed,
	})
	if err != nil {
		t.Fatalf("could not apply state: %+v", err)
	}
	dev.regs[ch].cntr.w(7)

	var (
		cntr = dev.regs[ch].cntr.r()
		hrc  = dev.regs[ch].hrc.r()
		lrc  = dev.regs[ch].lrc.r()
		ctrl = dev.regs[ch].ctrl.r()
	)

	err = dev.Apply(ch, State{
		Period:   2 * time.Millisecond,
		Duty:     1 * time.Millisecond,
		Enabled:  false,
		Polarity: PolarityNormal,
	})
	if !errors.Is(err, ErrUnsupportedPolarity) {
		t.Fatalf("invalid apply error: %+v", err)
	}

	// The rejected request must not have touched the registers.
	if got, want := dev.regs[ch].cntr.r(), cntr; got != want {
		t.Fatalf("cntr modified: got=%d, want=%d", got, want)
	}
	if got, want := dev.regs[ch].hrc.r(), hrc; got != want {
		t.Fatalf("hrc modified: got=%d, want=%d", got, want)
	}
	if got, want := dev.regs[ch].lrc.r(), lrc; got != want {
		t.Fatalf("lrc modified: got=%d, want=%d", got, want)
	}
	if got, want := dev.regs[ch].ctrl.r(), ctrl; got != want {
		t.Fatalf("ctrl modified: got=0b%b, want=0b%b", got, want)
	}
}

func TestInvalidChannel(t *testing.T) {
	dev := newFakeDev(t, CompatOpenCores)

	for _, ch := range []int{-1, NumChans, NumChans + 1} {
		_, err := dev.State(ch)
		if err == nil {
			t.Fatalf("expected an error for State(%d)", ch)
		}
		err = dev.Apply(ch, State{Polarity: PolarityInversed})
		if err == nil {
			t.Fatalf("expected an error for Apply(%d)", ch)
		}
	}
}

func TestOpenFail(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "dev.mem")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create fake dev-mem: %+v", err)
	}
	err = f.Truncate(regs.BANKED_SPAN)
	if err != nil {
		t.Fatalf("could not resize fake dev-mem: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close fake dev-mem: %+v", err)
	}

	t.Run("unknown-compatible", func(t *testing.T) {
		_, err := Open(fname, 0, "acme,pwm", WithClock(FixedClock(testClkRate)))
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("no-clock", func(t *testing.T) {
		_, err := Open(fname, 0, CompatOpenCores)
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("no-devmem", func(t *testing.T) {
		_, err := Open(filepath.Join(t.TempDir(), "not-there"), 0, CompatOpenCores,
			WithClock(FixedClock(testClkRate)),
		)
		if err == nil {
			t.Fatal("expected an error")
		}
	})

	t.Run("zero-clock-rate", func(t *testing.T) {
		var (
			clk = &fakeClock{rate: 0}
			rst = &fakeReset{}
		)
		_, err := Open(fname, 0, CompatJH71x0, WithClock(clk), WithReset(rst))
		if !errors.Is(err, ErrInvalidClockRate) {
			t.Fatalf("invalid open error: %+v", err)
		}
		if !clk.disabled {
			t.Fatalf("input clock not released")
		}
		if !rst.asserted {
			t.Fatalf("reset line not re-asserted")
		}
	})

	t.Run("negative-clock-rate", func(t *testing.T) {
		_, err := Open(fname, 0, CompatJH71x0, WithClock(FixedClock(-1)))
		if !errors.Is(err, ErrInvalidClockRate) {
			t.Fatalf("invalid open error: %+v", err)
		}
	})

	t.Run("clock-rate-error", func(t *testing.T) {
		clk := &fakeClock{rateErr: fmt.Errorf("boom")}
		_, err := Open(fname, 0, CompatJH71x0, WithClock(clk))
		if err == nil {
			t.Fatal("expected an error")
		}
		if !clk.disabled {
			t.Fatalf("input clock not released")
		}
	})

	t.Run("reset-error", func(t *testing.T) {
		var (
			clk = &fakeClock{rate: testClkRate}
			rst = &fakeReset{err: fmt.Errorf("boom")}
		)
		_, err := Open(fname, 0, CompatJH71x0, WithClock(clk), WithReset(rst))
		if err == nil {
			t.Fatal("expected an error")
		}
		if !rst.deasserted {
			t.Fatalf("reset line never driven")
		}
		if !clk.disabled {
			t.Fatalf("input clock not released")
		}
	})
}

func TestClose(t *testing.T) {
	fname := filepath.Join(t.TempDir(), "dev.mem")
	f, err := os.Create(fname)
	if err != nil {
		t.Fatalf("could not create fake dev-mem: %+v", err)
	}
	err = f.Truncate(regs.BANKED_SPAN)
	if err != nil {
		t.Fatalf("could not resize fake dev-mem: %+v", err)
	}
	err = f.Close()
	if err != nil {
		t.Fatalf("could not close fake dev-mem: %+v", err)
	}

	var (
		clk = &fakeClock{rate: testClkRate}
		rst = &fakeReset{}
	)
	dev, err := Open(fname, 0, CompatJH71x0, WithClock(clk), WithReset(rst))
	if err != nil {
		t.Fatalf("could not open device: %+v", err)
	}

	err = dev.Close()
	if err != nil {
		t.Fatalf("could not close device: %+v", err)
	}
	if !clk.disabled {
		t.Fatalf("input clock not released")
	}
	if !rst.asserted {
		t.Fatalf("reset line not asserted")
	}

	err = dev.Close()
	if err != nil {
		t.Fatalf("second close errored: %+v", err)
	}
}

func TestDumpRegisters(t *testing.T) {
	dev := newFakeDev(t, CompatJH71x0)

	err := dev.Apply(0, State{
		Period:   1 * time.Millisecond,
		Duty:     250 * time.Microsecond,
		Enabled:  true,
		Polarity: PolarityInversed,
	})
	if err != nil {
		t.Fatalf("could not apply state: %+v", err)
	}

	var buf bytes.Buffer
	err = dev.DumpRegisters(&buf)
	if err != nil {
		t.Fatalf("could not dump registers: %+v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"channel 0 (base 0x0000)",
		"channel 4 (base 0x8000)",
		"channel 7 (base 0x8030)",
		"lrc:\t0x00005dc0",
		"en:1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in dump:\n%s", want, out)
		}
	}
}

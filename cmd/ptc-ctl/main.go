// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptc-ctl programs one channel of a PTC PWM controller.
package main // import "github.com/ocores/ptc/cmd/ptc-ctl"

import (
	"flag"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/ocores/ptc"
	"github.com/ocores/ptc/pwm"
)

func main() {
	var (
		devmem  = flag.String("dev", "/dev/mem", "memory device file")
		base    = flag.String("base", "", "controller base address (hex or decimal)")
		compat  = flag.String("compat", pwm.CompatJH71x0, "hardware-compatibility identifier")
		clkRate = flag.Int64("clk-rate", 0, "input clock rate in Hz")
		clkFile = flag.String("clk-file", "", "file to read the input clock rate from")
		rstFile = flag.String("rst-file", "", "reset line control file (optional)")
		channel = flag.Int("ch", -1, "channel to program")
		period  = flag.Duration("period", 0, "PWM period")
		duty    = flag.Duration("duty", 0, "PWM duty cycle")
		enable  = flag.Bool("enable", true, "enable the channel output")
		version = flag.Bool("version", false, "print version and exit")
	)

	log.SetPrefix("ptc-ctl: ")
	log.SetFlags(0)

	flag.Parse()

	if *version {
		v, sum := ptc.Version()
		log.Printf("version=%q sum=%q", v, sum)
		return
	}

	switch {
	case *base == "":
		log.Fatalf("missing controller base address")
	case *channel < 0:
		log.Fatalf("invalid channel value")
	case *period <= 0:
		log.Fatalf("invalid period value")
	case *duty < 0 || *duty > *period:
		log.Fatalf("invalid duty cycle value")
	case *clkRate == 0 && *clkFile == "":
		log.Fatalf("missing input clock (-clk-rate or -clk-file)")
	}

	addr, err := strconv.ParseInt(*base, 0, 64)
	if err != nil {
		log.Fatalf("could not parse base address %q: %+v", *base, err)
	}

	err = run(*devmem, addr, *compat, *clkRate, *clkFile, *rstFile,
		*channel, *period, *duty, *enable,
	)
	if err != nil {
		log.Fatalf("could not run ptc-ctl: %+v", err)
	}
}

func run(devmem string, base int64, compat string, clkRate int64, clkFile, rstFile string, ch int, period, duty time.Duration, enable bool) error {
	opts := make([]pwm.Option, 0, 2)
	switch {
	case clkFile != "":
		opts = append(opts, pwm.WithClock(pwm.FileClock(clkFile)))
	default:
		opts = append(opts, pwm.WithClock(pwm.FixedClock(clkRate)))
	}
	if rstFile != "" {
		opts = append(opts, pwm.WithReset(pwm.FileReset(rstFile)))
	}

	dev, err := pwm.Open(devmem, base, compat, opts...)
	if err != nil {
		return fmt.Errorf("could not open PTC controller: %w", err)
	}
	defer dev.Close()

	err = dev.Apply(ch, pwm.State{
		Period:   period,
		Duty:     duty,
		Enabled:  enable,
		Polarity: pwm.PolarityInversed,
	})
	if err != nil {
		return fmt.Errorf("could not program channel %d: %w", ch, err)
	}

	state, err := dev.State(ch)
	if err != nil {
		return fmt.Errorf("could not read back channel %d: %w", ch, err)
	}
	log.Printf("channel %d: %v", ch, state)

	return nil
}

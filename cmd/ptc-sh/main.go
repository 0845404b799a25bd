// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptc-sh provides an interactive shell to inspect and program
// the channels of a PTC PWM controller.
package main // import "github.com/ocores/ptc/cmd/ptc-sh"

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/ocores/ptc/pwm"
)

func main() {
	var (
		devmem  = flag.String("dev", "/dev/mem", "memory device file")
		base    = flag.String("base", "", "controller base address (hex or decimal)")
		compat  = flag.String("compat", pwm.CompatJH71x0, "hardware-compatibility identifier")
		clkRate = flag.Int64("clk-rate", 24_000_000, "input clock rate in Hz")
	)

	log.SetPrefix("ptc-sh: ")
	log.SetFlags(0)

	flag.Parse()

	if *base == "" {
		log.Fatalf("missing controller base address")
	}
	addr, err := strconv.ParseInt(*base, 0, 64)
	if err != nil {
		log.Fatalf("could not parse base address %q: %+v", *base, err)
	}

	dev, err := pwm.Open(*devmem, addr, *compat,
		pwm.WithClock(pwm.FixedClock(*clkRate)),
	)
	if err != nil {
		log.Fatalf("could not open PTC controller: %+v", err)
	}
	defer dev.Close()

	err = repl(dev)
	if err != nil {
		log.Fatalf("could not run shell: %+v", err)
	}
}

const history = ".ptc-sh.history"

func repl(dev *pwm.Device) error {
	term := liner.NewLiner()
	defer term.Close()

	term.SetCtrlCAborts(true)

	histFile := filepath.Join(os.TempDir(), history)
	if f, err := os.Open(histFile); err == nil {
		_, _ = term.ReadHistory(f)
		f.Close()
	}
	defer func() {
		f, err := os.Create(histFile)
		if err != nil {
			return
		}
		defer f.Close()
		_, _ = term.WriteHistory(f)
	}()

loop:
	for {
		l, err := term.Prompt("ptc> ")
		switch {
		case err == nil:
			// ok
		case errors.Is(err, liner.ErrPromptAborted), errors.Is(err, io.EOF):
			break loop
		default:
			return fmt.Errorf("could not read prompt: %w", err)
		}

		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		term.AppendHistory(l)

		toks := strings.Fields(l)
		switch toks[0] {
		case "get":
			err = cmdGet(dev, toks[1:])
		case "set":
			err = cmdSet(dev, toks[1:])
		case "dump":
			err = dev.DumpRegisters(os.Stdout)
		case "help":
			usage()
			err = nil
		case "quit", "exit":
			break loop
		default:
			err = fmt.Errorf("unknown command %q (try \"help\")", toks[0])
		}
		if err != nil {
			fmt.Printf("error: %+v\n", err)
		}
	}

	return nil
}

func usage() {
	fmt.Print(`commands:
  get CHANNEL                        read a channel state
  set CHANNEL PERIOD DUTY [on|off]   program a channel (durations like 1ms, 250us)
  dump                               dump all channel registers
  quit                               leave the shell
`)
}

func cmdGet(dev *pwm.Device, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: get CHANNEL")
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("could not parse channel %q: %w", args[0], err)
	}

	state, err := dev.State(ch)
	if err != nil {
		return err
	}
	fmt.Printf("channel %d: %v\n", ch, state)
	return nil
}

func cmdSet(dev *pwm.Device, args []string) error {
	if len(args) < 3 || len(args) > 4 {
		return fmt.Errorf("usage: set CHANNEL PERIOD DUTY [on|off]")
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("could not parse channel %q: %w", args[0], err)
	}
	period, err := time.ParseDuration(args[1])
	if err != nil {
		return fmt.Errorf("could not parse period %q: %w", args[1], err)
	}
	duty, err := time.ParseDuration(args[2])
	if err != nil {
		return fmt.Errorf("could not parse duty %q: %w", args[2], err)
	}

	enable := true
	if len(args) == 4 {
		switch args[3] {
		case "on":
			enable = true
		case "off":
			enable = false
		default:
			return fmt.Errorf("invalid output state %q (want on|off)", args[3])
		}
	}

	return dev.Apply(ch, pwm.State{
		Period:   period,
		Duty:     duty,
		Enabled:  enable,
		Polarity: pwm.PolarityInversed,
	})
}

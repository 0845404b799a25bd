// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptc-spy spies the content of PTC channel registers.
package main // import "github.com/ocores/ptc/cmd/ptc-spy"

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/ocores/ptc/pwm"
)

func main() {
	var (
		devmem  = flag.String("dev", "/dev/mem", "memory device file")
		base    = flag.String("base", "", "controller base address (hex or decimal)")
		compat  = flag.String("compat", pwm.CompatJH71x0, "hardware-compatibility identifier")
		clkRate = flag.Int64("clk-rate", 24_000_000, "input clock rate in Hz")
	)

	log.SetPrefix("ptc-spy: ")
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

	fmt.Printf("------------------------------------------------\n")
	const layout = "2006-01-02 15:04:05 MST"
	fmt.Printf("%v\n", time.Now().Format(layout))

	err = dev.DumpRegisters(os.Stdout)
	if err != nil {
		log.Fatalf("could not dump registers: %+v", err)
	}
}

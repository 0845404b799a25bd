// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command ptc-srv exposes a PTC PWM controller as a TDAQ process.
//
// Usage: ptc-srv [tdaq flags] BASE [COMPATIBLE [CLK-RATE [DEVMEM]]]
//
// Requested channel states arrive with /config commands and are
// programmed into hardware on /start; /stop disables the outputs.
package main // import "github.com/ocores/ptc/cmd/ptc-srv"

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/go-daq/tdaq"
	"github.com/go-daq/tdaq/flags"

	"github.com/ocores/ptc/pwm"
)

func main() {
	cmd := flags.New()

	if len(cmd.Args) < 1 {
		log.Fatalf("missing controller base address argument")
	}
	base, err := strconv.ParseInt(cmd.Args[0], 0, 64)
	if err != nil {
		log.Fatalf("could not parse base address %q: %+v", cmd.Args[0], err)
	}

	ctl := &controller{
		devmem: "/dev/mem",
		base:   base,
		compat: pwm.CompatJH71x0,
		rate:   24_000_000,
		want:   make(map[int]pwm.State),
	}
	if len(cmd.Args) > 1 {
		ctl.compat = cmd.Args[1]
	}
	if len(cmd.Args) > 2 {
		ctl.rate, err = strconv.ParseInt(cmd.Args[2], 10, 64)
		if err != nil {
			log.Fatalf("could not parse clock rate %q: %+v", cmd.Args[2], err)
		}
	}
	if len(cmd.Args) > 3 {
		ctl.devmem = cmd.Args[3]
	}

	srv := tdaq.New(cmd, os.Stdout)
	srv.CmdHandle("/config", ctl.OnConfig)
	srv.CmdHandle("/init", ctl.OnInit)
	srv.CmdHandle("/reset", ctl.OnReset)
	srv.CmdHandle("/start", ctl.OnStart)
	srv.CmdHandle("/stop", ctl.OnStop)
	srv.CmdHandle("/quit", ctl.OnQuit)

	srv.RunHandle(ctl.run)

	err = srv.Run(context.Background())
	if err != nil {
		log.Panicf("error: %+v", err)
	}
}

type controller struct {
	devmem string
	base   int64
	compat string
	rate   int64

	dev  *pwm.Device
	want map[int]pwm.State // requested states, programmed on /start
}

func (ctl *controller) OnInit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /init command...")

	if ctl.dev != nil {
		_ = ctl.dev.Close()
	}
	dev, err := pwm.Open(ctl.devmem, ctl.base, ctl.compat,
		pwm.WithClock(pwm.FixedClock(ctl.rate)),
	)
	if err != nil {
		return fmt.Errorf("could not open PTC controller: %w", err)
	}
	ctl.dev = dev
	ctl.want = make(map[int]pwm.State)

	ctx.Msg.Infof("PTC controller %q @0x%x: clock %d Hz", ctl.compat, ctl.base, dev.ClockRate())
	return nil
}

func (ctl *controller) OnConfig(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /config command...")

	dec := tdaq.NewDecoder(bytes.NewReader(req.Body))
	ch := int(dec.ReadU32())
	raw := dec.ReadStr()

	var state pwm.State
	err := json.Unmarshal([]byte(raw), &state)
	if err != nil {
		return fmt.Errorf("could not decode channel %d state: %w", ch, err)
	}
	state.Polarity = pwm.PolarityInversed

	ctl.want[ch] = state
	ctx.Msg.Infof("channel %d requested state: %v", ch, state)
	return nil
}

func (ctl *controller) OnReset(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /reset command...")
	ctl.want = make(map[int]pwm.State)
	return nil
}

func (ctl *controller) OnStart(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /start command...")

	if ctl.dev == nil {
		return fmt.Errorf("PTC controller not initialized")
	}
	for _, ch := range ctl.channels() {
		err := ctl.dev.Apply(ch, ctl.want[ch])
		if err != nil {
			return fmt.Errorf("could not program channel %d: %w", ch, err)
		}
	}
	return nil
}

func (ctl *controller) OnStop(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /stop command...")

	if ctl.dev == nil {
		return nil
	}
	for _, ch := range ctl.channels() {
		state := ctl.want[ch]
		state.Enabled = false
		err := ctl.dev.Apply(ch, state)
		if err != nil {
			return fmt.Errorf("could not disable channel %d: %w", ch, err)
		}
	}
	return nil
}

func (ctl *controller) OnQuit(ctx tdaq.Context, resp *tdaq.Frame, req tdaq.Frame) error {
	ctx.Msg.Debugf("received /quit command...")

	if ctl.dev == nil {
		return nil
	}
	err := ctl.dev.Close()
	ctl.dev = nil
	return err
}

func (ctl *controller) run(ctx tdaq.Context) error {
	for {
		select {
		case <-ctx.Ctx.Done():
			return nil
		case <-time.After(10 * time.Second):
			for _, ch := range ctl.channels() {
				state, err := ctl.dev.State(ch)
				if err != nil {
					ctx.Msg.Errorf("could not read channel %d state: %+v", ch, err)
					continue
				}
				ctx.Msg.Debugf("channel %d: %v", ch, state)
			}
		}
	}
}

func (ctl *controller) channels() []int {
	chs := make([]int, 0, len(ctl.want))
	for ch := range ctl.want {
		chs = append(chs, ch)
	}
	sort.Ints(chs)
	return chs
}

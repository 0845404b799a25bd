// Copyright 2023 The ocores-ptc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pwm

import (
	"fmt"
	"time"
)

// Polarity selects the active level of the PWM output.
type Polarity uint8

const (
	// PolarityNormal means a high pulse of Duty length every Period.
	PolarityNormal Polarity = iota
	// PolarityInversed means a low pulse of Duty length every Period.
	// It is the only polarity the PTC block supports.
	PolarityInversed
)

func (p Polarity) String() string {
	switch p {
	case PolarityNormal:
		return "normal"
	case PolarityInversed:
		return "inversed"
	}
	return fmt.Sprintf("Polarity(%d)", uint8(p))
}

// State is the hardware-agnostic description of one PWM channel.
// All state lives in the channel registers; a State is a snapshot, not
// a handle.
type State struct {
	Period   time.Duration `json:"period"`
	Duty     time.Duration `json:"duty"`
	Enabled  bool          `json:"enabled"`
	Polarity Polarity      `json:"polarity"`
}

func (st State) String() string {
	onoff := "off"
	if st.Enabled {
		onoff = "on"
	}
	return fmt.Sprintf("period=%v duty=%v polarity=%v [%s]",
		st.Period, st.Duty, st.Polarity, onoff,
	)
}

const nsecPerSec = 1_000_000_000

// ticksOf converts a duration to input-clock ticks, rounded to the
// nearest tick. The multiply runs in 64 bits before the divide.
func ticksOf(d time.Duration, rate uint32) uint32 {
	return uint32(divRoundClosest(uint64(d.Nanoseconds())*uint64(rate), nsecPerSec))
}

// durationOf converts input-clock ticks to a duration, rounded to the
// nearest nanosecond.
func durationOf(ticks, rate uint32) time.Duration {
	return time.Duration(divRoundClosest(uint64(ticks)*nsecPerSec, uint64(rate)))
}

func divRoundClosest(n, d uint64) uint64 {
	return (n + d/2) / d
}

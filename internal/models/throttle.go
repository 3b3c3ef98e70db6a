package models

import (
	"fmt"
	"time"
)

// ThrottleMode selects how tracks are admitted to the pipeline.
type ThrottleMode int

const (
	ModeSerial ThrottleMode = iota
	ModeParallel
)

func (m ThrottleMode) String() string {
	switch m {
	case ModeSerial:
		return "serial"
	case ModeParallel:
		return "parallel"
	default:
		return ""
	}
}

// ThrottlePolicy fixes the concurrency and pacing of one batch.
type ThrottlePolicy struct {
	mode             ThrottleMode
	workers          int
	baseDelay        time.Duration
	jitter           time.Duration
	durationFraction float64
}

// Parallel admits up to n tracks at once with no pacing. n < 1 is treated as 1.
func Parallel(n int) ThrottlePolicy {
	return ThrottlePolicy{mode: ModeParallel, workers: max(n, 1)}
}

// Serial admits one track at a time and waits base + fraction*duration + rand[0, jitter)
// after each track before admitting the next.
func Serial(base, jitter time.Duration, fraction float64) ThrottlePolicy {
	return ThrottlePolicy{
		mode:             ModeSerial,
		workers:          1,
		baseDelay:        max(base, 0),
		jitter:           max(jitter, 0),
		durationFraction: max(fraction, 0),
	}
}

func (p ThrottlePolicy) Mode() ThrottleMode        { return p.mode }
func (p ThrottlePolicy) Workers() int              { return max(p.workers, 1) }
func (p ThrottlePolicy) BaseDelay() time.Duration  { return p.baseDelay }
func (p ThrottlePolicy) Jitter() time.Duration     { return p.jitter }
func (p ThrottlePolicy) DurationFraction() float64 { return p.durationFraction }
func (p ThrottlePolicy) IsSerial() bool            { return p.mode == ModeSerial }

// MeanDelay is the expected pause after a track of the given duration in serial mode.
func (p ThrottlePolicy) MeanDelay(trackDuration time.Duration) time.Duration {
	if !p.IsSerial() {
		return 0
	}
	return p.baseDelay + time.Duration(p.durationFraction*float64(trackDuration)) + p.jitter/2
}

func (p ThrottlePolicy) String() string {
	if p.IsSerial() {
		return fmt.Sprintf("serial(base=%s, jitter=%s, fraction=%.2f)", p.baseDelay, p.jitter, p.durationFraction)
	}
	return fmt.Sprintf("parallel(%d)", p.Workers())
}

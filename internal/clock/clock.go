// Package clock implements the two-sided countdown used by a match.
//
// A Clock does not know whose turn it is. Callers pass the side to debit on
// every Settle, and must settle before any decision that depends on the
// remaining time.
package clock

import (
	"fmt"
	"math"
	"time"

	"github.com/park285/chessroom/internal/domain"
)

type Clock struct {
	control     time.Duration
	white       time.Duration
	black       time.Duration
	lastSettled time.Time
}

// New returns a clock with both sides at control, running from now.
func New(control time.Duration, now time.Time) Clock {
	if control < 0 {
		control = 0
	}
	return Clock{control: control, white: control, black: control, lastSettled: now}
}

// Settle debits the time elapsed since the previous settlement from side and
// reports whether side is now at zero. Time never runs backwards: a now
// earlier than the last settlement debits nothing and leaves the mark alone.
func (c *Clock) Settle(now time.Time, side domain.Color) bool {
	elapsed := now.Sub(c.lastSettled)
	if elapsed < 0 {
		return c.Remaining(side) == 0
	}
	c.lastSettled = now
	switch side {
	case domain.White:
		c.white = debit(c.white, elapsed)
		return c.white == 0
	case domain.Black:
		c.black = debit(c.black, elapsed)
		return c.black == 0
	default:
		return false
	}
}

func debit(remaining, elapsed time.Duration) time.Duration {
	if elapsed >= remaining {
		return 0
	}
	return remaining - elapsed
}

// Reset restores both sides to the configured control.
func (c *Clock) Reset(now time.Time) {
	c.white = c.control
	c.black = c.control
	c.lastSettled = now
}

func (c Clock) Remaining(side domain.Color) time.Duration {
	switch side {
	case domain.White:
		return c.white
	case domain.Black:
		return c.black
	default:
		return 0
	}
}

func (c Clock) Control() time.Duration { return c.control }

func (c Clock) LastSettled() time.Time { return c.lastSettled }

// Seconds truncates d to whole seconds.
func Seconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}

// Format renders d as M:SS after rounding to the nearest second.
func Format(d time.Duration) string {
	total := int(math.Round(math.Max(0, d.Seconds())))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package trigger

import "time"

type (
	// TriggerContext is the reference time of Next. Anything other than a time.Time means time.Now().
	TriggerContext interface{}
	Trigger        interface {
		// Next returns the next fire time, the zero time means the trigger is exhausted.
		Next(TriggerContext) time.Time
	}
	interval struct {
		interval time.Duration
		anchor   time.Time
		end      time.Time
	}
)

// WithInterval fires at anchor, anchor+interval, anchor+2*interval, ...
// The anchor is start, or time.Now()+interval when start is zero.
// A non zero end stops the trigger once the next fire time is after it.
func WithInterval(d time.Duration, start, end time.Time) Trigger {
	anchor := start
	if anchor.IsZero() {
		anchor = time.Now().Add(d)
	}
	return &interval{
		interval: d,
		anchor:   anchor,
		end:      end,
	}
}

func (i *interval) Next(context TriggerContext) time.Time {
	now, ok := context.(time.Time)
	if !ok {
		now = time.Now()
	}

	next := i.anchor
	if now.After(next) {
		k := (now.Sub(next) + i.interval - 1) / i.interval
		next = next.Add(k * i.interval)
	}
	if !i.end.IsZero() && next.After(i.end) {
		return time.Time{}
	}
	return next
}

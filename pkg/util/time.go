/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package util

import (
	"errors"
	"time"

	"github.com/spf13/cast"
)

func CurrentMS() int64 {
	return time.Now().UnixNano() / 1000000
}

// ParseDuration parse any object that like a duration str to duration
// for example:
// "100ms" -> 100ms
// 100 -> 100ms
// 100.0 -> 100ms
func ParseDuration(d interface{}) (time.Duration, error) {
	if s, ok := d.(string); ok {
		if p, err := time.ParseDuration(s); err == nil {
			return p, nil
		}
	}

	f64, err := cast.ToFloat64E(d)
	if err != nil {
		return 0, err
	}
	i64 := int64(f64)
	if i64 < 0 {
		return 0, errors.New("duration < 0")
	}
	return time.Duration(i64) * time.Millisecond, nil
}

// ParseDurationDefault returns d when s is empty or invalid.
func ParseDurationDefault(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if d2, err := ParseDuration(s); err == nil {
		return d2
	}
	return d
}

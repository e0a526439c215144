/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"github.com/pkg/errors"
)

// Environments a collector may report for.
var Environments = []string{"pro", "uat", "perf", "sit"}

// ParseArgs validates the command line: exactly one environment name.
func ParseArgs(args []string) (string, error) {
	if len(args) != 1 {
		return "", errors.Errorf("expect exactly one argument, got %d", len(args))
	}
	for _, env := range Environments {
		if args[0] == env {
			return env, nil
		}
	}
	return "", errors.Errorf("unknown env %q", args[0])
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package main

import (
	"context"
	"os"

	"github.com/traas-stack/holoinsight-collector/pkg/bootstrap"
)

// jvmstats entry, usage: jvmstats <pro|uat|perf|sit>
func main() {
	os.Exit(bootstrap.JvmApp().Main(context.Background(), os.Args[1:]))
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package main

import (
	"context"
	"os"

	"github.com/traas-stack/holoinsight-collector/pkg/bootstrap"
)

// dockerstats entry, usage: dockerstats <pro|uat|perf|sit>
func main() {
	os.Exit(bootstrap.ContainerStatsApp().Main(context.Background(), os.Args[1:]))
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package collector turns containers into documents: enrich every container, then fetch metrics
// for the ones that survived. The two fan-outs never overlap.
package collector

import (
	"context"

	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 32

type (
	// Collector produces the documents of one metric family.
	Collector interface {
		// Name is used in logs, e.g. "getDockerInfo".
		Name() string
		// Family is the index name prefix.
		Family() string
		Mapping() *store.Mapping
		// Collect returns one document per container that has complete identity and metrics.
		Collect(ctx context.Context, rt *runtime.Client, host util.HostIdentity, ids []string) []interface{}
	}
)

// fanOut runs task(i) for i in [0, n) with at most limit in flight and waits for all of them.
// Tasks must only write state owned by their own index.
func fanOut(ctx context.Context, n, limit int, task func(ctx context.Context, i int)) {
	if limit <= 0 {
		limit = defaultConcurrency
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			task(gctx, i)
			return nil
		})
	}
	// tasks never return an error
	_ = g.Wait()
}

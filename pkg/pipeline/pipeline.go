/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package pipeline runs one collection: resolve host, list containers, collect documents,
// ensure today's index and bulk push.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/traas-stack/holoinsight-collector/pkg/collector"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/zap"
)

type Outcome int

const (
	OutcomeNoData Outcome = iota
	OutcomeSuccess
	OutcomePartialFailure
	OutcomeFailure
	OutcomeError
)

type (
	// RuntimeFactory builds the runtime client once the host is known.
	RuntimeFactory func(host util.HostIdentity) (*runtime.Client, error)
	// HostResolver resolves the identity of the local host.
	HostResolver func() (util.HostIdentity, error)

	Pipeline struct {
		Collector   collector.Collector
		Store       *store.Store
		NewRuntime  RuntimeFactory
		ResolveHost HostResolver
		// Now defaults to time.Now. It picks the index date.
		Now func() time.Time
	}
	Report struct {
		RunId       string
		Collector   string
		Env         string
		Index       string
		Outcome     Outcome
		Containers  int
		Count       int
		FailedItems int
		Status      int
		Ensure      store.EnsureResult
		Message     string
		Cost        time.Duration
	}
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoData:
		return "no data"
	case OutcomeSuccess:
		return "success"
	case OutcomePartialFailure:
		return "partial failure"
	case OutcomeFailure:
		return "failure"
	default:
		return "error"
	}
}

// Ok reports whether the run needs no attention.
func (r *Report) Ok() bool {
	return r.Outcome == OutcomeNoData || r.Outcome == OutcomeSuccess
}

// String renders the one-line summary operators grep for.
func (r *Report) String() string {
	switch r.Outcome {
	case OutcomeNoData:
		return fmt.Sprintf("%s No Data to Push.", r.Collector)
	case OutcomeSuccess:
		return fmt.Sprintf("%s Push success. [%d]", r.Collector, r.Count)
	case OutcomePartialFailure:
		return fmt.Sprintf("%s Push failed. [%d] failed items=[%d]", r.Collector, r.Count, r.FailedItems)
	case OutcomeFailure:
		if r.Status == 0 {
			return fmt.Sprintf("%s Push failed. [%s]", r.Collector, r.Message)
		}
		return fmt.Sprintf("%s Push failed. [Http Error Code(%d)]", r.Collector, r.Status)
	default:
		return fmt.Sprintf("%s Error %s", r.Collector, r.Message)
	}
}

// Run executes one collection for env. It never panics: anything unexpected ends up as OutcomeError.
func (p *Pipeline) Run(ctx context.Context, env string) (report Report) {
	begin := time.Now()
	report = Report{
		RunId:     uuid.NewString(),
		Collector: p.Collector.Name(),
		Env:       env,
	}

	util.WithRecover(func() {
		p.run(ctx, env, &report)
	}, func(r interface{}, stack []byte) {
		report.Outcome = OutcomeError
		report.Message = fmt.Sprintf("%v", r)
		logger.Errorz("[pipeline] panic", zap.String("run", report.RunId), zap.Any("panic", r), zap.ByteString("stack", stack))
	})

	report.Cost = time.Since(begin)
	p.log(&report)
	return report
}

func (p *Pipeline) run(ctx context.Context, env string, report *Report) {
	host, err := p.ResolveHost()
	if err != nil {
		report.Outcome = OutcomeError
		report.Message = err.Error()
		return
	}

	rt, err := p.NewRuntime(host)
	if err != nil {
		report.Outcome = OutcomeError
		report.Message = err.Error()
		return
	}
	ids := rt.ListContainers(ctx)
	report.Containers = len(ids)
	if len(ids) == 0 {
		report.Outcome = OutcomeNoData
		return
	}

	docs := p.Collector.Collect(ctx, rt, host, ids)
	if len(docs) == 0 {
		report.Outcome = OutcomeNoData
		return
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	report.Index = store.IndexName(p.Collector.Family(), env, now())
	report.Ensure = p.Store.EnsureIndex(ctx, report.Index, p.Collector.Mapping())

	pr := p.Store.Push(ctx, report.Index, docs)
	report.Count = pr.Count
	switch {
	case pr.Result.OK() && pr.Response != nil && pr.Response.Errors:
		report.Outcome = OutcomePartialFailure
		report.FailedItems = pr.Response.FailedItems()
		report.Status = pr.Result.Status
	case pr.Result.OK():
		report.Outcome = OutcomeSuccess
		report.Status = pr.Result.Status
	case pr.Result != nil && pr.Result.Err != nil && pr.Result.Status/100 == 2:
		// the store answered but the answer could not be read
		report.Outcome = OutcomeError
		report.Status = pr.Result.Status
		report.Message = pr.Result.Err.Error()
	default:
		report.Outcome = OutcomeFailure
		if pr.Result != nil {
			report.Status = pr.Result.Status
			if pr.Result.Err != nil {
				report.Message = pr.Result.Err.Error()
			}
		}
	}
}

func (p *Pipeline) log(r *Report) {
	fields := []zap.Field{
		zap.String("run", r.RunId),
		zap.String("env", r.Env),
		zap.String("index", r.Index),
		zap.Stringer("outcome", r.Outcome),
		zap.Int("containers", r.Containers),
		zap.Int("count", r.Count),
		zap.Duration("cost", r.Cost),
	}
	if r.Ok() {
		logger.Infoz(r.String(), fields...)
	} else {
		logger.Errorz(r.String(), fields...)
	}
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package bootstrap wires config, fetcher, runtime, store and pipeline for the collector binaries.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/traas-stack/holoinsight-collector/pkg/appconfig"
	"github.com/traas-stack/holoinsight-collector/pkg/collector"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/pipeline"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/zap"
)

const (
	ExitOk    = 0
	ExitFail  = 1
	ExitUsage = 2
)

type (
	// Deps are the shared pieces a collector is built from.
	Deps struct {
		Config   *appconfig.CollectorConfig
		Fetcher  *httpfetch.Fetcher
		Timeouts appconfig.Timeouts
	}
	CollectorFactory func(deps Deps) collector.Collector

	// CollectorApp is one collector binary.
	CollectorApp struct {
		Name string
		// Collector is the name reported in logs, e.g. getDockerInfo.
		Collector string
		// Timeouts picks the timeout section of this binary and its defaults.
		Timeouts func(c *appconfig.CollectorConfig) appconfig.Timeouts
		Build    CollectorFactory
		// Load defaults to appconfig.SetupAppConfig.
		Load func() (*appconfig.CollectorConfig, error)
		// ResolveHost defaults to util.ResolveHostIdentity with the configured dial address.
		ResolveHost pipeline.HostResolver
		Usage       io.Writer
	}
)

func ContainerStatsApp() *CollectorApp {
	return &CollectorApp{
		Name:      "dockerstats",
		Collector: "getDockerInfo",
		Timeouts: func(c *appconfig.CollectorConfig) appconfig.Timeouts {
			return c.DockerStats.Resolve(appconfig.DockerStatsTimeouts)
		},
		Build: func(deps Deps) collector.Collector {
			return &collector.ContainerStatsCollector{
				Concurrency: deps.Config.Fetch.Concurrency,
			}
		},
	}
}

func JvmApp() *CollectorApp {
	return &CollectorApp{
		Name:      "jvmstats",
		Collector: "getJmxInfo",
		Timeouts: func(c *appconfig.CollectorConfig) appconfig.Timeouts {
			return c.JvmStats.Resolve(appconfig.JvmStatsTimeouts)
		},
		Build: func(deps Deps) collector.Collector {
			return &collector.JvmCollector{
				Fetcher:     deps.Fetcher,
				Timeout:     deps.Timeouts.Metrics,
				Concurrency: deps.Config.Fetch.Concurrency,
			}
		},
	}
}

func loadStdConfig() (*appconfig.CollectorConfig, error) {
	if err := appconfig.SetupAppConfig(); err != nil {
		return nil, err
	}
	c := appconfig.StdCollectorConfig
	return &c, nil
}

// Main runs one collection and returns the process exit code.
func (a *CollectorApp) Main(ctx context.Context, args []string) int {
	env, err := pipeline.ParseArgs(args)
	if err != nil {
		logger.Errorz(a.Collector+" parameter error", zap.Strings("args", args))
		usage := a.Usage
		if usage == nil {
			usage = os.Stderr
		}
		fmt.Fprintf(usage, "%v\nusage: %s <%s>\n", err, a.Name, strings.Join(pipeline.Environments, "|"))
		return ExitUsage
	}

	load := a.Load
	if load == nil {
		load = loadStdConfig
	}
	cfg, err := load()
	if err != nil {
		logger.Errorz("[bootstrap] load config error", zap.Error(err))
		return ExitFail
	}
	if cfg.Log.Debug {
		logger.DebugEnabled = true
	}
	logger.Debugz("[bootstrap] config", zap.Any("config", cfg))

	p, err := a.NewPipeline(cfg)
	if err != nil {
		logger.Errorz("[bootstrap] init pipeline error", zap.Error(err))
		return ExitFail
	}
	report := p.Run(ctx, env)
	if !report.Ok() {
		return ExitFail
	}
	return ExitOk
}

// NewPipeline builds the pipeline of this app from cfg.
func (a *CollectorApp) NewPipeline(cfg *appconfig.CollectorConfig) (*pipeline.Pipeline, error) {
	timeouts := a.Timeouts(cfg)
	fetcher := httpfetch.New(httpfetch.WithRateLimit(cfg.Fetch.Rps))

	resolve := a.ResolveHost
	if resolve == nil {
		dialAddr := cfg.HostDialAddr
		resolve = func() (util.HostIdentity, error) {
			return util.ResolveHostIdentity(dialAddr)
		}
	}

	st, err := store.New(cfg.Store.Addr, fetcher, store.Timeouts{Head: timeouts.Head, Write: timeouts.Write})
	if err != nil {
		return nil, err
	}

	return &pipeline.Pipeline{
		Collector: a.Build(Deps{Config: cfg, Fetcher: fetcher, Timeouts: timeouts}),
		Store:     st,
		NewRuntime: func(host util.HostIdentity) (*runtime.Client, error) {
			return runtime.NewClient(runtime.DockerHost(cfg.Docker.Addr, host.Ip, cfg.Docker.Port), fetcher.HttpClient(), timeouts.Runtime)
		},
		ResolveHost: resolve,
	}, nil
}

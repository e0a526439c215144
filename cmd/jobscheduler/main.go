/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/oklog/run"
	"github.com/traas-stack/holoinsight-collector/pkg/appconfig"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/scheduler"
	"go.uber.org/zap"
)

// jobscheduler entry
func main() {
	if err := bootstrap(); err != nil {
		fmt.Printf("bootstrap error %+v\n", err)
		os.Exit(1)
	}
}

func bootstrap() error {
	if err := appconfig.SetupAppConfig(); err != nil {
		return err
	}
	cfg := &appconfig.StdCollectorConfig
	if cfg.Log.Debug {
		logger.DebugEnabled = true
	}

	jobs, err := scheduler.LoadJobs(cfg.Scheduler.Jobs)
	if err != nil {
		return err
	}
	logger.Infoz("[bootstrap] jobs", zap.Int("Job_Num", len(jobs)))
	for _, job := range jobs {
		logger.Infoz("[bootstrap] job", zap.Stringer("job", job))
	}

	s := scheduler.New(jobs, scheduler.WithMisfireGrace(cfg.Scheduler.MisfireGraceDuration()))

	var g run.Group
	{
		ctx, cancel := context.WithCancel(context.Background())
		g.Add(func() error {
			return s.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		signals := make(chan os.Signal, 1)
		done := make(chan struct{})
		g.Add(func() error {
			signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
			select {
			case sig := <-signals:
				logger.Infoz("[bootstrap] receive signal, stop", zap.String("signal", sig.String()))
			case <-done:
			}
			return nil
		}, func(error) {
			signal.Stop(signals)
			close(done)
		})
	}

	return g.Run()
}

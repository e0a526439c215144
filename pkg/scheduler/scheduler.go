/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package scheduler runs shell commands on interval triggers.
package scheduler

import (
	"bufio"
	"bytes"
	"context"
	"os/exec"
	"sync"
	"time"

	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/zap"
)

const DefaultMisfireGrace = time.Hour

type (
	// Executor runs command and returns its combined output.
	Executor func(ctx context.Context, command string) ([]byte, error)

	Scheduler struct {
		jobs         []*Job
		misfireGrace time.Duration
		exec         Executor
	}
	Option func(*Scheduler)
)

func WithExecutor(e Executor) Option {
	return func(s *Scheduler) {
		s.exec = e
	}
}

func WithMisfireGrace(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.misfireGrace = d
		}
	}
}

// ShellExecutor runs command with sh -c.
func ShellExecutor(ctx context.Context, command string) ([]byte, error) {
	return exec.CommandContext(ctx, "sh", "-c", command).CombinedOutput()
}

func New(jobs []*Job, opts ...Option) *Scheduler {
	s := &Scheduler{
		jobs:         jobs,
		misfireGrace: DefaultMisfireGrace,
		exec:         ShellExecutor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run blocks until ctx is done, even when there are no jobs or every trigger is exhausted.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job *Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}
	wg.Wait()
	<-ctx.Done()
	return ctx.Err()
}

func (s *Scheduler) loop(ctx context.Context, job *Job) {
	next := job.Trigger.Next(time.Now())
	for !next.IsZero() {
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if late := time.Since(next); late > s.misfireGrace {
			logger.Warnz("[scheduler] misfire, skip", zap.String("job", job.Name), zap.Time("scheduled", next), zap.Duration("late", late))
		} else {
			s.runOnce(ctx, job)
		}

		// Fires missed while the job was running are coalesced into the next one.
		after := time.Now()
		if !after.After(next) {
			after = next.Add(time.Nanosecond)
		}
		next = job.Trigger.Next(after)
	}
	logger.Infoz("[scheduler] trigger exhausted", zap.String("job", job.Name))
}

func (s *Scheduler) runOnce(ctx context.Context, job *Job) {
	util.WithRecover(func() {
		begin := time.Now()
		out, err := s.exec(ctx, job.Command)

		scanner := bufio.NewScanner(bytes.NewReader(out))
		for scanner.Scan() {
			logger.Infof("[job] %s [%s] %s", job.Name, job.Command, scanner.Text())
		}

		if err != nil {
			logger.Errorz("[scheduler] job failed", zap.String("job", job.Name), zap.Duration("cost", time.Since(begin)), zap.Error(err))
			return
		}
		logger.Debugz("[scheduler] job done", zap.String("job", job.Name), zap.Duration("cost", time.Since(begin)))
	}, func(p interface{}, stack []byte) {
		logger.Errorz("[scheduler] job panic", zap.String("job", job.Name), zap.Any("panic", p), zap.ByteString("stack", stack))
	})
}

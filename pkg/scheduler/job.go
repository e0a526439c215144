/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package scheduler

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-collector/pkg/appconfig"
	"github.com/traas-stack/holoinsight-collector/pkg/util/trigger"
	"go.uber.org/multierr"
)

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

type (
	Job struct {
		Name     string
		Command  string
		Interval time.Duration
		Trigger  trigger.Trigger
	}
)

func (j *Job) String() string {
	return fmt.Sprintf("%s every %s: %s", j.Name, j.Interval, j.Command)
}

// LoadJobs validates cfgs and builds their jobs. All problems are reported at once.
func LoadJobs(cfgs []appconfig.JobConfig) ([]*Job, error) {
	var err error
	names := make(map[string]struct{}, len(cfgs))
	jobs := make([]*Job, 0, len(cfgs))

	for i := range cfgs {
		cfg := &cfgs[i]
		job, jobErr := loadJob(cfg)
		if cfg.Name != "" {
			if _, exist := names[cfg.Name]; exist {
				jobErr = multierr.Append(jobErr, errors.Errorf("job %s: duplicated name", cfg.Name))
			}
			names[cfg.Name] = struct{}{}
		}
		if jobErr != nil {
			err = multierr.Append(err, jobErr)
			continue
		}
		jobs = append(jobs, job)
	}
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func loadJob(cfg *appconfig.JobConfig) (*Job, error) {
	var err error
	label := cfg.Name
	if label == "" {
		label = "<unnamed>"
		err = multierr.Append(err, errors.New("job name is empty"))
	}
	if cfg.Command == "" {
		err = multierr.Append(err, errors.Errorf("job %s: command is empty", label))
	}

	interval := Interval(cfg.Trigger)
	if interval <= 0 {
		err = multierr.Append(err, errors.Errorf("job %s: interval must be positive", label))
	}

	loc := time.Local
	if cfg.Trigger.Timezone != "" {
		l, tzErr := time.LoadLocation(cfg.Trigger.Timezone)
		if tzErr != nil {
			err = multierr.Append(err, errors.Wrapf(tzErr, "job %s: bad timezone", label))
		} else {
			loc = l
		}
	}

	start, startErr := parseDate(cfg.Trigger.StartDate, loc)
	if startErr != nil {
		err = multierr.Append(err, errors.Wrapf(startErr, "job %s: bad start date", label))
	}
	end, endErr := parseDate(cfg.Trigger.EndDate, loc)
	if endErr != nil {
		err = multierr.Append(err, errors.Wrapf(endErr, "job %s: bad end date", label))
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		err = multierr.Append(err, errors.Errorf("job %s: end date is before start date", label))
	}

	if err != nil {
		return nil, err
	}
	return &Job{
		Name:     cfg.Name,
		Command:  cfg.Command,
		Interval: interval,
		Trigger:  trigger.WithInterval(interval, start, end),
	}, nil
}

// Interval sums the duration fields of t.
func Interval(t appconfig.TriggerConfig) time.Duration {
	return time.Duration(t.Weeks)*7*24*time.Hour +
		time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("unsupported date %q", s)
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package appconfig is the process level configuration. It comes first in the init order, do not depend on business packages.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"gopkg.in/yaml.v3"
)

const (
	configName         = "collector"
	defaultStoreAddr   = "http://127.0.0.1:9200"
	defaultDockerPort  = 2375
	defaultConcurrency = 32
	defaultMisfire     = time.Hour
)

var (
	StdCollectorConfig = CollectorConfig{}
)

type (
	CollectorConfig struct {
		Store        StoreConfig     `json:"store" yaml:"store" toml:"store"`
		Docker       DockerConfig    `json:"docker" yaml:"docker" toml:"docker"`
		HostDialAddr string          `json:"hostDialAddr" yaml:"hostDialAddr" toml:"hostDialAddr"`
		Fetch        FetchConfig     `json:"fetch" yaml:"fetch" toml:"fetch"`
		DockerStats  TimeoutConfig   `json:"dockerStats" yaml:"dockerStats" toml:"dockerStats"`
		JvmStats     TimeoutConfig   `json:"jvmStats" yaml:"jvmStats" toml:"jvmStats"`
		Scheduler    SchedulerConfig `json:"scheduler" yaml:"scheduler" toml:"scheduler"`
		Log          LogConfig       `json:"log" yaml:"log" toml:"log"`
	}
	StoreConfig struct {
		Addr string `json:"addr" yaml:"addr" toml:"addr"`
	}
	DockerConfig struct {
		// Addr overrides http://{host ip}:{port}
		Addr string `json:"addr,omitempty" yaml:"addr" toml:"addr"`
		Port int    `json:"port" yaml:"port" toml:"port"`
	}
	FetchConfig struct {
		// Rps paces outgoing requests, 0 means unlimited
		Rps         int `json:"rps" yaml:"rps" toml:"rps"`
		Concurrency int `json:"concurrency" yaml:"concurrency" toml:"concurrency"`
	}
	// TimeoutConfig holds per call type timeouts, e.g. "10s" or milliseconds.
	TimeoutConfig struct {
		Runtime string `json:"runtime,omitempty" yaml:"runtime" toml:"runtime"`
		Metrics string `json:"metrics,omitempty" yaml:"metrics" toml:"metrics"`
		Head    string `json:"head,omitempty" yaml:"head" toml:"head"`
		Write   string `json:"write,omitempty" yaml:"write" toml:"write"`
	}
	// Timeouts are resolved TimeoutConfig values.
	Timeouts struct {
		Runtime time.Duration
		Metrics time.Duration
		Head    time.Duration
		Write   time.Duration
	}
	SchedulerConfig struct {
		MisfireGrace string      `json:"misfireGrace,omitempty" yaml:"misfireGrace" toml:"misfireGrace"`
		Jobs         []JobConfig `json:"jobs" yaml:"jobs" toml:"jobs"`
	}
	JobConfig struct {
		Name    string        `json:"name" yaml:"name" toml:"name"`
		Command string        `json:"command" yaml:"command" toml:"command"`
		Trigger TriggerConfig `json:"trigger" yaml:"trigger" toml:"trigger"`
	}
	TriggerConfig struct {
		Weeks     int    `json:"weeks,omitempty" yaml:"weeks" toml:"weeks"`
		Days      int    `json:"days,omitempty" yaml:"days" toml:"days"`
		Hours     int    `json:"hours,omitempty" yaml:"hours" toml:"hours"`
		Minutes   int    `json:"minutes,omitempty" yaml:"minutes" toml:"minutes"`
		Seconds   int    `json:"seconds,omitempty" yaml:"seconds" toml:"seconds"`
		StartDate string `json:"startDate,omitempty" yaml:"startDate" toml:"startDate"`
		EndDate   string `json:"endDate,omitempty" yaml:"endDate" toml:"endDate"`
		Timezone  string `json:"timezone,omitempty" yaml:"timezone" toml:"timezone"`
	}
	LogConfig struct {
		Debug bool `json:"debug" yaml:"debug" toml:"debug"`
	}
)

// Default timeouts of the two collectors.
var (
	DockerStatsTimeouts = Timeouts{Runtime: 10 * time.Second, Metrics: 10 * time.Second, Head: 5 * time.Second, Write: 10 * time.Second}
	JvmStatsTimeouts    = Timeouts{Runtime: 15 * time.Second, Metrics: 15 * time.Second, Head: 2 * time.Second, Write: 15 * time.Second}
)

// SetupAppConfig loads StdCollectorConfig from the working directory.
func SetupAppConfig() error {
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	c, err := Load(wd)
	if err != nil {
		return err
	}
	StdCollectorConfig = *c
	return nil
}

// Load reads collector.yaml then collector.toml from dir or dir/conf, applies env overrides and defaults.
// Missing files are fine, a file that fails to parse is an error.
func Load(dir string) (*CollectorConfig, error) {
	c := &CollectorConfig{}

	if b, path, err := readFirst(dir, configName+".yaml"); err == nil {
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, errors.Wrapf(err, "fail to parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if b, path, err := readFirst(dir, configName+".toml"); err == nil {
		if err := toml.Unmarshal(b, c); err != nil {
			return nil, errors.Wrapf(err, "fail to parse %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	c.applyDefaults()
	return c, nil
}

func readFirst(dir, name string) ([]byte, string, error) {
	path := filepath.Join(dir, name)
	b, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		path = filepath.Join(dir, "conf", name)
		b, err = os.ReadFile(path)
	}
	return b, path, err
}

func (c *CollectorConfig) applyEnv() error {
	if s := os.Getenv("ES_URL"); s != "" {
		c.Store.Addr = s
	}
	if s := os.Getenv("DOCKER_ADDR"); s != "" {
		c.Docker.Addr = s
	}
	if s := os.Getenv("DOCKER_PORT"); s != "" {
		port, err := cast.ToIntE(s)
		if err != nil {
			return fmt.Errorf("invalid DOCKER_PORT %q", s)
		}
		c.Docker.Port = port
	}
	if s := os.Getenv("HOST_DIAL_ADDR"); s != "" {
		c.HostDialAddr = s
	}
	if s := os.Getenv("FETCH_RPS"); s != "" {
		c.Fetch.Rps = cast.ToInt(s)
	}
	if s := os.Getenv("FETCH_CONCURRENCY"); s != "" {
		c.Fetch.Concurrency = cast.ToInt(s)
	}
	if s := os.Getenv("DEBUG"); s != "" {
		c.Log.Debug = cast.ToBool(s)
	}
	return nil
}

func (c *CollectorConfig) applyDefaults() {
	if c.Store.Addr == "" {
		c.Store.Addr = defaultStoreAddr
	}
	if c.Docker.Port <= 0 {
		c.Docker.Port = defaultDockerPort
	}
	if c.HostDialAddr == "" {
		c.HostDialAddr = util.DefaultDialAddr
	}
	if c.Fetch.Concurrency <= 0 {
		c.Fetch.Concurrency = defaultConcurrency
	}
}

// Resolve fills unset or invalid entries from def.
func (t TimeoutConfig) Resolve(def Timeouts) Timeouts {
	return Timeouts{
		Runtime: util.ParseDurationDefault(t.Runtime, def.Runtime),
		Metrics: util.ParseDurationDefault(t.Metrics, def.Metrics),
		Head:    util.ParseDurationDefault(t.Head, def.Head),
		Write:   util.ParseDurationDefault(t.Write, def.Write),
	}
}

func (c *SchedulerConfig) MisfireGraceDuration() time.Duration {
	return util.ParseDurationDefault(c.MisfireGrace, defaultMisfire)
}

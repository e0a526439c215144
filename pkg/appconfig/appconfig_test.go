/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package appconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"ES_URL", "DOCKER_ADDR", "DOCKER_PORT", "HOST_DIAL_ADDR", "FETCH_RPS", "FETCH_CONCURRENCY", "DEBUG"} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9200", c.Store.Addr)
	assert.Equal(t, 2375, c.Docker.Port)
	assert.Equal(t, "8.8.8.8:80", c.HostDialAddr)
	assert.Equal(t, 32, c.Fetch.Concurrency)
	assert.Equal(t, time.Hour, c.Scheduler.MisfireGraceDuration())
	assert.Equal(t, DockerStatsTimeouts, c.DockerStats.Resolve(DockerStatsTimeouts))
	assert.Equal(t, JvmStatsTimeouts, c.JvmStats.Resolve(JvmStatsTimeouts))
}

func TestLoadYaml(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conf"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf", "collector.yaml"), []byte(`
store:
  addr: http://es:9200
docker:
  port: 2376
fetch:
  rps: 50
dockerStats:
  head: 1s
  write: "3000"
scheduler:
  misfireGrace: 10m
  jobs:
    - name: docker
      command: /app/dockerstats sit
      trigger:
        minutes: 1
    - name: jvm
      command: /app/jvmstats sit
      trigger:
        seconds: 30
        startDate: "2024-03-01 00:00:00"
        timezone: Asia/Shanghai
`), 0644))

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://es:9200", c.Store.Addr)
	assert.Equal(t, 2376, c.Docker.Port)
	assert.Equal(t, 50, c.Fetch.Rps)
	assert.Equal(t, 10*time.Minute, c.Scheduler.MisfireGraceDuration())

	timeouts := c.DockerStats.Resolve(DockerStatsTimeouts)
	assert.Equal(t, time.Second, timeouts.Head)
	assert.Equal(t, 3*time.Second, timeouts.Write)
	assert.Equal(t, 10*time.Second, timeouts.Runtime)

	require.Len(t, c.Scheduler.Jobs, 2)
	assert.Equal(t, JobConfig{Name: "docker", Command: "/app/dockerstats sit", Trigger: TriggerConfig{Minutes: 1}}, c.Scheduler.Jobs[0])
	assert.Equal(t, "Asia/Shanghai", c.Scheduler.Jobs[1].Trigger.Timezone)
	assert.Equal(t, "2024-03-01 00:00:00", c.Scheduler.Jobs[1].Trigger.StartDate)
}

func TestLoadTomlAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "collector.toml"), []byte(`
hostDialAddr = "10.0.0.254:53"

[store]
addr = "http://toml:9200"

[[scheduler.jobs]]
name = "docker"
command = "/app/dockerstats pro"
[scheduler.jobs.trigger]
minutes = 5
`), 0644))
	t.Setenv("DOCKER_PORT", "12375")
	t.Setenv("DEBUG", "true")

	c, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://toml:9200", c.Store.Addr)
	assert.Equal(t, "10.0.0.254:53", c.HostDialAddr)
	assert.Equal(t, 12375, c.Docker.Port)
	assert.True(t, c.Log.Debug)
	require.Len(t, c.Scheduler.Jobs, 1)
	assert.Equal(t, 5, c.Scheduler.Jobs[0].Trigger.Minutes)

	t.Setenv("ES_URL", "http://env:9200")
	c, err = Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://env:9200", c.Store.Addr)
}

func TestLoadErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "collector.yaml"), []byte("store: [1, 2"), 0644))
	_, err := Load(dir)
	assert.Error(t, err)

	t.Setenv("DOCKER_PORT", "abc")
	_, err = Load(t.TempDir())
	assert.Error(t, err)
}

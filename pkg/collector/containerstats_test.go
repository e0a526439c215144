/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime/runtimetest"
)

func newRuntime(t *testing.T, e *runtimetest.Engine) *runtime.Client {
	rt, err := runtime.NewClient(e.Host(), httpfetch.New().HttpClient(), time.Second)
	require.NoError(t, err)
	return rt
}

func TestContainerStatsCollector(t *testing.T) {
	e := runtimetest.NewEngine(
		&runtimetest.Container{
			Id:    "api",
			Env:   []string{"MARATHON_APP_ID=/shop/api", "LIBPROCESS_IP=10.0.0.9", "PORT0=31000", "MARATHON_APP_RESOURCE_CPUS=2", "MARATHON_APP_RESOURCE_MEM=1024"},
			Stats: runtimetest.StatsBody(1100, 1000, 10400, 10000, 4, 256, 1024),
		},
		&runtimetest.Container{
			Id:        "job",
			Env:       []string{"MESOS_CONTAINER_NAME=mesos-7", "LIBPROCESS_IP=10.0.0.9"},
			CpuShares: 0,
			Memory:    256 * 1024 * 1024,
			Stats:     runtimetest.StatsBody(5, 5, 100, 50, 2, 0, 1024),
		},
		// no identity
		&runtimetest.Container{Id: "infra", Env: []string{"PATH=/bin"}, Stats: runtimetest.StatsBody(1, 0, 1, 0, 1, 1, 1)},
		// stats missing
		&runtimetest.Container{Id: "gone", Env: []string{"MARATHON_APP_ID=/gone", "LIBPROCESS_IP=10.0.0.9"}},
		// inspect failed
		&runtimetest.Container{Id: "broken", InspectStatus: http.StatusInternalServerError},
	)
	defer e.Close()

	c := &ContainerStatsCollector{Concurrency: 2}
	ids := []string{"api", "job", "infra", "gone", "broken"}
	docs := c.Collect(context.Background(), newRuntime(t, e), testHost, ids)
	require.Len(t, docs, 2)

	api := docs[0].(*ContainerDoc)
	assert.Equal(t, "/shop/api", api.ServiceName)
	assert.Equal(t, "node-1", api.Host)
	assert.Equal(t, "10.0.0.1", api.HostIp)
	assert.Equal(t, "10.0.0.9_31000", api.HostPort)
	assert.Equal(t, 2.0, api.CpuLimit)
	assert.Equal(t, "1GB", api.MemLimit)
	assert.Equal(t, 100.0, api.CpuUsage)
	assert.Equal(t, 25.0, api.MemUsage)
	assert.Equal(t, 50.0, api.PerCpuUsage)
	assert.NotZero(t, api.Timestamp)

	job := docs[1].(*ContainerDoc)
	assert.Equal(t, "mesos-7", job.ServiceName)
	assert.Equal(t, "10.0.0.9_None", job.HostPort)
	assert.Equal(t, 0.0, job.CpuLimit)
	assert.Equal(t, "256MB", job.MemLimit)
	assert.Equal(t, 0.0, job.CpuUsage)
	assert.Equal(t, 0.0, job.MemUsage)
	assert.Equal(t, 0.0, job.PerCpuUsage)

	// stats are only read for enriched containers
	requests := e.Requests()
	assert.NotContains(t, requests, "/containers/infra/stats?stream=0")
	assert.NotContains(t, requests, "/containers/broken/stats?stream=0")
	assert.Contains(t, requests, "/containers/gone/stats?stream=0")
}

func TestContainerStatsCollectorEmpty(t *testing.T) {
	e := runtimetest.NewEngine()
	defer e.Close()

	c := &ContainerStatsCollector{}
	rt := newRuntime(t, e)
	assert.Empty(t, c.Collect(context.Background(), rt, testHost, nil))
	assert.Equal(t, []string{"/_ping"}, e.Requests())
}

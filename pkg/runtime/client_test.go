/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package runtime

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime/runtimetest"
)

func TestDockerHost(t *testing.T) {
	assert.Equal(t, "tcp://10.0.0.1:2375", DockerHost("", "10.0.0.1", 0))
	assert.Equal(t, "tcp://10.0.0.1:2376", DockerHost("", "10.0.0.1", 2376))
	assert.Equal(t, "tcp://docker:2375", DockerHost("http://docker:2375/", "10.0.0.1", 0))
	assert.Equal(t, "unix:///var/run/docker.sock", DockerHost("unix:///var/run/docker.sock", "10.0.0.1", 0))
}

func newClient(t *testing.T, e *runtimetest.Engine) *Client {
	c, err := NewClient(e.Host(), httpfetch.New().HttpClient(), time.Second)
	require.NoError(t, err)
	return c
}

func TestClient(t *testing.T) {
	e := runtimetest.NewEngine(
		&runtimetest.Container{
			Id:        "c1",
			Env:       []string{"A=1", "B=x=y"},
			CpuShares: 2048,
			Memory:    512 * 1024 * 1024,
			Stats:     runtimetest.StatsBody(200, 100, 2000, 1000, 4, 50, 100),
		},
		&runtimetest.Container{Id: "c2", InspectStatus: http.StatusInternalServerError},
	)
	defer e.Close()

	c := newClient(t, e)
	ctx := context.Background()

	assert.Equal(t, []string{"c1", "c2"}, c.ListContainers(ctx))

	detail, ok := c.Inspect(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, "c1", detail.ID)
	assert.Equal(t, []string{"A=1", "B=x=y"}, Env(detail))
	shares, mem := HostResources(detail)
	assert.Equal(t, int64(2048), shares)
	assert.Equal(t, int64(512*1024*1024), mem)

	_, ok = c.Inspect(ctx, "c2")
	assert.False(t, ok)

	stats, ok := c.Stats(ctx, "c1")
	require.True(t, ok)
	assert.Equal(t, uint64(200), stats.CPUStats.CPUUsage.TotalUsage)
	assert.Equal(t, uint64(100), stats.PreCPUStats.CPUUsage.TotalUsage)
	assert.Equal(t, uint64(2000), stats.CPUStats.SystemUsage)
	assert.Equal(t, uint32(4), stats.CPUStats.OnlineCPUs)
	assert.Equal(t, uint64(100), stats.MemoryStats.Limit)

	_, ok = c.Stats(ctx, "c2")
	assert.False(t, ok)

	assert.Contains(t, e.Requests(), "/containers/c1/stats?stream=0")
	assert.Contains(t, e.Requests(), "/_ping")
}

func TestNewClientBadHost(t *testing.T) {
	_, err := NewClient("docker-without-scheme", httpfetch.New().HttpClient(), time.Second)
	assert.Error(t, err)
}

func TestEngineDown(t *testing.T) {
	e := runtimetest.NewEngine(&runtimetest.Container{Id: "c1"})
	host := e.Host()
	e.Close()

	c, err := NewClient(host, httpfetch.New().HttpClient(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, c.ListContainers(context.Background()))
	_, ok := c.Inspect(context.Background(), "c1")
	assert.False(t, ok)
}

func TestListContainersNon2xx(t *testing.T) {
	e := runtimetest.NewEngine(&runtimetest.Container{Id: "c1"})
	defer e.Close()
	e.SetListStatus(http.StatusServiceUnavailable)

	c := newClient(t, e)
	assert.Empty(t, c.ListContainers(context.Background()))
}

func TestHelpersOnNil(t *testing.T) {
	assert.Nil(t, Env(nil))
	shares, mem := HostResources(nil)
	assert.Zero(t, shares)
	assert.Zero(t, mem)
}

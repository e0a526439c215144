/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package runtime reads containers from the docker engine api.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	dockersdk "github.com/docker/docker/client"
	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"go.uber.org/zap"
)

const (
	DefaultPort    = 2375
	defaultTimeout = 10 * time.Second
)

type (
	// Client wraps the docker sdk client. Every method degrades to "absent" on any failure.
	Client struct {
		Host    string
		Timeout time.Duration
		docker  *dockersdk.Client
	}
)

// DockerHost builds the engine address. addr wins when it is set; otherwise tcp://{ip}:{port}.
// An http:// addr is accepted and rewritten to tcp://.
func DockerHost(addr, ip string, port int) string {
	if addr != "" {
		addr = strings.TrimRight(addr, "/")
		if strings.HasPrefix(addr, "http://") {
			addr = "tcp://" + strings.TrimPrefix(addr, "http://")
		}
		return addr
	}
	if port <= 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("tcp://%s:%d", ip, port)
}

// NewClient builds a docker client for host over httpClient and negotiates the api version.
// A failed ping is only logged, later calls then fail on their own.
func NewClient(host string, httpClient *http.Client, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	docker, err := dockersdk.NewClientWithOpts(dockersdk.WithHost(host), dockersdk.WithHTTPClient(httpClient))
	if err != nil {
		return nil, errors.Wrapf(err, "create docker client for %s", host)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if ping, err := docker.Ping(ctx); err == nil {
		docker.NegotiateAPIVersionPing(ping)
		logger.Debugz("[runtime] ping", zap.String("host", host), zap.String("version", docker.ClientVersion()))
	} else {
		logger.Warnz("[runtime] ping error", zap.String("host", host), zap.Error(err))
	}

	return &Client{
		Host:    host,
		Timeout: timeout,
		docker:  docker,
	}, nil
}

// ListContainers returns the ids of running containers. Any failure yields an empty list.
func (c *Client) ListContainers(ctx context.Context) []string {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	containers, err := c.docker.ContainerList(ctx, types.ContainerListOptions{})
	if err != nil {
		logger.Errorz("[runtime] list containers error", zap.String("host", c.Host), zap.Error(err))
		return nil
	}
	ids := make([]string, 0, len(containers))
	for i := range containers {
		if containers[i].ID != "" {
			ids = append(ids, containers[i].ID)
		}
	}
	return ids
}

// Inspect returns container details, or false when they could not be read.
func (c *Client) Inspect(ctx context.Context, id string) (*types.ContainerJSON, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	detail, err := c.docker.ContainerInspect(ctx, id)
	if err != nil {
		logger.Warnz("[runtime] inspect error", zap.String("cid", id), zap.Error(err))
		return nil, false
	}
	return &detail, true
}

// Stats returns a single stats snapshot (stream=0), or false when it could not be read.
func (c *Client) Stats(ctx context.Context, id string) (*types.StatsJSON, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := c.docker.ContainerStats(ctx, id, false)
	if err != nil {
		logger.Warnz("[runtime] stats error", zap.String("cid", id), zap.Error(err))
		return nil, false
	}
	defer resp.Body.Close()

	stats := &types.StatsJSON{}
	if err := json.NewDecoder(resp.Body).Decode(stats); err != nil {
		logger.Warnz("[runtime] decode stats error", zap.String("cid", id), zap.Error(err))
		return nil, false
	}
	return stats, true
}

// Env returns the environment entries of an inspected container.
func Env(detail *types.ContainerJSON) []string {
	if detail == nil || detail.Config == nil {
		return nil
	}
	return detail.Config.Env
}

// HostResources returns cpu shares and memory bytes from the host config, zero when absent.
func HostResources(detail *types.ContainerJSON) (cpuShares int64, memory int64) {
	if detail == nil || detail.ContainerJSONBase == nil || detail.HostConfig == nil {
		return 0, 0
	}
	return detail.HostConfig.CPUShares, detail.HostConfig.Memory
}

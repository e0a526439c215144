/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"context"

	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const ContainerFamily = "container"

type (
	ContainerDoc struct {
		Timestamp   int64   `json:"@timestamp"`
		ServiceName string  `json:"service_name"`
		Host        string  `json:"host"`
		HostIp      string  `json:"host_ip"`
		HostPort    string  `json:"host_port"`
		CpuLimit    float64 `json:"cpu_limit"`
		MemLimit    string  `json:"mem_limit"`
		CpuUsage    float64 `json:"cpu_usage"`
		MemUsage    float64 `json:"mem_usage"`
		PerCpuUsage float64 `json:"per_cpu_usage"`
	}
	// ContainerStatsCollector reports cpu and memory usage of every marathon/mesos container.
	ContainerStatsCollector struct {
		Concurrency int
	}
	containerSlot struct {
		identity ContainerIdentity
		enriched bool
		doc      *ContainerDoc
		err      error
	}
)

func ContainerMapping() *store.Mapping {
	return store.NewMapping(
		store.DateField("@timestamp"),
		store.KeywordTextField("service_name"),
		store.KeywordTextField("host"),
		store.KeywordTextField("host_ip"),
		store.KeywordTextField("host_port"),
		store.FloatField("cpu_limit"),
		store.FloatField("cpu_usage"),
		store.FloatField("per_cpu_usage"),
		store.KeywordTextField("mem_limit"),
		store.FloatField("mem_usage"),
	)
}

func (c *ContainerStatsCollector) Name() string {
	return "getDockerInfo"
}

func (c *ContainerStatsCollector) Family() string {
	return ContainerFamily
}

func (c *ContainerStatsCollector) Mapping() *store.Mapping {
	return ContainerMapping()
}

func (c *ContainerStatsCollector) Collect(ctx context.Context, rt *runtime.Client, host util.HostIdentity, ids []string) []interface{} {
	slots := make([]containerSlot, len(ids))

	fanOut(ctx, len(ids), c.Concurrency, func(ctx context.Context, i int) {
		slot := &slots[i]
		detail, ok := rt.Inspect(ctx, ids[i])
		if !ok {
			slot.err = errors.Errorf("container %s: inspect unavailable", ids[i])
			return
		}
		slot.identity, slot.enriched = EnrichContainer(host, detail)
		if !slot.enriched {
			logger.Debugz("[collector] [container] no service identity, drop", zap.String("cid", ids[i]))
		}
	})

	// Limits are all known here, stats only run for enriched containers.
	fanOut(ctx, len(ids), c.Concurrency, func(ctx context.Context, i int) {
		slot := &slots[i]
		if !slot.enriched {
			return
		}
		stats, ok := rt.Stats(ctx, ids[i])
		if !ok {
			slot.err = errors.Errorf("container %s: stats unavailable", ids[i])
			return
		}
		id := slot.identity
		slot.doc = &ContainerDoc{
			Timestamp:   util.CurrentMS(),
			ServiceName: id.ServiceName,
			Host:        id.Host,
			HostIp:      id.HostIp,
			HostPort:    id.HostPort,
			CpuLimit:    id.CpuLimit,
			MemLimit:    id.MemLimit,
			CpuUsage: CalculateCpuPercent(
				stats.CPUStats.CPUUsage.TotalUsage,
				stats.PreCPUStats.CPUUsage.TotalUsage,
				stats.CPUStats.SystemUsage,
				stats.PreCPUStats.SystemUsage,
				stats.CPUStats.OnlineCPUs),
			MemUsage: CalculateMemPercent(stats.MemoryStats.Usage, stats.MemoryStats.Limit),
		}
	})

	docs := make([]interface{}, 0, len(ids))
	var errs []error
	for i := range slots {
		if slots[i].err != nil {
			errs = append(errs, slots[i].err)
		}
		if doc := slots[i].doc; doc != nil {
			doc.PerCpuUsage = PerCpuUsage(doc.CpuUsage, doc.CpuLimit)
			docs = append(docs, doc)
		}
	}
	logSummary(c.Name(), len(ids), len(docs), multierr.Combine(errs...))
	return docs
}

func logSummary(name string, containers, docs int, err error) {
	if err != nil {
		logger.Warnz("[collector] incomplete containers", //
			zap.String("collector", name),                    //
			zap.Int("incomplete", len(multierr.Errors(err))), //
			zap.Error(err))
	}
	logger.Infoz("[collector] collected", //
		zap.String("collector", name),     //
		zap.Int("containers", containers), //
		zap.Int("docs", docs))
}

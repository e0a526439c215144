/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	JvmFamily         = "service_jvm"
	jvmMetricsPath    = "/admin/metrics"
	defaultJvmTimeout = 15 * time.Second
)

type (
	JvmMetrics struct {
		MaximumHeap int64 `json:"Maximum_Heap"`
		HeapUsed    int64 `json:"Heap_Used"`
		NonHeap     int64 `json:"Non-Heap"`
		Threads     int64 `json:"Threads"`
	}
	JvmDoc struct {
		Timestamp   int64  `json:"@timestamp"`
		ServiceName string `json:"service_name"`
		Host        string `json:"host"`
		HostIp      string `json:"host_ip"`
		HostPort    string `json:"host_port"`
		JvmMetrics
	}
	// JvmCollector reports heap and thread metrics of java services exposing /admin/metrics.
	JvmCollector struct {
		Fetcher     *httpfetch.Fetcher
		Timeout     time.Duration
		Concurrency int
	}
	jvmSlot struct {
		target JvmTarget
		found  bool
		doc    *JvmDoc
		err    error
	}
)

func JvmMapping() *store.Mapping {
	return store.NewMapping(
		store.DateField("@timestamp"),
		store.KeywordTextField("service_name"),
		store.KeywordTextField("host"),
		store.KeywordTextField("host_ip"),
		store.KeywordTextField("host_port"),
		store.FloatField("Maximum_Heap"),
		store.FloatField("Heap_Used"),
		store.FloatField("Non-Heap"),
		store.FloatField("Threads"),
	)
}

func (c *JvmCollector) Name() string {
	return "getJmxInfo"
}

func (c *JvmCollector) Family() string {
	return JvmFamily
}

func (c *JvmCollector) Mapping() *store.Mapping {
	return JvmMapping()
}

func (c *JvmCollector) Collect(ctx context.Context, rt *runtime.Client, host util.HostIdentity, ids []string) []interface{} {
	slots := make([]jvmSlot, len(ids))

	fanOut(ctx, len(ids), c.Concurrency, func(ctx context.Context, i int) {
		slot := &slots[i]
		detail, ok := rt.Inspect(ctx, ids[i])
		if !ok {
			slot.err = errors.Errorf("container %s: inspect unavailable", ids[i])
			return
		}
		slot.target, slot.found = EnrichJvm(host, detail)
	})

	fanOut(ctx, len(ids), c.Concurrency, func(ctx context.Context, i int) {
		slot := &slots[i]
		if !slot.found {
			return
		}
		metrics, err := FetchJvmMetrics(ctx, c.Fetcher, slot.target.Endpoint, c.timeout())
		if err != nil {
			slot.err = errors.Wrapf(err, "container %s", ids[i])
			return
		}
		t := slot.target
		slot.doc = &JvmDoc{
			Timestamp:   util.CurrentMS(),
			ServiceName: t.ServiceName,
			Host:        t.Host,
			HostIp:      t.HostIp,
			HostPort:    t.HostPort,
			JvmMetrics:  metrics,
		}
	})

	docs := make([]interface{}, 0, len(ids))
	var errs []error
	for i := range slots {
		if slots[i].err != nil {
			errs = append(errs, slots[i].err)
		}
		if slots[i].doc != nil {
			docs = append(docs, slots[i].doc)
		}
	}
	logSummary(c.Name(), len(ids), len(docs), multierr.Combine(errs...))
	return docs
}

func (c *JvmCollector) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return defaultJvmTimeout
}

// FetchJvmMetrics reads {endpoint}/admin/metrics and rounds heap, nonheap and thread values to integers.
func FetchJvmMetrics(ctx context.Context, fetcher *httpfetch.Fetcher, endpoint string, timeout time.Duration) (JvmMetrics, error) {
	result := fetcher.Fetch(ctx, httpfetch.Request{
		Method:  http.MethodGet,
		URL:     strings.TrimRight(endpoint, "/") + jvmMetricsPath,
		Timeout: timeout,
	})
	if !result.OK() {
		return JvmMetrics{}, errors.Errorf("jvm metrics unavailable, %s", result)
	}

	raw := make(map[string]interface{})
	if err := json.Unmarshal([]byte(result.Text()), &raw); err != nil {
		return JvmMetrics{}, errors.Wrap(err, "decode jvm metrics")
	}

	var err error
	value := func(key string) int64 {
		v, ok := raw[key]
		if !ok {
			err = multierr.Append(err, errors.Errorf("missing %s", key))
			return 0
		}
		f, castErr := cast.ToFloat64E(v)
		if castErr != nil {
			err = multierr.Append(err, errors.Wrapf(castErr, "bad %s", key))
			return 0
		}
		return int64(math.Round(f))
	}
	m := JvmMetrics{
		MaximumHeap: value("heap"),
		HeapUsed:    value("heap.used"),
		NonHeap:     value("nonheap"),
		Threads:     value("threads"),
	}
	if err != nil {
		logger.Debugz("[collector] [jvm] bad metrics", zap.String("endpoint", endpoint), zap.Error(err))
		return JvmMetrics{}, err
	}
	return m, nil
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traas-stack/holoinsight-collector/pkg/collector"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime/runtimetest"
	"github.com/traas-stack/holoinsight-collector/pkg/store"
	"github.com/traas-stack/holoinsight-collector/pkg/store/storetest"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
)

var (
	testHost = util.HostIdentity{Ip: "10.0.0.1", Hostname: "node-1"}
	testDay  = time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
)

type fixture struct {
	t      *testing.T
	engine *runtimetest.Engine
	store  *storetest.Server
}

func (f *fixture) close() {
	f.engine.Close()
	f.store.Close()
}

func (f *fixture) pipeline(c func(fetcher *httpfetch.Fetcher) collector.Collector) *Pipeline {
	fetcher := httpfetch.New()
	st, err := store.New(f.store.URL(), fetcher, store.Timeouts{Head: time.Second, Write: time.Second})
	require.NoError(f.t, err)
	return &Pipeline{
		Collector: c(fetcher),
		Store:     st,
		NewRuntime: func(util.HostIdentity) (*runtime.Client, error) {
			return runtime.NewClient(f.engine.Host(), fetcher.HttpClient(), time.Second)
		},
		ResolveHost: func() (util.HostIdentity, error) { return testHost, nil },
		Now:         func() time.Time { return testDay },
	}
}

func containerCollector(_ *httpfetch.Fetcher) collector.Collector {
	return &collector.ContainerStatsCollector{}
}

func marathonContainer(id string) *runtimetest.Container {
	return &runtimetest.Container{
		Id:    id,
		Env:   []string{"MARATHON_APP_ID=/" + id, "LIBPROCESS_IP=10.0.0.9", "PORT0=31000", "MARATHON_APP_RESOURCE_CPUS=2", "MARATHON_APP_RESOURCE_MEM=512"},
		Stats: runtimetest.StatsBody(1100, 1000, 10400, 10000, 4, 256, 1024),
	}
}

func TestParseArgs(t *testing.T) {
	for _, env := range []string{"pro", "uat", "perf", "sit"} {
		got, err := ParseArgs([]string{env})
		require.NoError(t, err)
		assert.Equal(t, env, got)
	}
	for _, args := range [][]string{nil, {}, {"dev"}, {"sit", "uat"}, {"SIT"}} {
		_, err := ParseArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestRunSuccess(t *testing.T) {
	f := &fixture{
		t:      t,
		engine: runtimetest.NewEngine(marathonContainer("a"), marathonContainer("b"), &runtimetest.Container{Id: "infra"}),
		store:  storetest.NewServer(),
	}
	defer f.close()

	report := f.pipeline(containerCollector).Run(context.Background(), "sit")
	assert.Equal(t, OutcomeSuccess, report.Outcome, report.String())
	assert.Equal(t, "container-sit-2024.03.01", report.Index)
	assert.Equal(t, 3, report.Containers)
	assert.Equal(t, 2, report.Count)
	assert.Equal(t, store.EnsureCreated, report.Ensure)
	assert.NotEmpty(t, report.RunId)
	assert.True(t, report.Ok())
	assert.Equal(t, "getDockerInfo Push success. [2]", report.String())

	_, ok := f.store.Mapping("container-sit-2024.03.01")
	assert.True(t, ok)

	bulks := f.store.Bulks()
	require.Len(t, bulks, 1)
	actions, docs, err := store.ParseBulkPayload(bulks[0])
	require.NoError(t, err)
	require.Len(t, docs, 2)
	names := map[string]bool{}
	for i := range docs {
		assert.Equal(t, "container-sit-2024.03.01", actions[i].Index.Index)
		doc := map[string]interface{}{}
		require.NoError(t, json.Unmarshal(docs[i], &doc))
		names[doc["service_name"].(string)] = true
		assert.Equal(t, 100.0, doc["cpu_usage"])
		assert.Equal(t, 50.0, doc["per_cpu_usage"])
		assert.Equal(t, "512MB", doc["mem_limit"])
		assert.Equal(t, float64(2), doc["cpu_limit"])
	}
	assert.Equal(t, map[string]bool{"/a": true, "/b": true}, names)

	// second run of the day reuses the index
	report = f.pipeline(containerCollector).Run(context.Background(), "sit")
	assert.Equal(t, store.EnsureExisted, report.Ensure)
}

func TestRunNoContainers(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(), store: storetest.NewServer()}
	defer f.close()

	report := f.pipeline(containerCollector).Run(context.Background(), "sit")
	assert.Equal(t, OutcomeNoData, report.Outcome)
	assert.Equal(t, "getDockerInfo No Data to Push.", report.String())
	assert.Empty(t, f.store.Calls())
}

func TestRunAllDropped(t *testing.T) {
	f := &fixture{
		t:      t,
		engine: runtimetest.NewEngine(&runtimetest.Container{Id: "infra", Env: []string{"PATH=/bin"}}),
		store:  storetest.NewServer(),
	}
	defer f.close()

	report := f.pipeline(containerCollector).Run(context.Background(), "uat")
	assert.Equal(t, OutcomeNoData, report.Outcome)
	assert.Empty(t, f.store.Calls())
}

func TestRunPartialFailure(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()
	f.store.SetItemErrors(true)

	report := f.pipeline(containerCollector).Run(context.Background(), "perf")
	assert.Equal(t, OutcomePartialFailure, report.Outcome)
	assert.Equal(t, 1, report.FailedItems)
	assert.False(t, report.Ok())
}

func TestRunHttpFailure(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()
	f.store.SetBulkStatus(http.StatusServiceUnavailable)

	report := f.pipeline(containerCollector).Run(context.Background(), "pro")
	assert.Equal(t, OutcomeFailure, report.Outcome)
	assert.Equal(t, http.StatusServiceUnavailable, report.Status)
	assert.Equal(t, "getDockerInfo Push failed. [Http Error Code(503)]", report.String())
}

func TestRunHostFailure(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()

	p := f.pipeline(containerCollector)
	p.ResolveHost = func() (util.HostIdentity, error) { return util.HostIdentity{}, errors.New("no route") }
	report := p.Run(context.Background(), "sit")
	assert.Equal(t, OutcomeError, report.Outcome)
	assert.Equal(t, "no route", report.Message)
	assert.Empty(t, f.engine.Requests())
}

func TestRunRecoversPanic(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()

	p := f.pipeline(containerCollector)
	p.NewRuntime = func(util.HostIdentity) (*runtime.Client, error) { panic("bad runtime") }
	report := p.Run(context.Background(), "sit")
	assert.Equal(t, OutcomeError, report.Outcome)
	assert.Equal(t, "bad runtime", report.Message)
}

func TestRunJvmDropsNonJava(t *testing.T) {
	jvm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"heap":2048,"heap.used":1024,"nonheap":300,"threads":20}`))
	}))
	defer jvm.Close()
	u, _ := url.Parse(jvm.URL)
	env := []string{"MARATHON_APP_ID=/svc", "LIBPROCESS_IP=" + u.Hostname(), "PORT0=" + u.Port()}

	f := &fixture{
		t: t,
		engine: runtimetest.NewEngine(
			&runtimetest.Container{Id: "java", Env: append([]string{"JAVA_OPTS=-Xmx1g"}, env...)},
			&runtimetest.Container{Id: "native", Env: env},
		),
		store: storetest.NewServer(),
	}
	defer f.close()

	p := f.pipeline(func(fetcher *httpfetch.Fetcher) collector.Collector {
		return &collector.JvmCollector{Fetcher: fetcher, Timeout: time.Second}
	})
	report := p.Run(context.Background(), "sit")
	require.Equal(t, OutcomeSuccess, report.Outcome, report.String())
	assert.Equal(t, "service_jvm-sit-2024.03.01", report.Index)
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, "getJmxInfo Push success. [1]", report.String())

	_, docs, err := store.ParseBulkPayload(f.store.Bulks()[0])
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotContains(t, string(docs[0]), "jmx_prefix")
}

func TestRunUnreadableBulkResponse(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()
	f.store.SetBulkBody("not json")

	report := f.pipeline(containerCollector).Run(context.Background(), "sit")
	assert.Equal(t, OutcomeError, report.Outcome)
	assert.Equal(t, http.StatusOK, report.Status)
	assert.Contains(t, report.Message, "decode bulk response")
	assert.True(t, strings.HasPrefix(report.String(), "getDockerInfo Error decode bulk response"), report.String())
	assert.NotContains(t, report.String(), "Http Error Code")
	assert.False(t, report.Ok())
}

func TestRunRuntimeClientError(t *testing.T) {
	f := &fixture{t: t, engine: runtimetest.NewEngine(marathonContainer("a")), store: storetest.NewServer()}
	defer f.close()

	p := f.pipeline(containerCollector)
	p.NewRuntime = func(util.HostIdentity) (*runtime.Client, error) {
		return runtime.NewClient("no-scheme", httpfetch.New().HttpClient(), time.Second)
	}
	report := p.Run(context.Background(), "sit")
	assert.Equal(t, OutcomeError, report.Outcome)
	assert.Contains(t, report.Message, "create docker client")
	assert.Empty(t, f.engine.Requests())
}

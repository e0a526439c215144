/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"fmt"

	"github.com/docker/docker/api/types"
	"github.com/docker/go-units"
	"github.com/spf13/cast"
	"github.com/traas-stack/holoinsight-collector/pkg/runtime"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
)

const cpuSharesPerCpu = 1024

type (
	// ContainerIdentity is what variant A learns about a container before reading its stats.
	ContainerIdentity struct {
		ServiceName string
		Host        string
		HostIp      string
		HostPort    string
		CpuLimit    float64
		MemLimit    string
	}
	// JvmTarget is a java service whose metrics endpoint is known.
	JvmTarget struct {
		ServiceName string
		Host        string
		HostIp      string
		HostPort    string
		// Endpoint is http://{ip}:{port}. It only drives the metrics fetch.
		Endpoint string
	}
)

// EnrichContainer derives service identity and resource limits from the container env,
// falling back to host config limits. It returns false when the container has no service identity.
func EnrichContainer(host util.HostIdentity, detail *types.ContainerJSON) (ContainerIdentity, bool) {
	env := ParseEnv(runtime.Env(detail))

	serviceName, ok := env[EnvMarathonAppId]
	if !ok {
		serviceName, ok = env[EnvMesosContainerName]
	}
	if !ok {
		return ContainerIdentity{}, false
	}
	ip, ok := env[EnvLibprocessIp]
	if !ok {
		return ContainerIdentity{}, false
	}
	port, ok := env[EnvPort0]
	if !ok {
		port = noPort
	}

	cpuShares, memory := runtime.HostResources(detail)

	cpuLimit := float64(cpuShares) / cpuSharesPerCpu
	if s, ok := env[EnvAppResourceCpus]; ok {
		if f, err := cast.ToFloat64E(s); err == nil {
			cpuLimit = f
		}
	}

	memMB := float64(memory) / units.MiB
	if s, ok := env[EnvAppResourceMem]; ok {
		if f, err := cast.ToFloat64E(s); err == nil {
			memMB = f
		}
	}

	return ContainerIdentity{
		ServiceName: serviceName,
		Host:        host.Hostname,
		HostIp:      host.Ip,
		HostPort:    ip + "_" + port,
		CpuLimit:    cpuLimit,
		MemLimit:    FormatMemLimit(memMB),
	}, true
}

// EnrichJvm selects java services: both JAVA_OPTS and MARATHON_APP_ID must be present,
// along with the ip and port that locate the metrics endpoint.
func EnrichJvm(host util.HostIdentity, detail *types.ContainerJSON) (JvmTarget, bool) {
	env := ParseEnv(runtime.Env(detail))

	if _, ok := env[EnvJavaOpts]; !ok {
		return JvmTarget{}, false
	}
	serviceName, ok := env[EnvMarathonAppId]
	if !ok {
		return JvmTarget{}, false
	}
	ip, ok := env[EnvLibprocessIp]
	if !ok || ip == "" {
		return JvmTarget{}, false
	}
	port, ok := env[EnvPort0]
	if !ok || port == "" {
		return JvmTarget{}, false
	}

	return JvmTarget{
		ServiceName: serviceName,
		Host:        host.Hostname,
		HostIp:      host.Ip,
		HostPort:    ip + "_" + port,
		Endpoint:    fmt.Sprintf("http://%s:%s", ip, port),
	}, true
}

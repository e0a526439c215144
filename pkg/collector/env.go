/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package collector

import (
	"strings"
)

// Environment variables injected by marathon/mesos.
const (
	EnvMarathonAppId      = "MARATHON_APP_ID"
	EnvMesosContainerName = "MESOS_CONTAINER_NAME"
	EnvLibprocessIp       = "LIBPROCESS_IP"
	EnvPort0              = "PORT0"
	EnvAppResourceCpus    = "MARATHON_APP_RESOURCE_CPUS"
	EnvAppResourceMem     = "MARATHON_APP_RESOURCE_MEM"
	EnvJavaOpts           = "JAVA_OPTS"

	noPort = "None"
)

// ParseEnv turns "KEY=VALUE" entries into a map, splitting on the first '='.
// Later duplicates win, like a shell would.
func ParseEnv(env []string) map[string]string {
	m := make(map[string]string, len(env))
	for _, item := range env {
		if item == "" {
			continue
		}
		if i := strings.IndexByte(item, '='); i >= 0 {
			m[item[:i]] = item[i+1:]
		} else {
			m[item] = ""
		}
	}
	return m
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package runtimetest provides an in-memory docker engine api for tests.
package runtimetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
)

// APIVersion is announced on /_ping.
const APIVersion = "1.41"

var versionPrefix = regexp.MustCompile(`^/v[0-9.]+/`)

type (
	Container struct {
		Id        string
		Env       []string
		CpuShares int64
		Memory    int64
		// Stats is served as-is from /containers/{id}/stats. nil means 404.
		Stats map[string]interface{}
		// InspectStatus overrides the inspect response code when non-zero.
		InspectStatus int
	}
	Engine struct {
		Server *httptest.Server

		mutex      sync.Mutex
		listStatus int
		containers map[string]*Container
		order      []string
		requests   []string
	}
)

func NewEngine(containers ...*Container) *Engine {
	e := &Engine{containers: make(map[string]*Container)}
	for _, c := range containers {
		e.containers[c.Id] = c
		e.order = append(e.order, c.Id)
	}
	e.Server = httptest.NewServer(http.HandlerFunc(e.serve))
	return e
}

func (e *Engine) URL() string {
	return e.Server.URL
}

// Host is the engine address in docker host form.
func (e *Engine) Host() string {
	return "tcp://" + e.Server.Listener.Addr().String()
}

func (e *Engine) Close() {
	e.Server.Close()
}

// SetListStatus makes /containers/json answer with code.
func (e *Engine) SetListStatus(code int) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.listStatus = code
}

// Requests returns the request paths seen so far, without the api version prefix.
func (e *Engine) Requests() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]string(nil), e.requests...)
}

// StatsBody builds a stats snapshot body.
func StatsBody(total, preTotal, system, preSystem uint64, onlineCpus uint32, memUsage, memLimit uint64) map[string]interface{} {
	return map[string]interface{}{
		"cpu_stats": map[string]interface{}{
			"cpu_usage":        map[string]interface{}{"total_usage": total},
			"system_cpu_usage": system,
			"online_cpus":      onlineCpus,
		},
		"precpu_stats": map[string]interface{}{
			"cpu_usage":        map[string]interface{}{"total_usage": preTotal},
			"system_cpu_usage": preSystem,
		},
		"memory_stats": map[string]interface{}{
			"usage": memUsage,
			"limit": memLimit,
		},
	}
}

func (e *Engine) serve(w http.ResponseWriter, r *http.Request) {
	path := versionPrefix.ReplaceAllString(r.URL.Path, "/")
	uri := path
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}

	e.mutex.Lock()
	e.requests = append(e.requests, uri)
	listStatus := e.listStatus
	e.mutex.Unlock()

	path = strings.TrimPrefix(path, "/")
	parts := strings.Split(path, "/")

	switch {
	case path == "_ping":
		w.Header().Set("Api-Version", APIVersion)
		w.Header().Set("Ostype", "linux")
		w.Write([]byte("OK"))
	case path == "containers/json":
		if listStatus != 0 {
			w.WriteHeader(listStatus)
			return
		}
		list := make([]map[string]interface{}, 0, len(e.order))
		for _, id := range e.order {
			list = append(list, map[string]interface{}{"Id": id, "State": "running"})
		}
		writeJSON(w, list)
	case len(parts) == 3 && parts[0] == "containers" && parts[2] == "json":
		c, ok := e.containers[parts[1]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if c.InspectStatus != 0 {
			w.WriteHeader(c.InspectStatus)
			return
		}
		writeJSON(w, map[string]interface{}{
			"Id": c.Id,
			"Config": map[string]interface{}{
				"Env": c.Env,
			},
			"HostConfig": map[string]interface{}{
				"CpuShares": c.CpuShares,
				"Memory":    c.Memory,
			},
		})
	case len(parts) == 3 && parts[0] == "containers" && parts[2] == "stats":
		c, ok := e.containers[parts[1]]
		if !ok || c.Stats == nil || r.URL.Query().Get("stream") != "0" {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, c.Stats)
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package storetest provides a fake search store for tests.
package storetest

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
)

const info = `{"name":"fake","cluster_name":"test","version":{"number":"7.17.1","build_flavor":"default"},"tagline":"You Know, for Search"}`

type (
	Server struct {
		Server *httptest.Server

		mutex      sync.Mutex
		indices    map[string][]byte
		bulks      [][]byte
		calls      []string
		bulkStatus int
		bulkBody   string
		itemErrors bool
	}
)

func NewServer() *Server {
	s := &Server{indices: make(map[string][]byte)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) URL() string {
	return s.Server.URL
}

func (s *Server) Close() {
	s.Server.Close()
}

// AddIndex marks index as existing.
func (s *Server) AddIndex(index string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.indices[index] = nil
}

// Mapping returns the body index was created with, and whether it exists.
func (s *Server) Mapping(index string) ([]byte, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, ok := s.indices[index]
	return b, ok
}

// SetBulkStatus makes _bulk answer with code.
func (s *Server) SetBulkStatus(code int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.bulkStatus = code
}

// SetBulkBody makes _bulk answer 200 with the raw body.
func (s *Server) SetBulkBody(body string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.bulkBody = body
}

// SetItemErrors makes _bulk report every item as failed.
func (s *Server) SetItemErrors(b bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.itemErrors = b
}

// Bulks returns every _bulk body received.
func (s *Server) Bulks() [][]byte {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([][]byte(nil), s.bulks...)
}

// Calls returns "METHOD /path" for every request received, except the client's GET / product check.
func (s *Server) Calls() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	if r.Method == http.MethodGet && r.URL.Path == "/" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(info))
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.calls = append(s.calls, r.Method+" "+r.URL.Path)

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "_bulk" && r.Method == http.MethodPost:
		s.bulks = append(s.bulks, body)
		if s.bulkStatus != 0 {
			w.WriteHeader(s.bulkStatus)
			w.Write([]byte(`{"error":"rejected"}`))
			return
		}
		if s.bulkBody != "" {
			w.Write([]byte(s.bulkBody))
			return
		}
		s.writeBulkResponse(w, body)
	case r.Method == http.MethodHead:
		if _, ok := s.indices[path]; ok {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut:
		if _, ok := s.indices[path]; ok {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"type":"resource_already_exists_exception"}}`))
			return
		}
		s.indices[path] = body
		w.Write([]byte(`{"acknowledged":true,"index":"` + path + `"}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (s *Server) writeBulkResponse(w http.ResponseWriter, body []byte) {
	lines := 0
	for _, line := range strings.Split(string(body), "\n") {
		if strings.TrimSpace(line) != "" {
			lines++
		}
	}
	items := make([]map[string]interface{}, 0, lines/2)
	for i := 0; i < lines/2; i++ {
		item := map[string]interface{}{"_id": strconv.Itoa(i), "status": 201}
		if s.itemErrors {
			item["status"] = 400
			item["error"] = map[string]interface{}{"type": "mapper_parsing_exception"}
		}
		items = append(items, map[string]interface{}{"index": item})
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"took":   1,
		"errors": s.itemErrors,
		"items":  items,
	})
}

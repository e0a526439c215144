/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package store writes documents into the search store: HEAD/PUT index and POST _bulk.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	elasticsearch7 "github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-collector/pkg/httpfetch"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"go.uber.org/zap"
)

const (
	contentTypeNDJSON = "application/x-ndjson"
	defaultTimeout    = 10 * time.Second
)

// EnsureResult tells what EnsureIndex did.
type EnsureResult int

const (
	EnsureFailed EnsureResult = iota
	EnsureExisted
	EnsureCreated
)

type (
	Timeouts struct {
		Head  time.Duration
		Write time.Duration
	}
	Store struct {
		Addr     string
		Timeouts Timeouts
		client   *elasticsearch7.Client
	}
	PushResult struct {
		// Count is the number of documents sent.
		Count int
		// Result is nil when nothing was sent.
		Result   *httpfetch.Result
		Response *BulkResponse
	}
)

func (e EnsureResult) String() string {
	switch e {
	case EnsureExisted:
		return "existed"
	case EnsureCreated:
		return "created"
	default:
		return "failed"
	}
}

// New creates a store client for addr sharing the transport of fetcher. Retries are disabled.
func New(addr string, fetcher *httpfetch.Fetcher, timeouts Timeouts) (*Store, error) {
	addr = strings.TrimRight(addr, "/")
	client, err := elasticsearch7.NewClient(elasticsearch7.Config{
		Addresses:    []string{addr},
		Transport:    fetcher.Transport(),
		DisableRetry: true,
		Logger:       &clientLogger{},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create store client for %s", addr)
	}
	return &Store{
		Addr:     addr,
		Timeouts: timeouts,
		client:   client,
	}, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// EnsureIndex creates index with mapping unless HEAD says it is already there.
// A concurrent creator is harmless: the store rejects the duplicate PUT and the push goes on.
func (s *Store) EnsureIndex(ctx context.Context, index string, mapping *Mapping) EnsureResult {
	if s.exists(ctx, index) {
		return EnsureExisted
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		logger.Errorz("[store] marshal mapping error", zap.String("index", index), zap.Error(err))
		return EnsureFailed
	}

	wctx, cancel := withTimeout(ctx, s.Timeouts.Write)
	defer cancel()
	res, err := esapi.IndicesCreateRequest{
		Index: index,
		Body:  bytes.NewReader(body),
	}.Do(wctx, s.client)
	if err != nil {
		logger.Errorz("[store] create index error", zap.String("index", index), zap.Error(err))
		return EnsureFailed
	}
	defer res.Body.Close()
	if res.IsError() {
		content, _ := io.ReadAll(res.Body)
		logger.Errorz("[store] create index error", //
			zap.String("index", index),      //
			zap.Int("code", res.StatusCode), //
			zap.ByteString("content", content))
		return EnsureFailed
	}
	logger.Infoz("[store] create index", zap.String("index", index))
	return EnsureCreated
}

func (s *Store) exists(ctx context.Context, index string) bool {
	hctx, cancel := withTimeout(ctx, s.Timeouts.Head)
	defer cancel()
	res, err := esapi.IndicesExistsRequest{Index: []string{index}}.Do(hctx, s.client)
	if err != nil {
		logger.Warnz("[store] head index error", zap.String("index", index), zap.Error(err))
		return false
	}
	res.Body.Close()
	return !res.IsError()
}

// Push bulk-indexes docs into index. Empty docs is a no-op.
// Result.Err is set on transport errors (Status 0) and on unreadable 2xx answers (Status kept).
func (s *Store) Push(ctx context.Context, index string, docs []interface{}) PushResult {
	if len(docs) == 0 {
		return PushResult{}
	}
	pr := PushResult{Count: len(docs)}
	payload, err := BuildBulkPayload(index, docs)
	if err != nil {
		logger.Errorz("[store] build bulk payload error", zap.String("index", index), zap.Error(err))
		pr.Result = &httpfetch.Result{Err: err}
		return pr
	}

	wctx, cancel := withTimeout(ctx, s.Timeouts.Write)
	defer cancel()
	res, err := esapi.BulkRequest{
		Body:   bytes.NewReader(payload),
		Header: http.Header{"Content-Type": []string{contentTypeNDJSON}},
	}.Do(wctx, s.client)
	if err != nil {
		logger.Errorz("[store] bulk error", zap.String("index", index), zap.Error(err))
		pr.Result = &httpfetch.Result{Err: err}
		return pr
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	pr.Result = &httpfetch.Result{Status: res.StatusCode, Body: body}
	if err != nil {
		pr.Result.Err = errors.Wrap(err, "read bulk response")
		return pr
	}
	if res.IsError() {
		return pr
	}

	resp := &BulkResponse{}
	if err := json.Unmarshal(body, resp); err != nil {
		pr.Result.Err = errors.Wrap(err, "decode bulk response")
		logger.Errorz("[store] bulk response error", zap.String("index", index), zap.Error(pr.Result.Err))
		return pr
	}
	pr.Response = resp
	return pr
}

// clientLogger logs store round trips at debug level.
type clientLogger struct{}

func (l *clientLogger) LogRoundTrip(req *http.Request, res *http.Response, err error, _ time.Time, dur time.Duration) error {
	switch {
	case err == nil && res != nil && logger.DebugEnabled:
		logger.Debugz("[store] round trip", //
			zap.String("method", req.Method), //
			zap.String("path", req.URL.Path), //
			zap.Int("code", res.StatusCode),  //
			zap.Duration("cost", dur))
	case err != nil:
		logger.Debugz("[store] round trip error", zap.String("method", req.Method), zap.Error(err))
	}
	return nil
}

func (l *clientLogger) RequestBodyEnabled() bool {
	return false
}

func (l *clientLogger) ResponseBodyEnabled() bool {
	return false
}

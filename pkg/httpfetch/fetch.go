/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

// Package httpfetch is a best-effort http client. Every call produces a *Result, transport problems included,
// so callers branch on the result instead of handling errors from many places.
package httpfetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/traas-stack/holoinsight-collector/pkg/logger"
	"github.com/traas-stack/holoinsight-collector/pkg/util"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
)

type (
	Request struct {
		Method  string
		URL     string
		Body    []byte
		Headers map[string]string
		Timeout time.Duration
	}
	// Result is the uniform outcome of a fetch.
	// Status is 0 when Err is a transport error.
	Result struct {
		Status int
		Body   []byte
		Err    error
	}
	Fetcher struct {
		client *http.Client
		rps    int
	}
	Option func(*Fetcher)

	// limitedTransport takes a limiter token before every round trip.
	limitedTransport struct {
		base    http.RoundTripper
		limiter ratelimit.Limiter
	}
)

// WithRateLimit paces outgoing requests to rps per second. rps <= 0 means unlimited.
// The limit covers every client sharing HttpClient or Transport.
func WithRateLimit(rps int) Option {
	return func(f *Fetcher) {
		f.rps = rps
	}
}

// WithHttpClient replaces the default dns-cached client.
func WithHttpClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = util.NewDnsCacheHelper().NewHttpClient()
	}
	if f.rps > 0 {
		base := f.client.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		client := *f.client
		client.Transport = &limitedTransport{base: base, limiter: ratelimit.New(f.rps)}
		f.client = &client
	}
	return f
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.limiter.Take()
	return t.base.RoundTrip(req)
}

// HttpClient returns the shared client, for sdk clients that bring their own request building.
func (f *Fetcher) HttpClient() *http.Client {
	return f.client
}

// Transport returns the round tripper of HttpClient.
func (f *Fetcher) Transport() http.RoundTripper {
	if f.client.Transport == nil {
		return http.DefaultTransport
	}
	return f.client.Transport
}

// OK reports whether the request completed with a 2xx status.
func (r *Result) OK() bool {
	return r != nil && r.Err == nil && r.Status/100 == 2
}

// Failed reports whether no usable response was obtained at all.
func (r *Result) Failed() bool {
	return r == nil || r.Err != nil
}

func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return string(r.Body)
}

func (r *Result) DecodeJSON(v interface{}) error {
	if r == nil {
		return errors.New("nil result")
	}
	return json.Unmarshal(r.Body, v)
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	if r.Err != nil {
		return fmt.Sprintf("error=[%v]", r.Err)
	}
	return fmt.Sprintf("status=[%d]", r.Status)
}

func supported(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut:
		return true
	default:
		return false
	}
}

// Fetch executes req. It never panics on network problems: they are logged and carried in Result.Err.
// Unsupported methods get a local 405 without touching the network.
func (f *Fetcher) Fetch(ctx context.Context, req Request) *Result {
	if !supported(req.Method) {
		return &Result{Status: http.StatusMethodNotAllowed}
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return f.failed(req, errors.Wrap(err, "build request"))
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return f.failed(req, err)
	}
	defer resp.Body.Close()

	result := &Result{Status: resp.StatusCode}
	if req.Method == http.MethodHead {
		return result
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return f.failed(req, errors.Wrap(err, "read body"))
	}
	result.Body = b

	if logger.DebugEnabled {
		logger.Debugz("[fetch] done", //
			zap.String("method", req.Method), //
			zap.String("url", req.URL),       //
			zap.Int("code", resp.StatusCode), //
			zap.Int("bytes", len(b)))
	}
	return result
}

// FetchJSON fetches and, on 2xx, decodes the body into v. A decode failure is turned into Result.Err.
func (f *Fetcher) FetchJSON(ctx context.Context, req Request, v interface{}) *Result {
	result := f.Fetch(ctx, req)
	if !result.OK() || req.Method == http.MethodHead {
		return result
	}
	if err := result.DecodeJSON(v); err != nil {
		failed := f.failed(req, errors.Wrap(err, "decode json"))
		failed.Status = result.Status
		return failed
	}
	return result
}

func (f *Fetcher) failed(req Request, err error) *Result {
	logger.Errorz("[fetch] error", //
		zap.String("method", req.Method), //
		zap.String("url", req.URL),       //
		zap.Error(err))
	return &Result{Err: err}
}

/*
 * Copyright 2022 Holoinsight Project Authors. Licensed under Apache-2.0.
 */

package util

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/rs/dnscache"
)

const DefaultDialAddr = "8.8.8.8:80"

type (
	// HostIdentity is the local outbound ip and hostname of the machine running the collector.
	HostIdentity struct {
		Ip       string
		Hostname string
	}
	DnsCacheHelper struct {
		resolver    *dnscache.Resolver
		nextIpIndex int64
	}
)

// ResolveHostIdentity resolves the source ip the kernel selects for reaching dialAddr.
// Dialing udp only binds a local socket, no packet is sent.
// HOST_IP and POD_IP override the detected ip.
func ResolveHostIdentity(dialAddr string) (HostIdentity, error) {
	ip := GetEnvOrDefault("HOST_IP", os.Getenv("POD_IP"))
	if ip == "" {
		if dialAddr == "" {
			dialAddr = DefaultDialAddr
		}
		dialed, err := outboundIp(dialAddr)
		if err != nil {
			return HostIdentity{}, err
		}
		ip = dialed
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = ip
	}
	return HostIdentity{Ip: ip, Hostname: hostname}, nil
}

func outboundIp(dialAddr string) (string, error) {
	conn, err := net.Dial("udp", dialAddr)
	if err != nil {
		return "", errors.Wrapf(err, "resolve outbound ip via %s", dialAddr)
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return "", errors.Errorf("unexpected local addr %v", conn.LocalAddr())
	}
	return addr.IP.String(), nil
}

func NewDnsCacheHelper() *DnsCacheHelper {
	options := dnscache.ResolverRefreshOptions{}
	options.ClearUnused = true
	options.PersistOnFailure = false

	h := &DnsCacheHelper{
		resolver: &dnscache.Resolver{},
	}

	h.resolver.RefreshWithOptions(options)
	return h
}

func (h *DnsCacheHelper) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := h.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, err
	}

	size := len(ips)
	var lastErr error
	for i := 0; i < size; i++ {
		index := atomic.AddInt64(&h.nextIpIndex, 1)
		ip := ips[int(index)%size]

		var dialer net.Dialer
		conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
		if err == nil {
			return conn, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// NewHttpClient creates a http client dialing through the dns cache. Redirects are not followed.
func (h *DnsCacheHelper) NewHttpClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext:         h.Dial,
			MaxIdleConnsPerHost: 16,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

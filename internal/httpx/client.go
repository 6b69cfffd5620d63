// Package httpx provides the single process-wide HTTP client shared by
// the Voyage embedder and the remote index client: bounded idle
// connections, HTTP/2 with keep-alive pings, a 10s connect timeout and a
// 60s total request timeout.
package httpx

import (
	"net"
	"net/http"
	"sync"
	"time"
)

var sharedClient = sync.OnceValue(func() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 60 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		ForceAttemptHTTP2:     true,
		HTTP2: &http.HTTP2Config{
			SendPingTimeout: 30 * time.Second,
			PingTimeout:     15 * time.Second,
		},
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
})

// Shared returns the lazily-initialized singleton HTTP client.
func Shared() *http.Client {
	return sharedClient()
}

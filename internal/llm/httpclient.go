package llm

import (
	"net"
	"net/http"
	"time"
)

// newLLMHTTPClient builds the shared client shape for completion APIs.
// Completions can legitimately take a minute, so the overall timeout is long
// while connection establishment stays tightly bounded.
func newLLMHTTPClient() *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}
	return &http.Client{
		Timeout: 120 * time.Second,
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			IdleConnTimeout:       90 * time.Second,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   5,
			MaxConnsPerHost:       10,
			ForceAttemptHTTP2:     true,
		},
	}
}

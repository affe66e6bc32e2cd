// Package httpclient builds the HTTP client used to fetch remote documents.
package httpclient

import (
	"crypto/tls"
	"net"
	"net/http"
	"time"
)

// MaxRedirects bounds redirect chains when fetching a document.
const MaxRedirects = 10

// New creates a client tuned for fetching pages from a handful of hosts.
func New(tlsConfig *tls.Config, timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                  http.ProxyFromEnvironment,
		DialContext:            dialer.DialContext,
		TLSClientConfig:        tlsConfig,
		TLSHandshakeTimeout:    10 * time.Second,
		ResponseHeaderTimeout:  15 * time.Second,
		ExpectContinueTimeout:  1 * time.Second,
		IdleConnTimeout:        60 * time.Second,
		MaxIdleConns:           20,
		MaxIdleConnsPerHost:    4,
		MaxResponseHeaderBytes: 1 << 20, // 1 MiB
		ForceAttemptHTTP2:      true,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= MaxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

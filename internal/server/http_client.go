package server

import (
	"net"
	"net/http"
	"time"

	"github.com/any-hub/asset-hub/internal/config"
)

// Shared HTTP transport tunings，复用长连接并集中配置超时。
var defaultTransport = &http.Transport{
	Proxy:                 http.ProxyFromEnvironment,
	MaxIdleConns:          100,
	MaxIdleConnsPerHost:   32,
	IdleConnTimeout:       90 * time.Second,
	TLSHandshakeTimeout:   10 * time.Second,
	ExpectContinueTimeout: 1 * time.Second,
	ForceAttemptHTTP2:     true,
	DialContext: (&net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
}

// NewUpstreamClient 返回共享 http.Client，用于所有上游请求。
// 单次尝试的超时由 fetcher 通过 context 控制，这里取所有上游超时中的最大值作为兜底。
func NewUpstreamClient(cfg *config.Config) *http.Client {
	timeout := 30 * time.Second
	if cfg != nil {
		if t := cfg.Global.UpstreamTimeout.DurationValue(); t > 0 {
			timeout = t
		}
		for _, mirror := range cfg.Mirrors {
			if t := mirror.Timeout.DurationValue(); t > timeout {
				timeout = t
			}
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: defaultTransport.Clone(),
	}
}

package transport

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"chatmemory/internal/retry"
)

// NewHTTPClient возвращает http.Client с таймаутом, базовым транспортом и
// повторами по policy. Используется только для исходящих запросов к LLM.
func NewHTTPClient(timeout time.Duration, policy retry.Policy, logger *slog.Logger) *http.Client {
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: retry.NewTransport(base, policy, logger),
	}
}

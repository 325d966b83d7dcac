package metricsource

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"github.com/corridorcache/baseline-engine/pkg/log"
)

// retryingTransport wraps an http.RoundTripper with two linear-backoff
// retries on transport errors or 5xx responses. 4xx responses are returned
// to the caller untouched; the caller is responsible for surfacing them as
// UpstreamBadResponse.
type retryingTransport struct {
	base http.RoundTripper
}

func (t *retryingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	const maxRetries = 2

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}

		bodyReader, err := req.GetBody()
		if err == nil && bodyReader != nil {
			req.Body = bodyReader
		}

		resp, err := t.base.RoundTrip(req)
		if err != nil {
			lastErr = err
			log.Warnf("metric source request attempt %d failed: %v", attempt+1, err)
			continue
		}
		if resp.StatusCode >= 500 {
			if attempt == maxRetries {
				// Retries exhausted: let the caller see the real status.
				return resp, nil
			}
			lastErr = nil
			resp.Body.Close()
			log.Warnf("metric source request attempt %d got status %d", attempt+1, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	// Only reached when the last attempt failed at the transport level.
	return nil, lastErr
}

// newHTTPClient builds the transport described in SPEC_FULL.md §6.2: a 10s
// connect timeout, configurable TLS verification, and the retry wrapper
// above. The per-call request timeout is applied by the caller via
// context.WithTimeout, which always wins over any client-level deadline.
func newHTTPClient(insecureSkipVerify bool) *http.Client {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	base := &http.Transport{
		DialContext:     dialer.DialContext,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: insecureSkipVerify},
	}
	return &http.Client{Transport: &retryingTransport{base: base}}
}

// withTimeout returns a context bounded by seconds, or ctx unchanged if
// seconds <= 0.
func withTimeout(ctx context.Context, seconds int64) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

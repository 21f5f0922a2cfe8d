package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m3rciful/warnbot/core/telegram/netutil"
)

// Transport tuning for the Bot API. Long polls are bounded by the client
// timeout, which must exceed the poll timeout.
const (
	dialTimeout      = 5 * time.Second
	keepAlive        = 30 * time.Second
	handshakeTimeout = 5 * time.Second
	headerTimeout    = 5 * time.Second
	idleTimeout      = 30 * time.Second
	clientTimeout    = 30 * time.Second

	transportRetries = 3
	transportBackoff = 500 * time.Millisecond
)

var errBodyNotReplayable = errors.New("telegram: request body cannot be replayed")

// BuildHTTPClient returns the client telebot uses for API calls. Transport
// failures (see netutil.ShouldRetry) are retried with exponential backoff;
// API errors are returned as they are.
func BuildHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleTimeout,
		TLSHandshakeTimeout:   handshakeTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout,
		Transport: &retryTransport{base: base, retries: transportRetries, initial: transportBackoff},
	}
}

type retryTransport struct {
	base    http.RoundTripper
	retries uint64
	initial time.Duration
}

// replay returns req ready for another attempt with a fresh body.
func replay(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return clone, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	clone.Body = body
	return clone, nil
}

// RoundTrip implements http.RoundTripper.
func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(t.initial),
		backoff.WithMaxElapsedTime(0),
	), t.retries), req.Context())

	first := true
	attempt := func() (*http.Response, error) {
		next := req
		if !first {
			var err error
			if next, err = replay(req); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		first = false
		resp, err := base.RoundTrip(next)
		if err != nil && !netutil.ShouldRetry(err) {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}
	return backoff.RetryWithData(attempt, policy)
}

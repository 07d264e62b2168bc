// Package httpkit builds the outbound HTTP clients Atelier uses to talk
// to Ollama and the inspiration service: pooled transport, identifying
// User-Agent, and optional retry on transient dial failures.
package httpkit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/atelier-ai/atelier/internal/buildinfo"
)

type options struct {
	timeout    time.Duration
	userAgent  string
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a client built by NewClient.
type Option func(*options)

// WithTimeout sets the overall request timeout. Zero disables it, which
// reasoning calls need: a slow model is not a dead model.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

// WithRetry retries requests that fail with a transient connection
// error (host/network unreachable, connection refused). Those fail
// before any bytes reach the server, so replaying is safe; requests
// with a body retry only when GetBody can rewind it.
func WithRetry(count int, delay time.Duration) Option {
	return func(o *options) {
		o.retries = count
		o.retryDelay = delay
	}
}

// WithLogger sets a logger for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// NewClient builds an *http.Client with pooled connections, header and
// handshake timeouts, and the Atelier User-Agent.
func NewClient(opts ...Option) *http.Client {
	o := options{
		timeout:   30 * time.Second,
		userAgent: buildinfo.UserAgent(),
	}
	for _, apply := range opts {
		apply(&o)
	}

	var rt http.RoundTripper = &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		ForceAttemptHTTP2:     true,
	}
	rt = &uaTransport{next: rt, agent: o.userAgent}
	if o.retries > 0 {
		rt = &retryTransport{next: rt, retries: o.retries, delay: o.retryDelay, logger: o.logger}
	}

	return &http.Client{Timeout: o.timeout, Transport: rt}
}

// uaTransport sets the User-Agent on requests that don't carry one.
type uaTransport struct {
	next  http.RoundTripper
	agent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		// RoundTrippers must not mutate the caller's request.
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", t.agent)
	}
	return t.next.RoundTrip(req)
}

// retryTransport replays requests that failed with a transient
// connection error, waiting delay between attempts.
type retryTransport struct {
	next    http.RoundTripper
	retries int
	delay   time.Duration
	logger  *slog.Logger
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err == nil || !isTransient(err) {
		return resp, err
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// Can't rewind the body, so replaying would send garbage.
		return resp, err
	}

	for attempt := 1; attempt <= t.retries; attempt++ {
		if t.logger != nil {
			t.logger.Debug("retrying after transient error",
				"method", req.Method, "url", req.URL.String(),
				"attempt", attempt, "error", err)
		}

		timer := time.NewTimer(t.delay)
		select {
		case <-req.Context().Done():
			timer.Stop()
			return nil, req.Context().Err()
		case <-timer.C:
		}

		replay := req.Clone(req.Context())
		if req.GetBody != nil {
			body, bodyErr := req.GetBody()
			if bodyErr != nil {
				return nil, fmt.Errorf("retry: rewind body: %w", bodyErr)
			}
			replay.Body = body
		}

		resp, err = t.next.RoundTrip(replay)
		if err == nil || !isTransient(err) {
			return resp, err
		}
	}
	return resp, err
}

// isTransient reports whether err is a connection-level failure worth
// replaying. ECONNRESET is deliberately excluded: the server may have
// already processed the request.
func isTransient(err error) bool {
	for _, target := range []syscall.Errno{
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ECONNREFUSED,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// DrainAndClose reads up to limit bytes from rc and closes it, so the
// underlying connection returns to the pool.
func DrainAndClose(rc io.ReadCloser, limit int64) {
	if rc == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, limit))
	rc.Close()
}

// ReadErrorBody reads up to limit bytes of an error response body for
// diagnostics, then drains and closes the rest.
func ReadErrorBody(rc io.ReadCloser, limit int64) string {
	if rc == nil {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(rc, limit))
	DrainAndClose(rc, 1024)
	if err != nil {
		return fmt.Sprintf("(failed to read error body: %v)", err)
	}
	return string(body)
}

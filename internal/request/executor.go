package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultBaseDelay = 100 * time.Millisecond
	DefaultMaxDelay  = 5 * time.Second

	maxErrorBodyBytes = 1024
)

// RequestFunc performs one network call. It must honour ctx so the executor's
// per-attempt timeout can cancel it.
type RequestFunc func(ctx context.Context) (*http.Response, error)

// FailureLogger logs failed attempts.
type FailureLogger interface {
	LogFailure(err error)
}

// Policy configures timeout and retry behaviour.
type Policy struct {
	Timeout   time.Duration // per attempt; 0 disables the timeout
	Retries   int           // retries after the first attempt
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// DefaultPolicy mirrors the CLI defaults.
func DefaultPolicy() Policy {
	return Policy{
		Timeout:   DefaultTimeout,
		Retries:   2,
		BaseDelay: DefaultBaseDelay,
		MaxDelay:  DefaultMaxDelay,
	}
}

func (p *Policy) normalize() {
	if p.Timeout < 0 {
		p.Timeout = 0
	}
	if p.Retries < 0 {
		p.Retries = 0
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
}

// Backoff returns the delay before retry number n (1 for the first retry):
// min(BaseDelay * 2^n, MaxDelay).
func (p Policy) Backoff(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	if n > 30 {
		return p.MaxDelay
	}
	delay := p.BaseDelay * time.Duration(1<<uint(n))
	if delay > p.MaxDelay || delay < 0 {
		delay = p.MaxDelay
	}
	return delay
}

// Result is a measured successful call.
type Result struct {
	Payload      []byte
	Latency      time.Duration // dispatch -> body fully read
	TTFB         time.Duration // dispatch -> headers available
	PayloadBytes int64
	HTTPStatus   int
	Header       http.Header
	Attempts     int
}

// LatencyMs returns Latency in milliseconds.
func (r Result) LatencyMs() float64 {
	return float64(r.Latency) / float64(time.Millisecond)
}

// TTFBMs returns TTFB in milliseconds.
func (r Result) TTFBMs() float64 {
	return float64(r.TTFB) / float64(time.Millisecond)
}

// Executor runs a RequestFunc with a timeout per attempt, measures it and
// retries transient failures with exponential backoff.
type Executor struct {
	policy Policy
	logger FailureLogger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option customizes an Executor.
type Option func(*Executor)

// WithFailureLogger logs every failed attempt, including retried ones.
func WithFailureLogger(logger FailureLogger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

func NewExecutor(policy Policy, opts ...Option) *Executor {
	policy.normalize()
	e := &Executor{policy: policy, sleep: sleepContext}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the normalized policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Execute runs fn until it succeeds, fails terminally or the retry budget is
// spent. Any returned error is a *RequestError carrying the latency of the
// final attempt.
func (e *Executor) Execute(ctx context.Context, fn RequestFunc) (Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return Result{}, &RequestError{Code: CodeMalformed, Message: "request function is nil"}
	}

	attempts := e.policy.Retries + 1
	var lastErr *RequestError
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := e.sleep(ctx, e.policy.Backoff(attempt-1)); err != nil {
				return Result{}, &RequestError{
					Code:     CodeCanceled,
					Message:  "request canceled during backoff",
					Latency:  lastErr.Latency,
					Attempts: attempt - 1,
					Err:      err,
				}
			}
		}

		res, reqErr := e.attempt(ctx, fn)
		if reqErr == nil {
			res.Attempts = attempt
			return res, nil
		}
		reqErr.Attempts = attempt
		lastErr = reqErr
		if e.logger != nil {
			e.logger.LogFailure(reqErr)
		}
		if !reqErr.Retryable() {
			return Result{}, reqErr
		}
	}
	return Result{}, lastErr
}

// attempt performs a single call. The timeout is released on every return path.
func (e *Executor) attempt(ctx context.Context, fn RequestFunc) (Result, *RequestError) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.policy.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, e.policy.Timeout)
	}
	defer cancel()

	start := time.Now()
	resp, err := fn(attemptCtx)
	ttfb := time.Since(start)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return Result{}, classify(ctx, attemptCtx, err, time.Since(start))
	}
	if resp == nil {
		return Result{}, &RequestError{Code: CodeMalformed, Message: "empty response", Latency: ttfb}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		return Result{}, &RequestError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			Body:    strings.TrimSpace(string(snippet)),
			Latency: time.Since(start),
		}
	}

	body, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return Result{}, classify(ctx, attemptCtx, fmt.Errorf("read body: %w", err), latency)
	}

	return Result{
		Payload:      body,
		Latency:      latency,
		TTFB:         ttfb,
		PayloadBytes: int64(len(body)),
		HTTPStatus:   resp.StatusCode,
		Header:       resp.Header,
	}, nil
}

func classify(parent, attemptCtx context.Context, err error, latency time.Duration) *RequestError {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		if reqErr.Latency == 0 {
			reqErr.Latency = latency
		}
		return reqErr
	}
	if parent.Err() != nil {
		return &RequestError{Code: CodeCanceled, Message: "request canceled", Latency: latency, Err: err}
	}
	var netErr net.Error
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &RequestError{Code: CodeTimeout, Message: "Request timeout", Latency: latency, Err: err}
	}
	return &RequestError{Code: CodeNetwork, Message: err.Error(), Latency: latency, Err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

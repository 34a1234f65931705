package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Endpoint describes one provider call.
type Endpoint struct {
	Method  string
	URL     string
	Query   url.Values
	Headers map[string]string
	Body    BodySource
}

type RequestBuilder struct {
	method  string
	target  string
	headers http.Header
	body    BodySource
}

func NewRequestBuilder(ep Endpoint) (*RequestBuilder, error) {
	target := strings.TrimSpace(ep.URL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}
	if len(ep.Query) > 0 {
		query := parsed.Query()
		for key, values := range ep.Query {
			for _, v := range values {
				query.Add(key, v)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(ep.Method))
	if method == "" {
		method = http.MethodGet
	}

	body := ep.Body
	if body == nil {
		body = emptyBodySource{}
	}

	headers, err := cleanHeaders(ep.Headers)
	if err != nil {
		return nil, err
	}

	return &RequestBuilder{
		method:  method,
		target:  parsed.String(),
		headers: headers,
		body:    body,
	}, nil
}

// cleanHeaders canonicalizes header keys and rejects CR/LF so a provider key
// cannot inject extra header lines.
func cleanHeaders(in map[string]string) (http.Header, error) {
	out := make(http.Header, len(in))
	for key, value := range in {
		name := strings.TrimSpace(key)
		if name == "" || strings.ContainsAny(name, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		name = http.CanonicalHeaderKey(name)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", name)
		}
		out.Set(name, value)
	}
	return out, nil
}

// Target returns the fully resolved URL.
func (b *RequestBuilder) Target() string {
	return b.target
}

func (b *RequestBuilder) Build(ctx context.Context) (*http.Request, error) {
	if b == nil {
		return nil, errors.New("builder cannot be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := b.body.NewReader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.target, reader)
	if err != nil {
		_ = reader.Close()
		return nil, err
	}

	req.Header = b.headers.Clone()

	if length, ok := b.body.ContentLength(); ok {
		req.ContentLength = length
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return b.body.NewReader()
	}
	return req, nil
}

// NewClient returns a client tuned for many concurrent calls to a handful of
// hosts. Per-attempt deadlines come from the caller's context; timeout is an
// outer bound and may be zero.
func NewClient(timeout time.Duration) *http.Client {
	if timeout < 0 {
		timeout = 0
	}

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

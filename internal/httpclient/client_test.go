package httpclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestBuildRequestWithHeadersAndJSONBody(t *testing.T) {
	body, err := JSONBody(map[string]any{"jsonrpc": "2.0", "id": 1})
	if err != nil {
		t.Fatalf("JSONBody() error = %v", err)
	}
	builder, err := NewRequestBuilder(Endpoint{
		Method: "post",
		URL:    "http://example.com/v2/key",
		Headers: map[string]string{
			"content-type": "application/json",
			"X-Trace-Id":   "12345",
		},
		Body: body,
	})
	if err != nil {
		t.Fatalf("expected builder, got error: %v", err)
	}

	req, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("expected request, got error: %v", err)
	}
	if req.Method != http.MethodPost {
		t.Fatalf("expected method POST, got %s", req.Method)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("expected canonical Content-Type header, got %q", req.Header.Get("Content-Type"))
	}
	if req.Header.Get("X-Trace-Id") != "12345" {
		t.Fatalf("expected X-Trace-Id header, got %q", req.Header.Get("X-Trace-Id"))
	}

	expected := `{"id":1,"jsonrpc":"2.0"}`
	got, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body failed: %v", err)
	}
	if string(got) != expected {
		t.Fatalf("expected body %q, got %q", expected, string(got))
	}
	if req.ContentLength != int64(len(expected)) {
		t.Fatalf("expected content length %d, got %d", len(expected), req.ContentLength)
	}

	if req.GetBody == nil {
		t.Fatalf("expected request to support body replay")
	}
	replay, err := req.GetBody()
	if err != nil {
		t.Fatalf("expected replay body, got error: %v", err)
	}
	replayBytes, _ := io.ReadAll(replay)
	if string(replayBytes) != expected {
		t.Fatalf("expected replay body %q, got %q", expected, string(replayBytes))
	}
}

func TestRequestBuilder_QueryMerged(t *testing.T) {
	builder, err := NewRequestBuilder(Endpoint{
		URL:   "http://example.com/wallet/portfolio?wallet=0xabc",
		Query: url.Values{"limit": {"20"}},
	})
	if err != nil {
		t.Fatalf("NewRequestBuilder error = %v", err)
	}
	req, err := builder.Build(context.Background())
	if err != nil {
		t.Fatalf("Build error = %v", err)
	}
	if got := req.URL.Query().Get("wallet"); got != "0xabc" {
		t.Fatalf("wallet = %q", got)
	}
	if got := req.URL.Query().Get("limit"); got != "20" {
		t.Fatalf("limit = %q", got)
	}
	if req.Method != http.MethodGet {
		t.Fatalf("expected fallback method GET, got %s", req.Method)
	}
}

func TestRequestBuilder_InvalidInput(t *testing.T) {
	cases := map[string]Endpoint{
		"empty url":            {URL: "  "},
		"empty header key":     {URL: "http://example.com", Headers: map[string]string{"": "v"}},
		"newline header key":   {URL: "http://example.com", Headers: map[string]string{"Bad\nKey": "v"}},
		"newline header value": {URL: "http://example.com", Headers: map[string]string{"X-Test": "bad\rvalue"}},
		"bad url":              {URL: "http://exa mple.com/%zz"},
	}
	for name, ep := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewRequestBuilder(ep); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRequestBuilder_EmptyBodyReplays(t *testing.T) {
	builder, err := NewRequestBuilder(Endpoint{URL: "http://example.com", Body: BytesBody(nil)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 2; i++ {
		req, err := builder.Build(context.Background())
		if err != nil {
			t.Fatalf("build #%d failed: %v", i+1, err)
		}
		if req.ContentLength != 0 {
			t.Fatalf("expected zero content length, got %d", req.ContentLength)
		}
	}
}

func TestClientTimeoutApplied(t *testing.T) {
	timeout := 50 * time.Millisecond
	client := NewClient(timeout)
	defer client.CloseIdleConnections()

	if client.Timeout != timeout {
		t.Fatalf("expected client timeout %s, got %s", timeout, client.Timeout)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(timeout * 3)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if resp != nil {
		resp.Body.Close()
	}
	if err == nil {
		t.Fatalf("expected timeout error, got nil")
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("request returned too quickly: %s < %s", elapsed, timeout)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if !errors.As(err, &netErr) || !netErr.Timeout() {
			t.Fatalf("expected timeout error, got %v", err)
		}
	}

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.MaxIdleConns == 0 || transport.IdleConnTimeout == 0 {
		t.Fatalf("expected transport to keep idle connections")
	}
}

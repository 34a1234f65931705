package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/torosent/provbench/internal/httpclient"
	"github.com/torosent/provbench/internal/request"
	"github.com/torosent/provbench/internal/tracing"
)

// envelopeCheck inspects a parsed 2xx body and returns a non-empty message
// when the provider reported a failure inside it.
type envelopeCheck func(body gjson.Result) string

// httpAdapter holds what every REST, JSON-RPC and GraphQL adapter shares.
type httpAdapter struct {
	name      string
	apiKey    string
	baseURL   string
	client    *http.Client
	executor  *request.Executor
	propagate bool
}

func newHTTPAdapter(name string, s Settings) httpAdapter {
	client := s.HTTPClient
	if client == nil {
		client = httpclient.NewClient(0)
	}
	policy := s.Policy
	if policy == (request.Policy{}) {
		policy = request.DefaultPolicy()
	}
	var opts []request.Option
	if s.Logger != nil {
		opts = append(opts, request.WithFailureLogger(s.Logger))
	}
	return httpAdapter{
		name:      name,
		apiKey:    strings.TrimSpace(s.APIKey),
		baseURL:   strings.TrimRight(strings.TrimSpace(s.BaseURL), "/"),
		client:    client,
		executor:  request.NewExecutor(policy, opts...),
		propagate: s.Propagate,
	}
}

func (a *httpAdapter) Name() string {
	return a.name
}

// root returns the override base URL when set, otherwise def.
func (a *httpAdapter) root(def string) string {
	if a.baseURL != "" {
		return a.baseURL
	}
	return def
}

func (a *httpAdapter) call(ctx context.Context, ep httpclient.Endpoint, check envelopeCheck) (Measurement, error) {
	builder, err := httpclient.NewRequestBuilder(ep)
	if err != nil {
		return Measurement{}, &request.RequestError{Code: request.CodeMalformed, Message: err.Error(), Err: err}
	}

	res, err := a.executor.Execute(ctx, func(ctx context.Context) (*http.Response, error) {
		req, err := builder.Build(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Request-Id", uuid.NewString())
		if req.Header.Get("Accept") == "" {
			req.Header.Set("Accept", "application/json")
		}
		if a.propagate {
			tracing.InjectHTTPHeaders(ctx, req.Header)
		}
		return a.client.Do(req)
	})
	if err != nil {
		return Measurement{}, err
	}

	if check != nil {
		if !gjson.ValidBytes(res.Payload) {
			return Measurement{}, request.Malformed(res, fmt.Sprintf("%s: response is not valid JSON", a.name))
		}
		if msg := check(gjson.ParseBytes(res.Payload)); msg != "" {
			return Measurement{}, request.Malformed(res, msg)
		}
	}
	return MeasurementFrom(res), nil
}

// unsupported is returned when Run receives a scenario outside the
// adapter's declared capabilities.
func unsupported(name string, s Scenario) error {
	return &request.RequestError{
		Code:    request.CodeMalformed,
		Message: fmt.Sprintf("%s does not support scenario %s", name, s),
	}
}

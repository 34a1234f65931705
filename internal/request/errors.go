package request

import (
	"fmt"
	"net/http"
	"time"
)

// Error codes carried by RequestError when the failure is not a plain HTTP status.
const (
	CodeTimeout   = "TIMEOUT"
	CodeNetwork   = "NETWORK"
	CodeMalformed = "MALFORMED"
	CodeCanceled  = "CANCELED"
)

// RequestError describes a failed provider call once retries are exhausted or
// the failure turned out to be terminal.
type RequestError struct {
	Status   int           // HTTP status, 0 when no response arrived
	Code     string        // CodeTimeout, CodeNetwork, ... or empty for status failures
	Message  string        // human readable summary
	Body     string        // trimmed response body snippet, if any
	Latency  time.Duration // latency observed on the final attempt
	Attempts int
	Err      error
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Status != 0 {
		return fmt.Sprintf("HTTP %d: %s", e.Status, http.StatusText(e.Status))
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt may succeed: timeouts, transport
// failures, 429 and 5xx.
func (e *RequestError) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Code {
	case CodeTimeout, CodeNetwork:
		return true
	case CodeCanceled, CodeMalformed:
		return false
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// LatencyMs returns the final attempt's latency in milliseconds.
func (e *RequestError) LatencyMs() float64 {
	return float64(e.Latency) / float64(time.Millisecond)
}

// CodeOrStatus returns the error code, falling back to the HTTP status.
func (e *RequestError) CodeOrStatus() string {
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("%d", e.Status)
	}
	return ""
}

// Malformed builds a terminal error for a 2xx response whose body reports a
// failure, such as a JSON-RPC or GraphQL error envelope.
func Malformed(res Result, message string) *RequestError {
	if message == "" {
		message = "malformed response"
	}
	return &RequestError{
		Status:   res.HTTPStatus,
		Code:     CodeMalformed,
		Message:  message,
		Latency:  res.Latency,
		Attempts: res.Attempts,
	}
}

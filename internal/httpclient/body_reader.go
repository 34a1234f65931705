package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// BodySource produces a fresh reader for every attempt so retried requests
// replay the same payload.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
}

// BytesBody returns a BodySource over data.
func BytesBody(data []byte) BodySource {
	if len(data) == 0 {
		return emptyBodySource{}
	}
	return &inlineBodySource{data: data}
}

// JSONBody marshals v once and replays the encoded bytes.
func JSONBody(v any) (BodySource, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &inlineBodySource{data: data}, nil
}

type inlineBodySource struct {
	data []byte
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(nil)), nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}

package runner

import "errors"

// ErrNoConfiguredProviders is reported when no handle passed to Start is
// configured.
var ErrNoConfiguredProviders = errors.New("no configured providers")

// ConfigurationError is fatal: the run never starts.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Reason != "":
		return "configuration error: " + e.Reason
	case e.Err != nil:
		return "configuration error: " + e.Err.Error()
	}
	return "configuration error"
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

const (
	DefaultIterations     = 10
	MaxIterations         = 100
	DefaultDelay          = 200 * time.Millisecond
	DefaultTimeout        = 30 * time.Second
	DefaultRetries        = 2
	DefaultRetryBaseDelay = 100 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second
)

type Config struct {
	Iterations     int                       `mapstructure:"iterations"`
	Delay          time.Duration             `mapstructure:"delay"`
	Timeout        time.Duration             `mapstructure:"timeout"`
	Retries        int                       `mapstructure:"retries"`
	RetryBaseDelay time.Duration             `mapstructure:"retry_base_delay"`
	RetryMaxDelay  time.Duration             `mapstructure:"retry_max_delay"`
	Providers      map[string]ProviderConfig `mapstructure:"providers"`
	Only           []string                  `mapstructure:"only"` // empty means every registered provider
	Scenarios      []string                  `mapstructure:"scenarios"`
	Feeder         FeederConfig              `mapstructure:"feeder"`
	Output         OutputConfig              `mapstructure:"output"`
	History        HistoryConfig             `mapstructure:"history"`
	Thresholds     []string                  `mapstructure:"thresholds"`
	Tracing        TracingConfig             `mapstructure:"tracing"`
	ConfigFile     string                    `mapstructure:"-"`
}

// ProviderConfig holds the per-provider settings. A nil Enabled means the
// provider runs whenever it has a key.
type ProviderConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	BaseURL   string        `mapstructure:"base_url"`
	RateLimit int           `mapstructure:"rate_limit"` // 0 keeps the provider default, negative is unlimited
	Window    time.Duration `mapstructure:"window"`
	Enabled   *bool         `mapstructure:"enabled"`
}

// IsEnabled reports whether the provider should take part in a run.
func (p ProviderConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

type FeederConfig struct {
	Path string `mapstructure:"path"`
	Type string `mapstructure:"type"` // "csv" or "json"
}

type OutputConfig struct {
	JSON      bool   `mapstructure:"json"`
	YAML      bool   `mapstructure:"yaml"`
	HTML      string `mapstructure:"html"`
	Dashboard bool   `mapstructure:"dashboard"`
	LogErrors bool   `mapstructure:"log_errors"`
}

type HistoryType string

const (
	HistoryTypeNone HistoryType = "none"
	HistoryTypeJSON HistoryType = "json"
	HistoryTypeBolt HistoryType = "bolt"
)

type HistoryConfig struct {
	Type HistoryType `mapstructure:"type"`
	Path string      `mapstructure:"path"`
}

// Enabled reports whether finished runs are persisted.
func (h HistoryConfig) Enabled() bool {
	return h.Type != "" && h.Type != HistoryTypeNone
}

type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	Propagate   *bool   `mapstructure:"propagate"`
}

// Enabled reports whether an OTLP endpoint is configured, either here or
// through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate defaults to Enabled unless Propagate is set explicitly.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Default returns a Config carrying every default.
func Default() *Config {
	return &Config{
		Iterations:     DefaultIterations,
		Delay:          DefaultDelay,
		Timeout:        DefaultTimeout,
		Retries:        DefaultRetries,
		RetryBaseDelay: DefaultRetryBaseDelay,
		RetryMaxDelay:  DefaultRetryMaxDelay,
		Providers:      map[string]ProviderConfig{},
		History:        HistoryConfig{Type: HistoryTypeNone},
		Tracing:        TracingConfig{SampleRate: 1.0},
	}
}

// ProviderIDs returns the configured provider ids in sorted order.
func (c Config) ProviderIDs() []string {
	ids := make([]string, 0, len(c.Providers))
	for id := range c.Providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

func (c Config) Validate() error {
	var issues []string
	var warnings []string

	if c.Iterations < 0 {
		issues = append(issues, "iterations must be non-negative")
	} else if c.Iterations > MaxIterations {
		warnings = append(warnings, fmt.Sprintf("iterations %d exceeds %d and will be clamped", c.Iterations, MaxIterations))
	}
	if c.Delay < 0 {
		issues = append(issues, "delay must be non-negative")
	}
	if c.Timeout < 0 {
		issues = append(issues, "timeout must be non-negative")
	}
	if c.Retries < 0 {
		issues = append(issues, "retries must be non-negative")
	}
	if c.RetryBaseDelay < 0 {
		issues = append(issues, "retry_base_delay must be non-negative")
	}
	if c.RetryMaxDelay < 0 {
		issues = append(issues, "retry_max_delay must be non-negative")
	}
	if c.RetryBaseDelay > 0 && c.RetryMaxDelay > 0 && c.RetryMaxDelay < c.RetryBaseDelay {
		issues = append(issues, "retry_max_delay must not be less than retry_base_delay")
	}

	issues = append(issues, validateProviders(c)...)
	issues = append(issues, validateFeederConfig(c.Feeder)...)
	issues = append(issues, validateHistoryConfig(c.History)...)
	issues = append(issues, validateTracingConfig(c.Tracing)...)

	if c.Output.JSON && c.Output.YAML {
		issues = append(issues, "output: json and yaml are mutually exclusive")
	}
	if c.Output.Dashboard && (c.Output.JSON || c.Output.YAML) {
		warnings = append(warnings, "output: dashboard is ignored with json or yaml output")
	}

	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateProviders(c Config) []string {
	var issues []string
	for _, id := range c.ProviderIDs() {
		p := c.Providers[id]
		if strings.TrimSpace(id) == "" {
			issues = append(issues, "providers: id cannot be empty")
			continue
		}
		if p.Window < 0 {
			issues = append(issues, fmt.Sprintf("providers.%s: window must be non-negative", id))
		}
		if p.BaseURL != "" && !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
			issues = append(issues, fmt.Sprintf("providers.%s: base_url must be an http(s) URL", id))
		}
	}
	return issues
}

func validateFeederConfig(feeder FeederConfig) []string {
	var issues []string
	if strings.TrimSpace(feeder.Path) == "" {
		return nil // No feeder configured
	}

	if strings.TrimSpace(feeder.Type) == "" {
		issues = append(issues, "feeder: type is required when path is specified")
	} else if feeder.Type != "csv" && feeder.Type != "json" {
		issues = append(issues, fmt.Sprintf("feeder: type must be 'csv' or 'json', got %q", feeder.Type))
	}

	return issues
}

func validateHistoryConfig(h HistoryConfig) []string {
	switch h.Type {
	case "", HistoryTypeNone:
		return nil
	case HistoryTypeJSON, HistoryTypeBolt:
		if strings.TrimSpace(h.Path) == "" {
			return []string{fmt.Sprintf("history: path is required for type %q", h.Type)}
		}
		return nil
	default:
		return []string{fmt.Sprintf("history: type must be 'none', 'json' or 'bolt', got %q", h.Type)}
	}
}

func validateTracingConfig(t TracingConfig) []string {
	var issues []string
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	return issues
}

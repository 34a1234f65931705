package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the loader reads, except
// the provider key variables below.
const EnvPrefix = "PROVBENCH"

// envKeys are bound to PROVBENCH_<KEY> with dots replaced by underscores.
var envKeys = []string{
	"iterations",
	"delay",
	"timeout",
	"retries",
	"retry_base_delay",
	"retry_max_delay",
	"only",
	"scenarios",
	"thresholds",
	"feeder.path",
	"feeder.type",
	"output.json",
	"output.yaml",
	"output.html",
	"output.dashboard",
	"output.log_errors",
	"history.type",
	"history.path",
	"tracing.endpoint",
	"tracing.protocol",
	"tracing.service_name",
	"tracing.sample_rate",
	"tracing.insecure",
	"tracing.propagate",
}

// providerKeyEnv lists the conventional key variables per provider. The
// first one set wins.
var providerKeyEnv = map[string][]string{
	"alchemy":  {"ALCHEMY_API_KEY"},
	"goldrush": {"GOLDRUSH_API_KEY", "COVALENT_API_KEY"},
	"mobula":   {"MOBULA_API_KEY"},
	"codex":    {"CODEX_API_KEY"},
}

// Loader handles loading configuration from files, environment and
// command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments, the optional configuration file and
// the environment to produce a Config. Flags win over the environment,
// which wins over the file.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected argument %q", rest[0])
	}

	configPath := flagSet.Lookup("config").Value.String()
	fileViper := viper.New()
	if configPath != "" {
		fileViper.SetConfigFile(configPath)
		if err := fileViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, fileViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyConfigSettings(cfg, envSettings()); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	return cfg, nil
}

// envSettings collects the bound environment variables that are set, shaped
// like a config file.
func envSettings() map[string]interface{} {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	for id, names := range providerKeyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(id) + "_API_KEY"
		_ = v.BindEnv(append([]string{"providers." + id + ".api_key", prefixed}, names...)...)
	}
	return v.AllSettings()
}

// applyConfigSettings applies settings from a config file or the
// environment to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "iterations"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("iterations: %w", err)
		}
		cfg.Iterations = val
	}

	if raw, ok := lookupSetting(settings, "delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("delay: %w", err)
		}
		cfg.Delay = dur
	}

	if raw, ok := lookupSetting(settings, "timeout"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("timeout: %w", err)
		}
		cfg.Timeout = dur
	}

	if raw, ok := lookupSetting(settings, "retries"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("retries: %w", err)
		}
		cfg.Retries = val
	}

	if raw, ok := lookupSetting(settings, "retrybasedelay", "retry_base_delay", "retry-base-delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retryBaseDelay: %w", err)
		}
		cfg.RetryBaseDelay = dur
	}

	if raw, ok := lookupSetting(settings, "retrymaxdelay", "retry_max_delay", "retry-max-delay"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return fmt.Errorf("retryMaxDelay: %w", err)
		}
		cfg.RetryMaxDelay = dur
	}

	if raw, ok := lookupSetting(settings, "providers"); ok {
		if err := mergeProviders(cfg, raw); err != nil {
			return fmt.Errorf("providers: %w", err)
		}
	}

	if raw, ok := lookupSetting(settings, "only"); ok {
		ids, err := asList(raw)
		if err != nil {
			return fmt.Errorf("only: %w", err)
		}
		cfg.Only = normalizeIDs(ids)
	}

	if raw, ok := lookupSetting(settings, "scenarios"); ok {
		scenarios, err := asList(raw)
		if err != nil {
			return fmt.Errorf("scenarios: %w", err)
		}
		cfg.Scenarios = scenarios
	}

	if raw, ok := lookupSetting(settings, "feeder"); ok {
		feeder, err := parseFeeder(raw, cfg.Feeder)
		if err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
		cfg.Feeder = feeder
	}

	if raw, ok := lookupSetting(settings, "output"); ok {
		out, err := parseOutput(raw, cfg.Output)
		if err != nil {
			return fmt.Errorf("output: %w", err)
		}
		cfg.Output = out
	}

	if raw, ok := lookupSetting(settings, "history"); ok {
		history, err := parseHistory(raw, cfg.History)
		if err != nil {
			return fmt.Errorf("history: %w", err)
		}
		cfg.History = history
	}

	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		thresholds, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = thresholds
	}

	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tracing, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tracing
	}

	return nil
}

func mergeProviders(cfg *Config, value interface{}) error {
	if value == nil {
		return nil
	}
	entries, err := toStringKeyMap(value)
	if err != nil {
		return err
	}
	if cfg.Providers == nil {
		cfg.Providers = map[string]ProviderConfig{}
	}
	for id, raw := range entries {
		id = normalizeID(id)
		settings, err := toStringKeyMap(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		p, err := buildProviderConfig(settings, cfg.Providers[id])
		if err != nil {
			return fmt.Errorf("%s: %w", id, err)
		}
		cfg.Providers[id] = p
	}
	return nil
}

func buildProviderConfig(settings map[string]interface{}, p ProviderConfig) (ProviderConfig, error) {
	if raw, ok := lookupSetting(settings, "apikey", "api_key", "api-key", "key"); ok {
		val, err := asString(raw)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("api_key: %w", err)
		}
		p.APIKey = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "baseurl", "base_url", "base-url"); ok {
		val, err := asString(raw)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("base_url: %w", err)
		}
		p.BaseURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "ratelimit", "rate_limit", "rate-limit"); ok {
		val, err := asInt(raw)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("rate_limit: %w", err)
		}
		p.RateLimit = val
	}
	if raw, ok := lookupSetting(settings, "window"); ok {
		dur, err := asDuration(raw)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("window: %w", err)
		}
		p.Window = dur
	}
	if raw, ok := lookupSetting(settings, "enabled"); ok {
		val, err := asBool(raw)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("enabled: %w", err)
		}
		p.Enabled = &val
	}
	return p, nil
}

func parseFeeder(value interface{}, feeder FeederConfig) (FeederConfig, error) {
	if value == nil {
		return feeder, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return FeederConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return FeederConfig{}, fmt.Errorf("path: %w", err)
		}
		feeder.Path = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return FeederConfig{}, fmt.Errorf("type: %w", err)
		}
		feeder.Type = strings.ToLower(strings.TrimSpace(val))
	}
	return feeder, nil
}

func parseOutput(value interface{}, out OutputConfig) (OutputConfig, error) {
	if value == nil {
		return out, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return OutputConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "json"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("json: %w", err)
		}
		out.JSON = val
	}
	if raw, ok := lookupSetting(settings, "yaml"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("yaml: %w", err)
		}
		out.YAML = val
	}
	if raw, ok := lookupSetting(settings, "html"); ok {
		val, err := asString(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("html: %w", err)
		}
		out.HTML = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "dashboard"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("dashboard: %w", err)
		}
		out.Dashboard = val
	}
	if raw, ok := lookupSetting(settings, "logerrors", "log_errors", "log-errors"); ok {
		val, err := asBool(raw)
		if err != nil {
			return OutputConfig{}, fmt.Errorf("log_errors: %w", err)
		}
		out.LogErrors = val
	}
	return out, nil
}

func parseHistory(value interface{}, history HistoryConfig) (HistoryConfig, error) {
	if value == nil {
		return history, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return HistoryConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "type"); ok {
		val, err := asString(raw)
		if err != nil {
			return HistoryConfig{}, fmt.Errorf("type: %w", err)
		}
		history.Type = HistoryType(strings.ToLower(strings.TrimSpace(val)))
	}
	if raw, ok := lookupSetting(settings, "path"); ok {
		val, err := asString(raw)
		if err != nil {
			return HistoryConfig{}, fmt.Errorf("path: %w", err)
		}
		history.Path = strings.TrimSpace(val)
	}
	return history, nil
}

func parseTracing(value interface{}, tracing TracingConfig) (TracingConfig, error) {
	if value == nil {
		return tracing, nil
	}
	settings, err := toStringKeyMap(value)
	if err != nil {
		return TracingConfig{}, err
	}
	if raw, ok := lookupSetting(settings, "endpoint"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("endpoint: %w", err)
		}
		tracing.Endpoint = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("protocol: %w", err)
		}
		tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "servicename", "service_name", "service-name"); ok {
		val, err := asString(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("service_name: %w", err)
		}
		tracing.ServiceName = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "samplerate", "sample_rate", "sample-rate"); ok {
		val, err := asFloat64(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("sample_rate: %w", err)
		}
		tracing.SampleRate = val
	}
	if raw, ok := lookupSetting(settings, "insecure"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("insecure: %w", err)
		}
		tracing.Insecure = val
	}
	if raw, ok := lookupSetting(settings, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return TracingConfig{}, fmt.Errorf("propagate: %w", err)
		}
		tracing.Propagate = &val
	}
	return tracing, nil
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

func normalizeIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = normalizeID(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

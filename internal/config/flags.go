package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "provbench",
		Short:         "Benchmark blockchain data providers across a fixed scenario matrix",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Run shape
	flags.IntP("iterations", "n", DefaultIterations, fmt.Sprintf("Iterations per provider and scenario (max %d)", MaxIterations))
	flags.Duration("delay", DefaultDelay, "Dispatch stagger between iterations of the same pair")
	flags.Duration("timeout", DefaultTimeout, "Per-attempt request timeout")
	flags.Int("retries", DefaultRetries, "Retries after a retryable failure")
	flags.Duration("retry-base-delay", DefaultRetryBaseDelay, "Base delay for exponential backoff")
	flags.Duration("retry-max-delay", DefaultRetryMaxDelay, "Upper bound for a single backoff delay")

	// Provider selection
	flags.StringSliceP("provider", "p", nil, "Only benchmark these providers (repeatable)")
	flags.StringSlice("disable", nil, "Skip these providers (repeatable)")
	flags.StringSliceP("scenario", "s", nil, "Only run these scenarios (repeatable)")
	flags.StringToString("api-key", nil, "Provider API key in provider=key form")
	flags.StringToString("base-url", nil, "Provider base URL override in provider=url form")
	flags.StringToInt("rate-limit", nil, "Provider requests per second in provider=n form (negative means unlimited)")

	// Output flags
	flags.Bool("json-output", false, "Emit JSON formatted output")
	flags.Bool("yaml-output", false, "Emit YAML formatted output")
	flags.String("html-output", "", "Generate HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard")
	flags.Bool("log-errors", false, "Log each failed request to stderr")
	flags.String("config", "", "Path to configuration file (JSON or YAML)")

	// Feeder flags
	flags.String("feeder-path", "", "Path to CSV or JSON file of wallet targets rotated per request")
	flags.String("feeder-type", "", "Type of feeder file: 'csv' or 'json'")

	// History flags
	flags.String("history-type", "", "Persist finished runs: 'none', 'json' or 'bolt'")
	flags.String("history-path", "", "History file path")

	// Threshold flags
	flags.StringSlice("threshold", nil, "Thresholds (repeatable, e.g. 'latency:p95 < 500' or 'success_rate > 99')")

	// Tracing flags
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "", "OTLP protocol: 'grpc' or 'http'")
	flags.String("tracing-service-name", "", "Service name reported on spans")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of units to sample (0.0-1.0)")
	flags.Bool("tracing-insecure", false, "Disable TLS to the collector")
	flags.Bool("tracing-propagate", false, "Inject W3C trace headers into provider requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\n%s\n\nFlags:\n", cmd.UseLine(), cmd.Short)
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
	fmt.Fprintf(out, "\nCommands:\n  history list|show <id>|clear   Inspect persisted runs\n")
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file and environment.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("iterations") {
		val, err := fs.GetInt("iterations")
		if err != nil {
			return err
		}
		cfg.Iterations = val
	}
	if fs.Changed("delay") {
		val, err := fs.GetDuration("delay")
		if err != nil {
			return err
		}
		cfg.Delay = val
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("retries") {
		val, err := fs.GetInt("retries")
		if err != nil {
			return err
		}
		cfg.Retries = val
	}
	if fs.Changed("retry-base-delay") {
		val, err := fs.GetDuration("retry-base-delay")
		if err != nil {
			return err
		}
		cfg.RetryBaseDelay = val
	}
	if fs.Changed("retry-max-delay") {
		val, err := fs.GetDuration("retry-max-delay")
		if err != nil {
			return err
		}
		cfg.RetryMaxDelay = val
	}

	if fs.Changed("provider") {
		val, err := fs.GetStringSlice("provider")
		if err != nil {
			return err
		}
		cfg.Only = normalizeIDs(val)
	}
	if fs.Changed("disable") {
		val, err := fs.GetStringSlice("disable")
		if err != nil {
			return err
		}
		disabled := false
		for _, id := range normalizeIDs(val) {
			p := cfg.Providers[id]
			p.Enabled = &disabled
			cfg.Providers[id] = p
		}
	}
	if fs.Changed("scenario") {
		val, err := fs.GetStringSlice("scenario")
		if err != nil {
			return err
		}
		cfg.Scenarios = val
	}
	if fs.Changed("api-key") {
		val, err := fs.GetStringToString("api-key")
		if err != nil {
			return err
		}
		for id, key := range val {
			id = normalizeID(id)
			p := cfg.Providers[id]
			p.APIKey = strings.TrimSpace(key)
			cfg.Providers[id] = p
		}
	}
	if fs.Changed("base-url") {
		val, err := fs.GetStringToString("base-url")
		if err != nil {
			return err
		}
		for id, u := range val {
			id = normalizeID(id)
			p := cfg.Providers[id]
			p.BaseURL = strings.TrimSpace(u)
			cfg.Providers[id] = p
		}
	}
	if fs.Changed("rate-limit") {
		val, err := fs.GetStringToInt("rate-limit")
		if err != nil {
			return err
		}
		for id, n := range val {
			id = normalizeID(id)
			p := cfg.Providers[id]
			p.RateLimit = n
			cfg.Providers[id] = p
		}
	}

	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.Output.JSON = val
	}
	if fs.Changed("yaml-output") {
		val, err := fs.GetBool("yaml-output")
		if err != nil {
			return err
		}
		cfg.Output.YAML = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.Output.HTML = strings.TrimSpace(val)
	}
	if fs.Changed("dashboard") {
		val, err := fs.GetBool("dashboard")
		if err != nil {
			return err
		}
		cfg.Output.Dashboard = val
	}
	if fs.Changed("log-errors") {
		val, err := fs.GetBool("log-errors")
		if err != nil {
			return err
		}
		cfg.Output.LogErrors = val
	}

	if fs.Changed("feeder-path") {
		val, err := fs.GetString("feeder-path")
		if err != nil {
			return err
		}
		cfg.Feeder.Path = strings.TrimSpace(val)
	}
	if fs.Changed("feeder-type") {
		val, err := fs.GetString("feeder-type")
		if err != nil {
			return err
		}
		cfg.Feeder.Type = strings.ToLower(strings.TrimSpace(val))
	}

	if fs.Changed("history-type") {
		val, err := fs.GetString("history-type")
		if err != nil {
			return err
		}
		cfg.History.Type = HistoryType(strings.ToLower(strings.TrimSpace(val)))
	}
	if fs.Changed("history-path") {
		val, err := fs.GetString("history-path")
		if err != nil {
			return err
		}
		cfg.History.Path = strings.TrimSpace(val)
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-service-name") {
		val, err := fs.GetString("tracing-service-name")
		if err != nil {
			return err
		}
		cfg.Tracing.ServiceName = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	return nil
}

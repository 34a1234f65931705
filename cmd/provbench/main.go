package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/torosent/provbench/internal/config"
	"github.com/torosent/provbench/internal/dashboard"
	"github.com/torosent/provbench/internal/feeder"
	"github.com/torosent/provbench/internal/history"
	"github.com/torosent/provbench/internal/metrics"
	"github.com/torosent/provbench/internal/output"
	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/request"
	"github.com/torosent/provbench/internal/runner"
	"github.com/torosent/provbench/internal/threshold"
	"github.com/torosent/provbench/internal/tracing"
)

const (
	progressInterval = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) > 0 && args[0] == "history" {
		return runHistory(args[1:], stdout)
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
		defer done()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(stderr, "[provbench] tracing shutdown: %v\n", err)
		}
	}()

	registry := provider.DefaultRegistry()
	var logger request.FailureLogger
	if cfg.Output.LogErrors {
		logger = &stderrFailureLogger{w: stderr}
	}
	settings, err := buildSettings(cfg, registry, logger, tp.ShouldPropagate())
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	opts := []runner.Option{
		runner.WithRecorder(collector),
		runner.WithTracer(tp.Tracer()),
		runner.WithoutEvents(),
	}

	if cfg.Feeder.Path != "" {
		f, err := feeder.Open(cfg.Feeder.Path, cfg.Feeder.Type)
		if err != nil {
			return fmt.Errorf("feeder: %w", err)
		}
		defer f.Close()
		opts = append(opts, runner.WithTargets(feeder.NewTargets(f)))
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, runner.WithSink(store))
	}

	collector.Start()
	h, err := runner.StartRun(ctx, runConfiguration(cfg), registry, settings, opts...)
	if err != nil {
		return err
	}

	if cfg.Output.Dashboard {
		dash, err := dashboard.New(collector, h, dashboardConfig(cfg, registry), cancel)
		if err != nil {
			h.Abort()
			_, _ = h.Wait(context.Background())
			return err
		}
		dash.Start()
		<-h.Done()
		dash.Stop()
	} else if !cfg.Output.JSON && !cfg.Output.YAML {
		progress := output.NewProgressReporter(collector, h, progressInterval, stdout)
		progress.Start()
		<-h.Done()
		progress.Stop()
		fmt.Fprintln(stdout)
	}

	snap, sinkErr := h.Wait(context.Background())
	overall := collector.Stats(collector.Elapsed())
	results := threshold.NewEvaluator(thresholds).Evaluate(snap.Summaries())
	report := output.NewReport(snap, overall, results)

	switch {
	case cfg.Output.JSON:
		if err := output.PrintJSONReport(stdout, report); err != nil {
			return err
		}
	case cfg.Output.YAML:
		if err := output.PrintYAMLReport(stdout, report); err != nil {
			return err
		}
	default:
		output.PrintReport(stdout, report)
	}

	if cfg.Output.HTML != "" {
		if err := writeHTMLReport(cfg.Output.HTML, report); err != nil {
			return err
		}
		if !cfg.Output.JSON && !cfg.Output.YAML {
			fmt.Fprintf(stdout, "\nHTML report written to %s\n", cfg.Output.HTML)
		}
	}

	if sinkErr != nil {
		return fmt.Errorf("saving run %s: %w", snap.ID, sinkErr)
	}
	return exitError(snap, overall, results)
}

func runConfiguration(cfg *config.Config) runner.RunConfiguration {
	return runner.RunConfiguration{
		IterationsPerScenario: cfg.Iterations,
		InterRequestDelay:     cfg.Delay,
		Timeout:               cfg.Timeout,
		MaxRetries:            cfg.Retries,
		BaseRetryDelay:        cfg.RetryBaseDelay,
		MaxRetryDelay:         cfg.RetryMaxDelay,
	}
}

func dashboardConfig(cfg *config.Config, registry *provider.Registry) dashboard.RunConfig {
	providers := cfg.Only
	if len(providers) == 0 {
		for _, id := range registry.IDs() {
			if pc, ok := cfg.Providers[id]; !ok || pc.IsEnabled() {
				providers = append(providers, id)
			}
		}
	}
	return dashboard.RunConfig{
		Providers:  providers,
		Scenarios:  cfg.Scenarios,
		Iterations: runConfiguration(cfg).Normalize().IterationsPerScenario,
		Delay:      cfg.Delay,
		Timeout:    cfg.Timeout,
		Retries:    cfg.Retries,
		ConfigFile: cfg.ConfigFile,
	}
}

func writeHTMLReport(path string, report output.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("html report: %w", err)
	}
	if err := output.GenerateHTMLReport(f, report); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// exitError maps a finished run to the process exit status.
func exitError(snap runner.RunSnapshot, overall metrics.Stats, results []threshold.Result) error {
	if snap.State == runner.StateStopped {
		return fmt.Errorf("run %s aborted after %d/%d requests", snap.ID, snap.Completed, snap.Total)
	}
	if !threshold.AllPassed(results) {
		failed := 0
		for _, r := range results {
			if !r.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	if overall.Total > 0 && overall.Successes == 0 {
		return fmt.Errorf("all %d requests failed", overall.Total)
	}
	return nil
}

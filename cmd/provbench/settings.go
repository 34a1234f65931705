package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/torosent/provbench/internal/config"
	"github.com/torosent/provbench/internal/httpclient"
	"github.com/torosent/provbench/internal/provider"
	"github.com/torosent/provbench/internal/request"
)

type stderrFailureLogger struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *stderrFailureLogger) LogFailure(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "[provbench] request failed: %v\n", err)
}

// buildSettings turns the provider section of cfg into adapter settings for
// every registered provider. Providers outside --provider, or disabled in
// config, are marked Disabled so the registry never builds them.
func buildSettings(cfg *config.Config, registry *provider.Registry, logger request.FailureLogger, propagate bool) (map[string]provider.Settings, error) {
	known := registry.IDs()
	for _, id := range cfg.ProviderIDs() {
		if _, ok := registry.Lookup(id); !ok {
			return nil, fmt.Errorf("providers.%s: unknown provider (available: %s)", id, strings.Join(known, ", "))
		}
	}
	only := make(map[string]bool, len(cfg.Only))
	for _, id := range cfg.Only {
		if _, ok := registry.Lookup(id); !ok {
			return nil, fmt.Errorf("--provider %s: unknown provider (available: %s)", id, strings.Join(known, ", "))
		}
		only[id] = true
	}

	scenarios, err := scenarioFilter(cfg.Scenarios)
	if err != nil {
		return nil, err
	}

	client := httpclient.NewClient(0)
	settings := make(map[string]provider.Settings, len(known))
	for _, id := range known {
		pc := cfg.Providers[id]
		settings[id] = provider.Settings{
			APIKey:     pc.APIKey,
			BaseURL:    pc.BaseURL,
			RateLimit:  pc.RateLimit,
			RateWindow: pc.Window,
			Disabled:   !pc.IsEnabled() || (len(only) > 0 && !only[id]),
			HTTPClient: client,
			Logger:     logger,
			Propagate:  propagate,
			Scenarios:  scenarios,
		}
	}
	return settings, nil
}

func scenarioFilter(names []string) (provider.CapabilitySet, error) {
	var set provider.CapabilitySet
	for _, name := range names {
		sc, err := provider.ParseScenario(name)
		if err != nil {
			return 0, fmt.Errorf("--scenario: %w", err)
		}
		set |= provider.Capabilities(sc)
	}
	return set, nil
}

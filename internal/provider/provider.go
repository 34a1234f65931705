// Package provider defines the contract every data-provider adapter satisfies
// and ships adapters for GoldRush, Alchemy, Mobula and Codex.
//
// An adapter declares the scenarios it implements through a CapabilitySet;
// the runner only schedules declared scenarios. Adapters measure calls with
// request.Executor and fail with *request.RequestError.
package provider

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/torosent/provbench/internal/request"
)

// Default benchmark target when no feeder supplies one.
const (
	DefaultWallet   = "0xd8dA6BF26964aF9D7eEd9e03E53415D37aA96045"
	DefaultChain    = "eth-mainnet"
	DefaultAsset    = "ethereum"
	DefaultSymbol   = "ETH"
	DefaultContract = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
)

// Client is a data-provider adapter.
type Client interface {
	Name() string
	// Configured reports whether the adapter has what it needs to run. It
	// never touches the network.
	Configured() bool
	Capabilities() CapabilitySet
	Run(ctx context.Context, scenario Scenario, target Target) (Measurement, error)
}

// Measurement is the normalized result of one successful scenario call.
type Measurement struct {
	LatencyMs    float64
	TTFBMs       *float64
	PayloadBytes *int64
	HTTPStatus   int
}

// MeasurementFrom converts an executor result.
func MeasurementFrom(res request.Result) Measurement {
	ttfb := res.TTFBMs()
	size := res.PayloadBytes
	return Measurement{
		LatencyMs:    res.LatencyMs(),
		TTFBMs:       &ttfb,
		PayloadBytes: &size,
		HTTPStatus:   res.HTTPStatus,
	}
}

// Target is the wallet and asset a scenario queries.
type Target struct {
	Address  string
	Chain    string
	Asset    string // Mobula asset name
	Symbol   string // ticker for price lookups by symbol
	Contract string // token contract for price lookups by address
}

// DefaultTarget returns the well-known wallet on Ethereum mainnet.
func DefaultTarget() Target {
	return Target{
		Address:  DefaultWallet,
		Chain:    DefaultChain,
		Asset:    DefaultAsset,
		Symbol:   DefaultSymbol,
		Contract: DefaultContract,
	}
}

// WithDefaults fills empty fields from DefaultTarget.
func (t Target) WithDefaults() Target {
	d := DefaultTarget()
	if strings.TrimSpace(t.Address) == "" {
		t.Address = d.Address
	}
	if strings.TrimSpace(t.Chain) == "" {
		t.Chain = d.Chain
	}
	if strings.TrimSpace(t.Asset) == "" {
		t.Asset = d.Asset
	}
	if strings.TrimSpace(t.Symbol) == "" {
		t.Symbol = d.Symbol
	}
	if strings.TrimSpace(t.Contract) == "" {
		t.Contract = d.Contract
	}
	return t
}

// Handle binds a provider id to a freshly built client and its rate limit.
type Handle struct {
	ID          string
	DisplayName string
	Client      Client
	// RateLimit is the number of requests allowed per RateWindow; zero or
	// negative means unlimited.
	RateLimit  int
	RateWindow time.Duration
}

// Settings configures one adapter instance.
type Settings struct {
	APIKey  string
	BaseURL string // overrides every endpoint root, used by tests and proxies
	Policy  request.Policy
	// RateLimit and RateWindow override the provider default when RateLimit != 0.
	RateLimit  int
	RateWindow time.Duration
	Disabled   bool
	HTTPClient *http.Client
	Logger     request.FailureLogger
	// Propagate injects W3C trace context into outgoing requests.
	Propagate bool
	// Scenarios restricts the adapter's capabilities; zero keeps them all.
	Scenarios CapabilitySet
}

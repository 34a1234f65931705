package provider

import (
	"fmt"
	"strings"
)

// Scenario is one of the fixed benchmark test categories.
type Scenario string

const (
	BalanceLookup Scenario = "balanceLookup"
	Transactions  Scenario = "transactions"
	NftMetadata   Scenario = "nftMetadata"
	TokenPrices   Scenario = "tokenPrices"
)

var allScenarios = []Scenario{BalanceLookup, Transactions, NftMetadata, TokenPrices}

// AllScenarios returns every scenario in display order.
func AllScenarios() []Scenario {
	out := make([]Scenario, len(allScenarios))
	copy(out, allScenarios)
	return out
}

// Label returns the human readable scenario name.
func (s Scenario) Label() string {
	switch s {
	case BalanceLookup:
		return "Balance Lookup"
	case Transactions:
		return "Transactions"
	case NftMetadata:
		return "NFT Metadata"
	case TokenPrices:
		return "Token Prices"
	default:
		return string(s)
	}
}

func (s Scenario) String() string {
	return string(s)
}

func (s Scenario) bit() CapabilitySet {
	for i, candidate := range allScenarios {
		if candidate == s {
			return 1 << uint(i)
		}
	}
	return 0
}

// ParseScenario accepts the canonical id case-insensitively, plus a few
// dashed aliases used on the command line.
func ParseScenario(value string) (Scenario, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	normalized = strings.NewReplacer("-", "", "_", "", " ", "").Replace(normalized)
	switch normalized {
	case "balancelookup", "balance", "balances":
		return BalanceLookup, nil
	case "transactions", "transaction", "txs":
		return Transactions, nil
	case "nftmetadata", "nft", "nfts":
		return NftMetadata, nil
	case "tokenprices", "prices", "price":
		return TokenPrices, nil
	}
	return "", fmt.Errorf("unknown scenario %q", value)
}

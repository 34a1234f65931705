package provider

import (
	"context"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/torosent/provbench/internal/httpclient"
)

const CodexID = "codex"

const (
	codexBalancesQuery = `query Balances($address: String!, $networkId: Int!) {
  balances(input: { walletAddress: $address, networks: [$networkId], limit: 100 }) {
    items { tokenAddress balance }
  }
}`
	codexMakerEventsQuery = `query MakerEvents($address: String!, $networkId: Int!) {
  getTokenEventsForMaker(limit: 10, query: { maker: $address, networkId: $networkId }) {
    items { timestamp transactionHash eventDisplayType }
  }
}`
	codexNftCollectionsQuery = `query NftCollections($address: String!) {
  walletNftCollections(input: { walletAddress: $address }) {
    items { collectionId quantity }
  }
}`
	codexTokenQuery = `query Token($address: String!, $networkId: Int!) {
  token(input: { address: $address, networkId: $networkId }) {
    name symbol decimals
  }
}`
)

var codexNetworks = map[string]int{
	"eth-mainnet":      1,
	"base-mainnet":     8453,
	"matic-mainnet":    137,
	"arbitrum-mainnet": 42161,
	"optimism-mainnet": 10,
	"bsc-mainnet":      56,
}

// Codex queries the Codex GraphQL API.
type Codex struct {
	httpAdapter
}

func NewCodex(s Settings) Client {
	return &Codex{httpAdapter: newHTTPAdapter(CodexID, s)}
}

func (c *Codex) Configured() bool {
	return len(c.apiKey) > 5
}

func (c *Codex) Capabilities() CapabilitySet {
	return AllCapabilities()
}

func (c *Codex) Run(ctx context.Context, s Scenario, t Target) (Measurement, error) {
	t = t.WithDefaults()
	network := codexNetworkID(t.Chain)
	switch s {
	case BalanceLookup:
		return c.query(ctx, codexBalancesQuery, map[string]any{"address": t.Address, "networkId": network})
	case Transactions:
		return c.query(ctx, codexMakerEventsQuery, map[string]any{"address": t.Address, "networkId": network})
	case NftMetadata:
		return c.query(ctx, codexNftCollectionsQuery, map[string]any{"address": t.Address})
	case TokenPrices:
		return c.query(ctx, codexTokenQuery, map[string]any{"address": t.Contract, "networkId": network})
	}
	return Measurement{}, unsupported(c.name, s)
}

func (c *Codex) query(ctx context.Context, query string, variables map[string]any) (Measurement, error) {
	body, err := httpclient.JSONBody(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return Measurement{}, err
	}
	return c.call(ctx, httpclient.Endpoint{
		Method: http.MethodPost,
		URL:    c.root("https://graph.codex.io/graphql"),
		Headers: map[string]string{
			"Content-Type":  "application/json",
			"Authorization": codexAuthorization(c.apiKey),
		},
		Body: body,
	}, graphQLEnvelope)
}

// codexAuthorization sends session JWTs as bearer tokens and plain API keys
// as-is.
func codexAuthorization(key string) string {
	if len(strings.Split(key, ".")) == 3 {
		return "Bearer " + key
	}
	return key
}

func codexNetworkID(chain string) int {
	if id, ok := codexNetworks[chain]; ok {
		return id
	}
	return 1
}

func graphQLEnvelope(body gjson.Result) string {
	errs := body.Get("errors")
	if !errs.IsArray() || len(errs.Array()) == 0 {
		return ""
	}
	if msg := errs.Get("0.message").String(); msg != "" {
		return msg
	}
	return "GraphQL error"
}

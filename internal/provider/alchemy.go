package provider

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/torosent/provbench/internal/httpclient"
)

const AlchemyID = "alchemy"

// Alchemy queries balances and transfers over JSON-RPC and NFTs and prices
// over REST.
type Alchemy struct {
	httpAdapter
}

func NewAlchemy(s Settings) Client {
	return &Alchemy{httpAdapter: newHTTPAdapter(AlchemyID, s)}
}

func (a *Alchemy) Configured() bool {
	return len(a.apiKey) > 10
}

func (a *Alchemy) Capabilities() CapabilitySet {
	return AllCapabilities()
}

func (a *Alchemy) Run(ctx context.Context, s Scenario, t Target) (Measurement, error) {
	t = t.WithDefaults()
	key := url.PathEscape(a.apiKey)
	switch s {
	case BalanceLookup:
		return a.rpc(ctx, t.Chain, "alchemy_getTokenBalances", []any{t.Address, "erc20"})
	case Transactions:
		return a.rpc(ctx, t.Chain, "alchemy_getAssetTransfers", []any{map[string]any{
			"fromAddress": t.Address,
			"category":    []string{"external", "erc20"},
			"maxCount":    "0x14",
		}})
	case NftMetadata:
		return a.call(ctx, httpclient.Endpoint{
			URL:   a.root("https://"+t.Chain+".g.alchemy.com") + "/nft/v3/" + key + "/getNFTsForOwner",
			Query: url.Values{"owner": {t.Address}, "pageSize": {"10"}},
		}, jsonOnly)
	case TokenPrices:
		return a.call(ctx, httpclient.Endpoint{
			URL:   a.root("https://api.g.alchemy.com") + "/prices/v1/" + key + "/tokens/by-symbol",
			Query: url.Values{"symbols": {t.Symbol}},
		}, jsonOnly)
	}
	return Measurement{}, unsupported(a.name, s)
}

func (a *Alchemy) rpc(ctx context.Context, chain, method string, params []any) (Measurement, error) {
	body, err := httpclient.JSONBody(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return Measurement{}, err
	}
	return a.call(ctx, httpclient.Endpoint{
		Method:  http.MethodPost,
		URL:     a.root("https://"+chain+".g.alchemy.com") + "/v2/" + url.PathEscape(a.apiKey),
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	}, rpcEnvelope)
}

func rpcEnvelope(body gjson.Result) string {
	rpcErr := body.Get("error")
	if !rpcErr.Exists() || rpcErr.Type == gjson.Null {
		return ""
	}
	if msg := rpcErr.Get("message").String(); msg != "" {
		return msg
	}
	return "RPC error"
}

func jsonOnly(gjson.Result) string {
	return ""
}

package provider

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/torosent/provbench/internal/httpclient"
)

const GoldRushID = "goldrush"

// GoldRush talks to the Covalent REST API.
type GoldRush struct {
	httpAdapter
}

func NewGoldRush(s Settings) Client {
	return &GoldRush{httpAdapter: newHTTPAdapter(GoldRushID, s)}
}

func (g *GoldRush) Configured() bool {
	return len(g.apiKey) > 5
}

func (g *GoldRush) Capabilities() CapabilitySet {
	return AllCapabilities()
}

func (g *GoldRush) Run(ctx context.Context, s Scenario, t Target) (Measurement, error) {
	t = t.WithDefaults()
	root := g.root("https://api.covalenthq.com/v1")
	wallet := root + "/" + url.PathEscape(t.Chain) + "/address/" + url.PathEscape(t.Address)
	page := url.Values{"page-size": {"10"}}

	var ep httpclient.Endpoint
	switch s {
	case BalanceLookup:
		ep = httpclient.Endpoint{URL: wallet + "/balances_v2/"}
	case Transactions:
		ep = httpclient.Endpoint{URL: wallet + "/transactions_v2/", Query: page}
	case NftMetadata:
		ep = httpclient.Endpoint{URL: wallet + "/balances_nft/", Query: page}
	case TokenPrices:
		ep = httpclient.Endpoint{URL: root + "/pricing/historical_by_addresses_v2/" +
			url.PathEscape(t.Chain) + "/USD/" + url.PathEscape(t.Contract) + "/"}
	default:
		return Measurement{}, unsupported(g.name, s)
	}
	ep.Headers = map[string]string{"Authorization": "Bearer " + g.apiKey}
	return g.call(ctx, ep, goldRushEnvelope)
}

func goldRushEnvelope(body gjson.Result) string {
	if !body.Get("error").Bool() {
		return ""
	}
	if msg := body.Get("error_message").String(); msg != "" {
		return msg
	}
	return "GoldRush API error"
}

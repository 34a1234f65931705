package provider

import (
	"context"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/torosent/provbench/internal/httpclient"
)

const MobulaID = "mobula"

// Mobula has no NFT endpoint, so NftMetadata is not declared.
type Mobula struct {
	httpAdapter
}

func NewMobula(s Settings) Client {
	return &Mobula{httpAdapter: newHTTPAdapter(MobulaID, s)}
}

func (m *Mobula) Configured() bool {
	return m.apiKey != ""
}

func (m *Mobula) Capabilities() CapabilitySet {
	return Capabilities(BalanceLookup, Transactions, TokenPrices)
}

func (m *Mobula) Run(ctx context.Context, s Scenario, t Target) (Measurement, error) {
	t = t.WithDefaults()
	root := m.root("https://api.mobula.io/api/1")

	var ep httpclient.Endpoint
	switch s {
	case BalanceLookup:
		ep = httpclient.Endpoint{URL: root + "/wallet/portfolio", Query: url.Values{"wallet": {t.Address}}}
	case Transactions:
		ep = httpclient.Endpoint{URL: root + "/wallet/transactions", Query: url.Values{"wallet": {t.Address}, "limit": {"20"}}}
	case TokenPrices:
		ep = httpclient.Endpoint{URL: root + "/market/data", Query: url.Values{"asset": {t.Asset}}}
	default:
		return Measurement{}, unsupported(m.name, s)
	}
	ep.Headers = map[string]string{
		"Authorization": m.apiKey,
		"Content-Type":  "application/json",
	}
	return m.call(ctx, ep, mobulaEnvelope)
}

func mobulaEnvelope(body gjson.Result) string {
	e := body.Get("error")
	if e.Type == gjson.String && e.String() != "" {
		return e.String()
	}
	return ""
}

// Package httpclient builds provider requests and the shared HTTP client.
//
// An [Endpoint] names the method, URL, query, headers and body of a call.
// [NewRequestBuilder] validates it once; [RequestBuilder.Build] then yields a
// fresh *http.Request per attempt with a replayable body:
//
//	body, _ := httpclient.JSONBody(payload)
//	builder, err := httpclient.NewRequestBuilder(httpclient.Endpoint{
//		Method: http.MethodPost,
//		URL:    "https://eth-mainnet.g.alchemy.com/v2/" + key,
//		Body:   body,
//	})
//	req, err := builder.Build(ctx)
//
// [NewClient] returns a client with connection reuse sized for a benchmark
// run hitting a few provider hosts concurrently.
package httpclient

// Command mockproviders serves canned responses for every bundled provider so
// provbench can be exercised without API keys:
//
//	go run ./scripts/mockproviders -port 8089 -latency 40ms -error-rate 0.1
//	provbench --base-url alchemy=http://localhost:8089/alchemy --api-key alchemy=local-test-key ...
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

type options struct {
	latency   time.Duration
	jitter    time.Duration
	errorRate float64
}

func main() {
	port := flag.Int("port", 0, "Listening port")
	latency := flag.Duration("latency", 25*time.Millisecond, "Base response latency")
	jitter := flag.Duration("jitter", 10*time.Millisecond, "Random extra latency added to each response")
	errorRate := flag.Float64("error-rate", 0, "Fraction of requests answered with HTTP 503 (0.0-1.0)")
	flag.Parse()

	if *port <= 0 {
		log.Fatalf("port must be > 0")
	}
	if *errorRate < 0 || *errorRate > 1 {
		log.Fatalf("error-rate must be between 0 and 1")
	}

	opts := options{latency: *latency, jitter: *jitter, errorRate: *errorRate}
	mux := http.NewServeMux()
	mux.HandleFunc("/alchemy/", opts.wrap(handleAlchemy))
	mux.HandleFunc("/goldrush/", opts.wrap(handleGoldRush))
	mux.HandleFunc("/mobula/", opts.wrap(handleMobula))
	mux.HandleFunc("/codex", opts.wrap(handleCodex))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusNotFound, map[string]any{"error": "unknown provider", "path": r.URL.Path})
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock provider server listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, mux))
}

// wrap applies the simulated latency and failure rate.
func (o options) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		delay := o.latency
		if o.jitter > 0 {
			delay += rand.N(o.jitter)
		}
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
		if o.errorRate > 0 && rand.Float64() < o.errorRate {
			respondJSON(w, http.StatusServiceUnavailable, map[string]any{"error": "simulated outage"})
			return
		}
		next(w, r)
	}
}

func handleAlchemy(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.Contains(r.URL.Path, "/getNFTsForOwner"):
		respondJSON(w, http.StatusOK, map[string]any{
			"ownedNfts":  []map[string]any{{"contract": map[string]any{"address": "0xbc4ca0eda7647a8ab7c2061c2e118a18a936f13d"}, "tokenId": "1"}},
			"totalCount": 1,
		})
	case strings.Contains(r.URL.Path, "/tokens/by-symbol"):
		respondJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{"symbol": r.URL.Query().Get("symbols"), "prices": []map[string]any{{"currency": "usd", "value": "3150.42"}}}},
		})
	case r.Method == http.MethodPost:
		var req struct {
			ID     any    `json:"id"`
			Method string `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondJSON(w, http.StatusOK, map[string]any{"jsonrpc": "2.0", "id": nil, "error": map[string]any{"code": -32700, "message": "parse error"}})
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": map[string]any{"method": req.Method}})
	default:
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
	}
}

func handleGoldRush(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"updated_at": time.Now().UTC().Format(time.RFC3339),
			"items":      []map[string]any{{"contract_ticker_symbol": "ETH", "balance": "1000000000000000000"}},
		},
		"error":         false,
		"error_message": nil,
		"error_code":    nil,
	})
}

func handleMobula(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") == "" {
		respondJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing api key"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"wallet":               r.URL.Query().Get("wallet"),
			"asset":                r.URL.Query().Get("asset"),
			"total_wallet_balance": 4210.5,
		},
	})
}

func handleCodex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondJSON(w, http.StatusMethodNotAllowed, map[string]any{"errors": []map[string]any{{"message": "method not allowed"}}})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"getTokenPrices": []map[string]any{{"priceUsd": 3150.42}}},
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

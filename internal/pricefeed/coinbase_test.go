package pricefeed

import (
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestCoinbase(t *testing.T, handler http.HandlerFunc) *Coinbase {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewCoinbase(CoinbaseOptions{
		BaseURL:       srv.URL,
		Pair:          "BTC-USD",
		Timeout:       2 * time.Second,
		FallbackPrice: decimal.NewFromInt(96000),
		Jitter:        decimal.NewFromInt(25),
	}, rand.New(rand.NewSource(1)), nil, zerolog.Nop())
}

func TestFetchSpotLive(t *testing.T) {
	cb := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/prices/BTC-USD/spot" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"base":"BTC","currency":"USD","amount":"97123.45"}}`))
	})

	q := cb.FetchSpot(context.Background(), decimal.Decimal{})

	if q.Source != SourceCoinbase {
		t.Fatalf("source = %s, want %s", q.Source, SourceCoinbase)
	}
	if want := decimal.RequireFromString("97123.45"); !q.Price.Equal(want) {
		t.Fatalf("price = %s, want %s", q.Price, want)
	}
	if q.At.IsZero() {
		t.Fatal("quote has no timestamp")
	}
}

func TestFetchSpotDegradesOnServerError(t *testing.T) {
	cb := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusInternalServerError)
	})

	last := decimal.NewFromInt(95000)
	q := cb.FetchSpot(context.Background(), last)

	if q.Source != SourceSimulated {
		t.Fatalf("source = %s, want %s", q.Source, SourceSimulated)
	}
	if diff := q.Price.Sub(last).Abs(); diff.GreaterThan(decimal.NewFromInt(25)) {
		t.Fatalf("synthetic step %s exceeds jitter bound", diff)
	}
}

func TestFetchSpotDegradesOnMalformedBody(t *testing.T) {
	cases := map[string]string{
		"not json":     `gateway timeout`,
		"empty amount": `{"data":{"base":"BTC","currency":"USD","amount":""}}`,
		"bad amount":   `{"data":{"amount":"n/a"}}`,
		"non-positive": `{"data":{"amount":"-1"}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			cb := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			})

			q := cb.FetchSpot(context.Background(), decimal.NewFromInt(90000))
			if q.Source != SourceSimulated {
				t.Fatalf("source = %s, want %s", q.Source, SourceSimulated)
			}
		})
	}
}

func TestSyntheticUsesFallbackWithoutHistory(t *testing.T) {
	cb := newTestCoinbase(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	q := cb.FetchSpot(context.Background(), decimal.Decimal{})

	if q.Source != SourceSimulated {
		t.Fatalf("source = %s, want %s", q.Source, SourceSimulated)
	}
	base := decimal.NewFromInt(96000)
	if diff := q.Price.Sub(base).Abs(); diff.GreaterThan(decimal.NewFromInt(25)) {
		t.Fatalf("synthetic price %s not anchored to fallback", q.Price)
	}
	if q.Price.Sign() <= 0 {
		t.Fatalf("synthetic price %s not positive", q.Price)
	}
}

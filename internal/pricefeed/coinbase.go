package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const spotPathFormat = "/prices/%s/spot"

// CoinbaseOptions parameterise the spot fetcher.
type CoinbaseOptions struct {
	BaseURL       string
	Pair          string
	Timeout       time.Duration
	UserAgent     string
	FallbackPrice decimal.Decimal
	Jitter        decimal.Decimal
}

// Coinbase fetches spot quotes from the Coinbase public price API.
type Coinbase struct {
	opts    CoinbaseOptions
	logger  zerolog.Logger
	client  *http.Client
	clock   clockwork.Clock
	baseURL string

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewCoinbase constructs a spot fetcher. The rng drives the synthetic
// fallback walk and is injectable so tests can pin the sequence.
func NewCoinbase(opts CoinbaseOptions, rng *rand.Rand, clock clockwork.Clock, logger zerolog.Logger) *Coinbase {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 4 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coinbase.com/v2"
	}
	if opts.Pair == "" {
		opts.Pair = "BTC-USD"
	}
	if opts.Jitter.IsZero() {
		opts.Jitter = decimal.NewFromInt(25)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Coinbase{
		opts:    opts,
		logger:  logger.With().Str("component", "pricefeed").Logger(),
		client:  &http.Client{Timeout: timeout},
		clock:   clock,
		baseURL: baseURL,
		rng:     rng,
	}
}

// FetchSpot retrieves the current spot price, degrading to a synthetic
// quote on any failure.
func (c *Coinbase) FetchSpot(ctx context.Context, last decimal.Decimal) Quote {
	price, err := c.fetchLive(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("spot fetch failed, using synthetic quote")
		return c.synthetic(last)
	}
	return Quote{Price: price, Source: SourceCoinbase, At: c.clock.Now()}
}

func (c *Coinbase) fetchLive(ctx context.Context) (decimal.Decimal, error) {
	endpoint := c.baseURL + fmt.Sprintf(spotPathFormat, c.opts.Pair)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Decimal{}, err
	}

	if resp.StatusCode != http.StatusOK {
		return decimal.Decimal{}, fmt.Errorf("spot api status %d", resp.StatusCode)
	}

	var body spotResponse
	if err := json.Unmarshal(payload, &body); err != nil {
		return decimal.Decimal{}, err
	}
	if body.Data.Amount == "" {
		return decimal.Decimal{}, fmt.Errorf("spot api returned empty amount")
	}

	price, err := decimal.NewFromString(body.Data.Amount)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse spot amount: %w", err)
	}
	if price.Sign() <= 0 {
		return decimal.Decimal{}, fmt.Errorf("spot api returned non-positive price")
	}

	return price, nil
}

// synthetic applies one bounded random-walk step from the last known price.
func (c *Coinbase) synthetic(last decimal.Decimal) Quote {
	base := last
	if base.Sign() <= 0 {
		base = c.opts.FallbackPrice
	}

	c.rngMu.Lock()
	step := c.rng.Float64()*2 - 1
	c.rngMu.Unlock()

	offset := c.opts.Jitter.Mul(decimal.NewFromFloat(step))
	return Quote{
		Price:  base.Add(offset),
		Source: SourceSimulated,
		At:     c.clock.Now(),
	}
}

type spotResponse struct {
	Data struct {
		Base     string `json:"base"`
		Currency string `json:"currency"`
		Amount   string `json:"amount"`
	} `json:"data"`
}

var _ Fetcher = (*Coinbase)(nil)

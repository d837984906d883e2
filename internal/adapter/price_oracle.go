// Package adapter provides clients for the external systems the curator depends on:
// the token price oracle and the ledger RPC node.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"github.com/token-curator/internal/circuitbreaker"
	"github.com/token-curator/internal/logging"
	"github.com/token-curator/internal/types"
)

var (
	// ErrOracleUnavailable indicates the oracle could not be reached or answered with a server error
	ErrOracleUnavailable = errors.New("price oracle unavailable")
	// ErrOracleRateLimited indicates the oracle rejected the request with 429
	ErrOracleRateLimited = errors.New("price oracle rate limit exceeded")
)

// PriceOracleConfig configures the HTTP price oracle
type PriceOracleConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	RequestsPerSec int
}

// tokenResponse is the oracle's JSON shape for a single token
type tokenResponse struct {
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	MarketCap float64 `json:"market_cap"`
	Liquidity float64 `json:"liquidity"`
	ChartURL  string  `json:"chart_url"`
	Logo      string  `json:"logo"`
}

// PriceOracle looks up token market data by contract address
type PriceOracle struct {
	client  *resty.Client
	limiter *rate.Limiter
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
}

// NewPriceOracle creates a new price oracle client
func NewPriceOracle(cfg PriceOracleConfig) *PriceOracle {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "token-curator/1.0")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	breakerCfg := circuitbreaker.DefaultConfig("price-oracle")
	breakerCfg.IsFailure = func(err error) bool {
		return errors.Is(err, ErrOracleUnavailable)
	}

	return &PriceOracle{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		breaker: circuitbreaker.NewCircuitBreaker(breakerCfg),
		timeout: timeout,
	}
}

// GetTokenByAddress fetches market data for a token.
// Returns (nil, nil) when the oracle has no data for the address.
func (o *PriceOracle) GetTokenByAddress(ctx context.Context, address string) (*types.TokenData, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, unavailable(ctx, err)
	}

	var data *types.TokenData
	err := o.breaker.Execute(ctx, func(ctx context.Context) error {
		var fetchErr error
		data, fetchErr = o.fetch(ctx, address)
		return fetchErr
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return nil, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (o *PriceOracle) fetch(ctx context.Context, address string) (*types.TokenData, error) {
	var body tokenResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetResult(&body).
		Get("/tokens/" + url.PathEscape(address))
	if err != nil {
		logging.WithFields(map[string]interface{}{
			"address": address,
		}).WithError(err).Warn("Price oracle request failed")
		return nil, unavailable(ctx, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusNotFound:
		return nil, nil
	case status == http.StatusTooManyRequests:
		return nil, ErrOracleRateLimited
	case status >= http.StatusInternalServerError:
		return nil, fmt.Errorf("%w: status %d", ErrOracleUnavailable, status)
	case status != http.StatusOK:
		return nil, fmt.Errorf("unexpected oracle status code: %d", status)
	}

	if body.Name == "" && body.Symbol == "" && body.Price == 0 {
		return nil, nil
	}

	return &types.TokenData{
		Name:      body.Name,
		Symbol:    body.Symbol,
		Price:     body.Price,
		MarketCap: body.MarketCap,
		Liquidity: body.Liquidity,
		ChartURL:  body.ChartURL,
		Logo:      body.Logo,
	}, nil
}

// unavailable wraps a transport failure, keeping context.DeadlineExceeded in the chain
// whenever the call ran out of time, including http.Client timeouts that do not wrap it.
func unavailable(ctx context.Context, err error) error {
	var netErr net.Error
	timedOut := errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
	if timedOut && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w: %w", ErrOracleUnavailable, context.DeadlineExceeded, err)
	}
	return fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
}

// BreakerState exposes the circuit state for health reporting
func (o *PriceOracle) BreakerState() circuitbreaker.State {
	return o.breaker.GetState()
}

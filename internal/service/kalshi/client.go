package kalshi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"PredPull/internal/domain/models"
	"PredPull/internal/domain/repository"
	"PredPull/internal/service/ratelimit"
	xhttp "PredPull/pkg/http"
	xlogger "PredPull/pkg/logger"
)

const limitKey = "kalshi:trade-api"

const defaultPageSize = 100

// TradeProgress is invoked after each market's trades are fetched.
// Returning stop=true ends the loop early.
type TradeProgress func(marketIndex int, trades []*models.KalshiTrade) (stop bool, err error)

// Client fetches Kalshi data from the Trade API using cursor pagination.
// Auth headers come from the opaque credential provider.
type Client struct {
	http     *xhttp.Client
	limiter  *ratelimit.Limiter
	logger   *xlogger.Logger
	creds    repository.CredentialProvider
	baseURL  string
	pageSize int
	rate     float64
}

type Option func(*Client)

// WithRate sets the request rate.
func WithRate(perSec float64) Option {
	return func(c *Client) {
		if perSec > 0 {
			c.rate = perSec
		}
	}
}

// WithPageSize overrides the pagination page size.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a Kalshi client.
func New(httpc *xhttp.Client, limiter *ratelimit.Limiter, logger *xlogger.Logger, creds repository.CredentialProvider, baseURL string, opts ...Option) *Client {
	c := &Client{
		http:     httpc,
		limiter:  limiter,
		logger:   logger,
		creds:    creds,
		baseURL:  baseURL,
		pageSize: defaultPageSize,
		rate:     10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	if err := c.limiter.Acquire(ctx, limitKey, c.rate, c.rate); err != nil {
		return err
	}
	var headers map[string]string
	if c.creds != nil {
		h, err := c.creds.Headers(ctx, xhttp.MethodGet, path)
		if err != nil {
			return fmt.Errorf("credentials: %w", err)
		}
		headers = h
	}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		Headers:     headers,
		QueryParams: params,
	}, dest)
}

// FetchEvents pages through events until no cursor is returned. Any request
// failure is fatal.
func (c *Client) FetchEvents(ctx context.Context, activeOnly bool, max int) ([]*models.KalshiEvent, error) {
	var out []*models.KalshiEvent
	cursor := ""
	for {
		params := map[string][]string{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params["cursor"] = []string{cursor}
		}
		if activeOnly {
			params["status"] = []string{"open"}
		}
		var page models.KalshiEventsPage
		if err := c.get(ctx, "/events", params, &page); err != nil {
			return nil, fmt.Errorf("fetch events: %w", err)
		}
		for i := range page.Events {
			out = append(out, &page.Events[i])
		}
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if page.Cursor == "" || len(page.Events) < c.pageSize {
			return out, nil
		}
		cursor = page.Cursor
	}
}

// FetchMarkets pages through markets. Any request failure is fatal.
func (c *Client) FetchMarkets(ctx context.Context, activeOnly bool, max int) ([]*models.KalshiMarket, error) {
	var out []*models.KalshiMarket
	cursor := ""
	for {
		params := map[string][]string{"limit": {strconv.Itoa(c.pageSize)}}
		if cursor != "" {
			params["cursor"] = []string{cursor}
		}
		if activeOnly {
			params["status"] = []string{"open"}
		}
		var page models.KalshiMarketsPage
		if err := c.get(ctx, "/markets", params, &page); err != nil {
			return nil, fmt.Errorf("fetch markets: %w", err)
		}
		for i := range page.Markets {
			out = append(out, &page.Markets[i])
		}
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if page.Cursor == "" || len(page.Markets) < c.pageSize {
			return out, nil
		}
		cursor = page.Cursor
	}
}

// fetchMarketTrades pages one market's trades up to perMarketCap.
func (c *Client) fetchMarketTrades(ctx context.Context, ticker string, perMarketCap int) ([]*models.KalshiTrade, error) {
	var out []*models.KalshiTrade
	cursor := ""
	for {
		params := map[string][]string{
			"ticker": {ticker},
			"limit":  {strconv.Itoa(c.pageSize)},
		}
		if cursor != "" {
			params["cursor"] = []string{cursor}
		}
		var page models.KalshiTradesPage
		if err := c.get(ctx, "/markets/trades", params, &page); err != nil {
			return nil, fmt.Errorf("fetch trades %s: %w", ticker, err)
		}
		for i := range page.Trades {
			out = append(out, &page.Trades[i])
		}
		if perMarketCap > 0 && len(out) >= perMarketCap {
			return out[:perMarketCap], nil
		}
		if page.Cursor == "" || len(page.Trades) < c.pageSize {
			return out, nil
		}
		cursor = page.Cursor
	}
}

// FetchTradesForMarkets walks tickers[startIndex:]. Per-market failures are
// logged and skipped; the progress callback can stop the loop early.
func (c *Client) FetchTradesForMarkets(ctx context.Context, tickers []string, startIndex, perMarketCap int, delay time.Duration, progress TradeProgress) error {
	for i := startIndex; i < len(tickers); i++ {
		trades, err := c.fetchMarketTrades(ctx, tickers[i], perMarketCap)
		if err != nil {
			c.logger.Warn("market trades fetch failed, skipping",
				xlogger.String("ticker", tickers[i]), xlogger.Error(err))
			trades = nil
		}
		if progress != nil {
			stop, err := progress(i, trades)
			if err != nil {
				return err
			}
			if stop {
				return nil
			}
		}
		if delay > 0 && i < len(tickers)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

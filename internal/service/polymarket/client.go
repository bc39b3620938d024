package polymarket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"PredPull/internal/domain/models"
	"PredPull/internal/service/ratelimit"
	xhttp "PredPull/pkg/http"
	xlogger "PredPull/pkg/logger"
)

// Rate limiter keys, one per upstream API.
const (
	limitKeyGamma = "polymarket:gamma"
	limitKeyCLOB  = "polymarket:clob"
	limitKeyData  = "polymarket:data"
)

const defaultPageSize = 100

// TradeProgress is invoked after each market's trades are fetched. Returning
// stop=true ends the multi-market loop early (used for global trade caps).
type TradeProgress func(marketIndex int, trades []*models.PolymarketTrade) (stop bool, err error)

// Client fetches Polymarket data from the Gamma, CLOB and Data APIs. Every
// request is gated by the shared token-bucket limiter.
type Client struct {
	http     *xhttp.Client
	limiter  *ratelimit.Limiter
	logger   *xlogger.Logger
	gammaURL string
	clobURL  string
	dataURL  string
	pageSize int
	rate     float64 // requests per second per API
}

type Option func(*Client)

// WithRate sets the per-API request rate.
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

// New creates a Polymarket client.
func New(httpc *xhttp.Client, limiter *ratelimit.Limiter, logger *xlogger.Logger, gammaURL, clobURL, dataURL string, opts ...Option) *Client {
	c := &Client{
		http:     httpc,
		limiter:  limiter,
		logger:   logger,
		gammaURL: gammaURL,
		clobURL:  clobURL,
		dataURL:  dataURL,
		pageSize: defaultPageSize,
		rate:     5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) get(ctx context.Context, key, url string, params map[string][]string, dest interface{}) error {
	if err := c.limiter.Acquire(ctx, key, c.rate, c.rate); err != nil {
		return err
	}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         url,
		QueryParams: params,
	}, dest)
}

// FetchEvents pages through Gamma events. Any request failure is fatal.
func (c *Client) FetchEvents(ctx context.Context, activeOnly bool, max int) ([]*models.PolymarketEvent, error) {
	var out []*models.PolymarketEvent
	for offset := 0; ; offset += c.pageSize {
		params := map[string][]string{
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if activeOnly {
			params["closed"] = []string{"false"}
		}
		var page []*models.PolymarketEvent
		if err := c.get(ctx, limitKeyGamma, c.gammaURL+"/events", params, &page); err != nil {
			return nil, fmt.Errorf("fetch events offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// FetchMarkets pages through Gamma markets. Any request failure is fatal.
func (c *Client) FetchMarkets(ctx context.Context, activeOnly bool, max int) ([]*models.PolymarketMarket, error) {
	var out []*models.PolymarketMarket
	for offset := 0; ; offset += c.pageSize {
		params := map[string][]string{
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if activeOnly {
			params["closed"] = []string{"false"}
			params["active"] = []string{"true"}
		}
		var page []*models.PolymarketMarket
		if err := c.get(ctx, limitKeyGamma, c.gammaURL+"/markets", params, &page); err != nil {
			return nil, fmt.Errorf("fetch markets offset %d: %w", offset, err)
		}
		out = append(out, page...)
		if max > 0 && len(out) >= max {
			return out[:max], nil
		}
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// FetchMidpoints returns the CLOB midpoint per token id. A failure on one
// token is logged and skipped.
func (c *Client) FetchMidpoints(ctx context.Context, tokenIDs []string) map[string]float64 {
	out := make(map[string]float64, len(tokenIDs))
	for _, id := range tokenIDs {
		var resp struct {
			Mid string `json:"mid"`
		}
		if err := c.get(ctx, limitKeyCLOB, c.clobURL+"/midpoint", map[string][]string{"token_id": {id}}, &resp); err != nil {
			c.logger.Warn("midpoint fetch failed", xlogger.String("token", id), xlogger.Error(err))
			continue
		}
		if v, err := strconv.ParseFloat(resp.Mid, 64); err == nil {
			out[id] = v
		}
	}
	return out
}

// FetchBook fetches one CLOB orderbook.
func (c *Client) FetchBook(ctx context.Context, tokenID string) (*models.PolymarketBook, error) {
	var book models.PolymarketBook
	if err := c.get(ctx, limitKeyCLOB, c.clobURL+"/book", map[string][]string{"token_id": {tokenID}}, &book); err != nil {
		return nil, fmt.Errorf("fetch book %s: %w", tokenID, err)
	}
	return &book, nil
}

// fetchMarketTrades pages through one market's trades up to perMarketCap.
func (c *Client) fetchMarketTrades(ctx context.Context, conditionID string, perMarketCap int) ([]*models.PolymarketTrade, error) {
	var out []*models.PolymarketTrade
	for offset := 0; ; offset += c.pageSize {
		var page []*models.PolymarketTrade
		params := map[string][]string{
			"market": {conditionID},
			"limit":  {strconv.Itoa(c.pageSize)},
			"offset": {strconv.Itoa(offset)},
		}
		if err := c.get(ctx, limitKeyData, c.dataURL+"/trades", params, &page); err != nil {
			return nil, fmt.Errorf("fetch trades %s offset %d: %w", conditionID, offset, err)
		}
		out = append(out, page...)
		if perMarketCap > 0 && len(out) >= perMarketCap {
			return out[:perMarketCap], nil
		}
		if len(page) < c.pageSize {
			return out, nil
		}
	}
}

// FetchTradesForMarkets walks markets[startIndex:] fetching each market's
// trades. A failure on one market is logged and skipped; the loop continues.
// The progress callback runs after every market and can stop the loop. The
// inter-market delay is a second line of defense on top of the token bucket.
func (c *Client) FetchTradesForMarkets(ctx context.Context, conditionIDs []string, startIndex, perMarketCap int, delay time.Duration, progress TradeProgress) error {
	for i := startIndex; i < len(conditionIDs); i++ {
		trades, err := c.fetchMarketTrades(ctx, conditionIDs[i], perMarketCap)
		if err != nil {
			c.logger.Warn("market trades fetch failed, skipping",
				xlogger.String("market", conditionIDs[i]), xlogger.Error(err))
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
		if delay > 0 && i < len(conditionIDs)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil
}

// FetchLeaderboard returns the top traders by volume.
func (c *Client) FetchLeaderboard(ctx context.Context, limit int) ([]*models.PolymarketLeaderboardEntry, error) {
	var out []*models.PolymarketLeaderboardEntry
	params := map[string][]string{
		"window": {"30d"},
		"limit":  {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, limitKeyData, c.dataURL+"/leaderboard", params, &out); err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}
	return out, nil
}

// FetchPositions returns one trader's open positions. Failures are non-fatal
// to the phase; the caller logs and skips.
func (c *Client) FetchPositions(ctx context.Context, address string, limit int) ([]*models.PolymarketPosition, error) {
	var out []*models.PolymarketPosition
	params := map[string][]string{
		"user":  {address},
		"limit": {strconv.Itoa(limit)},
	}
	if err := c.get(ctx, limitKeyData, c.dataURL+"/positions", params, &out); err != nil {
		return nil, fmt.Errorf("fetch positions %s: %w", address, err)
	}
	return out, nil
}

package usecase

import (
	"context"
	"time"

	"PredPull/internal/service/polymarket"
	"PredPull/internal/transform"
	"PredPull/pkg/cache"
	xlogger "PredPull/pkg/logger"
)

const activeTokensKey = "realtime:active_tokens"

// TokenCatalog resolves the token ids of all currently active markets,
// backing cold-start bulk resubscription. The catalog is cached so that
// repeated reconnects do not hammer the markets API.
type TokenCatalog struct {
	client     *polymarket.Client
	cache      cache.Service
	ttl        time.Duration
	maxMarkets int
	logger     *xlogger.Logger
}

func NewTokenCatalog(client *polymarket.Client, c cache.Service, ttl time.Duration, maxMarkets int, logger *xlogger.Logger) *TokenCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxMarkets <= 0 {
		maxMarkets = 500
	}
	return &TokenCatalog{client: client, cache: c, ttl: ttl, maxMarkets: maxMarkets, logger: logger}
}

// ActiveTokens returns the cached token set, refreshing it from the
// markets API on a miss.
func (tc *TokenCatalog) ActiveTokens(ctx context.Context) ([]string, error) {
	var tokens []string
	if err := tc.cache.Get(ctx, activeTokensKey, &tokens); err == nil && len(tokens) > 0 {
		return tokens, nil
	}

	raws, err := tc.client.FetchMarkets(ctx, true, tc.maxMarkets)
	if err != nil {
		return nil, err
	}
	for _, m := range transform.PolymarketMarkets(raws) {
		tokens = append(tokens, m.TokenIDs...)
	}
	if err := tc.cache.Set(ctx, activeTokensKey, tokens, tc.ttl); err != nil {
		tc.logger.Warn("token catalog cache write failed", xlogger.Error(err))
	}
	return tokens, nil
}

// Invalidate drops the cached set so the next read refetches.
func (tc *TokenCatalog) Invalidate(ctx context.Context) {
	if err := tc.cache.Delete(ctx, activeTokensKey); err != nil {
		tc.logger.Warn("token catalog invalidate failed", xlogger.Error(err))
	}
}

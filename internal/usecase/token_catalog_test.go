package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"PredPull/internal/service/polymarket"
	"PredPull/internal/service/ratelimit"
	"PredPull/pkg/cache"
	xhttp "PredPull/pkg/http"
)

func tokenCatalogServer(t *testing.T, fetches *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		n := atomic.LoadInt32(fetches)
		// token ids change per fetch so a refetch is observable
		markets := []map[string]interface{}{
			{
				"id":           "m1",
				"conditionId":  "c1",
				"question":     "will it happen",
				"active":       true,
				"clobTokenIds": fmt.Sprintf(`["tok-%d-a","tok-%d-b"]`, n, n),
			},
		}
		_ = json.NewEncoder(w).Encode(markets)
	}))
}

func TestTokenCatalogCachesAndInvalidates(t *testing.T) {
	var fetches int32
	srv := tokenCatalogServer(t, &fetches)
	defer srv.Close()

	client := polymarket.New(
		xhttp.NewClient(xhttp.WithTimeout(5*time.Second)),
		ratelimit.New(),
		testLogger(t),
		srv.URL, srv.URL, srv.URL,
		polymarket.WithPageSize(10),
		polymarket.WithRate(1000),
	)
	tc := NewTokenCatalog(client, cache.NewMemoryCache(), time.Minute, 10, testLogger(t))

	ctx := context.Background()
	first, err := tc.ActiveTokens(ctx)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if len(first) != 2 || first[0] != "tok-1-a" {
		t.Fatalf("unexpected tokens %v", first)
	}

	// cache hit: no extra round-trip
	second, err := tc.ActiveTokens(ctx)
	if err != nil {
		t.Fatalf("cached fetch: %v", err)
	}
	if atomic.LoadInt32(&fetches) != 1 {
		t.Fatalf("expected 1 upstream fetch, got %d", fetches)
	}
	if second[0] != "tok-1-a" {
		t.Fatalf("cached tokens changed: %v", second)
	}

	// invalidation forces a refetch with the fresh set
	tc.Invalidate(ctx)
	third, err := tc.ActiveTokens(ctx)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if atomic.LoadInt32(&fetches) != 2 {
		t.Fatalf("expected 2 upstream fetches after invalidate, got %d", fetches)
	}
	if third[0] != "tok-2-a" {
		t.Fatalf("expected refreshed tokens, got %v", third)
	}
}

package kalshi

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strconv"
    "sync/atomic"
    "testing"
    "time"

    "PredPull/internal/domain/models"
    "PredPull/internal/service/ratelimit"
    xhttp "PredPull/pkg/http"
    xlogger "PredPull/pkg/logger"
)

type staticCreds map[string]string

func (c staticCreds) Headers(ctx context.Context, method, path string) (map[string]string, error) {
    return c, nil
}

func testClient(t *testing.T, srv *httptest.Server, pageSize int) *Client {
    t.Helper()
    l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
    if err != nil {
        t.Fatalf("logger: %v", err)
    }
    return New(
        xhttp.NewClient(xhttp.WithTimeout(5*time.Second)),
        ratelimit.New(),
        l,
        staticCreds{"KALSHI-ACCESS-KEY": "test"},
        srv.URL,
        WithPageSize(pageSize),
        WithRate(1000),
    )
}

func TestFetchMarketsCursorTermination(t *testing.T) {
    var requests int32
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        atomic.AddInt32(&requests, 1)
        if got := r.Header.Get("KALSHI-ACCESS-KEY"); got != "test" {
            t.Errorf("missing auth header, got %q", got)
        }
        page := models.KalshiMarketsPage{}
        switch r.URL.Query().Get("cursor") {
        case "":
            page.Cursor = "next"
            for i := 0; i < 2; i++ {
                page.Markets = append(page.Markets, models.KalshiMarket{Ticker: "M" + strconv.Itoa(i)})
            }
        case "next":
            // short final page, no cursor
            page.Markets = append(page.Markets, models.KalshiMarket{Ticker: "M2"})
        default:
            t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
        }
        _ = json.NewEncoder(w).Encode(page)
    }))
    defer srv.Close()

    c := testClient(t, srv, 2)
    got, err := c.FetchMarkets(context.Background(), true, 0)
    if err != nil {
        t.Fatalf("fetch: %v", err)
    }
    if len(got) != 3 {
        t.Fatalf("expected 3 markets, got %d", len(got))
    }
    if n := atomic.LoadInt32(&requests); n != 2 {
        t.Fatalf("missing cursor should stop the loop after 2 requests, got %d", n)
    }
}

func TestFetchTradesPerMarketCap(t *testing.T) {
    srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        page := models.KalshiTradesPage{Cursor: "more"}
        for i := 0; i < 2; i++ {
            page.Trades = append(page.Trades, models.KalshiTrade{TradeID: strconv.Itoa(i), Ticker: "M0"})
        }
        _ = json.NewEncoder(w).Encode(page)
    }))
    defer srv.Close()

    c := testClient(t, srv, 2)
    var total int
    err := c.FetchTradesForMarkets(context.Background(), []string{"M0"}, 0, 3, 0,
        func(i int, trades []*models.KalshiTrade) (bool, error) {
            total += len(trades)
            return false, nil
        })
    if err != nil {
        t.Fatalf("fetch: %v", err)
    }
    if total != 3 {
        t.Fatalf("per-market cap not enforced: got %d", total)
    }
}

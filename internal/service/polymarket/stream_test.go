package polymarket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"PredPull/internal/domain/models"
	xlogger "PredPull/pkg/logger"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func streamLogger(t *testing.T) *xlogger.Logger {
	t.Helper()
	l, err := xlogger.New(&xlogger.Config{Level: "error", Format: "console", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting: %s", msg)
}

func TestStreamBufferedSubscribeFlushedOnConnect(t *testing.T) {
	received := make(chan subscribeCmd, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var cmd subscribeCmd
			if err := conn.ReadJSON(&cmd); err != nil {
				return
			}
			received <- cmd
		}
	}))
	defer srv.Close()

	s := NewStream(wsURL(srv), streamLogger(t),
		WithPingInterval(time.Hour),
		WithSubscribeChunks(2, time.Millisecond))

	// buffered while disconnected, not an error
	if err := s.Subscribe(context.Background(), []string{"a", "b", "c"}); err != nil {
		t.Fatalf("offline subscribe: %v", err)
	}
	st := s.Status()
	if st.State != StateDisconnected || st.SubscribedAssets != 3 {
		t.Fatalf("unexpected offline status %+v", st)
	}

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	var got []string
	var sizes []int
	for len(got) < 3 {
		select {
		case cmd := <-received:
			if cmd.Type != "market" {
				t.Fatalf("unexpected command type %q", cmd.Type)
			}
			sizes = append(sizes, len(cmd.AssetIDs))
			got = append(got, cmd.AssetIDs...)
		case <-time.After(2 * time.Second):
			t.Fatalf("subscribe flush not received, got %v", got)
		}
	}
	sort.Strings(got)
	if got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("unexpected assets %v", got)
	}
	// chunk size 2 over 3 assets means batches of 2 and 1
	if len(sizes) != 2 || sizes[0] != 2 || sizes[1] != 1 {
		t.Fatalf("unexpected chunk sizes %v", sizes)
	}
	if !s.IsConnected() {
		t.Fatalf("expected connected state")
	}
}

func TestStreamDispatchByEventType(t *testing.T) {
	frames := []string{
		"PONG",
		`[{"event_type":"last_trade_price","asset_id":"tok1","market":"m1","price":"0.42","size":"7","side":"BUY","timestamp":"1700000000000"},` +
			`{"event_type":"mystery_type","asset_id":"tok2"}]`,
		`{"event_type":"last_trade_price","asset_id":"tok3","market":"m2","price":"0.10","size":"1","side":"SELL","timestamp":"1700000001000"}`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// keep the connection open until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewStream(wsURL(srv), streamLogger(t), WithPingInterval(time.Hour))
	assets := make(chan string, 4)
	s.On("last_trade_price", func(msg *models.PolymarketWSMessage) {
		assets <- msg.AssetID
	})

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer s.Disconnect()

	var got []string
	for len(got) < 2 {
		select {
		case a := <-assets:
			got = append(got, a)
		case <-time.After(2 * time.Second):
			t.Fatalf("dispatched trades not received, got %v", got)
		}
	}
	// array and single-object frames both dispatch; the unknown tag is
	// ignored without tearing the stream down
	if got[0] != "tok1" || got[1] != "tok3" {
		t.Fatalf("unexpected assets %v", got)
	}
	if !s.IsConnected() {
		t.Fatalf("stream should survive unknown event types")
	}
}

func TestStreamReconnectExhaustionKeepsDesiredSet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	s := NewStream(wsURL(srv), streamLogger(t),
		WithPingInterval(time.Hour),
		WithMaxReconnects(2),
		WithReconnectWait(10*time.Millisecond))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Subscribe(context.Background(), []string{"a", "b"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// killing the server fails the read loop and every reconnect attempt
	srv.Close()

	waitFor(t, 3*time.Second, func() bool {
		st := s.Status()
		return st.State == StateDisconnected && st.ReconnectAttempts >= 2
	}, "stream to give up reconnecting")

	// a later Connect must still see the full desired set
	if st := s.Status(); st.SubscribedAssets != 2 {
		t.Fatalf("desired set lost across reconnects: %+v", st)
	}
	if s.IsConnected() {
		t.Fatalf("expected disconnected state")
	}
}

func TestStreamDisconnectSuppressesReconnect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	s := NewStream(wsURL(srv), streamLogger(t),
		WithPingInterval(time.Hour),
		WithReconnectWait(10*time.Millisecond))

	if err := s.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if err := s.Subscribe(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := s.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}

	// give any stray reconnect goroutine a chance to fire
	time.Sleep(50 * time.Millisecond)
	st := s.Status()
	if st.State != StateDisconnected {
		t.Fatalf("expected DISCONNECTED after explicit disconnect, got %s", st.State)
	}
	if st.SubscribedAssets != 1 {
		t.Fatalf("desired set should survive disconnect: %+v", st)
	}
}

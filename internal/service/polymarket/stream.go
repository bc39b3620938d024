package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"PredPull/internal/domain/models"
	xlogger "PredPull/pkg/logger"

	"github.com/gorilla/websocket"
)

// Connection states.
const (
	StateDisconnected = "DISCONNECTED"
	StateConnecting   = "CONNECTING"
	StateConnected    = "CONNECTED"
	StateReconnecting = "RECONNECTING"
)

// Handler receives one dispatched market-channel message.
type Handler func(msg *models.PolymarketWSMessage)

// StreamStatus is a point-in-time snapshot of the stream.
type StreamStatus struct {
	State             string `json:"state"`
	SubscribedAssets  int    `json:"subscribedAssets"`
	ReconnectAttempts int    `json:"reconnectAttempts"`
}

type subscribeCmd struct {
	AssetIDs []string `json:"assets_ids"`
	Type     string   `json:"type"`
}

// Stream is a long-lived CLOB market-channel client. Subscribe and
// unsubscribe requests made while disconnected are buffered into the
// desired-subscription set and flushed on the next CONNECTED transition.
type Stream struct {
	url    string
	logger *xlogger.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	state    string
	desired  map[string]struct{}
	handlers map[string]Handler
	attempts int
	loopStop chan struct{}

	maxReconnects int
	reconnectWait time.Duration
	pingInterval  time.Duration
	subChunkSize  int
	subChunkDelay time.Duration
}

type StreamOption func(*Stream)

// WithMaxReconnects bounds consecutive reconnect attempts.
func WithMaxReconnects(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.maxReconnects = n
		}
	}
}

// WithReconnectWait sets the delay between reconnect attempts.
func WithReconnectWait(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.reconnectWait = d
		}
	}
}

// WithPingInterval sets the keepalive interval.
func WithPingInterval(d time.Duration) StreamOption {
	return func(s *Stream) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithSubscribeChunks sets bulk (re)subscription chunk size and delay.
func WithSubscribeChunks(size int, delay time.Duration) StreamOption {
	return func(s *Stream) {
		if size > 0 {
			s.subChunkSize = size
		}
		if delay > 0 {
			s.subChunkDelay = delay
		}
	}
}

// NewStream creates a market-channel stream client.
func NewStream(url string, logger *xlogger.Logger, opts ...StreamOption) *Stream {
	s := &Stream{
		url:           url,
		logger:        logger,
		state:         StateDisconnected,
		desired:       make(map[string]struct{}),
		handlers:      make(map[string]Handler),
		maxReconnects: 5,
		reconnectWait: 3 * time.Second,
		pingInterval:  10 * time.Second,
		subChunkSize:  100,
		subChunkDelay: 250 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// On registers a handler for an event type. Messages with no registered
// handler are logged and ignored.
func (s *Stream) On(eventType string, h Handler) {
	s.mu.Lock()
	s.handlers[eventType] = h
	s.mu.Unlock()
}

// Connect dials the feed, flushes the desired-subscription set and starts
// the keepalive and read loops.
func (s *Stream) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateConnected || s.state == StateConnecting {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	s.mu.Lock()
	s.conn = conn
	s.state = StateConnected
	s.attempts = 0
	stop := make(chan struct{})
	s.loopStop = stop
	pending := s.desiredLocked()
	s.mu.Unlock()

	s.logger.Info("stream connected", xlogger.String("url", s.url))

	if err := s.sendSubscribeChunked(ctx, pending); err != nil {
		s.logger.Warn("resubscribe failed", xlogger.Error(err))
	}

	go s.pingLoop(conn, stop)
	go s.readLoop(conn, stop)
	return nil
}

// Disconnect closes the connection and stops retrying. The desired
// subscription set is kept for a later Connect.
func (s *Stream) Disconnect() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.attempts = s.maxReconnects // suppress auto-reconnect on the close event
	if s.loopStop != nil {
		close(s.loopStop)
		s.loopStop = nil
	}
	s.mu.Unlock()

	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Subscribe adds asset ids to the desired set and, when connected, sends
// the subscribe command immediately.
func (s *Stream) Subscribe(ctx context.Context, assetIDs []string) error {
	s.mu.Lock()
	for _, id := range assetIDs {
		s.desired[id] = struct{}{}
	}
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected {
		return nil // flushed on next CONNECTED transition
	}
	return s.sendSubscribeChunked(ctx, assetIDs)
}

// Unsubscribe removes asset ids from the desired set and notifies the feed
// when connected.
func (s *Stream) Unsubscribe(ctx context.Context, assetIDs []string) error {
	s.mu.Lock()
	for _, id := range assetIDs {
		delete(s.desired, id)
	}
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()

	if !connected || conn == nil {
		return nil
	}
	return conn.WriteJSON(subscribeCmd{AssetIDs: assetIDs, Type: "unsubscribe"})
}

// Status returns a snapshot of the stream state.
func (s *Stream) Status() StreamStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StreamStatus{
		State:             s.state,
		SubscribedAssets:  len(s.desired),
		ReconnectAttempts: s.attempts,
	}
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

func (s *Stream) desiredLocked() []string {
	out := make([]string, 0, len(s.desired))
	for id := range s.desired {
		out = append(out, id)
	}
	return out
}

// sendSubscribeChunked splits bulk subscriptions into fixed-size batches
// with an inter-chunk delay to avoid overwhelming the feed on cold start.
func (s *Stream) sendSubscribeChunked(ctx context.Context, assetIDs []string) error {
	for start := 0; start < len(assetIDs); start += s.subChunkSize {
		end := start + s.subChunkSize
		if end > len(assetIDs) {
			end = len(assetIDs)
		}
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return fmt.Errorf("not connected")
		}
		if err := conn.WriteJSON(subscribeCmd{AssetIDs: assetIDs[start:end], Type: "market"}); err != nil {
			return fmt.Errorf("subscribe chunk: %w", err)
		}
		if end < len(assetIDs) && s.subChunkDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.subChunkDelay):
			}
		}
	}
	return nil
}

func (s *Stream) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				return
			}
		}
	}
}

func (s *Stream) readLoop(conn *websocket.Conn, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		_, raw, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-stop:
				return
			default:
			}
			s.handleClose(err)
			return
		}
		s.dispatch(raw)
	}
}

func (s *Stream) dispatch(raw []byte) {
	if string(raw) == "PONG" {
		return
	}
	// the feed batches messages into arrays; single objects also occur
	var batch []models.PolymarketWSMessage
	if err := json.Unmarshal(raw, &batch); err != nil {
		var single models.PolymarketWSMessage
		if err := json.Unmarshal(raw, &single); err != nil {
			s.logger.Debug("undecodable frame", xlogger.Int("bytes", len(raw)))
			return
		}
		batch = []models.PolymarketWSMessage{single}
	}
	for i := range batch {
		msg := &batch[i]
		s.mu.Lock()
		h, ok := s.handlers[msg.EventType]
		s.mu.Unlock()
		if !ok {
			s.logger.Debug("unhandled event type", xlogger.String("type", msg.EventType))
			continue
		}
		h(msg)
	}
}

// handleClose runs the reconnect arm of the state machine. After the
// bounded number of consecutive failures the stream stays DISCONNECTED
// until an external Connect call.
func (s *Stream) handleClose(cause error) {
	s.mu.Lock()
	if s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if s.loopStop != nil {
		close(s.loopStop)
		s.loopStop = nil
	}
	if s.attempts >= s.maxReconnects {
		s.state = StateDisconnected
		s.mu.Unlock()
		s.logger.Error("stream closed, reconnect attempts exhausted", xlogger.Error(cause))
		return
	}
	s.attempts++
	attempts := s.attempts
	s.state = StateReconnecting
	s.mu.Unlock()

	s.logger.Warn("stream closed, reconnecting",
		xlogger.Int("attempt", attempts), xlogger.Error(cause))

	go func() {
		time.Sleep(s.reconnectWait)
		s.mu.Lock()
		if s.state != StateReconnecting {
			s.mu.Unlock()
			return
		}
		s.state = StateDisconnected
		s.mu.Unlock()

		if err := s.Connect(context.Background()); err != nil {
			s.logger.Warn("reconnect failed", xlogger.Error(err))
			s.retryOrGiveUp()
		}
	}()
}

func (s *Stream) retryOrGiveUp() {
	s.mu.Lock()
	if s.attempts >= s.maxReconnects {
		s.state = StateDisconnected
		s.mu.Unlock()
		s.logger.Error("stream reconnect attempts exhausted")
		return
	}
	s.attempts++
	s.state = StateReconnecting
	s.mu.Unlock()

	go func() {
		time.Sleep(s.reconnectWait)
		s.mu.Lock()
		if s.state != StateReconnecting {
			s.mu.Unlock()
			return
		}
		s.state = StateDisconnected
		s.mu.Unlock()
		if err := s.Connect(context.Background()); err != nil {
			s.logger.Warn("reconnect failed", xlogger.Error(err))
			s.retryOrGiveUp()
		}
	}()
}

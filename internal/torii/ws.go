package torii

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MartianGreed/dojo.c/internal/felt"
	"github.com/MartianGreed/dojo.c/internal/query"
	"github.com/MartianGreed/dojo.c/internal/schema"
)

const (
	// DefaultHeartbeat is the websocket ping interval.
	DefaultHeartbeat = 30 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// SubscribeMessage is the first frame sent on a new update stream.
type SubscribeMessage struct {
	Type       string   `json:"type"`
	HashedKeys []string `json:"hashed_keys"`
}

// EntityFrame carries one updated entity.
type EntityFrame struct {
	Entity *schema.WireEntity `json:"entity"`
}

// WSBackend receives entity updates over a websocket and delegates one-shot
// fetches to another backend.
type WSBackend struct {
	url       string
	fetch     Backend
	dialer    *websocket.Dialer
	heartbeat time.Duration
}

// WSOption allows configuration of WSBackend parameters.
type WSOption func(*WSBackend)

// WithHeartbeat sets the ping interval.
func WithHeartbeat(d time.Duration) WSOption {
	return func(b *WSBackend) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewWSBackend creates a websocket feed for toriiURL. http and https URLs are
// rewritten to ws and wss.
func NewWSBackend(toriiURL string, fetch Backend, opts ...WSOption) *WSBackend {
	b := &WSBackend{
		url:       websocketURL(toriiURL),
		fetch:     fetch,
		dialer:    &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		heartbeat: DefaultHeartbeat,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func websocketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

// URL returns the websocket endpoint.
func (b *WSBackend) URL() string {
	return b.url
}

// Entities implements Backend.
func (b *WSBackend) Entities(ctx context.Context, q query.Query) ([]schema.Entity, error) {
	if b.fetch == nil {
		return nil, errors.New("websocket backend has no fetch backend")
	}
	return b.fetch.Entities(ctx, q)
}

// Model implements Backend.
func (b *WSBackend) Model(ctx context.Context, clause query.KeysClause) (schema.Ty, error) {
	if b.fetch == nil {
		return nil, errors.New("websocket backend has no fetch backend")
	}
	return b.fetch.Model(ctx, clause)
}

// Subscribe implements Backend. It dials, sends the subscribe frame and then
// streams decoded entity frames until ctx is cancelled or the peer closes.
func (b *WSBackend) Subscribe(ctx context.Context, ids []felt.Felt) (<-chan Update, error) {
	conn, _, err := b.dialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	msg := SubscribeMessage{Type: "subscribe", HashedKeys: make([]string, len(ids))}
	for i, id := range ids {
		msg.HashedKeys[i] = id.String()
	}
	if err := conn.WriteJSON(msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send subscribe: %w", err)
	}

	out := make(chan Update, 64)
	done := make(chan struct{})

	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	go b.ping(conn, done)
	go b.read(ctx, conn, ids, out, done)

	return out, nil
}

func (b *WSBackend) read(ctx context.Context, conn *websocket.Conn, ids []felt.Felt, out chan<- Update, done chan struct{}) {
	defer close(out)
	defer close(done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("websocket feed closed", "url", b.url, "error", err)
			}
			return
		}

		u, ok := decodeFrame(data)
		if ok && u.Err == nil && !matchesIDs(ids, u.Entity.HashedKeys) {
			continue
		}
		if !send(ctx, out, u) {
			return
		}
	}
}

// decodeFrame turns one text frame into an Update. Undecodable frames become
// an Update with Err set.
func decodeFrame(data []byte) (Update, bool) {
	var frame EntityFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Update{Err: fmt.Errorf("decode frame: %w", err)}, false
	}
	if frame.Entity == nil {
		return Update{Err: errors.New("decode frame: missing entity")}, false
	}
	e, err := frame.Entity.Entity()
	if err != nil {
		return Update{Err: fmt.Errorf("decode frame: %w", err)}, false
	}
	return Update{Entity: e}, true
}

func (b *WSBackend) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				slog.Debug("websocket ping failed", "url", b.url, "error", err)
			}
		}
	}
}

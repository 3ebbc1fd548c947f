// Package notify fans out per-session progress notifications to live
// WebSocket subscribers.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Kind names a notification.
type Kind string

const (
	KindStateUpdated   Kind = "state_updated"
	KindLevelCompleted Kind = "level_completed"
	KindLevelUnlocked  Kind = "level_unlocked"
	KindBadgeEarned    Kind = "badge_earned"
	KindSessionEnded   Kind = "session_ended"
)

// Message is one notification pushed to subscribers.
type Message struct {
	Type      Kind      `json:"type"`
	SessionID string    `json:"sessionId"`
	LevelID   int       `json:"levelId,omitempty"`
	BadgeID   string    `json:"badgeId,omitempty"`
	Data      any       `json:"data,omitempty"`
	At        time.Time `json:"at"`
}

const (
	defaultBuffer = 16
	writeTimeout  = 10 * time.Second
	pingPeriod    = 30 * time.Second
)

type subscriber struct {
	ch     chan Message
	closed bool
}

// Hub keeps the subscribers of every session. Publish never blocks: a
// subscriber whose buffer is full misses the message.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]map[*subscriber]struct{}
	buffer  int
	origins []string
}

// Option configures a Hub.
type Option func(*Hub)

// WithOriginPatterns lets browsers on other hosts open the socket. Patterns
// use path.Match syntax against the Origin host, e.g. "*.example.com".
// Same-host requests are always accepted.
func WithOriginPatterns(patterns ...string) Option {
	return func(h *Hub) {
		h.origins = append(h.origins, patterns...)
	}
}

// NewHub creates a hub whose subscribers buffer up to buffer messages.
func NewHub(buffer int, opts ...Option) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	h := &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers a subscriber for sessionID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(sessionID string) (<-chan Message, func()) {
	sub := &subscriber{ch: make(chan Message, h.buffer)}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.remove(sessionID, sub)
	}
}

// remove must be called with h.mu held.
func (h *Hub) remove(sessionID string, sub *subscriber) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)
	delete(h.subs[sessionID], sub)
	if len(h.subs[sessionID]) == 0 {
		delete(h.subs, sessionID)
	}
}

// Publish delivers msgs to every subscriber of sessionID.
func (h *Hub) Publish(sessionID string, msgs ...Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[sessionID] {
		for _, msg := range msgs {
			msg.SessionID = sessionID
			if msg.At.IsZero() {
				msg.At = time.Now().UTC()
			}
			select {
			case sub.ch <- msg:
			default:
				slog.Warn("notification dropped, subscriber too slow",
					"session_id", sessionID,
					"type", string(msg.Type),
				)
			}
		}
	}
}

// CloseSession sends a final session_ended message and disconnects every
// subscriber of sessionID.
func (h *Hub) CloseSession(sessionID string) {
	h.Publish(sessionID, Message{Type: KindSessionEnded})

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[sessionID] {
		h.remove(sessionID, sub)
	}
}

// Subscribers returns the number of live subscribers for sessionID.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// ServeWS upgrades the request to a WebSocket and streams the notifications
// of sessionID as JSON text frames until the client goes away, the session
// is closed or ctx is done.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string) error {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		return err
	}
	defer func() { _ = conn.CloseNow() }()

	msgs, cancel := h.Subscribe(sessionID)
	defer cancel()

	// The client never sends anything; CloseRead handles control frames and
	// cancels ctx when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	slog.Debug("notification subscriber connected", "session_id", sessionID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return conn.Close(websocket.StatusNormalClosure, "session ended")
			}
			if err := writeJSON(ctx, conn, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return nil
			}
		}
	}
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, v)
}
